package nucleo

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// sysThreadCreate no valida entrada: una dirección sin código falla al arrancar
func (k *Kernel) sysThreadCreate(hilo *tarea.TCB, entrada, argumento uint64) int64 {
	nuevo, err := tarea.NuevoTCB(hilo.DebeProceso(), DirPilaBase, true)
	if err != nil {
		utils.InfoLog.Info(fmt.Sprintf("## %v - No se pudo crear el hilo: %v", hilo, err))
		return Fallo
	}
	k.prepararHilo(nuevo, entrada, argumento)
	k.proc.Agregar(nuevo)
	utils.InfoLog.Info(fmt.Sprintf("## %v Se crea el Hilo - Estado: %s", nuevo, tarea.Listo))
	return int64(nuevo.Tid())
}

// sysWaittid devuelve el código de un hilo terminado y lo recolecta
func (k *Kernel) sysWaittid(hilo *tarea.TCB, tid int64) int64 {
	if tid == int64(hilo.Tid()) {
		return Fallo
	}
	p := hilo.DebeProceso()
	var objetivo *tarea.TCB
	p.Con(func(i *tarea.InteriorPCB) {
		if idx, ok := enRango(tid, len(i.Hilos)); ok {
			objetivo = i.Hilos[idx]
		}
	})
	if objetivo == nil {
		return Fallo
	}

	var finalizada bool
	var codigo int
	objetivo.Con(func(i *tarea.InteriorTCB) {
		finalizada = i.Finalizada
		codigo = i.CodigoSalida
	})
	if !finalizada {
		return SigueViva
	}
	p.Con(func(i *tarea.InteriorPCB) {
		i.QuitarHilo(objetivo.Tid())
	})
	return int64(codigo)
}
