package nucleo

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

func (k *Kernel) sysExit(codigo int64) {
	k.proc.SalirActual(int(codigo))
}

func (k *Kernel) sysYield() int64 {
	k.proc.SuspenderActual()
	return 0
}

func (k *Kernel) sysSetPriority(hilo *tarea.TCB, prioridad int64) int64 {
	if prioridad < tarea.PrioridadMinima || prioridad > int64(tarea.BigStride) {
		return Fallo
	}
	if err := hilo.FijarPrioridad(int(prioridad)); err != nil {
		return Fallo
	}
	return prioridad
}

func (k *Kernel) sysGetTime(hilo *tarea.TCB, dir memoria.DirVirtual) int64 {
	transcurrido := time.Since(k.arranque)
	tv := TimeVal{
		Sec:  uint64(transcurrido / time.Second),
		Usec: uint64((transcurrido % time.Second) / time.Microsecond),
	}
	if !escribirEnUsuario(hilo.DebeProceso().Token(), dir, binary.Size(tv), tv) {
		return Fallo
	}
	return 0
}

func (k *Kernel) sysTaskInfo(hilo *tarea.TCB, dir memoria.DirVirtual) int64 {
	var info InfoTarea
	hilo.Con(func(i *tarea.InteriorTCB) {
		info.Estado = uint32(tarea.Corriendo)
		info.Llamadas = i.LlamadasSistema
		if !i.PrimerDespacho.IsZero() {
			info.Tiempo = uint64(time.Since(i.PrimerDespacho).Milliseconds())
		}
	})
	if !escribirEnUsuario(hilo.DebeProceso().Token(), dir, binary.Size(info), info) {
		return Fallo
	}
	return 0
}

func (k *Kernel) sysMmap(hilo *tarea.TCB, inicio memoria.DirVirtual, largo int, puerto int) int64 {
	var err error
	hilo.DebeProceso().Con(func(i *tarea.InteriorPCB) {
		err = i.Espacio.Mmap(inicio, largo, puerto)
	})
	if err != nil {
		utils.InfoLog.Debug("mmap rechazado", "tarea", hilo.String(), "error", err)
		return Fallo
	}
	return 0
}

func (k *Kernel) sysMunmap(hilo *tarea.TCB, inicio memoria.DirVirtual, largo int) int64 {
	var err error
	hilo.DebeProceso().Con(func(i *tarea.InteriorPCB) {
		err = i.Espacio.Munmap(inicio, largo)
	})
	if err != nil {
		utils.InfoLog.Debug("munmap rechazado", "tarea", hilo.String(), "error", err)
		return Fallo
	}
	return 0
}

// sysFork crea un hijo que vuelve a usuario en continuacion con a0 = 0
func (k *Kernel) sysFork(hilo *tarea.TCB, continuacion uint64) int64 {
	if _, ok := k.textos.buscar(hilo.Pid(), continuacion); !ok {
		return Fallo
	}
	if !k.admision.TryWait() {
		utils.InfoLog.Info(fmt.Sprintf("## %v - Fork rechazado: %v", hilo, ErrMultiprogramacion))
		return Fallo
	}
	padre := hilo.DebeProceso()
	hijo, hiloHijo, err := padre.Fork()
	if err != nil {
		k.admision.Signal()
		utils.InfoLog.Info(fmt.Sprintf("## %v - Fork rechazado: %v", hilo, err))
		return Fallo
	}
	k.textos.copiar(padre.Pid, hijo.Pid)

	cx := hiloHijo.ContextoTrap()
	cx.Sepc = continuacion
	cx.X[tarea.RegA0] = 0
	cx.KernelSp = hiloHijo.TopePilaKernel()
	hiloHijo.GuardarContextoTrap(cx)
	hiloHijo.FijarCuerpo(k.cuerpoUsuario(hiloHijo))
	k.proc.Agregar(hiloHijo)
	return int64(hijo.Pid)
}

// sysExec no vuelve si la imagen existe
func (k *Kernel) sysExec(hilo *tarea.TCB, dirRuta memoria.DirVirtual) int64 {
	p := hilo.DebeProceso()
	ruta, ok := leerCadena(p.Token(), dirRuta)
	if !ok {
		return Fallo
	}
	programa, ok := k.registro.Buscar(ruta)
	if !ok {
		utils.InfoLog.Info(fmt.Sprintf("## %v - Exec de imagen inexistente: %s", hilo, ruta))
		return Fallo
	}
	espacio, err := cargarImagen(ruta)
	if err != nil {
		return Fallo
	}
	if err := p.Exec(ruta, espacio, DirPilaBase, hilo); err != nil {
		espacio.Destruir()
		utils.InfoLog.Info(fmt.Sprintf("## %v - Exec rechazado: %v", hilo, err))
		return Fallo
	}
	k.textos.fijar(p.Pid, nuevaTablaTexto(programa))
	k.prepararHilo(hilo, uint64(DirTexto), 0)
	utils.InfoLog.Info(fmt.Sprintf("## %v - Exec de %s", hilo, ruta))
	k.proc.RelanzarActual()
	return 0
}

// sysWaitpid recolecta un hijo zombie y deja su código en dirCodigo si no es cero
func (k *Kernel) sysWaitpid(hilo *tarea.TCB, pid int64, dirCodigo memoria.DirVirtual) int64 {
	p := hilo.DebeProceso()
	token := p.Token()
	if dirCodigo != 0 {
		if _, ok := rangoAccesible(token, dirCodigo, 4, true); !ok {
			return Fallo
		}
	}
	recolectado, codigo := p.RecolectarHijo(int(pid))
	if recolectado < 0 {
		return int64(recolectado)
	}
	if dirCodigo != 0 {
		escribirEnUsuario(token, dirCodigo, 4, int32(codigo))
	}
	return int64(recolectado)
}

func (k *Kernel) sysSpawn(hilo *tarea.TCB, dirRuta memoria.DirVirtual) int64 {
	p := hilo.DebeProceso()
	ruta, ok := leerCadena(p.Token(), dirRuta)
	if !ok {
		return Fallo
	}
	programa, ok := k.registro.Buscar(ruta)
	if !ok {
		return Fallo
	}
	hijo, err := k.crearProceso(ruta, programa, p)
	if err != nil {
		utils.InfoLog.Info(fmt.Sprintf("## %v - Spawn de %s rechazado: %v", hilo, ruta, err))
		return Fallo
	}
	return int64(hijo.Pid)
}

func (k *Kernel) sysDumpMemory(hilo *tarea.TCB) int64 {
	ruta, err := k.Dump(hilo.Pid())
	if err != nil {
		utils.ErrorLog.Error("Error en el dump de memoria", "tarea", hilo.String(), "error", err)
		return Fallo
	}
	utils.InfoLog.Info(fmt.Sprintf("## %v - Memory Dump en %s", hilo, ruta))
	return 0
}
