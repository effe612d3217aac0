package tarea

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

type pedido struct {
	f     func()
	hecho chan struct{}
}

// Procesador es el único hart. Cada tarea corre en su propia goroutine pero sólo
// la que tiene el hart avanza: el procesador se lo pasa por reanudar y la tarea
// lo devuelve por vuelta.
type Procesador struct {
	admin          *AdministradorTareas
	actual         *utils.CeldaExclusiva[*TCB]
	vuelta         chan struct{}
	pedidos        chan pedido
	quantum        time.Duration
	inicioRebanada time.Time

	// AlTerminarProceso corre en el hart, sin tarea actual, cuando un proceso queda zombie
	AlTerminarProceso func(*PCB)
}

// NuevoProcesador crea el hart. Un quantum de cero desactiva el desalojo.
func NuevoProcesador(admin *AdministradorTareas, quantum time.Duration) *Procesador {
	return &Procesador{
		admin:   admin,
		actual:  utils.NuevaCelda[*TCB]("tarea actual", nil),
		vuelta:  make(chan struct{}),
		pedidos: make(chan pedido),
		quantum: quantum,
	}
}

func (p *Procesador) Administrador() *AdministradorTareas {
	return p.admin
}

// TareaActual devuelve la tarea que tiene el hart, o nil si lo tiene el kernel
func (p *Procesador) TareaActual() *TCB {
	return p.actual.Leer()
}

// Agregar deja lista una tarea nueva
func (p *Procesador) Agregar(t *TCB) {
	p.admin.Agregar(t)
}

// Correr despacha tareas hasta que se cancele el contexto. Sin tareas listas
// espera pedidos externos.
func (p *Procesador) Correr(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.atenderPendientes()
		if t := p.admin.Obtener(); t != nil {
			p.correr(t)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pd := <-p.pedidos:
			p.atender(pd)
		}
	}
}

// CorrerHastaInactivo despacha hasta que la cola de listos quede vacía
func (p *Procesador) CorrerHastaInactivo() {
	for {
		p.atenderPendientes()
		t := p.admin.Obtener()
		if t == nil {
			return
		}
		p.correr(t)
	}
}

// Ejecutar corre f en el hart entre dos despachos. Es la forma de tocar estado
// del kernel desde afuera.
func (p *Procesador) Ejecutar(ctx context.Context, f func()) error {
	pd := pedido{f: f, hecho: make(chan struct{})}
	select {
	case p.pedidos <- pd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-pd.hecho:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Procesador) atender(pd pedido) {
	defer close(pd.hecho)
	pd.f()
}

func (p *Procesador) atenderPendientes() {
	for {
		select {
		case pd := <-p.pedidos:
			p.atender(pd)
		default:
			return
		}
	}
}

// correr le da el hart a t hasta que lo devuelva
func (p *Procesador) correr(t *TCB) {
	for {
		t.Con(func(i *InteriorTCB) {
			t.cambiarEstado(i, Corriendo)
			if i.PrimerDespacho.IsZero() {
				i.PrimerDespacho = time.Now()
			}
		})
		p.actual.Con(func(a **TCB) { *a = t })
		p.inicioRebanada = time.Now()

		if !t.lanzada {
			t.lanzada = true
			go p.lanzar(t)
		} else {
			t.reanudar <- struct{}{}
		}
		<-p.vuelta
		p.actual.Con(func(a **TCB) { *a = nil })

		if !t.relanzar {
			break
		}
		// exec: la misma tarea sigue con el cuerpo nuevo
		t.relanzar = false
		t.lanzada = false
	}

	if t.Estado() == Terminado {
		p.finalizarTarea(t)
	}
}

func (p *Procesador) lanzar(t *TCB) {
	defer func() { p.vuelta <- struct{}{} }()
	if t.cuerpo == nil {
		panic(fmt.Sprintf("tarea %v sin cuerpo", t))
	}
	t.cuerpo()
	// volver del programa es exit(0)
	p.SalirActual(0)
}

// ceder devuelve el hart y espera a que el procesador vuelva a elegir la tarea
func (p *Procesador) ceder(t *TCB) {
	p.vuelta <- struct{}{}
	<-t.reanudar
	if t.muerta {
		runtime.Goexit()
	}
}

// SuspenderActual devuelve la tarea actual a la cola de listos y cede el hart
func (p *Procesador) SuspenderActual() {
	t := p.TareaActual()
	t.Con(func(i *InteriorTCB) {
		t.cambiarEstado(i, Listo)
	})
	p.admin.Agregar(t)
	p.ceder(t)
}

// BloquearActual deja bloqueada a la tarea actual. Quien llama ya la encoló en
// alguna cola de espera y no tiene ninguna celda tomada.
func (p *Procesador) BloquearActual() {
	t := p.TareaActual()
	t.Con(func(i *InteriorTCB) {
		t.cambiarEstado(i, Bloqueado)
	})
	p.ceder(t)
}

// Despertar pasa una tarea bloqueada a listos
func (p *Procesador) Despertar(t *TCB) {
	terminada := false
	t.Con(func(i *InteriorTCB) {
		if i.Estado == Terminado {
			terminada = true
			return
		}
		t.cambiarEstado(i, Listo)
	})
	if terminada {
		utils.InfoLog.Debug("Se ignora despertar a una tarea terminada", "tarea", t.String())
		return
	}
	p.admin.Agregar(t)
}

// SalirActual termina la tarea actual. No vuelve.
func (p *Procesador) SalirActual(codigo int) {
	t := p.TareaActual()
	t.Con(func(i *InteriorTCB) {
		i.CodigoSalida = codigo
		i.Finalizada = true
		t.cambiarEstado(i, Terminado)
	})
	runtime.Goexit()
}

// RelanzarActual reinicia la tarea actual con el cuerpo que tenga fijado. No vuelve.
func (p *Procesador) RelanzarActual() {
	t := p.TareaActual()
	t.relanzar = true
	runtime.Goexit()
}

// ChequearQuantum desaloja a la tarea actual si agotó su quantum. Se llama al
// entrar al kernel.
func (p *Procesador) ChequearQuantum() bool {
	if p.quantum <= 0 || time.Since(p.inicioRebanada) < p.quantum {
		return false
	}
	utils.InfoLog.Info(fmt.Sprintf("## %v - Desalojado por fin de Quantum", p.TareaActual()))
	p.SuspenderActual()
	return true
}

// finalizarTarea corre en el hart después de que t salió
func (p *Procesador) finalizarTarea(t *TCB) {
	codigo := t.interior.Leer().CodigoSalida
	proceso, ok := t.Proceso()
	if !ok {
		t.Destruir()
		return
	}
	t.liberarRecursosUsuario(proceso)
	proceso.Con(func(i *InteriorPCB) {
		i.HilosVivos--
	})
	utils.InfoLog.Info(fmt.Sprintf("## %v - Finaliza el hilo - Código: %d", t, codigo))

	if t.tid == 0 {
		p.finalizarProceso(proceso, codigo)
	}
}

// finalizarProceso deja zombie al proceso: mata al resto de sus hilos, entrega los
// hijos a init y libera memoria de datos y archivos. El hilo principal y la
// tabla de páginas quedan hasta que el padre lo recolecte.
func (p *Procesador) finalizarProceso(proceso *PCB, codigo int) {
	var hermanos []*TCB
	var hijos []*PCB
	proceso.Con(func(i *InteriorPCB) {
		i.Zombie = true
		i.CodigoSalida = codigo
		hijos = i.Hijos
		i.Hijos = nil
		for tid, h := range i.Hilos {
			if h != nil && tid != 0 {
				hermanos = append(hermanos, h)
			}
		}
	})

	for _, h := range hermanos {
		p.matar(proceso, h)
	}

	if init, ok := ProcesoInit(); ok && init != proceso {
		for _, h := range hijos {
			h.Con(func(i *InteriorPCB) { i.Padre = init.Pid })
		}
		init.Con(func(i *InteriorPCB) {
			i.Hijos = append(i.Hijos, hijos...)
		})
	} else {
		for _, h := range hijos {
			h.Con(func(i *InteriorPCB) { i.Padre = -1 })
		}
	}

	proceso.Con(func(i *InteriorPCB) {
		for tid, h := range i.Hilos {
			if h != nil && tid != 0 {
				i.QuitarHilo(tid)
			}
		}
		i.Espacio.LiberarPaginas()
		i.Archivos = nil
	})

	utils.InfoLog.Info(fmt.Sprintf("## (%d) - Finaliza el proceso - Código: %d", proceso.Pid, codigo))
	if p.AlTerminarProceso != nil {
		p.AlTerminarProceso(proceso)
	}
}

// matar termina un hilo que no tiene el hart: lo saca de listos y, si su goroutine
// está esperando el hart, la despierta para que termine.
func (p *Procesador) matar(proceso *PCB, h *TCB) {
	p.admin.Remover(h)
	yaFinalizada := false
	h.Con(func(i *InteriorTCB) {
		yaFinalizada = i.Finalizada
		if !yaFinalizada {
			i.Finalizada = true
			h.cambiarEstado(i, Terminado)
		}
	})
	if yaFinalizada {
		return
	}
	proceso.Con(func(i *InteriorPCB) {
		i.HilosVivos--
	})
	h.liberarRecursosUsuario(proceso)
	if h.lanzada {
		h.muerta = true
		h.reanudar <- struct{}{}
		<-p.vuelta
	}
}
