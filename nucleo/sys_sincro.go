package nucleo

import (
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/sincro"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
)

func (k *Kernel) sysMutexCreate(hilo *tarea.TCB, bloqueante bool) int64 {
	var m tarea.Cerrojo
	if bloqueante {
		m = sincro.NuevoMutexBloqueante(k.proc)
	} else {
		m = sincro.NuevoMutexSpin(k.proc)
	}
	id, ok := -1, false
	hilo.DebeProceso().Con(func(i *tarea.InteriorPCB) {
		id, ok = i.AgregarMutex(m)
	})
	if !ok {
		return Fallo
	}
	return int64(id)
}

func mutexDe(p *tarea.PCB, id int64) (tarea.Cerrojo, bool) {
	var m tarea.Cerrojo
	p.Con(func(i *tarea.InteriorPCB) {
		if idx, ok := enRango(id, len(i.Mutexes)); ok {
			m = i.Mutexes[idx]
		}
	})
	return m, m != nil
}

func (k *Kernel) sysMutexLock(hilo *tarea.TCB, id int64) int64 {
	m, ok := mutexDe(hilo.DebeProceso(), id)
	if !ok {
		return Fallo
	}
	m.Lock(int(id))
	return 0
}

// tomadoSiBloqueante es falso para un mutex bloqueante que nadie tiene;
// soltarlo así rompería su cola de espera
func tomadoSiBloqueante(m tarea.Cerrojo) bool {
	mb, bloqueante := m.(*sincro.MutexBloqueante)
	return !bloqueante || mb.Tomado()
}

func (k *Kernel) sysMutexUnlock(hilo *tarea.TCB, id int64) int64 {
	m, ok := mutexDe(hilo.DebeProceso(), id)
	if !ok {
		return Fallo
	}
	if !tomadoSiBloqueante(m) {
		return Fallo
	}
	m.Unlock(int(id))
	return 0
}

func (k *Kernel) sysSemaphoreCreate(hilo *tarea.TCB, cantidad int64) int64 {
	if cantidad < 0 {
		return Fallo
	}
	s := sincro.NuevoSemaforo(k.proc, int(cantidad))
	id, ok := -1, false
	hilo.DebeProceso().Con(func(i *tarea.InteriorPCB) {
		id, ok = i.AgregarSemaforo(s, int(cantidad))
	})
	if !ok {
		return Fallo
	}
	return int64(id)
}

func semaforoDe(p *tarea.PCB, id int64) (tarea.SemaforoConteo, bool) {
	var s tarea.SemaforoConteo
	p.Con(func(i *tarea.InteriorPCB) {
		if idx, ok := enRango(id, len(i.Semaforos)); ok {
			s = i.Semaforos[idx]
		}
	})
	return s, s != nil
}

func (k *Kernel) sysSemaphoreUp(hilo *tarea.TCB, id int64) int64 {
	s, ok := semaforoDe(hilo.DebeProceso(), id)
	if !ok {
		return Fallo
	}
	s.Up(int(id))
	return 0
}

func (k *Kernel) sysSemaphoreDown(hilo *tarea.TCB, id int64) int64 {
	s, ok := semaforoDe(hilo.DebeProceso(), id)
	if !ok {
		return Fallo
	}
	s.Down(int(id))
	return 0
}

func (k *Kernel) sysCondvarCreate(hilo *tarea.TCB) int64 {
	c := sincro.NuevaCondvar(k.proc)
	var id int
	hilo.DebeProceso().Con(func(i *tarea.InteriorPCB) {
		id = i.AgregarCondicion(c)
	})
	return int64(id)
}

func condvarDe(p *tarea.PCB, id int64) (tarea.Condicion, bool) {
	var c tarea.Condicion
	p.Con(func(i *tarea.InteriorPCB) {
		if idx, ok := enRango(id, len(i.Condiciones)); ok {
			c = i.Condiciones[idx]
		}
	})
	return c, c != nil
}

func (k *Kernel) sysCondvarSignal(hilo *tarea.TCB, id int64) int64 {
	c, ok := condvarDe(hilo.DebeProceso(), id)
	if !ok {
		return Fallo
	}
	c.Signal()
	return 0
}

func (k *Kernel) sysCondvarWait(hilo *tarea.TCB, id, mutex int64) int64 {
	p := hilo.DebeProceso()
	c, ok := condvarDe(p, id)
	if !ok {
		return Fallo
	}
	m, ok := mutexDe(p, mutex)
	if !ok {
		return Fallo
	}
	if !tomadoSiBloqueante(m) {
		return Fallo
	}
	c.Wait(m, int(mutex))
	return 0
}
