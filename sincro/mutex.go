// Package sincro implementa las primitivas de sincronización de los procesos de
// usuario. Cada una vive detrás de una única celda exclusiva que se suelta antes
// de ceder el hart.
package sincro

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Planificador es lo que las primitivas necesitan del hart
type Planificador interface {
	TareaActual() *tarea.TCB
	SuspenderActual()
	BloquearActual()
	Despertar(t *tarea.TCB)
}

// MutexSpin reintenta cediendo el hart mientras esté tomado. No lleva contabilidad.
type MutexSpin struct {
	plan   Planificador
	tomado *utils.CeldaExclusiva[bool]
}

func NuevoMutexSpin(plan Planificador) *MutexSpin {
	return &MutexSpin{
		plan:   plan,
		tomado: utils.NuevaCelda("mutex spin", false),
	}
}

func (m *MutexSpin) Lock(ranura int) {
	for {
		tomado := m.tomado.Tomar()
		if !*tomado {
			*tomado = true
			m.tomado.Soltar()
			return
		}
		m.tomado.Soltar()
		m.plan.SuspenderActual()
	}
}

func (m *MutexSpin) Unlock(ranura int) {
	m.tomado.Con(func(tomado *bool) {
		*tomado = false
	})
}

type interiorMutex struct {
	tomado bool
	espera []*tarea.TCB
}

// MutexBloqueante encola a quien lo encuentra tomado y le pasa la posesión
// directamente al liberarlo
type MutexBloqueante struct {
	plan     Planificador
	interior *utils.CeldaExclusiva[interiorMutex]
}

func NuevoMutexBloqueante(plan Planificador) *MutexBloqueante {
	return &MutexBloqueante{
		plan:     plan,
		interior: utils.NuevaCelda("mutex bloqueante", interiorMutex{}),
	}
}

func (m *MutexBloqueante) Lock(ranura int) {
	mi := m.interior.Tomar()
	t := m.plan.TareaActual()
	ti := t.AccesoExclusivo()

	if mi.tomado {
		mi.espera = append(mi.espera, t)
		ti.MutexEsperados[ranura]++
		t.SoltarAcceso()
		m.interior.Soltar()
		utils.InfoLog.Info(fmt.Sprintf("## %v - Bloqueado por: MUTEX %d", t, ranura))
		m.plan.BloquearActual()
		return
	}

	p := t.DebeProceso()
	p.Con(func(pi *tarea.InteriorPCB) {
		pi.MutexDisponibles[ranura]--
	})
	ti.MutexAsignados[ranura]++
	t.SoltarAcceso()
	mi.tomado = true
	m.interior.Soltar()
}

// Unlock sobre un mutex libre es un error del kernel
func (m *MutexBloqueante) Unlock(ranura int) {
	mi := m.interior.Tomar()
	if !mi.tomado {
		m.interior.Soltar()
		panic(fmt.Sprintf("unlock del mutex %d sin tomar", ranura))
	}
	t := m.plan.TareaActual()
	ti := t.AccesoExclusivo()
	ti.MutexAsignados[ranura]--

	if len(mi.espera) > 0 {
		despertada := mi.espera[0]
		mi.espera = mi.espera[1:]
		t.SoltarAcceso()
		despertada.Con(func(di *tarea.InteriorTCB) {
			di.MutexEsperados[ranura]--
			di.MutexAsignados[ranura]++
		})
		m.interior.Soltar()
		m.plan.Despertar(despertada)
		return
	}

	p := t.DebeProceso()
	p.Con(func(pi *tarea.InteriorPCB) {
		pi.MutexDisponibles[ranura]++
	})
	t.SoltarAcceso()
	mi.tomado = false
	m.interior.Soltar()
}

// EnEspera cuenta las tareas encoladas
func (m *MutexBloqueante) EnEspera() int {
	return len(m.interior.Leer().espera)
}

// Tomado informa si el mutex tiene dueño
func (m *MutexBloqueante) Tomado() bool {
	return m.interior.Leer().tomado
}
