package sincro

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

type interiorSemaforo struct {
	cuenta int
	espera []*tarea.TCB
}

// Semaforo es un semáforo contador. La cuenta negativa es la cantidad de tareas
// esperando; Up sin esperas no tiene tope.
type Semaforo struct {
	plan     Planificador
	interior *utils.CeldaExclusiva[interiorSemaforo]
}

func NuevoSemaforo(plan Planificador, cantidad int) *Semaforo {
	return &Semaforo{
		plan:     plan,
		interior: utils.NuevaCelda("semáforo", interiorSemaforo{cuenta: cantidad}),
	}
}

func (s *Semaforo) Up(ranura int) {
	si := s.interior.Tomar()
	si.cuenta++
	t := s.plan.TareaActual()
	ti := t.AccesoExclusivo()
	ti.SemaforosAsignados[ranura]--

	if si.cuenta <= 0 {
		var despertada *tarea.TCB
		if len(si.espera) > 0 {
			despertada = si.espera[0]
			si.espera = si.espera[1:]
		}
		t.SoltarAcceso()
		if despertada != nil {
			despertada.Con(func(di *tarea.InteriorTCB) {
				di.SemaforosEsperados[ranura]--
				di.SemaforosAsignados[ranura]++
			})
		}
		s.interior.Soltar()
		if despertada != nil {
			s.plan.Despertar(despertada)
		}
		return
	}

	p := t.DebeProceso()
	p.Con(func(pi *tarea.InteriorPCB) {
		pi.SemaforosDisponibles[ranura]++
	})
	t.SoltarAcceso()
	s.interior.Soltar()
}

func (s *Semaforo) Down(ranura int) {
	si := s.interior.Tomar()
	si.cuenta--
	t := s.plan.TareaActual()
	ti := t.AccesoExclusivo()

	if si.cuenta < 0 {
		si.espera = append(si.espera, t)
		ti.SemaforosEsperados[ranura]++
		t.SoltarAcceso()
		s.interior.Soltar()
		utils.InfoLog.Info(fmt.Sprintf("## %v - Bloqueado por: SEMAFORO %d", t, ranura))
		s.plan.BloquearActual()
		return
	}

	p := t.DebeProceso()
	p.Con(func(pi *tarea.InteriorPCB) {
		pi.SemaforosDisponibles[ranura]--
	})
	ti.SemaforosAsignados[ranura]++
	t.SoltarAcceso()
	s.interior.Soltar()
}

// Cuenta devuelve el valor actual del contador
func (s *Semaforo) Cuenta() int {
	return s.interior.Leer().cuenta
}

// EnEspera cuenta las tareas encoladas
func (s *Semaforo) EnEspera() int {
	return len(s.interior.Leer().espera)
}
