package sincro

import (
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Condvar es una variable de condición con cola FIFO
type Condvar struct {
	plan   Planificador
	espera *utils.CeldaExclusiva[[]*tarea.TCB]
}

func NuevaCondvar(plan Planificador) *Condvar {
	return &Condvar{
		plan:   plan,
		espera: utils.NuevaCelda("condvar", []*tarea.TCB{}),
	}
}

// Signal despierta a la tarea que espera hace más tiempo, si hay alguna
func (c *Condvar) Signal() {
	var despertada *tarea.TCB
	c.espera.Con(func(espera *[]*tarea.TCB) {
		if len(*espera) > 0 {
			despertada = (*espera)[0]
			*espera = (*espera)[1:]
		}
	})
	if despertada != nil {
		c.plan.Despertar(despertada)
	}
}

// Wait suelta el mutex, se bloquea hasta un Signal y lo vuelve a tomar
func (c *Condvar) Wait(m tarea.Cerrojo, ranura int) {
	m.Unlock(ranura)
	t := c.plan.TareaActual()
	c.espera.Con(func(espera *[]*tarea.TCB) {
		*espera = append(*espera, t)
	})
	c.plan.BloquearActual()
	m.Lock(ranura)
}

// EnEspera cuenta las tareas encoladas
func (c *Condvar) EnEspera() int {
	return len(c.espera.Leer())
}
