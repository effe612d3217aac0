package tarea

import (
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// AdministradorTareas es la cola de listos con selección por stride
type AdministradorTareas struct {
	cola *utils.CeldaExclusiva[[]*TCB]
}

func NuevoAdministradorTareas() *AdministradorTareas {
	return &AdministradorTareas{
		cola: utils.NuevaCelda("cola de listos", []*TCB{}),
	}
}

// Agregar encola al final
func (a *AdministradorTareas) Agregar(t *TCB) {
	a.cola.Con(func(cola *[]*TCB) {
		*cola = append(*cola, t)
	})
}

// Obtener recorre la cola una sola vez quedándose con el menor pass. El candidato
// que pierde vuelve al final; con empate gana el que ya era candidato. Al ganador
// se le suma su stride antes de devolverlo. Cola vacía devuelve nil.
func (a *AdministradorTareas) Obtener() *TCB {
	cola := a.cola.Tomar()
	defer a.cola.Soltar()

	var candidato *TCB
	var passCandidato uint64
	for n := len(*cola); n > 0; n-- {
		nueva := (*cola)[0]
		*cola = (*cola)[1:]
		passNueva := nueva.interior.Leer().Pass

		if candidato == nil {
			candidato, passCandidato = nueva, passNueva
			continue
		}
		if passCandidato > passNueva {
			*cola = append(*cola, candidato)
			candidato, passCandidato = nueva, passNueva
		} else {
			*cola = append(*cola, nueva)
		}
	}

	if candidato != nil {
		candidato.Con(func(i *InteriorTCB) {
			i.Pass += i.Stride
		})
	}
	return candidato
}

// Remover saca a la tarea de la cola si estaba
func (a *AdministradorTareas) Remover(t *TCB) bool {
	encontrada := false
	a.cola.Con(func(cola *[]*TCB) {
		for i, enCola := range *cola {
			if enCola == t {
				*cola = append((*cola)[:i], (*cola)[i+1:]...)
				encontrada = true
				return
			}
		}
	})
	return encontrada
}

// Listos cuenta las tareas en cola
func (a *AdministradorTareas) Listos() int {
	return len(a.cola.Leer())
}

// Cola devuelve una copia de la cola en orden
func (a *AdministradorTareas) Cola() []*TCB {
	var copia []*TCB
	a.cola.Con(func(cola *[]*TCB) {
		copia = append(copia, *cola...)
	})
	return copia
}
