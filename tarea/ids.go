package tarea

import "fmt"

// AsignadorIds entrega enteros chicos reutilizando los liberados
type AsignadorIds struct {
	siguiente  int
	reciclados []int
}

// Asignar devuelve el último id liberado o uno nuevo
func (a *AsignadorIds) Asignar() int {
	if n := len(a.reciclados); n > 0 {
		id := a.reciclados[n-1]
		a.reciclados = a.reciclados[:n-1]
		return id
	}
	id := a.siguiente
	a.siguiente++
	return id
}

// Liberar devuelve un id. Liberar uno que no fue asignado es un error del kernel.
func (a *AsignadorIds) Liberar(id int) {
	if id < 0 || id >= a.siguiente {
		panic(fmt.Sprintf("id %d nunca fue asignado", id))
	}
	for _, r := range a.reciclados {
		if r == id {
			panic(fmt.Sprintf("id %d liberado dos veces", id))
		}
	}
	a.reciclados = append(a.reciclados, id)
}

// EnUso cuenta los ids vigentes
func (a *AsignadorIds) EnUso() int {
	return a.siguiente - len(a.reciclados)
}
