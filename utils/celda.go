package utils

import (
	"fmt"
	"sync"
)

// CeldaExclusiva envuelve estado del kernel que sólo un camino puede tocar a la vez.
// Con un único hart nunca debería haber contención: si Tomar encuentra la celda
// ocupada es un acceso re-entrante y el kernel entra en pánico en lugar de
// quedarse bloqueado para siempre.
type CeldaExclusiva[T any] struct {
	mu     sync.Mutex
	nombre string
	valor  T
}

// NuevaCelda crea una celda con su valor inicial
func NuevaCelda[T any](nombre string, valor T) *CeldaExclusiva[T] {
	return &CeldaExclusiva[T]{nombre: nombre, valor: valor}
}

// Tomar devuelve acceso exclusivo al valor. Debe liberarse con Soltar.
func (c *CeldaExclusiva[T]) Tomar() *T {
	if !c.mu.TryLock() {
		panic(fmt.Sprintf("celda %q: acceso re-entrante", c.nombre))
	}
	return &c.valor
}

// Soltar libera la celda tomada
func (c *CeldaExclusiva[T]) Soltar() {
	c.mu.Unlock()
}

// Con ejecuta f con la celda tomada y la libera al terminar.
// f no puede suspender la tarea actual.
func (c *CeldaExclusiva[T]) Con(f func(v *T)) {
	v := c.Tomar()
	defer c.Soltar()
	f(v)
}

// Leer copia el valor actual bajo la celda
func (c *CeldaExclusiva[T]) Leer() T {
	v := c.Tomar()
	defer c.Soltar()
	return *v
}
