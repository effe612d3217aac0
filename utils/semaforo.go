package utils

// Semaforo implementa un semáforo contador con canales.
// En el kernel controla el grado de multiprogramación: cada proceso vivo
// ocupa un lugar hasta que termina.
type Semaforo struct {
	c chan struct{}
}

// NewSemaforo crea un semáforo con capacidad inicial
func NewSemaforo(capacidad int) *Semaforo {
	if capacidad <= 0 {
		capacidad = 1
	}
	return &Semaforo{
		c: make(chan struct{}, capacidad),
	}
}

// TryWait intenta ocupar un lugar sin bloquear
func (s *Semaforo) TryWait() bool {
	select {
	case s.c <- struct{}{}:
		return true
	default:
		return false
	}
}

// Signal (V) libera un lugar. Devuelve false si no había ninguno ocupado.
func (s *Semaforo) Signal() bool {
	select {
	case <-s.c:
		return true
	default:
		return false
	}
}

// Ocupados devuelve cuántos lugares están tomados
func (s *Semaforo) Ocupados() int {
	return len(s.c)
}

// Capacidad devuelve el total de lugares
func (s *Semaforo) Capacidad() int {
	return cap(s.c)
}
