package nucleo

import (
	"sort"
	"sync"
)

// Programa es una imagen ejecutable. Corre en modo usuario y sólo entra al
// kernel a través de u. Volver de la función equivale a exit(0).
type Programa func(u *Usuario)

// Registro guarda las imágenes que exec y spawn pueden cargar por nombre
type Registro struct {
	mu       sync.RWMutex
	imagenes map[string]Programa
}

func NuevoRegistro() *Registro {
	return &Registro{imagenes: make(map[string]Programa)}
}

// Registrar agrega o reemplaza una imagen
func (r *Registro) Registrar(nombre string, programa Programa) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imagenes[nombre] = programa
}

func (r *Registro) Buscar(nombre string) (Programa, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.imagenes[nombre]
	return p, ok
}

// Nombres lista las imágenes registradas en orden alfabético
func (r *Registro) Nombres() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nombres := make([]string, 0, len(r.imagenes))
	for nombre := range r.imagenes {
		nombres = append(nombres, nombre)
	}
	sort.Strings(nombres)
	return nombres
}
