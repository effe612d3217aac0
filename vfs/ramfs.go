package vfs

import (
	"sync"
	"sync/atomic"
	"time"
)

// RamFs es un sistema de archivos en memoria de un solo nivel
type RamFs struct {
	proximoInodo atomic.Int64
	cantidad     atomic.Int64
	raiz         *DirectorioRam
	unaVez       sync.Once
}

func NuevoRamFs() *RamFs {
	return &RamFs{}
}

// Raiz devuelve el directorio raíz, creándolo la primera vez
func (fs *RamFs) Raiz() *DirectorioRam {
	fs.unaVez.Do(func() {
		fs.raiz = &DirectorioRam{id: fs.asignarInodo(), nombre: "/", fs: fs, creado: time.Now()}
	})
	return fs.raiz
}

// Inodos cuenta los nodos creados
func (fs *RamFs) Inodos() int {
	return int(fs.cantidad.Load())
}

func (fs *RamFs) asignarInodo() int {
	fs.cantidad.Add(1)
	return int(fs.proximoInodo.Add(1) - 1)
}

// DirectorioRam guarda sus archivos en orden de creación
type DirectorioRam struct {
	id     int
	nombre string
	fs     *RamFs
	creado time.Time

	mu    sync.Mutex
	hijos []*ArchivoRam
}

func (d *DirectorioRam) Nombre() string    { return d.nombre }
func (d *DirectorioRam) Id() int           { return d.id }
func (d *DirectorioRam) Creado() time.Time { return d.creado }

func (d *DirectorioRam) Buscar(nombre string) (Inodo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.hijos {
		if h.nombre == nombre {
			return h, true
		}
	}
	return nil, false
}

// Crear agrega un archivo vacío. No controla nombres repetidos: Buscar devuelve el primero.
func (d *DirectorioRam) Crear(nombre string) (Inodo, bool) {
	h := &ArchivoRam{id: d.fs.asignarInodo(), nombre: nombre, creado: time.Now()}
	d.mu.Lock()
	d.hijos = append(d.hijos, h)
	d.mu.Unlock()
	return h, true
}

func (d *DirectorioRam) Listar() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	nombres := make([]string, 0, len(d.hijos))
	for _, h := range d.hijos {
		nombres = append(nombres, h.nombre)
	}
	return nombres
}

func (d *DirectorioRam) LeerEn(int, []byte) int     { return 0 }
func (d *DirectorioRam) EscribirEn(int, []byte) int { return 0 }

// Limpiar borra todos los archivos del directorio
func (d *DirectorioRam) Limpiar() {
	d.mu.Lock()
	d.hijos = nil
	d.mu.Unlock()
}

// ArchivoRam es un archivo regular con su contenido en memoria
type ArchivoRam struct {
	id     int
	nombre string
	creado time.Time

	mu        sync.Mutex
	contenido []byte
}

func (a *ArchivoRam) Nombre() string    { return a.nombre }
func (a *ArchivoRam) Id() int           { return a.id }
func (a *ArchivoRam) Creado() time.Time { return a.creado }

func (a *ArchivoRam) Buscar(string) (Inodo, bool) { return nil, false }
func (a *ArchivoRam) Crear(string) (Inodo, bool)  { return nil, false }
func (a *ArchivoRam) Listar() []string            { return nil }

// LeerEn copia desde desplazamiento hasta llenar buf o llegar al final
func (a *ArchivoRam) LeerEn(desplazamiento int, buf []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if desplazamiento >= len(a.contenido) {
		return 0
	}
	return copy(buf, a.contenido[desplazamiento:])
}

// EscribirEn extiende el archivo con ceros si hace falta
func (a *ArchivoRam) EscribirEn(desplazamiento int, buf []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if fin := desplazamiento + len(buf); fin > len(a.contenido) {
		a.contenido = append(a.contenido, make([]byte, fin-len(a.contenido))...)
	}
	return copy(a.contenido[desplazamiento:], buf)
}

func (a *ArchivoRam) Limpiar() {
	a.mu.Lock()
	a.contenido = nil
	a.mu.Unlock()
}

// Tamanio devuelve el largo actual del contenido
func (a *ArchivoRam) Tamanio() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.contenido)
}
