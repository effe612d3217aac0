package vfs

import (
	"io"
	"sync"
)

// FlagsApertura son los flags de open
type FlagsApertura uint32

const (
	SoloLectura      FlagsApertura = 0
	SoloEscritura    FlagsApertura = 1 << 0
	LecturaEscritura FlagsApertura = 1 << 1
	Crear            FlagsApertura = 1 << 9
	Truncar          FlagsApertura = 1 << 10
)

// LecturaEscrituraPermitidas decodifica el modo de acceso
func (f FlagsApertura) LecturaEscrituraPermitidas() (legible, escribible bool) {
	switch {
	case f&SoloEscritura != 0:
		return false, true
	case f&LecturaEscritura != 0:
		return true, true
	default:
		return true, false
	}
}

// ArchivoInodo es un inodo abierto con su desplazamiento
type ArchivoInodo struct {
	legible    bool
	escribible bool

	mu             sync.Mutex
	desplazamiento int
	inodo          Inodo
}

func NuevoArchivoInodo(legible, escribible bool, inodo Inodo) *ArchivoInodo {
	return &ArchivoInodo{legible: legible, escribible: escribible, inodo: inodo}
}

// AbrirArchivo busca nombre en el directorio. Con Crear lo crea si no existe y,
// si existe, lo vacía. Con Truncar vacía uno existente.
func AbrirArchivo(raiz Inodo, nombre string, flags FlagsApertura) (*ArchivoInodo, bool) {
	legible, escribible := flags.LecturaEscrituraPermitidas()
	if flags&Crear != 0 {
		if inodo, ok := raiz.Buscar(nombre); ok {
			inodo.Limpiar()
			return NuevoArchivoInodo(legible, escribible, inodo), true
		}
		inodo, ok := raiz.Crear(nombre)
		if !ok {
			return nil, false
		}
		return NuevoArchivoInodo(legible, escribible, inodo), true
	}

	inodo, ok := raiz.Buscar(nombre)
	if !ok {
		return nil, false
	}
	if flags&Truncar != 0 {
		inodo.Limpiar()
	}
	return NuevoArchivoInodo(legible, escribible, inodo), true
}

func (a *ArchivoInodo) Legible() bool    { return a.legible }
func (a *ArchivoInodo) Escribible() bool { return a.escribible }

func (a *ArchivoInodo) Leer(destino Buffer) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf := make([]byte, destino.Len())
	n := a.inodo.LeerEn(a.desplazamiento, buf)
	a.desplazamiento += n
	return destino.Write(buf[:n])
}

func (a *ArchivoInodo) Escribir(origen Buffer) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf := make([]byte, origen.Len())
	if _, err := io.ReadFull(origen, buf); err != nil {
		return 0, err
	}
	n := a.inodo.EscribirEn(a.desplazamiento, buf)
	a.desplazamiento += n
	return n, nil
}

// Stdin lee de la consola de a un byte por llamada. Mientras no llegue nada
// llama a Esperar, que cede el hart; sin Esperar se bloquea en el canal.
type Stdin struct {
	Fuente  <-chan byte
	Esperar func()
}

func (Stdin) Legible() bool    { return true }
func (Stdin) Escribible() bool { return false }

func (s Stdin) Leer(destino Buffer) (int, error) {
	if destino.Len() == 0 {
		return 0, nil
	}
	for {
		if s.Esperar == nil {
			c, ok := <-s.Fuente
			if !ok {
				return 0, io.EOF
			}
			return destino.Write([]byte{c})
		}
		select {
		case c, ok := <-s.Fuente:
			if !ok {
				return 0, io.EOF
			}
			return destino.Write([]byte{c})
		default:
			s.Esperar()
		}
	}
}

func (Stdin) Escribir(Buffer) (int, error) {
	return 0, io.ErrClosedPipe
}

// LeerConsola reparte de a un byte lo que llegue de r. El canal se cierra con
// el primer error de lectura.
func LeerConsola(r io.Reader) <-chan byte {
	salida := make(chan byte, 256)
	go func() {
		defer close(salida)
		var c [1]byte
		for {
			n, err := r.Read(c[:])
			if n > 0 {
				salida <- c[0]
			}
			if err != nil {
				return
			}
		}
	}()
	return salida
}

// Stdout escribe en la consola todo el buffer
type Stdout struct {
	Destino io.Writer
}

func (Stdout) Legible() bool    { return false }
func (Stdout) Escribible() bool { return true }

func (Stdout) Leer(Buffer) (int, error) {
	return 0, io.ErrClosedPipe
}

func (s Stdout) Escribir(origen Buffer) (int, error) {
	n, err := io.Copy(s.Destino, origen)
	return int(n), err
}
