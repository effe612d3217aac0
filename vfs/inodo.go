// Package vfs define la interfaz de nodos que el kernel consume y los archivos
// abiertos que cuelgan de la tabla de descriptores de cada proceso.
package vfs

import "io"

// Inodo es un nodo de un sistema de archivos. Los directorios implementan
// Buscar, Crear y Listar; los archivos LeerEn, EscribirEn y Limpiar.
type Inodo interface {
	Buscar(nombre string) (Inodo, bool)
	Crear(nombre string) (Inodo, bool)
	Listar() []string
	LeerEn(desplazamiento int, buf []byte) int
	EscribirEn(desplazamiento int, buf []byte) int
	Limpiar()
}

// Buffer es memoria de usuario ya traducida: se lee y se escribe de corrido
type Buffer interface {
	io.Reader
	io.Writer
	Len() int
}

// Archivo es una entrada de la tabla de descriptores
type Archivo interface {
	Legible() bool
	Escribible() bool
	// Leer copia del archivo hacia el buffer de usuario
	Leer(destino Buffer) (int, error)
	// Escribir copia del buffer de usuario hacia el archivo
	Escribir(origen Buffer) (int, error)
}
