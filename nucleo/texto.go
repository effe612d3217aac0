package nucleo

import (
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Distribución del espacio de usuario
const (
	// DirTexto es el punto de entrada de toda imagen
	DirTexto memoria.DirVirtual = 0x1000
	// DirPilaBase es la base de las pilas de los hilos
	DirPilaBase memoria.DirVirtual = 0x8000_0000

	pasoInstruccion = 8
)

// tablaTexto asocia direcciones de código a funciones Go. Las direcciones son
// simbólicas: sólo la de entrada cae dentro de la página de texto mapeada.
type tablaTexto struct {
	siguiente uint64
	entradas  map[uint64]Programa
}

func nuevaTablaTexto(entrada Programa) *tablaTexto {
	return &tablaTexto{
		siguiente: uint64(DirTexto) + pasoInstruccion,
		entradas:  map[uint64]Programa{uint64(DirTexto): entrada},
	}
}

func (t *tablaTexto) copiar() *tablaTexto {
	copia := &tablaTexto{siguiente: t.siguiente, entradas: make(map[uint64]Programa, len(t.entradas))}
	for dir, p := range t.entradas {
		copia.entradas[dir] = p
	}
	return copia
}

// textos guarda la tabla de cada proceso por pid
type textos struct {
	porPid *utils.CeldaExclusiva[map[int]*tablaTexto]
}

func nuevosTextos() *textos {
	return &textos{porPid: utils.NuevaCelda("tablas de texto", map[int]*tablaTexto{})}
}

func (t *textos) fijar(pid int, tabla *tablaTexto) {
	t.porPid.Con(func(m *map[int]*tablaTexto) { (*m)[pid] = tabla })
}

func (t *textos) olvidar(pid int) {
	t.porPid.Con(func(m *map[int]*tablaTexto) { delete(*m, pid) })
}

// copiar le da al proceso destino una copia de la tabla del origen
func (t *textos) copiar(origen, destino int) {
	t.porPid.Con(func(m *map[int]*tablaTexto) {
		if tabla, ok := (*m)[origen]; ok {
			(*m)[destino] = tabla.copiar()
		}
	})
}

// registrar ubica f en una dirección nueva del proceso y la devuelve. Cero si
// el proceso no tiene tabla.
func (t *textos) registrar(pid int, f Programa) uint64 {
	var dir uint64
	t.porPid.Con(func(m *map[int]*tablaTexto) {
		tabla, ok := (*m)[pid]
		if !ok {
			return
		}
		dir = tabla.siguiente
		tabla.siguiente += pasoInstruccion
		tabla.entradas[dir] = f
	})
	return dir
}

func (t *textos) buscar(pid int, dir uint64) (Programa, bool) {
	var p Programa
	var ok bool
	t.porPid.Con(func(m *map[int]*tablaTexto) {
		if tabla, existe := (*m)[pid]; existe {
			p, ok = tabla.entradas[dir]
		}
	})
	return p, ok
}
