package tarea

import (
	"errors"
	"fmt"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

type EstadoTarea uint32

const (
	Listo EstadoTarea = iota
	Corriendo
	Bloqueado
	Terminado
)

func (e EstadoTarea) String() string {
	switch e {
	case Listo:
		return "READY"
	case Corriendo:
		return "EXEC"
	case Bloqueado:
		return "BLOCKED"
	case Terminado:
		return "EXIT"
	default:
		return fmt.Sprintf("ESTADO(%d)", uint32(e))
	}
}

const (
	BigStride          uint64 = 65536
	PrioridadMinima           = 2
	MaxLlamadasSistema        = 500
)

var ErrPrioridadInvalida = errors.New("prioridad menor a la mínima")

// Configuracion son los parámetros de planificación que vienen del archivo del kernel
type Configuracion struct {
	PrioridadInicial  int
	CapacidadRecursos int
}

var config = Configuracion{PrioridadInicial: 16, CapacidadRecursos: 20}

// Configurar reemplaza los parámetros. Valores inválidos quedan en los de fábrica.
func Configurar(c Configuracion) {
	if c.PrioridadInicial >= PrioridadMinima {
		config.PrioridadInicial = c.PrioridadInicial
	}
	if c.CapacidadRecursos > 0 {
		config.CapacidadRecursos = c.CapacidadRecursos
	}
}

// CapacidadRecursos es la cantidad de ranuras de mutex y de semáforo por proceso
func CapacidadRecursos() int {
	return config.CapacidadRecursos
}

// InteriorTCB es el estado mutable de la tarea, detrás de la celda del TCB
type InteriorTCB struct {
	Recursos  *RecursosUsuario
	MarcoTrap memoria.NumPaginaFisica
	Contexto  ContextoTarea
	Estado    EstadoTarea

	CodigoSalida int
	Finalizada   bool

	Pass   uint64
	Stride uint64

	// vectores de asignación y espera indexados por ranura
	MutexAsignados     []int
	MutexEsperados     []int
	SemaforosAsignados []int
	SemaforosEsperados []int

	LlamadasSistema [MaxLlamadasSistema]uint32
	PrimerDespacho  time.Time
}

// TCB es una unidad planificable: un hilo de un proceso
type TCB struct {
	tid        int
	pid        int
	pilaKernel *memoria.Marco
	interior   *utils.CeldaExclusiva[InteriorTCB]

	// control del hart; sólo los toca quien lo tiene
	reanudar chan struct{}
	cuerpo   func()
	lanzada  bool
	relanzar bool
	muerta   bool
}

// NuevoTCB crea un hilo del proceso. Con reservarRecursos mapea su pila y su
// contexto de trap; sin él los hereda ya mapeados (fork copia el espacio entero).
func NuevoTCB(proceso *PCB, basePila memoria.DirVirtual, reservarRecursos bool) (*TCB, error) {
	p := proceso.AccesoExclusivo()
	tid := p.tids.Asignar()
	recursos := &RecursosUsuario{Tid: tid, BasePila: basePila}
	if reservarRecursos {
		if err := recursos.reservar(p.Espacio); err != nil {
			p.tids.Liberar(tid)
			proceso.SoltarAcceso()
			return nil, err
		}
	}
	marcoTrap := recursos.marcoTrap(p.Espacio)
	proceso.SoltarAcceso()

	pila, err := memoria.AsignarMarco()
	if err != nil {
		proceso.Con(func(p *InteriorPCB) {
			if reservarRecursos {
				recursos.liberar(p.Espacio)
			}
			p.tids.Liberar(tid)
		})
		return nil, fmt.Errorf("error reservando pila de kernel: %w", err)
	}

	capacidad := config.CapacidadRecursos
	t := &TCB{
		tid:        tid,
		pid:        proceso.Pid,
		pilaKernel: pila,
		reanudar:   make(chan struct{}),
	}
	t.interior = utils.NuevaCelda(fmt.Sprintf("tcb %d:%d", proceso.Pid, tid), InteriorTCB{
		Recursos:           recursos,
		MarcoTrap:          marcoTrap,
		Contexto:           NuevoContextoRetornoTrap(t.TopePilaKernel()),
		Estado:             Listo,
		Stride:             BigStride / uint64(config.PrioridadInicial),
		MutexAsignados:     make([]int, capacidad),
		MutexEsperados:     make([]int, capacidad),
		SemaforosAsignados: make([]int, capacidad),
		SemaforosEsperados: make([]int, capacidad),
	})
	proceso.Con(func(p *InteriorPCB) {
		p.agregarHilo(t)
	})
	return t, nil
}

func (t *TCB) Tid() int { return t.tid }
func (t *TCB) Pid() int { return t.pid }

func (t *TCB) String() string {
	return fmt.Sprintf("(%d:%d)", t.pid, t.tid)
}

// Proceso resuelve la referencia débil al proceso dueño. Falla si el proceso ya
// fue recolectado.
func (t *TCB) Proceso() (*PCB, bool) {
	return BuscarPCBPorPID(t.pid)
}

// DebeProceso es Proceso para caminos donde el proceso no puede faltar
func (t *TCB) DebeProceso() *PCB {
	p, ok := t.Proceso()
	if !ok {
		panic(fmt.Sprintf("tarea %v sin proceso", t))
	}
	return p
}

// TopePilaKernel es la dirección física del tope de la pila de kernel
func (t *TCB) TopePilaKernel() uint64 {
	return uint64(t.pilaKernel.PPN.Dir()) + memoria.TamPagina
}

// AccesoExclusivo toma la celda de la tarea. Debe soltarse antes de suspender.
func (t *TCB) AccesoExclusivo() *InteriorTCB {
	return t.interior.Tomar()
}

func (t *TCB) SoltarAcceso() {
	t.interior.Soltar()
}

// Con ejecuta f con la celda de la tarea tomada
func (t *TCB) Con(f func(*InteriorTCB)) {
	t.interior.Con(f)
}

// Estado devuelve el estado actual
func (t *TCB) Estado() EstadoTarea {
	return t.interior.Leer().Estado
}

// MarcoTrap devuelve el marco físico del contexto de trap
func (t *TCB) MarcoTrap() memoria.NumPaginaFisica {
	return t.interior.Leer().MarcoTrap
}

// ContextoTrap lee el contexto de trap del hilo
func (t *TCB) ContextoTrap() ContextoTrap {
	return LeerContextoTrap(t.MarcoTrap())
}

// GuardarContextoTrap escribe el contexto de trap del hilo
func (t *TCB) GuardarContextoTrap(cx ContextoTrap) {
	EscribirContextoTrap(t.MarcoTrap(), cx)
}

// FijarCuerpo indica qué corre la tarea cuando obtiene el hart por primera vez
func (t *TCB) FijarCuerpo(cuerpo func()) {
	t.cuerpo = cuerpo
}

// FijarPrioridad recalcula el stride. Rechaza prioridades menores a PrioridadMinima
// sin tocar el stride vigente.
func (t *TCB) FijarPrioridad(prioridad int) error {
	if prioridad < PrioridadMinima {
		return fmt.Errorf("%w: %d", ErrPrioridadInvalida, prioridad)
	}
	t.Con(func(i *InteriorTCB) {
		i.Stride = BigStride / uint64(prioridad)
	})
	return nil
}

// ContarLlamada suma una invocación al contador de la syscall
func (t *TCB) ContarLlamada(id int) {
	if id < 0 || id >= MaxLlamadasSistema {
		return
	}
	t.Con(func(i *InteriorTCB) {
		i.LlamadasSistema[id]++
	})
}

// cambiarEstado registra la transición. Se llama con la celda tomada.
func (t *TCB) cambiarEstado(i *InteriorTCB, nuevo EstadoTarea) {
	if i.Estado == nuevo {
		return
	}
	utils.InfoLog.Debug(fmt.Sprintf("%v - Pasa del estado %s al estado %s", t, i.Estado, nuevo))
	i.Estado = nuevo
}

// liberarRecursosUsuario desmapea la pila y el contexto de trap del hilo
func (t *TCB) liberarRecursosUsuario(proceso *PCB) {
	t.Con(func(i *InteriorTCB) {
		if i.Recursos == nil {
			return
		}
		proceso.Con(func(p *InteriorPCB) {
			i.Recursos.liberar(p.Espacio)
		})
		i.Recursos = nil
	})
}

// Destruir libera la pila de kernel. Lo hace el proceso al soltar el hilo.
func (t *TCB) Destruir() {
	if t.pilaKernel != nil {
		t.pilaKernel.Liberar()
		t.pilaKernel = nil
	}
}
