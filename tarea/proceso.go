package tarea

import (
	"fmt"
	"sort"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/vfs"
)

// Cerrojo es un mutex del proceso. La ranura dice a qué vector de recursos
// se imputa la operación.
type Cerrojo interface {
	Lock(ranura int)
	Unlock(ranura int)
}

// SemaforoConteo es un semáforo del proceso
type SemaforoConteo interface {
	Up(ranura int)
	Down(ranura int)
}

// Condicion es una variable de condición del proceso
type Condicion interface {
	Signal()
	Wait(m Cerrojo, ranura int)
}

// InteriorPCB es el estado mutable del proceso, detrás de la celda del PCB
type InteriorPCB struct {
	Nombre  string
	Espacio *memoria.EspacioMemoria
	Padre   int
	Hijos   []*PCB

	Zombie       bool
	CodigoSalida int

	Archivos []vfs.Archivo

	Mutexes     []Cerrojo
	Semaforos   []SemaforoConteo
	Condiciones []Condicion

	MutexDisponibles     []int
	SemaforosDisponibles []int

	// Hilos se indexa por tid; queda nil cuando el hilo fue recolectado
	Hilos      []*TCB
	HilosVivos int
	tids       AsignadorIds
}

// PCB es un proceso: espacio de direcciones, archivos, primitivas y sus hilos
type PCB struct {
	Pid      int
	interior *utils.CeldaExclusiva[InteriorPCB]
}

type tablaProcesos struct {
	porPid  map[int]*PCB
	pids    AsignadorIds
	pidInit int
}

var procesos = utils.NuevaCelda("tabla de procesos", tablaProcesos{
	porPid:  make(map[int]*PCB),
	pidInit: -1,
})

// ReiniciarProcesos vacía la tabla de procesos y el asignador de pids
func ReiniciarProcesos() {
	procesos.Con(func(t *tablaProcesos) {
		*t = tablaProcesos{porPid: make(map[int]*PCB), pidInit: -1}
	})
}

// BuscarPCBPorPID busca un proceso vivo o zombie todavía no recolectado
func BuscarPCBPorPID(pid int) (*PCB, bool) {
	var p *PCB
	var ok bool
	procesos.Con(func(t *tablaProcesos) {
		p, ok = t.porPid[pid]
	})
	return p, ok
}

// ListarProcesos devuelve los procesos de la tabla ordenados por pid
func ListarProcesos() []*PCB {
	var lista []*PCB
	procesos.Con(func(t *tablaProcesos) {
		for _, p := range t.porPid {
			lista = append(lista, p)
		}
	})
	sort.Slice(lista, func(i, j int) bool { return lista[i].Pid < lista[j].Pid })
	return lista
}

// FijarInit marca el proceso que adopta a los huérfanos
func FijarInit(p *PCB) {
	procesos.Con(func(t *tablaProcesos) {
		t.pidInit = p.Pid
	})
}

// ProcesoInit devuelve el proceso que adopta a los huérfanos, si hay
func ProcesoInit() (*PCB, bool) {
	var pid int
	procesos.Con(func(t *tablaProcesos) {
		pid = t.pidInit
	})
	if pid < 0 {
		return nil, false
	}
	return BuscarPCBPorPID(pid)
}

func nuevoPCB(nombre string, espacio *memoria.EspacioMemoria, padre int) *PCB {
	capacidad := config.CapacidadRecursos
	var p *PCB
	procesos.Con(func(t *tablaProcesos) {
		pid := t.pids.Asignar()
		p = &PCB{Pid: pid}
		t.porPid[pid] = p
	})
	p.interior = utils.NuevaCelda(fmt.Sprintf("pcb %d", p.Pid), InteriorPCB{
		Nombre:               nombre,
		Espacio:              espacio,
		Padre:                padre,
		MutexDisponibles:     make([]int, capacidad),
		SemaforosDisponibles: make([]int, capacidad),
	})
	utils.InfoLog.Info(fmt.Sprintf("## (%d:0) Se crea el proceso - Estado: %s", p.Pid, Listo))
	return p
}

// NuevoProceso crea un proceso con su hilo principal sobre un espacio ya cargado.
// padre puede ser nil para un proceso sin padre.
func NuevoProceso(nombre string, espacio *memoria.EspacioMemoria, basePila memoria.DirVirtual,
	archivos []vfs.Archivo, padre *PCB) (*PCB, *TCB, error) {

	pidPadre := -1
	if padre != nil {
		pidPadre = padre.Pid
	}
	p := nuevoPCB(nombre, espacio, pidPadre)
	p.Con(func(i *InteriorPCB) {
		i.Archivos = append(i.Archivos, archivos...)
	})

	hilo, err := NuevoTCB(p, basePila, true)
	if err != nil {
		descartarProceso(p)
		return nil, nil, err
	}
	if padre != nil {
		padre.Con(func(i *InteriorPCB) {
			i.Hijos = append(i.Hijos, p)
		})
	}
	return p, hilo, nil
}

// NuevoProcesoKernel crea un proceso sin hilos con un espacio vacío. El kernel lo
// usa como init: sólo adopta huérfanos.
func NuevoProcesoKernel(nombre string) (*PCB, error) {
	espacio, err := memoria.NuevoEspacioVacio()
	if err != nil {
		return nil, fmt.Errorf("error creando el espacio de %s: %w", nombre, err)
	}
	return nuevoPCB(nombre, espacio, -1), nil
}

// Fork duplica el proceso: espacio copiado, mismos archivos y un único hilo que
// hereda la pila y el contexto de trap del hilo principal.
func (p *PCB) Fork() (*PCB, *TCB, error) {
	padre := p.AccesoExclusivo()
	if padre.HilosVivos > 1 {
		p.SoltarAcceso()
		return nil, nil, fmt.Errorf("fork de un proceso con varios hilos")
	}
	espacio, err := memoria.CopiarDe(padre.Espacio)
	if err != nil {
		p.SoltarAcceso()
		return nil, nil, err
	}
	nombre := padre.Nombre
	archivos := append([]vfs.Archivo(nil), padre.Archivos...)
	principal := padre.Hilos[0]
	p.SoltarAcceso()
	basePila := principal.interior.Leer().Recursos.BasePila

	hijo := nuevoPCB(nombre, espacio, p.Pid)
	hijo.Con(func(i *InteriorPCB) {
		i.Archivos = archivos
	})
	hilo, err := NuevoTCB(hijo, basePila, false)
	if err != nil {
		descartarProceso(hijo)
		return nil, nil, err
	}

	p.Con(func(i *InteriorPCB) {
		i.Hijos = append(i.Hijos, hijo)
	})
	return hijo, hilo, nil
}

// Exec reemplaza el espacio del proceso. El hilo que llama pasa a ser el único y
// recibe una pila y un contexto de trap nuevos.
func (p *PCB) Exec(nombre string, espacio *memoria.EspacioMemoria, basePila memoria.DirVirtual, hilo *TCB) error {
	i := p.AccesoExclusivo()
	if i.HilosVivos > 1 {
		p.SoltarAcceso()
		return fmt.Errorf("exec de un proceso con varios hilos")
	}
	viejo := i.Espacio
	recursos := &RecursosUsuario{Tid: hilo.tid, BasePila: basePila}
	if err := recursos.reservar(espacio); err != nil {
		p.SoltarAcceso()
		return err
	}
	i.Espacio = espacio
	i.Nombre = nombre
	p.SoltarAcceso()

	hilo.Con(func(t *InteriorTCB) {
		t.Recursos = recursos
		t.MarcoTrap = recursos.marcoTrap(espacio)
	})
	viejo.Destruir()
	return nil
}

func (p *PCB) AccesoExclusivo() *InteriorPCB {
	return p.interior.Tomar()
}

func (p *PCB) SoltarAcceso() {
	p.interior.Soltar()
}

func (p *PCB) Con(f func(*InteriorPCB)) {
	p.interior.Con(f)
}

// Token del espacio de direcciones
func (p *PCB) Token() uint64 {
	var token uint64
	p.Con(func(i *InteriorPCB) {
		token = i.Espacio.Token()
	})
	return token
}

func (p *PCB) EsZombie() bool {
	return p.interior.Leer().Zombie
}

// HiloPrincipal devuelve el hilo 0 mientras exista
func (p *PCB) HiloPrincipal() (*TCB, bool) {
	var t *TCB
	p.Con(func(i *InteriorPCB) {
		if len(i.Hilos) > 0 {
			t = i.Hilos[0]
		}
	})
	return t, t != nil
}

func (i *InteriorPCB) agregarHilo(t *TCB) {
	for len(i.Hilos) <= t.tid {
		i.Hilos = append(i.Hilos, nil)
	}
	i.Hilos[t.tid] = t
	i.HilosVivos++
}

// QuitarHilo suelta un hilo terminado y libera su tid y su pila de kernel
func (i *InteriorPCB) QuitarHilo(tid int) {
	t := i.Hilos[tid]
	i.Hilos[tid] = nil
	i.tids.Liberar(tid)
	t.Destruir()
}

// AsignarFd devuelve el menor descriptor libre
func (i *InteriorPCB) AsignarFd() int {
	for fd, a := range i.Archivos {
		if a == nil {
			return fd
		}
	}
	i.Archivos = append(i.Archivos, nil)
	return len(i.Archivos) - 1
}

// AgregarMutex ubica el mutex en la primera ranura libre y lo deja disponible.
// Devuelve false si no quedan ranuras.
func (i *InteriorPCB) AgregarMutex(m Cerrojo) (int, bool) {
	ranura := primeraRanuraLibre(i.Mutexes)
	if ranura >= len(i.MutexDisponibles) {
		return -1, false
	}
	if ranura == len(i.Mutexes) {
		i.Mutexes = append(i.Mutexes, m)
	} else {
		i.Mutexes[ranura] = m
	}
	i.MutexDisponibles[ranura] = 1
	return ranura, true
}

// AgregarSemaforo ubica el semáforo con cantidad instancias disponibles
func (i *InteriorPCB) AgregarSemaforo(s SemaforoConteo, cantidad int) (int, bool) {
	ranura := primeraRanuraLibre(i.Semaforos)
	if ranura >= len(i.SemaforosDisponibles) {
		return -1, false
	}
	if ranura == len(i.Semaforos) {
		i.Semaforos = append(i.Semaforos, s)
	} else {
		i.Semaforos[ranura] = s
	}
	i.SemaforosDisponibles[ranura] = cantidad
	return ranura, true
}

// AgregarCondicion ubica la variable de condición; no lleva contabilidad
func (i *InteriorPCB) AgregarCondicion(c Condicion) int {
	ranura := primeraRanuraLibre(i.Condiciones)
	if ranura == len(i.Condiciones) {
		i.Condiciones = append(i.Condiciones, c)
	} else {
		i.Condiciones[ranura] = c
	}
	return ranura
}

func primeraRanuraLibre[T comparable](ranuras []T) int {
	var vacio T
	for id, r := range ranuras {
		if r == vacio {
			return id
		}
	}
	return len(ranuras)
}

// ResumenProceso es la vista de un proceso para el plano de control
type ResumenProceso struct {
	Pid      int    `json:"pid"`
	Nombre   string `json:"nombre"`
	Padre    int    `json:"padre"`
	Estado   string `json:"estado"`
	Hilos    int    `json:"hilos"`
	Paginas  int    `json:"paginas"`
	Hijos    int    `json:"hijos"`
	Salida   int    `json:"codigo_salida"`
	Archivos int    `json:"archivos_abiertos"`
}

func (p *PCB) Resumen() ResumenProceso {
	var r ResumenProceso
	p.Con(func(i *InteriorPCB) {
		estado := "VIVO"
		if i.Zombie {
			estado = "ZOMBIE"
		}
		abiertos := 0
		for _, a := range i.Archivos {
			if a != nil {
				abiertos++
			}
		}
		r = ResumenProceso{
			Pid:      p.Pid,
			Nombre:   i.Nombre,
			Padre:    i.Padre,
			Estado:   estado,
			Hilos:    i.HilosVivos,
			Paginas:  i.Espacio.PaginasMapeadas(),
			Hijos:    len(i.Hijos),
			Salida:   i.CodigoSalida,
			Archivos: abiertos,
		}
	})
	return r
}

// RecolectarHijo quita de la lista de hijos al primer zombie que coincida con pid
// (-1 acepta cualquiera). Devuelve -1 si no hay ningún hijo que coincida y -2 si
// los que coinciden siguen vivos.
func (p *PCB) RecolectarHijo(pid int) (int, int) {
	var hijo *PCB
	resultado := -1
	p.Con(func(i *InteriorPCB) {
		for idx, h := range i.Hijos {
			if pid != -1 && h.Pid != pid {
				continue
			}
			resultado = -2
			if h.EsZombie() {
				hijo = h
				i.Hijos = append(i.Hijos[:idx], i.Hijos[idx+1:]...)
				break
			}
		}
	})
	if hijo == nil {
		return resultado, 0
	}
	codigo := hijo.interior.Leer().CodigoSalida
	descartarProceso(hijo)
	return hijo.Pid, codigo
}

// descartarProceso saca al proceso de la tabla y libera lo que le quede
func descartarProceso(p *PCB) {
	p.Con(func(i *InteriorPCB) {
		for tid, t := range i.Hilos {
			if t != nil {
				i.QuitarHilo(tid)
			}
		}
		i.Espacio.Destruir()
	})
	procesos.Con(func(t *tablaProcesos) {
		delete(t.porPid, p.Pid)
		t.pids.Liberar(p.Pid)
	})
	utils.InfoLog.Debug("Proceso recolectado", "pid", p.Pid)
}
