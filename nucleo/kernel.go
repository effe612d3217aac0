// Package nucleo arma el kernel sobre tarea, sincro, memoria y vfs: carga de
// imágenes, despacho de syscalls y el acceso de los programas de usuario a su
// memoria.
package nucleo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/vfs"
)

var (
	ErrMultiprogramacion   = errors.New("grado de multiprogramación alcanzado")
	ErrProgramaInexistente = errors.New("programa no registrado")
	ErrProcesoInexistente  = errors.New("proceso inexistente")
)

// Config son los parámetros del kernel. Entrada y Salida son la consola.
type Config struct {
	Quantum                time.Duration
	GradoMultiprogramacion int
	DirDump                string
	Entrada                io.Reader
	Salida                 io.Writer
}

// Kernel es el núcleo completo sobre un único hart. La tabla de procesos es
// global, así que no puede haber dos kernels vivos a la vez.
type Kernel struct {
	proc     *tarea.Procesador
	registro *Registro
	textos   *textos
	raiz     vfs.Inodo
	stdin    vfs.Archivo
	stdout   vfs.Archivo
	admision *utils.Semaforo
	init     *tarea.PCB
	dirDump  string
	arranque time.Time
}

// NuevoKernel crea el hart y el proceso init. La memoria física tiene que estar
// inicializada.
func NuevoKernel(cfg Config, registro *Registro) (*Kernel, error) {
	k := &Kernel{
		proc:     tarea.NuevoProcesador(tarea.NuevoAdministradorTareas(), cfg.Quantum),
		registro: registro,
		textos:   nuevosTextos(),
		raiz:     vfs.NuevoRamFs().Raiz(),
		admision: utils.NewSemaforo(cfg.GradoMultiprogramacion),
		dirDump:  cfg.DirDump,
		arranque: time.Now(),
	}

	var consola <-chan byte
	if cfg.Entrada != nil {
		consola = vfs.LeerConsola(cfg.Entrada)
	} else {
		vacia := make(chan byte)
		close(vacia)
		consola = vacia
	}
	salida := cfg.Salida
	if salida == nil {
		salida = io.Discard
	}
	k.stdin = vfs.Stdin{Fuente: consola, Esperar: k.proc.SuspenderActual}
	k.stdout = vfs.Stdout{Destino: salida}

	init, err := tarea.NuevoProcesoKernel("init")
	if err != nil {
		return nil, err
	}
	tarea.FijarInit(init)
	k.init = init
	k.proc.AlTerminarProceso = k.alTerminarProceso

	utils.InfoLog.Info("Kernel inicializado",
		"quantum", cfg.Quantum.String(),
		"multiprogramacion", k.admision.Capacidad(),
		"programas", len(registro.Nombres()))
	return k, nil
}

func (k *Kernel) Procesador() *tarea.Procesador { return k.proc }
func (k *Kernel) Init() *tarea.PCB              { return k.init }
func (k *Kernel) Raiz() vfs.Inodo               { return k.raiz }
func (k *Kernel) Programas() []string           { return k.registro.Nombres() }

// Correr despacha hasta que se cancele ctx
func (k *Kernel) Correr(ctx context.Context) error {
	return k.proc.Correr(ctx)
}

// CorrerHastaInactivo despacha hasta que no quede ninguna tarea lista
func (k *Kernel) CorrerHastaInactivo() {
	k.proc.CorrerHastaInactivo()
}

// IniciarProceso crea desde afuera del hart un proceso hijo de init
func (k *Kernel) IniciarProceso(ctx context.Context, nombre string) (int, error) {
	pid := -1
	var err error
	if errHart := k.proc.Ejecutar(ctx, func() { pid, err = k.Iniciar(nombre) }); errHart != nil {
		return -1, errHart
	}
	return pid, err
}

// Iniciar es IniciarProceso para cuando el hart está detenido o ya se corre en él
func (k *Kernel) Iniciar(nombre string) (int, error) {
	programa, ok := k.registro.Buscar(nombre)
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrProgramaInexistente, nombre)
	}
	p, err := k.crearProceso(nombre, programa, k.init)
	if err != nil {
		return -1, err
	}
	return p.Pid, nil
}

// ListarProcesos devuelve el resumen de la tabla de procesos tomado en el hart
func (k *Kernel) ListarProcesos(ctx context.Context) ([]tarea.ResumenProceso, error) {
	var lista []tarea.ResumenProceso
	if err := k.proc.Ejecutar(ctx, func() { lista = k.Procesos() }); err != nil {
		return nil, err
	}
	return lista, nil
}

func (k *Kernel) Procesos() []tarea.ResumenProceso {
	var lista []tarea.ResumenProceso
	for _, p := range tarea.ListarProcesos() {
		lista = append(lista, p.Resumen())
	}
	return lista
}

// EspacioLibre cuenta los marcos libres en el hart; el asignador no admite
// accesos concurrentes
func (k *Kernel) EspacioLibre(ctx context.Context) (libres, total int, err error) {
	err = k.proc.Ejecutar(ctx, func() {
		libres, total = memoria.ContarMarcosLibres(), memoria.TotalMarcos()
	})
	return libres, total, err
}

// DumpMemory vuelca el espacio de un proceso desde afuera del hart
func (k *Kernel) DumpMemory(ctx context.Context, pid int) (string, error) {
	var ruta string
	var err error
	if errHart := k.proc.Ejecutar(ctx, func() { ruta, err = k.Dump(pid) }); errHart != nil {
		return "", errHart
	}
	return ruta, err
}

// Dump vuelca el espacio del proceso pid en el directorio de dumps
func (k *Kernel) Dump(pid int) (string, error) {
	p, ok := tarea.BuscarPCBPorPID(pid)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrProcesoInexistente, pid)
	}
	var ruta string
	var err error
	p.Con(func(i *tarea.InteriorPCB) {
		ruta, err = memoria.CrearMemoryDump(i.Espacio, pid, k.dirDump)
	})
	return ruta, err
}

// crearProceso carga la imagen en un proceso nuevo hijo de padre y lo deja listo
func (k *Kernel) crearProceso(nombre string, programa Programa, padre *tarea.PCB) (*tarea.PCB, error) {
	if !k.admision.TryWait() {
		utils.InfoLog.Warn("Grado de multiprogramación completo", "programa", nombre,
			"ocupados", k.admision.Ocupados(), "capacidad", k.admision.Capacidad())
		return nil, ErrMultiprogramacion
	}
	espacio, err := cargarImagen(nombre)
	if err != nil {
		k.admision.Signal()
		return nil, err
	}
	p, hilo, err := tarea.NuevoProceso(nombre, espacio, DirPilaBase, k.archivosEstandar(), padre)
	if err != nil {
		k.admision.Signal()
		return nil, err
	}
	k.textos.fijar(p.Pid, nuevaTablaTexto(programa))
	k.prepararHilo(hilo, uint64(DirTexto), 0)
	k.proc.Agregar(hilo)
	return p, nil
}

// cargarImagen arma un espacio con la página de texto. La página guarda el
// nombre de la imagen; el código son funciones Go.
func cargarImagen(nombre string) (*memoria.EspacioMemoria, error) {
	espacio, err := memoria.NuevoEspacioVacio()
	if err != nil {
		return nil, err
	}
	if _, err := espacio.InsertarAreaMarcos(DirTexto, DirTexto+memoria.TamPagina,
		memoria.PermisoR|memoria.PermisoX|memoria.PermisoU); err != nil {
		espacio.Destruir()
		return nil, fmt.Errorf("error cargando %s: %w", nombre, err)
	}
	etiqueta := []byte(nombre)
	if len(etiqueta) > memoria.TamPagina {
		etiqueta = etiqueta[:memoria.TamPagina]
	}
	if err := memoria.EscribirBytesEnUsuario(espacio.Token(), DirTexto, etiqueta); err != nil {
		espacio.Destruir()
		return nil, err
	}
	return espacio, nil
}

func (k *Kernel) archivosEstandar() []vfs.Archivo {
	return []vfs.Archivo{k.stdin, k.stdout, k.stdout}
}

// prepararHilo deja el contexto de trap para entrar a modo usuario en entrada
// con argumento en a0
func (k *Kernel) prepararHilo(hilo *tarea.TCB, entrada, argumento uint64) {
	var tope memoria.DirVirtual
	hilo.Con(func(i *tarea.InteriorTCB) { tope = i.Recursos.TopePila() })
	cx := tarea.NuevoContextoTrapUsuario(entrada, uint64(tope), hilo.TopePilaKernel())
	cx.X[tarea.RegA0] = argumento
	hilo.GuardarContextoTrap(cx)
	hilo.FijarCuerpo(k.cuerpoUsuario(hilo))
}

// cuerpoUsuario salta a la dirección de sepc. Una dirección sin código es una
// falla de instrucción.
func (k *Kernel) cuerpoUsuario(hilo *tarea.TCB) func() {
	return func() {
		cx := hilo.ContextoTrap()
		u := k.nuevoUsuario(hilo, cx.X[tarea.RegA0])
		programa, ok := k.textos.buscar(hilo.Pid(), cx.Sepc)
		if !ok {
			u.fallar("instrucción", memoria.DirVirtual(cx.Sepc))
		}
		programa(u)
	}
}

// alTerminarProceso corre en el hart cuando un proceso queda zombie: libera su
// lugar de multiprogramación y recolecta los zombies que quedaron a cargo de init
func (k *Kernel) alTerminarProceso(p *tarea.PCB) {
	k.admision.Signal()
	k.textos.olvidar(p.Pid)
	for {
		pid, _ := k.init.RecolectarHijo(-1)
		if pid < 0 {
			return
		}
	}
}
