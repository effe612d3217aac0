package nucleo

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/vfs"
)

// Usuario es lo que ve un hilo en modo usuario: sus registros en el contexto
// de trap, su memoria a través de la MMU y las syscalls. Un acceso que la MMU
// rechaza termina el hilo con CodigoFallo.
type Usuario struct {
	k         *Kernel
	hilo      *tarea.TCB
	argumento uint64
}

func (k *Kernel) nuevoUsuario(hilo *tarea.TCB, argumento uint64) *Usuario {
	return &Usuario{k: k, hilo: hilo, argumento: argumento}
}

// Argumento es el valor de a0 al entrar: el argumento de thread_create
func (u *Usuario) Argumento() uint64 {
	return u.argumento
}

func (u *Usuario) String() string {
	return u.hilo.String()
}

func (u *Usuario) Pid() int { return u.hilo.Pid() }
func (u *Usuario) Tid() int { return u.hilo.Tid() }

// Token es el satp del proceso, para quien quiera recorrer su tabla
func (u *Usuario) Token() uint64 {
	return u.hilo.DebeProceso().Token()
}

// Syscall entra al kernel con id en a7 y hasta tres argumentos en a0..a2.
// Devuelve a0 al volver.
func (u *Usuario) Syscall(id int, args ...uint64) int64 {
	if len(args) > 3 {
		panic(fmt.Sprintf("syscall %s con %d argumentos", NombreSyscall(id), len(args)))
	}
	cx := u.hilo.ContextoTrap()
	cx.X[tarea.RegA7] = uint64(id)
	for i := range 3 {
		cx.X[tarea.RegA0+i] = 0
	}
	copy(cx.X[tarea.RegA0:], args)
	u.hilo.GuardarContextoTrap(cx)

	u.k.trap(u.hilo)
	return int64(u.hilo.ContextoTrap().X[tarea.RegA0])
}

// Tick es la interrupción de reloj entre instrucciones
func (u *Usuario) Tick() {
	u.k.proc.ChequearQuantum()
}

// Codigo ubica f en el texto del proceso y devuelve su dirección, para pasarla
// a fork o thread_create
func (u *Usuario) Codigo(f Programa) uint64 {
	if f == nil {
		f = func(*Usuario) {}
	}
	return u.k.textos.registrar(u.hilo.Pid(), f)
}

// verificar recorre las páginas de [dir, dir+n) como lo haría la MMU
func (u *Usuario) verificar(dir memoria.DirVirtual, n int, escritura bool) uint64 {
	token := u.Token()
	if falla, ok := rangoAccesible(token, dir, n, escritura); !ok {
		acceso := "lectura"
		if escritura {
			acceso = "escritura"
		}
		u.fallar(acceso, falla)
	}
	return token
}

// rangoAccesible dice si [dir, dir+n) está mapeado con U y el permiso pedido.
// Si no, devuelve la primera dirección que falla.
func rangoAccesible(token uint64, dir memoria.DirVirtual, n int, escritura bool) (memoria.DirVirtual, bool) {
	if n <= 0 {
		return 0, true
	}
	fin := dir + memoria.DirVirtual(n)
	if fin < dir || fin > memoria.MaxDirVirtual {
		return dir, false
	}
	tabla := memoria.DesdeToken(token)
	for vpn := dir.Piso(); vpn < fin.Techo(); vpn++ {
		entrada, ok := tabla.Traducir(vpn)
		permitido := ok && entrada.DeUsuario() && entrada.Legible()
		if escritura {
			permitido = permitido && entrada.Escribible()
		}
		if !permitido {
			return max(dir, vpn.Dir()), false
		}
	}
	return 0, true
}

// fallar termina el hilo como lo haría una excepción de página
func (u *Usuario) fallar(acceso string, dir memoria.DirVirtual) {
	utils.InfoLog.Info(fmt.Sprintf("## %v - Falla de %s en %v, se termina el hilo", u.hilo, acceso, dir))
	u.k.proc.SalirActual(CodigoFallo)
}

// LeerMemoria lee n bytes de la memoria del proceso
func (u *Usuario) LeerMemoria(dir memoria.DirVirtual, n int) []byte {
	token := u.verificar(dir, n, false)
	datos, err := memoria.LeerBytesDeUsuario(token, dir, n)
	if err != nil {
		u.fallar("lectura", dir)
	}
	return datos
}

// EscribirMemoria escribe datos en la memoria del proceso
func (u *Usuario) EscribirMemoria(dir memoria.DirVirtual, datos []byte) {
	token := u.verificar(dir, len(datos), true)
	if err := memoria.EscribirBytesEnUsuario(token, dir, datos); err != nil {
		u.fallar("escritura", dir)
	}
}

func (u *Usuario) LeerU64(dir memoria.DirVirtual) uint64 {
	return binary.LittleEndian.Uint64(u.LeerMemoria(dir, 8))
}

func (u *Usuario) EscribirU64(dir memoria.DirVirtual, valor uint64) {
	u.EscribirMemoria(dir, binary.LittleEndian.AppendUint64(nil, valor))
}

// SP es el puntero de pila guardado
func (u *Usuario) SP() memoria.DirVirtual {
	return memoria.DirVirtual(u.hilo.ContextoTrap().X[tarea.RegSP])
}

func (u *Usuario) FijarSP(sp memoria.DirVirtual) {
	cx := u.hilo.ContextoTrap()
	cx.X[tarea.RegSP] = uint64(sp)
	u.hilo.GuardarContextoTrap(cx)
}

// Reservar baja sp y devuelve un bloque de n bytes alineado a 8
func (u *Usuario) Reservar(n int) memoria.DirVirtual {
	sp := (u.SP() - memoria.DirVirtual(n)) &^ 7
	u.FijarSP(sp)
	return sp
}

// enPila copia datos a la pila, llama f con su dirección y restaura sp
func (u *Usuario) enPila(datos []byte, f func(dir memoria.DirVirtual) int64) int64 {
	sp := u.SP()
	dir := u.Reservar(len(datos))
	u.EscribirMemoria(dir, datos)
	resultado := f(dir)
	u.FijarSP(sp)
	return resultado
}

// conBloque reserva n bytes en la pila, llama f y devuelve el resultado junto
// con lo que quedó escrito en el bloque
func (u *Usuario) conBloque(n int, f func(dir memoria.DirVirtual) int64) (int64, []byte) {
	sp := u.SP()
	dir := u.Reservar(n)
	resultado := f(dir)
	var datos []byte
	if resultado >= 0 {
		datos = u.LeerMemoria(dir, n)
	}
	u.FijarSP(sp)
	return resultado, datos
}

func cadenaC(s string) []byte {
	return append([]byte(s), 0)
}

func (u *Usuario) Write(fd int, datos []byte) int64 {
	return u.enPila(datos, func(dir memoria.DirVirtual) int64 {
		return u.Syscall(SysWrite, uint64(fd), uint64(dir), uint64(len(datos)))
	})
}

// Read lee hasta n bytes del descriptor
func (u *Usuario) Read(fd int, n int) ([]byte, int64) {
	leidos, datos := u.conBloque(n, func(dir memoria.DirVirtual) int64 {
		return u.Syscall(SysRead, uint64(fd), uint64(dir), uint64(n))
	})
	if leidos < 0 {
		return nil, leidos
	}
	return datos[:leidos], leidos
}

func (u *Usuario) Open(ruta string, flags vfs.FlagsApertura) int64 {
	return u.enPila(cadenaC(ruta), func(dir memoria.DirVirtual) int64 {
		return u.Syscall(SysOpen, uint64(dir), uint64(flags))
	})
}

func (u *Usuario) Close(fd int) int64 {
	return u.Syscall(SysClose, uint64(fd))
}

// Exit no vuelve
func (u *Usuario) Exit(codigo int) {
	u.Syscall(SysExit, uint64(int64(codigo)))
}

func (u *Usuario) Yield() int64 {
	return u.Syscall(SysYield)
}

func (u *Usuario) SetPriority(prioridad int64) int64 {
	return u.Syscall(SysSetPriority, uint64(prioridad))
}

func (u *Usuario) GetTime() (TimeVal, int64) {
	var tv TimeVal
	r, datos := u.conBloque(binary.Size(tv), func(dir memoria.DirVirtual) int64 {
		return u.Syscall(SysGetTime, uint64(dir), 0)
	})
	if r == 0 {
		binary.Read(bytes.NewReader(datos), binary.LittleEndian, &tv)
	}
	return tv, r
}

func (u *Usuario) GetPid() int64 {
	return u.Syscall(SysGetPid)
}

func (u *Usuario) Mmap(inicio memoria.DirVirtual, largo int, puerto int) int64 {
	return u.Syscall(SysMmap, uint64(inicio), uint64(largo), uint64(puerto))
}

func (u *Usuario) Munmap(inicio memoria.DirVirtual, largo int) int64 {
	return u.Syscall(SysMunmap, uint64(inicio), uint64(largo))
}

// Fork crea un proceso hijo que arranca en hijo; en el padre devuelve el pid
func (u *Usuario) Fork(hijo Programa) int64 {
	return u.Syscall(SysFork, u.Codigo(hijo))
}

// Exec no vuelve si la imagen existe
func (u *Usuario) Exec(ruta string) int64 {
	return u.enPila(cadenaC(ruta), func(dir memoria.DirVirtual) int64 {
		return u.Syscall(SysExec, uint64(dir))
	})
}

// Waitpid devuelve el pid recolectado y su código, -1 si no hay hijo que
// coincida o -2 si sigue vivo
func (u *Usuario) Waitpid(pid int64) (int64, int32) {
	r, datos := u.conBloque(4, func(dir memoria.DirVirtual) int64 {
		return u.Syscall(SysWaitpid, uint64(pid), uint64(dir))
	})
	if r < 0 {
		return r, 0
	}
	return r, int32(binary.LittleEndian.Uint32(datos))
}

// EsperarHijo reintenta waitpid cediendo el hart mientras el hijo siga vivo
func (u *Usuario) EsperarHijo(pid int64) (int64, int32) {
	for {
		r, codigo := u.Waitpid(pid)
		if r != SigueViva {
			return r, codigo
		}
		u.Yield()
	}
}

func (u *Usuario) Spawn(ruta string) int64 {
	return u.enPila(cadenaC(ruta), func(dir memoria.DirVirtual) int64 {
		return u.Syscall(SysSpawn, uint64(dir))
	})
}

func (u *Usuario) TaskInfo() (InfoTarea, int64) {
	var info InfoTarea
	r, datos := u.conBloque(binary.Size(info), func(dir memoria.DirVirtual) int64 {
		return u.Syscall(SysTaskInfo, uint64(dir))
	})
	if r == 0 {
		binary.Read(bytes.NewReader(datos), binary.LittleEndian, &info)
	}
	return info, r
}

// ThreadCreate arranca un hilo en f con argumento en a0 y devuelve su tid
func (u *Usuario) ThreadCreate(f Programa, argumento uint64) int64 {
	return u.Syscall(SysThreadCreate, u.Codigo(f), argumento)
}

func (u *Usuario) GetTid() int64 {
	return u.Syscall(SysGetTid)
}

func (u *Usuario) Waittid(tid int64) int64 {
	return u.Syscall(SysWaittid, uint64(tid))
}

// EsperarHilo reintenta waittid mientras el hilo siga vivo
func (u *Usuario) EsperarHilo(tid int64) int64 {
	for {
		r := u.Waittid(tid)
		if r != SigueViva {
			return r
		}
		u.Yield()
	}
}

func (u *Usuario) MutexCreate(bloqueante bool) int64 {
	var b uint64
	if bloqueante {
		b = 1
	}
	return u.Syscall(SysMutexCreate, b)
}

func (u *Usuario) MutexLock(id int64) int64   { return u.Syscall(SysMutexLock, uint64(id)) }
func (u *Usuario) MutexUnlock(id int64) int64 { return u.Syscall(SysMutexUnlock, uint64(id)) }

func (u *Usuario) SemaphoreCreate(cantidad int) int64 {
	return u.Syscall(SysSemaphoreCreate, uint64(cantidad))
}

func (u *Usuario) SemaphoreUp(id int64) int64   { return u.Syscall(SysSemaphoreUp, uint64(id)) }
func (u *Usuario) SemaphoreDown(id int64) int64 { return u.Syscall(SysSemaphoreDown, uint64(id)) }

func (u *Usuario) CondvarCreate() int64 {
	return u.Syscall(SysCondvarCreate)
}

func (u *Usuario) CondvarSignal(id int64) int64 {
	return u.Syscall(SysCondvarSignal, uint64(id))
}

func (u *Usuario) CondvarWait(id, mutex int64) int64 {
	return u.Syscall(SysCondvarWait, uint64(id), uint64(mutex))
}

// DumpMemory pide el volcado del espacio del proceso
func (u *Usuario) DumpMemory() int64 {
	return u.Syscall(SysDumpMemory)
}
