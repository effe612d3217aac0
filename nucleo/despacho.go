package nucleo

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// trap es la entrada al kernel por ecall: avanza sepc, despacha según a7 y deja
// el resultado en a0. Corre en la goroutine del hilo que la hizo.
func (k *Kernel) trap(hilo *tarea.TCB) {
	k.proc.ChequearQuantum()

	cx := hilo.ContextoTrap()
	cx.Sepc += 4
	hilo.GuardarContextoTrap(cx)

	id := int(cx.X[tarea.RegA7])
	args := [3]uint64{cx.X[tarea.RegA0], cx.X[tarea.RegA1], cx.X[tarea.RegA2]}
	resultado := k.despachar(hilo, id, args)

	// la syscall pudo haber cambiado el contexto (exec, fork)
	cx = hilo.ContextoTrap()
	cx.X[tarea.RegA0] = uint64(resultado)
	hilo.GuardarContextoTrap(cx)
}

func (k *Kernel) despachar(hilo *tarea.TCB, id int, args [3]uint64) int64 {
	hilo.ContarLlamada(id)
	utils.InfoLog.Info(fmt.Sprintf("## %v - Solicitó syscall: %s", hilo, NombreSyscall(id)))

	switch id {
	case SysOpen:
		return k.sysOpen(hilo, memoria.DirVirtual(args[0]), uint32(args[1]))
	case SysClose:
		return k.sysClose(hilo, int(args[0]))
	case SysRead:
		return k.sysRead(hilo, int(args[0]), memoria.DirVirtual(args[1]), int(args[2]))
	case SysWrite:
		return k.sysWrite(hilo, int(args[0]), memoria.DirVirtual(args[1]), int(args[2]))
	case SysExit:
		k.sysExit(int64(args[0]))
		return 0
	case SysYield:
		return k.sysYield()
	case SysSetPriority:
		return k.sysSetPriority(hilo, int64(args[0]))
	case SysGetTime:
		return k.sysGetTime(hilo, memoria.DirVirtual(args[0]))
	case SysGetPid:
		return int64(hilo.Pid())
	case SysMunmap:
		return k.sysMunmap(hilo, memoria.DirVirtual(args[0]), int(args[1]))
	case SysFork:
		return k.sysFork(hilo, args[0])
	case SysExec:
		return k.sysExec(hilo, memoria.DirVirtual(args[0]))
	case SysMmap:
		return k.sysMmap(hilo, memoria.DirVirtual(args[0]), int(args[1]), int(args[2]))
	case SysWaitpid:
		return k.sysWaitpid(hilo, int64(args[0]), memoria.DirVirtual(args[1]))
	case SysSpawn:
		return k.sysSpawn(hilo, memoria.DirVirtual(args[0]))
	case SysTaskInfo:
		return k.sysTaskInfo(hilo, memoria.DirVirtual(args[0]))

	case SysThreadCreate:
		return k.sysThreadCreate(hilo, args[0], args[1])
	case SysGetTid:
		return int64(hilo.Tid())
	case SysWaittid:
		return k.sysWaittid(hilo, int64(args[0]))

	case SysMutexCreate:
		return k.sysMutexCreate(hilo, args[0] != 0)
	case SysMutexLock:
		return k.sysMutexLock(hilo, int64(args[0]))
	case SysMutexUnlock:
		return k.sysMutexUnlock(hilo, int64(args[0]))
	case SysSemaphoreCreate:
		return k.sysSemaphoreCreate(hilo, int64(args[0]))
	case SysSemaphoreUp:
		return k.sysSemaphoreUp(hilo, int64(args[0]))
	case SysSemaphoreDown:
		return k.sysSemaphoreDown(hilo, int64(args[0]))
	case SysCondvarCreate:
		return k.sysCondvarCreate(hilo)
	case SysCondvarSignal:
		return k.sysCondvarSignal(hilo, int64(args[0]))
	case SysCondvarWait:
		return k.sysCondvarWait(hilo, int64(args[0]), int64(args[1]))

	case SysDumpMemory:
		return k.sysDumpMemory(hilo)
	}

	utils.ErrorLog.Error("Syscall desconocida", "tarea", hilo.String(), "id", id)
	return Fallo
}

// escribirEnUsuario copia valor a memoria de usuario validando U y W
func escribirEnUsuario(token uint64, dir memoria.DirVirtual, tamanio int, valor any) bool {
	if _, ok := rangoAccesible(token, dir, tamanio, true); !ok {
		return false
	}
	return memoria.EscribirEnUsuario(token, dir, valor) == nil
}

// leerCadena lee la ruta que pasa el usuario
func leerCadena(token uint64, dir memoria.DirVirtual) (string, bool) {
	if _, ok := rangoAccesible(token, dir, 1, false); !ok {
		return "", false
	}
	cadena, err := memoria.TraducirCadena(token, dir)
	if err != nil {
		utils.InfoLog.Debug("Cadena de usuario ilegible", "dir", dir.String(), "error", err)
		return "", false
	}
	return cadena, true
}

// enRango convierte un id de usuario a índice de una tabla de largo n
func enRango(id int64, n int) (int, bool) {
	if id < 0 || id >= int64(n) {
		return 0, false
	}
	return int(id), true
}
