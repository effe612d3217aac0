package nucleo

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
)

// Números de syscall. Los menores a tarea.MaxLlamadasSistema se cuentan para task_info.
const (
	SysOpen        = 56
	SysClose       = 57
	SysRead        = 63
	SysWrite       = 64
	SysExit        = 93
	SysYield       = 124
	SysSetPriority = 140
	SysGetTime     = 169
	SysGetPid      = 172
	SysMunmap      = 215
	SysFork        = 220
	SysExec        = 221
	SysMmap        = 222
	SysWaitpid     = 260
	SysSpawn       = 400
	SysTaskInfo    = 410

	SysThreadCreate    = 1000
	SysGetTid          = 1001
	SysWaittid         = 1002
	SysMutexCreate     = 1010
	SysMutexLock       = 1011
	SysMutexUnlock     = 1012
	SysSemaphoreCreate = 1020
	SysSemaphoreUp     = 1021
	SysSemaphoreDown   = 1022
	SysCondvarCreate   = 1030
	SysCondvarSignal   = 1031
	SysCondvarWait     = 1032

	SysDumpMemory = 1100
)

var nombresSyscall = map[int]string{
	SysOpen:            "OPEN",
	SysClose:           "CLOSE",
	SysRead:            "READ",
	SysWrite:           "WRITE",
	SysExit:            "EXIT",
	SysYield:           "YIELD",
	SysSetPriority:     "SET_PRIORITY",
	SysGetTime:         "GET_TIME",
	SysGetPid:          "GETPID",
	SysMunmap:          "MUNMAP",
	SysFork:            "FORK",
	SysExec:            "EXEC",
	SysMmap:            "MMAP",
	SysWaitpid:         "WAITPID",
	SysSpawn:           "SPAWN",
	SysTaskInfo:        "TASK_INFO",
	SysThreadCreate:    "THREAD_CREATE",
	SysGetTid:          "GETTID",
	SysWaittid:         "WAITTID",
	SysMutexCreate:     "MUTEX_CREATE",
	SysMutexLock:       "MUTEX_LOCK",
	SysMutexUnlock:     "MUTEX_UNLOCK",
	SysSemaphoreCreate: "SEMAPHORE_CREATE",
	SysSemaphoreUp:     "SEMAPHORE_UP",
	SysSemaphoreDown:   "SEMAPHORE_DOWN",
	SysCondvarCreate:   "CONDVAR_CREATE",
	SysCondvarSignal:   "CONDVAR_SIGNAL",
	SysCondvarWait:     "CONDVAR_WAIT",
	SysDumpMemory:      "DUMP_MEMORY",
}

// NombreSyscall devuelve el nombre con el que se loguea la syscall
func NombreSyscall(id int) string {
	if nombre, ok := nombresSyscall[id]; ok {
		return nombre
	}
	return fmt.Sprintf("SYSCALL(%d)", id)
}

// Resultados negativos de las syscalls
const (
	Fallo     = -1
	SigueViva = -2
)

// CodigoFallo es el código de salida de una tarea que accedió mal a memoria
const CodigoFallo = -2

// TimeVal es lo que get_time escribe en memoria de usuario
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// InfoTarea es lo que task_info escribe en memoria de usuario. Tiempo va en
// milisegundos desde el primer despacho.
type InfoTarea struct {
	Estado   uint32
	Llamadas [tarea.MaxLlamadasSistema]uint32
	Tiempo   uint64
}
