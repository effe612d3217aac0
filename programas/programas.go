// Package programas trae las imágenes de usuario escritas en Go que el kernel
// registra al arrancar.
package programas

import (
	"fmt"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/vfs"
)

const (
	fdEntrada = 0
	fdSalida  = 1
)

// dirDatos es donde los programas mapean su memoria de trabajo
const dirDatos memoria.DirVirtual = 0x4000_0000

// Registrar agrega todas las imágenes al registro
func Registrar(r *nucleo.Registro) {
	r.Registrar("hola", Hola)
	r.Registrar("forktest", ForkTest)
	r.Registrar("hilos", Hilos)
	r.Registrar("contador", Contador)
	r.Registrar("productor_consumidor", ProductorConsumidor)
	r.Registrar("mmap", Mmap)
	r.Registrar("prioridades", Prioridades)
	r.Registrar("archivos", Archivos)
	r.Registrar("shell", Shell)
}

func imprimir(u *nucleo.Usuario, format string, args ...any) {
	u.Write(fdSalida, []byte(fmt.Sprintf(format, args...)))
}

func Hola(u *nucleo.Usuario) {
	imprimir(u, "Hola desde el proceso %d\n", u.GetPid())
}

// ForkTest crea hijos que terminan con códigos distintos y los espera en orden
func ForkTest(u *nucleo.Usuario) {
	const hijos = 4
	var pids []int64
	for i := range hijos {
		pid := u.Fork(func(u *nucleo.Usuario) {
			imprimir(u, "hijo %d (pid %d)\n", i, u.GetPid())
			u.Exit(i + 1)
		})
		if pid < 0 {
			imprimir(u, "fork falló\n")
			u.Exit(-1)
		}
		pids = append(pids, pid)
	}
	for _, pid := range pids {
		r, codigo := u.EsperarHijo(pid)
		imprimir(u, "waitpid %d -> código %d\n", r, codigo)
	}
	imprimir(u, "forktest terminado\n")
}

// Hilos arranca hilos con argumento y recoge sus códigos
func Hilos(u *nucleo.Usuario) {
	var tids []int64
	for i := range 3 {
		tid := u.ThreadCreate(func(u *nucleo.Usuario) {
			imprimir(u, "hilo %d con argumento %d\n", u.GetTid(), u.Argumento())
			u.Exit(int(u.Argumento()) * 10)
		}, uint64(i+1))
		tids = append(tids, tid)
	}
	for _, tid := range tids {
		imprimir(u, "hilo %d terminó con %d\n", tid, u.EsperarHilo(tid))
	}
}

// Contador incrementa un contador compartido desde varios hilos bajo un mutex
// bloqueante; el valor final tiene que ser hilos*vueltas
func Contador(u *nucleo.Usuario) {
	const hilos, vueltas = 4, 50
	u.Mmap(dirDatos, memoria.TamPagina, 3)
	m := u.MutexCreate(true)
	var tids []int64
	for range hilos {
		tids = append(tids, u.ThreadCreate(func(u *nucleo.Usuario) {
			for range vueltas {
				u.MutexLock(m)
				v := u.LeerU64(dirDatos)
				u.Yield()
				u.EscribirU64(dirDatos, v+1)
				u.MutexUnlock(m)
			}
		}, 0))
	}
	for _, tid := range tids {
		u.EsperarHilo(tid)
	}
	imprimir(u, "contador = %d (esperado %d)\n", u.LeerU64(dirDatos), hilos*vueltas)
}

// ProductorConsumidor usa un buffer circular en memoria mapeada con dos
// semáforos de conteo y un mutex
func ProductorConsumidor(u *nucleo.Usuario) {
	const tamBuffer, items = 4, 12
	u.Mmap(dirDatos, memoria.TamPagina, 3)
	vacios := u.SemaphoreCreate(tamBuffer)
	llenos := u.SemaphoreCreate(0)
	m := u.MutexCreate(true)

	ranura := func(i int) memoria.DirVirtual {
		return dirDatos + memoria.DirVirtual(8*(i%tamBuffer))
	}
	productor := u.ThreadCreate(func(u *nucleo.Usuario) {
		for i := range items {
			u.SemaphoreDown(vacios)
			u.MutexLock(m)
			u.EscribirU64(ranura(i), uint64(i*i))
			u.MutexUnlock(m)
			u.SemaphoreUp(llenos)
		}
	}, 0)
	consumidor := u.ThreadCreate(func(u *nucleo.Usuario) {
		var suma uint64
		for i := range items {
			u.SemaphoreDown(llenos)
			u.MutexLock(m)
			suma += u.LeerU64(ranura(i))
			u.MutexUnlock(m)
			u.SemaphoreUp(vacios)
		}
		imprimir(u, "suma consumida = %d\n", suma)
	}, 0)
	u.EsperarHilo(productor)
	u.EsperarHilo(consumidor)
}

// Mmap prueba permisos: escribe en un área RW y después lee el área de sólo
// lectura de un hijo que intenta escribirla y muere
func Mmap(u *nucleo.Usuario) {
	if u.Mmap(dirDatos, 2*memoria.TamPagina, 3) != 0 {
		imprimir(u, "mmap falló\n")
		u.Exit(-1)
	}
	mensaje := []byte("cruza el borde de página")
	borde := dirDatos + memoria.TamPagina - 8
	u.EscribirMemoria(borde, mensaje)
	imprimir(u, "leído: %s\n", u.LeerMemoria(borde, len(mensaje)))
	u.Munmap(dirDatos, 2*memoria.TamPagina)

	pid := u.Fork(func(u *nucleo.Usuario) {
		u.Mmap(dirDatos, memoria.TamPagina, 1)
		u.EscribirU64(dirDatos, 1)
		imprimir(u, "no debería llegar acá\n")
	})
	_, codigo := u.EsperarHijo(pid)
	imprimir(u, "el hijo murió con %d\n", codigo)
}

// Prioridades crea hijos con prioridades distintas que cuentan vueltas hasta
// que pasa el mismo tiempo para todos
func Prioridades(u *nucleo.Usuario) {
	prioridades := []int64{2, 4, 8, 16}
	var pids []int64
	for _, p := range prioridades {
		pid := u.Fork(func(u *nucleo.Usuario) {
			u.SetPriority(p)
			inicio, _ := u.GetTime()
			vueltas := 0
			for {
				ahora, _ := u.GetTime()
				if transcurrido(inicio, ahora) >= 200_000 {
					break
				}
				vueltas++
				u.Yield()
			}
			imprimir(u, "prioridad %d: %d vueltas\n", p, vueltas)
		})
		pids = append(pids, pid)
	}
	for _, pid := range pids {
		u.EsperarHijo(pid)
	}
}

func transcurrido(desde, hasta nucleo.TimeVal) uint64 {
	return (hasta.Sec-desde.Sec)*1_000_000 + hasta.Usec - desde.Usec
}

// Archivos escribe un archivo en el ramfs y lo vuelve a leer
func Archivos(u *nucleo.Usuario) {
	fd := u.Open("saludo.txt", vfs.Crear|vfs.SoloEscritura)
	if fd < 0 {
		imprimir(u, "open falló\n")
		u.Exit(-1)
	}
	for i := range 3 {
		u.Write(int(fd), []byte(fmt.Sprintf("línea %d\n", i)))
	}
	u.Close(int(fd))

	fd = u.Open("saludo.txt", vfs.SoloLectura)
	var contenido []byte
	for {
		datos, n := u.Read(int(fd), 16)
		if n <= 0 {
			break
		}
		contenido = append(contenido, datos...)
	}
	u.Close(int(fd))
	imprimir(u, "%s", contenido)

	info, _ := u.TaskInfo()
	imprimir(u, "escrituras hasta acá: %d\n", info.Llamadas[nucleo.SysWrite])
}

// leerLinea lee de stdin hasta \n; false si la entrada se cerró
func leerLinea(u *nucleo.Usuario) (string, bool) {
	var linea strings.Builder
	for {
		datos, n := u.Read(fdEntrada, 1)
		if n <= 0 {
			return linea.String(), linea.Len() > 0
		}
		switch c := datos[0]; c {
		case '\r', '\n':
			u.Write(fdSalida, []byte("\n"))
			return linea.String(), true
		case 0x7f, 0x08:
			if linea.Len() > 0 {
				s := linea.String()
				linea.Reset()
				linea.WriteString(s[:len(s)-1])
				u.Write(fdSalida, []byte("\b \b"))
			}
		default:
			linea.WriteByte(c)
			u.Write(fdSalida, datos)
		}
	}
}

// Shell lee nombres de imágenes de la consola y las corre como hijos
func Shell(u *nucleo.Usuario) {
	for {
		u.Write(fdSalida, []byte(">> "))
		linea, ok := leerLinea(u)
		if !ok {
			return
		}
		nombre := strings.TrimSpace(linea)
		switch nombre {
		case "":
			continue
		case "exit", "salir":
			return
		}
		pid := u.Spawn(nombre)
		if pid < 0 {
			imprimir(u, "no se pudo correr %s\n", nombre)
			continue
		}
		_, codigo := u.EsperarHijo(pid)
		imprimir(u, "[%d] %s terminó con código %d\n", pid, nombre, codigo)
	}
}
