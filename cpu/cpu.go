// Package cpu interpreta programas de pseudocódigo como imágenes del kernel. Cada
// instrucción es un tick de reloj y los accesos a memoria pasan por la TLB antes
// que por la tabla de páginas.
package cpu

import (
	"fmt"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// CPU es el intérprete. La TLB se comparte entre todos los procesos que corren
// scripts, como en un único hart.
type CPU struct {
	tlb *TLB
}

func NuevaCPU(tlb *TLB) *CPU {
	return &CPU{tlb: tlb}
}

func (c *CPU) TLB() *TLB { return c.tlb }

// Programa convierte un script en una imagen ejecutable
func (c *CPU) Programa(instrucciones []Instruccion) nucleo.Programa {
	return func(u *nucleo.Usuario) {
		// el pid puede venir de un proceso ya recolectado
		c.tlb.Limpiar(u.Pid())
		pc := 0
		for pc >= 0 && pc < len(instrucciones) {
			u.Tick()
			ins := instrucciones[pc]
			utils.InfoLog.Info(fmt.Sprintf("## %v - FETCH - Program Counter: %d", u, pc))
			utils.InfoLog.Info(fmt.Sprintf("## %v - Ejecutando: %s", u, ins))
			pc = c.ejecutar(u, pc, ins)
		}
	}
}

// ejecutar corre una instrucción y devuelve el próximo PC
func (c *CPU) ejecutar(u *nucleo.Usuario, pc int, ins Instruccion) int {
	siguiente := pc + 1
	n := ins.Numeros
	var r int64

	switch ins.Operacion {
	case "NOOP":

	case "WRITE":
		c.escribir(u, memoria.DirVirtual(n[0]), []byte(ins.Texto))

	case "READ":
		datos := c.leer(u, memoria.DirVirtual(n[0]), int(n[1]))
		utils.InfoLog.Info(fmt.Sprintf("## %v - Lectura en %#x: %q", u, n[0], datos))

	case "GOTO":
		siguiente = int(n[0])

	case "YIELD":
		r = u.Yield()

	case "EXIT":
		codigo := 0
		if len(n) > 0 {
			codigo = int(n[0])
		}
		c.tlb.Limpiar(u.Pid())
		u.Exit(codigo)

	case "PRIORIDAD":
		r = u.SetPriority(n[0])

	case "SPAWN":
		r = u.Spawn(ins.Texto)
		if r >= 0 {
			utils.InfoLog.Info(fmt.Sprintf("## %v - Proceso %s creado con PID %d", u, ins.Texto, r))
		}

	case "ESPERAR":
		var codigo int32
		r, codigo = u.EsperarHijo(n[0])
		if r >= 0 {
			utils.InfoLog.Info(fmt.Sprintf("## %v - Finalizó el hijo %d - Código: %d", u, r, codigo))
		}

	case "MUTEX_CREAR":
		r = u.MutexCreate(!strings.EqualFold(ins.Texto, "SPIN"))
	case "MUTEX_LOCK":
		r = u.MutexLock(n[0])
	case "MUTEX_UNLOCK":
		r = u.MutexUnlock(n[0])

	case "SEM_CREAR":
		r = u.SemaphoreCreate(int(n[0]))
	case "SEM_DOWN":
		r = u.SemaphoreDown(n[0])
	case "SEM_UP":
		r = u.SemaphoreUp(n[0])

	case "MMAP":
		r = u.Mmap(memoria.DirVirtual(n[0]), int(n[1]), int(n[2]))
	case "MUNMAP":
		c.tlb.Limpiar(u.Pid())
		r = u.Munmap(memoria.DirVirtual(n[0]), int(n[1]))

	case "DUMP_MEMORY":
		r = u.DumpMemory()

	case "IMPRIMIR":
		r = u.Write(1, []byte(ins.Texto+"\n"))

	default:
		panic(fmt.Sprintf("operación sin ejecutar: %s", ins.Operacion))
	}

	if r < 0 {
		utils.InfoLog.Info(fmt.Sprintf("## %v - %s devolvió %d", u, ins.Operacion, r))
	}
	return siguiente
}

// traducir resuelve la entrada de la página, primero en la TLB
func (c *CPU) traducir(u *nucleo.Usuario, pagina memoria.NumPaginaVirtual) (memoria.EntradaTabla, bool) {
	pid := u.Pid()
	if entrada, ok := c.tlb.Buscar(pid, pagina); ok {
		return entrada, true
	}
	entrada, ok := memoria.DesdeToken(u.Token()).Traducir(pagina)
	if !ok {
		return 0, false
	}
	c.tlb.Actualizar(pid, pagina, entrada)
	return entrada, true
}

// tramos arma los pedazos físicos de [dir, dir+n). Si alguna página no permite el
// acceso devuelve false y el acceso se repite por la MMU, que levanta la falla.
func (c *CPU) tramos(u *nucleo.Usuario, dir memoria.DirVirtual, n int, escritura bool) ([][]byte, bool) {
	fin := dir + memoria.DirVirtual(n)
	if n <= 0 || fin < dir || fin > memoria.MaxDirVirtual {
		return nil, false
	}
	var tramos [][]byte
	for actual := dir; actual < fin; {
		pagina := actual.Piso()
		entrada, ok := c.traducir(u, pagina)
		if !ok || !entrada.DeUsuario() || !entrada.Legible() || (escritura && !entrada.Escribible()) {
			return nil, false
		}
		finTramo := min((pagina + 1).Dir(), fin)
		desde := actual.Desplazamiento()
		tramos = append(tramos, entrada.PPN().Bytes()[desde:desde+uint64(finTramo-actual)])
		if actual == dir {
			accion := "LEER"
			if escritura {
				accion = "ESCRIBIR"
			}
			fisica := uint64(entrada.PPN().Dir()) + desde
			utils.InfoLog.Info(fmt.Sprintf("## %v - Acción: %s - Dirección Física: %d - Tamaño: %d", u, accion, fisica, n))
		}
		actual = finTramo
	}
	return tramos, true
}

func (c *CPU) leer(u *nucleo.Usuario, dir memoria.DirVirtual, n int) []byte {
	if n <= 0 {
		return nil
	}
	tramos, ok := c.tramos(u, dir, n, false)
	if !ok {
		return u.LeerMemoria(dir, n)
	}
	datos := make([]byte, 0, n)
	for _, t := range tramos {
		datos = append(datos, t...)
	}
	return datos
}

func (c *CPU) escribir(u *nucleo.Usuario, dir memoria.DirVirtual, datos []byte) {
	if len(datos) == 0 {
		return
	}
	tramos, ok := c.tramos(u, dir, len(datos), true)
	if !ok {
		u.EscribirMemoria(dir, datos)
		return
	}
	for _, t := range tramos {
		datos = datos[copy(t, datos):]
	}
}
