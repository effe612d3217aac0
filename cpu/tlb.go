package cpu

import (
	"fmt"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Algoritmos de reemplazo de la TLB
const (
	ReemplazoFIFO = "FIFO"
	ReemplazoLRU  = "LRU"
)

type entradaTLB struct {
	valida  bool
	pid     int
	pagina  memoria.NumPaginaVirtual
	entrada memoria.EntradaTabla
	carga   uint64 // para FIFO
	uso     uint64 // para LRU
}

// TLB cachea entradas de tabla por (pid, página). Con cero entradas queda
// deshabilitada y todo acceso es un miss.
type TLB struct {
	mu        sync.Mutex
	entradas  []entradaTLB
	reemplazo string
	reloj     uint64

	Aciertos int
	Fallos   int
}

func NuevaTLB(cantidad int, reemplazo string) (*TLB, error) {
	if reemplazo != ReemplazoFIFO && reemplazo != ReemplazoLRU {
		return nil, fmt.Errorf("algoritmo de reemplazo de TLB desconocido: %q", reemplazo)
	}
	if cantidad < 0 {
		cantidad = 0
	}
	if cantidad > 0 {
		utils.InfoLog.Info("TLB inicializada", "entradas", cantidad, "algoritmo", reemplazo)
	} else {
		utils.InfoLog.Info("TLB deshabilitada")
	}
	return &TLB{entradas: make([]entradaTLB, cantidad), reemplazo: reemplazo}, nil
}

// Buscar devuelve la entrada cacheada de la página
func (t *TLB) Buscar(pid int, pagina memoria.NumPaginaVirtual) (memoria.EntradaTabla, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reloj++
	for i := range t.entradas {
		e := &t.entradas[i]
		if e.valida && e.pid == pid && e.pagina == pagina {
			e.uso = t.reloj
			t.Aciertos++
			utils.InfoLog.Info(fmt.Sprintf("PID: %d - TLB HIT - Página: %d", pid, pagina))
			return e.entrada, true
		}
	}
	t.Fallos++
	utils.InfoLog.Info(fmt.Sprintf("PID: %d - TLB MISS - Página: %d", pid, pagina))
	return 0, false
}

// Actualizar agrega la entrada, reemplazando una víctima si no hay lugar
func (t *TLB) Actualizar(pid int, pagina memoria.NumPaginaVirtual, entrada memoria.EntradaTabla) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entradas) == 0 {
		return
	}
	t.reloj++
	nueva := entradaTLB{valida: true, pid: pid, pagina: pagina, entrada: entrada, carga: t.reloj, uso: t.reloj}

	victima := -1
	for i, e := range t.entradas {
		if !e.valida {
			victima = i
			break
		}
	}
	if victima == -1 {
		victima = 0
		for i, e := range t.entradas {
			switch t.reemplazo {
			case ReemplazoFIFO:
				if e.carga < t.entradas[victima].carga {
					victima = i
				}
			case ReemplazoLRU:
				if e.uso < t.entradas[victima].uso {
					victima = i
				}
			}
		}
		utils.InfoLog.Debug("Reemplazo en TLB", "pid", pid, "victima", uint64(t.entradas[victima].pagina), "nueva", uint64(pagina))
	}
	t.entradas[victima] = nueva
}

// Limpiar descarta las entradas del proceso
func (t *TLB) Limpiar(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entradas {
		if t.entradas[i].pid == pid {
			t.entradas[i] = entradaTLB{}
		}
	}
}

// Paginas lista las páginas cacheadas del proceso
func (t *TLB) Paginas(pid int) []memoria.NumPaginaVirtual {
	t.mu.Lock()
	defer t.mu.Unlock()
	var paginas []memoria.NumPaginaVirtual
	for _, e := range t.entradas {
		if e.valida && e.pid == pid {
			paginas = append(paginas, e.pagina)
		}
	}
	return paginas
}
