package memoria

import (
	"errors"
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

var ErrSinMarcos = errors.New("no hay marcos libres disponibles")

// asignadorMarcos reparte marcos de memoriaPrincipal: primero los nunca usados,
// después los reciclados en orden LIFO
type asignadorMarcos struct {
	ocupados   []bool
	siguiente  NumPaginaFisica
	reciclados []NumPaginaFisica
	libres     int
}

var (
	memoriaPrincipal []byte
	asignador        = utils.NuevaCelda("asignador de marcos", asignadorMarcos{})
)

// InicializarMemoria reserva la memoria física simulada y reinicia el asignador
func InicializarMemoria(tamanio int) {
	totalMarcos := tamanio / TamPagina
	if totalMarcos <= 0 {
		totalMarcos = 1
	}

	memoriaPrincipal = make([]byte, totalMarcos*TamPagina)

	asignador.Con(func(a *asignadorMarcos) {
		a.ocupados = make([]bool, totalMarcos)
		a.siguiente = 0
		a.reciclados = nil
		a.libres = totalMarcos
	})
	reiniciarMetricas()

	utils.InfoLog.Info("Memoria principal inicializada",
		"tamaño_bytes", len(memoriaPrincipal),
		"total_marcos", totalMarcos)
}

// Marco es un marco físico asignado; se devuelve al asignador con Liberar
type Marco struct {
	PPN      NumPaginaFisica
	liberado bool
}

// AsignarMarco entrega un marco libre lleno de ceros
func AsignarMarco() (*Marco, error) {
	a := asignador.Tomar()
	defer asignador.Soltar()

	var ppn NumPaginaFisica
	switch {
	case len(a.reciclados) > 0:
		ppn = a.reciclados[len(a.reciclados)-1]
		a.reciclados = a.reciclados[:len(a.reciclados)-1]
	case int(a.siguiente) < len(a.ocupados):
		ppn = a.siguiente
		a.siguiente++
	default:
		utils.ErrorLog.Error("No hay marcos libres disponibles", "total_marcos", len(a.ocupados))
		return nil, ErrSinMarcos
	}

	a.ocupados[ppn] = true
	a.libres--
	clear(ppn.Bytes())

	utils.InfoLog.Debug("Marco asignado", "marco", uint64(ppn), "marcos_libres", a.libres)
	return &Marco{PPN: ppn}, nil
}

// Liberar devuelve el marco al asignador. Liberar dos veces es un error del kernel.
func (m *Marco) Liberar() {
	if m.liberado {
		panic(fmt.Sprintf("marco %d liberado dos veces", m.PPN))
	}
	m.liberado = true

	a := asignador.Tomar()
	defer asignador.Soltar()

	if int(m.PPN) >= len(a.ocupados) || !a.ocupados[m.PPN] {
		panic(fmt.Sprintf("marco %d no estaba asignado", m.PPN))
	}
	a.ocupados[m.PPN] = false
	a.reciclados = append(a.reciclados, m.PPN)
	a.libres++

	utils.InfoLog.Debug("Marco liberado", "marco", uint64(m.PPN), "marcos_libres", a.libres)
}

// ContarMarcosLibres devuelve la cantidad de marcos disponibles
func ContarMarcosLibres() int {
	return asignador.Leer().libres
}

// TotalMarcos devuelve la cantidad de marcos de la memoria física
func TotalMarcos() int {
	return len(memoriaPrincipal) / TamPagina
}

// Bytes devuelve el contenido del marco dentro de la memoria principal
func (p NumPaginaFisica) Bytes() []byte {
	inicio := int(p) * TamPagina
	if inicio < 0 || inicio+TamPagina > len(memoriaPrincipal) {
		panic(fmt.Sprintf("marco %d fuera de la memoria física", p))
	}
	return memoriaPrincipal[inicio : inicio+TamPagina : inicio+TamPagina]
}
