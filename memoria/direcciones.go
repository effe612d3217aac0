package memoria

import "fmt"

// Geometría Sv39: 3 niveles de 9 bits sobre páginas de 4 KiB
const (
	TamPagina          = 4096
	BitsDesplazamiento = 12
	Niveles            = 3
	BitsPorNivel       = 9
	EntradasPorTabla   = 1 << BitsPorNivel
	AnchoPPN           = 44
	TamEntrada         = 8

	// MaxDirVirtual es el tope del espacio de usuario (mitad baja de Sv39)
	MaxDirVirtual DirVirtual = 1 << 38

	modoSv39 uint64 = 8
)

type DirVirtual uint64
type DirFisica uint64
type NumPaginaVirtual uint64
type NumPaginaFisica uint64

// Piso devuelve la página que contiene la dirección
func (d DirVirtual) Piso() NumPaginaVirtual {
	return NumPaginaVirtual(d >> BitsDesplazamiento)
}

// Techo devuelve la primera página que empieza en o después de la dirección
func (d DirVirtual) Techo() NumPaginaVirtual {
	return NumPaginaVirtual((uint64(d) + TamPagina - 1) >> BitsDesplazamiento)
}

// Desplazamiento dentro de la página
func (d DirVirtual) Desplazamiento() uint64 {
	return uint64(d) & (TamPagina - 1)
}

func (d DirVirtual) Alineada() bool {
	return d.Desplazamiento() == 0
}

func (d DirVirtual) String() string {
	return fmt.Sprintf("%#x", uint64(d))
}

// Dir devuelve la dirección de inicio de la página
func (v NumPaginaVirtual) Dir() DirVirtual {
	return DirVirtual(uint64(v) << BitsDesplazamiento)
}

// Indices descompone el VPN en un índice por nivel, raíz primero
func (v NumPaginaVirtual) Indices() [Niveles]int {
	var idx [Niveles]int
	vpn := uint64(v)
	for nivel := Niveles - 1; nivel >= 0; nivel-- {
		idx[nivel] = int(vpn & (EntradasPorTabla - 1))
		vpn >>= BitsPorNivel
	}
	return idx
}

func (v NumPaginaVirtual) String() string {
	return fmt.Sprintf("vpn:%#x", uint64(v))
}

func (p NumPaginaFisica) Dir() DirFisica {
	return DirFisica(uint64(p) << BitsDesplazamiento)
}

func (d DirFisica) Piso() NumPaginaFisica {
	return NumPaginaFisica(d >> BitsDesplazamiento)
}

func (d DirFisica) Desplazamiento() uint64 {
	return uint64(d) & (TamPagina - 1)
}

// CalcularNumeroPaginas devuelve cuántas páginas ocupan tamanio bytes
func CalcularNumeroPaginas(tamanio int) int {
	return (tamanio + TamPagina - 1) / TamPagina
}
