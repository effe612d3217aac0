package memoria

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// ErrVistaSinMarcos: una vista de DesdeToken no puede reservar niveles,
// nadie los liberaría
var ErrVistaSinMarcos = errors.New("la vista de la tabla no tiene marcos propios")

// FlagsPTE son los 8 bits bajos de una entrada
type FlagsPTE uint8

const (
	FlagV FlagsPTE = 1 << iota // Valid
	FlagR                      // Readable
	FlagW                      // Writable
	FlagX                      // Executable
	FlagU                      // User
	FlagG                      // Global
	FlagA                      // Accessed
	FlagD                      // Dirty
)

func (f FlagsPTE) String() string {
	const letras = "VRWXUGAD"
	var b strings.Builder
	for i := 0; i < len(letras); i++ {
		if f&(1<<i) != 0 {
			b.WriteByte(letras[i])
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// EntradaTabla es una PTE Sv39: PPN de 44 bits a partir del bit 10 más los flags
type EntradaTabla uint64

func NuevaEntrada(ppn NumPaginaFisica, flags FlagsPTE) EntradaTabla {
	return EntradaTabla(uint64(ppn)<<10 | uint64(flags))
}

func (e EntradaTabla) PPN() NumPaginaFisica {
	return NumPaginaFisica(uint64(e) >> 10 & (1<<AnchoPPN - 1))
}

func (e EntradaTabla) Flags() FlagsPTE {
	return FlagsPTE(e)
}

func (e EntradaTabla) Valida() bool     { return e.Flags()&FlagV != 0 }
func (e EntradaTabla) Legible() bool    { return e.Flags()&FlagR != 0 }
func (e EntradaTabla) Escribible() bool { return e.Flags()&FlagW != 0 }
func (e EntradaTabla) Ejecutable() bool { return e.Flags()&FlagX != 0 }
func (e EntradaTabla) DeUsuario() bool  { return e.Flags()&FlagU != 0 }

// ranura ubica una entrada dentro de un marco de tabla
type ranura struct {
	marco  NumPaginaFisica
	indice int
}

func (r ranura) leer() EntradaTabla {
	b := r.marco.Bytes()
	return EntradaTabla(binary.LittleEndian.Uint64(b[r.indice*TamEntrada:]))
}

func (r ranura) escribir(e EntradaTabla) {
	b := r.marco.Bytes()
	binary.LittleEndian.PutUint64(b[r.indice*TamEntrada:], uint64(e))
}

// TablaPaginas es el traductor de un espacio de direcciones: la raíz más los
// marcos de los niveles intermedios, que le pertenecen.
type TablaPaginas struct {
	raiz   NumPaginaFisica
	marcos []*Marco
}

// NuevaTablaPaginas reserva el marco raíz
func NuevaTablaPaginas() (*TablaPaginas, error) {
	marco, err := AsignarMarco()
	if err != nil {
		return nil, fmt.Errorf("error creando tabla raíz: %w", err)
	}
	registrarEspacio(marco.PPN)
	return &TablaPaginas{
		raiz:   marco.PPN,
		marcos: []*Marco{marco},
	}, nil
}

// DesdeToken arma una vista sin marcos propios de la tabla identificada por el token.
// Sirve para resolver direcciones de otro espacio desde cualquier contexto.
func DesdeToken(token uint64) *TablaPaginas {
	if token>>60 != modoSv39 {
		panic(fmt.Sprintf("token %#x sin modo Sv39", token))
	}
	return &TablaPaginas{
		raiz: NumPaginaFisica(token & (1<<AnchoPPN - 1)),
	}
}

// Token devuelve el valor satp de este espacio
func (t *TablaPaginas) Token() uint64 {
	return modoSv39<<60 | uint64(t.raiz)
}

// Raiz devuelve el marco raíz
func (t *TablaPaginas) Raiz() NumPaginaFisica {
	return t.raiz
}

// buscarEntrada recorre raíz -> hoja. Con crear reserva los niveles intermedios
// que falten (nunca la hoja); sin crear corta apenas falta un nivel.
func (t *TablaPaginas) buscarEntrada(vpn NumPaginaVirtual, crear bool) (ranura, bool, error) {
	indices := vpn.Indices()
	marco := t.raiz
	registrarAccesoTabla(t.raiz)

	for nivel, idx := range indices {
		r := ranura{marco: marco, indice: idx}
		if nivel == Niveles-1 {
			return r, true, nil
		}

		entrada := r.leer()
		if !entrada.Valida() {
			if !crear {
				return ranura{}, false, nil
			}
			if len(t.marcos) == 0 {
				return ranura{}, false, fmt.Errorf("%w: raiz %d", ErrVistaSinMarcos, uint64(t.raiz))
			}
			nuevo, err := AsignarMarco()
			if err != nil {
				return ranura{}, false, fmt.Errorf("error creando tabla de nivel %d: %w", nivel+1, err)
			}
			t.marcos = append(t.marcos, nuevo)
			entrada = NuevaEntrada(nuevo.PPN, FlagV)
			r.escribir(entrada)
			utils.InfoLog.Debug("Tabla del siguiente nivel creada",
				"raiz", uint64(t.raiz), "nivel", nivel+1, "marco", uint64(nuevo.PPN))
		}
		marco = entrada.PPN()
	}
	return ranura{}, false, nil
}

// Mapear instala una hoja nueva. Remapear una página válida es un error del kernel.
func (t *TablaPaginas) Mapear(vpn NumPaginaVirtual, ppn NumPaginaFisica, flags FlagsPTE) error {
	r, _, err := t.buscarEntrada(vpn, true)
	if err != nil {
		return err
	}
	if r.leer().Valida() {
		panic(fmt.Sprintf("%v ya estaba mapeada antes de mapear", vpn))
	}
	r.escribir(NuevaEntrada(ppn, flags|FlagV))
	return nil
}

// Desmapear limpia una hoja. Desmapear una página inválida es un error del kernel.
func (t *TablaPaginas) Desmapear(vpn NumPaginaVirtual) {
	r, ok, _ := t.buscarEntrada(vpn, false)
	if !ok || !r.leer().Valida() {
		panic(fmt.Sprintf("%v inválida antes de desmapear", vpn))
	}
	r.escribir(0)
}

// Traducir devuelve la hoja válida del VPN sin reservar nada
func (t *TablaPaginas) Traducir(vpn NumPaginaVirtual) (EntradaTabla, bool) {
	r, ok, _ := t.buscarEntrada(vpn, false)
	if !ok {
		return 0, false
	}
	entrada := r.leer()
	if !entrada.Valida() {
		return 0, false
	}
	return entrada, true
}

// TraducirDir traduce una dirección virtual completa
func (t *TablaPaginas) TraducirDir(va DirVirtual) (DirFisica, bool) {
	entrada, ok := t.Traducir(va.Piso())
	if !ok {
		return 0, false
	}
	return entrada.PPN().Dir() + DirFisica(va.Desplazamiento()), true
}

// ResolverParaEscritura recorre la tabla creando los niveles intermedios que
// falten y devuelve la hoja, válida o no. Sólo la tabla dueña puede crearlos.
func (t *TablaPaginas) ResolverParaEscritura(vpn NumPaginaVirtual) (EntradaTabla, error) {
	r, _, err := t.buscarEntrada(vpn, true)
	if err != nil {
		return 0, err
	}
	return r.leer(), nil
}

// MarcosPropios devuelve cuántos marcos de tabla pertenecen al traductor
func (t *TablaPaginas) MarcosPropios() int {
	return len(t.marcos)
}

// Destruir libera los marcos de la tabla. Las vistas de DesdeToken no tienen nada que liberar.
func (t *TablaPaginas) Destruir() {
	if len(t.marcos) == 0 {
		return
	}
	olvidarEspacio(t.raiz)
	for _, m := range t.marcos {
		m.Liberar()
	}
	t.marcos = nil
}
