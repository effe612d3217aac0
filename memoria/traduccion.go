package memoria

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrPaginaNoMapeada = errors.New("página no mapeada")
	ErrFueraDeRango    = errors.New("dirección fuera del espacio de usuario")
)

// LargoMaximoCadena acota la lectura de cadenas terminadas en NUL
const LargoMaximoCadena = TamPagina

// TraducirBuffer parte [inicio, inicio+largo) del espacio del token en los
// tramos físicos que lo cubren, cortando en cada borde de página.
// Si alguna página del rango no está mapeada devuelve ErrPaginaNoMapeada.
func TraducirBuffer(token uint64, inicio DirVirtual, largo int) ([][]byte, error) {
	if largo < 0 {
		return nil, fmt.Errorf("largo negativo %d", largo)
	}
	fin := inicio + DirVirtual(largo)
	if fin < inicio || fin > MaxDirVirtual {
		return nil, fmt.Errorf("%w: [%v, %v)", ErrFueraDeRango, inicio, fin)
	}

	tabla := DesdeToken(token)
	tramos := make([][]byte, 0, largo/TamPagina+2)
	actual := inicio
	for actual < fin {
		vpn := actual.Piso()
		entrada, ok := tabla.Traducir(vpn)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrPaginaNoMapeada, actual)
		}

		finTramo := (vpn + 1).Dir()
		if fin < finTramo {
			finTramo = fin
		}

		pagina := entrada.PPN().Bytes()
		desde := actual.Desplazamiento()
		hasta := desde + uint64(finTramo-actual)
		tramos = append(tramos, pagina[desde:hasta])
		actual = finTramo
	}
	return tramos, nil
}

// BufferUsuario recorre los tramos de un buffer de usuario como un único flujo
type BufferUsuario struct {
	tramos   [][]byte
	raiz     NumPaginaFisica
	tramo    int
	posicion int
}

// NuevoBufferUsuario traduce el rango y lo envuelve para leer o escribir en orden
func NuevoBufferUsuario(token uint64, inicio DirVirtual, largo int) (*BufferUsuario, error) {
	tramos, err := TraducirBuffer(token, inicio, largo)
	if err != nil {
		return nil, err
	}
	return &BufferUsuario{tramos: tramos, raiz: DesdeToken(token).Raiz()}, nil
}

// Tramos devuelve los tramos físicos, en orden
func (b *BufferUsuario) Tramos() [][]byte {
	return b.tramos
}

// Len devuelve el largo total del buffer
func (b *BufferUsuario) Len() int {
	total := 0
	for _, t := range b.tramos {
		total += len(t)
	}
	return total
}

// Read copia del buffer de usuario hacia p
func (b *BufferUsuario) Read(p []byte) (int, error) {
	n := b.recorrer(len(p), func(tramo []byte, hecho int) {
		copy(p[hecho:], tramo)
	})
	if n > 0 {
		registrarLectura(b.raiz)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write copia p hacia el buffer de usuario
func (b *BufferUsuario) Write(p []byte) (int, error) {
	n := b.recorrer(len(p), func(tramo []byte, hecho int) {
		copy(tramo, p[hecho:])
	})
	if n > 0 {
		registrarEscritura(b.raiz)
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// recorrer avanza hasta max bytes desde la posición actual
func (b *BufferUsuario) recorrer(max int, f func(tramo []byte, hecho int)) int {
	hecho := 0
	for hecho < max && b.tramo < len(b.tramos) {
		resto := b.tramos[b.tramo][b.posicion:]
		if len(resto) > max-hecho {
			resto = resto[:max-hecho]
		}
		f(resto, hecho)
		hecho += len(resto)
		b.posicion += len(resto)
		if b.posicion == len(b.tramos[b.tramo]) {
			b.tramo++
			b.posicion = 0
		}
	}
	return hecho
}

// TraducirCadena lee una cadena terminada en NUL del espacio del token
func TraducirCadena(token uint64, inicio DirVirtual) (string, error) {
	tabla := DesdeToken(token)
	var b bytes.Buffer
	va := inicio
	for b.Len() < LargoMaximoCadena {
		fisica, ok := tabla.TraducirDir(va)
		if !ok {
			return "", fmt.Errorf("%w: %v", ErrPaginaNoMapeada, va)
		}
		c := fisica.Piso().Bytes()[fisica.Desplazamiento()]
		if c == 0 {
			return b.String(), nil
		}
		b.WriteByte(c)
		va++
	}
	return "", fmt.Errorf("cadena en %v sin terminador en %d bytes", inicio, LargoMaximoCadena)
}

// EscribirEnUsuario serializa valor (little endian, tamaño fijo) en la dirección de usuario.
// Siempre pasa por TraducirBuffer: el destino puede cruzar páginas.
func EscribirEnUsuario(token uint64, destino DirVirtual, valor any) error {
	var datos bytes.Buffer
	if err := binary.Write(&datos, binary.LittleEndian, valor); err != nil {
		return fmt.Errorf("error serializando %T: %w", valor, err)
	}
	return EscribirBytesEnUsuario(token, destino, datos.Bytes())
}

// EscribirBytesEnUsuario copia datos a la dirección de usuario
func EscribirBytesEnUsuario(token uint64, destino DirVirtual, datos []byte) error {
	buffer, err := NuevoBufferUsuario(token, destino, len(datos))
	if err != nil {
		return err
	}
	_, err = buffer.Write(datos)
	return err
}

// LeerDeUsuario deserializa en valor (puntero a tamaño fijo) desde la dirección de usuario
func LeerDeUsuario(token uint64, origen DirVirtual, valor any) error {
	tamanio := binary.Size(valor)
	if tamanio < 0 {
		return fmt.Errorf("tipo %T sin tamaño fijo", valor)
	}
	datos, err := LeerBytesDeUsuario(token, origen, tamanio)
	if err != nil {
		return err
	}
	return binary.Read(bytes.NewReader(datos), binary.LittleEndian, valor)
}

// LeerBytesDeUsuario copia largo bytes desde la dirección de usuario
func LeerBytesDeUsuario(token uint64, origen DirVirtual, largo int) ([]byte, error) {
	buffer, err := NuevoBufferUsuario(token, origen, largo)
	if err != nil {
		return nil, err
	}
	datos := make([]byte, largo)
	if _, err := io.ReadFull(buffer, datos); err != nil && largo > 0 {
		return nil, err
	}
	return datos, nil
}
