package cpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrInstruccionInvalida = errors.New("instrucción inválida")

type modoTexto int

const (
	sinTexto modoTexto = iota
	palabra
	palabraOpcional
	restoDeLinea
)

// formato dice cuántos números lleva la operación y si termina en texto
type formato struct {
	numeros  int
	opcional bool
	texto    modoTexto
}

var formatos = map[string]formato{
	"NOOP":         {},
	"WRITE":        {numeros: 1, texto: palabra},
	"READ":         {numeros: 2},
	"GOTO":         {numeros: 1},
	"YIELD":        {},
	"EXIT":         {opcional: true},
	"PRIORIDAD":    {numeros: 1},
	"SPAWN":        {texto: palabra},
	"ESPERAR":      {numeros: 1},
	"MUTEX_CREAR":  {texto: palabraOpcional},
	"MUTEX_LOCK":   {numeros: 1},
	"MUTEX_UNLOCK": {numeros: 1},
	"SEM_CREAR":    {numeros: 1},
	"SEM_DOWN":     {numeros: 1},
	"SEM_UP":       {numeros: 1},
	"MMAP":         {numeros: 3},
	"MUNMAP":       {numeros: 2},
	"DUMP_MEMORY":  {},
	"IMPRIMIR":     {texto: restoDeLinea},
}

// Instruccion es una línea de pseudocódigo ya validada
type Instruccion struct {
	Operacion string
	Numeros   []int64
	Texto     string
}

func (i Instruccion) String() string {
	partes := []string{i.Operacion}
	for _, n := range i.Numeros {
		partes = append(partes, strconv.FormatInt(n, 10))
	}
	if i.Texto != "" {
		partes = append(partes, i.Texto)
	}
	return strings.Join(partes, " ")
}

// Decodificar parte una línea en operación y parámetros. Los números aceptan
// prefijo 0x.
func Decodificar(linea string) (Instruccion, error) {
	partes := strings.Fields(linea)
	if len(partes) == 0 {
		return Instruccion{}, fmt.Errorf("%w: línea vacía", ErrInstruccionInvalida)
	}
	operacion := strings.ToUpper(partes[0])
	f, ok := formatos[operacion]
	if !ok {
		return Instruccion{}, fmt.Errorf("%w: operación desconocida %s", ErrInstruccionInvalida, partes[0])
	}
	parametros := partes[1:]

	numeros := f.numeros
	if f.opcional && len(parametros) > numeros {
		numeros++
	}
	if len(parametros) < numeros {
		return Instruccion{}, fmt.Errorf("%w: %s espera %d parámetros numéricos", ErrInstruccionInvalida, operacion, numeros)
	}

	ins := Instruccion{Operacion: operacion}
	for _, p := range parametros[:numeros] {
		n, err := strconv.ParseInt(p, 0, 64)
		if err != nil {
			return Instruccion{}, fmt.Errorf("%w: %s: %v", ErrInstruccionInvalida, operacion, err)
		}
		ins.Numeros = append(ins.Numeros, n)
	}
	resto := parametros[numeros:]

	switch f.texto {
	case sinTexto:
		if len(resto) > 0 {
			return Instruccion{}, fmt.Errorf("%w: %s con parámetros de más", ErrInstruccionInvalida, operacion)
		}
	case palabra, palabraOpcional:
		if len(resto) > 1 || (f.texto == palabra && len(resto) == 0) {
			return Instruccion{}, fmt.Errorf("%w: %s espera una palabra", ErrInstruccionInvalida, operacion)
		}
		if len(resto) == 1 {
			ins.Texto = resto[0]
		}
	case restoDeLinea:
		ins.Texto = strings.Join(resto, " ")
	}
	return ins, nil
}

// CargarScript decodifica un script entero. Las líneas vacías y las que
// empiezan con # no ocupan lugar en el PC.
func CargarScript(r io.Reader) ([]Instruccion, error) {
	var instrucciones []Instruccion
	scanner := bufio.NewScanner(r)
	numero := 0
	for scanner.Scan() {
		numero++
		linea := strings.TrimSpace(scanner.Text())
		if linea == "" || strings.HasPrefix(linea, "#") {
			continue
		}
		ins, err := Decodificar(linea)
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", numero, err)
		}
		instrucciones = append(instrucciones, ins)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return instrucciones, nil
}
