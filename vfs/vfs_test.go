package vfs

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// bufferFijo imita un buffer de usuario de largo fijo
type bufferFijo struct {
	datos []byte
	pos   int
}

func (b *bufferFijo) Len() int { return len(b.datos) }

func (b *bufferFijo) Read(p []byte) (int, error) {
	if b.pos == len(b.datos) {
		return 0, io.EOF
	}
	n := copy(p, b.datos[b.pos:])
	b.pos += n
	return n, nil
}

func (b *bufferFijo) Write(p []byte) (int, error) {
	n := copy(b.datos[b.pos:], p)
	b.pos += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// leerResto lee de a 4 bytes hasta que Leer no devuelve nada
func leerResto(t *testing.T, a *ArchivoInodo) string {
	t.Helper()
	var resto []byte
	for {
		destino := &bufferFijo{datos: make([]byte, 4)}
		n, err := a.Leer(destino)
		if err != nil {
			t.Fatalf("Leer() error = %v", err)
		}
		if n == 0 {
			return string(resto)
		}
		resto = append(resto, destino.datos[:n]...)
	}
}

func TestBuscar(t *testing.T) {
	fs := NuevoRamFs()
	raiz := fs.Raiz()
	etc, _ := raiz.Crear("etc")
	passwd, _ := raiz.Crear("passwd")

	if got, ok := raiz.Buscar("etc"); !ok || got != etc {
		t.Errorf("Buscar(etc) = %v, %v", got, ok)
	}
	if got, ok := raiz.Buscar("passwd"); !ok || got != passwd {
		t.Errorf("Buscar(passwd) = %v, %v", got, ok)
	}
	if _, ok := raiz.Buscar("no"); ok {
		t.Error("Buscar(no) encontró un archivo")
	}
	if fs.Inodos() != 3 {
		t.Errorf("Inodos() = %d, want 3", fs.Inodos())
	}
	if got := strings.Join(raiz.Listar(), ","); got != "etc,passwd" {
		t.Errorf("Listar() = %q", got)
	}
}

func TestLeerEnYEscribirEn(t *testing.T) {
	raiz := NuevoRamFs().Raiz()
	if n := raiz.LeerEn(0, make([]byte, 10)); n != 0 {
		t.Errorf("LeerEn() sobre el directorio = %d", n)
	}

	etc, _ := raiz.Crear("etc")
	etc.EscribirEn(0, []byte("hello world!"))
	buf := make([]byte, 20)
	n := etc.LeerEn(0, buf)
	if n != 12 || string(buf[:n]) != "hello world!" {
		t.Errorf("LeerEn() = %d %q", n, buf[:n])
	}

	etc.EscribirEn(15, []byte("x"))
	n = etc.LeerEn(10, buf)
	if want := []byte("d!\x00\x00\x00x"); !bytes.Equal(buf[:n], want) {
		t.Errorf("LeerEn() tras escribir con hueco = %q, want %q", buf[:n], want)
	}

	etc.Limpiar()
	if n := etc.LeerEn(0, buf); n != 0 {
		t.Errorf("LeerEn() después de Limpiar = %d", n)
	}
}

func TestAbrirArchivo(t *testing.T) {
	tests := []struct {
		name       string
		flags      FlagsApertura
		existe     bool
		wantOk     bool
		legible    bool
		escribible bool
		vacia      bool
	}{
		{name: "lectura existente", flags: SoloLectura, existe: true, wantOk: true, legible: true},
		{name: "lectura inexistente", flags: SoloLectura, existe: false, wantOk: false},
		{name: "escritura", flags: SoloEscritura, existe: true, wantOk: true, escribible: true},
		{name: "lectura y escritura", flags: LecturaEscritura, existe: true, wantOk: true, legible: true, escribible: true},
		{name: "crear nuevo", flags: Crear | SoloEscritura, existe: false, wantOk: true, escribible: true, vacia: true},
		{name: "crear existente lo vacía", flags: Crear | LecturaEscritura, existe: true, wantOk: true, legible: true, escribible: true, vacia: true},
		{name: "truncar", flags: Truncar | LecturaEscritura, existe: true, wantOk: true, legible: true, escribible: true, vacia: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raiz := NuevoRamFs().Raiz()
			if tt.existe {
				inodo, _ := raiz.Crear("datos")
				inodo.EscribirEn(0, []byte("contenido"))
			}

			archivo, ok := AbrirArchivo(raiz, "datos", tt.flags)
			if ok != tt.wantOk {
				t.Fatalf("AbrirArchivo() ok = %v, want %v", ok, tt.wantOk)
			}
			if !ok {
				return
			}
			if archivo.Legible() != tt.legible || archivo.Escribible() != tt.escribible {
				t.Errorf("permisos = %v/%v, want %v/%v", archivo.Legible(), archivo.Escribible(), tt.legible, tt.escribible)
			}
			if vacia := leerResto(t, archivo) == ""; vacia != tt.vacia {
				t.Errorf("vacía = %v, want %v", vacia, tt.vacia)
			}
		})
	}
}

func TestArchivoInodoAvanzaDesplazamiento(t *testing.T) {
	raiz := NuevoRamFs().Raiz()
	archivo, _ := AbrirArchivo(raiz, "log", Crear|LecturaEscritura)

	for _, parte := range []string{"uno ", "dos ", "tres"} {
		if _, err := archivo.Escribir(&bufferFijo{datos: []byte(parte)}); err != nil {
			t.Fatalf("Escribir() error = %v", err)
		}
	}

	lector, _ := AbrirArchivo(raiz, "log", SoloLectura)
	destino := &bufferFijo{datos: make([]byte, 8)}
	if n, err := lector.Leer(destino); n != 8 || err != nil {
		t.Fatalf("Leer() = %d, %v", n, err)
	}
	if string(destino.datos) != "uno dos " {
		t.Errorf("primer Leer() = %q", destino.datos)
	}
	if resto := leerResto(t, lector); resto != "tres" {
		t.Errorf("resto = %q", resto)
	}
}

func TestStdio(t *testing.T) {
	esperas := 0
	fuente := make(chan byte, 1)
	in := Stdin{Fuente: fuente, Esperar: func() {
		esperas++
		fuente <- 'a'
	}}
	destino := &bufferFijo{datos: make([]byte, 1)}
	if n, err := in.Leer(destino); n != 1 || err != nil || destino.datos[0] != 'a' {
		t.Errorf("Stdin.Leer() = %d, %v, %q", n, err, destino.datos)
	}
	if esperas != 1 {
		t.Errorf("Stdin.Leer() esperó %d veces, want 1", esperas)
	}
	if _, err := in.Escribir(destino); err == nil {
		t.Error("Stdin.Escribir() no falló")
	}

	consola := Stdin{Fuente: LeerConsola(strings.NewReader("z"))}
	destino = &bufferFijo{datos: make([]byte, 1)}
	if n, err := consola.Leer(destino); n != 1 || err != nil || destino.datos[0] != 'z' {
		t.Errorf("Leer() de la consola = %d, %v, %q", n, err, destino.datos)
	}
	if n, err := consola.Leer(&bufferFijo{datos: make([]byte, 1)}); n != 0 || err != io.EOF {
		t.Errorf("Leer() con la consola cerrada = %d, %v", n, err)
	}

	var salida bytes.Buffer
	out := Stdout{Destino: &salida}
	if n, err := out.Escribir(&bufferFijo{datos: []byte("hola\n")}); n != 5 || err != nil {
		t.Errorf("Stdout.Escribir() = %d, %v", n, err)
	}
	if salida.String() != "hola\n" {
		t.Errorf("salida = %q", salida.String())
	}
}
