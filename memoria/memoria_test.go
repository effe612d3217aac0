package memoria

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

const tamMemoriaTest = 256 * TamPagina

func TestMain(m *testing.M) {
	InicializarMemoria(tamMemoriaTest)
	os.Exit(m.Run())
}

func nuevaTablaTest(t *testing.T) *TablaPaginas {
	t.Helper()
	InicializarMemoria(tamMemoriaTest)
	tabla, err := NuevaTablaPaginas()
	if err != nil {
		t.Fatalf("NuevaTablaPaginas() error = %v", err)
	}
	return tabla
}

func asignarTest(t *testing.T) *Marco {
	t.Helper()
	m, err := AsignarMarco()
	if err != nil {
		t.Fatalf("AsignarMarco() error = %v", err)
	}
	return m
}

func TestIndices(t *testing.T) {
	tests := []struct {
		name string
		vpn  NumPaginaVirtual
		want [Niveles]int
	}{
		{name: "cero", vpn: 0, want: [Niveles]int{0, 0, 0}},
		{name: "solo hoja", vpn: 5, want: [Niveles]int{0, 0, 5}},
		{name: "nivel medio", vpn: 1 << 9, want: [Niveles]int{0, 1, 0}},
		{name: "raíz", vpn: 3<<18 | 2<<9 | 1, want: [Niveles]int{3, 2, 1}},
		{name: "máximo", vpn: 1<<27 - 1, want: [Niveles]int{511, 511, 511}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.vpn.Indices(); got != tt.want {
				t.Errorf("Indices() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntradaTabla(t *testing.T) {
	e := NuevaEntrada(0xABCDE, FlagV|FlagR|FlagW|FlagU)
	if e.PPN() != 0xABCDE {
		t.Errorf("PPN() = %#x, want 0xabcde", uint64(e.PPN()))
	}
	if !e.Valida() || !e.Legible() || !e.Escribible() || e.Ejecutable() || !e.DeUsuario() {
		t.Errorf("flags = %v", e.Flags())
	}
	if got := e.Flags().String(); got != "VRW-U---" {
		t.Errorf("Flags().String() = %q", got)
	}
}

func TestTokenIdaYVuelta(t *testing.T) {
	tabla := nuevaTablaTest(t)
	defer tabla.Destruir()

	token := tabla.Token()
	if token>>60 != 8 {
		t.Fatalf("token %#x sin modo Sv39", token)
	}
	if DesdeToken(token).Raiz() != tabla.Raiz() {
		t.Errorf("DesdeToken(Token()).Raiz() = %d, want %d", DesdeToken(token).Raiz(), tabla.Raiz())
	}
}

func TestDesdeTokenModoInvalidoPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("DesdeToken con modo inválido no hizo panic")
		}
	}()
	DesdeToken(42)
}

func TestMapearYTraducir(t *testing.T) {
	tabla := nuevaTablaTest(t)
	defer tabla.Destruir()

	marco := asignarTest(t)
	defer marco.Liberar()

	vpn := NumPaginaVirtual(0x12345)
	if _, ok := tabla.Traducir(vpn); ok {
		t.Fatal("Traducir() encontró una página antes de mapear")
	}
	if err := tabla.Mapear(vpn, marco.PPN, FlagR|FlagW|FlagU); err != nil {
		t.Fatalf("Mapear() error = %v", err)
	}

	primera, ok := tabla.Traducir(vpn)
	if !ok {
		t.Fatal("Traducir() no encontró la página mapeada")
	}
	segunda, _ := tabla.Traducir(vpn)
	if primera != segunda {
		t.Errorf("traducciones distintas: %v / %v", primera, segunda)
	}
	if primera.PPN() != marco.PPN || primera.Flags() != FlagV|FlagR|FlagW|FlagU {
		t.Errorf("entrada = ppn %d flags %v", primera.PPN(), primera.Flags())
	}

	tabla.Desmapear(vpn)
	if _, ok := tabla.Traducir(vpn); ok {
		t.Error("Traducir() encontró la página después de desmapear")
	}
}

func TestTraducirNoReservaMarcos(t *testing.T) {
	tabla := nuevaTablaTest(t)
	defer tabla.Destruir()

	libres := ContarMarcosLibres()
	tabla.Traducir(0x7FFFF)
	if ContarMarcosLibres() != libres {
		t.Errorf("Traducir() reservó %d marcos", libres-ContarMarcosLibres())
	}

	if _, err := tabla.ResolverParaEscritura(0x7FFFF); err != nil {
		t.Fatalf("ResolverParaEscritura() error = %v", err)
	}
	if got := libres - ContarMarcosLibres(); got != Niveles-1 {
		t.Errorf("ResolverParaEscritura() reservó %d marcos, want %d", got, Niveles-1)
	}
	if tabla.MarcosPropios() != Niveles {
		t.Errorf("MarcosPropios() = %d, want %d", tabla.MarcosPropios(), Niveles)
	}
}

func TestVistaNoReservaNiveles(t *testing.T) {
	tabla := nuevaTablaTest(t)
	defer tabla.Destruir()
	if _, err := tabla.ResolverParaEscritura(0x100); err != nil {
		t.Fatalf("ResolverParaEscritura() error = %v", err)
	}

	vista := DesdeToken(tabla.Token())
	libres := ContarMarcosLibres()
	if _, err := vista.ResolverParaEscritura(0x100); err != nil {
		t.Errorf("ResolverParaEscritura() con niveles existentes error = %v", err)
	}
	if _, err := vista.ResolverParaEscritura(1 << 18); !errors.Is(err, ErrVistaSinMarcos) {
		t.Errorf("ResolverParaEscritura() en la vista error = %v, want ErrVistaSinMarcos", err)
	}
	if ContarMarcosLibres() != libres {
		t.Errorf("la vista reservó %d marcos", libres-ContarMarcosLibres())
	}
}

func TestRemapearPanics(t *testing.T) {
	tabla := nuevaTablaTest(t)
	marco := asignarTest(t)
	if err := tabla.Mapear(1, marco.PPN, FlagR); err != nil {
		t.Fatalf("Mapear() error = %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("Mapear() sobre página válida no hizo panic")
		}
	}()
	tabla.Mapear(1, marco.PPN, FlagR)
}

func TestDesmapearInvalidaPanics(t *testing.T) {
	tabla := nuevaTablaTest(t)
	defer func() {
		if recover() == nil {
			t.Fatal("Desmapear() de página inválida no hizo panic")
		}
	}()
	tabla.Desmapear(99)
}

func TestDestruirLiberaMarcosDeTabla(t *testing.T) {
	InicializarMemoria(tamMemoriaTest)
	libres := ContarMarcosLibres()

	tabla, err := NuevaTablaPaginas()
	if err != nil {
		t.Fatalf("NuevaTablaPaginas() error = %v", err)
	}
	for _, vpn := range []NumPaginaVirtual{0, 1 << 9, 1 << 18, 1<<27 - 1} {
		if _, err := tabla.ResolverParaEscritura(vpn); err != nil {
			t.Fatalf("ResolverParaEscritura(%v) error = %v", vpn, err)
		}
	}
	tabla.Destruir()

	if ContarMarcosLibres() != libres {
		t.Errorf("marcos libres = %d, want %d", ContarMarcosLibres(), libres)
	}
	if _, ok := ObtenerMetricas(tabla.Token()); ok {
		t.Error("métricas del espacio destruido siguen registradas")
	}
}

func TestAsignarMarco(t *testing.T) {
	InicializarMemoria(4 * TamPagina)

	var marcos []*Marco
	for i := 0; i < 4; i++ {
		marcos = append(marcos, asignarTest(t))
	}
	if _, err := AsignarMarco(); !errors.Is(err, ErrSinMarcos) {
		t.Fatalf("AsignarMarco() sin marcos error = %v, want ErrSinMarcos", err)
	}

	marcos[2].PPN.Bytes()[0] = 0xFF
	marcos[2].Liberar()
	reciclado := asignarTest(t)
	if reciclado.PPN != marcos[2].PPN {
		t.Errorf("marco reciclado = %d, want %d", reciclado.PPN, marcos[2].PPN)
	}
	if reciclado.PPN.Bytes()[0] != 0 {
		t.Error("el marco reciclado no se entregó en cero")
	}
}

func TestLiberarDosVecesPanics(t *testing.T) {
	InicializarMemoria(tamMemoriaTest)
	m := asignarTest(t)
	m.Liberar()

	defer func() {
		if recover() == nil {
			t.Fatal("Liberar() dos veces no hizo panic")
		}
	}()
	m.Liberar()
}

// espacioTest mapea [base, base+paginas*TamPagina) con permisos de usuario R|W
func espacioTest(t *testing.T, base DirVirtual, paginas int) *EspacioMemoria {
	t.Helper()
	InicializarMemoria(tamMemoriaTest)
	espacio, err := NuevoEspacioVacio()
	if err != nil {
		t.Fatalf("NuevoEspacioVacio() error = %v", err)
	}
	if err := espacio.Mmap(base, paginas*TamPagina, 0b011); err != nil {
		t.Fatalf("Mmap() error = %v", err)
	}
	return espacio
}

func TestTraducirBuffer(t *testing.T) {
	const base DirVirtual = 0x10000
	espacio := espacioTest(t, base, 4)
	defer espacio.Destruir()

	tests := []struct {
		name    string
		inicio  DirVirtual
		largo   int
		tramos  []int
		wantErr error
	}{
		{name: "vacío", inicio: base, largo: 0, tramos: []int{}},
		{name: "dentro de una página", inicio: base + 16, largo: 100, tramos: []int{100}},
		{name: "página completa", inicio: base, largo: TamPagina, tramos: []int{TamPagina}},
		{name: "cruza un borde", inicio: base + TamPagina - 10, largo: 30, tramos: []int{10, 20}},
		{name: "tres páginas", inicio: base + 100, largo: 2 * TamPagina, tramos: []int{TamPagina - 100, TamPagina, 100}},
		{name: "termina en borde", inicio: base + 8, largo: 2*TamPagina - 8, tramos: []int{TamPagina - 8, TamPagina}},
		{name: "sale del área", inicio: base + 3*TamPagina + 1, largo: TamPagina, wantErr: ErrPaginaNoMapeada},
		{name: "empieza sin mapear", inicio: base - 1, largo: 2, wantErr: ErrPaginaNoMapeada},
		{name: "fuera de rango", inicio: MaxDirVirtual - 1, largo: 2, wantErr: ErrFueraDeRango},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tramos, err := TraducirBuffer(espacio.Token(), tt.inicio, tt.largo)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("TraducirBuffer() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("TraducirBuffer() error = %v", err)
			}
			if len(tramos) != len(tt.tramos) {
				t.Fatalf("TraducirBuffer() = %d tramos, want %d", len(tramos), len(tt.tramos))
			}
			total := 0
			for i, tramo := range tramos {
				if len(tramo) != tt.tramos[i] {
					t.Errorf("tramo %d largo = %d, want %d", i, len(tramo), tt.tramos[i])
				}
				if len(tramo) > TamPagina {
					t.Errorf("tramo %d mayor a una página", i)
				}
				total += len(tramo)
			}
			if total != tt.largo {
				t.Errorf("suma de tramos = %d, want %d", total, tt.largo)
			}
		})
	}
}

func TestBufferUsuarioCruzaPaginas(t *testing.T) {
	const base DirVirtual = 0x20000
	espacio := espacioTest(t, base, 3)
	defer espacio.Destruir()

	datos := bytes.Repeat([]byte("kernel"), 1300)
	destino := base + TamPagina - 7
	if err := EscribirBytesEnUsuario(espacio.Token(), destino, datos); err != nil {
		t.Fatalf("EscribirBytesEnUsuario() error = %v", err)
	}

	leidos, err := LeerBytesDeUsuario(espacio.Token(), destino, len(datos))
	if err != nil {
		t.Fatalf("LeerBytesDeUsuario() error = %v", err)
	}
	if !bytes.Equal(leidos, datos) {
		t.Error("los datos leídos no coinciden con los escritos")
	}

	buffer, err := NuevoBufferUsuario(espacio.Token(), destino, len(datos))
	if err != nil {
		t.Fatalf("NuevoBufferUsuario() error = %v", err)
	}
	var copia bytes.Buffer
	if _, err := io.Copy(&copia, buffer); err != nil {
		t.Fatalf("io.Copy() error = %v", err)
	}
	if !bytes.Equal(copia.Bytes(), datos) {
		t.Error("io.Copy desde el buffer no devolvió los datos")
	}

	metricas, ok := ObtenerMetricas(espacio.Token())
	if !ok || metricas.EscriturasMemoria == 0 || metricas.LecturasMemoria == 0 {
		t.Errorf("métricas = %+v, %v", metricas, ok)
	}
}

func TestValoresTipadosEnUsuario(t *testing.T) {
	const base DirVirtual = 0x30000
	espacio := espacioTest(t, base, 2)
	defer espacio.Destruir()

	type tiempo struct {
		Seg  uint64
		USeg uint64
	}
	escrito := tiempo{Seg: 12, USeg: 345678}
	destino := base + TamPagina - 4
	if err := EscribirEnUsuario(espacio.Token(), destino, escrito); err != nil {
		t.Fatalf("EscribirEnUsuario() error = %v", err)
	}
	var leido tiempo
	if err := LeerDeUsuario(espacio.Token(), destino, &leido); err != nil {
		t.Fatalf("LeerDeUsuario() error = %v", err)
	}
	if leido != escrito {
		t.Errorf("LeerDeUsuario() = %+v, want %+v", leido, escrito)
	}
}

func TestTraducirCadena(t *testing.T) {
	const base DirVirtual = 0x40000
	espacio := espacioTest(t, base, 2)
	defer espacio.Destruir()

	destino := base + TamPagina - 3
	if err := EscribirBytesEnUsuario(espacio.Token(), destino, []byte("hola\x00")); err != nil {
		t.Fatalf("EscribirBytesEnUsuario() error = %v", err)
	}
	got, err := TraducirCadena(espacio.Token(), destino)
	if err != nil {
		t.Fatalf("TraducirCadena() error = %v", err)
	}
	if got != "hola" {
		t.Errorf("TraducirCadena() = %q, want %q", got, "hola")
	}

	if _, err := TraducirCadena(espacio.Token(), base+2*TamPagina); !errors.Is(err, ErrPaginaNoMapeada) {
		t.Errorf("TraducirCadena() sin mapear error = %v", err)
	}
}

func TestMmapValidaciones(t *testing.T) {
	const base DirVirtual = 0x50000
	tests := []struct {
		name    string
		inicio  DirVirtual
		largo   int
		puerto  int
		wantErr error
	}{
		{name: "válido", inicio: base + 4*TamPagina, largo: TamPagina, puerto: 0b001},
		{name: "largo no múltiplo", inicio: base + 8*TamPagina, largo: 10, puerto: 0b111},
		{name: "largo cero", inicio: base + 12*TamPagina, largo: 0, puerto: 0b001},
		{name: "desalineada", inicio: base + 1, largo: TamPagina, puerto: 0b011, wantErr: ErrDireccionDesalineada},
		{name: "sin permisos", inicio: base + 4*TamPagina, largo: TamPagina, puerto: 0, wantErr: ErrPermisosInvalidos},
		{name: "bits altos", inicio: base + 4*TamPagina, largo: TamPagina, puerto: 0b1001, wantErr: ErrPermisosInvalidos},
		{name: "solapa", inicio: base + TamPagina, largo: TamPagina, puerto: 0b011, wantErr: ErrYaMapeada},
		{name: "solapa al final", inicio: base - TamPagina, largo: 2 * TamPagina, puerto: 0b011, wantErr: ErrYaMapeada},
		{name: "fin da la vuelta", inicio: 0xFFFF_FFFF_FFFF_F000, largo: 2 * TamPagina, puerto: 0b011, wantErr: ErrFueraDeRango},
		{name: "inicio en el tope", inicio: MaxDirVirtual, largo: TamPagina, puerto: 0b011, wantErr: ErrFueraDeRango},
		{name: "pasa el tope", inicio: MaxDirVirtual - TamPagina, largo: 2 * TamPagina, puerto: 0b011, wantErr: ErrFueraDeRango},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			espacio := espacioTest(t, base, 2)
			defer espacio.Destruir()
			antes := espacio.PaginasMapeadas()

			err := espacio.Mmap(tt.inicio, tt.largo, tt.puerto)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Mmap() error = %v, want %v", err, tt.wantErr)
				}
				if espacio.PaginasMapeadas() != antes {
					t.Errorf("un Mmap fallido mapeó %d páginas", espacio.PaginasMapeadas()-antes)
				}
				return
			}
			if err != nil {
				t.Fatalf("Mmap() error = %v", err)
			}
			want := antes + CalcularNumeroPaginas(tt.largo)
			if espacio.PaginasMapeadas() != want {
				t.Errorf("PaginasMapeadas() = %d, want %d", espacio.PaginasMapeadas(), want)
			}
		})
	}
}

func TestMmapPermisos(t *testing.T) {
	espacio := espacioTest(t, 0x60000, 1)
	defer espacio.Destruir()

	if err := espacio.Mmap(0x70000, TamPagina, 0b101); err != nil {
		t.Fatalf("Mmap() error = %v", err)
	}
	entrada, ok := espacio.Traducir(DirVirtual(0x70000).Piso())
	if !ok {
		t.Fatal("página de mmap sin traducción")
	}
	if want := FlagV | FlagR | FlagX | FlagU; entrada.Flags() != want {
		t.Errorf("flags = %v, want %v", entrada.Flags(), want)
	}
}

func TestMunmap(t *testing.T) {
	const base DirVirtual = 0x80000
	espacio := espacioTest(t, base, 4)
	defer espacio.Destruir()
	libres := ContarMarcosLibres()

	if err := espacio.Munmap(base+TamPagina, 2*TamPagina); err != nil {
		t.Fatalf("Munmap() error = %v", err)
	}
	if got := ContarMarcosLibres() - libres; got != 2 {
		t.Errorf("Munmap() liberó %d marcos, want 2", got)
	}
	if _, ok := espacio.Traducir((base + TamPagina).Piso()); ok {
		t.Error("página desmapeada sigue traducible")
	}
	if _, ok := espacio.Traducir(base.Piso()); !ok {
		t.Error("Munmap() desmapeó una página fuera del rango")
	}

	if err := espacio.Munmap(base, 2*TamPagina); !errors.Is(err, ErrNoMapeada) {
		t.Fatalf("Munmap() con hueco error = %v, want ErrNoMapeada", err)
	}
	if _, ok := espacio.Traducir(base.Piso()); !ok {
		t.Error("un Munmap fallido desmapeó páginas")
	}
	if err := espacio.Munmap(base+1, TamPagina); !errors.Is(err, ErrDireccionDesalineada) {
		t.Errorf("Munmap() desalineado error = %v", err)
	}
	if err := espacio.Munmap(0xFFFF_FFFF_FFFF_F000, 2*TamPagina); !errors.Is(err, ErrFueraDeRango) {
		t.Errorf("Munmap() que da la vuelta error = %v, want ErrFueraDeRango", err)
	}
}

func TestCopiarDe(t *testing.T) {
	const base DirVirtual = 0x90000
	padre := espacioTest(t, base, 2)
	defer padre.Destruir()

	if err := EscribirBytesEnUsuario(padre.Token(), base+TamPagina-2, []byte("fork")); err != nil {
		t.Fatalf("EscribirBytesEnUsuario() error = %v", err)
	}
	hijo, err := CopiarDe(padre)
	if err != nil {
		t.Fatalf("CopiarDe() error = %v", err)
	}
	defer hijo.Destruir()

	leidos, err := LeerBytesDeUsuario(hijo.Token(), base+TamPagina-2, 4)
	if err != nil || string(leidos) != "fork" {
		t.Fatalf("hijo leyó %q, %v", leidos, err)
	}

	if err := EscribirBytesEnUsuario(hijo.Token(), base, []byte("X")); err != nil {
		t.Fatalf("EscribirBytesEnUsuario() error = %v", err)
	}
	original, _ := LeerBytesDeUsuario(padre.Token(), base, 1)
	if original[0] == 'X' {
		t.Error("la escritura del hijo se ve en el padre")
	}
}

func TestLiberarPaginasYDestruir(t *testing.T) {
	InicializarMemoria(tamMemoriaTest)
	libres := ContarMarcosLibres()

	espacio, err := NuevoEspacioVacio()
	if err != nil {
		t.Fatalf("NuevoEspacioVacio() error = %v", err)
	}
	if err := espacio.Mmap(0x1000, 3*TamPagina, 0b011); err != nil {
		t.Fatalf("Mmap() error = %v", err)
	}
	espacio.LiberarPaginas()
	if espacio.PaginasMapeadas() != 0 {
		t.Errorf("PaginasMapeadas() = %d después de LiberarPaginas", espacio.PaginasMapeadas())
	}
	if _, ok := espacio.Traducir(1); ok {
		t.Error("LiberarPaginas() dejó la página mapeada")
	}
	espacio.Destruir()
	if ContarMarcosLibres() != libres {
		t.Errorf("marcos libres = %d, want %d", ContarMarcosLibres(), libres)
	}
}

func TestInsertarAreaSinMarcosNoDejaRestos(t *testing.T) {
	InicializarMemoria(6 * TamPagina)
	espacio, err := NuevoEspacioVacio()
	if err != nil {
		t.Fatalf("NuevoEspacioVacio() error = %v", err)
	}
	libres := ContarMarcosLibres()

	if _, err := espacio.InsertarAreaMarcos(0x1000, 0x1000+20*TamPagina, PermisoR|PermisoU); !errors.Is(err, ErrSinMarcos) {
		t.Fatalf("InsertarAreaMarcos() error = %v, want ErrSinMarcos", err)
	}
	if len(espacio.Areas()) != 0 || espacio.PaginasMapeadas() != 0 {
		t.Error("quedó un área a medio mapear")
	}
	// los niveles intermedios quedan en la tabla
	if ContarMarcosLibres() != libres-(Niveles-1) {
		t.Errorf("marcos libres = %d, want %d", ContarMarcosLibres(), libres-(Niveles-1))
	}
}

func TestCrearMemoryDump(t *testing.T) {
	espacio := espacioTest(t, 0xA0000, 2)
	defer espacio.Destruir()
	if err := EscribirBytesEnUsuario(espacio.Token(), 0xA0000+TamPagina, []byte("dump")); err != nil {
		t.Fatalf("EscribirBytesEnUsuario() error = %v", err)
	}

	dir := t.TempDir()
	ruta, err := CrearMemoryDump(espacio, 7, dir)
	if err != nil {
		t.Fatalf("CrearMemoryDump() error = %v", err)
	}
	if filepath.Dir(ruta) != dir {
		t.Errorf("dump en %q, want en %q", ruta, dir)
	}
	contenido, err := os.ReadFile(ruta)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(contenido) != 2*TamPagina {
		t.Fatalf("dump de %d bytes, want %d", len(contenido), 2*TamPagina)
	}
	if string(contenido[TamPagina:TamPagina+4]) != "dump" {
		t.Error("la segunda página del dump no tiene los datos escritos")
	}
}
