package memoria

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

var (
	ErrDireccionDesalineada = errors.New("dirección no alineada a página")
	ErrPermisosInvalidos    = errors.New("permisos inválidos")
	ErrYaMapeada            = errors.New("página ya mapeada")
	ErrNoMapeada            = errors.New("página no mapeada en el espacio")
)

// Permiso usa los mismos bits que los flags de la PTE
type Permiso uint8

const (
	PermisoR Permiso = Permiso(FlagR)
	PermisoW Permiso = Permiso(FlagW)
	PermisoX Permiso = Permiso(FlagX)
	PermisoU Permiso = Permiso(FlagU)
)

// PermisoDesdePuerto valida el puerto de mmap (bit0 R, bit1 W, bit2 X) y lo
// convierte en permisos de usuario. Bits altos o ningún bit es inválido.
func PermisoDesdePuerto(puerto int) (Permiso, error) {
	if puerto&^0x7 != 0 || puerto&0x7 == 0 {
		return 0, fmt.Errorf("%w: puerto %#x", ErrPermisosInvalidos, puerto)
	}
	return Permiso(puerto<<1) | PermisoU, nil
}

func (p Permiso) String() string {
	return FlagsPTE(p).String()
}

// AreaMapeo es un rango contiguo de páginas virtuales respaldadas por marcos propios
type AreaMapeo struct {
	Inicio  NumPaginaVirtual
	Fin     NumPaginaVirtual // exclusivo
	Permiso Permiso
	marcos  map[NumPaginaVirtual]*Marco
}

func nuevaArea(inicio, fin NumPaginaVirtual, permiso Permiso) *AreaMapeo {
	return &AreaMapeo{
		Inicio:  inicio,
		Fin:     fin,
		Permiso: permiso,
		marcos:  make(map[NumPaginaVirtual]*Marco),
	}
}

// Paginas devuelve las páginas mapeadas del área, en orden
func (a *AreaMapeo) Paginas() []NumPaginaVirtual {
	paginas := make([]NumPaginaVirtual, 0, len(a.marcos))
	for vpn := range a.marcos {
		paginas = append(paginas, vpn)
	}
	sort.Slice(paginas, func(i, j int) bool { return paginas[i] < paginas[j] })
	return paginas
}

func (a *AreaMapeo) contiene(vpn NumPaginaVirtual) bool {
	_, ok := a.marcos[vpn]
	return ok
}

func (a *AreaMapeo) mapearPagina(tabla *TablaPaginas, vpn NumPaginaVirtual) error {
	marco, err := AsignarMarco()
	if err != nil {
		return err
	}
	if err := tabla.Mapear(vpn, marco.PPN, FlagsPTE(a.Permiso)); err != nil {
		marco.Liberar()
		return err
	}
	a.marcos[vpn] = marco
	return nil
}

func (a *AreaMapeo) desmapearPagina(tabla *TablaPaginas, vpn NumPaginaVirtual) {
	tabla.Desmapear(vpn)
	a.marcos[vpn].Liberar()
	delete(a.marcos, vpn)
}

func (a *AreaMapeo) desmapearTodo(tabla *TablaPaginas) {
	for _, vpn := range a.Paginas() {
		a.desmapearPagina(tabla, vpn)
	}
}

// EspacioMemoria es el espacio de direcciones de un proceso: su tabla de
// páginas más las áreas de datos que cuelgan de ella
type EspacioMemoria struct {
	tabla *TablaPaginas
	areas []*AreaMapeo
}

// NuevoEspacioVacio crea un espacio sin áreas
func NuevoEspacioVacio() (*EspacioMemoria, error) {
	tabla, err := NuevaTablaPaginas()
	if err != nil {
		return nil, err
	}
	return &EspacioMemoria{tabla: tabla}, nil
}

func (e *EspacioMemoria) Token() uint64 {
	return e.tabla.Token()
}

func (e *EspacioMemoria) Tabla() *TablaPaginas {
	return e.tabla
}

// Traducir consulta la tabla del espacio
func (e *EspacioMemoria) Traducir(vpn NumPaginaVirtual) (EntradaTabla, bool) {
	return e.tabla.Traducir(vpn)
}

// Areas devuelve las áreas vigentes
func (e *EspacioMemoria) Areas() []*AreaMapeo {
	return e.areas
}

// PaginasMapeadas cuenta las páginas de datos del espacio
func (e *EspacioMemoria) PaginasMapeadas() int {
	total := 0
	for _, a := range e.areas {
		total += len(a.marcos)
	}
	return total
}

// InsertarAreaMarcos mapea [inicio, fin) con marcos nuevos. Si faltan marcos
// no queda nada del área a medio mapear.
func (e *EspacioMemoria) InsertarAreaMarcos(inicio, fin DirVirtual, permiso Permiso) (*AreaMapeo, error) {
	area := nuevaArea(inicio.Piso(), fin.Techo(), permiso)
	for vpn := area.Inicio; vpn < area.Fin; vpn++ {
		if err := area.mapearPagina(e.tabla, vpn); err != nil {
			area.desmapearTodo(e.tabla)
			return nil, fmt.Errorf("error mapeando %v: %w", vpn, err)
		}
	}
	e.areas = append(e.areas, area)
	return area, nil
}

// RemoverAreaConInicio desmapea y libera el área que empieza en inicio
func (e *EspacioMemoria) RemoverAreaConInicio(inicio NumPaginaVirtual) bool {
	for i, a := range e.areas {
		if a.Inicio == inicio {
			a.desmapearTodo(e.tabla)
			e.areas = append(e.areas[:i], e.areas[i+1:]...)
			return true
		}
	}
	return false
}

// Mmap mapea [inicio, inicio+largo) con los permisos del puerto. Se valida todo el
// rango antes de tocar la tabla: si alguna página ya está mapeada no se mapea nada.
func (e *EspacioMemoria) Mmap(inicio DirVirtual, largo int, puerto int) error {
	if !inicio.Alineada() {
		return fmt.Errorf("%w: %v", ErrDireccionDesalineada, inicio)
	}
	permiso, err := PermisoDesdePuerto(puerto)
	if err != nil {
		return err
	}
	fin, err := rangoUsuario(inicio, largo)
	if err != nil {
		return err
	}
	if largo == 0 {
		return nil
	}

	for vpn := inicio.Piso(); vpn < fin.Techo(); vpn++ {
		if _, ok := e.tabla.Traducir(vpn); ok {
			return fmt.Errorf("%w: %v", ErrYaMapeada, vpn)
		}
	}

	if _, err := e.InsertarAreaMarcos(inicio, fin, permiso); err != nil {
		return err
	}
	utils.InfoLog.Debug("Área mapeada", "token", e.Token(), "inicio", inicio.String(), "paginas", CalcularNumeroPaginas(largo), "permisos", permiso.String())
	return nil
}

// rangoUsuario calcula el fin de [inicio, inicio+largo) y lo rechaza si se
// pasa del espacio virtual o si la suma da la vuelta
func rangoUsuario(inicio DirVirtual, largo int) (DirVirtual, error) {
	fin := inicio + DirVirtual(largo)
	if largo < 0 || inicio >= MaxDirVirtual || fin < inicio || fin > MaxDirVirtual {
		return fin, fmt.Errorf("%w: [%v, %v)", ErrFueraDeRango, inicio, fin)
	}
	return fin, nil
}

// Munmap desmapea [inicio, inicio+largo). Todas las páginas tienen que pertenecer a
// alguna área del espacio; si falta una no se desmapea nada.
func (e *EspacioMemoria) Munmap(inicio DirVirtual, largo int) error {
	if !inicio.Alineada() {
		return fmt.Errorf("%w: %v", ErrDireccionDesalineada, inicio)
	}
	fin, err := rangoUsuario(inicio, largo)
	if err != nil {
		return err
	}

	duenias := make(map[NumPaginaVirtual]*AreaMapeo)
	for vpn := inicio.Piso(); vpn < fin.Techo(); vpn++ {
		area := e.areaDe(vpn)
		if area == nil {
			return fmt.Errorf("%w: %v", ErrNoMapeada, vpn)
		}
		duenias[vpn] = area
	}

	for vpn, area := range duenias {
		area.desmapearPagina(e.tabla, vpn)
	}
	e.descartarAreasVacias()
	utils.InfoLog.Debug("Área desmapeada", "token", e.Token(), "inicio", inicio.String(), "largo", largo)
	return nil
}

func (e *EspacioMemoria) areaDe(vpn NumPaginaVirtual) *AreaMapeo {
	for _, a := range e.areas {
		if a.contiene(vpn) {
			return a
		}
	}
	return nil
}

func (e *EspacioMemoria) descartarAreasVacias() {
	vigentes := e.areas[:0]
	for _, a := range e.areas {
		if len(a.marcos) > 0 {
			vigentes = append(vigentes, a)
		}
	}
	e.areas = vigentes
}

// CopiarDe crea un espacio nuevo con las mismas áreas que otro y una copia de su contenido
func CopiarDe(otro *EspacioMemoria) (*EspacioMemoria, error) {
	copia, err := NuevoEspacioVacio()
	if err != nil {
		return nil, err
	}
	for _, area := range otro.areas {
		nueva := nuevaArea(area.Inicio, area.Fin, area.Permiso)
		for _, vpn := range area.Paginas() {
			if err := nueva.mapearPagina(copia.tabla, vpn); err != nil {
				nueva.desmapearTodo(copia.tabla)
				copia.Destruir()
				return nil, fmt.Errorf("error copiando %v: %w", vpn, err)
			}
			copy(nueva.marcos[vpn].PPN.Bytes(), area.marcos[vpn].PPN.Bytes())
		}
		copia.areas = append(copia.areas, nueva)
	}
	return copia, nil
}

// LiberarPaginas devuelve los marcos de datos y conserva la tabla. Lo usa un
// proceso zombie antes de que el padre lo recolecte.
func (e *EspacioMemoria) LiberarPaginas() {
	for _, a := range e.areas {
		a.desmapearTodo(e.tabla)
	}
	e.areas = nil
}

// Destruir libera los marcos de datos y los de la tabla
func (e *EspacioMemoria) Destruir() {
	e.LiberarPaginas()
	e.tabla.Destruir()
}
