package tarea

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
)

// Distribución del espacio de usuario de cada hilo
const (
	DirTrampolin memoria.DirVirtual = memoria.MaxDirVirtual - memoria.TamPagina
	// el contexto de trap del hilo tid queda en DirContextoTrapBase - tid*TamPagina
	DirContextoTrapBase memoria.DirVirtual = DirTrampolin - memoria.TamPagina
	TamPilaUsuario                         = 2 * memoria.TamPagina
)

// RecursosUsuario son la pila de usuario y la página de contexto de trap de un hilo
type RecursosUsuario struct {
	Tid      int
	BasePila memoria.DirVirtual
}

// FondoPila es la dirección más baja de la pila del hilo; entre pilas queda una página de guarda
func (r *RecursosUsuario) FondoPila() memoria.DirVirtual {
	return r.BasePila + memoria.DirVirtual(r.Tid)*(TamPilaUsuario+memoria.TamPagina)
}

// TopePila es el valor inicial de sp
func (r *RecursosUsuario) TopePila() memoria.DirVirtual {
	return r.FondoPila() + TamPilaUsuario
}

// DirContextoTrap es la página del contexto de trap del hilo
func (r *RecursosUsuario) DirContextoTrap() memoria.DirVirtual {
	return DirContextoTrapBase - memoria.DirVirtual(r.Tid)*memoria.TamPagina
}

// reservar mapea la pila y el contexto de trap en el espacio del proceso
func (r *RecursosUsuario) reservar(espacio *memoria.EspacioMemoria) error {
	if _, err := espacio.InsertarAreaMarcos(r.FondoPila(), r.TopePila(),
		memoria.PermisoR|memoria.PermisoW|memoria.PermisoU); err != nil {
		return fmt.Errorf("error reservando pila del hilo %d: %w", r.Tid, err)
	}
	if _, err := espacio.InsertarAreaMarcos(r.DirContextoTrap(), r.DirContextoTrap()+memoria.TamPagina,
		memoria.PermisoR|memoria.PermisoW); err != nil {
		espacio.RemoverAreaConInicio(r.FondoPila().Piso())
		return fmt.Errorf("error reservando contexto de trap del hilo %d: %w", r.Tid, err)
	}
	return nil
}

// liberar desmapea lo que reservar haya dejado en el espacio. Tolera que el
// espacio ya haya sido vaciado.
func (r *RecursosUsuario) liberar(espacio *memoria.EspacioMemoria) {
	espacio.RemoverAreaConInicio(r.FondoPila().Piso())
	espacio.RemoverAreaConInicio(r.DirContextoTrap().Piso())
}

// marcoTrap resuelve el marco físico del contexto de trap en el espacio
func (r *RecursosUsuario) marcoTrap(espacio *memoria.EspacioMemoria) memoria.NumPaginaFisica {
	entrada, ok := espacio.Traducir(r.DirContextoTrap().Piso())
	if !ok {
		panic(fmt.Sprintf("hilo %d sin contexto de trap mapeado", r.Tid))
	}
	return entrada.PPN()
}
