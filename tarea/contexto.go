package tarea

import (
	"encoding/binary"
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
)

// Registros con nombre dentro de ContextoTrap.X
const (
	RegRA = 1
	RegSP = 2
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA7 = 17
)

// Dirección simbólica del retorno al modo usuario: toda tarea nueva arranca ahí
const DirRetornoTrap = 0xFFFFFFFFFFFFF000

// ContextoTarea es lo que guarda el cambio de contexto del kernel
type ContextoTarea struct {
	RA uint64
	SP uint64
	S  [12]uint64
}

// NuevoContextoRetornoTrap arma el contexto de una tarea que todavía no corrió
func NuevoContextoRetornoTrap(topePilaKernel uint64) ContextoTarea {
	return ContextoTarea{RA: DirRetornoTrap, SP: topePilaKernel}
}

// ContextoTrap es el marco que se guarda al entrar al kernel desde usuario.
// Vive en un marco físico del espacio del proceso, mapeado sin el bit U.
type ContextoTrap struct {
	X           [32]uint64
	Sstatus     uint64
	Sepc        uint64
	KernelSatp  uint64
	KernelSp    uint64
	TrapHandler uint64
}

// TamContextoTrap es el tamaño serializado del marco
var TamContextoTrap = binary.Size(ContextoTrap{})

// NuevoContextoTrapUsuario prepara el primer ingreso a modo usuario
func NuevoContextoTrapUsuario(entrada, pilaUsuario, topePilaKernel uint64) ContextoTrap {
	cx := ContextoTrap{
		Sepc:     entrada,
		KernelSp: topePilaKernel,
	}
	cx.X[RegSP] = pilaUsuario
	return cx
}

// LeerContextoTrap decodifica el marco guardado en el marco físico
func LeerContextoTrap(ppn memoria.NumPaginaFisica) ContextoTrap {
	var cx ContextoTrap
	if _, err := binary.Decode(ppn.Bytes(), binary.LittleEndian, &cx); err != nil {
		panic(fmt.Sprintf("contexto de trap ilegible en marco %d: %v", ppn, err))
	}
	return cx
}

// EscribirContextoTrap guarda el marco en el marco físico
func EscribirContextoTrap(ppn memoria.NumPaginaFisica, cx ContextoTrap) {
	if _, err := binary.Encode(ppn.Bytes(), binary.LittleEndian, &cx); err != nil {
		panic(fmt.Sprintf("no entra el contexto de trap en marco %d: %v", ppn, err))
	}
}
