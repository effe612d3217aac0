package nucleo

import (
	"errors"
	"io"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/vfs"
)

func (k *Kernel) sysOpen(hilo *tarea.TCB, dirRuta memoria.DirVirtual, flags uint32) int64 {
	p := hilo.DebeProceso()
	ruta, ok := leerCadena(p.Token(), dirRuta)
	if !ok {
		return Fallo
	}
	archivo, ok := vfs.AbrirArchivo(k.raiz, ruta, vfs.FlagsApertura(flags))
	if !ok {
		return Fallo
	}
	fd := -1
	p.Con(func(i *tarea.InteriorPCB) {
		fd = i.AsignarFd()
		i.Archivos[fd] = archivo
	})
	return int64(fd)
}

func (k *Kernel) sysClose(hilo *tarea.TCB, fd int) int64 {
	resultado := int64(Fallo)
	hilo.DebeProceso().Con(func(i *tarea.InteriorPCB) {
		if fd >= 0 && fd < len(i.Archivos) && i.Archivos[fd] != nil {
			i.Archivos[fd] = nil
			resultado = 0
		}
	})
	return resultado
}

// archivoDe resuelve el descriptor. La celda del proceso queda libre: leer de
// stdin puede ceder el hart.
func archivoDe(p *tarea.PCB, fd int) (vfs.Archivo, bool) {
	var a vfs.Archivo
	p.Con(func(i *tarea.InteriorPCB) {
		if fd >= 0 && fd < len(i.Archivos) {
			a = i.Archivos[fd]
		}
	})
	return a, a != nil
}

func (k *Kernel) sysRead(hilo *tarea.TCB, fd int, dir memoria.DirVirtual, largo int) int64 {
	p := hilo.DebeProceso()
	a, ok := archivoDe(p, fd)
	if !ok || !a.Legible() || largo < 0 {
		return Fallo
	}
	token := p.Token()
	if _, ok := rangoAccesible(token, dir, largo, true); !ok {
		return Fallo
	}
	buffer, err := memoria.NuevoBufferUsuario(token, dir, largo)
	if err != nil {
		return Fallo
	}
	n, err := a.Leer(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		utils.InfoLog.Debug("Error de lectura", "tarea", hilo.String(), "fd", fd, "error", err)
		return Fallo
	}
	return int64(n)
}

func (k *Kernel) sysWrite(hilo *tarea.TCB, fd int, dir memoria.DirVirtual, largo int) int64 {
	p := hilo.DebeProceso()
	a, ok := archivoDe(p, fd)
	if !ok || !a.Escribible() || largo < 0 {
		return Fallo
	}
	token := p.Token()
	if _, ok := rangoAccesible(token, dir, largo, false); !ok {
		return Fallo
	}
	buffer, err := memoria.NuevoBufferUsuario(token, dir, largo)
	if err != nil {
		return Fallo
	}
	n, err := a.Escribir(buffer)
	if err != nil {
		utils.InfoLog.Debug("Error de escritura", "tarea", hilo.String(), "fd", fd, "error", err)
		return Fallo
	}
	return int64(n)
}
