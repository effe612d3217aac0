package memoria

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// CrearMemoryDump escribe en dir el contenido de todas las páginas de datos del
// espacio, en orden de dirección virtual. Devuelve la ruta del archivo.
func CrearMemoryDump(espacio *EspacioMemoria, pid int, dir string) (string, error) {
	utils.InfoLog.Info("Iniciando memory dump", "pid", pid)

	timestamp := time.Now().Format("20060102-150405")
	nombreArchivo := fmt.Sprintf("%d-%s.dmp", pid, timestamp)
	rutaCompleta := filepath.Join(dir, nombreArchivo)

	if err := os.MkdirAll(dir, 0755); err != nil {
		utils.ErrorLog.Error("Error creando directorio dump", "error", err)
		return "", fmt.Errorf("error al crear directorio para dumps: %w", err)
	}

	dumpFile, err := os.Create(rutaCompleta)
	if err != nil {
		utils.ErrorLog.Error("Error creando archivo dump", "archivo", rutaCompleta, "error", err)
		return "", fmt.Errorf("error al crear archivo de dump: %w", err)
	}
	defer dumpFile.Close()

	paginas := paginasOrdenadas(espacio)
	w := bufio.NewWriter(dumpFile)
	for _, p := range paginas {
		if _, err := w.Write(p.marco.PPN.Bytes()); err != nil {
			utils.ErrorLog.Error("Error escribiendo dump", "archivo", rutaCompleta, "error", err)
			return "", fmt.Errorf("error al escribir en archivo de dump: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("error al escribir en archivo de dump: %w", err)
	}

	utils.InfoLog.Info(fmt.Sprintf("## PID: %d Memory Dump solicitado", pid))
	utils.InfoLog.Info("Memory dump completado", "pid", pid, "archivo", nombreArchivo,
		"tamanio_bytes", len(paginas)*TamPagina)
	return rutaCompleta, nil
}

type paginaDump struct {
	vpn   NumPaginaVirtual
	marco *Marco
}

func paginasOrdenadas(espacio *EspacioMemoria) []paginaDump {
	var paginas []paginaDump
	for _, a := range espacio.areas {
		for _, vpn := range a.Paginas() {
			paginas = append(paginas, paginaDump{vpn: vpn, marco: a.marcos[vpn]})
		}
	}
	sort.Slice(paginas, func(i, j int) bool { return paginas[i].vpn < paginas[j].vpn })
	return paginas
}
