package cpu

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// RegistrarScript decodifica el script y lo deja en el registro bajo nombre
func (c *CPU) RegistrarScript(registro *nucleo.Registro, nombre string, r io.Reader) error {
	instrucciones, err := CargarScript(r)
	if err != nil {
		return fmt.Errorf("script %s: %w", nombre, err)
	}
	registro.Registrar(nombre, c.Programa(instrucciones))
	utils.InfoLog.Debug("Script registrado", "nombre", nombre, "instrucciones", len(instrucciones))
	return nil
}

// CargarScripts registra cada <dir>/<nombre>.txt como la imagen <nombre>
func (c *CPU) CargarScripts(registro *nucleo.Registro, dir string) ([]string, error) {
	rutas, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	var nombres []string
	for _, ruta := range rutas {
		nombre := strings.TrimSuffix(filepath.Base(ruta), ".txt")
		archivo, err := os.Open(ruta)
		if err != nil {
			return nombres, fmt.Errorf("error abriendo script %s: %w", ruta, err)
		}
		err = c.RegistrarScript(registro, nombre, archivo)
		archivo.Close()
		if err != nil {
			return nombres, err
		}
		nombres = append(nombres, nombre)
	}
	utils.InfoLog.Info("Scripts cargados", "directorio", dir, "cantidad", len(nombres))
	return nombres, nil
}
