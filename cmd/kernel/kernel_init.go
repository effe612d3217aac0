package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/cpu"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/programas"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// KernelConfig define la configuración del módulo Kernel
type KernelConfig struct {
	IPKernel               string `json:"IP_KERNEL"`
	PortKernel             int    `json:"PUERTO_KERNEL"`
	LogLevel               string `json:"LOG_LEVEL"`
	LogPath                string `json:"LOG_PATH,omitempty"`
	TamMemoria             int    `json:"TAM_MEMORIA"`
	Quantum                int    `json:"QUANTUM"`
	PrioridadInicial       int    `json:"PRIORIDAD_INICIAL"`
	CantidadRecursos       int    `json:"CANTIDAD_RECURSOS"`
	GradoMultiprogramacion int    `json:"GRADO_MULTIPROGRAMACION"`
	EntradasTLB            int    `json:"ENTRADAS_TLB"`
	ReemplazoTLB           string `json:"REEMPLAZO_TLB"`
	ScriptsPath            string `json:"SCRIPTS_PATH,omitempty"`
	DumpPath               string `json:"DUMP_PATH"`
	ProgramaInicial        string `json:"PROGRAMA_INICIAL,omitempty"`
	DispositivoConsola     string `json:"DISPOSITIVO_CONSOLA,omitempty"`
}

var (
	kernelModulo *utils.Modulo
	kernelConfig *KernelConfig
	kernel       *nucleo.Kernel
	consola      *Consola
	teclado      io.Reader
	logArchivo   *os.File

	// arranque se cierra con el ENTER; hasta ahí los programas no leen la consola
	arranque = make(chan struct{})
)

// validar completa los valores por defecto y rechaza los que no tienen arreglo
func (c *KernelConfig) validar() error {
	if c.TamMemoria <= 0 || c.TamMemoria%memoria.TamPagina != 0 {
		return fmt.Errorf("TAM_MEMORIA debe ser múltiplo positivo de %d: %d", memoria.TamPagina, c.TamMemoria)
	}
	if c.GradoMultiprogramacion <= 0 {
		return fmt.Errorf("GRADO_MULTIPROGRAMACION inválido: %d", c.GradoMultiprogramacion)
	}
	if c.Quantum < 0 {
		return fmt.Errorf("QUANTUM negativo: %d", c.Quantum)
	}
	if c.ReemplazoTLB == "" {
		c.ReemplazoTLB = cpu.ReemplazoFIFO
	}
	if c.DumpPath == "" {
		c.DumpPath = "dumps"
	}
	return nil
}

// inicializarKernel arma memoria, planificación, registro de programas y el
// plano de control. El hart arranca recién en main, después del ENTER.
func inicializarKernel(configPath string) error {
	kernelModulo = utils.NuevoModulo("Kernel", configPath)
	var err error
	kernelConfig, err = utils.CargarConfiguracion[KernelConfig](configPath)
	if err != nil {
		return err
	}
	if err := kernelConfig.validar(); err != nil {
		return err
	}

	if kernelConfig.LogPath != "" {
		logArchivo, err = utils.InicializarLoggerConArchivo(kernelConfig.LogPath, kernelConfig.LogLevel, "Kernel")
		if err != nil {
			return err
		}
	} else {
		utils.InicializarLogger(kernelConfig.LogLevel, "Kernel")
	}
	utils.InfoLog.Info("Inicializando Kernel", "config_path", configPath)

	memoria.InicializarMemoria(kernelConfig.TamMemoria)
	tarea.Configurar(tarea.Configuracion{
		PrioridadInicial:  kernelConfig.PrioridadInicial,
		CapacidadRecursos: kernelConfig.CantidadRecursos,
	})

	registro, err := armarRegistro(kernelConfig)
	if err != nil {
		return err
	}

	teclado = os.Stdin
	var salida io.Writer = os.Stdout
	if kernelConfig.DispositivoConsola != "" {
		consola, err = AbrirConsola(kernelConfig.DispositivoConsola)
		if err != nil {
			return err
		}
		teclado, salida = consola, consola
	}
	entrada := &entradaDiferida{r: teclado, listo: arranque}

	kernel, err = nucleo.NuevoKernel(nucleo.Config{
		Quantum:                time.Duration(kernelConfig.Quantum) * time.Millisecond,
		GradoMultiprogramacion: kernelConfig.GradoMultiprogramacion,
		DirDump:                kernelConfig.DumpPath,
		Entrada:                entrada,
		Salida:                 salida,
	}, registro)
	if err != nil {
		return fmt.Errorf("error creando el kernel: %w", err)
	}

	registrarHandlers()
	utils.InfoLog.Info("Kernel inicializado correctamente")
	return nil
}

// armarRegistro junta las imágenes en Go con los scripts del directorio configurado
func armarRegistro(cfg *KernelConfig) (*nucleo.Registro, error) {
	registro := nucleo.NuevoRegistro()
	programas.Registrar(registro)

	if cfg.ScriptsPath == "" {
		return registro, nil
	}
	tlb, err := cpu.NuevaTLB(cfg.EntradasTLB, cfg.ReemplazoTLB)
	if err != nil {
		return nil, err
	}
	if _, err := cpu.NuevaCPU(tlb).CargarScripts(registro, cfg.ScriptsPath); err != nil {
		return nil, err
	}
	return registro, nil
}

// crearProcesoInicial deja listo el primer proceso antes de arrancar el hart
func crearProcesoInicial(nombre string) error {
	pid, err := kernel.Iniciar(nombre)
	if err != nil {
		return fmt.Errorf("error creando el proceso inicial %s: %w", nombre, err)
	}
	utils.InfoLog.Info("Proceso inicial creado", "programa", nombre, "pid", pid)
	return nil
}

// finalizarKernel cierra lo que quedó abierto al salir
func finalizarKernel() {
	if consola != nil {
		if err := consola.Close(); err != nil {
			utils.ErrorLog.Error("Error cerrando la consola", "error", err)
		}
	}
	if logArchivo != nil {
		logArchivo.Close()
	}
}
