package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

func main() {
	utils.InicializarLogger("INFO", "kernel")
	utils.InfoLog.Info("Kernel iniciando", "args", os.Args)

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Uso: %s <archivo_configuracion> [programa_inicial]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ejemplo: %s configs/kernel.json shell\n", os.Args[0])
		os.Exit(1)
	}
	configPath := os.Args[1]
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		utils.ErrorLog.Error("El archivo de configuración no existe", "archivo", configPath)
		os.Exit(1)
	}

	if err := inicializarKernel(configPath); err != nil {
		utils.ErrorLog.Error("Error durante la inicialización del Kernel", "error", err)
		finalizarKernel()
		os.Exit(1)
	}
	defer finalizarKernel()

	programaInicial := kernelConfig.ProgramaInicial
	if len(os.Args) > 2 {
		programaInicial = os.Args[2]
	}
	if programaInicial != "" {
		if err := crearProcesoInicial(programaInicial); err != nil {
			utils.ErrorLog.Error("No se pudo crear el proceso inicial", "error", err)
			finalizarKernel()
			os.Exit(1)
		}
	}

	errServidor := kernelModulo.IniciarServidor(kernelConfig.IPKernel, kernelConfig.PortKernel)
	utils.InfoLog.Info("Kernel listo y esperando conexiones", "programas", kernel.Programas())

	fmt.Fprint(salidaPrompt(), "Presione ENTER para iniciar el planificador...\n")
	esperarEnter(teclado)
	close(arranque)
	utils.InfoLog.Info("Enter presionado, iniciando planificador")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hart := make(chan error, 1)
	go func() { hart <- kernel.Correr(ctx) }()

	select {
	case err := <-errServidor:
		if err != nil {
			utils.ErrorLog.Error("El plano de control terminó con error", "error", err)
		}
		stop()
		<-hart
	case err := <-hart:
		if err != nil && !errors.Is(err, context.Canceled) {
			utils.ErrorLog.Error("El planificador terminó con error", "error", err)
		}
	}
	utils.InfoLog.Info("Señal recibida. Finalizando Kernel")

	ctxApagado, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := kernelModulo.DetenerServidor(ctxApagado); err != nil {
		utils.ErrorLog.Error("Error deteniendo el servidor", "error", err)
	}
}

func salidaPrompt() io.Writer {
	if consola != nil {
		return consola
	}
	return os.Stdout
}

// esperarEnter lee de a un byte para no quedarse con lo que escriba el usuario
// después, que es entrada de los programas
func esperarEnter(r io.Reader) {
	var b [1]byte
	for {
		n, err := r.Read(b[:])
		if err != nil || (n == 1 && (b[0] == '\n' || b[0] == '\r')) {
			return
		}
	}
}
