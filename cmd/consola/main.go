package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

var kernelClient *utils.HTTPClient

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Uso: ./consola <ruta_configuracion> <comando> [argumentos]")
		fmt.Println("Comandos: programas | procesos | iniciar <programa> | dump <pid> | memoria")
		os.Exit(1)
	}
	rutaConfig := os.Args[1]

	if _, err := os.Stat(rutaConfig); os.IsNotExist(err) {
		fmt.Printf("Error: El archivo de configuración '%s' no existe\n", rutaConfig)
		os.Exit(1)
	}

	if err := inicializarModulo(rutaConfig); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := ejecutarComando(kernelClient, os.Stdout, os.Args[2], os.Args[3:]); err != nil {
		utils.ErrorLog.Error("El comando falló", "comando", os.Args[2], "error", err)
		os.Exit(1)
	}
}

func inicializarModulo(rutaConfig string) error {
	utils.InicializarLogger("INFO", "Consola")

	var err error
	config, err = utils.CargarConfiguracion[ConsolaConfig](rutaConfig)
	if err != nil {
		return err
	}
	utils.InicializarLogger(config.LogLevel, "Consola")

	kernelClient = utils.NewHTTPClient(config.IPKernel, config.PortKernel, "Consola->Kernel")
	return conectarConReintentos(kernelClient, "Kernel", config.Reintentos, time.Duration(config.EsperaMilis)*time.Millisecond)
}

// conectarConReintentos hace el handshake con el kernel, que puede estar todavía arrancando
func conectarConReintentos(cliente *utils.HTTPClient, nombreModulo string, intentos int, espera time.Duration) error {
	utils.InfoLog.Info("Iniciando conexión", "destino", nombreModulo)
	intentos = max(intentos, 1)

	var err error
	for i := 1; i <= intentos; i++ {
		_, err = cliente.EnviarHTTPMensaje(utils.MensajeHandshake, utils.OperacionHandshake, map[string]interface{}{"nombre": "consola"})
		if err == nil {
			utils.InfoLog.Info("Conexión establecida", "destino", nombreModulo)
			return nil
		}
		utils.InfoLog.Warn("Reintentando conexión",
			"destino", nombreModulo,
			"intento", i,
			"próximo_en", espera.String())
		time.Sleep(espera)
	}
	return fmt.Errorf("no se pudo conectar con %s después de %d intentos: %w", nombreModulo, intentos, err)
}
