package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// esperaHart es cuánto espera un pedido del plano de control a que el hart lo atienda
const esperaHart = 5 * time.Second

// registrarHandlers registra todos los manejadores HTTP
func registrarHandlers() {
	kernelModulo.RegistrarHandler(utils.MensajeHandshake, utils.OperacionHandshake, HandlerHandshake)
	kernelModulo.RegistrarHandler(utils.MensajeInicializarProceso, utils.OperacionDefault, nuevoHandlerIniciarProceso(kernel))
	kernelModulo.RegistrarHandler(utils.MensajeListarProcesos, utils.OperacionDefault, nuevoHandlerListarProcesos(kernel))
	kernelModulo.RegistrarHandler(utils.MensajeListarProgramas, utils.OperacionDefault, nuevoHandlerListarProgramas(kernel))
	kernelModulo.RegistrarHandler(utils.MensajeMemoryDump, utils.OperacionDefault, nuevoHandlerMemoryDump(kernel))
	kernelModulo.RegistrarHandler(utils.MensajeEspacioLibre, utils.OperacionDefault, nuevoHandlerEspacioLibre(kernel))

	utils.InfoLog.Info("Handlers registrados correctamente")
}

func respuestaError(mensaje string) map[string]interface{} {
	return map[string]interface{}{"status": "ERROR", "mensaje": mensaje}
}

func HandlerHandshake(msg *utils.Mensaje) (interface{}, error) {
	utils.InfoLog.Info("Handshake recibido", "origen", msg.Origen)
	return map[string]interface{}{"status": "OK", "message": "Handshake recibido"}, nil
}

// nuevoHandlerIniciarProceso crea un proceso hijo de init a partir de una imagen registrada
func nuevoHandlerIniciarProceso(k *nucleo.Kernel) utils.HTTPHandlerFunc {
	return func(msg *utils.Mensaje) (interface{}, error) {
		datos, err := utils.DatosComoMapa(msg)
		if err != nil {
			return respuestaError(err.Error()), nil
		}
		nombre, err := utils.ExtraerTexto(datos, "programa")
		if err != nil {
			return respuestaError(err.Error()), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), esperaHart)
		defer cancel()
		pid, err := k.IniciarProceso(ctx, nombre)
		switch {
		case errors.Is(err, nucleo.ErrProgramaInexistente), errors.Is(err, nucleo.ErrMultiprogramacion):
			utils.InfoLog.Warn("No se pudo iniciar el proceso", "programa", nombre, "error", err)
			return respuestaError(err.Error()), nil
		case err != nil:
			return nil, err
		}

		utils.InfoLog.Info("Proceso iniciado desde el plano de control", "origen", msg.Origen, "programa", nombre, "pid", pid)
		return map[string]interface{}{"status": "OK", "pid": pid}, nil
	}
}

func nuevoHandlerListarProcesos(k *nucleo.Kernel) utils.HTTPHandlerFunc {
	return func(msg *utils.Mensaje) (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), esperaHart)
		defer cancel()
		procesos, err := k.ListarProcesos(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "OK", "procesos": procesos}, nil
	}
}

func nuevoHandlerListarProgramas(k *nucleo.Kernel) utils.HTTPHandlerFunc {
	return func(msg *utils.Mensaje) (interface{}, error) {
		return map[string]interface{}{"status": "OK", "programas": k.Programas()}, nil
	}
}

func nuevoHandlerMemoryDump(k *nucleo.Kernel) utils.HTTPHandlerFunc {
	return func(msg *utils.Mensaje) (interface{}, error) {
		datos, err := utils.DatosComoMapa(msg)
		if err != nil {
			return respuestaError(err.Error()), nil
		}
		pid, err := utils.ExtraerEntero(datos, "pid")
		if err != nil {
			return respuestaError(err.Error()), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), esperaHart)
		defer cancel()
		ruta, err := k.DumpMemory(ctx, pid)
		if errors.Is(err, nucleo.ErrProcesoInexistente) {
			return respuestaError(err.Error()), nil
		}
		if err != nil {
			return nil, err
		}

		utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Memory Dump solicitado", pid), "archivo", ruta)
		return map[string]interface{}{"status": "OK", "archivo": ruta}, nil
	}
}

func nuevoHandlerEspacioLibre(k *nucleo.Kernel) utils.HTTPHandlerFunc {
	return func(msg *utils.Mensaje) (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), esperaHart)
		defer cancel()
		libres, total, err := k.EspacioLibre(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"status":        "OK",
			"marcos_libres": libres,
			"marcos_total":  total,
			"bytes_libres":  libres * memoria.TamPagina,
		}, nil
	}
}
