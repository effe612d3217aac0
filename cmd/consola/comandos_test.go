package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// kernelFalso responde con datos fijos a cada tipo de mensaje
func kernelFalso(t *testing.T) *utils.HTTPClient {
	t.Helper()
	modulo := utils.NuevoModulo("Kernel", "")
	modulo.RegistrarHandler(utils.MensajeHandshake, utils.OperacionHandshake, func(*utils.Mensaje) (interface{}, error) {
		return map[string]interface{}{"status": "OK"}, nil
	})
	modulo.RegistrarHandler(utils.MensajeListarProgramas, utils.OperacionDefault, func(*utils.Mensaje) (interface{}, error) {
		return map[string]interface{}{"status": "OK", "programas": []string{"hola", "shell"}}, nil
	})
	modulo.RegistrarHandler(utils.MensajeListarProcesos, utils.OperacionDefault, func(*utils.Mensaje) (interface{}, error) {
		return map[string]interface{}{"status": "OK", "procesos": []map[string]interface{}{
			{"pid": 0, "nombre": "init", "padre": -1, "estado": "VIVO", "hilos": 0, "paginas": 0, "archivos_abiertos": 0},
		}}, nil
	})
	modulo.RegistrarHandler(utils.MensajeInicializarProceso, utils.OperacionDefault, func(msg *utils.Mensaje) (interface{}, error) {
		datos, _ := utils.DatosComoMapa(msg)
		if datos["programa"] != "hola" {
			return map[string]interface{}{"status": "ERROR", "mensaje": "programa no registrado"}, nil
		}
		return map[string]interface{}{"status": "OK", "pid": 3}, nil
	})
	modulo.RegistrarHandler(utils.MensajeMemoryDump, utils.OperacionDefault, func(msg *utils.Mensaje) (interface{}, error) {
		datos, _ := utils.DatosComoMapa(msg)
		pid, err := utils.ExtraerEntero(datos, "pid")
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "OK", "archivo": fmt.Sprintf("dumps/%d.dmp", pid)}, nil
	})
	modulo.RegistrarHandler(utils.MensajeEspacioLibre, utils.OperacionDefault, func(*utils.Mensaje) (interface{}, error) {
		return map[string]interface{}{"status": "OK", "marcos_libres": 10, "marcos_total": 16, "bytes_libres": 40960}, nil
	})

	servidor := httptest.NewServer(modulo.PrepararServidor("127.0.0.1", 0).Handler())
	t.Cleanup(servidor.Close)
	return utils.NewHTTPClientURL(servidor.URL, "test")
}

func TestEjecutarComando(t *testing.T) {
	cliente := kernelFalso(t)
	tests := []struct {
		name     string
		comando  string
		args     []string
		contiene []string
		wantErr  error
	}{
		{name: "programas", comando: "programas", contiene: []string{"hola\n", "shell\n"}},
		{name: "procesos", comando: "procesos", contiene: []string{"PID", "init", "VIVO"}},
		{name: "iniciar", comando: "iniciar", args: []string{"hola"}, contiene: []string{"hola iniciado con PID 3"}},
		{name: "dump", comando: "dump", args: []string{"2"}, contiene: []string{"dumps/2.dmp"}},
		{name: "memoria", comando: "memoria", contiene: []string{"10 de 16"}},
		{name: "iniciar sin argumento", comando: "iniciar", wantErr: ErrComandoInvalido},
		{name: "dump con pid no numérico", comando: "dump", args: []string{"x"}, wantErr: ErrComandoInvalido},
		{name: "comando desconocido", comando: "reiniciar", wantErr: ErrComandoInvalido},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var salida bytes.Buffer
			err := ejecutarComando(cliente, &salida, tt.comando, tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			for _, s := range tt.contiene {
				if !strings.Contains(salida.String(), s) {
					t.Errorf("salida = %q, no contiene %q", salida.String(), s)
				}
			}
		})
	}
}

func TestRespuestaDeError(t *testing.T) {
	cliente := kernelFalso(t)
	err := ejecutarComando(cliente, &bytes.Buffer{}, "iniciar", []string{"nada"})
	if err == nil || !strings.Contains(err.Error(), "programa no registrado") {
		t.Errorf("error = %v", err)
	}
}

func TestConectarConReintentos(t *testing.T) {
	cliente := kernelFalso(t)
	if err := conectarConReintentos(cliente, "Kernel", 1, 0); err != nil {
		t.Errorf("conexión con el kernel = %v", err)
	}

	servidor := httptest.NewServer(nil)
	url := servidor.URL
	servidor.Close()
	caido := utils.NewHTTPClientURL(url, "test")
	if err := conectarConReintentos(caido, "Kernel", 2, time.Millisecond); err == nil {
		t.Error("conectar con un kernel caído no falló")
	}
}
