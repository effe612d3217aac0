package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/programas"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/tarea"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

func TestValidarConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     KernelConfig
		wantErr bool
	}{
		{"completa", KernelConfig{TamMemoria: 4096 * 64, GradoMultiprogramacion: 4, Quantum: 10}, false},
		{"memoria no alineada", KernelConfig{TamMemoria: 1000, GradoMultiprogramacion: 4}, true},
		{"sin memoria", KernelConfig{GradoMultiprogramacion: 4}, true},
		{"sin multiprogramación", KernelConfig{TamMemoria: 4096}, true},
		{"quantum negativo", KernelConfig{TamMemoria: 4096, GradoMultiprogramacion: 1, Quantum: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.validar()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validar() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (cfg.ReemplazoTLB != "FIFO" || cfg.DumpPath != "dumps") {
				t.Errorf("valores por defecto = (%q, %q)", cfg.ReemplazoTLB, cfg.DumpPath)
			}
		})
	}
}

func TestEsperarEnter(t *testing.T) {
	r := strings.NewReader("abc\nresto")
	esperarEnter(r)
	if r.Len() != len("resto") {
		t.Errorf("quedaron %d bytes, want %d", r.Len(), len("resto"))
	}
}

func TestEntradaDiferida(t *testing.T) {
	listo := make(chan struct{})
	e := &entradaDiferida{r: strings.NewReader("x"), listo: listo}
	leido := make(chan byte, 1)
	go func() {
		var b [1]byte
		e.Read(b[:])
		leido <- b[0]
	}()

	select {
	case <-leido:
		t.Fatal("leyó antes del arranque")
	case <-time.After(20 * time.Millisecond):
	}
	close(listo)
	if b := <-leido; b != 'x' {
		t.Errorf("leído = %q, want 'x'", b)
	}
}

// planoDeControl levanta el kernel con los handlers sobre un servidor de prueba
func planoDeControl(t *testing.T) *utils.HTTPClient {
	t.Helper()
	memoria.InicializarMemoria(256 * memoria.TamPagina)
	tarea.ReiniciarProcesos()

	registro := nucleo.NuevoRegistro()
	programas.Registrar(registro)
	var err error
	kernel, err = nucleo.NuevoKernel(nucleo.Config{GradoMultiprogramacion: 1, DirDump: t.TempDir(), Salida: &bytes.Buffer{}}, registro)
	if err != nil {
		t.Fatalf("NuevoKernel() error = %v", err)
	}
	kernelModulo = utils.NuevoModulo("Kernel", "")
	registrarHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	hart := make(chan struct{})
	go func() {
		kernel.Correr(ctx)
		close(hart)
	}()
	servidor := httptest.NewServer(kernelModulo.PrepararServidor("127.0.0.1", 0).Handler())
	t.Cleanup(func() {
		servidor.Close()
		cancel()
		<-hart
	})
	return utils.NewHTTPClientURL(servidor.URL, "test")
}

func enviar(t *testing.T, c *utils.HTTPClient, tipo int, datos map[string]interface{}) map[string]interface{} {
	t.Helper()
	resp, err := c.EnviarHTTPMensaje(tipo, utils.OperacionDefault, datos)
	if err != nil {
		t.Fatalf("EnviarHTTPMensaje(%d) error = %v", tipo, err)
	}
	m, ok := resp.(map[string]interface{})
	if !ok {
		t.Fatalf("respuesta = %T", resp)
	}
	return m
}

func TestPlanoDeControl(t *testing.T) {
	c := planoDeControl(t)

	if err := c.VerificarConexion(); err != nil {
		t.Fatalf("VerificarConexion() error = %v", err)
	}

	resp := enviar(t, c, utils.MensajeListarProgramas, nil)
	if lista, _ := resp["programas"].([]interface{}); len(lista) == 0 {
		t.Errorf("programas = %v", resp["programas"])
	}

	tests := []struct {
		name       string
		tipo       int
		datos      map[string]interface{}
		wantStatus string
	}{
		{"programa inexistente", utils.MensajeInicializarProceso, map[string]interface{}{"programa": "nada"}, "ERROR"},
		{"sin programa", utils.MensajeInicializarProceso, map[string]interface{}{}, "ERROR"},
		{"dump de proceso inexistente", utils.MensajeMemoryDump, map[string]interface{}{"pid": 42}, "ERROR"},
		{"dump sin pid", utils.MensajeMemoryDump, map[string]interface{}{}, "ERROR"},
		{"espacio libre", utils.MensajeEspacioLibre, nil, "OK"},
		{"listar", utils.MensajeListarProcesos, nil, "OK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := enviar(t, c, tt.tipo, tt.datos)["status"]; got != tt.wantStatus {
				t.Errorf("status = %v, want %s", got, tt.wantStatus)
			}
		})
	}
}

func TestIniciarProcesoRemoto(t *testing.T) {
	c := planoDeControl(t)
	antes := enviar(t, c, utils.MensajeEspacioLibre, nil)["marcos_libres"]

	resp := enviar(t, c, utils.MensajeInicializarProceso, map[string]interface{}{"programa": "hola"})
	if resp["status"] != "OK" || resp["pid"] != float64(1) {
		t.Fatalf("respuesta = %v", resp)
	}

	// hola termina solo; init lo recolecta y la tabla vuelve a tener sólo a init
	deadline := time.Now().Add(2 * time.Second)
	for {
		lista, _ := enviar(t, c, utils.MensajeListarProcesos, nil)["procesos"].([]interface{})
		if len(lista) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("procesos = %v", lista)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if despues := enviar(t, c, utils.MensajeEspacioLibre, nil)["marcos_libres"]; despues != antes {
		t.Errorf("marcos libres = %v, antes %v", despues, antes)
	}

	dump := enviar(t, c, utils.MensajeMemoryDump, map[string]interface{}{"pid": 0})
	if dump["status"] != "OK" || dump["archivo"] == "" {
		t.Errorf("dump de init = %v", dump)
	}
}

func TestEspacioLibreConTareasCorriendo(t *testing.T) {
	c := planoDeControl(t)

	consultas := make(chan error, 1)
	frenar := make(chan struct{})
	go func() {
		for {
			select {
			case <-frenar:
				consultas <- nil
				return
			default:
			}
			resp, err := c.EnviarHTTPMensaje(utils.MensajeEspacioLibre, utils.OperacionDefault, nil)
			if err != nil {
				consultas <- err
				return
			}
			if m, _ := resp.(map[string]interface{}); m["status"] != "OK" {
				consultas <- fmt.Errorf("respuesta = %v", resp)
				return
			}
		}
	}()

	for range 5 {
		if resp := enviar(t, c, utils.MensajeInicializarProceso, map[string]interface{}{"programa": "productor_consumidor"}); resp["status"] != "OK" {
			t.Fatalf("respuesta = %v", resp)
		}
		deadline := time.Now().Add(2 * time.Second)
		for {
			lista, _ := enviar(t, c, utils.MensajeListarProcesos, nil)["procesos"].([]interface{})
			if len(lista) == 1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("procesos = %v", lista)
			}
		}
	}

	close(frenar)
	if err := <-consultas; err != nil {
		t.Errorf("ESPACIO_LIBRE durante la ejecución: %v", err)
	}
}
