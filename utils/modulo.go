package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Modulo representa un módulo del sistema con su plano de control HTTP
type Modulo struct {
	Nombre      string
	Server      *HTTPServer
	Clientes    map[string]*HTTPClient
	ConfigPath  string
	HandlerFunc map[int]map[string]HTTPHandlerFunc
}

// NuevoModulo crea una nueva instancia de un módulo
func NuevoModulo(nombre string, configPath string) *Modulo {
	return &Modulo{
		Nombre:      nombre,
		Clientes:    make(map[string]*HTTPClient),
		ConfigPath:  configPath,
		HandlerFunc: make(map[int]map[string]HTTPHandlerFunc),
	}
}

// RegistrarHandler registra un handler para un tipo de mensaje y operación específicos
func (m *Modulo) RegistrarHandler(tipo int, operacion string, handler HTTPHandlerFunc) {
	if _, existe := m.HandlerFunc[tipo]; !existe {
		m.HandlerFunc[tipo] = make(map[string]HTTPHandlerFunc)
	}
	m.HandlerFunc[tipo][operacion] = handler
}

// Despachar resuelve el handler por tipo y operación, cayendo en "default"
func (m *Modulo) Despachar(msg *Mensaje) (interface{}, error) {
	handlersPorOperacion, existe := m.HandlerFunc[msg.Tipo]
	if !existe {
		return nil, fmt.Errorf("no hay handlers para el tipo %d", msg.Tipo)
	}

	operacion := msg.Operacion
	if operacion == "" {
		operacion = OperacionDefault
	}

	handler, existe := handlersPorOperacion[operacion]
	if !existe {
		handler, existe = handlersPorOperacion[OperacionDefault]
		if !existe {
			slog.Error("No hay handler para operación", "tipo", msg.Tipo, "operacion", operacion)
			return nil, fmt.Errorf("no hay handler para operación %s", operacion)
		}
	}

	return handler(msg)
}

// PrepararServidor crea el servidor HTTP del módulo con todos los handlers registrados
func (m *Modulo) PrepararServidor(ip string, puerto int) *HTTPServer {
	m.Server = NewHTTPServer(ip, puerto, m.Nombre)
	for tipo := range m.HandlerFunc {
		m.Server.RegisterHTTPHandler(tipo, m.Despachar)
	}
	return m.Server
}

// IniciarServidor levanta el servidor en segundo plano; los errores llegan por el canal
func (m *Modulo) IniciarServidor(ip string, puerto int) <-chan error {
	server := m.PrepararServidor(ip, puerto)
	errores := make(chan error, 1)

	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Error al iniciar servidor HTTP", "error", err)
			errores <- err
		}
		close(errores)
	}()

	slog.Info("Servidor HTTP iniciado", "módulo", m.Nombre, "dirección", fmt.Sprintf("%s:%d", ip, puerto))
	return errores
}

// DetenerServidor apaga el servidor del módulo
func (m *Modulo) DetenerServidor(ctx context.Context) error {
	if m.Server == nil {
		return nil
	}
	return m.Server.Shutdown(ctx)
}

// CargarConfiguracion decodifica el JSON de ruta en un T
func CargarConfiguracion[T any](ruta string) (*T, error) {
	slog.Info("Cargando configuración", "ruta", ruta)

	absPath, err := filepath.Abs(ruta)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo ruta absoluta de %s: %w", ruta, err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("error abriendo archivo de configuración %s: %w", absPath, err)
	}
	defer file.Close()

	var config T
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("error decodificando configuración %s: %w", absPath, err)
	}

	slog.Info("Configuración cargada correctamente", "archivo", absPath)
	return &config, nil
}
