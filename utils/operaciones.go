package utils

import (
	"fmt"
	"strconv"
)

// ============================================================================
// Constantes para tipos de mensajes del plano de control del kernel
// ============================================================================
const (
	// === COMUNICACIÓN BÁSICA (1-9) ===
	MensajeHandshake = 1 // Conexión inicial

	// === MEMORIA (10-19) ===
	MensajeMemoryDump   = 15 // Volcado de un espacio de direcciones
	MensajeEspacioLibre = 14 // Consultar marcos libres

	// === GESTIÓN DE PROCESOS (20-29) ===
	MensajeInicializarProceso = 20 // Crear proceso a partir de un programa registrado
	MensajeListarProcesos     = 24 // Tabla de procesos y tareas
	MensajeListarProgramas    = 25 // Programas disponibles
)

// Operaciones dentro de cada tipo de mensaje
const (
	OperacionDefault   = "default"
	OperacionHandshake = "handshake"
)

// ExtraerEntero obtiene un entero de un campo JSON decodificado
func ExtraerEntero(datos map[string]interface{}, campo string) (int, error) {
	valor, existe := datos[campo]
	if !existe {
		return 0, fmt.Errorf("campo %q faltante", campo)
	}
	switch v := valor.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("campo %q inválido: %w", campo, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("campo %q con tipo %T", campo, valor)
}

// ExtraerTexto obtiene un string de un campo JSON decodificado
func ExtraerTexto(datos map[string]interface{}, campo string) (string, error) {
	valor, ok := datos[campo].(string)
	if !ok || valor == "" {
		return "", fmt.Errorf("campo %q faltante o vacío", campo)
	}
	return valor, nil
}

// DatosComoMapa interpreta Mensaje.Datos como objeto JSON
func DatosComoMapa(msg *Mensaje) (map[string]interface{}, error) {
	if msg.Datos == nil {
		return map[string]interface{}{}, nil
	}
	datos, ok := msg.Datos.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("datos inválidos: %T", msg.Datos)
	}
	return datos, nil
}
