package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	InfoLog  = slog.Default()
	ErrorLog = slog.Default()
)

// nivelDesdeTexto traduce el LOG_LEVEL de la configuración a un nivel de slog
func nivelDesdeTexto(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug", "trace":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InicializarLogger configura los loggers globales
func InicializarLogger(logLevel string, moduleName string) {
	InicializarLoggerEn(os.Stdout, logLevel, moduleName)
}

// InicializarLoggerEn configura los loggers globales escribiendo en w
func InicializarLoggerEn(w io.Writer, logLevel string, moduleName string) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: nivelDesdeTexto(logLevel),
	})

	logger := slog.New(handler).With("modulo", moduleName)

	InfoLog = logger
	ErrorLog = logger
}

// InicializarLoggerConArchivo duplica la salida del logger en <dir>/<modulo>.log
func InicializarLoggerConArchivo(dir string, logLevel string, moduleName string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error al crear directorio de logs: %w", err)
	}

	ruta := filepath.Join(dir, strings.ToLower(moduleName)+".log")
	archivo, err := os.OpenFile(ruta, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("error al abrir archivo de log %s: %w", ruta, err)
	}

	InicializarLoggerEn(io.MultiWriter(os.Stdout, archivo), logLevel, moduleName)
	return archivo, nil
}
