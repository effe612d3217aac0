package main

// ConsolaConfig es la configuración del cliente del plano de control
type ConsolaConfig struct {
	IPKernel    string `json:"IP_KERNEL"`
	PortKernel  int    `json:"PUERTO_KERNEL"`
	LogLevel    string `json:"LOG_LEVEL"`
	Reintentos  int    `json:"REINTENTOS"`
	EsperaMilis int    `json:"ESPERA_REINTENTO"`
}

var config *ConsolaConfig
