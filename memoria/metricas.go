package memoria

import (
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// MetricasEspacio almacena estadísticas de uso de un espacio de direcciones
type MetricasEspacio struct {
	AccesosTablasPaginas int `json:"accesos_tablas_paginas"`
	LecturasMemoria      int `json:"lecturas_memoria"`
	EscriturasMemoria    int `json:"escrituras_memoria"`
}

// métricas por marco raíz: el token identifica al espacio desde cualquier contexto
var metricasPorEspacio = utils.NuevaCelda("métricas de memoria", map[NumPaginaFisica]*MetricasEspacio{})

func reiniciarMetricas() {
	metricasPorEspacio.Con(func(m *map[NumPaginaFisica]*MetricasEspacio) {
		*m = make(map[NumPaginaFisica]*MetricasEspacio)
	})
}

func registrarEspacio(raiz NumPaginaFisica) {
	metricasPorEspacio.Con(func(m *map[NumPaginaFisica]*MetricasEspacio) {
		(*m)[raiz] = &MetricasEspacio{}
	})
}

func olvidarEspacio(raiz NumPaginaFisica) {
	metricasPorEspacio.Con(func(m *map[NumPaginaFisica]*MetricasEspacio) {
		delete(*m, raiz)
	})
}

func actualizarMetricas(raiz NumPaginaFisica, f func(*MetricasEspacio)) {
	metricasPorEspacio.Con(func(m *map[NumPaginaFisica]*MetricasEspacio) {
		if metricas, existe := (*m)[raiz]; existe {
			f(metricas)
		}
	})
}

// Actualizar métricas de acceso a tablas de páginas
func registrarAccesoTabla(raiz NumPaginaFisica) {
	actualizarMetricas(raiz, func(m *MetricasEspacio) { m.AccesosTablasPaginas++ })
}

// Actualizar métricas de lecturas de memoria de usuario
func registrarLectura(raiz NumPaginaFisica) {
	actualizarMetricas(raiz, func(m *MetricasEspacio) { m.LecturasMemoria++ })
}

// Actualizar métricas de escrituras en memoria de usuario
func registrarEscritura(raiz NumPaginaFisica) {
	actualizarMetricas(raiz, func(m *MetricasEspacio) { m.EscriturasMemoria++ })
}

// ObtenerMetricas devuelve una copia de las métricas del espacio del token
func ObtenerMetricas(token uint64) (MetricasEspacio, bool) {
	raiz := DesdeToken(token).Raiz()
	var copia MetricasEspacio
	var existe bool
	metricasPorEspacio.Con(func(m *map[NumPaginaFisica]*MetricasEspacio) {
		var metricas *MetricasEspacio
		metricas, existe = (*m)[raiz]
		if existe {
			copia = *metricas
		}
	})
	return copia, existe
}
