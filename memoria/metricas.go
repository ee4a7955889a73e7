package memoria

import (
	"fmt"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// MetricasProceso almacena estadísticas sobre el uso de memoria de un proceso
type MetricasProceso struct {
	FallosPagina      int `json:"fallos_pagina"`
	CargasPerezosas   int `json:"cargas_perezosas"`
	BajadasSwap       int `json:"bajadas_swap"`
	SubidasMemoria    int `json:"subidas_memoria"`
	CrecimientosPila  int `json:"crecimientos_pila"`
	MapeosVinculados  int `json:"mapeos_vinculados"`
	LecturasMemoria   int `json:"lecturas_memoria"`
	EscriturasMemoria int `json:"escrituras_memoria"`
}

// registroMetricas guarda las métricas por PID; sobreviven a la finalización del proceso
type registroMetricas struct {
	mu         sync.Mutex
	porProceso map[int]*MetricasProceso
}

func nuevoRegistroMetricas() *registroMetricas {
	utils.InfoLog.Info("Sistema de métricas inicializado")
	return &registroMetricas{porProceso: make(map[int]*MetricasProceso)}
}

func (r *registroMetricas) contar(pid int, actualizar func(*MetricasProceso)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, existe := r.porProceso[pid]; !existe {
		r.porProceso[pid] = &MetricasProceso{}
	}
	actualizar(r.porProceso[pid])
}

func (r *registroMetricas) leer(pid int) (MetricasProceso, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	metricas, existe := r.porProceso[pid]
	if !existe {
		return MetricasProceso{}, false
	}
	return *metricas, true
}

// informar emite el log de métricas al destruir un proceso
func (r *registroMetricas) informar(pid int) {
	m, _ := r.leer(pid)
	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Proceso Destruido - Métricas - Fallos: %d; Cargas Perezosas: %d; Bajadas SWAP: %d; Subidas Memoria: %d; Crecimientos Pila: %d; Mapeos: %d; Lecturas: %d; Escrituras: %d",
		pid, m.FallosPagina, m.CargasPerezosas, m.BajadasSwap, m.SubidasMemoria, m.CrecimientosPila, m.MapeosVinculados, m.LecturasMemoria, m.EscriturasMemoria))
}
