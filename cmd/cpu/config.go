package main

type CPUConfig struct {
	IPKernel          string `json:"IP_KERNEL"`
	PortKernel        int    `json:"PUERTO_KERNEL"`
	LogLevel          string `json:"LOG_LEVEL"`
	HilosConcurrentes int    `json:"HILOS_CONCURRENTES"` // Instrucciones en segundo plano a la vez
	ReintentosKernel  int    `json:"REINTENTOS_KERNEL"`
}

var config *CPUConfig
