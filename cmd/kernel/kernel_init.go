package main

import (
	"fmt"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/planificador"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// KernelConfig define la configuración del módulo Kernel. Las claves de
// memoria virtual se leen del mismo archivo.
type KernelConfig struct {
	memoria.Config

	IPKernel         string `json:"IP_KERNEL"`
	PortKernel       int    `json:"PUERTO_KERNEL"`
	LogLevel         string `json:"LOG_LEVEL"`
	ModoPlanificador string `json:"MODO_PLANIFICADOR"`
	IntervaloTick    int    `json:"INTERVALO_TICK"` // ms entre interrupciones de timer; 0 = sólo por mensaje
}

var (
	kernelModulo   *utils.Modulo
	kernelConfig   *KernelConfig
	plan           *planificador.Planificador
	memoriaVirtual *memoria.Memoria
	mapeos         *memoria.MapeoArchivos
	timer          *time.Ticker
)

func inicializarKernel(configPath string) error {
	kernelModulo = utils.NuevoModulo("Kernel", configPath)
	kernelConfig = utils.CargarConfiguracion[KernelConfig](configPath)

	utils.InicializarLogger(kernelConfig.LogLevel, "Kernel")
	utils.InfoLog.Info("Inicializando Kernel", "config_path", configPath)

	return inicializarSubsistemas(kernelConfig)
}

// inicializarSubsistemas arma planificador, memoria virtual y handlers
func inicializarSubsistemas(config *KernelConfig) error {
	modo, err := planificador.ParsearModo(config.ModoPlanificador)
	if err != nil {
		return err
	}
	plan = planificador.Nuevo(modo)

	mapeos = memoria.NuevoMapeoArchivos()
	memoriaVirtual, err = memoria.Nueva(config.Config, plan, mapeos)
	if err != nil {
		return fmt.Errorf("error al inicializar memoria virtual: %w", err)
	}
	memoriaVirtual.AlTerminar = alTerminarProceso

	inicializarTablaProcesos()
	cerrojosMutex.Lock()
	cerrojos = make(map[string]*planificador.Cerrojo)
	cerrojosMutex.Unlock()
	registrarHandlers()

	utils.InfoLog.Info("Kernel inicializado correctamente", "modo", modo.String())
	return nil
}

// registrarHandlers registra todos los manejadores HTTP
func registrarHandlers() {
	registrar := func(tipo int, handler utils.HTTPHandlerFunc) {
		kernelModulo.RegistrarHandler(fmt.Sprintf("%d", tipo), "default", handler)
	}

	registrar(utils.MensajeHandshake, HandlerHandshake)

	registrar(utils.MensajeCrearHilo, HandlerCrearHilo)
	registrar(utils.MensajeAdquirir, HandlerAdquirir)
	registrar(utils.MensajeLiberar, HandlerLiberar)
	registrar(utils.MensajeCeder, HandlerCeder)
	registrar(utils.MensajeFijarPrioridad, HandlerFijarPrioridad)
	registrar(utils.MensajeFijarNice, HandlerFijarNice)
	registrar(utils.MensajeTick, HandlerTick)
	registrar(utils.MensajeEstadoHilo, HandlerEstadoHilo)
	registrar(utils.MensajeFinalizarHilo, HandlerFinalizarHilo)
	registrar(utils.MensajeCargaPromedio, HandlerCargaPromedio)

	registrar(utils.MensajeCrearProceso, conKernelPanic(HandlerCrearProceso))
	registrar(utils.MensajeCargarSegmento, conKernelPanic(HandlerCargarSegmento))
	registrar(utils.MensajeRegistrarMapeo, conKernelPanic(HandlerRegistrarMapeo))
	registrar(utils.MensajeFalloPagina, conKernelPanic(HandlerFalloPagina))
	registrar(utils.MensajeLeer, conKernelPanic(HandlerLeer))
	registrar(utils.MensajeEscribir, conKernelPanic(HandlerEscribir))
	registrar(utils.MensajeFinalizarProceso, conKernelPanic(HandlerFinalizarProceso))
	registrar(utils.MensajeMemoryDump, conKernelPanic(HandlerMemoryDump))
	registrar(utils.MensajeMetricas, HandlerMetricas)

	utils.InfoLog.Info("Handlers registrados correctamente")
}

// iniciarTimer genera las interrupciones de timer si INTERVALO_TICK > 0
func iniciarTimer() {
	if kernelConfig.IntervaloTick <= 0 {
		return
	}
	timer = time.NewTicker(time.Duration(kernelConfig.IntervaloTick) * time.Millisecond)
	go func(ticks <-chan time.Time) {
		for range ticks {
			plan.Tick()
		}
	}(timer.C)
	utils.InfoLog.Info("Timer iniciado", "intervalo_ms", kernelConfig.IntervaloTick)
}

func detenerTimer() {
	if timer != nil {
		timer.Stop()
	}
}
