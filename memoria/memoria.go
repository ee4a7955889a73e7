package memoria

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/planificador"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Memoria agrupa el subsistema de memoria virtual: memoria física, swap,
// tabla de marcos y los procesos con sus tablas suplementarias.
type Memoria struct {
	config   Config
	plan     *planificador.Planificador
	fisica   *MemoriaFisica
	swap     *AreaSwap
	marcos   *TablaMarcos
	mapeador Mapeador
	metricas *registroMetricas

	// Cubre toda mutación de tablas suplementarias y de la tabla de marcos
	cerrojoMovimiento *planificador.Cerrojo
	// Serializa el acceso a los archivos de respaldo
	cerrojoArchivos *planificador.Cerrojo

	mu       sync.Mutex
	procesos map[int]*Proceso

	// AlTerminar se invoca cuando un proceso termina, con su estado de salida
	AlTerminar func(pid int, estado int)
}

// Nueva inicializa memoria física y swap. Si mapeador es nil usa un MapeoArchivos vacío.
func Nueva(config Config, plan *planificador.Planificador, mapeador Mapeador) (*Memoria, error) {
	config = config.Completar()

	fisica, err := NuevaMemoriaFisica(config.CantidadMarcos, config.TamPagina)
	if err != nil {
		return nil, fmt.Errorf("error al inicializar memoria física: %w", err)
	}

	swap, err := NuevaAreaSwap(config.SwapfilePath, config.CantidadSlotsSwap, config.TamPagina, config.RetardoSwap)
	if err != nil {
		fisica.Cerrar()
		return nil, fmt.Errorf("error al inicializar swap: %w", err)
	}

	if mapeador == nil {
		mapeador = NuevoMapeoArchivos()
	}

	metricas := nuevoRegistroMetricas()
	m := &Memoria{
		config:            config,
		plan:              plan,
		fisica:            fisica,
		swap:              swap,
		marcos:            NuevaTablaMarcos(fisica, swap, metricas),
		mapeador:          mapeador,
		metricas:          metricas,
		cerrojoMovimiento: plan.NuevoCerrojo("movimiento"),
		cerrojoArchivos:   plan.NuevoCerrojo("archivos"),
		procesos:          make(map[int]*Proceso),
	}

	utils.InfoLog.Info("Memoria virtual inicializada",
		"tam_pagina", config.TamPagina,
		"marcos", config.CantidadMarcos,
		"slots_swap", config.CantidadSlotsSwap)
	return m, nil
}

// Cerrar libera la memoria física y el archivo de swap
func (m *Memoria) Cerrar() error {
	return errors.Join(m.fisica.Cerrar(), m.swap.Cerrar())
}

func (m *Memoria) Config() Config {
	return m.config
}

// CerrojoArchivos es el cerrojo de acceso a archivos que comparten los
// cargadores y el manejador de fallos
func (m *Memoria) CerrojoArchivos() *planificador.Cerrojo {
	return m.cerrojoArchivos
}

// Marcos devuelve la foto de la tabla de marcos
func (m *Memoria) Marcos() []EstadoMarco {
	return m.marcos.Foto()
}

// SlotsSwapLibres devuelve cuántos slots de swap quedan
func (m *Memoria) SlotsSwapLibres() int {
	return m.swap.SlotsLibres()
}

// Metricas devuelve las métricas acumuladas del proceso
func (m *Memoria) Metricas(pid int) (MetricasProceso, bool) {
	return m.metricas.leer(pid)
}

// MarcosLibres devuelve cuántos marcos físicos no tienen dueño
func (m *Memoria) MarcosLibres() int {
	return m.fisica.Libres()
}

// entrar abre una solicitud sobre proc: serializa las solicitudes del
// proceso y toma el cerrojo de movimiento a nombre de su hilo. Todo lo que
// corre entre entrar y salir recibe el cerrojo ya tomado.
func (m *Memoria) entrar(proc *Proceso) error {
	proc.solicitudes.Lock()
	if m.estaTerminado(proc) {
		proc.solicitudes.Unlock()
		return ErrProcesoTerminado
	}
	if err := m.plan.Adquirir(proc.Hilo, m.cerrojoMovimiento); err != nil {
		proc.solicitudes.Unlock()
		return fmt.Errorf("el proceso %d no puede tomar el cerrojo de movimiento: %w", proc.PID, err)
	}
	return nil
}

// salir cierra la solicitud. Si durante ella el proceso terminó, el aviso
// se da recién con el cerrojo suelto.
func (m *Memoria) salir(proc *Proceso) {
	fin, estado := proc.finPendiente, proc.estadoSalida
	proc.finPendiente = false

	m.plan.Liberar(proc.Hilo, m.cerrojoMovimiento)
	proc.solicitudes.Unlock()

	if fin {
		m.avisarFin(proc, estado)
	}
}

func (m *Memoria) estaTerminado(proc *Proceso) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return proc.terminado
}
