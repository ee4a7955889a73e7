package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/planificador"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

const (
	EstadoActivo = "ACTIVO"
	EstadoExit   = "EXIT"
)

// PCB es lo que el kernel guarda de cada proceso además de su espacio de direcciones
type PCB struct {
	PID     int
	Estado  string
	Hilo    *planificador.Hilo
	Proceso *memoria.Proceso

	// Archivos abiertos por segmentos y mapeos; se cierran al terminar
	Archivos []io.Closer

	HoraCreacion     time.Time
	HoraFinalizacion time.Time
	CodigoSalida     int
}

var (
	mapaPCBs  map[int]*PCB
	mapaMutex sync.RWMutex
)

func inicializarTablaProcesos() {
	mapaMutex.Lock()
	defer mapaMutex.Unlock()
	mapaPCBs = make(map[int]*PCB)
}

// NuevoPCB registra el proceso ya creado en memoria
func NuevoPCB(proc *memoria.Proceso) *PCB {
	pcb := &PCB{
		PID:          proc.PID,
		Estado:       EstadoActivo,
		Hilo:         proc.Hilo,
		Proceso:      proc,
		HoraCreacion: time.Now(),
	}

	mapaMutex.Lock()
	mapaPCBs[pcb.PID] = pcb
	mapaMutex.Unlock()

	utils.InfoLog.Info(fmt.Sprintf("(%d) - Se crea el proceso - Estado: %s", pcb.PID, pcb.Estado), "tid", pcb.Hilo.TID)
	return pcb
}

// BuscarPCBPorPID devuelve el PCB o nil
func BuscarPCBPorPID(pid int) *PCB {
	mapaMutex.RLock()
	defer mapaMutex.RUnlock()
	return mapaPCBs[pid]
}

// BuscarPCBPorHilo devuelve el proceso activo atendido por h, o nil
func BuscarPCBPorHilo(h *planificador.Hilo) *PCB {
	mapaMutex.RLock()
	defer mapaMutex.RUnlock()
	for _, pcb := range mapaPCBs {
		if pcb.Hilo == h && pcb.Estado == EstadoActivo {
			return pcb
		}
	}
	return nil
}

// AgregarArchivo asocia un archivo abierto al proceso
func (pcb *PCB) AgregarArchivo(archivo io.Closer) {
	mapaMutex.Lock()
	defer mapaMutex.Unlock()
	pcb.Archivos = append(pcb.Archivos, archivo)
}

func (pcb *PCB) String() string {
	return fmt.Sprintf("PCB{PID: %d, Estado: %s, TID: %d}", pcb.PID, pcb.Estado, pcb.Hilo.TID)
}

// alTerminarProceso es el aviso de la memoria virtual cuando un proceso
// termina, sea por salida normal o por un acceso inválido
func alTerminarProceso(pid int, estado int) {
	mapaMutex.Lock()
	pcb, existe := mapaPCBs[pid]
	if !existe {
		mapaMutex.Unlock()
		return
	}
	delete(mapaPCBs, pid)
	archivos := pcb.Archivos
	pcb.Archivos = nil
	pcb.Estado = EstadoExit
	pcb.CodigoSalida = estado
	pcb.HoraFinalizacion = time.Now()
	mapaMutex.Unlock()

	for _, archivo := range archivos {
		if err := archivo.Close(); err != nil {
			utils.ErrorLog.Error("Error cerrando archivo del proceso", "pid", pid, "error", err)
		}
	}
	plan.TerminarHilo(pcb.Hilo)

	utils.InfoLog.Info(fmt.Sprintf("(%d) - Pasa al estado %s - Código: %d - Duración: %s",
		pid, EstadoExit, estado, pcb.HoraFinalizacion.Sub(pcb.HoraCreacion).Round(time.Millisecond)))
}
