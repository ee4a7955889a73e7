package memoria

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/planificador"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Proceso es el espacio de direcciones de un proceso de usuario
type Proceso struct {
	PID     int
	Hilo    *planificador.Hilo
	SPT     *TablaSuplementaria
	Espacio EspacioDirecciones

	// Una solicitud a la vez por proceso
	solicitudes sync.Mutex

	paginasPila  int
	terminado    bool
	finPendiente bool
	estadoSalida int
}

// PaginasPila devuelve cuántas páginas creció la pila por fallos
func (p *Proceso) PaginasPila() int {
	return p.paginasPila
}

// CrearProceso da de alta un espacio de direcciones vacío para pid, atendido por hilo
func (m *Memoria) CrearProceso(pid int, hilo *planificador.Hilo) (*Proceso, error) {
	if pid < 0 {
		return nil, fmt.Errorf("pid inválido: %d", pid)
	}
	if hilo == nil {
		return nil, fmt.Errorf("el proceso %d necesita un hilo", pid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, existe := m.procesos[pid]; existe {
		return nil, fmt.Errorf("el proceso %d ya existe", pid)
	}

	proc := &Proceso{
		PID:     pid,
		Hilo:    hilo,
		SPT:     NuevaTablaSuplementaria(),
		Espacio: NuevoDirectorio(),
	}
	m.procesos[pid] = proc
	m.metricas.contar(pid, func(*MetricasProceso) {})

	// Log obligatorio
	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Proceso Creado", pid), "tid", hilo.TID)
	return proc, nil
}

// Proceso devuelve el proceso pid o nil si no existe
func (m *Memoria) Proceso(pid int) *Proceso {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.procesos[pid]
}

// CargarSegmento registra un segmento de archivo a partir de upage: una
// entrada UNMAPPED por página, sin leer nada todavía. bytesLeer bytes se
// leen desde offset y los siguientes bytesCero quedan en cero.
func (m *Memoria) CargarSegmento(proc *Proceso, archivo io.ReadSeeker, offset int64, upage uint32, bytesLeer, bytesCero int, escribible bool) error {
	tam := m.config.TamPagina
	if (bytesLeer+bytesCero)%tam != 0 {
		return fmt.Errorf("segmento de %d bytes no es múltiplo de página", bytesLeer+bytesCero)
	}
	if upage%uint32(tam) != 0 || offset%int64(tam) != 0 {
		return fmt.Errorf("segmento no alineado: upage 0x%08x, offset %d", upage, offset)
	}
	if uint64(upage)+uint64(bytesLeer+bytesCero) > uint64(m.config.TopeUsuario) {
		return fmt.Errorf("segmento en 0x%08x excede el espacio de usuario", upage)
	}

	if err := m.entrar(proc); err != nil {
		return err
	}
	defer m.salir(proc)

	paginas := 0
	for bytesLeer > 0 || bytesCero > 0 {
		leerPagina := min(bytesLeer, tam)
		ceroPagina := tam - leerPagina

		entrada := &EntradaSPT{
			Pagina: upage,
			Estado: NoMapeada,
			Carga: InfoCarga{
				Archivo:    archivo,
				Offset:     offset,
				BytesLeer:  leerPagina,
				BytesCero:  ceroPagina,
				Escribible: escribible,
			},
			SlotSwap: sinSlot,
		}
		if err := proc.SPT.Insertar(entrada); err != nil {
			return fmt.Errorf("error al cargar segmento del proceso %d: %w", proc.PID, err)
		}

		bytesLeer -= leerPagina
		bytesCero -= ceroPagina
		offset += int64(leerPagina)
		upage += uint32(tam)
		paginas++
	}

	utils.InfoLog.Info("Segmento registrado", "pid", proc.PID, "paginas", paginas, "escribible", escribible)
	return nil
}

// RegistrarMapeo reserva las páginas de un archivo mapeado en fd. Las
// páginas quedan MMAP_PENDING hasta el primer acceso.
func (m *Memoria) RegistrarMapeo(proc *Proceso, fd int, upage uint32, offset int64, bytes int, escribible bool) error {
	tam := m.config.TamPagina
	if bytes <= 0 {
		return fmt.Errorf("mapeo vacío para fd %d", fd)
	}
	if upage%uint32(tam) != 0 {
		return fmt.Errorf("mapeo no alineado en 0x%08x", upage)
	}
	if uint64(upage)+uint64(bytes) > uint64(m.config.TopeUsuario) {
		return fmt.Errorf("mapeo en 0x%08x excede el espacio de usuario", upage)
	}

	if err := m.entrar(proc); err != nil {
		return err
	}
	defer m.salir(proc)

	for restantes := bytes; restantes > 0; restantes -= tam {
		leer := min(restantes, tam)
		entrada := &EntradaSPT{
			Pagina: upage,
			Estado: MmapPendiente,
			Carga: InfoCarga{
				Offset:     offset,
				BytesLeer:  leer,
				BytesCero:  tam - leer,
				Escribible: escribible,
			},
			SlotSwap: sinSlot,
			FD:       fd,
		}
		if err := proc.SPT.Insertar(entrada); err != nil {
			return fmt.Errorf("error al registrar mapeo del proceso %d: %w", proc.PID, err)
		}
		upage += uint32(tam)
		offset += int64(tam)
	}

	utils.InfoLog.Info("Mapeo registrado", "pid", proc.PID, "fd", fd, "bytes", bytes)
	return nil
}

// FinalizarProceso libera marcos, slots y entradas del proceso y avisa por
// AlTerminar. Llamarlo sobre un proceso ya terminado no tiene efecto.
func (m *Memoria) FinalizarProceso(proc *Proceso, estado int) error {
	if err := m.entrar(proc); err != nil {
		if errors.Is(err, ErrProcesoTerminado) {
			return nil
		}
		return err
	}
	defer m.salir(proc)

	m.finalizar(proc, estado)
	return nil
}

// finalizar corre con la solicitud abierta. El aviso queda pendiente para salir.
func (m *Memoria) finalizar(proc *Proceso, estado int) {
	if !m.liberarProceso(proc) {
		return
	}
	proc.finPendiente = true
	proc.estadoSalida = estado
}

func (m *Memoria) avisarFin(proc *Proceso, estado int) {
	m.metricas.informar(proc.PID)
	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Finaliza el proceso - Estado: %d", proc.PID, estado))

	if m.AlTerminar != nil {
		m.AlTerminar(proc.PID, estado)
	}
}

func (m *Memoria) liberarProceso(proc *Proceso) bool {
	m.mu.Lock()
	if proc.terminado {
		m.mu.Unlock()
		return false
	}
	proc.terminado = true
	delete(m.procesos, proc.PID)
	m.mu.Unlock()

	marcos, slots := 0, 0
	for _, entrada := range proc.SPT.Entradas() {
		if entrada.TieneMarco() {
			proc.Espacio.Quitar(entrada.Pagina)
			m.marcos.Liberar(entrada.Marco)
			entrada.Marco = nil
			marcos++
		}
		if entrada.TieneSlot() {
			if err := m.swap.Liberar(entrada.SlotSwap); err != nil {
				utils.ErrorLog.Error("Error liberando slot de swap", "pid", proc.PID, "slot", entrada.SlotSwap, "error", err)
			}
			entrada.SlotSwap = sinSlot
			slots++
		}
		proc.SPT.Quitar(entrada.Pagina)
	}

	utils.InfoLog.Debug("Recursos del proceso liberados", "pid", proc.PID, "marcos", marcos, "slots", slots)
	return true
}

// terminarProceso mata al proceso por un acceso inválido
func (m *Memoria) terminarProceso(proc *Proceso) {
	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Acceso inválido - Proceso terminado", proc.PID))
	m.finalizar(proc, -1)
}
