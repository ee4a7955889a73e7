package memoria

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

var ErrSinMarcoDesalojable = errors.New("todos los marcos están fijados")

// EntradaMarco registra quién es dueño de un marco físico
type EntradaMarco struct {
	ID      int
	Proceso *Proceso
	Pagina  uint32
	// Fijado mientras se llena; el desalojo nunca lo elige
	Fijado bool
}

// TablaMarcos es el registro global de marcos ocupados. Si no hay marcos
// libres desaloja uno con el algoritmo del reloj (segunda oportunidad).
type TablaMarcos struct {
	mu       sync.Mutex
	fisica   *MemoriaFisica
	swap     *AreaSwap
	metricas *registroMetricas
	entradas []*EntradaMarco // por ID de marco; nil = libre
	aguja    int
}

func NuevaTablaMarcos(fisica *MemoriaFisica, swap *AreaSwap, metricas *registroMetricas) *TablaMarcos {
	return &TablaMarcos{
		fisica:   fisica,
		swap:     swap,
		metricas: metricas,
		entradas: make([]*EntradaMarco, fisica.CantidadMarcos()),
	}
}

// Asignar devuelve un marco en cero, fijado, registrado a (proc, pagina).
// Desaloja tantas veces como haga falta mientras haya marcos no fijados.
func (t *TablaMarcos) Asignar(proc *Proceso, pagina uint32) (*EntradaMarco, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if id, ok := t.fisica.tomarLibre(); ok {
			marco := &EntradaMarco{ID: id, Proceso: proc, Pagina: pagina, Fijado: true}
			t.entradas[id] = marco
			clear(t.fisica.Marco(id))
			utils.InfoLog.Debug("Marco asignado", "pid", proc.PID, "pagina", pagina, "marco", id)
			return marco, nil
		}

		if err := t.desalojar(); err != nil {
			utils.ErrorLog.Error("No hay marcos para desalojar", "pid", proc.PID, "pagina", pagina)
			return nil, err
		}
	}
}

// Liberar devuelve el marco al pool y borra su registro
func (t *TablaMarcos) Liberar(marco *EntradaMarco) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entradas[marco.ID] != marco {
		return
	}
	t.entradas[marco.ID] = nil
	t.fisica.devolver(marco.ID)
	utils.InfoLog.Debug("Marco liberado", "marco", marco.ID)
}

// Desfijar habilita el marco para desalojo
func (t *TablaMarcos) Desfijar(marco *EntradaMarco) {
	t.mu.Lock()
	defer t.mu.Unlock()
	marco.Fijado = false
}

// Datos devuelve los bytes del marco
func (t *TablaMarcos) Datos(marco *EntradaMarco) []byte {
	return t.fisica.Marco(marco.ID)
}

// Ocupados cuenta los marcos registrados
func (t *TablaMarcos) Ocupados() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	ocupados := 0
	for _, marco := range t.entradas {
		if marco != nil {
			ocupados++
		}
	}
	return ocupados
}

// EstadoMarco es una foto de un marco para dumps y consultas
type EstadoMarco struct {
	ID     int    `json:"marco"`
	Libre  bool   `json:"libre"`
	PID    int    `json:"pid"`
	Pagina uint32 `json:"pagina"`
	Fijado bool   `json:"fijado"`
}

// Foto devuelve el estado de todos los marcos en orden de ID
func (t *TablaMarcos) Foto() []EstadoMarco {
	t.mu.Lock()
	defer t.mu.Unlock()

	foto := make([]EstadoMarco, len(t.entradas))
	for id, marco := range t.entradas {
		if marco == nil {
			foto[id] = EstadoMarco{ID: id, Libre: true, PID: -1}
			continue
		}
		foto[id] = EstadoMarco{ID: id, PID: marco.Proceso.PID, Pagina: marco.Pagina, Fijado: marco.Fijado}
	}
	return foto
}

// desalojar recorre los marcos con la aguja del reloj: saltea fijados,
// da segunda oportunidad a los accedidos y desaloja el primero restante.
func (t *TablaMarcos) desalojar() error {
	n := len(t.entradas)
	for paso := 0; paso < 2*n; paso++ {
		id := t.aguja
		t.aguja = (t.aguja + 1) % n

		marco := t.entradas[id]
		if marco == nil || marco.Fijado {
			continue
		}
		espacio := marco.Proceso.Espacio
		if espacio.Accedido(marco.Pagina) {
			espacio.LimpiarAccedido(marco.Pagina)
			continue
		}
		t.desalojarMarco(marco)
		return nil
	}
	return ErrSinMarcoDesalojable
}

// desalojarMarco manda el contenido a swap y deja la entrada del dueño en
// IN_SWAP. Quedarse sin swap acá deja la memoria sin progreso posible: es
// fatal para el kernel.
func (t *TablaMarcos) desalojarMarco(marco *EntradaMarco) {
	proc := marco.Proceso

	slot, err := t.swap.Escribir(t.fisica.Marco(marco.ID))
	if err != nil {
		utils.ErrorLog.Error("Kernel panic: no se pudo desalojar", "pid", proc.PID, "pagina", marco.Pagina, "marco", marco.ID, "error", err)
		panic(fmt.Errorf("kernel panic: desalojo del marco %d: %w", marco.ID, err))
	}

	entrada := proc.SPT.Buscar(marco.Pagina)
	if entrada != nil {
		entrada.Accedido = entrada.Accedido || proc.Espacio.Accedido(marco.Pagina)
		entrada.Sucio = entrada.Sucio || proc.Espacio.Sucio(marco.Pagina)
		entrada.Estado = EnSwap
		entrada.SlotSwap = slot
		entrada.Marco = nil
	}
	proc.Espacio.Quitar(marco.Pagina)

	t.entradas[marco.ID] = nil
	t.fisica.devolver(marco.ID)

	t.metricas.contar(proc.PID, func(m *MetricasProceso) { m.BajadasSwap++ })

	// Log obligatorio
	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Datos movidos a SWAP - Página: %d", proc.PID, marco.Pagina))
	utils.InfoLog.Debug("Marco desalojado", "pid", proc.PID, "pagina", marco.Pagina, "marco", marco.ID, "slot", slot)
}
