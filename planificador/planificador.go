package planificador

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Modo de planificación, elegido una sola vez al arrancar
type Modo int

const (
	ModoPrioridades Modo = iota
	ModoMLFQS
)

func (m Modo) String() string {
	if m == ModoMLFQS {
		return "MLFQS"
	}
	return "PRIORIDADES"
}

// ParsearModo interpreta el MODO_PLANIFICADOR de la configuración
func ParsearModo(valor string) (Modo, error) {
	switch strings.ToUpper(strings.TrimSpace(valor)) {
	case "", "PRIORIDADES", "PRIORIDAD":
		return ModoPrioridades, nil
	case "MLFQS":
		return ModoMLFQS, nil
	default:
		return ModoPrioridades, fmt.Errorf("modo de planificación desconocido: %s", valor)
	}
}

const (
	// Ticks que puede ejecutar un hilo antes de ser desalojado
	TimeSlice = 4
	// Ticks por segundo del timer
	FrecuenciaTimer = 100
)

// Planificador es el contexto explícito del scheduler: cola de listos,
// hilo en ejecución y cerrojos. El mutex cumple el rol de deshabilitar
// interrupciones; las secciones críticas nunca bloquean.
type Planificador struct {
	mu sync.Mutex

	modo   Modo
	listos []*Hilo
	actual *Hilo
	hilos  map[int]*Hilo

	proximoTID    int
	secuencia     uint64
	ticks         int64
	ticksRebanada int
	cargaPromedio Fijo
}

// Nuevo crea un planificador vacío en el modo indicado
func Nuevo(modo Modo) *Planificador {
	utils.InfoLog.Info("Planificador inicializado", "modo", modo.String())
	return &Planificador{
		modo:       modo,
		hilos:      make(map[int]*Hilo),
		proximoTID: 1,
	}
}

func (p *Planificador) Modo() Modo {
	return p.modo
}

// CrearHilo da de alta un hilo en READY. Si supera al que está ejecutando, lo desaloja.
func (p *Planificador) CrearHilo(nombre string, prioridad int) *Hilo {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := &Hilo{
		TID:           p.proximoTID,
		Nombre:        nombre,
		prioridadBase: limitar(prioridad, PrioridadMin, PrioridadMax),
		mlfqs:         p.modo == ModoMLFQS,
	}
	p.proximoTID++

	if h.mlfqs {
		if p.actual != nil {
			h.nice = p.actual.nice
			h.recentCPU = p.actual.recentCPU
		}
		p.recalcularPrioridad(h)
	}

	p.hilos[h.TID] = h
	utils.InfoLog.Info(fmt.Sprintf("(%d) - Se crea el hilo - Prioridad: %d", h.TID, h.efectiva()), "nombre", nombre)

	p.insertarListo(h)
	p.verificarDesalojo()
	return h
}

// Buscar devuelve el hilo con ese TID o nil
func (p *Planificador) Buscar(tid int) *Hilo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hilos[tid]
}

// Actual devuelve el hilo en ejecución, nil si el procesador está ocioso
func (p *Planificador) Actual() *Hilo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.actual
}

// PrioridadEfectiva lee la prioridad efectiva de h
func (p *Planificador) PrioridadEfectiva(h *Hilo) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return h.efectiva()
}

// PrioridadBase lee la prioridad base de h
func (p *Planificador) PrioridadBase(h *Hilo) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return h.prioridadBase
}

// EstadoDe lee el estado de h
func (p *Planificador) EstadoDe(h *Hilo) Estado {
	p.mu.Lock()
	defer p.mu.Unlock()
	return h.estado
}

// Donaciones devuelve una copia de las donaciones activas de h
func (p *Planificador) Donaciones(h *Hilo) []Donacion {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Donacion(nil), h.donaciones...)
}

// BloqueadoEn devuelve el cerrojo por el que espera h, o nil
func (p *Planificador) BloqueadoEn(h *Hilo) *Cerrojo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return h.bloqueadoEn
}

// Listos devuelve la cola de listos en el orden en que serían despachados
func (p *Planificador) Listos() []*Hilo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Hilo(nil), p.listos...)
}

// Ceder devuelve el hilo en ejecución a READY y despacha al de mayor prioridad
func (p *Planificador) Ceder() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ceder()
}

// FijarPrioridad cambia la prioridad base. En modo MLFQS se ignora.
func (p *Planificador) FijarPrioridad(h *Hilo, prioridad int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.modo == ModoMLFQS {
		utils.InfoLog.Warn("FijarPrioridad ignorado en modo MLFQS", "tid", h.TID, "prioridad", prioridad)
		return
	}

	anterior := h.efectiva()
	h.prioridadBase = limitar(prioridad, PrioridadMin, PrioridadMax)
	p.reubicar(h)
	if h.bloqueadoEn != nil && h.efectiva() > anterior {
		p.propagar(h)
	}

	utils.InfoLog.Info("Prioridad base actualizada", "tid", h.TID, "base", h.prioridadBase, "efectiva", h.efectiva())
	p.verificarDesalojo()
}

// TerminarHilo saca a h de toda cola. Los cerrojos que todavía tenga pasan
// a sus esperas como en Liberar, y si estaba esperando uno se despierta su
// goroutine sin entregárselo.
func (p *Planificador) TerminarHilo(h *Hilo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch h.estado {
	case EstadoListo:
		quitarDeCola(&p.listos, h)
	case EstadoBloqueado:
		if c := h.bloqueadoEn; c != nil {
			quitarDeCola(&c.espera, h)
			h.bloqueadoEn = nil
			if p.modo == ModoPrioridades {
				p.recalcularCadena(c)
			}
		}
		if h.despertar != nil {
			close(h.despertar)
			h.despertar = nil
		}
	case EstadoTerminado:
		return
	}

	h.estado = EstadoTerminado
	for len(h.cerrojos) > 0 {
		c := h.cerrojos[0]
		utils.InfoLog.Info(fmt.Sprintf("(%d) - Cerrojo %q liberado al finalizar", h.TID, c.Nombre))
		p.entregar(h, c)
	}
	h.donaciones = nil
	delete(p.hilos, h.TID)
	utils.InfoLog.Info(fmt.Sprintf("(%d) - Finaliza el hilo", h.TID))

	if p.actual == h {
		p.actual = nil
		p.despachar()
	} else {
		p.verificarDesalojo()
	}
}

// insertarListo encola h en READY respetando prioridad y orden de llegada
func (p *Planificador) insertarListo(h *Hilo) {
	h.estado = EstadoListo
	h.orden = p.siguienteOrden()
	p.listos = append(p.listos, h)
	ordenarCola(p.listos)
}

func (p *Planificador) siguienteOrden() uint64 {
	p.secuencia++
	return p.secuencia
}

func (p *Planificador) despachar() {
	h := sacarPrimero(&p.listos)
	p.actual = h
	p.ticksRebanada = 0
	if h == nil {
		utils.InfoLog.Debug("Procesador ocioso")
		return
	}
	h.estado = EstadoEjecutando
	utils.InfoLog.Debug("Hilo despachado", "tid", h.TID, "prioridad", h.efectiva())
}

func (p *Planificador) ceder() {
	if p.actual != nil {
		p.insertarListo(p.actual)
		p.actual = nil
	}
	p.despachar()
}

// verificarDesalojo cede si hay un listo con más prioridad que el actual
func (p *Planificador) verificarDesalojo() {
	if p.actual == nil {
		p.despachar()
		return
	}
	if len(p.listos) > 0 && p.listos[0].efectiva() > p.actual.efectiva() {
		utils.InfoLog.Debug("Desalojo por prioridad", "tid_actual", p.actual.TID, "tid_listo", p.listos[0].TID)
		p.ceder()
	}
}

// reubicar reordena la cola donde está h luego de un cambio de prioridad
func (p *Planificador) reubicar(h *Hilo) {
	switch {
	case h.estado == EstadoListo:
		ordenarCola(p.listos)
	case h.bloqueadoEn != nil:
		ordenarCola(h.bloqueadoEn.espera)
	}
}

// bloquear pasa h a BLOCKED y, si era el actual, despacha a otro
func (p *Planificador) bloquear(h *Hilo) {
	if h.estado == EstadoListo {
		quitarDeCola(&p.listos, h)
	}
	h.estado = EstadoBloqueado
	if p.actual == h {
		p.actual = nil
		p.despachar()
	}
}

// desbloquear pasa h a READY y despierta a quien espera por él
func (p *Planificador) desbloquear(h *Hilo) {
	if h.estado != EstadoTerminado {
		p.insertarListo(h)
	}
	if h.despertar != nil {
		close(h.despertar)
		h.despertar = nil
	}
}
