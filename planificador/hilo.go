package planificador

import "fmt"

// Estado de ejecución de un hilo
type Estado int

const (
	EstadoListo Estado = iota
	EstadoEjecutando
	EstadoBloqueado
	EstadoTerminado
)

func (e Estado) String() string {
	switch e {
	case EstadoListo:
		return "READY"
	case EstadoEjecutando:
		return "RUNNING"
	case EstadoBloqueado:
		return "BLOCKED"
	case EstadoTerminado:
		return "DYING"
	default:
		return fmt.Sprintf("Estado(%d)", int(e))
	}
}

const (
	PrioridadMin        = 0
	PrioridadPorDefecto = 31
	PrioridadMax        = 63

	NiceMin = -20
	NiceMax = 20
)

// Donacion es un aporte de prioridad recibido a través de un cerrojo
type Donacion struct {
	Prioridad int
	Cerrojo   *Cerrojo
}

// Hilo es la unidad planificable. Todo su estado mutable se toca con el
// planificador tomado.
type Hilo struct {
	TID    int
	Nombre string

	prioridadBase  int
	nice           int
	recentCPU      Fijo
	prioridadMLFQS int
	mlfqs          bool

	// Ordenadas de mayor a menor prioridad
	donaciones  []Donacion
	bloqueadoEn *Cerrojo
	cerrojos    []*Cerrojo
	estado      Estado

	// Orden de llegada a la cola en la que está, para desempatar FIFO
	orden     uint64
	despertar chan struct{}
}

// efectiva es max(base, donaciones) o la prioridad calculada en modo MLFQS
func (h *Hilo) efectiva() int {
	if h.mlfqs {
		return h.prioridadMLFQS
	}
	prioridad := h.prioridadBase
	if len(h.donaciones) > 0 && h.donaciones[0].Prioridad > prioridad {
		prioridad = h.donaciones[0].Prioridad
	}
	return prioridad
}

// agregarDonacion inserta manteniendo el orden descendente; entre iguales
// queda después de las existentes.
func (h *Hilo) agregarDonacion(d Donacion) {
	i := 0
	for i < len(h.donaciones) && h.donaciones[i].Prioridad >= d.Prioridad {
		i++
	}
	h.donaciones = append(h.donaciones, Donacion{})
	copy(h.donaciones[i+1:], h.donaciones[i:])
	h.donaciones[i] = d
}

// quitarDonaciones descarta todas las donaciones asociadas a c
func (h *Hilo) quitarDonaciones(c *Cerrojo) int {
	quedan := h.donaciones[:0]
	quitadas := 0
	for _, d := range h.donaciones {
		if d.Cerrojo == c {
			quitadas++
			continue
		}
		quedan = append(quedan, d)
	}
	h.donaciones = quedan
	return quitadas
}

func (h *Hilo) soltarCerrojo(c *Cerrojo) {
	for i, tomado := range h.cerrojos {
		if tomado == c {
			h.cerrojos = append(h.cerrojos[:i], h.cerrojos[i+1:]...)
			return
		}
	}
}

func (h *Hilo) String() string {
	return fmt.Sprintf("Hilo{TID: %d, Nombre: %s, Estado: %s, Prioridad: %d}",
		h.TID, h.Nombre, h.estado, h.efectiva())
}

func limitar(valor, minimo, maximo int) int {
	if valor < minimo {
		return minimo
	}
	if valor > maximo {
		return maximo
	}
	return valor
}
