package planificador

import "github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"

// Tick es la interrupción periódica del timer. Actualiza la contabilidad de
// CPU en modo MLFQS y desaloja al hilo actual al vencer su quantum o si otro
// listo lo supera.
func (p *Planificador) Tick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ticks++

	if p.modo == ModoMLFQS {
		if p.actual != nil {
			p.actual.recentCPU = p.actual.recentCPU.MasEntero(1)
		}
		if p.ticks%FrecuenciaTimer == 0 {
			for _, h := range p.hilos {
				p.decaerRecentCPU(h)
			}
		}
		if p.ticks%TimeSlice == 0 {
			for _, h := range p.hilos {
				p.recalcularPrioridad(h)
			}
			ordenarCola(p.listos)
		}
	}

	if p.actual == nil {
		p.despachar()
		return
	}

	p.ticksRebanada++
	if p.ticksRebanada >= TimeSlice {
		utils.InfoLog.Debug("Fin de quantum", "tid", p.actual.TID, "ticks", p.ticks)
		p.ceder()
		return
	}
	p.verificarDesalojo()
}

// Ticks devuelve la cantidad de interrupciones de timer recibidas
func (p *Planificador) Ticks() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks
}

// FijarNice cambia el nice de h y recalcula su prioridad en modo MLFQS
func (p *Planificador) FijarNice(h *Hilo, nice int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h.nice = limitar(nice, NiceMin, NiceMax)
	if p.modo == ModoMLFQS {
		p.recalcularPrioridad(h)
		p.reubicar(h)
		p.verificarDesalojo()
	}
	utils.InfoLog.Info("Nice actualizado", "tid", h.TID, "nice", h.nice, "efectiva", h.efectiva())
}

// Nice lee el nice de h
func (p *Planificador) Nice(h *Hilo) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return h.nice
}

// RecentCPU lee el uso reciente de CPU de h
func (p *Planificador) RecentCPU(h *Hilo) Fijo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return h.recentCPU
}

// FijarCargaPromedio recibe el load_avg, que se lleva fuera del planificador
func (p *Planificador) FijarCargaPromedio(carga Fijo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cargaPromedio = carga
}

// PrioridadMLFQS es PRI_MAX - recent_cpu/4 - 2*nice, truncado hacia cero y
// acotado a [PrioridadMin, PrioridadMax].
func PrioridadMLFQS(recentCPU Fijo, nice int) int {
	prioridad := DeEntero(PrioridadMax).Menos(recentCPU.EntreEntero(4)).MenosEntero(nice * 2)
	return limitar(prioridad.Entero(), PrioridadMin, PrioridadMax)
}

// DecaimientoRecentCPU es (2*carga)/(2*carga+1) * recent_cpu + nice
func DecaimientoRecentCPU(recentCPU, carga Fijo, nice int) Fijo {
	dobleCarga := carga.PorEntero(2)
	coeficiente := dobleCarga.Entre(dobleCarga.MasEntero(1))
	return coeficiente.Por(recentCPU).MasEntero(nice)
}

func (p *Planificador) recalcularPrioridad(h *Hilo) {
	h.prioridadMLFQS = PrioridadMLFQS(h.recentCPU, h.nice)
}

func (p *Planificador) decaerRecentCPU(h *Hilo) {
	h.recentCPU = DecaimientoRecentCPU(h.recentCPU, p.cargaPromedio, h.nice)
}
