package planificador

import (
	"errors"
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

var (
	ErrHiloTerminado = errors.New("hilo terminado")
	ErrHiloBloqueado = errors.New("hilo bloqueado en otro cerrojo")
	ErrCerrojoPropio = errors.New("el hilo ya posee el cerrojo")
)

// NuevoCerrojo crea un cerrojo libre
func (p *Planificador) NuevoCerrojo(nombre string) *Cerrojo {
	return &Cerrojo{Nombre: nombre}
}

// Adquirir toma c para h. Si está ocupado, h queda BLOCKED en la cola de
// espera (donando su prioridad) y la llamada bloquea hasta recibir el cerrojo.
// Si h termina mientras espera, devuelve ErrHiloTerminado sin el cerrojo.
func (p *Planificador) Adquirir(h *Hilo, c *Cerrojo) error {
	listo, err := p.solicitar(h, c)
	if err != nil {
		return err
	}
	if listo == nil {
		return nil
	}
	<-listo
	if !p.EsPoseedor(h, c) {
		return fmt.Errorf("%w: %d esperaba %q", ErrHiloTerminado, h.TID, c.Nombre)
	}
	return nil
}

// IntentarAdquirir toma c sólo si está libre y h sigue vivo
func (p *Planificador) IntentarAdquirir(h *Hilo, c *Cerrojo) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.poseedor != nil || h.estado == EstadoTerminado {
		return false
	}
	p.tomarPosesion(h, c)
	return true
}

// Liberar suelta c. Las donaciones recibidas a través de c se retiran y el
// cerrojo pasa directamente al hilo de mayor prioridad de la cola de espera.
func (p *Planificador) Liberar(h *Hilo, c *Cerrojo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.poseedor != h {
		panic(fmt.Sprintf("hilo %d libera el cerrojo %q que no posee", h.TID, c.Nombre))
	}
	p.entregar(h, c)
	p.verificarDesalojo()
}

// EsPoseedor indica si h tiene tomado c
func (p *Planificador) EsPoseedor(h *Hilo, c *Cerrojo) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return c.poseedor == h
}

// Poseedor devuelve quién tiene tomado c, o nil
func (p *Planificador) Poseedor(c *Cerrojo) *Hilo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return c.poseedor
}

// EnEspera devuelve la cola de espera de c en orden de entrega
func (p *Planificador) EnEspera(c *Cerrojo) []*Hilo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Hilo(nil), c.espera...)
}

// CerrojosDe devuelve los cerrojos que h tiene tomados
func (p *Planificador) CerrojosDe(h *Hilo) []*Cerrojo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Cerrojo(nil), h.cerrojos...)
}

// solicitar es la mitad no bloqueante de Adquirir. Devuelve nil si h tomó
// el cerrojo, o un canal que se cierra cuando se lo entregan o h termina.
func (p *Planificador) solicitar(h *Hilo, c *Cerrojo) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case h.estado == EstadoTerminado:
		return nil, fmt.Errorf("%w: %d no puede pedir %q", ErrHiloTerminado, h.TID, c.Nombre)
	case c.poseedor == h:
		return nil, fmt.Errorf("%w: %d, %q", ErrCerrojoPropio, h.TID, c.Nombre)
	case h.bloqueadoEn != nil:
		return nil, fmt.Errorf("%w: %d espera %q", ErrHiloBloqueado, h.TID, h.bloqueadoEn.Nombre)
	}

	if c.poseedor == nil {
		p.tomarPosesion(h, c)
		return nil, nil
	}

	despertar := make(chan struct{})
	h.despertar = despertar
	h.bloqueadoEn = c

	if p.modo == ModoPrioridades {
		p.donar(h, c)
	}

	h.orden = p.siguienteOrden()
	c.espera = append(c.espera, h)
	ordenarCola(c.espera)
	p.bloquear(h)

	utils.InfoLog.Debug("Hilo bloqueado en cerrojo", "tid", h.TID, "cerrojo", c.Nombre, "poseedor", c.poseedor.TID)
	return despertar, nil
}

// entregar suelta c de manos de h y se lo da al primero de la cola de espera
func (p *Planificador) entregar(h *Hilo, c *Cerrojo) {
	if p.modo == ModoPrioridades {
		quitadas := h.quitarDonaciones(c)
		if quitadas > 0 {
			utils.InfoLog.Debug("Donaciones retiradas", "tid", h.TID, "cerrojo", c.Nombre, "cantidad", quitadas, "efectiva", h.efectiva())
			p.reubicar(h)
		}
	}
	h.soltarCerrojo(c)
	c.poseedor = nil

	siguiente := sacarPrimero(&c.espera)
	if siguiente == nil {
		return
	}
	siguiente.bloqueadoEn = nil
	p.tomarPosesion(siguiente, c)
	if p.modo == ModoPrioridades {
		p.heredarDonaciones(siguiente, c)
	}
	p.desbloquear(siguiente)
	utils.InfoLog.Debug("Cerrojo entregado", "cerrojo", c.Nombre, "tid", siguiente.TID, "efectiva", siguiente.efectiva())
}

func (p *Planificador) tomarPosesion(h *Hilo, c *Cerrojo) {
	c.poseedor = h
	h.cerrojos = append(h.cerrojos, c)
}
