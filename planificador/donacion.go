package planificador

import "github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"

// donar registra la donación de h al poseedor de c y la propaga por la
// cadena de poseedores. Cada donación queda asociada al cerrojo por el que
// llega a ese salto, así Liberar sabe exactamente cuáles retirar.
func (p *Planificador) donar(h *Hilo, c *Cerrojo) {
	valor := h.efectiva()
	receptor := c.poseedor

	receptor.agregarDonacion(Donacion{Prioridad: valor, Cerrojo: c})
	p.reubicar(receptor)
	utils.InfoLog.Debug("Prioridad donada", "de", h.TID, "a", receptor.TID, "cerrojo", c.Nombre, "valor", valor)

	p.propagarDesde(receptor, valor)
}

// propagar reenvía la prioridad efectiva actual de h, que está bloqueado,
// hacia los poseedores de la cadena.
func (p *Planificador) propagar(h *Hilo) {
	if h.bloqueadoEn == nil || h.bloqueadoEn.poseedor == nil {
		return
	}
	p.donar(h, h.bloqueadoEn)
}

// propagarDesde sigue la cadena bloqueadoEn -> poseedor a partir de origen.
// Corta en el primer poseedor que ya tiene una prioridad efectiva >= valor.
// La cadena es acíclica; si hubiera un ciclo, el corte por prioridad lo
// termina en la segunda vuelta.
func (p *Planificador) propagarDesde(origen *Hilo, valor int) {
	actual := origen
	for actual.bloqueadoEn != nil {
		via := actual.bloqueadoEn
		siguiente := via.poseedor
		if siguiente == nil || siguiente.efectiva() >= valor {
			return
		}
		siguiente.agregarDonacion(Donacion{Prioridad: valor, Cerrojo: via})
		p.reubicar(siguiente)
		utils.InfoLog.Debug("Donación propagada", "de", actual.TID, "a", siguiente.TID, "cerrojo", via.Nombre, "valor", valor)
		actual = siguiente
	}
}

// heredarDonaciones hace que el nuevo poseedor de c reciba la prioridad de
// los que siguen esperando c. Como la prioridad efectiva de cada uno ya
// incluye lo que le donaron a él, los aumentos transitivos se conservan a
// cualquier profundidad.
func (p *Planificador) heredarDonaciones(nuevo *Hilo, c *Cerrojo) {
	for _, esperando := range c.espera {
		nuevo.agregarDonacion(Donacion{Prioridad: esperando.efectiva(), Cerrojo: c})
	}
	if len(c.espera) > 0 {
		utils.InfoLog.Debug("Donaciones heredadas", "tid", nuevo.TID, "cerrojo", c.Nombre, "cantidad", len(c.espera), "efectiva", nuevo.efectiva())
	}
}

// recalcularCadena rehace lo que c aporta a su poseedor a partir de quienes
// siguen esperando y repite por la cadena de poseedores, para que una
// espera que desaparece retire también los aumentos que ya había propagado.
func (p *Planificador) recalcularCadena(c *Cerrojo) {
	for saltos := 0; c != nil && c.poseedor != nil && saltos <= len(p.hilos); saltos++ {
		poseedor := c.poseedor
		poseedor.quitarDonaciones(c)
		p.heredarDonaciones(poseedor, c)
		p.reubicar(poseedor)
		c = poseedor.bloqueadoEn
	}
}
