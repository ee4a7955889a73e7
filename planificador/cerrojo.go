package planificador

import "sort"

// Cerrojo es un lock con poseedor y cola de espera ordenada por prioridad efectiva
type Cerrojo struct {
	Nombre   string
	poseedor *Hilo
	espera   []*Hilo
}

// ordenarCola deja primero al de mayor prioridad efectiva; entre iguales, el que llegó antes
func ordenarCola(cola []*Hilo) {
	sort.Slice(cola, func(i, j int) bool {
		pi, pj := cola[i].efectiva(), cola[j].efectiva()
		if pi != pj {
			return pi > pj
		}
		return cola[i].orden < cola[j].orden
	})
}

func sacarPrimero(cola *[]*Hilo) *Hilo {
	if len(*cola) == 0 {
		return nil
	}
	h := (*cola)[0]
	*cola = (*cola)[1:]
	return h
}

func quitarDeCola(cola *[]*Hilo, h *Hilo) bool {
	for i, otro := range *cola {
		if otro == h {
			*cola = append((*cola)[:i], (*cola)[i+1:]...)
			return true
		}
	}
	return false
}
