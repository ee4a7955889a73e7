package memoria

import (
	"fmt"
)

// Leer copia n bytes de la memoria de usuario de proc desde dir. Las
// páginas ausentes se resuelven con el manejador de fallos.
func (m *Memoria) Leer(proc *Proceso, dir uint32, sp uint32, n int) ([]byte, error) {
	resultado := make([]byte, 0, n)
	err := m.recorrer(proc, dir, sp, n, false, func(datos []byte, _ int) {
		resultado = append(resultado, datos...)
	})
	if err != nil {
		return nil, err
	}
	m.metricas.contar(proc.PID, func(mp *MetricasProceso) { mp.LecturasMemoria++ })
	return resultado, nil
}

// Escribir copia datos a la memoria de usuario de proc a partir de dir
func (m *Memoria) Escribir(proc *Proceso, dir uint32, sp uint32, datos []byte) error {
	err := m.recorrer(proc, dir, sp, len(datos), true, func(destino []byte, hecho int) {
		copy(destino, datos[hecho:])
	})
	if err != nil {
		return err
	}
	m.metricas.contar(proc.PID, func(mp *MetricasProceso) { mp.EscriturasMemoria++ })
	return nil
}

// recorrer traduce [dir, dir+n) página por página como lo haría la MMU y
// llama a usar con el tramo del marco y los bytes ya procesados
func (m *Memoria) recorrer(proc *Proceso, dir uint32, sp uint32, n int, escritura bool, usar func(tramo []byte, hecho int)) error {
	if n < 0 {
		return fmt.Errorf("tamaño inválido: %d", n)
	}

	if err := m.entrar(proc); err != nil {
		return err
	}
	defer m.salir(proc)

	acceso := AccesoUsuario
	if escritura {
		acceso |= AccesoEscritura
	}

	tam := uint32(m.config.TamPagina)
	fallos := 0
	for hecho := 0; hecho < n; {
		actual := uint64(dir) + uint64(hecho)
		if actual > uint64(^uint32(0)) {
			return m.manejarFallo(proc, ^uint32(0), sp, acceso|AccesoNoPresente)
		}
		direccion := uint32(actual)
		pagina := m.config.RedondearPagina(direccion)
		desplazamiento := direccion - pagina
		largo := min(n-hecho, int(tam-desplazamiento))

		marco, escribible, presente := proc.Espacio.Traducir(pagina)
		if !presente {
			if fallos > 0 {
				return fmt.Errorf("la página 0x%08x sigue ausente luego del fallo", pagina)
			}
			if err := m.manejarFallo(proc, direccion, sp, acceso|AccesoNoPresente); err != nil {
				return err
			}
			fallos++
			continue
		}
		if escritura && !escribible {
			return m.manejarFallo(proc, direccion, sp, acceso)
		}

		proc.Espacio.MarcarAcceso(pagina, escritura)
		usar(m.fisica.Marco(marco)[desplazamiento:int(desplazamiento)+largo], hecho)
		hecho += largo
		fallos = 0
	}
	return nil
}
