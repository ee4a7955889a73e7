package memoria

import (
	"errors"
	"fmt"
	"io"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Acceso son los bits de error que acompañan a un fallo de página
type Acceso uint8

const (
	AccesoNoPresente Acceso = 1 << iota // 0: violación de permisos sobre página presente
	AccesoEscritura                     // 0: lectura
	AccesoUsuario                       // 0: modo kernel
)

var (
	ErrAccesoInvalido   = errors.New("acceso inválido a memoria")
	ErrProcesoTerminado = errors.New("proceso terminado")
)

// ManejarFallo resuelve un fallo de página de proc en dirFallo. sp es el
// stack pointer al momento del fallo. Si el fallo no se puede resolver el
// proceso se termina y se devuelve el error.
func (m *Memoria) ManejarFallo(proc *Proceso, dirFallo uint32, sp uint32, acceso Acceso) error {
	if err := m.entrar(proc); err != nil {
		return err
	}
	defer m.salir(proc)
	return m.manejarFallo(proc, dirFallo, sp, acceso)
}

// manejarFallo corre con la solicitud abierta
func (m *Memoria) manejarFallo(proc *Proceso, dirFallo uint32, sp uint32, acceso Acceso) error {
	m.metricas.contar(proc.PID, func(mp *MetricasProceso) { mp.FallosPagina++ })
	utils.InfoLog.Debug("Fallo de página", "pid", proc.PID, "direccion", fmt.Sprintf("0x%08x", dirFallo),
		"sp", fmt.Sprintf("0x%08x", sp), "presente", acceso&AccesoNoPresente == 0, "escritura", acceso&AccesoEscritura != 0)

	err := m.resolverFallo(proc, dirFallo, sp, acceso)
	if err == nil || errors.Is(err, ErrProcesoTerminado) {
		return err
	}

	utils.ErrorLog.Error("Fallo de página no resuelto", "pid", proc.PID, "direccion", fmt.Sprintf("0x%08x", dirFallo), "error", err)
	m.terminarProceso(proc)
	return err
}

func (m *Memoria) resolverFallo(proc *Proceso, dirFallo uint32, sp uint32, acceso Acceso) error {
	if proc.terminado {
		return ErrProcesoTerminado
	}

	pagina := m.config.RedondearPagina(dirFallo)
	escritura := acceso&AccesoEscritura != 0

	if acceso&AccesoNoPresente == 0 {
		return fmt.Errorf("%w: violación de permisos en 0x%08x", ErrAccesoInvalido, dirFallo)
	}
	if dirFallo >= m.config.TopeUsuario {
		return fmt.Errorf("%w: dirección de kernel 0x%08x", ErrAccesoInvalido, dirFallo)
	}

	entrada := proc.SPT.Buscar(pagina)
	if entrada == nil {
		if !m.esCrecimientoPila(proc, dirFallo, sp) {
			return fmt.Errorf("%w: 0x%08x sin entrada (sp 0x%08x)", ErrAccesoInvalido, dirFallo, sp)
		}
		return m.crecerPila(proc, pagina)
	}

	if escritura && !entrada.Carga.Escribible {
		return fmt.Errorf("%w: escritura en página de sólo lectura 0x%08x", ErrAccesoInvalido, pagina)
	}

	switch entrada.Estado {
	case NoMapeada:
		return m.cargarPerezosa(proc, entrada)
	case EnSwap:
		return m.traerDeSwap(proc, entrada)
	case MmapPendiente:
		return m.remapear(proc, entrada)
	default:
		// Ya residente
		return nil
	}
}

// cargarPerezosa trae la página desde su archivo de respaldo
func (m *Memoria) cargarPerezosa(proc *Proceso, entrada *EntradaSPT) error {
	marco, err := m.marcos.Asignar(proc, entrada.Pagina)
	if err != nil {
		return err
	}
	datos := m.marcos.Datos(marco)

	carga := entrada.Carga
	if carga.BytesLeer > 0 {
		if err := m.leerArchivo(proc, carga, datos[:carga.BytesLeer]); err != nil {
			m.marcos.Liberar(marco)
			return fmt.Errorf("error en carga perezosa de 0x%08x: %w", entrada.Pagina, err)
		}
	}
	clear(datos[carga.BytesLeer:])

	if err := m.instalar(proc, entrada, marco); err != nil {
		return err
	}
	m.metricas.contar(proc.PID, func(mp *MetricasProceso) { mp.CargasPerezosas++ })
	utils.InfoLog.Debug("Carga perezosa", "pid", proc.PID, "pagina", entrada.Pagina, "marco", marco.ID, "bytes", carga.BytesLeer)
	return nil
}

// leerArchivo toma el cerrojo de archivos salvo que el hilo ya lo tenga,
// como pasa cuando el fallo ocurre dentro de una operación de archivo
func (m *Memoria) leerArchivo(proc *Proceso, carga InfoCarga, destino []byte) error {
	if carga.Archivo == nil {
		return errors.New("página sin archivo de respaldo")
	}
	if !m.plan.EsPoseedor(proc.Hilo, m.cerrojoArchivos) {
		if err := m.plan.Adquirir(proc.Hilo, m.cerrojoArchivos); err != nil {
			return err
		}
		defer m.plan.Liberar(proc.Hilo, m.cerrojoArchivos)
	}

	if _, err := carga.Archivo.Seek(carga.Offset, io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(carga.Archivo, destino)
	return err
}

// traerDeSwap copia el slot al marco y libera el slot una vez instalada la página
func (m *Memoria) traerDeSwap(proc *Proceso, entrada *EntradaSPT) error {
	marco, err := m.marcos.Asignar(proc, entrada.Pagina)
	if err != nil {
		return err
	}

	slot := entrada.SlotSwap
	if err := m.swap.LeerEn(slot, m.marcos.Datos(marco)); err != nil {
		m.marcos.Liberar(marco)
		return fmt.Errorf("error al leer la página 0x%08x de swap: %w", entrada.Pagina, err)
	}
	if err := m.instalar(proc, entrada, marco); err != nil {
		return err
	}

	entrada.SlotSwap = sinSlot
	if err := m.swap.Liberar(slot); err != nil {
		utils.ErrorLog.Error("Error liberando slot de swap", "pid", proc.PID, "slot", slot, "error", err)
	}
	m.metricas.contar(proc.PID, func(mp *MetricasProceso) { mp.SubidasMemoria++ })

	// Log obligatorio
	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Página %d recuperada de SWAP al marco %d", proc.PID, entrada.Pagina, marco.ID))
	return nil
}

// remapear entrega un marco al subsistema de mapeos para el descriptor de la entrada
func (m *Memoria) remapear(proc *Proceso, entrada *EntradaSPT) error {
	marco, err := m.marcos.Asignar(proc, entrada.Pagina)
	if err != nil {
		return err
	}

	id, err := m.mapeador.Vincular(entrada.FD, entrada, m.marcos.Datos(marco))
	if err != nil {
		m.marcos.Liberar(marco)
		return fmt.Errorf("error al vincular el mapeo de fd %d: %w", entrada.FD, err)
	}
	entrada.MapID = id

	if err := m.instalar(proc, entrada, marco); err != nil {
		return err
	}
	m.metricas.contar(proc.PID, func(mp *MetricasProceso) { mp.MapeosVinculados++ })
	return nil
}

// esCrecimientoPila decide si un fallo sin entrada es un acceso a la pila
func (m *Memoria) esCrecimientoPila(proc *Proceso, dir uint32, sp uint32) bool {
	if int64(dir) < int64(sp)-int64(m.config.DistanciaPush) {
		return false
	}
	if dir >= m.config.TopeUsuario {
		return false
	}
	if proc.paginasPila >= m.config.MaxPaginasPila {
		utils.InfoLog.Info("Límite de pila alcanzado", "pid", proc.PID, "paginas", proc.paginasPila)
		return false
	}
	return true
}

// crecerPila agrega una página de pila en cero, escribible y ya residente
func (m *Memoria) crecerPila(proc *Proceso, pagina uint32) error {
	marco, err := m.marcos.Asignar(proc, pagina)
	if err != nil {
		return err
	}

	entrada := &EntradaSPT{
		Pagina:   pagina,
		Estado:   NoMapeada,
		Carga:    InfoCarga{BytesCero: m.config.TamPagina, Escribible: true},
		SlotSwap: sinSlot,
		Accedido: true,
		Sucio:    true,
	}
	if err := proc.SPT.Insertar(entrada); err != nil {
		m.marcos.Liberar(marco)
		return err
	}
	if err := m.instalar(proc, entrada, marco); err != nil {
		proc.SPT.Quitar(pagina)
		return err
	}
	proc.Espacio.MarcarAcceso(pagina, true)
	proc.paginasPila++

	m.metricas.contar(proc.PID, func(mp *MetricasProceso) { mp.CrecimientosPila++ })
	utils.InfoLog.Info("Crecimiento de pila", "pid", proc.PID, "pagina", pagina, "paginas_pila", proc.paginasPila)
	return nil
}

// instalar mapea el marco en el directorio del proceso, deja la entrada
// LOADED y habilita el marco para desalojo
func (m *Memoria) instalar(proc *Proceso, entrada *EntradaSPT, marco *EntradaMarco) error {
	if !proc.Espacio.Instalar(entrada.Pagina, marco.ID, entrada.Carga.Escribible) {
		m.marcos.Liberar(marco)
		return fmt.Errorf("no se pudo instalar la página 0x%08x en el marco %d", entrada.Pagina, marco.ID)
	}
	entrada.Marco = marco
	entrada.Estado = Cargada
	m.marcos.Desfijar(marco)
	return nil
}
