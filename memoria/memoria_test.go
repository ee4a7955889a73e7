package memoria

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/planificador"
)

const (
	tamPagina  = 4096
	baseCodigo = 0x08048000
	basePila   = 0xBFFFF000
)

type terminacion struct {
	pid    int
	estado int
}

// nuevaMemoria arma una memoria chica con swap en un directorio temporal
func nuevaMemoria(t *testing.T, marcos, slots int) (*Memoria, *planificador.Planificador, *[]terminacion) {
	t.Helper()

	dir := t.TempDir()
	cfg := ConfigPorDefecto()
	cfg.CantidadMarcos = marcos
	cfg.CantidadSlotsSwap = slots
	cfg.SwapfilePath = filepath.Join(dir, "swap", "swapfile.bin")
	cfg.DumpPath = filepath.Join(dir, "dump")
	cfg.MaxPaginasPila = 4

	plan := planificador.Nuevo(planificador.ModoPrioridades)
	m, err := Nueva(cfg, plan, nil)
	if err != nil {
		t.Fatalf("Nueva: %v", err)
	}
	t.Cleanup(func() { m.Cerrar() })

	terminados := &[]terminacion{}
	m.AlTerminar = func(pid int, estado int) {
		*terminados = append(*terminados, terminacion{pid, estado})
	}
	return m, plan, terminados
}

func nuevoProceso(t *testing.T, m *Memoria, plan *planificador.Planificador, pid int) *Proceso {
	t.Helper()
	hilo := plan.CrearHilo(fmt.Sprintf("proc-%d", pid), planificador.PrioridadPorDefecto)
	proc, err := m.CrearProceso(pid, hilo)
	if err != nil {
		t.Fatalf("CrearProceso: %v", err)
	}
	return proc
}

// verificarInvariantes controla cada entrada de la tabla suplementaria
func verificarInvariantes(t *testing.T, proc *Proceso) {
	t.Helper()
	for _, entrada := range proc.SPT.Entradas() {
		if err := entrada.Verificar(); err != nil {
			t.Fatalf("PID %d: %v", proc.PID, err)
		}
		_, _, presente := proc.Espacio.Traducir(entrada.Pagina)
		if presente != (entrada.Estado == Cargada) {
			t.Fatalf("PID %d: página 0x%08x %s con presente=%v", proc.PID, entrada.Pagina, entrada.Estado, presente)
		}
	}
}

func patron(semilla byte, n int) []byte {
	datos := make([]byte, n)
	for i := range datos {
		datos[i] = semilla + byte(i%251)
	}
	return datos
}

func TestCrearProcesoDuplicado(t *testing.T) {
	m, plan, _ := nuevaMemoria(t, 4, 4)
	nuevoProceso(t, m, plan, 1)

	if _, err := m.CrearProceso(1, plan.CrearHilo("otro", 31)); err == nil {
		t.Fatal("se creó dos veces el PID 1")
	}
	if _, err := m.CrearProceso(2, nil); err == nil {
		t.Fatal("se creó un proceso sin hilo")
	}
}

func TestCrearProcesoRechazaPIDNegativo(t *testing.T) {
	m, plan, _ := nuevaMemoria(t, 4, 4)

	if _, err := m.CrearProceso(-3, plan.CrearHilo("negativo", 31)); err == nil {
		t.Fatal("se creó el PID -3")
	}
	if m.Proceso(-3) != nil {
		t.Fatal("el PID -3 quedó registrado")
	}

	proc := nuevoProceso(t, m, plan, 3)
	if err := m.Escribir(proc, basePila-4, basePila, []byte{1}); err != nil {
		t.Fatalf("Escribir: %v", err)
	}
	if err := m.DibujarMapaMarcos(filepath.Join(t.TempDir(), "marcos.png")); err != nil {
		t.Fatalf("DibujarMapaMarcos: %v", err)
	}
}

func TestFinalizarProcesoLiberaRecursos(t *testing.T) {
	m, plan, terminados := nuevaMemoria(t, 2, 8)
	proc := nuevoProceso(t, m, plan, 1)

	if err := m.CargarSegmento(proc, nil, 0, 0x10000000, 0, 3*tamPagina, true); err != nil {
		t.Fatalf("CargarSegmento: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := m.Escribir(proc, 0x10000000+uint32(i*tamPagina), basePila, patron(byte(i), 64)); err != nil {
			t.Fatalf("Escribir página %d: %v", i, err)
		}
	}
	if m.SlotsSwapLibres() == 8 {
		t.Fatal("con 2 marcos y 3 páginas debería haber algo en swap")
	}

	if err := m.FinalizarProceso(proc, 0); err != nil {
		t.Fatalf("FinalizarProceso: %v", err)
	}

	if m.SlotsSwapLibres() != 8 {
		t.Fatalf("slots libres = %d, se esperaban 8", m.SlotsSwapLibres())
	}
	if m.marcos.Ocupados() != 0 || m.MarcosLibres() != 2 {
		t.Fatalf("marcos ocupados = %d, libres = %d", m.marcos.Ocupados(), m.MarcosLibres())
	}
	if proc.SPT.Cantidad() != 0 || m.Proceso(1) != nil {
		t.Fatal("el proceso sigue registrado")
	}
	if len(*terminados) != 1 || (*terminados)[0] != (terminacion{1, 0}) {
		t.Fatalf("terminaciones = %v", *terminados)
	}

	if err := m.FinalizarProceso(proc, 0); err != nil {
		t.Fatalf("segundo FinalizarProceso: %v", err)
	}
	if len(*terminados) != 1 {
		t.Fatal("finalizar dos veces avisó dos veces")
	}
	if plan.Poseedor(m.cerrojoMovimiento) != nil {
		t.Fatal("el cerrojo de movimiento quedó tomado")
	}
}

func TestMetricasSobrevivenAlProceso(t *testing.T) {
	m, plan, _ := nuevaMemoria(t, 4, 4)
	proc := nuevoProceso(t, m, plan, 7)

	if err := m.ManejarFallo(proc, basePila-4, basePila, AccesoNoPresente|AccesoEscritura|AccesoUsuario); err != nil {
		t.Fatalf("ManejarFallo: %v", err)
	}
	m.FinalizarProceso(proc, 0)

	metricas, existe := m.Metricas(7)
	if !existe {
		t.Fatal("no hay métricas del PID 7")
	}
	if metricas.FallosPagina != 1 || metricas.CrecimientosPila != 1 {
		t.Fatalf("métricas = %+v", metricas)
	}
}

func TestSolicitudesDelMismoProcesoSeSerializan(t *testing.T) {
	m, plan, _ := nuevaMemoria(t, 4, 4)
	proc := nuevoProceso(t, m, plan, 1)

	// Otra solicitud del mismo proceso está en curso
	proc.solicitudes.Lock()
	hecho := make(chan error, 1)
	go func() {
		hecho <- m.Escribir(proc, basePila-4, basePila, []byte("pila"))
	}()

	select {
	case err := <-hecho:
		t.Fatalf("Escribir terminó con otra solicitud en curso (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}
	if proc.SPT.Cantidad() != 0 {
		t.Fatalf("la solicitud en espera modificó la tabla: %d entradas", proc.SPT.Cantidad())
	}
	if plan.Poseedor(m.cerrojoMovimiento) != nil {
		t.Fatal("la solicitud en espera tomó el cerrojo de movimiento")
	}

	proc.solicitudes.Unlock()
	select {
	case err := <-hecho:
		if err != nil {
			t.Fatalf("Escribir: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Escribir nunca terminó")
	}
	if proc.SPT.Cantidad() != 1 {
		t.Fatalf("entradas = %d, se esperaba 1", proc.SPT.Cantidad())
	}
	if plan.Poseedor(m.cerrojoMovimiento) != nil {
		t.Fatal("el cerrojo de movimiento quedó tomado")
	}
}

func TestSolicitudConCerrojoDeMovimientoYaTomado(t *testing.T) {
	m, plan, _ := nuevaMemoria(t, 4, 4)
	proc := nuevoProceso(t, m, plan, 1)

	plan.Adquirir(proc.Hilo, m.cerrojoMovimiento)

	err := m.Escribir(proc, basePila-4, basePila, []byte("pila"))
	if !errors.Is(err, planificador.ErrCerrojoPropio) {
		t.Fatalf("se esperaba ErrCerrojoPropio, se obtuvo %v", err)
	}
	if proc.SPT.Cantidad() != 0 {
		t.Fatal("la solicitud rechazada modificó la tabla")
	}
	if !plan.EsPoseedor(proc.Hilo, m.cerrojoMovimiento) {
		t.Fatal("la solicitud rechazada soltó el cerrojo")
	}
	plan.Liberar(proc.Hilo, m.cerrojoMovimiento)

	if err := m.Escribir(proc, basePila-4, basePila, []byte("pila")); err != nil {
		t.Fatalf("Escribir: %v", err)
	}
}

func TestAccesosConcurrentesDelMismoProceso(t *testing.T) {
	m, plan, _ := nuevaMemoria(t, 2, 8)
	proc := nuevoProceso(t, m, plan, 1)

	const paginas = 6
	if err := m.CargarSegmento(proc, nil, 0, 0x10000000, 0, paginas*tamPagina, true); err != nil {
		t.Fatalf("CargarSegmento: %v", err)
	}

	var wg sync.WaitGroup
	errores := make(chan error, paginas)
	for i := 0; i < paginas; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir := 0x10000000 + uint32(i*tamPagina)
			esperado := patron(byte(i*7), 256)
			if err := m.Escribir(proc, dir, basePila, esperado); err != nil {
				errores <- fmt.Errorf("Escribir página %d: %w", i, err)
				return
			}
			for vuelta := 0; vuelta < 5; vuelta++ {
				leido, err := m.Leer(proc, dir, basePila, len(esperado))
				if err != nil {
					errores <- fmt.Errorf("Leer página %d: %w", i, err)
					return
				}
				if !bytes.Equal(leido, esperado) {
					errores <- fmt.Errorf("la página %d cambió de contenido", i)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errores)
	for err := range errores {
		t.Error(err)
	}

	verificarInvariantes(t, proc)
	if m.marcos.Ocupados() > 2 {
		t.Fatalf("marcos ocupados = %d", m.marcos.Ocupados())
	}
	if plan.Poseedor(m.cerrojoMovimiento) != nil {
		t.Fatal("el cerrojo de movimiento quedó tomado")
	}
}
