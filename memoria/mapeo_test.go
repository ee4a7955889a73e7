package memoria

import (
	"bytes"
	"testing"
)

const baseMapeo = 0x20000000

func TestMapeoPendienteSeVinculaAlFallar(t *testing.T) {
	m, plan, _ := nuevaMemoria(t, 4, 4)
	proc := nuevoProceso(t, m, plan, 1)

	datos := patron(5, 6000)
	m.mapeador.(*MapeoArchivos).Registrar(3, bytes.NewReader(datos))

	if err := m.RegistrarMapeo(proc, 3, baseMapeo, 0, len(datos), true); err != nil {
		t.Fatalf("RegistrarMapeo: %v", err)
	}
	for _, entrada := range proc.SPT.Entradas() {
		if entrada.Estado != MmapPendiente || entrada.FD != 3 {
			t.Fatalf("entrada = %+v", entrada)
		}
	}

	// Cruza el límite entre las dos páginas del mapeo
	contenido, err := m.Leer(proc, baseMapeo+4000, basePila, 200)
	if err != nil {
		t.Fatalf("Leer: %v", err)
	}
	if !bytes.Equal(contenido, datos[4000:4200]) {
		t.Fatal("el contenido mapeado no coincide con el archivo")
	}

	primera := proc.SPT.Buscar(baseMapeo)
	segunda := proc.SPT.Buscar(baseMapeo + tamPagina)
	if primera.Estado != Cargada || segunda.Estado != Cargada {
		t.Fatalf("estados = %s, %s", primera.Estado, segunda.Estado)
	}
	if primera.MapID == 0 || primera.MapID == segunda.MapID {
		t.Fatalf("ids de mapeo = %d, %d", primera.MapID, segunda.MapID)
	}

	cola, err := m.Leer(proc, baseMapeo+tamPagina, basePila, tamPagina)
	if err != nil {
		t.Fatalf("Leer: %v", err)
	}
	restante := len(datos) - tamPagina
	if !bytes.Equal(cola[:restante], datos[tamPagina:]) || !bytes.Equal(cola[restante:], make([]byte, tamPagina-restante)) {
		t.Fatal("la última página del mapeo no termina en cero")
	}

	metricas, _ := m.Metricas(1)
	if metricas.MapeosVinculados != 2 {
		t.Fatalf("mapeos vinculados = %d", metricas.MapeosVinculados)
	}
	verificarInvariantes(t, proc)
}

func TestMapeoDescriptorDesconocido(t *testing.T) {
	m, plan, terminados := nuevaMemoria(t, 4, 4)
	proc := nuevoProceso(t, m, plan, 1)

	if err := m.RegistrarMapeo(proc, 9, baseMapeo, 0, 100, false); err != nil {
		t.Fatalf("RegistrarMapeo: %v", err)
	}
	if _, err := m.Leer(proc, baseMapeo, basePila, 1); err == nil {
		t.Fatal("se esperaba error con un descriptor no registrado")
	}
	if len(*terminados) != 1 || m.marcos.Ocupados() != 0 {
		t.Fatal("el proceso no fue terminado con sus recursos")
	}
}

func TestRegistrarMapeoValida(t *testing.T) {
	m, plan, _ := nuevaMemoria(t, 4, 4)
	proc := nuevoProceso(t, m, plan, 1)

	if err := m.RegistrarMapeo(proc, 3, baseMapeo+10, 0, 100, false); err == nil {
		t.Fatal("se aceptó un mapeo no alineado")
	}
	if err := m.RegistrarMapeo(proc, 3, baseMapeo, 0, 0, false); err == nil {
		t.Fatal("se aceptó un mapeo vacío")
	}
	if err := m.RegistrarMapeo(proc, 3, 0xBFFFF000, 0, 2*tamPagina, false); err == nil {
		t.Fatal("se aceptó un mapeo fuera del espacio de usuario")
	}
}
