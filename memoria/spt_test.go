package memoria

import "testing"

func TestEntradaVerificar(t *testing.T) {
	marco := &EntradaMarco{ID: 3}

	tests := []struct {
		nombre  string
		entrada EntradaSPT
		valida  bool
	}{
		{"sin mapear", EntradaSPT{Estado: NoMapeada, SlotSwap: sinSlot}, true},
		{"cargada con marco", EntradaSPT{Estado: Cargada, Marco: marco, SlotSwap: sinSlot}, true},
		{"en swap con slot", EntradaSPT{Estado: EnSwap, SlotSwap: 2}, true},
		{"mmap pendiente", EntradaSPT{Estado: MmapPendiente, SlotSwap: sinSlot}, true},
		{"cargada sin marco", EntradaSPT{Estado: Cargada, SlotSwap: sinSlot}, false},
		{"en swap sin slot", EntradaSPT{Estado: EnSwap, SlotSwap: sinSlot}, false},
		{"marco y slot", EntradaSPT{Estado: Cargada, Marco: marco, SlotSwap: 1}, false},
		{"sin mapear con slot", EntradaSPT{Estado: NoMapeada, SlotSwap: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.nombre, func(t *testing.T) {
			err := tt.entrada.Verificar()
			if tt.valida && err != nil {
				t.Fatalf("se esperaba válida: %v", err)
			}
			if !tt.valida && err == nil {
				t.Fatal("se esperaba error")
			}
		})
	}
}

func TestTablaSuplementaria(t *testing.T) {
	spt := NuevaTablaSuplementaria()

	for _, pagina := range []uint32{0x3000, 0x1000, 0x2000} {
		if err := spt.Insertar(&EntradaSPT{Pagina: pagina, SlotSwap: sinSlot}); err != nil {
			t.Fatalf("Insertar 0x%x: %v", pagina, err)
		}
	}
	if err := spt.Insertar(&EntradaSPT{Pagina: 0x2000, SlotSwap: sinSlot}); err == nil {
		t.Fatal("se insertó dos veces la misma página")
	}

	entradas := spt.Entradas()
	if len(entradas) != 3 || entradas[0].Pagina != 0x1000 || entradas[2].Pagina != 0x3000 {
		t.Fatalf("entradas desordenadas: %v", entradas)
	}

	spt.Quitar(0x1000)
	if spt.Buscar(0x1000) != nil || spt.Cantidad() != 2 {
		t.Fatal("Quitar no borró la entrada")
	}
}
