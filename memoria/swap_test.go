package memoria

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func nuevaAreaSwap(t *testing.T, slots int) *AreaSwap {
	t.Helper()
	swap, err := NuevaAreaSwap(filepath.Join(t.TempDir(), "swap", "swapfile.bin"), slots, 4096, 0)
	if err != nil {
		t.Fatalf("NuevaAreaSwap: %v", err)
	}
	t.Cleanup(func() { swap.Cerrar() })
	return swap
}

func TestSwapIdaYVuelta(t *testing.T) {
	swap := nuevaAreaSwap(t, 4)

	pagina := bytes.Repeat([]byte{0xCA, 0xFE}, 2048)
	slot, err := swap.Escribir(pagina)
	if err != nil {
		t.Fatalf("Escribir: %v", err)
	}
	if swap.SlotsLibres() != 3 {
		t.Fatalf("slots libres = %d, se esperaban 3", swap.SlotsLibres())
	}

	leida, err := swap.Leer(slot)
	if err != nil {
		t.Fatalf("Leer: %v", err)
	}
	if !bytes.Equal(leida, pagina) {
		t.Fatal("el contenido leído no coincide con el escrito")
	}

	if err := swap.Liberar(slot); err != nil {
		t.Fatalf("Liberar: %v", err)
	}
	if swap.SlotsLibres() != 4 {
		t.Fatalf("slots libres = %d, se esperaban 4", swap.SlotsLibres())
	}
	if _, err := swap.Leer(slot); !errors.Is(err, ErrSlotInvalido) {
		t.Fatalf("leer un slot liberado devolvió %v", err)
	}
	if err := swap.Liberar(slot); !errors.Is(err, ErrSlotInvalido) {
		t.Fatalf("liberar dos veces devolvió %v", err)
	}
}

func TestSwapAgotado(t *testing.T) {
	swap := nuevaAreaSwap(t, 2)
	pagina := make([]byte, 4096)

	for i := 0; i < 2; i++ {
		if _, err := swap.Escribir(pagina); err != nil {
			t.Fatalf("Escribir %d: %v", i, err)
		}
	}
	if _, err := swap.Escribir(pagina); !errors.Is(err, ErrSwapAgotado) {
		t.Fatalf("se esperaba ErrSwapAgotado, se obtuvo %v", err)
	}
}

func TestSwapRechazaTamañoIncorrecto(t *testing.T) {
	swap := nuevaAreaSwap(t, 1)
	if _, err := swap.Escribir(make([]byte, 100)); err == nil {
		t.Fatal("se esperaba error al escribir menos de una página")
	}
	if swap.SlotsLibres() != 1 {
		t.Fatal("una escritura fallida no debe ocupar slots")
	}
}
