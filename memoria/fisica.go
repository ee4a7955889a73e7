package memoria

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// MemoriaFisica es el pool de marcos, respaldado por un mapeo anónimo
type MemoriaFisica struct {
	mu        sync.Mutex
	datos     []byte
	libres    []bool // true = libre, false = ocupado
	tamPagina int
}

// NuevaMemoriaFisica reserva marcos*tamPagina bytes con mmap
func NuevaMemoriaFisica(marcos int, tamPagina int) (*MemoriaFisica, error) {
	tamanio := marcos * tamPagina
	datos, err := unix.Mmap(-1, 0, tamanio, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("error reservando memoria física de %d bytes: %w", tamanio, err)
	}

	libres := make([]bool, marcos)
	for i := range libres {
		libres[i] = true
	}

	utils.InfoLog.Info("Memoria física inicializada", "total_marcos", marcos, "tamaño_bytes", tamanio)
	return &MemoriaFisica{
		datos:     datos,
		libres:    libres,
		tamPagina: tamPagina,
	}, nil
}

// tomarLibre marca como ocupado el primer marco libre
func (f *MemoriaFisica) tomarLibre() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, libre := range f.libres {
		if libre {
			f.libres[i] = false
			return i, true
		}
	}
	return 0, false
}

// devolver limpia el marco y lo vuelve al pool
func (f *MemoriaFisica) devolver(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	clear(f.Marco(id))
	f.libres[id] = true
}

// Marco devuelve los bytes del marco id
func (f *MemoriaFisica) Marco(id int) []byte {
	inicio := id * f.tamPagina
	return f.datos[inicio : inicio+f.tamPagina : inicio+f.tamPagina]
}

// CantidadMarcos es el total de marcos del pool
func (f *MemoriaFisica) CantidadMarcos() int {
	return len(f.libres)
}

// Libres cuenta los marcos libres
func (f *MemoriaFisica) Libres() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	cantidad := 0
	for _, libre := range f.libres {
		if libre {
			cantidad++
		}
	}
	return cantidad
}

// Cerrar devuelve la memoria al sistema
func (f *MemoriaFisica) Cerrar() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.datos == nil {
		return nil
	}
	err := unix.Munmap(f.datos)
	f.datos = nil
	return err
}
