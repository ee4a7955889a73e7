package memoria

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

var (
	ErrSwapAgotado  = errors.New("no quedan slots libres en SWAP")
	ErrSlotInvalido = errors.New("slot de SWAP inválido o libre")
)

// AreaSwap es el dispositivo de swap: un archivo dividido en slots de una página
type AreaSwap struct {
	mu        sync.Mutex
	archivo   *os.File
	ocupados  []bool
	tamPagina int
	retardo   int
}

// NuevaAreaSwap crea (o trunca) el archivo de swap con capacidad para slots páginas
func NuevaAreaSwap(ruta string, slots int, tamPagina int, retardoMs int) (*AreaSwap, error) {
	utils.InfoLog.Info("Configurando área de swap", "archivo", ruta, "slots", slots)

	dir := filepath.Dir(ruta)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error al crear directorio para swap: %w", err)
	}

	archivo, err := os.Create(ruta)
	if err != nil {
		return nil, fmt.Errorf("error al crear archivo SWAP: %w", err)
	}
	if err := archivo.Truncate(int64(slots) * int64(tamPagina)); err != nil {
		archivo.Close()
		return nil, fmt.Errorf("error al dimensionar archivo SWAP: %w", err)
	}

	utils.InfoLog.Info("Área de SWAP inicializada correctamente", "archivo", ruta)
	return &AreaSwap{
		archivo:   archivo,
		ocupados:  make([]bool, slots),
		tamPagina: tamPagina,
		retardo:   retardoMs,
	}, nil
}

// Escribir guarda una página en un slot libre y devuelve su índice
func (s *AreaSwap) Escribir(contenido []byte) (int, error) {
	if len(contenido) != s.tamPagina {
		return 0, fmt.Errorf("contenido de %d bytes, se esperaba una página de %d", len(contenido), s.tamPagina)
	}

	utils.AplicarRetardo("swap", s.retardo)

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := -1
	for i, ocupado := range s.ocupados {
		if !ocupado {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, ErrSwapAgotado
	}

	if _, err := s.archivo.WriteAt(contenido, s.offset(slot)); err != nil {
		return 0, fmt.Errorf("error al escribir en SWAP: %w", err)
	}
	s.ocupados[slot] = true

	utils.InfoLog.Debug("Página escrita en SWAP", "slot", slot, "offset", s.offset(slot))
	return slot, nil
}

// Leer devuelve una copia del contenido del slot
func (s *AreaSwap) Leer(slot int) ([]byte, error) {
	datos := make([]byte, s.tamPagina)
	if err := s.LeerEn(slot, datos); err != nil {
		return nil, err
	}
	return datos, nil
}

// LeerEn copia el contenido del slot en destino, que debe medir una página
func (s *AreaSwap) LeerEn(slot int, destino []byte) error {
	if len(destino) != s.tamPagina {
		return fmt.Errorf("destino de %d bytes, se esperaba una página de %d", len(destino), s.tamPagina)
	}

	utils.AplicarRetardo("swap", s.retardo)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enUso(slot) {
		return fmt.Errorf("%w: %d", ErrSlotInvalido, slot)
	}
	if _, err := s.archivo.ReadAt(destino, s.offset(slot)); err != nil {
		return fmt.Errorf("error al leer de SWAP: %w", err)
	}
	return nil
}

// Liberar devuelve el slot al área libre
func (s *AreaSwap) Liberar(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enUso(slot) {
		return fmt.Errorf("%w: %d", ErrSlotInvalido, slot)
	}
	s.ocupados[slot] = false
	return nil
}

// SlotsLibres cuenta los slots disponibles
func (s *AreaSwap) SlotsLibres() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	libres := 0
	for _, ocupado := range s.ocupados {
		if !ocupado {
			libres++
		}
	}
	return libres
}

// Cerrar cierra el archivo de swap
func (s *AreaSwap) Cerrar() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archivo.Close()
}

func (s *AreaSwap) enUso(slot int) bool {
	return slot >= 0 && slot < len(s.ocupados) && s.ocupados[slot]
}

func (s *AreaSwap) offset(slot int) int64 {
	return int64(slot) * int64(s.tamPagina)
}
