package memoria

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// EstadoPagina es la residencia de una página virtual
type EstadoPagina int

const (
	NoMapeada EstadoPagina = iota
	Cargada
	EnSwap
	MmapPendiente
)

func (e EstadoPagina) String() string {
	switch e {
	case NoMapeada:
		return "UNMAPPED"
	case Cargada:
		return "LOADED"
	case EnSwap:
		return "IN_SWAP"
	case MmapPendiente:
		return "MMAP_PENDING"
	default:
		return fmt.Sprintf("EstadoPagina(%d)", int(e))
	}
}

const sinSlot = -1

// InfoCarga es lo necesario para traer la página desde su archivo
type InfoCarga struct {
	Archivo    io.ReadSeeker
	Offset     int64
	BytesLeer  int
	BytesCero  int
	Escribible bool
}

// EntradaSPT describe una página virtual de un proceso. Sus campos se
// modifican sólo con el cerrojo de movimiento tomado.
type EntradaSPT struct {
	Pagina   uint32
	Estado   EstadoPagina
	Carga    InfoCarga
	SlotSwap int
	Marco    *EntradaMarco
	Accedido bool
	Sucio    bool

	// Sólo para páginas de archivos mapeados
	FD    int
	MapID int
}

func (e *EntradaSPT) TieneMarco() bool {
	return e.Marco != nil
}

func (e *EntradaSPT) TieneSlot() bool {
	return e.SlotSwap != sinSlot
}

// Verificar controla que el estado coincida con los recursos que tiene la entrada
func (e *EntradaSPT) Verificar() error {
	if e.TieneMarco() && e.TieneSlot() {
		return fmt.Errorf("página 0x%08x con marco %d y slot %d a la vez", e.Pagina, e.Marco.ID, e.SlotSwap)
	}
	switch e.Estado {
	case Cargada:
		if !e.TieneMarco() {
			return fmt.Errorf("página 0x%08x LOADED sin marco", e.Pagina)
		}
	case EnSwap:
		if !e.TieneSlot() {
			return fmt.Errorf("página 0x%08x IN_SWAP sin slot", e.Pagina)
		}
	default:
		if e.TieneMarco() || e.TieneSlot() {
			return fmt.Errorf("página 0x%08x %s con recursos asignados", e.Pagina, e.Estado)
		}
	}
	return nil
}

// TablaSuplementaria es la tabla de páginas suplementaria de un proceso
type TablaSuplementaria struct {
	mu       sync.Mutex
	entradas map[uint32]*EntradaSPT
}

func NuevaTablaSuplementaria() *TablaSuplementaria {
	return &TablaSuplementaria{entradas: make(map[uint32]*EntradaSPT)}
}

func (t *TablaSuplementaria) Buscar(pagina uint32) *EntradaSPT {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entradas[pagina]
}

// Insertar agrega la entrada; falla si la página ya tenía una
func (t *TablaSuplementaria) Insertar(e *EntradaSPT) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, existe := t.entradas[e.Pagina]; existe {
		return fmt.Errorf("la página 0x%08x ya tiene entrada", e.Pagina)
	}
	t.entradas[e.Pagina] = e
	return nil
}

func (t *TablaSuplementaria) Quitar(pagina uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entradas, pagina)
}

// Entradas devuelve las entradas ordenadas por página
func (t *TablaSuplementaria) Entradas() []*EntradaSPT {
	t.mu.Lock()
	defer t.mu.Unlock()

	entradas := make([]*EntradaSPT, 0, len(t.entradas))
	for _, e := range t.entradas {
		entradas = append(entradas, e)
	}
	sort.Slice(entradas, func(i, j int) bool { return entradas[i].Pagina < entradas[j].Pagina })
	return entradas
}

func (t *TablaSuplementaria) Cantidad() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entradas)
}
