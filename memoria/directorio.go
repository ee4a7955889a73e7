package memoria

import (
	"sort"
	"sync"
)

// Bits de una entrada de tabla de páginas x86
const (
	PTEPresente  uint32 = 1 << 0
	PTEEscritura uint32 = 1 << 1
	PTEUsuario   uint32 = 1 << 2
	PTEAccedido  uint32 = 1 << 5
	PTESucio     uint32 = 1 << 6

	desplazamientoMarco = 12
)

// EspacioDirecciones es el instalador de mapeos virtual -> marco de un proceso
type EspacioDirecciones interface {
	Instalar(pagina uint32, marco int, escribible bool) bool
	Quitar(pagina uint32)
	Traducir(pagina uint32) (marco int, escribible bool, presente bool)
	MarcarAcceso(pagina uint32, escritura bool)
	Accedido(pagina uint32) bool
	LimpiarAccedido(pagina uint32)
	Sucio(pagina uint32) bool
}

// Directorio es un directorio de páginas por software: una PTE por página virtual
type Directorio struct {
	mu       sync.Mutex
	entradas map[uint32]uint32
}

func NuevoDirectorio() *Directorio {
	return &Directorio{entradas: make(map[uint32]uint32)}
}

// Instalar mapea pagina al marco. Falla si la página ya estaba mapeada.
func (d *Directorio) Instalar(pagina uint32, marco int, escribible bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pte, existe := d.entradas[pagina]; existe && pte&PTEPresente != 0 {
		return false
	}
	pte := uint32(marco)<<desplazamientoMarco | PTEPresente | PTEUsuario
	if escribible {
		pte |= PTEEscritura
	}
	d.entradas[pagina] = pte
	return true
}

func (d *Directorio) Quitar(pagina uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entradas, pagina)
}

func (d *Directorio) Traducir(pagina uint32) (int, bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pte, existe := d.entradas[pagina]
	if !existe || pte&PTEPresente == 0 {
		return 0, false, false
	}
	return int(pte >> desplazamientoMarco), pte&PTEEscritura != 0, true
}

func (d *Directorio) MarcarAcceso(pagina uint32, escritura bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pte, existe := d.entradas[pagina]
	if !existe {
		return
	}
	pte |= PTEAccedido
	if escritura {
		pte |= PTESucio
	}
	d.entradas[pagina] = pte
}

func (d *Directorio) Accedido(pagina uint32) bool {
	return d.bit(pagina, PTEAccedido)
}

func (d *Directorio) LimpiarAccedido(pagina uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pte, existe := d.entradas[pagina]; existe {
		d.entradas[pagina] = pte &^ PTEAccedido
	}
}

func (d *Directorio) Sucio(pagina uint32) bool {
	return d.bit(pagina, PTESucio)
}

// Paginas devuelve las páginas mapeadas en orden ascendente
func (d *Directorio) Paginas() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	paginas := make([]uint32, 0, len(d.entradas))
	for pagina := range d.entradas {
		paginas = append(paginas, pagina)
	}
	sort.Slice(paginas, func(i, j int) bool { return paginas[i] < paginas[j] })
	return paginas
}

func (d *Directorio) bit(pagina uint32, bit uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entradas[pagina]&bit != 0
}
