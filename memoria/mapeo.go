package memoria

import (
	"fmt"
	"io"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Mapeador es el subsistema de archivos mapeados en memoria. Vincular llena
// el marco con el contenido de la página en el archivo fd y devuelve el id del mapeo.
type Mapeador interface {
	Vincular(fd int, entrada *EntradaSPT, marco []byte) (int, error)
}

// MapeoArchivos es un Mapeador sobre una tabla de descriptores en memoria
type MapeoArchivos struct {
	mu        sync.Mutex
	archivos  map[int]io.ReaderAt
	proximoID int
}

func NuevoMapeoArchivos() *MapeoArchivos {
	return &MapeoArchivos{archivos: make(map[int]io.ReaderAt), proximoID: 1}
}

// Registrar asocia el descriptor fd a un archivo
func (a *MapeoArchivos) Registrar(fd int, archivo io.ReaderAt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archivos[fd] = archivo
}

func (a *MapeoArchivos) Vincular(fd int, entrada *EntradaSPT, marco []byte) (int, error) {
	a.mu.Lock()
	archivo, existe := a.archivos[fd]
	a.mu.Unlock()
	if !existe {
		return 0, fmt.Errorf("descriptor %d no registrado", fd)
	}

	leer := entrada.Carga.BytesLeer
	if leer > len(marco) {
		return 0, fmt.Errorf("mapeo de %d bytes no entra en un marco de %d", leer, len(marco))
	}
	if leer > 0 {
		n, err := archivo.ReadAt(marco[:leer], entrada.Carga.Offset)
		if n < leer {
			return 0, fmt.Errorf("lectura corta del descriptor %d (%d de %d bytes): %w", fd, n, leer, err)
		}
	}
	clear(marco[leer:])

	a.mu.Lock()
	id := a.proximoID
	a.proximoID++
	a.mu.Unlock()

	utils.InfoLog.Debug("Mapeo vinculado", "fd", fd, "pagina", entrada.Pagina, "map_id", id)
	return id, nil
}
