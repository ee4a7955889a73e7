package memoria

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fogleman/gg"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// CrearMemoryDump vuelca las páginas del proceso en orden de dirección a
// DUMP_PATH/<pid>-<timestamp>.dmp. Las páginas en swap se leen del slot y
// las que nunca se cargaron se vuelcan en cero. Devuelve la ruta del archivo.
func (m *Memoria) CrearMemoryDump(pid int) (string, error) {
	proc := m.Proceso(pid)
	if proc == nil {
		return "", fmt.Errorf("el proceso %d no existe", pid)
	}

	if err := m.entrar(proc); err != nil {
		return "", err
	}
	defer m.salir(proc)

	if err := os.MkdirAll(m.config.DumpPath, 0755); err != nil {
		utils.ErrorLog.Error("Error creando directorio dump", "error", err)
		return "", fmt.Errorf("error al crear directorio para dumps: %w", err)
	}

	nombreArchivo := fmt.Sprintf("%d-%s.dmp", pid, time.Now().Format("20060102-150405.000"))
	rutaCompleta := filepath.Join(m.config.DumpPath, nombreArchivo)

	entradas := proc.SPT.Entradas()
	contenido := make([]byte, len(entradas)*m.config.TamPagina)
	for i, entrada := range entradas {
		destino := contenido[i*m.config.TamPagina : (i+1)*m.config.TamPagina]
		switch entrada.Estado {
		case Cargada:
			copy(destino, m.marcos.Datos(entrada.Marco))
		case EnSwap:
			if err := m.swap.LeerEn(entrada.SlotSwap, destino); err != nil {
				return "", fmt.Errorf("error al leer de swap la página 0x%08x: %w", entrada.Pagina, err)
			}
		}
	}

	if err := os.WriteFile(rutaCompleta, contenido, 0644); err != nil {
		utils.ErrorLog.Error("Error escribiendo dump", "archivo", rutaCompleta, "error", err)
		return "", fmt.Errorf("error al escribir en archivo de dump: %w", err)
	}

	// Log obligatorio
	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Memory Dump solicitado", pid))
	utils.InfoLog.Info("Memory dump completado", "pid", pid, "archivo", nombreArchivo, "paginas", len(entradas),
		"marcos_libres", m.fisica.Libres(), "slots_libres", m.swap.SlotsLibres())
	return rutaCompleta, nil
}

const (
	ladoCelda      = 24
	columnasMapa   = 16
	margenMapa     = 4
	separadorCelda = 2
)

// paleta de colores por PID
var paleta = [][3]float64{
	{0.26, 0.52, 0.96},
	{0.20, 0.66, 0.33},
	{0.98, 0.74, 0.02},
	{0.61, 0.15, 0.69},
	{0.00, 0.59, 0.53},
	{1.00, 0.34, 0.13},
	{0.47, 0.33, 0.28},
	{0.91, 0.12, 0.39},
}

// DibujarMapaMarcos guarda en ruta un PNG con un cuadrado por marco: gris si
// está libre, un color por PID si está ocupado y borde rojo si está fijado.
func (m *Memoria) DibujarMapaMarcos(ruta string) error {
	foto := m.marcos.Foto()

	filas := (len(foto) + columnasMapa - 1) / columnasMapa
	ancho := 2*margenMapa + columnasMapa*(ladoCelda+separadorCelda)
	alto := 2*margenMapa + filas*(ladoCelda+separadorCelda)

	dc := gg.NewContext(ancho, alto)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for _, marco := range foto {
		x := float64(margenMapa + (marco.ID%columnasMapa)*(ladoCelda+separadorCelda))
		y := float64(margenMapa + (marco.ID/columnasMapa)*(ladoCelda+separadorCelda))

		dc.DrawRectangle(x, y, ladoCelda, ladoCelda)
		if marco.Libre {
			dc.SetRGB(0.85, 0.85, 0.85)
			dc.Fill()
			continue
		}
		color := paleta[marco.PID%len(paleta)]
		dc.SetRGB(color[0], color[1], color[2])
		dc.Fill()

		if marco.Fijado {
			dc.SetRGB(0.9, 0, 0)
			dc.SetLineWidth(2)
			dc.DrawRectangle(x+1, y+1, ladoCelda-2, ladoCelda-2)
			dc.Stroke()
		}

		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(fmt.Sprint(marco.PID), x+ladoCelda/2, y+ladoCelda/2, 0.5, 0.5)
	}

	if err := os.MkdirAll(filepath.Dir(ruta), 0755); err != nil {
		return fmt.Errorf("error al crear directorio para el mapa: %w", err)
	}
	if err := dc.SavePNG(ruta); err != nil {
		return fmt.Errorf("error al guardar mapa de marcos: %w", err)
	}
	utils.InfoLog.Info("Mapa de marcos generado", "archivo", ruta, "marcos", len(foto))
	return nil
}
