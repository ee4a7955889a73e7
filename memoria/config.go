package memoria

// Config representa la configuración del subsistema de memoria virtual
type Config struct {
	TamPagina         int    `json:"TAM_PAGINA"`          // Tamaño de página y de marco en bytes
	CantidadMarcos    int    `json:"CANTIDAD_MARCOS"`     // Marcos de memoria física
	CantidadSlotsSwap int    `json:"CANTIDAD_SLOTS_SWAP"` // Capacidad del área de swap en páginas
	SwapfilePath      string `json:"SWAPFILE_PATH"`       // Ruta al archivo de swap
	DistanciaPush     int    `json:"DISTANCIA_PUSH"`      // Tolerancia bajo el stack pointer (PUSHA escribe 32 bytes)
	MaxPaginasPila    int    `json:"MAX_PAGINAS_PILA"`    // Páginas de pila que puede crecer un proceso
	TopeUsuario       uint32 `json:"TOPE_USUARIO"`        // Primera dirección fuera del espacio de usuario
	RetardoSwap       int    `json:"RETARDO_SWAP"`        // Retardo de acceso a swap en ms
	DumpPath          string `json:"DUMP_PATH"`           // Ruta para los archivos de dump
}

// ConfigPorDefecto replica un kernel x86 de 32 bits con páginas de 4 KiB
func ConfigPorDefecto() Config {
	return Config{
		TamPagina:         4096,
		CantidadMarcos:    256,
		CantidadSlotsSwap: 1024,
		SwapfilePath:      "swap/swapfile.bin",
		DistanciaPush:     32,
		MaxPaginasPila:    2048,
		TopeUsuario:       0xC0000000,
		DumpPath:          "dump",
	}
}

// Completar rellena con los valores por defecto los campos que vinieron en cero
func (c Config) Completar() Config {
	def := ConfigPorDefecto()
	if c.TamPagina <= 0 {
		c.TamPagina = def.TamPagina
	}
	if c.CantidadMarcos <= 0 {
		c.CantidadMarcos = def.CantidadMarcos
	}
	if c.CantidadSlotsSwap <= 0 {
		c.CantidadSlotsSwap = def.CantidadSlotsSwap
	}
	if c.SwapfilePath == "" {
		c.SwapfilePath = def.SwapfilePath
	}
	if c.DistanciaPush <= 0 {
		c.DistanciaPush = def.DistanciaPush
	}
	if c.MaxPaginasPila <= 0 {
		c.MaxPaginasPila = def.MaxPaginasPila
	}
	if c.TopeUsuario == 0 {
		c.TopeUsuario = def.TopeUsuario
	}
	if c.DumpPath == "" {
		c.DumpPath = def.DumpPath
	}
	return c
}

// RedondearPagina devuelve el inicio de la página que contiene dir
func (c Config) RedondearPagina(dir uint32) uint32 {
	return dir - dir%uint32(c.TamPagina)
}
