package utils

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Modulo representa un módulo genérico del sistema
type Modulo struct {
	Nombre      string
	Server      *HTTPServer
	ConfigPath  string
	HandlerFunc map[string]map[string]HTTPHandlerFunc
}

// NuevoModulo crea una nueva instancia de un módulo
func NuevoModulo(nombre string, configPath string) *Modulo {
	return &Modulo{
		Nombre:      nombre,
		ConfigPath:  configPath,
		HandlerFunc: make(map[string]map[string]HTTPHandlerFunc),
	}
}

// RegistrarHandler registra un handler para un tipo de mensaje y operación específicos
func (m *Modulo) RegistrarHandler(tipo string, operacion string, handler HTTPHandlerFunc) {
	if _, existe := m.HandlerFunc[tipo]; !existe {
		m.HandlerFunc[tipo] = make(map[string]HTTPHandlerFunc)
	}
	m.HandlerFunc[tipo][operacion] = handler
}

// IniciarServidor crea el servidor HTTP del módulo y lo pone a escuchar
func (m *Modulo) IniciarServidor(ip string, puerto int) {
	m.PrepararServidor(ip, puerto)

	go func() {
		err := m.Server.Start()
		if err != nil {
			slog.Error("Error al iniciar servidor HTTP", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Servidor HTTP iniciado", "módulo", m.Nombre, "dirección", fmt.Sprintf("%s:%d", ip, puerto))
}

// PrepararServidor crea el servidor HTTP con los handlers registrados sin
// ponerlo a escuchar
func (m *Modulo) PrepararServidor(ip string, puerto int) *HTTPServer {
	m.Server = NewHTTPServer(ip, puerto, m.Nombre)

	// Registrar handlers para el servidor HTTP
	for tipoStr, handlersPorOperacion := range m.HandlerFunc {
		handlersPorOperacion := handlersPorOperacion
		tipo, err := strconv.Atoi(tipoStr)
		if err != nil {
			slog.Error("Error al convertir tipo de mensaje a entero", "tipo", tipoStr, "error", err)
			continue
		}

		m.Server.RegisterHTTPHandler(tipo, func(msg *Mensaje) (interface{}, error) {
			operacion := msg.Operacion
			if operacion == "" {
				operacion = "default"
			}

			handler, existe := handlersPorOperacion[operacion]
			if !existe {
				handler, existe = handlersPorOperacion["default"]
				if !existe {
					slog.Error("No hay handler para operación", "tipo", tipo, "operacion", operacion)
					return nil, fmt.Errorf("no hay handler para operación %s", operacion)
				}
			}

			return handler(msg)
		})
	}
	return m.Server
}

// CargarConfiguracion carga la configuración o termina el módulo si no puede
func CargarConfiguracion[T any](ruta string) *T {
	slog.Info("Cargando configuración", "ruta", ruta)

	config, err := LeerConfiguracion[T](ruta)
	if err != nil {
		slog.Error("Error cargando configuración", "error", err, "ruta", ruta)
		os.Exit(1)
	}

	slog.Info("Configuración cargada correctamente")
	return config
}

// LeerConfiguracion decodifica un archivo JSON al tipo de configuración pedido
func LeerConfiguracion[T any](ruta string) (*T, error) {
	absPath, err := filepath.Abs(ruta)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo ruta absoluta: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("error abriendo archivo de configuración: %w", err)
	}
	defer file.Close()

	var config T
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("error decodificando configuración %s: %w", absPath, err)
	}

	return &config, nil
}

// ============================================================================
// Constantes para tipos de mensajes entre módulos
// ============================================================================
const (
	// === COMUNICACIÓN BÁSICA (1-9) ===
	MensajeHandshake = 1 // Conexión inicial

	// === PLANIFICADOR (10-19) ===
	MensajeCrearHilo      = 10 // Alta de hilo con prioridad base
	MensajeAdquirir       = 11 // lock_acquire
	MensajeLiberar        = 12 // lock_release
	MensajeCeder          = 13 // thread_yield
	MensajeFijarPrioridad = 14 // thread_set_priority
	MensajeFijarNice      = 15 // thread_set_nice (MLFQS)
	MensajeTick           = 16 // Interrupción de timer
	MensajeEstadoHilo     = 17 // Consulta de prioridad efectiva y estado
	MensajeFinalizarHilo  = 18 // thread_exit
	MensajeCargaPromedio  = 19 // load_avg externo (MLFQS)

	// === MEMORIA VIRTUAL (20-29) ===
	MensajeCrearProceso     = 20 // Alta de proceso con su SPT
	MensajeCargarSegmento   = 21 // Registrar páginas perezosas de un segmento
	MensajeRegistrarMapeo   = 22 // Registrar páginas MMAP pendientes
	MensajeFalloPagina      = 23 // Trap de page fault
	MensajeLeer             = 24 // Leer memoria de usuario
	MensajeEscribir         = 25 // Escribir memoria de usuario
	MensajeFinalizarProceso = 26 // Salida del proceso
	MensajeMemoryDump       = 27 // Volcado de memoria
	MensajeMetricas         = 28 // Métricas por proceso
)
