package main

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Kernel es la parte del cliente HTTP que usa el ejecutor
type Kernel interface {
	Solicitar(tipo int, datos map[string]interface{}) (map[string]interface{}, error)
}

// Ejecutor reproduce un script contra el kernel
type Ejecutor struct {
	kernel     Kernel
	semaforo   *utils.Semaforo
	pendientes sync.WaitGroup

	mu      sync.Mutex
	hilos   map[string]int // alias del script -> TID
	errores []error
}

func NuevoEjecutor(kernel Kernel, concurrentes int) *Ejecutor {
	return &Ejecutor{
		kernel:   kernel,
		semaforo: utils.NewSemaforo(concurrentes),
		hilos:    make(map[string]int),
	}
}

// Ejecutar corre el script completo. Un error de sintaxis lo corta; un
// rechazo del kernel sólo se registra.
func (e *Ejecutor) Ejecutar(script []Instruccion) error {
	for _, instruccion := range script {
		switch {
		case instruccion.Operacion == "ESPERAR":
			if err := e.esperar(); err != nil {
				return err
			}
		case instruccion.SegundoPlano:
			if !e.semaforo.TryWait() {
				utils.InfoLog.Debug("Sin lugar para segundo plano, esperando", "linea", instruccion.Linea)
				e.semaforo.Wait()
			}
			e.pendientes.Add(1)
			go func(i Instruccion) {
				defer e.pendientes.Done()
				defer e.semaforo.Signal()
				if err := e.ejecutar(i); err != nil {
					e.mu.Lock()
					e.errores = append(e.errores, err)
					e.mu.Unlock()
				}
			}(instruccion)
		default:
			if err := e.ejecutar(instruccion); err != nil {
				return err
			}
		}
	}
	return e.esperar()
}

func (e *Ejecutor) esperar() error {
	e.pendientes.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	err := errors.Join(e.errores...)
	e.errores = nil
	return err
}

// TID devuelve el TID asociado a un alias o a un número
func (e *Ejecutor) TID(referencia string) (int, error) {
	e.mu.Lock()
	tid, existe := e.hilos[referencia]
	e.mu.Unlock()
	if existe {
		return tid, nil
	}
	return numero(referencia)
}

func numero(texto string) (int, error) {
	valor, err := strconv.ParseInt(texto, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("número inválido %q", texto)
	}
	return int(valor), nil
}

// argumentos convierte los parámetros indicados a enteros
func argumentos(i Instruccion, minimo int, posiciones ...int) ([]int, error) {
	if len(i.Parametros) < minimo {
		return nil, fmt.Errorf("línea %d: %s necesita %d parámetros", i.Linea, i.Operacion, minimo)
	}
	valores := make([]int, len(posiciones))
	for j, pos := range posiciones {
		if pos >= len(i.Parametros) {
			continue
		}
		valor, err := numero(i.Parametros[pos])
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", i.Linea, err)
		}
		valores[j] = valor
	}
	return valores, nil
}

func (e *Ejecutor) enviar(i Instruccion, tipo int, datos map[string]interface{}) map[string]interface{} {
	respuesta, err := e.kernel.Solicitar(tipo, datos)
	if err != nil {
		utils.InfoLog.Warn("Instrucción rechazada", "linea", i.Linea, "instruccion", i.String(), "error", err)
		return nil
	}
	return respuesta
}

func (e *Ejecutor) ejecutar(i Instruccion) error {
	utils.InfoLog.Info(fmt.Sprintf("## Ejecutando: %s", i.String()), "linea", i.Linea)

	switch i.Operacion {
	case "HILO":
		if len(i.Parametros) < 1 {
			return fmt.Errorf("línea %d: HILO necesita un nombre", i.Linea)
		}
		datos := map[string]interface{}{"nombre": i.Parametros[0]}
		if len(i.Parametros) > 1 {
			prioridad, err := numero(i.Parametros[1])
			if err != nil {
				return err
			}
			datos["prioridad"] = prioridad
		}
		if respuesta := e.enviar(i, utils.MensajeCrearHilo, datos); respuesta != nil {
			tid, _ := respuesta["tid"].(float64)
			e.mu.Lock()
			e.hilos[i.Parametros[0]] = int(tid)
			e.mu.Unlock()
		}

	case "ADQUIRIR", "LIBERAR":
		if len(i.Parametros) < 2 {
			return fmt.Errorf("línea %d: %s necesita hilo y cerrojo", i.Linea, i.Operacion)
		}
		tid, err := e.TID(i.Parametros[0])
		if err != nil {
			return err
		}
		tipo := utils.MensajeAdquirir
		if i.Operacion == "LIBERAR" {
			tipo = utils.MensajeLiberar
		}
		e.enviar(i, tipo, map[string]interface{}{"tid": tid, "cerrojo": i.Parametros[1]})

	case "CEDER":
		e.enviar(i, utils.MensajeCeder, nil)

	case "PRIORIDAD", "NICE":
		if len(i.Parametros) < 2 {
			return fmt.Errorf("línea %d: %s necesita hilo y valor", i.Linea, i.Operacion)
		}
		tid, err := e.TID(i.Parametros[0])
		if err != nil {
			return err
		}
		valor, err := numero(i.Parametros[1])
		if err != nil {
			return err
		}
		if i.Operacion == "PRIORIDAD" {
			e.enviar(i, utils.MensajeFijarPrioridad, map[string]interface{}{"tid": tid, "prioridad": valor})
		} else {
			e.enviar(i, utils.MensajeFijarNice, map[string]interface{}{"tid": tid, "nice": valor})
		}

	case "ESTADO", "TERMINAR":
		if len(i.Parametros) < 1 {
			return fmt.Errorf("línea %d: %s necesita un hilo", i.Linea, i.Operacion)
		}
		tid, err := e.TID(i.Parametros[0])
		if err != nil {
			return err
		}
		if i.Operacion == "TERMINAR" {
			e.enviar(i, utils.MensajeFinalizarHilo, map[string]interface{}{"tid": tid})
			break
		}
		if respuesta := e.enviar(i, utils.MensajeEstadoHilo, map[string]interface{}{"tid": tid}); respuesta != nil {
			utils.InfoLog.Info(fmt.Sprintf("## TID: %d - Estado: %v - Prioridad: %v (base %v)",
				tid, respuesta["estado"], respuesta["prioridad_efectiva"], respuesta["prioridad_base"]))
		}

	case "TICK":
		cantidad := 1
		if len(i.Parametros) > 0 {
			valor, err := numero(i.Parametros[0])
			if err != nil {
				return err
			}
			cantidad = valor
		}
		e.enviar(i, utils.MensajeTick, map[string]interface{}{"cantidad": cantidad})

	case "CARGA":
		v, err := argumentos(i, 1, 0)
		if err != nil {
			return err
		}
		e.enviar(i, utils.MensajeCargaPromedio, map[string]interface{}{"carga": v[0]})

	case "PROCESO":
		v, err := argumentos(i, 1, 0)
		if err != nil {
			return err
		}
		datos := map[string]interface{}{"pid": v[0]}
		if len(i.Parametros) > 1 {
			tid, err := e.TID(i.Parametros[1])
			if err != nil {
				return err
			}
			datos["tid"] = tid
		}
		e.enviar(i, utils.MensajeCrearProceso, datos)

	case "SEGMENTO":
		// SEGMENTO <pid> <archivo|-> <offset> <direccion> <bytes_leer> <bytes_cero> <escribible>
		v, err := argumentos(i, 7, 0, 2, 3, 4, 5, 6)
		if err != nil {
			return err
		}
		datos := map[string]interface{}{
			"pid":        v[0],
			"offset":     v[1],
			"direccion":  v[2],
			"bytes_leer": v[3],
			"bytes_cero": v[4],
			"escribible": v[5] != 0,
		}
		if i.Parametros[1] != "-" {
			datos["archivo"] = i.Parametros[1]
		}
		e.enviar(i, utils.MensajeCargarSegmento, datos)

	case "MMAP":
		// MMAP <pid> <archivo> <direccion> [escribible]
		v, err := argumentos(i, 3, 0, 2, 3)
		if err != nil {
			return err
		}
		datos := map[string]interface{}{
			"pid":        v[0],
			"archivo":    i.Parametros[1],
			"direccion":  v[1],
			"escribible": v[2] != 0,
		}
		if respuesta := e.enviar(i, utils.MensajeRegistrarMapeo, datos); respuesta != nil {
			utils.InfoLog.Info("Archivo mapeado", "pid", v[0], "fd", respuesta["fd"])
		}

	case "FALLO":
		// FALLO <pid> <direccion> <sp> [W]
		v, err := argumentos(i, 3, 0, 1, 2)
		if err != nil {
			return err
		}
		escritura := len(i.Parametros) > 3 && i.Parametros[3] == "W"
		e.enviar(i, utils.MensajeFalloPagina, map[string]interface{}{
			"pid": v[0], "direccion": v[1], "sp": v[2], "escritura": escritura,
		})

	case "LEER":
		// LEER <pid> <direccion> <tamanio> [sp]
		v, err := argumentos(i, 3, 0, 1, 2, 3)
		if err != nil {
			return err
		}
		datos := map[string]interface{}{"pid": v[0], "direccion": v[1], "tamanio": v[2]}
		if len(i.Parametros) > 3 {
			datos["sp"] = v[3]
		}
		if respuesta := e.enviar(i, utils.MensajeLeer, datos); respuesta != nil {
			utils.InfoLog.Info(fmt.Sprintf("PID: %d - Acción: LEER - Dirección: 0x%08x - Valor: %v", v[0], v[1], respuesta["datos"]))
		}

	case "ESCRIBIR":
		// ESCRIBIR <pid> <direccion> <valor> [sp]
		v, err := argumentos(i, 3, 0, 1, 3)
		if err != nil {
			return err
		}
		datos := map[string]interface{}{"pid": v[0], "direccion": v[1], "valor": i.Parametros[2]}
		if len(i.Parametros) > 3 {
			datos["sp"] = v[2]
		}
		if e.enviar(i, utils.MensajeEscribir, datos) != nil {
			utils.InfoLog.Info(fmt.Sprintf("PID: %d - Acción: ESCRIBIR - Dirección: 0x%08x - Valor: %s", v[0], v[1], i.Parametros[2]))
		}

	case "DUMP":
		v, err := argumentos(i, 1, 0)
		if err != nil {
			return err
		}
		if respuesta := e.enviar(i, utils.MensajeMemoryDump, map[string]interface{}{"pid": v[0]}); respuesta != nil {
			utils.InfoLog.Info("Dump generado", "pid", v[0], "archivo", respuesta["archivo"], "mapa", respuesta["mapa"])
		}

	case "METRICAS":
		v, err := argumentos(i, 1, 0)
		if err != nil {
			return err
		}
		if respuesta := e.enviar(i, utils.MensajeMetricas, map[string]interface{}{"pid": v[0]}); respuesta != nil {
			utils.InfoLog.Info("Métricas", "pid", v[0], "metricas", respuesta)
		}

	case "FIN":
		v, err := argumentos(i, 1, 0, 1)
		if err != nil {
			return err
		}
		e.enviar(i, utils.MensajeFinalizarProceso, map[string]interface{}{"pid": v[0], "estado": v[1]})

	default:
		return fmt.Errorf("línea %d: instrucción desconocida %q", i.Linea, i.Operacion)
	}
	return nil
}
