package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/planificador"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

var (
	cerrojos      = make(map[string]*planificador.Cerrojo)
	cerrojosMutex sync.Mutex
	proximoFD     = 3
	fdMutex       sync.Mutex
)

func respuestaOK(datos map[string]interface{}) map[string]interface{} {
	if datos == nil {
		datos = make(map[string]interface{})
	}
	datos["status"] = "OK"
	return datos
}

// conKernelPanic termina el kernel si la memoria virtual entra en un estado
// del que no puede salir
func conKernelPanic(handler utils.HTTPHandlerFunc) utils.HTTPHandlerFunc {
	return func(msg *utils.Mensaje) (interface{}, error) {
		defer func() {
			if r := recover(); r != nil {
				utils.ErrorLog.Error("Kernel panic", "tipo", msg.Tipo, "causa", fmt.Sprint(r))
				os.Exit(1)
			}
		}()
		return handler(msg)
	}
}

// HandlerHandshake informa la configuración relevante al que se conecta
func HandlerHandshake(msg *utils.Mensaje) (interface{}, error) {
	utils.InfoLog.Info("Handshake recibido", "origen", msg.Origen)
	config := memoriaVirtual.Config()
	return respuestaOK(map[string]interface{}{
		"modo":       plan.Modo().String(),
		"tam_pagina": config.TamPagina,
		"tope":       config.TopeUsuario,
	}), nil
}

// ============================================================================
// Planificador
// ============================================================================

func buscarHilo(msg *utils.Mensaje) (*planificador.Hilo, error) {
	tid, err := utils.ExtraerEntero(msg, "tid")
	if err != nil {
		return nil, err
	}
	hilo := plan.Buscar(tid)
	if hilo == nil {
		return nil, fmt.Errorf("hilo %d inexistente", tid)
	}
	return hilo, nil
}

func buscarCerrojo(msg *utils.Mensaje) (*planificador.Cerrojo, error) {
	nombre, err := utils.ExtraerTexto(msg, "cerrojo")
	if err != nil {
		return nil, err
	}

	cerrojosMutex.Lock()
	defer cerrojosMutex.Unlock()

	cerrojo, existe := cerrojos[nombre]
	if !existe {
		cerrojo = plan.NuevoCerrojo(nombre)
		cerrojos[nombre] = cerrojo
	}
	return cerrojo, nil
}

func HandlerCrearHilo(msg *utils.Mensaje) (interface{}, error) {
	nombre, err := utils.ExtraerTexto(msg, "nombre")
	if err != nil {
		nombre = fmt.Sprintf("hilo-%s", msg.Origen)
	}
	prioridad := utils.ExtraerEnteroOpcional(msg, "prioridad", planificador.PrioridadPorDefecto)

	hilo := plan.CrearHilo(nombre, prioridad)
	return respuestaOK(map[string]interface{}{"tid": hilo.TID}), nil
}

// HandlerAdquirir responde recién cuando el hilo obtiene el cerrojo
func HandlerAdquirir(msg *utils.Mensaje) (interface{}, error) {
	hilo, err := buscarHilo(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	cerrojo, err := buscarCerrojo(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	if err := plan.Adquirir(hilo, cerrojo); err != nil {
		return utils.RespuestaError(err), nil
	}
	return respuestaOK(map[string]interface{}{"prioridad": plan.PrioridadEfectiva(hilo)}), nil
}

func HandlerLiberar(msg *utils.Mensaje) (interface{}, error) {
	hilo, err := buscarHilo(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	cerrojo, err := buscarCerrojo(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	if !plan.EsPoseedor(hilo, cerrojo) {
		return utils.RespuestaError(fmt.Errorf("el hilo %d no posee %q", hilo.TID, cerrojo.Nombre)), nil
	}

	plan.Liberar(hilo, cerrojo)
	return respuestaOK(map[string]interface{}{"prioridad": plan.PrioridadEfectiva(hilo)}), nil
}

func HandlerCeder(msg *utils.Mensaje) (interface{}, error) {
	plan.Ceder()
	return respuestaOK(map[string]interface{}{"actual": tidActual()}), nil
}

func HandlerFijarPrioridad(msg *utils.Mensaje) (interface{}, error) {
	hilo, err := buscarHilo(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	prioridad, err := utils.ExtraerEntero(msg, "prioridad")
	if err != nil {
		return utils.RespuestaError(err), nil
	}

	plan.FijarPrioridad(hilo, prioridad)
	return respuestaOK(map[string]interface{}{"prioridad": plan.PrioridadEfectiva(hilo)}), nil
}

func HandlerFijarNice(msg *utils.Mensaje) (interface{}, error) {
	hilo, err := buscarHilo(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	nice, err := utils.ExtraerEntero(msg, "nice")
	if err != nil {
		return utils.RespuestaError(err), nil
	}

	plan.FijarNice(hilo, nice)
	return respuestaOK(map[string]interface{}{"nice": plan.Nice(hilo), "prioridad": plan.PrioridadEfectiva(hilo)}), nil
}

func HandlerTick(msg *utils.Mensaje) (interface{}, error) {
	cantidad := utils.ExtraerEnteroOpcional(msg, "cantidad", 1)
	for i := 0; i < cantidad; i++ {
		plan.Tick()
	}
	return respuestaOK(map[string]interface{}{"ticks": plan.Ticks(), "actual": tidActual()}), nil
}

func HandlerEstadoHilo(msg *utils.Mensaje) (interface{}, error) {
	hilo, err := buscarHilo(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}

	respuesta := map[string]interface{}{
		"tid":                hilo.TID,
		"nombre":             hilo.Nombre,
		"estado":             plan.EstadoDe(hilo).String(),
		"prioridad_base":     plan.PrioridadBase(hilo),
		"prioridad_efectiva": plan.PrioridadEfectiva(hilo),
		"nice":               plan.Nice(hilo),
		"recent_cpu":         plan.RecentCPU(hilo).Redondeado(),
	}
	if cerrojo := plan.BloqueadoEn(hilo); cerrojo != nil {
		respuesta["bloqueado_en"] = cerrojo.Nombre
	}
	return respuestaOK(respuesta), nil
}

func HandlerFinalizarHilo(msg *utils.Mensaje) (interface{}, error) {
	hilo, err := buscarHilo(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	// El hilo de un proceso termina con el proceso
	if pcb := BuscarPCBPorHilo(hilo); pcb != nil {
		if err := memoriaVirtual.FinalizarProceso(pcb.Proceso, 0); err != nil {
			return utils.RespuestaError(err), nil
		}
		return respuestaOK(map[string]interface{}{"pid": pcb.PID}), nil
	}
	plan.TerminarHilo(hilo)
	return respuestaOK(nil), nil
}

// HandlerCargaPromedio recibe load_avg en centésimas
func HandlerCargaPromedio(msg *utils.Mensaje) (interface{}, error) {
	centesimas, err := utils.ExtraerEntero(msg, "carga")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	plan.FijarCargaPromedio(planificador.DeFraccion(centesimas, 100))
	return respuestaOK(nil), nil
}

func tidActual() int {
	if actual := plan.Actual(); actual != nil {
		return actual.TID
	}
	return 0
}

// ============================================================================
// Memoria virtual
// ============================================================================

func buscarProceso(msg *utils.Mensaje) (*PCB, error) {
	pid, err := utils.ExtraerEntero(msg, "pid")
	if err != nil {
		return nil, err
	}
	pcb := BuscarPCBPorPID(pid)
	if pcb == nil {
		return nil, fmt.Errorf("proceso %d inexistente", pid)
	}
	return pcb, nil
}

// HandlerCrearProceso da de alta el proceso con el hilo indicado o con uno nuevo
func HandlerCrearProceso(msg *utils.Mensaje) (interface{}, error) {
	pid, err := utils.ExtraerEntero(msg, "pid")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	if pid < 0 {
		return utils.RespuestaError(fmt.Errorf("pid inválido: %d", pid)), nil
	}

	var hilo *planificador.Hilo
	if tid, err := utils.ExtraerEntero(msg, "tid"); err == nil {
		if hilo = plan.Buscar(tid); hilo == nil {
			return utils.RespuestaError(fmt.Errorf("hilo %d inexistente", tid)), nil
		}
	} else {
		prioridad := utils.ExtraerEnteroOpcional(msg, "prioridad", planificador.PrioridadPorDefecto)
		hilo = plan.CrearHilo(fmt.Sprintf("proc-%d", pid), prioridad)
	}

	proc, err := memoriaVirtual.CrearProceso(pid, hilo)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	NuevoPCB(proc)
	return respuestaOK(map[string]interface{}{"pid": pid, "tid": hilo.TID}), nil
}

func HandlerCargarSegmento(msg *utils.Mensaje) (interface{}, error) {
	pcb, err := buscarProceso(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	direccion, err := utils.ExtraerEntero(msg, "direccion")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	bytesLeer := utils.ExtraerEnteroOpcional(msg, "bytes_leer", 0)
	bytesCero := utils.ExtraerEnteroOpcional(msg, "bytes_cero", 0)
	offset := utils.ExtraerEnteroOpcional(msg, "offset", 0)
	escribible := utils.ExtraerBooleano(msg, "escribible")

	// Un segmento sólo de ceros (.bss) no tiene archivo
	var archivo *os.File
	var respaldo io.ReadSeeker
	if bytesLeer > 0 {
		ruta, err := utils.ExtraerTexto(msg, "archivo")
		if err != nil {
			return utils.RespuestaError(err), nil
		}
		if archivo, err = os.Open(filepath.Clean(ruta)); err != nil {
			return utils.RespuestaError(fmt.Errorf("error al abrir el ejecutable: %w", err)), nil
		}
		respaldo = archivo
	}

	if err := memoriaVirtual.CargarSegmento(pcb.Proceso, respaldo, int64(offset), uint32(direccion), bytesLeer, bytesCero, escribible); err != nil {
		if archivo != nil {
			archivo.Close()
		}
		return utils.RespuestaError(err), nil
	}
	if archivo != nil {
		pcb.AgregarArchivo(archivo)
	}
	return respuestaOK(nil), nil
}

// HandlerRegistrarMapeo abre el archivo, le asigna un descriptor y reserva las páginas
func HandlerRegistrarMapeo(msg *utils.Mensaje) (interface{}, error) {
	pcb, err := buscarProceso(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	ruta, err := utils.ExtraerTexto(msg, "archivo")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	direccion, err := utils.ExtraerEntero(msg, "direccion")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	offset := utils.ExtraerEnteroOpcional(msg, "offset", 0)
	escribible := utils.ExtraerBooleano(msg, "escribible")

	archivo, err := os.Open(filepath.Clean(ruta))
	if err != nil {
		return utils.RespuestaError(fmt.Errorf("error al abrir el archivo a mapear: %w", err)), nil
	}
	info, err := archivo.Stat()
	if err != nil {
		archivo.Close()
		return utils.RespuestaError(err), nil
	}
	bytes := utils.ExtraerEnteroOpcional(msg, "bytes", int(info.Size())-offset)

	fdMutex.Lock()
	fd := proximoFD
	proximoFD++
	fdMutex.Unlock()

	mapeos.Registrar(fd, archivo)
	if err := memoriaVirtual.RegistrarMapeo(pcb.Proceso, fd, uint32(direccion), int64(offset), bytes, escribible); err != nil {
		archivo.Close()
		return utils.RespuestaError(err), nil
	}
	pcb.AgregarArchivo(archivo)
	return respuestaOK(map[string]interface{}{"fd": fd}), nil
}

// HandlerFalloPagina es el trap de page fault
func HandlerFalloPagina(msg *utils.Mensaje) (interface{}, error) {
	pcb, err := buscarProceso(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	direccion, err := utils.ExtraerEntero(msg, "direccion")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	sp := utils.ExtraerEnteroOpcional(msg, "sp", direccion)

	acceso := memoria.AccesoUsuario | memoria.AccesoNoPresente
	if utils.ExtraerBooleano(msg, "presente") {
		acceso &^= memoria.AccesoNoPresente
	}
	if utils.ExtraerBooleano(msg, "escritura") {
		acceso |= memoria.AccesoEscritura
	}

	if err := memoriaVirtual.ManejarFallo(pcb.Proceso, uint32(direccion), uint32(sp), acceso); err != nil {
		return utils.RespuestaError(err), nil
	}
	return respuestaOK(nil), nil
}

// HandlerLeer devuelve el contenido leído en hexadecimal
func HandlerLeer(msg *utils.Mensaje) (interface{}, error) {
	pcb, err := buscarProceso(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	direccion, err := utils.ExtraerEntero(msg, "direccion")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	tamanio, err := utils.ExtraerEntero(msg, "tamanio")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	sp := utils.ExtraerEnteroOpcional(msg, "sp", direccion)

	datos, err := memoriaVirtual.Leer(pcb.Proceso, uint32(direccion), uint32(sp), tamanio)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	return respuestaOK(map[string]interface{}{"datos": hex.EncodeToString(datos)}), nil
}

// HandlerEscribir escribe el texto recibido en "valor"
func HandlerEscribir(msg *utils.Mensaje) (interface{}, error) {
	pcb, err := buscarProceso(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	direccion, err := utils.ExtraerEntero(msg, "direccion")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	valor, err := utils.ExtraerTexto(msg, "valor")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	sp := utils.ExtraerEnteroOpcional(msg, "sp", direccion)

	if err := memoriaVirtual.Escribir(pcb.Proceso, uint32(direccion), uint32(sp), []byte(valor)); err != nil {
		return utils.RespuestaError(err), nil
	}
	return respuestaOK(nil), nil
}

func HandlerFinalizarProceso(msg *utils.Mensaje) (interface{}, error) {
	pcb, err := buscarProceso(msg)
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	estado := utils.ExtraerEnteroOpcional(msg, "estado", 0)

	if err := memoriaVirtual.FinalizarProceso(pcb.Proceso, estado); err != nil {
		return utils.RespuestaError(err), nil
	}
	return respuestaOK(nil), nil
}

// HandlerMemoryDump vuelca el proceso y el mapa de marcos
func HandlerMemoryDump(msg *utils.Mensaje) (interface{}, error) {
	pid, err := utils.ExtraerEntero(msg, "pid")
	if err != nil {
		return utils.RespuestaError(err), nil
	}

	archivo, err := memoriaVirtual.CrearMemoryDump(pid)
	if err != nil {
		utils.ErrorLog.Error("Error al crear memory dump", "pid", pid, "error", err)
		return utils.RespuestaError(err), nil
	}

	mapa := filepath.Join(memoriaVirtual.Config().DumpPath, fmt.Sprintf("%d-marcos.png", pid))
	if err := memoriaVirtual.DibujarMapaMarcos(mapa); err != nil {
		return utils.RespuestaError(err), nil
	}
	return respuestaOK(map[string]interface{}{"archivo": archivo, "mapa": mapa}), nil
}

func HandlerMetricas(msg *utils.Mensaje) (interface{}, error) {
	pid, err := utils.ExtraerEntero(msg, "pid")
	if err != nil {
		return utils.RespuestaError(err), nil
	}
	metricas, existe := memoriaVirtual.Metricas(pid)
	if !existe {
		return utils.RespuestaError(fmt.Errorf("sin métricas para el proceso %d", pid)), nil
	}
	return metricas, nil
}
