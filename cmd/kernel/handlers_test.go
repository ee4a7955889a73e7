package main

import (
	"encoding/hex"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// iniciarKernelDePrueba levanta los subsistemas y el bus HTTP en un puerto efímero
func iniciarKernelDePrueba(t *testing.T, modo string) *utils.HTTPClient {
	t.Helper()

	dir := t.TempDir()
	config := &KernelConfig{
		Config:           memoria.ConfigPorDefecto(),
		ModoPlanificador: modo,
	}
	config.CantidadMarcos = 4
	config.CantidadSlotsSwap = 8
	config.SwapfilePath = filepath.Join(dir, "swapfile.bin")
	config.DumpPath = filepath.Join(dir, "dump")
	kernelConfig = config

	kernelModulo = utils.NuevoModulo("Kernel", "")
	if err := inicializarSubsistemas(config); err != nil {
		t.Fatalf("inicializarSubsistemas: %v", err)
	}
	t.Cleanup(func() { memoriaVirtual.Cerrar() })

	servidor := httptest.NewServer(kernelModulo.PrepararServidor("127.0.0.1", 0).Mux())
	t.Cleanup(servidor.Close)

	cliente := utils.NewHTTPClient("127.0.0.1", 0, "test")
	cliente.BaseURL = servidor.URL
	return cliente
}

func solicitar(t *testing.T, c *utils.HTTPClient, tipo int, datos map[string]interface{}) map[string]interface{} {
	t.Helper()
	respuesta, err := c.Solicitar(tipo, datos)
	if err != nil {
		t.Fatalf("mensaje %d: %v", tipo, err)
	}
	return respuesta
}

func TestDonacionPorMensajes(t *testing.T) {
	c := iniciarKernelDePrueba(t, "PRIORIDADES")

	bajo := int(solicitar(t, c, utils.MensajeCrearHilo, map[string]interface{}{"nombre": "bajo", "prioridad": 3})["tid"].(float64))
	alto := int(solicitar(t, c, utils.MensajeCrearHilo, map[string]interface{}{"nombre": "alto", "prioridad": 5})["tid"].(float64))

	solicitar(t, c, utils.MensajeAdquirir, map[string]interface{}{"tid": bajo, "cerrojo": "L"})

	listo := make(chan error, 1)
	go func() {
		_, err := c.Solicitar(utils.MensajeAdquirir, map[string]interface{}{"tid": alto, "cerrojo": "L"})
		listo <- err
	}()

	// Espera a que el segundo hilo quede bloqueado y done su prioridad
	limite := time.Now().Add(5 * time.Second)
	for {
		estado := solicitar(t, c, utils.MensajeEstadoHilo, map[string]interface{}{"tid": bajo})
		if estado["prioridad_efectiva"] == float64(5) {
			break
		}
		if time.Now().After(limite) {
			t.Fatalf("no hubo donación: %v", estado)
		}
		time.Sleep(10 * time.Millisecond)
	}

	respuesta := solicitar(t, c, utils.MensajeLiberar, map[string]interface{}{"tid": bajo, "cerrojo": "L"})
	if respuesta["prioridad"] != float64(3) {
		t.Fatalf("prioridad tras liberar = %v, se esperaba 3", respuesta["prioridad"])
	}

	select {
	case err := <-listo:
		if err != nil {
			t.Fatalf("ADQUIRIR del hilo alto: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("el hilo alto nunca recibió el cerrojo")
	}

	if _, err := c.Solicitar(utils.MensajeLiberar, map[string]interface{}{"tid": bajo, "cerrojo": "L"}); err == nil {
		t.Fatal("liberar un cerrojo ajeno debe fallar")
	}
}

func TestProcesoPorMensajes(t *testing.T) {
	c := iniciarKernelDePrueba(t, "")

	ejecutable := filepath.Join(t.TempDir(), "prog.bin")
	contenido := []byte("codigo del programa")
	if err := os.WriteFile(ejecutable, contenido, 0644); err != nil {
		t.Fatal(err)
	}

	const base = 0x08048000
	solicitar(t, c, utils.MensajeCrearProceso, map[string]interface{}{"pid": 1})
	solicitar(t, c, utils.MensajeCargarSegmento, map[string]interface{}{
		"pid": 1, "archivo": ejecutable, "offset": 0, "direccion": base,
		"bytes_leer": len(contenido), "bytes_cero": 4096 - len(contenido), "escribible": false,
	})

	leido := solicitar(t, c, utils.MensajeLeer, map[string]interface{}{"pid": 1, "direccion": base, "tamanio": len(contenido)})
	if leido["datos"] != hex.EncodeToString(contenido) {
		t.Fatalf("datos = %v", leido["datos"])
	}

	solicitar(t, c, utils.MensajeEscribir, map[string]interface{}{"pid": 1, "direccion": 0xBFFFFFF0, "sp": 0xBFFFFFF0, "valor": "pila"})

	dump := solicitar(t, c, utils.MensajeMemoryDump, map[string]interface{}{"pid": 1})
	if _, err := os.Stat(dump["archivo"].(string)); err != nil {
		t.Fatalf("dump: %v", err)
	}

	// Escribir en código es un acceso inválido: el proceso termina
	if _, err := c.Solicitar(utils.MensajeEscribir, map[string]interface{}{"pid": 1, "direccion": base, "valor": "x"}); err == nil {
		t.Fatal("se esperaba error al escribir en un segmento de sólo lectura")
	}
	if BuscarPCBPorPID(1) != nil {
		t.Fatal("el PCB sigue registrado")
	}

	metricas := solicitar(t, c, utils.MensajeMetricas, map[string]interface{}{"pid": 1})
	if metricas["cargas_perezosas"] != float64(1) || metricas["crecimientos_pila"] != float64(1) {
		t.Fatalf("métricas = %v", metricas)
	}
}

func TestProcesoTerminadoEntregaSusCerrojos(t *testing.T) {
	c := iniciarKernelDePrueba(t, "PRIORIDADES")

	proceso := solicitar(t, c, utils.MensajeCrearProceso, map[string]interface{}{"pid": 2, "prioridad": 10})
	tidProceso := int(proceso["tid"].(float64))
	solicitar(t, c, utils.MensajeAdquirir, map[string]interface{}{"tid": tidProceso, "cerrojo": "L"})

	espera := int(solicitar(t, c, utils.MensajeCrearHilo, map[string]interface{}{"nombre": "espera", "prioridad": 40})["tid"].(float64))
	listo := make(chan error, 1)
	go func() {
		_, err := c.Solicitar(utils.MensajeAdquirir, map[string]interface{}{"tid": espera, "cerrojo": "L"})
		listo <- err
	}()

	limite := time.Now().Add(5 * time.Second)
	for {
		estado := solicitar(t, c, utils.MensajeEstadoHilo, map[string]interface{}{"tid": espera})
		if estado["bloqueado_en"] == "L" {
			break
		}
		if time.Now().After(limite) {
			t.Fatalf("el hilo nunca se bloqueó: %v", estado)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Violación de permisos: el proceso muere con L tomado
	if _, err := c.Solicitar(utils.MensajeFalloPagina, map[string]interface{}{"pid": 2, "direccion": 0x1000, "presente": true}); err == nil {
		t.Fatal("se esperaba error por violación de permisos")
	}
	if BuscarPCBPorPID(2) != nil {
		t.Fatal("el PCB sigue registrado")
	}

	select {
	case err := <-listo:
		if err != nil {
			t.Fatalf("ADQUIRIR del hilo en espera: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("el cerrojo nunca pasó al hilo en espera")
	}
	solicitar(t, c, utils.MensajeLiberar, map[string]interface{}{"tid": espera, "cerrojo": "L"})

	// Terminar el hilo de un proceso termina el proceso
	otro := solicitar(t, c, utils.MensajeCrearProceso, map[string]interface{}{"pid": 3})
	solicitar(t, c, utils.MensajeFinalizarHilo, map[string]interface{}{"tid": int(otro["tid"].(float64))})
	if BuscarPCBPorPID(3) != nil {
		t.Fatal("el proceso 3 sigue activo sin su hilo")
	}
	if _, err := c.Solicitar(utils.MensajeCrearProceso, map[string]interface{}{"pid": -1}); err == nil {
		t.Fatal("se aceptó un PID negativo")
	}
}
