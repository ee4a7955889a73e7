package main

import (
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

type llamada struct {
	tipo  int
	datos map[string]interface{}
}

// kernelFalso registra las solicitudes y responde con un TID creciente
type kernelFalso struct {
	mu       sync.Mutex
	llamadas []llamada
	proximo  int
	rechazar map[int]bool
}

func (k *kernelFalso) Solicitar(tipo int, datos map[string]interface{}) (map[string]interface{}, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.llamadas = append(k.llamadas, llamada{tipo, datos})
	if k.rechazar[tipo] {
		return nil, errors.New("rechazado")
	}
	if tipo == utils.MensajeCrearHilo {
		k.proximo++
		return map[string]interface{}{"status": "OK", "tid": float64(k.proximo)}, nil
	}
	return map[string]interface{}{"status": "OK"}, nil
}

func escribirScript(t *testing.T, contenido string) string {
	t.Helper()
	ruta := filepath.Join(t.TempDir(), "script.txt")
	if err := os.WriteFile(ruta, []byte(contenido), 0644); err != nil {
		t.Fatal(err)
	}
	return ruta
}

func TestCargarScript(t *testing.T) {
	ruta := escribirScript(t, `
# donación simple
HILO bajo 3
hilo alto 5   # en minúsculas también
& ADQUIRIR alto cerrojo

ESPERAR
`)

	script, err := cargarScript(ruta)
	if err != nil {
		t.Fatalf("cargarScript: %v", err)
	}
	if len(script) != 4 {
		t.Fatalf("instrucciones = %d, se esperaban 4", len(script))
	}
	if script[1].Operacion != "HILO" || script[1].Parametros[0] != "alto" || script[1].Linea != 4 {
		t.Fatalf("instrucción 1 = %+v", script[1])
	}
	if !script[2].SegundoPlano || script[2].Operacion != "ADQUIRIR" {
		t.Fatalf("instrucción 2 = %+v", script[2])
	}
}

func TestEjecutarResuelveAliasDeHilos(t *testing.T) {
	kernel := &kernelFalso{}
	script, err := cargarScript(escribirScript(t, `
HILO a 3
HILO b 5
ADQUIRIR a L
& ADQUIRIR b L
ESPERAR
PRIORIDAD 1 10
PROCESO 4 b
ESCRIBIR 4 0xBFFFFFFC hola 0xC0000000
`))
	if err != nil {
		t.Fatalf("cargarScript: %v", err)
	}

	if err := NuevoEjecutor(kernel, 2).Ejecutar(script); err != nil {
		t.Fatalf("Ejecutar: %v", err)
	}

	if len(kernel.llamadas) != 7 {
		t.Fatalf("llamadas = %d, se esperaban 7", len(kernel.llamadas))
	}
	adquirir := kernel.llamadas[3]
	if adquirir.tipo != utils.MensajeAdquirir || adquirir.datos["tid"] != 2 || adquirir.datos["cerrojo"] != "L" {
		t.Fatalf("ADQUIRIR b = %+v", adquirir)
	}
	prioridad := kernel.llamadas[4]
	if prioridad.datos["tid"] != 1 || prioridad.datos["prioridad"] != 10 {
		t.Fatalf("PRIORIDAD = %+v", prioridad)
	}
	proceso := kernel.llamadas[5]
	if proceso.datos["pid"] != 4 || proceso.datos["tid"] != 2 {
		t.Fatalf("PROCESO = %+v", proceso)
	}
	escribir := kernel.llamadas[6]
	if escribir.datos["direccion"] != 0xBFFFFFFC || escribir.datos["sp"] != 0xC0000000 || escribir.datos["valor"] != "hola" {
		t.Fatalf("ESCRIBIR = %+v", escribir)
	}
}

func TestEjecutarRechazosYErrores(t *testing.T) {
	kernel := &kernelFalso{rechazar: map[int]bool{utils.MensajeLeer: true}}

	script := []Instruccion{
		{Linea: 1, Operacion: "LEER", Parametros: []string{"1", "0x1000", "4"}},
		{Linea: 2, Operacion: "TICK", Parametros: []string{"3"}},
	}
	if err := NuevoEjecutor(kernel, 1).Ejecutar(script); err != nil {
		t.Fatalf("un rechazo del kernel no debe cortar el script: %v", err)
	}
	if len(kernel.llamadas) != 2 || kernel.llamadas[1].datos["cantidad"] != 3 {
		t.Fatalf("llamadas = %+v", kernel.llamadas)
	}

	malos := [][]Instruccion{
		{{Linea: 1, Operacion: "SALTAR"}},
		{{Linea: 1, Operacion: "LEER", Parametros: []string{"1"}}},
		{{Linea: 1, Operacion: "FIN", Parametros: []string{"uno"}}},
		{{Linea: 1, Operacion: "ADQUIRIR", Parametros: []string{"fantasma", "L"}, SegundoPlano: true}},
	}
	for _, script := range malos {
		if err := NuevoEjecutor(&kernelFalso{}, 1).Ejecutar(script); err == nil {
			t.Fatalf("se esperaba error para %v", script[0])
		}
	}
}

func TestSegundoPlanoSinLugarEspera(t *testing.T) {
	kernel := &kernelFalso{}
	script, err := cargarScript(escribirScript(t, `
& HILO a 1
& HILO b 2
& HILO c 3
ESPERAR
`))
	if err != nil {
		t.Fatalf("cargarScript: %v", err)
	}

	if err := NuevoEjecutor(kernel, 1).Ejecutar(script); err != nil {
		t.Fatalf("Ejecutar: %v", err)
	}
	if len(kernel.llamadas) != 3 {
		t.Fatalf("llamadas = %d, se esperaban 3", len(kernel.llamadas))
	}
}

func TestConectarConReintentos(t *testing.T) {
	modulo := utils.NuevoModulo("Kernel", "")
	modulo.RegistrarHandler(strconv.Itoa(utils.MensajeHandshake), "default", func(msg *utils.Mensaje) (interface{}, error) {
		return map[string]interface{}{"status": "OK", "modo": "PRIORIDADES"}, nil
	})
	servidor := httptest.NewServer(modulo.PrepararServidor("127.0.0.1", 0).Mux())

	cliente := utils.NewHTTPClient("127.0.0.1", 0, "CPU->Kernel")
	cliente.BaseURL = servidor.URL
	if err := conectarConReintentos(cliente, "Kernel", 1); err != nil {
		t.Fatalf("conectarConReintentos: %v", err)
	}

	servidor.Close()
	if err := conectarConReintentos(cliente, "Kernel", 1); err == nil {
		t.Fatal("se esperaba error con el kernel caído")
	}
}
