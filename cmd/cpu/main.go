package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

var kernelClient *utils.HTTPClient

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Error: Uso: ./cpu <script> [archivo_config_opcional]")
		os.Exit(1)
	}
	rutaScript := os.Args[1]

	rutaConfig := filepath.Join("configs", "cpu.json")
	if len(os.Args) >= 3 {
		rutaConfig = os.Args[2]
	}
	if _, err := os.Stat(rutaConfig); os.IsNotExist(err) {
		fmt.Printf("Error: El archivo de configuración '%s' no existe\n", rutaConfig)
		os.Exit(1)
	}

	utils.InicializarLogger("INFO", "CPU")
	config = utils.CargarConfiguracion[CPUConfig](rutaConfig)
	utils.InicializarLogger(config.LogLevel, "CPU")

	kernelClient = utils.NewHTTPClient(config.IPKernel, config.PortKernel, "CPU->Kernel")
	if err := conectarConReintentos(kernelClient, "Kernel", config.ReintentosKernel); err != nil {
		utils.ErrorLog.Error("No se pudo conectar con el Kernel", "error", err)
		os.Exit(1)
	}

	script, err := cargarScript(rutaScript)
	if err != nil {
		utils.ErrorLog.Error("Error cargando script", "archivo", rutaScript, "error", err)
		os.Exit(1)
	}

	ejecutor := NuevoEjecutor(kernelClient, config.HilosConcurrentes)
	if err := ejecutor.Ejecutar(script); err != nil {
		utils.ErrorLog.Error("Script interrumpido", "error", err)
		os.Exit(1)
	}
	utils.InfoLog.Info("Script completado", "instrucciones", len(script))
}

func conectarConReintentos(c *utils.HTTPClient, nombreModulo string, intentos int) error {
	if intentos <= 0 {
		intentos = 5
	}
	utils.InfoLog.Info("Iniciando conexión", "destino", nombreModulo)

	for i := 1; i <= intentos; i++ {
		err := c.VerificarConexion()
		if err == nil {
			var respuesta map[string]interface{}
			respuesta, err = c.Solicitar(utils.MensajeHandshake, map[string]interface{}{"tipo": "CPU"})
			if err == nil {
				utils.InfoLog.Info("Conexión establecida", "destino", nombreModulo, "modo", respuesta["modo"])
				return nil
			}
		}

		utils.InfoLog.Warn("Reintentando conexión",
			"destino", nombreModulo,
			"intento", i,
			"error", err,
			"próximo_en", "2s")
		time.Sleep(2 * time.Second)
	}
	return fmt.Errorf("sin respuesta de %s luego de %d intentos", nombreModulo, intentos)
}
