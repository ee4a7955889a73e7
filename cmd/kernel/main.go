package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

func main() {
	utils.InicializarLogger("INFO", "kernel")
	utils.InfoLog.Info("Kernel iniciando", "args", os.Args)

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Uso: %s <archivo_configuracion>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ejemplo: %s configs/kernel.json\n", os.Args[0])
		os.Exit(1)
	}
	configPath := os.Args[1]

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		utils.ErrorLog.Error("El archivo de configuración no existe", "archivo", configPath)
		os.Exit(1)
	}

	if err := inicializarKernel(configPath); err != nil {
		utils.ErrorLog.Error("Error durante la inicialización del Kernel", "error", err)
		os.Exit(1)
	}
	kernelModulo.IniciarServidor(kernelConfig.IPKernel, kernelConfig.PortKernel)
	iniciarTimer()

	utils.InfoLog.Info("Kernel listo y esperando conexiones")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	utils.InfoLog.Info("Señal recibida. Finalizando Kernel")
	detenerTimer()
	if err := memoriaVirtual.Cerrar(); err != nil {
		utils.ErrorLog.Error("Error liberando memoria", "error", err)
	}
	os.Exit(0)
}
