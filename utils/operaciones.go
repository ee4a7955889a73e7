package utils

import (
	"fmt"
	"log/slog"
	"time"
)

// AplicarRetardo aplica un retardo simulado y lo registra
func AplicarRetardo(operacion string, duracionMs int) {
	if duracionMs <= 0 {
		return
	}
	slog.Debug("Aplicando retardo", "operación", operacion, "duración_ms", duracionMs)
	time.Sleep(time.Duration(duracionMs) * time.Millisecond)
}

// ExtraerEntero obtiene un campo numérico de los datos del mensaje.
// JSON decodifica los números como float64.
func ExtraerEntero(msg *Mensaje, clave string) (int, error) {
	datosMap, ok := msg.Datos.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("datos del mensaje con formato incorrecto")
	}
	valor, ok := datosMap[clave].(float64)
	if !ok {
		return 0, fmt.Errorf("campo %q no proporcionado o formato incorrecto", clave)
	}
	return int(valor), nil
}

// ExtraerEnteroOpcional es ExtraerEntero con valor por defecto
func ExtraerEnteroOpcional(msg *Mensaje, clave string, valorPorDefecto int) int {
	valor, err := ExtraerEntero(msg, clave)
	if err != nil {
		return valorPorDefecto
	}
	return valor
}

// ExtraerTexto obtiene un campo string de los datos del mensaje
func ExtraerTexto(msg *Mensaje, clave string) (string, error) {
	datosMap, ok := msg.Datos.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("datos del mensaje con formato incorrecto")
	}
	valor, ok := datosMap[clave].(string)
	if !ok {
		return "", fmt.Errorf("campo %q no proporcionado o formato incorrecto", clave)
	}
	return valor, nil
}

// ExtraerBooleano obtiene un campo bool de los datos del mensaje
func ExtraerBooleano(msg *Mensaje, clave string) bool {
	if datosMap, ok := msg.Datos.(map[string]interface{}); ok {
		if valor, ok := datosMap[clave].(bool); ok {
			return valor
		}
	}
	return false
}

// RespuestaError arma la respuesta de error que esperan los clientes
func RespuestaError(err error) map[string]interface{} {
	return map[string]interface{}{
		"error": err.Error(),
	}
}
