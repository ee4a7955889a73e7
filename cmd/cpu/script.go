package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Instruccion es una línea del script. Las que empiezan con & corren en
// segundo plano hasta el próximo ESPERAR.
type Instruccion struct {
	Linea        int
	Operacion    string
	Parametros   []string
	SegundoPlano bool
}

func (i Instruccion) String() string {
	return strings.TrimSpace(i.Operacion + " " + strings.Join(i.Parametros, " "))
}

// cargarScript lee un script ignorando líneas vacías y comentarios (#)
func cargarScript(ruta string) ([]Instruccion, error) {
	archivo, err := os.Open(ruta)
	if err != nil {
		return nil, fmt.Errorf("error al abrir script: %w", err)
	}
	defer archivo.Close()

	var script []Instruccion
	scanner := bufio.NewScanner(archivo)
	for linea := 1; scanner.Scan(); linea++ {
		instruccion, ok := parsearLinea(scanner.Text())
		if !ok {
			continue
		}
		instruccion.Linea = linea
		script = append(script, instruccion)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error al leer script: %w", err)
	}
	return script, nil
}

func parsearLinea(texto string) (Instruccion, bool) {
	if i := strings.Index(texto, "#"); i >= 0 {
		texto = texto[:i]
	}
	texto = strings.TrimSpace(texto)
	if texto == "" {
		return Instruccion{}, false
	}

	var instruccion Instruccion
	if strings.HasPrefix(texto, "&") {
		instruccion.SegundoPlano = true
		texto = strings.TrimSpace(texto[1:])
	}

	partes := strings.Fields(texto)
	if len(partes) == 0 {
		return Instruccion{}, false
	}
	instruccion.Operacion = strings.ToUpper(partes[0])
	instruccion.Parametros = partes[1:]
	return instruccion, true
}
