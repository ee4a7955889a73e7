package planificador

import "fmt"

// Fijo es un número en punto fijo con formato 17.14 (17 bits enteros, 14 de fracción).
// Las conversiones a entero son explícitas: Entero trunca hacia cero y
// Redondeado redondea al más cercano.
type Fijo int32

const (
	bitsFraccion      = 14
	unoFijo      Fijo = 1 << bitsFraccion
)

// DeEntero convierte n a punto fijo
func DeEntero(n int) Fijo {
	return Fijo(n) * unoFijo
}

// DeFraccion construye num/den en punto fijo
func DeFraccion(num, den int) Fijo {
	return DeEntero(num).EntreEntero(den)
}

// Entero convierte a entero redondeando hacia cero
func (x Fijo) Entero() int {
	return int(x / unoFijo)
}

// Redondeado convierte a entero redondeando al más cercano
func (x Fijo) Redondeado() int {
	if x >= 0 {
		return int((x + unoFijo/2) / unoFijo)
	}
	return int((x - unoFijo/2) / unoFijo)
}

func (x Fijo) Menos(y Fijo) Fijo {
	return x - y
}

func (x Fijo) MasEntero(n int) Fijo {
	return x + DeEntero(n)
}

func (x Fijo) MenosEntero(n int) Fijo {
	return x - DeEntero(n)
}

// Por multiplica dos valores en punto fijo usando 64 bits intermedios
func (x Fijo) Por(y Fijo) Fijo {
	return Fijo(int64(x) * int64(y) / int64(unoFijo))
}

// Entre divide dos valores en punto fijo usando 64 bits intermedios
func (x Fijo) Entre(y Fijo) Fijo {
	return Fijo(int64(x) * int64(unoFijo) / int64(y))
}

func (x Fijo) PorEntero(n int) Fijo {
	return x * Fijo(n)
}

func (x Fijo) EntreEntero(n int) Fijo {
	return x / Fijo(n)
}

func (x Fijo) String() string {
	return fmt.Sprintf("%.4f", float64(x)/float64(unoFijo))
}
