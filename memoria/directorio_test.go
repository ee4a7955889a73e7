package memoria

import "testing"

func TestDirectorioInstalarYTraducir(t *testing.T) {
	d := NuevoDirectorio()

	if !d.Instalar(0x1000, 7, true) {
		t.Fatal("no se pudo instalar la página")
	}
	if d.Instalar(0x1000, 8, false) {
		t.Fatal("se instaló dos veces la misma página")
	}

	marco, escribible, presente := d.Traducir(0x1000)
	if !presente || marco != 7 || !escribible {
		t.Fatalf("Traducir = (%d, %v, %v)", marco, escribible, presente)
	}
	if _, _, presente := d.Traducir(0x2000); presente {
		t.Fatal("página no instalada aparece presente")
	}

	d.Quitar(0x1000)
	if _, _, presente := d.Traducir(0x1000); presente {
		t.Fatal("la página sigue presente luego de Quitar")
	}
}

func TestDirectorioBitsDeAcceso(t *testing.T) {
	d := NuevoDirectorio()
	d.Instalar(0x3000, 1, true)

	if d.Accedido(0x3000) || d.Sucio(0x3000) {
		t.Fatal("una página recién instalada no debe tener bits de acceso")
	}

	d.MarcarAcceso(0x3000, false)
	if !d.Accedido(0x3000) || d.Sucio(0x3000) {
		t.Fatal("una lectura marca sólo accedido")
	}

	d.MarcarAcceso(0x3000, true)
	d.LimpiarAccedido(0x3000)
	if d.Accedido(0x3000) || !d.Sucio(0x3000) {
		t.Fatal("LimpiarAccedido no debe tocar el bit de sucio")
	}
}
