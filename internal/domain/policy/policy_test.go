package policy

import (
	"errors"
	"testing"

	"incidencias/internal/errs"
)

func TestDefaultPolicyLoads(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if p.Categories() < 70 {
		t.Fatalf("Categories() = %d, want >= 70", p.Categories())
	}

	want := map[Priority]SLADays{
		PriorityAlta:  {Attention: 2, Resolution: 5},
		PriorityMedia: {Attention: 5, Resolution: 10},
		PriorityBaja:  {Attention: 10, Resolution: 20},
	}
	for priority, days := range want {
		if got := p.SLA(priority); got != days {
			t.Fatalf("SLA(%s) = %#v, want %#v", priority, got, days)
		}
	}
	if got := p.SLA("urgente"); got != want[PriorityMedia] {
		t.Fatalf("SLA(unknown) = %#v, want media row", got)
	}

	for class, years := range map[WarrantyClass]int{ClassEstructura: 10, ClassInstalaciones: 5, ClassTerminaciones: 3} {
		if got, ok := p.WarrantyYears(class); !ok || got != years {
			t.Fatalf("WarrantyYears(%s) = %d, %v", class, got, ok)
		}
	}
}

func TestLoadRejectsInconsistentTables(t *testing.T) {
	base := `
default_priority = "media"
[sla.alta]
attention = 2
resolution = 5
[sla.media]
attention = 5
resolution = 10
[sla.baja]
attention = 10
resolution = 20
[warranty_terms]
estructura = 10
instalaciones = 5
terminaciones = 3
[class_priority]
estructura = "alta"
instalaciones = "media"
terminaciones = "baja"
`
	if _, err := Load([]byte(base)); err != nil {
		t.Fatalf("Load(base) error = %v", err)
	}

	testCases := map[string]string{
		"unknown default":    `default_priority = "urgente"`,
		"unknown group":      base + "[priority]\nurgente = [\"gas\"]\n",
		"duplicate category": base + "[priority]\nalta = [\"Gas\"]\nbaja = [\"gas\"]\n",
		"missing sla row":    `default_priority = "media"` + "\n[sla.alta]\nattention = 2\nresolution = 5\n",
		"bad class":          base + "[warranty]\nacabados = [\"pintura\"]\n",
		"broken toml":        "default_priority = ",
	}

	for name, raw := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(raw))
			if !errors.Is(err, errs.ErrInconsistentPolicy) {
				t.Fatalf("Load() error = %v, want ErrInconsistentPolicy", err)
			}
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	testCases := map[string]string{
		"  Instalación Eléctrica ": "instalacion electrica",
		"GASFITERÍA":               "gasfiteria",
		"Cerámica":                 "ceramica",
		"pingüino":                 "pinguino",
		"":                         "",
	}
	for input, want := range testCases {
		if got := NormalizeCategory(input); got != want {
			t.Fatalf("NormalizeCategory(%q) = %q, want %q", input, got, want)
		}
	}
}
