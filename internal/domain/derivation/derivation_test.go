package derivation

import (
	"testing"
	"time"

	"incidencias/internal/domain/policy"
)

func newTestDeriver(t *testing.T) *Deriver {
	t.Helper()
	p, err := policy.Default()
	if err != nil {
		t.Fatalf("policy.Default() error = %v", err)
	}
	return NewDeriver(p)
}

func classPtr(c policy.WarrantyClass) *policy.WarrantyClass { return &c }

func TestDerive(t *testing.T) {
	d := newTestDeriver(t)

	testCases := []struct {
		category string
		priority policy.Priority
		class    *policy.WarrantyClass
		basis    Basis
	}{
		{category: "gas", priority: policy.PriorityAlta, class: classPtr(policy.ClassInstalaciones), basis: BasisCategory},
		{category: "  Instalación Eléctrica ", priority: policy.PriorityAlta, class: classPtr(policy.ClassInstalaciones), basis: BasisCategory},
		{category: "Pintura", priority: policy.PriorityBaja, class: classPtr(policy.ClassTerminaciones), basis: BasisCategory},
		{category: "impermeabilización", priority: policy.PriorityAlta, class: classPtr(policy.ClassEstructura), basis: BasisWarranty},
		{category: "red humeda", priority: policy.PriorityMedia, class: classPtr(policy.ClassInstalaciones), basis: BasisWarranty},
		{category: "Quincallería", priority: policy.PriorityBaja, class: classPtr(policy.ClassTerminaciones), basis: BasisWarranty},
		{category: "humedad", priority: policy.PriorityMedia, class: nil, basis: BasisCategory},
		{category: "posventa", priority: policy.PriorityMedia, class: nil, basis: BasisDefault},
		{category: "", priority: policy.PriorityMedia, class: nil, basis: BasisDefault},
	}

	for _, testCase := range testCases {
		t.Run(testCase.category, func(t *testing.T) {
			got, err := d.Derive(testCase.category)
			if err != nil {
				t.Fatalf("Derive() error = %v", err)
			}
			if got.Priority != testCase.priority || got.Basis != testCase.basis {
				t.Fatalf("Derive() = %#v, want priority=%s basis=%s", got, testCase.priority, testCase.basis)
			}
			switch {
			case testCase.class == nil && got.WarrantyClass != nil:
				t.Fatalf("WarrantyClass = %s, want nil", *got.WarrantyClass)
			case testCase.class != nil && (got.WarrantyClass == nil || *got.WarrantyClass != *testCase.class):
				t.Fatalf("WarrantyClass = %v, want %s", got.WarrantyClass, *testCase.class)
			}
		})
	}
}

func TestDeriveFallsBackToWarrantyTable(t *testing.T) {
	raw := `
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
[warranty]
estructura = ["losa"]
`
	p, err := policy.Load([]byte(raw))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := NewDeriver(p).Derive("Losa")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if got.Priority != policy.PriorityAlta || got.Basis != BasisWarranty {
		t.Fatalf("Derive() = %#v", got)
	}
}

func TestWarrantyClassFor(t *testing.T) {
	d := newTestDeriver(t)
	if got := d.WarrantyClassFor("GAS"); got == nil || *got != policy.ClassInstalaciones {
		t.Fatalf("WarrantyClassFor(GAS) = %v", got)
	}
	if got := d.WarrantyClassFor("humedad"); got != nil {
		t.Fatalf("WarrantyClassFor(humedad) = %s, want nil", *got)
	}
}

func TestWarrantyExpiry(t *testing.T) {
	d := newTestDeriver(t)

	delivered := time.Date(2020, time.March, 15, 18, 45, 0, 0, time.UTC)
	got := d.WarrantyExpiry(&delivered, classPtr(policy.ClassEstructura))
	if got == nil || !got.Equal(time.Date(2030, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("WarrantyExpiry(estructura) = %v", got)
	}

	gasDelivery := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	got = d.WarrantyExpiry(&gasDelivery, d.WarrantyClassFor("gas"))
	if got == nil || got.Format("2006-01-02") != "2029-01-10" {
		t.Fatalf("WarrantyExpiry(gas) = %v, want 2029-01-10", got)
	}

	if d.WarrantyExpiry(nil, classPtr(policy.ClassEstructura)) != nil {
		t.Fatalf("WarrantyExpiry(nil delivery) should be nil")
	}
	if d.WarrantyExpiry(&delivered, nil) != nil {
		t.Fatalf("WarrantyExpiry(nil class) should be nil")
	}
}

func TestWarrantyValidRoundTrip(t *testing.T) {
	d := newTestDeriver(t)

	for _, class := range []policy.WarrantyClass{policy.ClassEstructura, policy.ClassInstalaciones, policy.ClassTerminaciones} {
		delivered := time.Date(2021, time.June, 30, 0, 0, 0, 0, time.UTC)
		expiry := d.WarrantyExpiry(&delivered, &class)
		if expiry == nil {
			t.Fatalf("WarrantyExpiry(%s) = nil", class)
		}

		onExpiry := d.WarrantyValid(&delivered, &class, *expiry)
		if onExpiry == nil || !*onExpiry {
			t.Fatalf("WarrantyValid(%s, expiry) = %v, want true", class, onExpiry)
		}
		lastMoment := d.WarrantyValid(&delivered, &class, expiry.Add(23*time.Hour+59*time.Minute))
		if lastMoment == nil || !*lastMoment {
			t.Fatalf("WarrantyValid(%s, expiry end of day) = %v, want true", class, lastMoment)
		}
		nextDay := d.WarrantyValid(&delivered, &class, expiry.AddDate(0, 0, 1))
		if nextDay == nil || *nextDay {
			t.Fatalf("WarrantyValid(%s, expiry+1d) = %v, want false", class, nextDay)
		}
	}

	if d.WarrantyValid(nil, classPtr(policy.ClassEstructura), time.Now()) != nil {
		t.Fatalf("WarrantyValid(nil delivery) should be nil")
	}
}
