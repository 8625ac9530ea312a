// Package policy holds the static legal tables that drive priority, warranty coverage and SLA
// deadlines. Tables are versioned with the code (policy.toml) and are immutable once loaded.
package policy

import (
	_ "embed"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"incidencias/internal/errs"
)

type Priority string

const (
	PriorityAlta  Priority = "alta"
	PriorityMedia Priority = "media"
	PriorityBaja  Priority = "baja"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityAlta, PriorityMedia, PriorityBaja:
		return true
	default:
		return false
	}
}

type WarrantyClass string

const (
	ClassEstructura    WarrantyClass = "estructura"
	ClassInstalaciones WarrantyClass = "instalaciones"
	ClassTerminaciones WarrantyClass = "terminaciones"
)

func (c WarrantyClass) Valid() bool {
	switch c {
	case ClassEstructura, ClassInstalaciones, ClassTerminaciones:
		return true
	default:
		return false
	}
}

// SLADays is the business-day budget for first attention and full resolution.
type SLADays struct {
	Attention  int `toml:"attention"`
	Resolution int `toml:"resolution"`
}

//go:embed policy.toml
var defaultPolicy []byte

type rawPolicy struct {
	Version         int                 `toml:"version"`
	DefaultPriority string              `toml:"default_priority"`
	SLA             map[string]SLADays  `toml:"sla"`
	WarrantyTerms   map[string]int      `toml:"warranty_terms"`
	ClassPriority   map[string]string   `toml:"class_priority"`
	Priority        map[string][]string `toml:"priority"`
	Warranty        map[string][]string `toml:"warranty"`
}

// Policy is read-only after Load; accessors never expose the underlying maps.
type Policy struct {
	version         int
	defaultPriority Priority
	sla             map[Priority]SLADays
	terms           map[WarrantyClass]int
	classPriority   map[WarrantyClass]Priority
	priorityByCat   map[string]Priority
	classByCat      map[string]WarrantyClass
}

// Default loads the embedded policy table.
func Default() (*Policy, error) {
	return Load(defaultPolicy)
}

func Load(raw []byte) (*Policy, error) {
	var in rawPolicy
	if err := toml.Unmarshal(raw, &in); err != nil {
		return nil, errs.InconsistentPolicy("decode policy table: %v", err)
	}

	p := &Policy{
		version:         in.Version,
		defaultPriority: Priority(strings.TrimSpace(in.DefaultPriority)),
		sla:             make(map[Priority]SLADays, len(in.SLA)),
		terms:           make(map[WarrantyClass]int, len(in.WarrantyTerms)),
		classPriority:   make(map[WarrantyClass]Priority, len(in.ClassPriority)),
		priorityByCat:   make(map[string]Priority),
		classByCat:      make(map[string]WarrantyClass),
	}

	if !p.defaultPriority.Valid() {
		return nil, errs.InconsistentPolicy("default_priority %q is not a priority", in.DefaultPriority)
	}

	for key, days := range in.SLA {
		priority := Priority(key)
		if !priority.Valid() {
			return nil, errs.InconsistentPolicy("sla row %q is not a priority", key)
		}
		if days.Attention <= 0 || days.Resolution <= days.Attention {
			return nil, errs.InconsistentPolicy("sla row %q needs 0 < attention < resolution", key)
		}
		p.sla[priority] = days
	}
	for _, priority := range []Priority{PriorityAlta, PriorityMedia, PriorityBaja} {
		if _, ok := p.sla[priority]; !ok {
			return nil, errs.InconsistentPolicy("sla row %q is missing", priority)
		}
	}

	for key, years := range in.WarrantyTerms {
		class := WarrantyClass(key)
		if !class.Valid() || years <= 0 {
			return nil, errs.InconsistentPolicy("warranty term %q=%d is invalid", key, years)
		}
		p.terms[class] = years
	}
	for key, value := range in.ClassPriority {
		class, priority := WarrantyClass(key), Priority(value)
		if !class.Valid() || !priority.Valid() {
			return nil, errs.InconsistentPolicy("class_priority %q=%q is invalid", key, value)
		}
		p.classPriority[class] = priority
	}
	for _, class := range []WarrantyClass{ClassEstructura, ClassInstalaciones, ClassTerminaciones} {
		if _, ok := p.terms[class]; !ok {
			return nil, errs.InconsistentPolicy("warranty term for %q is missing", class)
		}
		if _, ok := p.classPriority[class]; !ok {
			return nil, errs.InconsistentPolicy("class_priority for %q is missing", class)
		}
	}

	for key, categories := range in.Priority {
		priority := Priority(key)
		if !priority.Valid() {
			return nil, errs.InconsistentPolicy("priority group %q is not a priority", key)
		}
		for _, category := range categories {
			normalized := NormalizeCategory(category)
			if prev, dup := p.priorityByCat[normalized]; dup && prev != priority {
				return nil, errs.InconsistentPolicy("category %q listed under %s and %s", normalized, prev, priority)
			}
			p.priorityByCat[normalized] = priority
		}
	}
	for key, categories := range in.Warranty {
		class := WarrantyClass(key)
		if !class.Valid() {
			return nil, errs.InconsistentPolicy("warranty group %q is not a class", key)
		}
		for _, category := range categories {
			normalized := NormalizeCategory(category)
			if prev, dup := p.classByCat[normalized]; dup && prev != class {
				return nil, errs.InconsistentPolicy("category %q listed under %s and %s", normalized, prev, class)
			}
			p.classByCat[normalized] = class
		}
	}

	return p, nil
}

func (p *Policy) Version() int { return p.version }

func (p *Policy) DefaultPriority() Priority { return p.defaultPriority }

// PriorityFor looks up an already normalized category in the priority table.
func (p *Policy) PriorityFor(normalized string) (Priority, bool) {
	priority, ok := p.priorityByCat[normalized]
	return priority, ok
}

// ClassFor looks up an already normalized category in the warranty table.
func (p *Policy) ClassFor(normalized string) (WarrantyClass, bool) {
	class, ok := p.classByCat[normalized]
	return class, ok
}

func (p *Policy) PriorityForClass(class WarrantyClass) (Priority, bool) {
	priority, ok := p.classPriority[class]
	return priority, ok
}

// SLA returns the day budget for priority; unknown priorities get the default priority's row.
func (p *Policy) SLA(priority Priority) SLADays {
	if days, ok := p.sla[priority]; ok {
		return days
	}
	return p.sla[p.defaultPriority]
}

func (p *Policy) WarrantyYears(class WarrantyClass) (int, bool) {
	years, ok := p.terms[class]
	return years, ok
}

// Categories returns the number of categories known to the priority table.
func (p *Policy) Categories() int { return len(p.priorityByCat) }
