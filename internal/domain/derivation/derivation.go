// Package derivation maps a reported category to priority and warranty coverage.
package derivation

import (
	"time"

	"incidencias/internal/domain/policy"
	"incidencias/internal/errs"
)

// Basis records which lookup step produced a priority.
type Basis string

const (
	BasisCategory Basis = "categoria"
	BasisWarranty Basis = "garantia"
	BasisDefault  Basis = "defecto"
)

type Derivation struct {
	Category      string
	Priority      policy.Priority
	WarrantyClass *policy.WarrantyClass
	Basis         Basis
}

type Deriver struct {
	policy *policy.Policy
}

func NewDeriver(p *policy.Policy) *Deriver {
	return &Deriver{policy: p}
}

func Normalize(category string) string {
	return policy.NormalizeCategory(category)
}

// Derive resolves priority through the priority table, then the warranty table, then the default.
// The warranty class is reported whenever the warranty table knows the category.
func (d *Deriver) Derive(category string) (Derivation, error) {
	normalized := Normalize(category)
	out := Derivation{
		Category:      normalized,
		WarrantyClass: d.classFor(normalized),
	}

	if priority, ok := d.policy.PriorityFor(normalized); ok {
		out.Priority, out.Basis = priority, BasisCategory
	} else if out.WarrantyClass != nil {
		priority, ok := d.policy.PriorityForClass(*out.WarrantyClass)
		if !ok {
			return Derivation{}, errs.InconsistentPolicy("warranty class %q has no priority", *out.WarrantyClass)
		}
		out.Priority, out.Basis = priority, BasisWarranty
	} else {
		out.Priority, out.Basis = d.policy.DefaultPriority(), BasisDefault
	}

	if !out.Priority.Valid() {
		return Derivation{}, errs.InconsistentPolicy("category %q derived priority %q", normalized, out.Priority)
	}
	return out, nil
}

// WarrantyClassFor is the direct warranty-table lookup, independent of priority; nil when unmatched.
func (d *Deriver) WarrantyClassFor(category string) *policy.WarrantyClass {
	return d.classFor(Normalize(category))
}

func (d *Deriver) classFor(normalized string) *policy.WarrantyClass {
	class, ok := d.policy.ClassFor(normalized)
	if !ok {
		return nil
	}
	return &class
}

// WarrantyExpiry is the delivery date plus the class term, as a UTC calendar date.
func (d *Deriver) WarrantyExpiry(delivery *time.Time, class *policy.WarrantyClass) *time.Time {
	if delivery == nil || class == nil {
		return nil
	}
	years, ok := d.policy.WarrantyYears(*class)
	if !ok {
		return nil
	}

	y, m, day := delivery.UTC().Date()
	expiry := time.Date(y+years, m, day, 0, 0, 0, 0, time.UTC)
	return &expiry
}

// WarrantyValid reports whether coverage still holds at asOf (expiry day inclusive); nil when
// the expiry cannot be computed.
func (d *Deriver) WarrantyValid(delivery *time.Time, class *policy.WarrantyClass, asOf time.Time) *bool {
	expiry := d.WarrantyExpiry(delivery, class)
	if expiry == nil {
		return nil
	}

	endOfDay := expiry.AddDate(0, 0, 1).Add(-time.Nanosecond)
	valid := !endOfDay.Before(asOf)
	return &valid
}
