package postsale

import (
	"fmt"
	"strings"

	"incidencias/internal/domain/policy"
	"incidencias/internal/errs"
)

type Mode string

const (
	ModeAggregated Mode = "agregada"
	ModeIndividual Mode = "individual"
)

func (m Mode) Valid() bool {
	return m == ModeAggregated || m == ModeIndividual
}

// AggregatedCategory is the category of the single incidence an aggregated review creates.
const AggregatedCategory = "posventa"

// Draft is one incidence a review will create.
type Draft struct {
	Category      string
	Description   string
	WarrantyClass *policy.WarrantyClass
	ItemIDs       []uint64
}

// ClassLookup resolves a category to its warranty class, nil when unmatched.
type ClassLookup func(category string) *policy.WarrantyClass

// Plan turns the form's pending problem items into drafts. Items that already point at a
// generated incidence are skipped so an interrupted batch can be resumed.
func Plan(items []Item, mode Mode, classFor ClassLookup) ([]Draft, error) {
	if !mode.Valid() {
		return nil, errs.Validation("unknown review mode %q", mode)
	}

	pending := make([]Item, 0, len(items))
	for _, item := range ProblemItems(items) {
		if item.IncidenceID == nil {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	if mode == ModeIndividual {
		drafts := make([]Draft, 0, len(pending))
		for _, item := range pending {
			drafts = append(drafts, Draft{
				Category:    item.Category,
				Description: IndividualDescription(item),
				ItemIDs:     []uint64{item.ID},
			})
		}
		return drafts, nil
	}

	ids := make([]uint64, 0, len(pending))
	for _, item := range pending {
		ids = append(ids, item.ID)
	}
	return []Draft{{
		Category:      AggregatedCategory,
		Description:   AggregatedDescription(pending),
		WarrantyClass: DominantClass(pending, classFor),
		ItemIDs:       ids,
	}}, nil
}

func AggregatedDescription(items []Item) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		line := fmt.Sprintf("%s: %s", item.Category, item.Description)
		if item.Comment != "" {
			line += " — " + item.Comment
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func IndividualDescription(item Item) string {
	line := fmt.Sprintf("%s — %s", item.Category, item.Description)
	if item.Comment != "" {
		line += ": " + item.Comment
	}
	return line
}

// DominantClass is the most frequent warranty class among the items' categories. Ties go to the
// class encountered first in item order; nil when no category maps to a class.
func DominantClass(items []Item, classFor ClassLookup) *policy.WarrantyClass {
	counts := map[policy.WarrantyClass]int{}
	order := make([]policy.WarrantyClass, 0, 3)
	for _, item := range items {
		class := classFor(item.Category)
		if class == nil {
			continue
		}
		if _, seen := counts[*class]; !seen {
			order = append(order, *class)
		}
		counts[*class]++
	}

	var best *policy.WarrantyClass
	for _, class := range order {
		if best == nil || counts[class] > counts[*best] {
			chosen := class
			best = &chosen
		}
	}
	return best
}
