package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"ctsales/internal/dataset"
)

// FilterState is the current set of user-chosen restrictions. An
// empty selection or nil bound on a dimension means "no restriction",
// matching the behavior of multi-select widgets that start empty.
type FilterState struct {
	Towns            []string         `json:"towns,omitempty"`
	ResidentialTypes []string         `json:"residential_types,omitempty"`
	ListYear         *int             `json:"list_year,omitempty"`
	DateFrom         *time.Time       `json:"date_from,omitempty"`
	DateTo           *time.Time       `json:"date_to,omitempty"`
	AmountMin        *decimal.Decimal `json:"amount_min,omitempty"`
	AmountMax        *decimal.Decimal `json:"amount_max,omitempty"`
}

// DefaultState returns the all-inclusive selection. Applying it must
// reproduce the unfiltered baseline.
func DefaultState() FilterState {
	return FilterState{}
}

// IsDefault reports whether the state imposes no restriction at all.
func (s FilterState) IsDefault() bool {
	return len(s.Towns) == 0 && len(s.ResidentialTypes) == 0 &&
		s.ListYear == nil &&
		s.DateFrom == nil && s.DateTo == nil &&
		s.AmountMin == nil && s.AmountMax == nil
}

// normalized repairs malformed ranges. An inverted date or amount
// range is a UI-correction concern, not a data error, so it degrades
// to "no restriction" instead of failing the request. Selection sets
// are normalized to the dataset's label vocabulary.
func (s FilterState) normalized() FilterState {
	out := FilterState{
		ListYear: s.ListYear,
		DateFrom: s.DateFrom,
		DateTo:   s.DateTo,
	}

	for _, town := range s.Towns {
		if t := dataset.NormalizeLabel(town); t != "" {
			out.Towns = append(out.Towns, t)
		}
	}
	for _, rt := range s.ResidentialTypes {
		if t := dataset.NormalizeLabel(rt); t != "" {
			out.ResidentialTypes = append(out.ResidentialTypes, t)
		}
	}

	if s.DateFrom != nil && s.DateTo != nil && s.DateFrom.After(*s.DateTo) {
		out.DateFrom, out.DateTo = nil, nil
	}

	if s.AmountMin != nil {
		min := *s.AmountMin
		out.AmountMin = &min
	}
	if s.AmountMax != nil {
		max := *s.AmountMax
		out.AmountMax = &max
	}
	if out.AmountMin != nil && out.AmountMax != nil && out.AmountMin.GreaterThan(*out.AmountMax) {
		out.AmountMin, out.AmountMax = nil, nil
	}

	return out
}

// matches evaluates the filter predicate for a single record. All
// dimensions are conjunctive.
func (s FilterState) matches(r dataset.SaleRecord) bool {
	if len(s.Towns) > 0 && !contains(s.Towns, r.Town) {
		return false
	}

	if len(s.ResidentialTypes) > 0 {
		// A record with no residential type cannot match a specific
		// selection, so it only passes when the filter is unrestricted.
		if !r.HasResidentialType() || !contains(s.ResidentialTypes, r.ResidentialType) {
			return false
		}
	}

	if s.ListYear != nil && r.ListYear != *s.ListYear {
		return false
	}

	if s.DateFrom != nil && r.DateRecorded.Before(*s.DateFrom) {
		return false
	}
	if s.DateTo != nil && r.DateRecorded.After(*s.DateTo) {
		return false
	}

	if s.AmountMin != nil && r.SaleAmount.LessThan(*s.AmountMin) {
		return false
	}
	if s.AmountMax != nil && r.SaleAmount.GreaterThan(*s.AmountMax) {
		return false
	}

	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
