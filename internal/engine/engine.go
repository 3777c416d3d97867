package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"ctsales/internal/dataset"
)

// WeightMode selects how flow edges are weighted.
type WeightMode string

const (
	// WeightCount weighs each edge by the number of transactions.
	// This is the default mode.
	WeightCount WeightMode = "count"
	// WeightVolume weighs each edge by the summed sale amount.
	WeightVolume WeightMode = "volume"
)

// Valid reports whether the mode is one of the supported values.
func (m WeightMode) Valid() bool {
	return m == WeightCount || m == WeightVolume
}

// FlowEdge is one aggregated (town, residential type) pair feeding
// the Sankey diagram. Count is always populated; Volume carries the
// summed sale amount and Weight holds whichever of the two the
// requested mode selected.
type FlowEdge struct {
	Town            string          `json:"town"`
	ResidentialType string          `json:"residential_type"`
	Count           int             `json:"count"`
	Volume          decimal.Decimal `json:"volume"`
	Weight          decimal.Decimal `json:"weight"`
}

// MapPoint is a geocoded passing row for the map widget.
type MapPoint struct {
	Latitude        float64         `json:"latitude"`
	Longitude       float64         `json:"longitude"`
	Label           string          `json:"label"`
	Town            string          `json:"town"`
	SaleAmount      decimal.Decimal `json:"sale_amount"`
	ListYear        int             `json:"list_year"`
	ResidentialType string          `json:"residential_type,omitempty"`
}

// Result bundles the three derived views. All three are produced from
// the same predicate in a single pass, so they are mutually
// consistent by construction.
type Result struct {
	Rows   []dataset.SaleRecord `json:"rows"`
	Flows  []FlowEdge           `json:"flows"`
	Points []MapPoint           `json:"points"`
}

// Apply filters the canonical table with the given state and derives
// the table, Sankey, and map views. The table is read-only; the state
// is normalized first so malformed ranges degrade to unrestricted.
// An empty table yields empty views, not an error.
func Apply(t *dataset.Table, state FilterState, mode WeightMode) Result {
	if !mode.Valid() {
		mode = WeightCount
	}
	s := state.normalized()

	res := Result{
		Rows:   []dataset.SaleRecord{},
		Flows:  []FlowEdge{},
		Points: []MapPoint{},
	}

	type pairKey struct {
		town string
		rt   string
	}
	groups := make(map[pairKey]*FlowEdge)

	for _, r := range t.Records() {
		if !s.matches(r) {
			continue
		}
		res.Rows = append(res.Rows, r)

		if r.HasLocation {
			res.Points = append(res.Points, MapPoint{
				Latitude:        r.Latitude,
				Longitude:       r.Longitude,
				Label:           r.Address,
				Town:            r.Town,
				SaleAmount:      r.SaleAmount,
				ListYear:        r.ListYear,
				ResidentialType: r.ResidentialType,
			})
		}

		// Rows without a residential type carry no flow target and
		// stay out of the Sankey aggregation.
		if !r.HasResidentialType() {
			continue
		}
		key := pairKey{town: r.Town, rt: r.ResidentialType}
		edge, ok := groups[key]
		if !ok {
			edge = &FlowEdge{
				Town:            r.Town,
				ResidentialType: r.ResidentialType,
				Volume:          decimal.Zero,
			}
			groups[key] = edge
		}
		edge.Count++
		edge.Volume = edge.Volume.Add(r.SaleAmount)
	}

	for _, edge := range groups {
		switch mode {
		case WeightVolume:
			edge.Weight = edge.Volume
		default:
			edge.Weight = decimal.NewFromInt(int64(edge.Count))
		}
		res.Flows = append(res.Flows, *edge)
	}

	// Deterministic ordering for stable rendering: descending weight,
	// ties broken alphabetically by town then residential type.
	sort.Slice(res.Flows, func(i, j int) bool {
		a, b := res.Flows[i], res.Flows[j]
		if cmp := a.Weight.Cmp(b.Weight); cmp != 0 {
			return cmp > 0
		}
		if a.Town != b.Town {
			return a.Town < b.Town
		}
		return a.ResidentialType < b.ResidentialType
	})

	return res
}

// Page returns the requested page of rows, 1-based. Out-of-range
// pages return an empty slice rather than an error, so the table
// widget can clamp freely.
func Page(rows []dataset.SaleRecord, page, size int) []dataset.SaleRecord {
	if page < 1 || size < 1 {
		return []dataset.SaleRecord{}
	}
	start := (page - 1) * size
	if start >= len(rows) {
		return []dataset.SaleRecord{}
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// AmountBounds returns the min and max sale amount across the rows,
// used to re-range the price slider after a selection change. ok is
// false for an empty slice.
func AmountBounds(rows []dataset.SaleRecord) (min, max decimal.Decimal, ok bool) {
	if len(rows) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	min, max = rows[0].SaleAmount, rows[0].SaleAmount
	for _, r := range rows[1:] {
		if r.SaleAmount.LessThan(min) {
			min = r.SaleAmount
		}
		if r.SaleAmount.GreaterThan(max) {
			max = r.SaleAmount
		}
	}
	return min, max, true
}
