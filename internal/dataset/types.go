package dataset

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SaleRecord is a single cleaned real-estate transaction. Every record
// retained in the canonical table satisfies the invariant: positive
// sale amount, a parseable recorded date within the plausible range,
// and a non-empty town.
type SaleRecord struct {
	SerialNumber    string          `json:"serial_number"`
	ListYear        int             `json:"list_year"`
	DateRecorded    time.Time       `json:"date_recorded"`
	Town            string          `json:"town"`
	Address         string          `json:"address"`
	AssessedValue   decimal.Decimal `json:"assessed_value"`
	SaleAmount      decimal.Decimal `json:"sale_amount"`
	SalesRatio      decimal.Decimal `json:"sales_ratio"`
	HasRatio        bool            `json:"has_ratio"`
	PropertyType    string          `json:"property_type"`
	ResidentialType string          `json:"residential_type,omitempty"`
	Longitude       float64         `json:"longitude,omitempty"`
	Latitude        float64         `json:"latitude,omitempty"`
	HasLocation     bool            `json:"has_location"`
}

// HasResidentialType reports whether the record carries a residential
// type label. Records without one are excluded from flow aggregation
// whenever a residential-type filter is active.
func (r SaleRecord) HasResidentialType() bool {
	return r.ResidentialType != ""
}

// IsValid checks the SaleRecord invariant enforced at load time.
func (r SaleRecord) IsValid() bool {
	return r.Town != "" &&
		r.SaleAmount.IsPositive() &&
		!r.DateRecorded.IsZero() &&
		r.DateRecorded.Year() >= MinPlausibleYear &&
		r.DateRecorded.Year() <= MaxPlausibleYear
}

// Plausible bounds for recorded dates and list years. Rows outside
// this range are treated as data-entry errors and dropped.
const (
	MinPlausibleYear = 2001
	MaxPlausibleYear = 2022
)

// Table is the canonical dataset: cleaned records plus the facet
// vocabularies derived from them. It is immutable after Load returns.
type Table struct {
	records          []SaleRecord
	years            []int
	towns            []string
	residentialTypes []string
	amountMin        decimal.Decimal
	amountMax        decimal.Decimal
	loadedAt         time.Time
}

// NewTable builds a table from already-cleaned records. Exposed so
// tests and the engine package can construct fixtures; production
// code goes through Load.
func NewTable(records []SaleRecord) *Table {
	t := &Table{
		records:  records,
		loadedAt: time.Now().UTC(),
	}
	t.buildFacets()
	return t
}

func (t *Table) buildFacets() {
	yearSet := map[int]struct{}{}
	townSet := map[string]struct{}{}
	typeSet := map[string]struct{}{}

	for i, r := range t.records {
		yearSet[r.ListYear] = struct{}{}
		townSet[r.Town] = struct{}{}
		if r.HasResidentialType() {
			typeSet[r.ResidentialType] = struct{}{}
		}
		if i == 0 {
			t.amountMin = r.SaleAmount
			t.amountMax = r.SaleAmount
			continue
		}
		if r.SaleAmount.LessThan(t.amountMin) {
			t.amountMin = r.SaleAmount
		}
		if r.SaleAmount.GreaterThan(t.amountMax) {
			t.amountMax = r.SaleAmount
		}
	}

	t.years = make([]int, 0, len(yearSet))
	for y := range yearSet {
		t.years = append(t.years, y)
	}
	sort.Ints(t.years)

	t.towns = make([]string, 0, len(townSet))
	for town := range townSet {
		t.towns = append(t.towns, town)
	}
	sort.Strings(t.towns)

	t.residentialTypes = make([]string, 0, len(typeSet))
	for rt := range typeSet {
		t.residentialTypes = append(t.residentialTypes, rt)
	}
	sort.Strings(t.residentialTypes)
}

// Len returns the number of retained records.
func (t *Table) Len() int { return len(t.records) }

// Records returns the canonical record slice. Callers must treat it
// as read-only; the table is shared across sessions.
func (t *Table) Records() []SaleRecord { return t.records }

// Years returns the distinct list years in ascending order.
func (t *Table) Years() []int { return t.years }

// Towns returns the distinct town names in ascending order.
func (t *Table) Towns() []string { return t.towns }

// ResidentialTypes returns the distinct residential type labels in
// ascending order. Records without a label do not contribute.
func (t *Table) ResidentialTypes() []string { return t.residentialTypes }

// AmountBounds returns the global min and max sale amount. Both are
// zero when the table is empty.
func (t *Table) AmountBounds() (decimal.Decimal, decimal.Decimal) {
	return t.amountMin, t.amountMax
}

// LoadedAt returns the UTC time the table was constructed.
func (t *Table) LoadedAt() time.Time { return t.loadedAt }

// LoadSummary accounts for every input row: kept, or dropped with the
// reason. Per-row failures are warnings, never fatal.
type LoadSummary struct {
	TotalRows        int `json:"total_rows"`
	Kept             int `json:"kept"`
	DroppedBadRow    int `json:"dropped_bad_row"`
	DroppedBadDate   int `json:"dropped_bad_date"`
	DroppedBadAmount int `json:"dropped_bad_amount"`
	DroppedNoTown    int `json:"dropped_no_town"`
}

// Dropped returns the total number of dropped rows.
func (s LoadSummary) Dropped() int {
	return s.DroppedBadRow + s.DroppedBadDate + s.DroppedBadAmount + s.DroppedNoTown
}
