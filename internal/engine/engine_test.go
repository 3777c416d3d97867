package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctsales/internal/dataset"
)

func sale(serial, town, rt string, year int, amount int64) dataset.SaleRecord {
	return dataset.SaleRecord{
		SerialNumber:    serial,
		ListYear:        year,
		DateRecorded:    time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC),
		Town:            town,
		Address:         serial + " Main St",
		SaleAmount:      decimal.NewFromInt(amount),
		ResidentialType: rt,
	}
}

func located(r dataset.SaleRecord, lon, lat float64) dataset.SaleRecord {
	r.Longitude = lon
	r.Latitude = lat
	r.HasLocation = true
	return r
}

// fixture builds a small table covering both towns, a row without a
// residential type, and a geocoded row.
func fixture() *dataset.Table {
	return dataset.NewTable([]dataset.SaleRecord{
		located(sale("1", "Hartford", "Single Family", 2020, 200000), -72.67, 41.76),
		sale("2", "Hartford", "Condo", 2020, 150000),
		sale("3", "Hartford", "Condo", 2021, 175000),
		sale("4", "Stamford", "Single Family", 2021, 900000),
		sale("5", "Stamford", "", 2021, 300000),
	})
}

func TestApply_DefaultStateReturnsEverything(t *testing.T) {
	table := fixture()
	res := Apply(table, DefaultState(), WeightCount)

	assert.Len(t, res.Rows, table.Len())
	assert.Len(t, res.Points, 1, "only geocoded rows become map points")

	// row 5 has no residential type, so it stays out of the flows
	total := 0
	for _, f := range res.Flows {
		total += f.Count
	}
	assert.Equal(t, 4, total)
}

func TestApply_IsDeterministic(t *testing.T) {
	table := fixture()
	first := Apply(table, DefaultState(), WeightCount)
	second := Apply(table, DefaultState(), WeightCount)
	assert.Equal(t, first, second)
}

func TestApply_TownFilter(t *testing.T) {
	res := Apply(fixture(), FilterState{Towns: []string{"Stamford"}}, WeightCount)

	require.Len(t, res.Rows, 2)
	for _, r := range res.Rows {
		assert.Equal(t, "Stamford", r.Town)
	}
}

func TestApply_FilterLabelsAreNormalized(t *testing.T) {
	res := Apply(fixture(), FilterState{Towns: []string{" hartford "}}, WeightCount)
	assert.Len(t, res.Rows, 3)
}

func TestApply_NullResidentialTypeExclusion(t *testing.T) {
	table := fixture()

	// without a residential-type filter the null-type row passes
	res := Apply(table, FilterState{Towns: []string{"Stamford"}}, WeightCount)
	assert.Len(t, res.Rows, 2)

	// an active residential-type filter excludes it
	res = Apply(table, FilterState{
		Towns:            []string{"Stamford"},
		ResidentialTypes: []string{"Single Family"},
	}, WeightCount)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "4", res.Rows[0].SerialNumber)
}

func TestApply_FlowPartition(t *testing.T) {
	res := Apply(fixture(), DefaultState(), WeightCount)

	// every (town, type) pair appears exactly once
	seen := map[[2]string]bool{}
	for _, f := range res.Flows {
		key := [2]string{f.Town, f.ResidentialType}
		assert.False(t, seen[key], "duplicate edge %v", key)
		seen[key] = true
		assert.NotEmpty(t, f.ResidentialType)
	}
	assert.Len(t, res.Flows, 3)
}

func TestApply_FlowOrdering(t *testing.T) {
	res := Apply(fixture(), DefaultState(), WeightCount)
	require.Len(t, res.Flows, 3)

	// Hartford/Condo has count 2; the two count-1 edges tie and sort
	// by town then residential type
	assert.Equal(t, "Hartford", res.Flows[0].Town)
	assert.Equal(t, "Condo", res.Flows[0].ResidentialType)
	assert.Equal(t, 2, res.Flows[0].Count)

	assert.Equal(t, "Hartford", res.Flows[1].Town)
	assert.Equal(t, "Single Family", res.Flows[1].ResidentialType)

	assert.Equal(t, "Stamford", res.Flows[2].Town)
	assert.Equal(t, "Single Family", res.Flows[2].ResidentialType)
}

func TestApply_WeightModes(t *testing.T) {
	t.Run("count", func(t *testing.T) {
		res := Apply(fixture(), DefaultState(), WeightCount)
		for _, f := range res.Flows {
			assert.True(t, f.Weight.Equal(decimal.NewFromInt(int64(f.Count))))
		}
	})

	t.Run("volume", func(t *testing.T) {
		res := Apply(fixture(), DefaultState(), WeightVolume)
		require.NotEmpty(t, res.Flows)
		// Stamford/Single Family (900k) outweighs Hartford/Condo (325k)
		assert.Equal(t, "Stamford", res.Flows[0].Town)
		assert.True(t, res.Flows[0].Weight.Equal(decimal.NewFromInt(900000)))
		for _, f := range res.Flows {
			assert.True(t, f.Weight.Equal(f.Volume))
		}
	})

	t.Run("invalid mode falls back to count", func(t *testing.T) {
		res := Apply(fixture(), DefaultState(), WeightMode("bogus"))
		for _, f := range res.Flows {
			assert.True(t, f.Weight.Equal(decimal.NewFromInt(int64(f.Count))))
		}
	})
}

func TestApply_ListYearFilter(t *testing.T) {
	year := 2020
	res := Apply(fixture(), FilterState{ListYear: &year}, WeightCount)
	require.Len(t, res.Rows, 2)
	for _, r := range res.Rows {
		assert.Equal(t, 2020, r.ListYear)
	}
}

func TestApply_DateRange(t *testing.T) {
	from := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)

	res := Apply(fixture(), FilterState{DateFrom: &from, DateTo: &to}, WeightCount)
	assert.Len(t, res.Rows, 3)

	// boundary dates are inclusive
	exact := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	res = Apply(fixture(), FilterState{DateFrom: &exact, DateTo: &exact}, WeightCount)
	assert.Len(t, res.Rows, 3)
}

func TestApply_InvertedDateRangeIsUnrestricted(t *testing.T) {
	from := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	res := Apply(fixture(), FilterState{DateFrom: &from, DateTo: &to}, WeightCount)
	assert.Len(t, res.Rows, 5, "an inverted range degrades to no restriction")
}

func TestApply_AmountRange(t *testing.T) {
	min := decimal.NewFromInt(150000)
	max := decimal.NewFromInt(200000)

	res := Apply(fixture(), FilterState{AmountMin: &min, AmountMax: &max}, WeightCount)
	// 150k, 175k, and 200k are all inside the inclusive bounds
	assert.Len(t, res.Rows, 3)
}

func TestApply_InvertedAmountRangeIsUnrestricted(t *testing.T) {
	min := decimal.NewFromInt(500000)
	max := decimal.NewFromInt(100000)

	res := Apply(fixture(), FilterState{AmountMin: &min, AmountMax: &max}, WeightCount)
	assert.Len(t, res.Rows, 5)
}

func TestApply_EmptyResultIsNotAnError(t *testing.T) {
	res := Apply(fixture(), FilterState{Towns: []string{"Greenwich"}}, WeightCount)

	assert.NotNil(t, res.Rows)
	assert.NotNil(t, res.Flows)
	assert.NotNil(t, res.Points)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Flows)
	assert.Empty(t, res.Points)
}

func TestApply_EmptyTable(t *testing.T) {
	res := Apply(dataset.NewTable(nil), DefaultState(), WeightCount)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Flows)
	assert.Empty(t, res.Points)
}

func TestApply_MapPointFields(t *testing.T) {
	res := Apply(fixture(), DefaultState(), WeightCount)
	require.Len(t, res.Points, 1)

	p := res.Points[0]
	assert.Equal(t, "Hartford", p.Town)
	assert.Equal(t, "1 Main St", p.Label)
	assert.Equal(t, 2020, p.ListYear)
	assert.InDelta(t, -72.67, p.Longitude, 1e-9)
	assert.InDelta(t, 41.76, p.Latitude, 1e-9)
	assert.True(t, p.SaleAmount.Equal(decimal.NewFromInt(200000)))
}

func TestFilterState_IsDefault(t *testing.T) {
	assert.True(t, DefaultState().IsDefault())

	year := 2020
	assert.False(t, FilterState{ListYear: &year}.IsDefault())
	assert.False(t, FilterState{Towns: []string{"Hartford"}}.IsDefault())
}

func TestPage(t *testing.T) {
	rows := []dataset.SaleRecord{
		sale("1", "A", "", 2020, 1),
		sale("2", "B", "", 2020, 2),
		sale("3", "C", "", 2020, 3),
		sale("4", "D", "", 2020, 4),
		sale("5", "E", "", 2020, 5),
	}

	tests := []struct {
		name string
		page int
		size int
		want []string
	}{
		{"first page", 1, 2, []string{"1", "2"}},
		{"middle page", 2, 2, []string{"3", "4"}},
		{"short last page", 3, 2, []string{"5"}},
		{"past the end", 4, 2, nil},
		{"zero page", 0, 2, nil},
		{"zero size", 1, 0, nil},
		{"oversized page", 1, 100, []string{"1", "2", "3", "4", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Page(rows, tt.page, tt.size)
			var serials []string
			for _, r := range got {
				serials = append(serials, r.SerialNumber)
			}
			assert.Equal(t, tt.want, serials)
		})
	}
}

func TestAmountBounds(t *testing.T) {
	rows := []dataset.SaleRecord{
		sale("1", "A", "", 2020, 300),
		sale("2", "B", "", 2020, 100),
		sale("3", "C", "", 2020, 200),
	}

	min, max, ok := AmountBounds(rows)
	require.True(t, ok)
	assert.True(t, min.Equal(decimal.NewFromInt(100)))
	assert.True(t, max.Equal(decimal.NewFromInt(300)))

	_, _, ok = AmountBounds(nil)
	assert.False(t, ok)
}
