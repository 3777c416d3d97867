package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for fatal load failures.
var (
	ErrFileNotFound   = errors.New("dataset file not found")
	ErrSchemaMismatch = errors.New("dataset header schema mismatch")
	ErrEmptyFile      = errors.New("dataset file is empty")
)

// DataLoadError wraps a fatal loader failure with the offending path.
// Per-row parse failures never produce one; they are absorbed into
// the LoadSummary.
type DataLoadError struct {
	Path string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load dataset %s: %v", e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// Required columns of the raw CSV. Column order is not significant;
// names are matched case-insensitively after trimming. The Location
// column is optional since older extracts omit geocoding.
var requiredColumns = []string{
	"serial number",
	"list year",
	"date recorded",
	"town",
	"address",
	"assessed value",
	"sale amount",
	"sales ratio",
	"property type",
	"residential type",
}

const locationColumn = "location"

// pointRe matches the WKT location format "POINT (lon lat)".
var pointRe = regexp.MustCompile(`^POINT \((-?\d+(?:\.\d+)?) (-?\d+(?:\.\d+)?)\)$`)

// Accepted layouts for the Date Recorded column.
var dateLayouts = []string{"01/02/2006", "2006-01-02"}

// Load reads the raw sales CSV at path and returns the canonical
// table plus an accounting of dropped rows. It fails only when the
// file is missing or unreadable, or when the header does not carry
// the expected schema.
func Load(path string, logger *slog.Logger) (*Table, *LoadSummary, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, &DataLoadError{Path: path, Err: ErrFileNotFound}
		}
		return nil, nil, &DataLoadError{Path: path, Err: err}
	}
	defer f.Close()

	table, summary, err := load(f, logger)
	if err != nil {
		return nil, nil, &DataLoadError{Path: path, Err: err}
	}

	logger.Info("dataset loaded",
		slog.String("path", path),
		slog.Int("total_rows", summary.TotalRows),
		slog.Int("kept", summary.Kept),
		slog.Int("dropped", summary.Dropped()))

	return table, summary, nil
}

func load(r io.Reader, logger *slog.Logger) (*Table, *LoadSummary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, nil, err
	}

	summary := &LoadSummary{}
	var records []SaleRecord

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		summary.TotalRows++
		if err != nil {
			summary.DroppedBadRow++
			logger.Debug("dropping malformed csv row",
				slog.Int("row", summary.TotalRows),
				slog.String("error", err.Error()))
			continue
		}

		rec, reason := parseRow(row, cols)
		if reason != "" {
			switch reason {
			case dropBadDate:
				summary.DroppedBadDate++
			case dropBadAmount:
				summary.DroppedBadAmount++
			case dropNoTown:
				summary.DroppedNoTown++
			default:
				summary.DroppedBadRow++
			}
			logger.Debug("dropping invalid row",
				slog.Int("row", summary.TotalRows),
				slog.String("reason", reason))
			continue
		}

		records = append(records, rec)
		summary.Kept++
	}

	return NewTable(records), summary, nil
}

// mapColumns resolves header names to column indices and verifies the
// required schema is present.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s",
			ErrSchemaMismatch, strings.Join(missing, ", "))
	}

	return cols, nil
}

// Row drop reasons, reported through the LoadSummary.
const (
	dropBadDate   = "unparseable or implausible date"
	dropBadAmount = "missing or non-positive sale amount"
	dropNoTown    = "missing town"
)

func parseRow(row []string, cols map[string]int) (SaleRecord, string) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	town := NormalizeLabel(field("town"))
	if town == "" {
		return SaleRecord{}, dropNoTown
	}

	date, ok := parseDate(field("date recorded"))
	if !ok {
		return SaleRecord{}, dropBadDate
	}

	amount, ok := parseCurrency(field("sale amount"))
	if !ok || !amount.IsPositive() {
		return SaleRecord{}, dropBadAmount
	}

	rec := SaleRecord{
		SerialNumber:    field("serial number"),
		Town:            town,
		Address:         field("address"),
		DateRecorded:    date,
		SaleAmount:      amount,
		PropertyType:    NormalizeLabel(field("property type")),
		ResidentialType: NormalizeLabel(field("residential type")),
	}

	if year, err := strconv.Atoi(field("list year")); err == nil {
		rec.ListYear = year
	} else {
		rec.ListYear = date.Year()
	}

	if assessed, ok := parseCurrency(field("assessed value")); ok {
		rec.AssessedValue = assessed
		// Recompute the ratio from the typed values rather than
		// trusting the file's derived column.
		rec.SalesRatio = assessed.DivRound(amount, 4)
		rec.HasRatio = true
	}

	if lon, lat, ok := parsePoint(field(locationColumn)); ok {
		rec.Longitude = lon
		rec.Latitude = lat
		rec.HasLocation = true
	}

	return rec, ""
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			if d.Year() < MinPlausibleYear || d.Year() > MaxPlausibleYear {
				return time.Time{}, false
			}
			return d, true
		}
	}
	return time.Time{}, false
}

func parseCurrency(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", ""))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parsePoint(s string) (lon, lat float64, ok bool) {
	m := pointRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	lat, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	return lon, lat, true
}

// NormalizeLabel trims whitespace and title-cases a categorical label
// so that variants like "HARTFORD" and " hartford " collapse to the
// fixed vocabulary form "Hartford".
func NormalizeLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	words := strings.Split(strings.ToLower(s), " ")
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
