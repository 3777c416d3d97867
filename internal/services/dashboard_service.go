package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"ctsales/internal/dataset"
	"ctsales/internal/engine"
	"ctsales/internal/exporter"
	"ctsales/internal/infrastructure"
)

// Pagination limits for the table view
const (
	DefaultPageSize = 25
	MaxPageSize     = 500
)

// FilterRequest is the transport-facing filter selection. Empty
// selections and absent bounds mean "no restriction". Dates use the
// 2006-01-02 layout.
type FilterRequest struct {
	Towns            []string `json:"towns" validate:"omitempty,dive,required"`
	ResidentialTypes []string `json:"residential_types" validate:"omitempty,dive,required"`
	ListYear         *int     `json:"list_year" validate:"omitempty,gte=2001,lte=2022"`
	DateFrom         string   `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo           string   `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
	AmountMin        *float64 `json:"amount_min"`
	AmountMax        *float64 `json:"amount_max"`
	Weight           string   `json:"weight" validate:"omitempty,oneof=count volume"`
	Page             int      `json:"page" validate:"omitempty,gte=1"`
	PageSize         int      `json:"page_size" validate:"omitempty,gte=1,lte=500"`
}

// toState converts the request into an engine FilterState. Date
// strings have already passed validation, so parse errors cannot
// occur here; a malformed range is repaired by the engine itself.
func (r FilterRequest) toState() engine.FilterState {
	state := engine.FilterState{
		Towns:            r.Towns,
		ResidentialTypes: r.ResidentialTypes,
		ListYear:         r.ListYear,
	}

	if r.DateFrom != "" {
		if d, err := time.Parse("2006-01-02", r.DateFrom); err == nil {
			state.DateFrom = &d
		}
	}
	if r.DateTo != "" {
		if d, err := time.Parse("2006-01-02", r.DateTo); err == nil {
			state.DateTo = &d
		}
	}

	if r.AmountMin != nil {
		min := decimal.NewFromFloat(*r.AmountMin)
		state.AmountMin = &min
	}
	if r.AmountMax != nil {
		max := decimal.NewFromFloat(*r.AmountMax)
		state.AmountMax = &max
	}

	return state
}

func (r FilterRequest) weightMode() engine.WeightMode {
	if r.Weight == "" {
		return engine.WeightCount
	}
	return engine.WeightMode(r.Weight)
}

// Bounds is a min/max sale amount pair
type Bounds struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// QueryResult bundles the three derived views plus pagination
// metadata for the table widget.
type QueryResult struct {
	Rows         []dataset.SaleRecord `json:"rows"`
	TotalRows    int                  `json:"total_rows"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	TotalPages   int                  `json:"total_pages"`
	Flows        []engine.FlowEdge    `json:"flows"`
	Points       []engine.MapPoint    `json:"points"`
	Weight       engine.WeightMode    `json:"weight"`
	AmountBounds *Bounds              `json:"amount_bounds,omitempty"`
}

// Facets describes the selectable values derived from the canonical
// table, used to populate the filter widgets and the reset snapshot.
type Facets struct {
	Years            []int           `json:"years"`
	Towns            []string        `json:"towns"`
	ResidentialTypes []string        `json:"residential_types"`
	AmountMin        decimal.Decimal `json:"amount_min"`
	AmountMax        decimal.Decimal `json:"amount_max"`
	RowCount         int             `json:"row_count"`
	LoadedAt         time.Time       `json:"loaded_at"`
}

// DashboardService owns the canonical table and serves every
// dashboard operation. The table is immutable, so the service is safe
// for concurrent use; each request carries its own filter selection.
type DashboardService struct {
	table    *dataset.Table
	summary  *dataset.LoadSummary
	baseline engine.Result
	logger   *slog.Logger
	metrics  *infrastructure.DashboardMetrics
	validate *validator.Validate
}

// NewDashboardService loads the dataset from path and captures the
// unfiltered baseline the reset control depends on. A load failure is
// fatal: no partial dashboard is produced.
func NewDashboardService(path string, logger *slog.Logger) (*DashboardService, error) {
	table, summary, err := dataset.Load(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return NewDashboardServiceFromTable(table, summary, logger), nil
}

// NewDashboardServiceFromTable builds the service around an existing
// table. Used by tests and by the offline importer.
func NewDashboardServiceFromTable(table *dataset.Table, summary *dataset.LoadSummary, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		table:    table,
		summary:  summary,
		baseline: engine.Apply(table, engine.DefaultState(), engine.WeightCount),
		logger:   logger.With(slog.String("service", "dashboard")),
		validate: validator.New(),
	}
}

// SetMetrics attaches dashboard instruments. Optional; the service
// works without them.
func (s *DashboardService) SetMetrics(m *infrastructure.DashboardMetrics) {
	s.metrics = m
}

// Facets returns the selectable filter values.
func (s *DashboardService) Facets(ctx context.Context) Facets {
	min, max := s.table.AmountBounds()
	return Facets{
		Years:            s.table.Years(),
		Towns:            s.table.Towns(),
		ResidentialTypes: s.table.ResidentialTypes(),
		AmountMin:        min,
		AmountMax:        max,
		RowCount:         s.table.Len(),
		LoadedAt:         s.table.LoadedAt(),
	}
}

// Summary returns the load-time row accounting.
func (s *DashboardService) Summary(ctx context.Context) dataset.LoadSummary {
	if s.summary == nil {
		return dataset.LoadSummary{TotalRows: s.table.Len(), Kept: s.table.Len()}
	}
	return *s.summary
}

// Query validates the request, applies the filter, and returns the
// three derived views with the requested table page.
func (s *DashboardService) Query(ctx context.Context, req FilterRequest) (*QueryResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	start := time.Now()
	result := engine.Apply(s.table, req.toState(), req.weightMode())

	s.recordQuery(ctx, req.weightMode(), len(result.Rows), time.Since(start))

	return s.paginate(result, req.weightMode(), req.Page, req.PageSize), nil
}

// Reset returns the unfiltered baseline captured at load time. By
// construction this is identical to Query with an empty request,
// which is the contract the reset control depends on.
func (s *DashboardService) Reset(ctx context.Context) *QueryResult {
	if s.metrics != nil {
		s.metrics.ResetsTotal.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "filters reset to defaults")
	return s.paginate(s.baseline, engine.WeightCount, 1, DefaultPageSize)
}

// ExportFormats supported by Export
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Export applies the filter and streams the matching rows to w in
// the requested format.
func (s *DashboardService) Export(ctx context.Context, req FilterRequest, format string, w io.Writer) error {
	if format != FormatCSV && format != FormatXLSX {
		return fmt.Errorf("%w: %s", ErrInvalidExportFormat, format)
	}
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	result := engine.Apply(s.table, req.toState(), req.weightMode())

	if s.metrics != nil {
		s.metrics.ExportsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("format", format)))
	}
	s.logger.InfoContext(ctx, "exporting filtered rows",
		slog.String("format", format),
		slog.Int("rows", len(result.Rows)))

	switch format {
	case FormatXLSX:
		return exporter.WriteXLSX(w, result.Rows)
	default:
		return exporter.WriteCSV(w, result.Rows, exporter.CSVOptions{BOMPrefix: true})
	}
}

func (s *DashboardService) recordQuery(ctx context.Context, mode engine.WeightMode, rows int, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("weight", string(mode)))
	s.metrics.QueriesTotal.Add(ctx, 1, attrs)
	s.metrics.QueryDuration.Record(ctx, elapsed.Seconds(), attrs)
	s.metrics.QueryRowsReturned.Record(ctx, int64(rows), attrs)
}

// paginate clamps the page parameters and assembles the response.
// Flow edges and map points are never paginated; only the table rows
// are.
func (s *DashboardService) paginate(result engine.Result, mode engine.WeightMode, page, size int) *QueryResult {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	totalPages := (len(result.Rows) + size - 1) / size
	if totalPages == 0 {
		totalPages = 1
	}

	out := &QueryResult{
		Rows:       engine.Page(result.Rows, page, size),
		TotalRows:  len(result.Rows),
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
		Flows:      result.Flows,
		Points:     result.Points,
		Weight:     mode,
	}

	if min, max, ok := engine.AmountBounds(result.Rows); ok {
		out.AmountBounds = &Bounds{Min: min, Max: max}
	}

	return out
}
