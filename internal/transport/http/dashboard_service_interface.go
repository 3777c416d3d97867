package http

import (
	"context"
	"io"

	"ctsales/internal/dataset"
	"ctsales/internal/services"
)

// DashboardServiceInterface defines the contract the dashboard
// handler depends on. Kept as an interface so handler tests can
// substitute a mock.
type DashboardServiceInterface interface {
	Facets(ctx context.Context) services.Facets
	Summary(ctx context.Context) dataset.LoadSummary
	Query(ctx context.Context, req services.FilterRequest) (*services.QueryResult, error)
	Reset(ctx context.Context) *services.QueryResult
	Export(ctx context.Context, req services.FilterRequest, format string, w io.Writer) error
}
