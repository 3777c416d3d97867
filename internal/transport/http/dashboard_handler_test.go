package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "ctsales/internal/errors"
	"ctsales/internal/dataset"
	"ctsales/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testTable() *dataset.Table {
	mk := func(serial, town, rt string, year int, amount int64) dataset.SaleRecord {
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
	return dataset.NewTable([]dataset.SaleRecord{
		mk("1", "Hartford", "Single Family", 2020, 200000),
		mk("2", "Hartford", "Condo", 2020, 150000),
		mk("3", "Stamford", "Single Family", 2021, 900000),
	})
}

func newTestHandler(t *testing.T) *DashboardHandler {
	t.Helper()
	logger := testLogger()
	svc := services.NewDashboardServiceFromTable(testTable(), &dataset.LoadSummary{TotalRows: 3, Kept: 3}, logger)
	return NewDashboardHandler(svc, logger, apierrors.NewErrorHandler(logger, false))
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDashboardHandler_GetFacets(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/facets", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeResponse(t, rec)
	assert.Equal(t, "success", body["status"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["row_count"])
	assert.ElementsMatch(t, []interface{}{"Hartford", "Stamford"}, data["towns"])
	assert.ElementsMatch(t, []interface{}{"Condo", "Single Family"}, data["residential_types"])
}

func TestDashboardHandler_GetSummary(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeResponse(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["total_rows"])
	assert.Equal(t, float64(3), data["kept"])
	assert.Equal(t, float64(0), data["dropped"])
}

func TestDashboardHandler_Query(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedRows   float64
	}{
		{
			name:           "empty filter returns everything",
			body:           `{}`,
			expectedStatus: http.StatusOK,
			expectedRows:   3,
		},
		{
			name:           "town filter",
			body:           `{"towns":["Hartford"]}`,
			expectedStatus: http.StatusOK,
			expectedRows:   2,
		},
		{
			name:           "no matches",
			body:           `{"towns":["Greenwich"]}`,
			expectedStatus: http.StatusOK,
			expectedRows:   0,
		},
		{
			name:           "amount range",
			body:           `{"amount_min":160000,"amount_max":950000}`,
			expectedStatus: http.StatusOK,
			expectedRows:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(t)

			req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			handler.Routes().ServeHTTP(rec, req)

			require.Equal(t, tt.expectedStatus, rec.Code)

			data := decodeResponse(t, rec)["data"].(map[string]interface{})
			assert.Equal(t, tt.expectedRows, data["total_rows"])
		})
	}
}

func TestDashboardHandler_QueryBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"towns":`},
		{"bad weight", `{"weight":"bogus"}`},
		{"bad date format", `{"date_from":"06/15/2020"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(t)

			req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			handler.Routes().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeResponse(t, rec)
			assert.Equal(t, apierrors.TypeValidation, body["type"])
			assert.Equal(t, float64(http.StatusBadRequest), body["status"])
		})
	}
}

func TestDashboardHandler_Reset(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/reset", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeResponse(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["total_rows"])
	assert.Equal(t, float64(1), data["page"])
}

func TestDashboardHandler_ExportCSV(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/export?format=csv", strings.NewReader(`{"towns":["Hartford"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "Hartford")
	assert.NotContains(t, rec.Body.String(), "Stamford")
}

func TestDashboardHandler_ExportDefaultsToCSV(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/export", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
}

func TestDashboardHandler_ExportXLSX(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/export?format=xlsx", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())
}

func TestDashboardHandler_ExportInvalidFormat(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/export?format=pdf", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandler_ExportValidationErrorIsNotAnAttachment(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/export?format=csv", strings.NewReader(`{"date_from":"not-a-date"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
	assert.NotContains(t, rec.Header().Get("Content-Type"), "text/csv")

	body := decodeResponse(t, rec)
	assert.Equal(t, apierrors.TypeValidation, body["type"])
}

// MockDashboardService is a mock implementation of DashboardServiceInterface
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Facets(ctx context.Context) services.Facets {
	args := m.Called()
	return args.Get(0).(services.Facets)
}

func (m *MockDashboardService) Summary(ctx context.Context) dataset.LoadSummary {
	args := m.Called()
	return args.Get(0).(dataset.LoadSummary)
}

func (m *MockDashboardService) Query(ctx context.Context, req services.FilterRequest) (*services.QueryResult, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.QueryResult), args.Error(1)
}

func (m *MockDashboardService) Reset(ctx context.Context) *services.QueryResult {
	args := m.Called()
	return args.Get(0).(*services.QueryResult)
}

func (m *MockDashboardService) Export(ctx context.Context, req services.FilterRequest, format string, w io.Writer) error {
	args := m.Called(req, format)
	return args.Error(0)
}

func TestDashboardHandler_QueryInternalError(t *testing.T) {
	logger := testLogger()
	mockService := new(MockDashboardService)
	mockService.On("Query", mock.Anything).Return(nil, errors.New("boom"))

	handler := NewDashboardHandler(mockService, logger, apierrors.NewErrorHandler(logger, false))

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	mockService.AssertExpectations(t)
}
