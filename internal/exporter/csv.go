package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"ctsales/internal/dataset"
)

// exportHeader is the column layout of exported files. It mirrors the
// raw input schema with the parsed coordinates split out.
var exportHeader = []string{
	"Serial Number",
	"List Year",
	"Date Recorded",
	"Town",
	"Address",
	"Assessed Value",
	"Sale Amount",
	"Sales Ratio",
	"Property Type",
	"Residential Type",
	"Longitude",
	"Latitude",
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	// BOMPrefix adds a UTF-8 BOM so Excel recognizes the encoding
	BOMPrefix bool
}

// WriteCSV writes the records to w in the export column layout.
func WriteCSV(w io.Writer, records []dataset.SaleRecord, options CSVOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, rec := range records {
		if err := writer.Write(recordRow(rec)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func recordRow(r dataset.SaleRecord) []string {
	row := []string{
		r.SerialNumber,
		strconv.Itoa(r.ListYear),
		r.DateRecorded.Format("2006-01-02"),
		r.Town,
		r.Address,
		r.AssessedValue.StringFixed(2),
		r.SaleAmount.StringFixed(2),
		"",
		r.PropertyType,
		r.ResidentialType,
		"",
		"",
	}
	if r.HasRatio {
		row[7] = r.SalesRatio.StringFixed(4)
	}
	if r.HasLocation {
		row[10] = strconv.FormatFloat(r.Longitude, 'f', -1, 64)
		row[11] = strconv.FormatFloat(r.Latitude, 'f', -1, 64)
	}
	return row
}
