// Package exporter serializes filtered sale records for download,
// either as CSV or as an Excel workbook. Writers stream to an
// io.Writer so handlers can send the file straight to the response.
package exporter
