package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
)

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

func (d Dataset) record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOption tweaks CSV output.
type CSVOption func(*CSVExporter)

// WithExcelBOM prefixes the output with a UTF-8 byte order mark so
// spreadsheet tools keep accented student names intact.
func WithExcelBOM() CSVOption {
	return func(e *CSVExporter) { e.bom = true }
}

// CSVExporter renders a Dataset as RFC 4180 CSV with a header line.
type CSVExporter struct {
	bom bool
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, errors.New("csv requires at least one header")
	}
	var buf bytes.Buffer
	if e.bom {
		buf.Write(utf8BOM)
	}
	w := csv.NewWriter(&buf)
	rows := make([][]string, 0, len(data.Rows)+1)
	rows = append(rows, data.Headers)
	for _, row := range data.Rows {
		rows = append(rows, data.record(row))
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
