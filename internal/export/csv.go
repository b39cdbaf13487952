// Package export renders record sets and nested reports as CSV, with
// optional pivot aggregation. Output is built in full before being returned
// so a failure never yields a truncated document.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// Record is one exportable row
type Record = map[string]interface{}

// Options controls CSV rendering
type Options struct {
	// Fields fixes the column set and order; empty means auto-detect
	// (sorted union of all record keys)
	Fields []string
	// NoHeader suppresses the header row
	NoHeader bool
}

// Export renders records as CSV and returns the complete buffer
func Export(records []Record, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := ExportStream(&buf, records, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportStream writes records as CSV to w, for large datasets
func ExportStream(w io.Writer, records []Record, opts Options) error {
	fields := opts.Fields
	if len(fields) == 0 {
		fields = detectFields(records)
	}

	cw := csv.NewWriter(w)
	if !opts.NoHeader {
		if err := cw.Write(fields); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}

	row := make([]string, len(fields))
	for i, record := range records {
		for j, field := range fields {
			row[j] = formatValue(record[field])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv output: %w", err)
	}
	return nil
}

// ReportSection is one titled block of rows within a report
type ReportSection struct {
	Name    string
	Fields  []string
	Records []Record
}

// Report is a nested export: a title followed by titled sections,
// each with its own column set
type Report struct {
	Title    string
	Sections []ReportSection
}

// ExportReport renders a report with section headers separating blocks
func ExportReport(report Report) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if report.Title != "" {
		if err := cw.Write([]string{report.Title}); err != nil {
			return nil, fmt.Errorf("failed to write report title: %w", err)
		}
		if err := cw.Write([]string{}); err != nil {
			return nil, fmt.Errorf("failed to write report spacer: %w", err)
		}
	}

	for _, section := range report.Sections {
		if section.Name != "" {
			if err := cw.Write([]string{section.Name}); err != nil {
				return nil, fmt.Errorf("failed to write section header: %w", err)
			}
		}
		cw.Flush()
		if err := ExportStream(&buf, section.Records, Options{Fields: section.Fields}); err != nil {
			return nil, fmt.Errorf("failed to export section %q: %w", section.Name, err)
		}
		if err := cw.Write([]string{}); err != nil {
			return nil, fmt.Errorf("failed to write section spacer: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush report output: %w", err)
	}
	return buf.Bytes(), nil
}

// detectFields returns the sorted union of keys across all records
func detectFields(records []Record) []string {
	seen := make(map[string]struct{})
	for _, record := range records {
		for key := range record {
			seen[key] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for key := range seen {
		fields = append(fields, key)
	}
	sort.Strings(fields)
	return fields
}

// formatValue renders a cell value
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
