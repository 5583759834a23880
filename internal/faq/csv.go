// Package faq loads FAQ knowledge-base records from CSV source files.
// The required schema is a header row containing "Question" and "Answer"
// columns (case-sensitive, BOM/whitespace-trimmed before validation); the
// optional "Category" and "Subcategory" columns feed the decision-tree
// browse mode. Rows whose question or answer is empty after cleaning are
// silently skipped — they never reach the index.
package faq

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lightblue/fitbot-go/internal/textnorm"
)

// Record is one knowledge entry loaded from a source file.
type Record struct {
	// Question is the cleaned question text. Never empty.
	Question string

	// Answer is the cleaned answer text. Never empty.
	Answer string

	// Source is the provenance tag, typically the originating file name.
	Source string

	// Category is the optional top-level browse category. Empty when the
	// source has no Category column.
	Category string

	// Subcategory is the optional second-level browse grouping.
	Subcategory string
}

// Required column names. Matching is case-sensitive after trimming.
const (
	colQuestion    = "Question"
	colAnswer      = "Answer"
	colCategory    = "Category"
	colSubcategory = "Subcategory"
)

// LoadCSV reads and validates a FAQ CSV file. A missing file or a header
// without the required Question/Answer columns is a fatal error — the caller
// must not proceed to embedding with a malformed source. Rows with an empty
// question or answer after cleaning are skipped.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("faq: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := Parse(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("faq: %s: %w", path, err)
	}
	return records, nil
}

// Parse reads FAQ records from r. source is the provenance tag stamped on
// every record (for LoadCSV, the file's base name).
func Parse(r io.Reader, source string) ([]Record, error) {
	cr := csv.NewReader(r)
	// Some exports pad rows unevenly; validate fields ourselves.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		// Strip a UTF-8 BOM and surrounding whitespace before matching.
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		cols[name] = i
	}

	qi, ok := cols[colQuestion]
	if !ok {
		return nil, fmt.Errorf("missing required column %q (got: %v)", colQuestion, headerNames(cols))
	}
	ai, ok := cols[colAnswer]
	if !ok {
		return nil, fmt.Errorf("missing required column %q (got: %v)", colAnswer, headerNames(cols))
	}
	ci, hasCategory := cols[colCategory]
	si, hasSubcategory := cols[colSubcategory]

	var out []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		q := textnorm.Clean(field(row, qi))
		a := textnorm.Clean(field(row, ai))
		if q == "" || a == "" {
			continue
		}

		rec := Record{Question: q, Answer: a, Source: source}
		if hasCategory {
			rec.Category = textnorm.Clean(field(row, ci))
		}
		if hasSubcategory {
			rec.Subcategory = textnorm.Clean(field(row, si))
		}
		out = append(out, rec)
	}

	return out, nil
}

// field returns row[i], or empty string when the row is too short.
func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// headerNames returns the cleaned column names for error messages.
func headerNames(cols map[string]int) []string {
	names := make([]string, len(cols))
	for name, i := range cols {
		if i < len(names) {
			names[i] = name
		}
	}
	return names
}
