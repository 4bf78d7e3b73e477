// Package sheet reads recipient rows from uploaded spreadsheets.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mailblast/mailblast/internal/model"
)

// ErrUnsupportedFormat is returned for file types other than CSV and XLSX.
var ErrUnsupportedFormat = errors.New("sheet: unsupported file format")

// Sheet is a parsed recipient table.
type Sheet struct {
	Columns []string
	Rows    []model.Row
}

// Parse reads the table from r, choosing the reader by the file name extension.
// The header row must contain an "email" column; otherwise a *model.ValidationError is returned.
func Parse(filename string, r io.Reader) (*Sheet, error) {
	var (
		records [][]string
		err     error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		records, err = readCSV(r)
	case ".xlsx", ".xlsm":
		records, err = readXLSX(r)
	default:
		return nil, &model.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("%v: %q (upload .csv or .xlsx)", ErrUnsupportedFormat, filepath.Ext(filename)),
		}
	}
	if err != nil {
		return nil, err
	}

	return build(records)
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sheet: failed to read file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &model.ValidationError{Field: "file", Message: fmt.Sprintf("invalid CSV: %v", err)}
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &model.ValidationError{Field: "file", Message: fmt.Sprintf("invalid spreadsheet: %v", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &model.ValidationError{Field: "file", Message: "spreadsheet has no sheets"}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("sheet: failed to read rows: %w", err)
	}
	return rows, nil
}

func build(records [][]string) (*Sheet, error) {
	if len(records) == 0 {
		return nil, &model.ValidationError{Field: "file", Message: "file is empty"}
	}

	columns := headerNames(records[0])
	hasEmail := false
	for _, c := range columns {
		if c == model.EmailColumn {
			hasEmail = true
			break
		}
	}
	if !hasEmail {
		return nil, &model.ValidationError{Field: "file", Message: `the file must have a column named "email"`}
	}

	s := &Sheet{Columns: columns, Rows: make([]model.Row, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(model.Row, len(columns))
		for i, c := range columns {
			if c == "" {
				continue
			}
			if i < len(rec) {
				row[c] = strings.TrimSpace(rec[i])
			} else {
				row[c] = ""
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

// headerNames trims header cells and disambiguates duplicates as name.1, name.2.
// Blank header cells yield an empty name and the column is ignored.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			continue
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			names[i] = fmt.Sprintf("%s.%d", h, n+1)
			continue
		}
		seen[h] = 0
		names[i] = h
	}
	return names
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
