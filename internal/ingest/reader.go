package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadableFile indicates that no parse strategy produced a usable table.
var ErrUnreadableFile = errors.New("unreadable file")

// Table is a parsed spreadsheet or delimited file: a header row plus data
// rows. Rows may be ragged; cell access goes through Cell which guards
// short rows.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

func newTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, exists := t.index[c]; !exists {
			t.index[c] = i
		}
	}
	return t
}

// Cell returns the value of the named column in the given row, or "" when
// the column is absent or the row is shorter than the header.
func (t *Table) Cell(row []string, column string) string {
	idx, ok := t.index[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// ReadAny parses an uploaded export into a Table. Spreadsheet extensions go
// through excelize; everything else is treated as delimited text with
// delimiter inference.
func ReadAny(name string, data []byte) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		return readWorkbook(data)
	default:
		return readDelimited(data)
	}
}

// delimiterCandidates is the inference order for delimited files. The first
// delimiter that yields more than one header column wins.
var delimiterCandidates = []rune{',', ';', '\t'}

func readDelimited(data []byte) (*Table, error) {
	for _, sep := range delimiterCandidates {
		tbl, err := parseDelimited(data, sep)
		if err != nil {
			continue
		}
		if len(tbl.Columns) > 1 {
			return tbl, nil
		}
	}
	// Single-column files are legitimate, so fall back to a plain comma
	// parse before giving up.
	tbl, err := parseDelimited(data, ',')
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	return tbl, nil
}

func parseDelimited(data []byte, sep rune) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(stripBOM(data)))
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty file")
	}

	header := make([]string, len(records[0]))
	for i, c := range records[0] {
		header[i] = strings.TrimSpace(c)
	}
	return newTable(header, records[1:]), nil
}

func readWorkbook(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableFile)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrUnreadableFile, sheets[0])
	}

	header := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		header[i] = strings.TrimSpace(c)
	}
	return newTable(header, rows[1:]), nil
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}
