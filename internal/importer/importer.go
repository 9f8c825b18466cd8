// Package importer parses uploaded lead sheets (CSV or XLSX), validates the
// required columns and inserts the rows one by one.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/geocoder89/leadhub/internal/domain/lead"
	"github.com/xuri/excelize/v2"
)

// RequiredColumns are the exact header names every import file must carry.
var RequiredColumns = []string{
	"OrganizationName",
	"ContactPersonName",
	"ContactDetails",
	"Address",
	"Email",
	"SourceType",
}

const PreviewRows = 5

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, upload a .csv or .xlsx file")
	ErrEmptyFile         = errors.New("file has no header row")
)

// MissingColumnsError rejects a whole file before anything is inserted.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// Row is one lead line of an import or export file.
type Row struct {
	OrganizationName  string `csv:"OrganizationName" json:"organizationName"`
	ContactPersonName string `csv:"ContactPersonName" json:"contactPersonName"`
	ContactDetails    string `csv:"ContactDetails" json:"contactDetails"`
	Address           string `csv:"Address" json:"address"`
	Email             string `csv:"Email" json:"email"`
	SourceType        string `csv:"SourceType" json:"sourceType"`

	// Line is where the row starts in the uploaded file, header is line 1.
	Line int `csv:"-" json:"line"`
}

func (r Row) Lead(now time.Time) lead.Lead {
	return lead.Lead{
		OrganizationName:  r.OrganizationName,
		ContactPersonName: r.ContactPersonName,
		ContactDetails:    r.ContactDetails,
		Address:           r.Address,
		Email:             r.Email,
		SourceType:        r.SourceType,
		CreatedAt:         now,
	}
}

type Sheet struct {
	Columns []string `json:"columns"`
	Missing []string `json:"missing"`
	Rows    []Row    `json:"-"`
}

func (s Sheet) Validate() error {
	if len(s.Missing) > 0 {
		return &MissingColumnsError{Missing: s.Missing}
	}
	return nil
}

func (s Sheet) Preview() []Row {
	return s.Rows[:min(PreviewRows, len(s.Rows))]
}

// Parse reads the file into a Sheet. Missing columns are reported on the Sheet,
// not as an error, so a preview can still show what was found.
func Parse(filename string, r io.Reader) (Sheet, error) {
	br := bufio.NewReader(r)

	format, err := detectFormat(filename, br)
	if err != nil {
		return Sheet{}, err
	}

	var records []record
	switch format {
	case "xlsx":
		records, err = readXLSX(br)
	default:
		records, err = readCSV(br)
	}
	if err != nil {
		return Sheet{}, err
	}

	return buildSheet(records)
}

func detectFormat(filename string, br *bufio.Reader) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return "csv", nil
	case ".xlsx", ".xlsm":
		return "xlsx", nil
	case "":
		// no extension: xlsx files are zip archives
		magic, _ := br.Peek(4)
		if bytes.Equal(magic, []byte("PK\x03\x04")) {
			return "xlsx", nil
		}
		return "csv", nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// record is one raw line of the file and the line it starts on.
type record struct {
	line   int
	fields []string
}

func readCSV(r io.Reader) ([]record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are padded later
	reader.LazyQuotes = true

	var records []record
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		// blank lines are skipped by the reader, so count from the record itself
		line, _ := reader.FieldPos(0)
		records = append(records, record{line: line, fields: fields})
	}
	return records, nil
}

func readXLSX(r io.Reader) ([]record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx sheet %q: %w", sheets[0], err)
	}

	// GetRows keeps empty rows in the middle, so the index is the sheet row
	records := make([]record, 0, len(rows))
	for i, fields := range rows {
		records = append(records, record{line: i + 1, fields: fields})
	}
	return records, nil
}

func buildSheet(records []record) (Sheet, error) {
	if len(records) == 0 {
		return Sheet{}, ErrEmptyFile
	}

	header := make([]string, len(records[0].fields))
	index := make(map[string]int, len(header))
	for i, h := range records[0].fields {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	sheet := Sheet{Columns: header, Missing: make([]string, 0), Rows: make([]Row, 0, len(records)-1)}
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			sheet.Missing = append(sheet.Missing, col)
		}
	}

	cell := func(rec []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	for _, r := range records[1:] {
		rec := r.fields
		if isBlank(rec) {
			continue
		}
		sheet.Rows = append(sheet.Rows, Row{
			OrganizationName:  cell(rec, "OrganizationName"),
			ContactPersonName: cell(rec, "ContactPersonName"),
			ContactDetails:    cell(rec, "ContactDetails"),
			Address:           cell(rec, "Address"),
			Email:             cell(rec, "Email"),
			SourceType:        lead.NormalizeSourceType(cell(rec, "SourceType")),
			Line:              r.line,
		})
	}

	return sheet, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type Inserter interface {
	Create(ctx context.Context, l lead.Lead) (lead.Lead, error)
}

// RowError aborts an import part way. Rows before Line stay inserted.
type RowError struct {
	Line     int // Row.Line of the failing row
	Inserted int
	Err      error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("import aborted at line %d after %d inserted rows: %v", e.Line, e.Inserted, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Import validates the sheet then inserts each row individually. There is no
// transaction: a failing row stops the import and keeps what was inserted.
func Import(ctx context.Context, store Inserter, sheet Sheet) (int, error) {
	if err := sheet.Validate(); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	inserted := 0

	for _, row := range sheet.Rows {
		if _, err := store.Create(ctx, row.Lead(now)); err != nil {
			return inserted, &RowError{Line: row.Line, Inserted: inserted, Err: err}
		}
		inserted++
	}

	return inserted, nil
}
