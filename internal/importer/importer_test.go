package importer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/geocoder89/leadhub/internal/domain/lead"
	"github.com/xuri/excelize/v2"
)

type fakeInserter struct {
	rows   []lead.Lead
	failAt int // 1-based call number that fails, 0 never
	calls  int
}

func (f *fakeInserter) Create(_ context.Context, l lead.Lead) (lead.Lead, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return lead.Lead{}, errors.New("db down")
	}
	l.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, l)
	return l, nil
}

const fullHeader = "OrganizationName,ContactPersonName,ContactDetails,Address,Email,SourceType\n"

func TestImport_TwoRows(t *testing.T) {
	data := fullHeader +
		"Acme Corp,Jane Roe,555-0101,1 Main St,jane@acme.test,bankers\n" +
		"Globex,John Doe,555-0102,2 Side St,john@globex.test,Social Media\n"

	sheet, err := Parse("leads.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	store := &fakeInserter{}
	n, err := Import(context.Background(), store, sheet)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 || len(store.rows) != 2 {
		t.Fatalf("expected 2 inserts, got n=%d rows=%d", n, len(store.rows))
	}
	if store.rows[0].SourceType != "Bankers" {
		t.Fatalf("source type not normalized: %q", store.rows[0].SourceType)
	}
	if store.rows[1].Email != "john@globex.test" {
		t.Fatalf("unexpected email %q", store.rows[1].Email)
	}
}

func TestImport_MissingColumnInsertsNothing(t *testing.T) {
	data := "OrganizationName,ContactPersonName,ContactDetails,Address,SourceType\n" +
		"Acme Corp,Jane Roe,555-0101,1 Main St,Bankers\n"

	sheet, err := Parse("leads.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	store := &fakeInserter{}
	n, err := Import(context.Background(), store, sheet)

	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if len(missing.Missing) != 1 || missing.Missing[0] != "Email" {
		t.Fatalf("expected Email reported missing, got %v", missing.Missing)
	}
	if n != 0 || store.calls != 0 {
		t.Fatalf("expected zero inserts, got n=%d calls=%d", n, store.calls)
	}
}

func TestImport_AbortKeepsEarlierRows(t *testing.T) {
	data := fullHeader +
		"A,a,1,x,a@x.test,Bankers\n" +
		"B,b,2,y,b@y.test,Bankers\n" +
		"C,c,3,z,c@z.test,Bankers\n"

	sheet, err := Parse("leads.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	store := &fakeInserter{failAt: 2}
	n, err := Import(context.Background(), store, sheet)

	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("expected RowError, got %v", err)
	}
	if n != 1 || rowErr.Inserted != 1 || rowErr.Line != 3 {
		t.Fatalf("unexpected abort state n=%d err=%+v", n, rowErr)
	}
	if store.calls != 2 {
		t.Fatalf("rows after the failure must not be attempted, calls=%d", store.calls)
	}
}

func TestImport_AbortReportsFileLine(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantLine int
	}{
		{
			name: "blank_lines_before_failure",
			data: fullHeader +
				"Good,g,1,x,g@x.test,Bankers\n" +
				"\n" +
				"\n" +
				"Bad,b,2,y,b@y.test,Bankers\n",
			wantLine: 5,
		},
		{
			name: "comma_only_line_before_failure",
			data: fullHeader +
				"Good,g,1,x,g@x.test,Bankers\n" +
				",,,,,\n" +
				"Bad,b,2,y,b@y.test,Bankers\n",
			wantLine: 4,
		},
		{
			name: "multiline_quoted_field",
			data: fullHeader +
				"Good,g,1,\"1 Main St\nSuite 2\",g@x.test,Bankers\n" +
				"Bad,b,2,y,b@y.test,Bankers\n",
			wantLine: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, err := Parse("leads.csv", strings.NewReader(tt.data))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			store := &fakeInserter{failAt: 2}
			_, err = Import(context.Background(), store, sheet)

			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("expected RowError, got %v", err)
			}
			if rowErr.Line != tt.wantLine || rowErr.Inserted != 1 {
				t.Fatalf("line = %d inserted = %d, want line %d inserted 1", rowErr.Line, rowErr.Inserted, tt.wantLine)
			}
		})
	}
}

func TestParse_XLSXKeepsSheetRowNumbers(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheetName := f.GetSheetName(0)
	cells := map[string][]any{
		"A1": {"OrganizationName", "ContactPersonName", "ContactDetails", "Address", "Email", "SourceType"},
		"A2": {"Good", "g", "1", "x", "g@x.test", "Bankers"},
		"A5": {"Bad", "b", "2", "y", "b@y.test", "Bankers"},
	}
	for axis, row := range cells {
		if err := f.SetSheetRow(sheetName, axis, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	sheet, err := Parse("leads.xlsx", &buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sheet.Rows) != 2 || sheet.Rows[0].Line != 2 || sheet.Rows[1].Line != 5 {
		t.Fatalf("unexpected rows %+v", sheet.Rows)
	}
}

func TestParse_HeaderQuirks(t *testing.T) {
	data := "\ufeff OrganizationName ,ContactPersonName,ContactDetails,Address,Email,SourceType,Extra\n" +
		"Acme Corp,Jane Roe\n" +
		",,,,,\n"

	sheet, err := Parse("leads.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sheet.Missing) != 0 {
		t.Fatalf("expected no missing columns, got %v", sheet.Missing)
	}
	if len(sheet.Rows) != 1 {
		t.Fatalf("blank rows should be skipped, got %d rows", len(sheet.Rows))
	}
	if sheet.Rows[0].OrganizationName != "Acme Corp" || sheet.Rows[0].Email != "" {
		t.Fatalf("short row not padded: %+v", sheet.Rows[0])
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	if _, err := Parse("leads.pdf", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParse_EmptyFile(t *testing.T) {
	if _, err := Parse("leads.csv", strings.NewReader("")); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestParse_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)

	rows := [][]any{
		{"OrganizationName", "ContactPersonName", "ContactDetails", "Address", "Email", "SourceType"},
		{"Acme Corp", "Jane Roe", "555-0101", "1 Main St", "jane@acme.test", "social media"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	// no extension: detected from the zip signature
	sheet, err := Parse("upload", &buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sheet.Rows) != 1 || sheet.Rows[0].SourceType != "Social Media" {
		t.Fatalf("unexpected rows %+v", sheet.Rows)
	}
}

func TestSheet_Preview(t *testing.T) {
	var b strings.Builder
	b.WriteString(fullHeader)
	for i := 0; i < 8; i++ {
		b.WriteString("Org,P,1,A,e@x.test,Bankers\n")
	}

	sheet, err := Parse("leads.csv", strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := len(sheet.Preview()); got != PreviewRows {
		t.Fatalf("expected %d preview rows, got %d", PreviewRows, got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []lead.Lead{
		{OrganizationName: "Acme Corp", ContactPersonName: "Jane Roe", Email: "jane@acme.test", SourceType: "Bankers", Remarks: "not exported"},
	})
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != strings.TrimSpace(fullHeader) {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "Acme Corp,Jane Roe,") {
		t.Fatalf("unexpected body %q", buf.String())
	}

	buf.Reset()
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV empty: %v", err)
	}
	if buf.String() != fullHeader {
		t.Fatalf("empty export should still carry the header, got %q", buf.String())
	}
}
