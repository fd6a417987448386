package parser

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestRegistryBuiltInParsers(t *testing.T) {
	reg := NewRegistry()

	formats := []struct {
		format string
		want   string
	}{
		{"csv", "*parser.CSVParser"},
		{"tsv", "*parser.CSVParser"},
		{"xlsx", "*parser.XLSXParser"},
		{"XLSX", "*parser.XLSXParser"},
	}

	for _, tt := range formats {
		t.Run(tt.format, func(t *testing.T) {
			p, err := reg.Get(tt.format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", tt.format, err)
			}
			switch p.(type) {
			case *CSVParser:
				if tt.want != "*parser.CSVParser" {
					t.Errorf("Get(%q) = CSVParser, want %s", tt.format, tt.want)
				}
			case *XLSXParser:
				if tt.want != "*parser.XLSXParser" {
					t.Errorf("Get(%q) = XLSXParser, want %s", tt.format, tt.want)
				}
			default:
				t.Errorf("Get(%q) returned unexpected %T", tt.format, p)
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()
	for _, f := range []string{"pdf", "docx", "json", ""} {
		if p, err := reg.Get(f); err == nil {
			t.Errorf("Get(%q) expected error, got %T", f, p)
		}
	}
}

func TestRegistryGivenParsers(t *testing.T) {
	csv := &CSVParser{Comma: ';'}
	reg := NewRegistry(csv)

	for _, f := range csv.SupportedFormats() {
		p, err := reg.Get(f)
		if err != nil {
			t.Fatalf("Get(%q) returned error: %v", f, err)
		}
		if p != csv {
			t.Errorf("Get(%q) = %p, want the given parser %p", f, p, csv)
		}
	}
	if p, err := reg.Get("xlsx"); err == nil {
		t.Errorf("defaults registered alongside given parsers: Get(xlsx) = %T", p)
	}
}

func TestFormatOf(t *testing.T) {
	if got := FormatOf("/tmp/Resultados.CSV"); got != "csv" {
		t.Errorf("FormatOf = %q, want csv", got)
	}
}

// ---------------------------------------------------------------------------
// PDF cell splitting
// ---------------------------------------------------------------------------

func glyphs(x float64, s string) []pdf.Text {
	var out []pdf.Text
	for _, r := range s {
		out = append(out, pdf.Text{FontSize: 10, X: x, Y: 700, W: 5, S: string(r)})
		x += 5
	}
	return out
}

func TestSplitCells(t *testing.T) {
	var row pdf.TextHorizontal
	row = append(row, glyphs(10, "ADN")...)
	// word gap inside the name cell
	row = append(row, glyphs(28, "NOBOA")...)
	// cell gaps
	row = append(row, glyphs(200, "1.234")...)
	row = append(row, glyphs(300, "45,10%")...)

	cells := splitCells(row, DefaultCellGap)
	var got []string
	for _, c := range cells {
		got = append(got, c.Text)
	}
	want := []string{"ADN NOBOA", "1.234", "45,10%"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cells mismatch (-want +got):\n%s", diff)
	}
	if cells[1].X != 200 || cells[1].Width != 25 {
		t.Errorf("cell[1] X=%v Width=%v, want 200/25", cells[1].X, cells[1].Width)
	}
}

func TestSplitCellsUnordered(t *testing.T) {
	row := pdf.TextHorizontal{
		{FontSize: 10, X: 120, W: 5, S: "9"},
		{FontSize: 10, X: 10, W: 5, S: "A"},
		{FontSize: 10, X: 15, W: 5, S: "B"},
	}
	cells := splitCells(row, DefaultCellGap)
	if len(cells) != 2 || cells[0].Text != "AB" || cells[1].Text != "9" {
		t.Fatalf("unexpected cells: %+v", cells)
	}
}

func TestPageBlocksOrdersTopToBottom(t *testing.T) {
	rows := pdf.Rows{
		{Position: 100, Content: glyphs(10, "BOTTOM")},
		{Position: 700, Content: glyphs(10, "TOP")},
		{Position: 400, Content: nil},
	}
	blocks := pageBlocks(3, rows, DefaultCellGap)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Text != "TOP" || blocks[0].Row != 0 || blocks[0].Page != 3 {
		t.Errorf("first block = %+v", blocks[0])
	}
	if blocks[1].Text != "BOTTOM" || blocks[1].Row != 1 {
		t.Errorf("second block = %+v", blocks[1])
	}
}

// ---------------------------------------------------------------------------
// CSV
// ---------------------------------------------------------------------------

func TestCSVParserSniffsSemicolon(t *testing.T) {
	in := "CANDIDATO;MUJERES;HOMBRES\n\"Pérez; Ana\";10;12\n\n;;\nLuis;3;4\n"
	rows, err := (&CSVParser{}).Parse(context.Background(), bytes.NewBufferString(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := [][]string{
		{"CANDIDATO", "MUJERES", "HOMBRES"},
		{"Pérez; Ana", "10", "12"},
		{"Luis", "3", "4"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVParserStripsBOM(t *testing.T) {
	in := "\ufeffVUELTA,CANDIDATO\n1,X\n"
	rows, err := (&CSVParser{}).Parse(context.Background(), bytes.NewBufferString(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rows[0][0] != "VUELTA" {
		t.Errorf("header[0] = %q, want VUELTA", rows[0][0])
	}
}

func TestCSVParserWindows1252(t *testing.T) {
	enc, err := charmap.Windows1252.NewEncoder().String("CANDIDATO,VUELTA\nGONZÁLEZ,1\n")
	if err != nil {
		t.Fatal(err)
	}
	rows, err := (&CSVParser{}).Parse(context.Background(), bytes.NewBufferString(enc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rows[1][0] != "GONZÁLEZ" {
		t.Errorf("cell = %q, want GONZÁLEZ", rows[1][0])
	}
}

func TestCSVParserEmpty(t *testing.T) {
	if _, err := (&CSVParser{}).Parse(context.Background(), bytes.NewBufferString("\n\n")); err == nil {
		t.Error("expected error for empty CSV")
	}
}

func TestCSVParserCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&CSVParser{}).Parse(ctx, bytes.NewBufferString("A,B\n1,2\n")); err == nil {
		t.Error("expected context error")
	}
}

// ---------------------------------------------------------------------------
// XLSX
// ---------------------------------------------------------------------------

func TestXLSXParser(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	data := [][]interface{}{
		{"VUELTA", "CANDIDATO", "TOTAL"},
		{1, "A", 220},
	}
	for i, row := range data {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	raw := buf.Bytes()

	rows, err := (&XLSXParser{}).Parse(context.Background(), bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := [][]string{{"VUELTA", "CANDIDATO", "TOTAL"}, {"1", "A", "220"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	if _, err := (&XLSXParser{Sheet: "Missing"}).Parse(context.Background(), bytes.NewReader(raw)); err == nil {
		t.Error("expected error for missing sheet")
	}
}
