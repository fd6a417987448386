package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brunobiangulo/auditor/parser"
	"github.com/brunobiangulo/auditor/record"
)

type cl struct {
	x float64
	s string
}

func ln(page, row int, cells ...cl) []parser.Block {
	out := make([]parser.Block, 0, len(cells))
	for i, c := range cells {
		out = append(out, parser.Block{Page: page, Row: row, Column: i, X: c.x, Width: 30, Text: c.s})
	}
	return out
}

func join(lines ...[]parser.Block) []parser.Block {
	var out []parser.Block
	for _, l := range lines {
		out = append(out, l...)
	}
	return out
}

// standardHeader lays the columns out as TOTAL, HOMBRES, MUJERES with a
// percentage column after each.
func standardHeader(page, row int) []parser.Block {
	return ln(page, row,
		cl{10, "ORGANIZACIÓN POLÍTICA"},
		cl{200, "TOTAL"}, cl{250, "%"},
		cl{300, "HOMBRES"}, cl{350, "%"},
		cl{400, "MUJERES"}, cl{450, "%"},
	)
}

func figures(page, row int, name, total, male, female string) []parser.Block {
	return ln(page, row,
		cl{10, name},
		cl{200, total}, cl{250, "50,00%"},
		cl{300, male}, cl{350, "45,10 %"},
		cl{400, female}, cl{450, "54,90%"},
	)
}

func summaryLine(page, row int, label, total string) []parser.Block {
	return ln(page, row, cl{10, label}, cl{200, total}, cl{250, "100%"})
}

func twoRoundReport() []parser.Block {
	return join(
		ln(1, 0, cl{100, "CONSEJO NACIONAL ELECTORAL"}),
		ln(1, 1, cl{100, "ELECCIONES GENERALES 2025 - PRIMERA VUELTA"}),
		ln(1, 2, cl{10, "ELECTORES"}, cl{200, "13.736.314"}),
		standardHeader(1, 3),
		figures(1, 4, "Daniel  Noboa", "1.200", "560", "640"),
		figures(1, 5, "Luisa González", "220", "120", "100"),
		ln(1, 6, cl{10, "──────────"}),
		summaryLine(1, 7, "VOTOS VÁLIDOS", "1.420"),
		summaryLine(1, 8, "BLANCOS", "5"),
		summaryLine(1, 9, "NULOS", "3"),
		summaryLine(1, 10, "TOTAL VOTOS", "1.428"),
		ln(1, 11, cl{10, "Página"}, cl{200, "1"}, cl{250, "de"}, cl{300, "2"}),
		ln(2, 0, cl{100, "SEGUNDA VUELTA"}),
		standardHeader(2, 1),
		figures(2, 2, "Daniel Noboa", "900", "400", "500"),
		summaryLine(2, 3, "VOTOS VALIDOS", "900"),
		summaryLine(2, 4, "BLANCOS", "1"),
		summaryLine(2, 5, "NULOS", "2"),
		summaryLine(2, 6, "TOTAL VOTOS", "903"),
	)
}

// ---------------------------------------------------------------------------
// Happy paths
// ---------------------------------------------------------------------------

func TestPDFFirstRound(t *testing.T) {
	rec, err := PDF(twoRoundReport(), "1", DefaultPDFOptions())
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}

	want := []record.Candidate{
		{Name: "Daniel Noboa", Key: "DANIEL NOBOA", Female: 640, Male: 560, Total: 1200},
		{Name: "Luisa González", Key: "LUISA GONZALEZ", Female: 100, Male: 120, Total: 220},
	}
	if diff := cmp.Diff(want, rec.Candidates()); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
	wantSum := record.Summary{Valid: 1420, Blank: 5, Null: 3, Total: 1428}
	if rec.Summary() != wantSum {
		t.Errorf("summary = %+v, want %+v", rec.Summary(), wantSum)
	}
	if rec.Round() != "1" || rec.Source() != "pdf" {
		t.Errorf("round/source = %q/%q", rec.Round(), rec.Source())
	}
	if len(rec.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", rec.Warnings())
	}
}

func TestPDFSecondRoundIsolated(t *testing.T) {
	rec, err := PDF(twoRoundReport(), "2", DefaultPDFOptions())
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if rec.Len() != 1 {
		t.Fatalf("expected 1 candidate in round 2, got %d: %v", rec.Len(), rec.Keys())
	}
	c, _ := rec.Candidate("DANIEL NOBOA")
	if c.Total != 900 {
		t.Errorf("round 2 total = %d, want 900", c.Total)
	}
	if rec.Summary().Total != 903 {
		t.Errorf("round 2 summary total = %d", rec.Summary().Total)
	}
}

func TestPDFReorderedColumns(t *testing.T) {
	blocks := join(
		ln(1, 0, cl{10, "PRIMERA VUELTA"}),
		ln(1, 1, cl{10, "CANDIDATO"}, cl{200, "Mujeres"}, cl{300, "Hombres"}, cl{400, "Total"}),
		ln(1, 2, cl{10, "A"}, cl{200, "100"}, cl{300, "120"}, cl{400, "220"}),
		ln(1, 3, cl{10, "VOTOS VALIDOS"}, cl{400, "220"}),
		ln(1, 4, cl{10, "BLANCOS"}, cl{400, "5"}),
		ln(1, 5, cl{10, "NULOS"}, cl{400, "3"}),
		ln(1, 6, cl{10, "TOTAL VOTOS"}, cl{400, "228"}),
	)
	rec, err := PDF(blocks, "1", DefaultPDFOptions())
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	c, ok := rec.Candidate("A")
	if !ok {
		t.Fatal("candidate A missing")
	}
	if c.Female != 100 || c.Male != 120 || c.Total != 220 {
		t.Errorf("candidate A = %+v", c)
	}
}

func TestPDFSummaryBeforeHeader(t *testing.T) {
	blocks := join(
		ln(1, 0, cl{10, "PRIMERA VUELTA"}),
		ln(1, 1, cl{10, "SUFRAGANTES"}, cl{100, "228"}),
		ln(1, 2, cl{10, "VOTOS VALIDOS"}, cl{100, "220"}, cl{150, "96,5%"}),
		ln(1, 3, cl{10, "BLANCOS"}, cl{100, "5"}),
		ln(1, 4, cl{10, "NULOS"}, cl{100, "3"}),
		standardHeader(1, 5),
		figures(1, 6, "A", "220", "120", "100"),
	)
	rec, err := PDF(blocks, "1", DefaultPDFOptions())
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	want := record.Summary{Valid: 220, Blank: 5, Null: 3, Total: 228}
	if rec.Summary() != want {
		t.Errorf("summary = %+v, want %+v", rec.Summary(), want)
	}
}

func TestPDFDeriveValidVotes(t *testing.T) {
	blocks := join(
		ln(1, 0, cl{10, "PRIMERA VUELTA"}),
		standardHeader(1, 1),
		figures(1, 2, "A", "220", "120", "100"),
		figures(1, 3, "B", "80", "40", "40"),
		summaryLine(1, 4, "BLANCOS", "5"),
		summaryLine(1, 5, "NULOS", "3"),
		summaryLine(1, 6, "TOTAL VOTOS", "308"),
	)

	if _, err := PDF(blocks, "1", DefaultPDFOptions()); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField without derivation, got %v", err)
	}

	opts := DefaultPDFOptions()
	opts.DeriveValidVotes = true
	rec, err := PDF(blocks, "1", opts)
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if rec.Summary().Valid != 300 {
		t.Errorf("derived valid = %d, want 300", rec.Summary().Valid)
	}
	if len(rec.Warnings()) != 1 || !strings.Contains(rec.Warnings()[0], "derived") {
		t.Errorf("warnings = %v", rec.Warnings())
	}
}

func TestPDFGenderWarning(t *testing.T) {
	blocks := join(
		ln(1, 0, cl{10, "PRIMERA VUELTA"}),
		standardHeader(1, 1),
		figures(1, 2, "A", "221", "120", "100"),
		summaryLine(1, 3, "VOTOS VALIDOS", "221"),
		summaryLine(1, 4, "BLANCOS", "5"),
		summaryLine(1, 5, "NULOS", "3"),
		summaryLine(1, 6, "TOTAL VOTOS", "229"),
	)
	rec, err := PDF(blocks, "1", DefaultPDFOptions())
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if len(rec.Warnings()) != 1 || !strings.Contains(rec.Warnings()[0], "female+male (220) != total (221)") {
		t.Errorf("warnings = %v", rec.Warnings())
	}
}

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

func TestPDFMissingRound(t *testing.T) {
	blocks := join(
		ln(1, 0, cl{10, "PRIMERA VUELTA"}),
		standardHeader(1, 1),
		figures(1, 2, "A", "220", "120", "100"),
	)
	_, err := PDF(blocks, "2", DefaultPDFOptions())
	if !errors.Is(err, ErrExtraction) || !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("expected round-not-found extraction error, got %v", err)
	}
	var xe *ExtractionError
	if !errors.As(err, &xe) || xe.Round != "2" || xe.Source != "pdf" {
		t.Errorf("error context = %+v", xe)
	}
}

func TestPDFFieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		row       []parser.Block
		wantErr   error
		wantField string
	}{
		{
			name:      "missing male",
			row:       ln(1, 2, cl{10, "A"}, cl{200, "220"}, cl{400, "100"}),
			wantErr:   ErrMissingField,
			wantField: "male",
		},
		{
			name:      "non numeric female",
			row:       ln(1, 2, cl{10, "A"}, cl{200, "220"}, cl{300, "120"}, cl{400, "N/D"}),
			wantErr:   ErrInvalidNumber,
			wantField: "female",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := join(ln(1, 0, cl{10, "PRIMERA VUELTA"}), standardHeader(1, 1), tt.row)
			_, err := PDF(blocks, "1", DefaultPDFOptions())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var xe *ExtractionError
			if !errors.As(err, &xe) {
				t.Fatalf("expected *ExtractionError, got %T", err)
			}
			if xe.Field != tt.wantField || xe.Candidate != "A" {
				t.Errorf("field/candidate = %q/%q, want %q/A", xe.Field, xe.Candidate, tt.wantField)
			}
		})
	}
}

func TestPDFMissingSummaryField(t *testing.T) {
	blocks := join(
		ln(1, 0, cl{10, "PRIMERA VUELTA"}),
		standardHeader(1, 1),
		figures(1, 2, "A", "220", "120", "100"),
		summaryLine(1, 3, "VOTOS VALIDOS", "220"),
		summaryLine(1, 4, "BLANCOS", "5"),
		summaryLine(1, 5, "TOTAL VOTOS", "228"),
	)
	_, err := PDF(blocks, "1", DefaultPDFOptions())
	var xe *ExtractionError
	if !errors.As(err, &xe) || xe.Field != "null" {
		t.Fatalf("expected missing null field, got %v", err)
	}
}

func TestPDFNoHeader(t *testing.T) {
	blocks := join(
		ln(1, 0, cl{10, "PRIMERA VUELTA"}),
		ln(1, 1, cl{10, "A"}, cl{200, "220"}),
	)
	if _, err := PDF(blocks, "1", DefaultPDFOptions()); !errors.Is(err, ErrHeaderNotFound) {
		t.Fatalf("expected ErrHeaderNotFound, got %v", err)
	}
}

func TestPDFDuplicateCandidate(t *testing.T) {
	blocks := join(
		ln(1, 0, cl{10, "PRIMERA VUELTA"}),
		standardHeader(1, 1),
		figures(1, 2, "A", "220", "120", "100"),
		figures(1, 3, "a", "220", "120", "100"),
		summaryLine(1, 4, "VOTOS VALIDOS", "440"),
		summaryLine(1, 5, "BLANCOS", "0"),
		summaryLine(1, 6, "NULOS", "0"),
		summaryLine(1, 7, "TOTAL VOTOS", "440"),
	)
	if _, err := PDF(blocks, "1", DefaultPDFOptions()); !errors.Is(err, ErrDuplicateCandidate) {
		t.Fatalf("expected ErrDuplicateCandidate, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Round detection and helpers
// ---------------------------------------------------------------------------

func TestDetectRound(t *testing.T) {
	opts := DefaultPDFOptions()
	r, ok := DetectRound(twoRoundReport(), opts.Rounds)
	if !ok || r != "1" {
		t.Errorf("DetectRound = %q, %v; want 1, true", r, ok)
	}

	byDate := ln(1, 0, cl{10, "Elecciones del 13 de abril de 2025"})
	r, ok = DetectRound(byDate, opts.Rounds)
	if !ok || r != "2" {
		t.Errorf("DetectRound(date) = %q, %v; want 2, true", r, ok)
	}

	if _, ok := DetectRound(ln(1, 0, cl{10, "SIN FECHA"}), opts.Rounds); ok {
		t.Error("expected no round detected")
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1.234.567", 1234567, false},
		{"1,234", 1234, false},
		{" 12 345 ", 12345, false},
		{"1'000", 1000, false},
		{"0", 0, false},
		{"-5", 0, true},
		{"12a", 0, true},
		{"", 0, true},
		{"45%", 0, true},
	}
	for _, tt := range tests {
		got, err := parseCount(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCount(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Column binding
// ---------------------------------------------------------------------------

// bareHeader has no percentage labels, so nothing keeps the percentage
// cells of a row away from the count columns except their own text.
func bareHeader(page, row int) []parser.Block {
	return ln(page, row,
		cl{10, "CANDIDATO"},
		cl{200, "TOTAL"}, cl{300, "HOMBRES"}, cl{400, "MUJERES"},
	)
}

func withSummary(lines ...[]parser.Block) []parser.Block {
	all := append([][]parser.Block{ln(1, 0, cl{10, "PRIMERA VUELTA"})}, lines...)
	all = append(all,
		summaryLine(1, 90, "VOTOS VALIDOS", "220"),
		summaryLine(1, 91, "BLANCOS", "5"),
		summaryLine(1, 92, "NULOS", "3"),
		summaryLine(1, 93, "TOTAL VOTOS", "228"),
	)
	return join(all...)
}

func TestPDFPercentagesWithoutHeaderLabels(t *testing.T) {
	blocks := withSummary(
		bareHeader(1, 1),
		ln(1, 2,
			cl{10, "A"},
			cl{200, "220"}, cl{250, "45,10"},
			cl{300, "120"}, cl{350, "54,55"},
			cl{400, "100"}, cl{450, "45,45"},
		),
	)
	rec, err := PDF(blocks, "1", DefaultPDFOptions())
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	want := []record.Candidate{{Name: "A", Key: "A", Female: 100, Male: 120, Total: 220}}
	if diff := cmp.Diff(want, rec.Candidates()); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestPDFAmbiguousColumn(t *testing.T) {
	blocks := withSummary(
		bareHeader(1, 1),
		ln(1, 2, cl{10, "A"}, cl{200, "220"}, cl{250, "7"}, cl{300, "120"}, cl{400, "100"}),
	)
	_, err := PDF(blocks, "1", DefaultPDFOptions())
	if !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
	var xe *ExtractionError
	if !errors.As(err, &xe) || xe.Field != "total" || xe.Candidate != "A" {
		t.Errorf("error context = %+v", xe)
	}
}

func TestPDFSplitThousandsGroup(t *testing.T) {
	row := []parser.Block{
		{Page: 1, Row: 2, Column: 0, X: 10, Width: 30, Text: "A"},
		{Page: 1, Row: 2, Column: 1, X: 200, Width: 6, Text: "1"},
		{Page: 1, Row: 2, Column: 2, X: 208, Width: 18, Text: "234"},
		{Page: 1, Row: 2, Column: 3, X: 300, Width: 30, Text: "600"},
		{Page: 1, Row: 2, Column: 4, X: 400, Width: 30, Text: "634"},
	}
	rec, err := PDF(withSummary(bareHeader(1, 1), row), "1", DefaultPDFOptions())
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	c, _ := rec.Candidate("A")
	if c.Total != 1234 || c.Male != 600 || c.Female != 634 {
		t.Errorf("candidate A = %+v", c)
	}
}

func TestPDFRepeatedSummaryLine(t *testing.T) {
	blocks := join(
		ln(1, 0, cl{10, "PRIMERA VUELTA"}),
		standardHeader(1, 1),
		figures(1, 2, "A", "220", "120", "100"),
		summaryLine(1, 3, "VOTOS VALIDOS", "220"),
		summaryLine(1, 4, "BLANCOS", "5"),
		summaryLine(1, 5, "NULOS", "3"),
		summaryLine(1, 6, "TOTAL VOTOS", "228"),
		summaryLine(1, 7, "BLANCOS", "5"),
		summaryLine(1, 8, "SUFRAGANTES", "230"),
	)
	rec, err := PDF(blocks, "1", DefaultPDFOptions())
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if rec.Summary().Total != 228 || rec.Summary().Blank != 5 {
		t.Errorf("summary = %+v, want the first lines kept", rec.Summary())
	}
	w := rec.Warnings()
	if len(w) != 1 || !strings.Contains(w[0], `"SUFRAGANTES" (230) differs from the first one (228)`) {
		t.Errorf("warnings = %v", w)
	}
}

func TestIsFraction(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"45,10", true},
		{"0.5", true},
		{"96,5%", true},
		{"100%", true},
		{"1.234", false},
		{"13.736.314", false},
		{"220", false},
		{"1'000", false},
	}
	for _, tt := range tests {
		if got := isFraction(tt.in); got != tt.want {
			t.Errorf("isFraction(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDetectProvince(t *testing.T) {
	provinces := []string{"SANTA", "Santa Elena", "Guayas"}
	tests := []struct {
		name   string
		blocks []parser.Block
		want   string
		ok     bool
	}{
		{"prefix with colon", ln(1, 0, cl{10, "Provincia:"}, cl{100, "Santa Elena"}), "Santa Elena", true},
		{"de form", ln(1, 0, cl{10, "RESULTADOS PROVINCIA DEL GUAYAS - PRIMERA VUELTA"}), "Guayas", true},
		{"name without prefix", ln(1, 0, cl{10, "SANTA ELENA"}), "", false},
		{"national", ln(1, 0, cl{10, "RESULTADOS NACIONALES"}), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectProvince(tt.blocks, provinces)
			if got != tt.want || ok != tt.ok {
				t.Errorf("DetectProvince = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
