package extract

import (
	"strings"

	"github.com/brunobiangulo/auditor/record"
)

// RoundMarkers lists the heading texts that open a round's section in the PDF
// report. Matching is a substring test on normalized line text.
type RoundMarkers struct {
	Round   record.Round `json:"round" yaml:"round"`
	Markers []string     `json:"markers" yaml:"markers"`
}

// SummaryLabels lists the accepted spellings of the round summary entries.
type SummaryLabels struct {
	Valid []string `json:"valid" yaml:"valid"`
	Blank []string `json:"blank" yaml:"blank"`
	Null  []string `json:"null" yaml:"null"`
	Total []string `json:"total" yaml:"total"`
}

// PDFOptions drives the PDF vote extractor.
type PDFOptions struct {
	Rounds []RoundMarkers `json:"rounds" yaml:"rounds"`

	// Column header labels of the candidate table.
	Female []string `json:"female" yaml:"female"`
	Male   []string `json:"male" yaml:"male"`
	Total  []string `json:"total" yaml:"total"`
	Ignore []string `json:"ignore" yaml:"ignore"` // e.g. percentage columns

	Summary SummaryLabels `json:"summary" yaml:"summary"`

	// NonVote names rows that carry figures but are not candidates
	// (electors, polling stations, absenteeism).
	NonVote []string `json:"non_vote" yaml:"non_vote"`

	// SkipPrefixes drops page furniture such as "Página 1 de 3".
	SkipPrefixes []string `json:"skip_prefixes" yaml:"skip_prefixes"`

	// DeriveValidVotes sums candidate totals when the report has no
	// valid-votes line.
	DeriveValidVotes bool `json:"derive_valid_votes" yaml:"derive_valid_votes"`
}

// TableOptions drives the tabulation (CSV/XLSX) vote extractor.
type TableOptions struct {
	Candidate  []string `json:"candidate" yaml:"candidate"`
	Female     []string `json:"female" yaml:"female"`
	Male       []string `json:"male" yaml:"male"`
	Total      []string `json:"total" yaml:"total"`
	Round      []string `json:"round" yaml:"round"`
	Valid      []string `json:"valid" yaml:"valid"`
	Blank      []string `json:"blank" yaml:"blank"`
	Null       []string `json:"null" yaml:"null"`
	GrandTotal []string `json:"grand_total" yaml:"grand_total"`

	// Long layout: one VARIABLE ("<NAME>_<F|M|T>") and VALUE per row.
	Variable []string `json:"variable" yaml:"variable"`
	Value    []string `json:"value" yaml:"value"`

	// Province column of per-province tabulations.
	ProvinceColumn []string `json:"province_column" yaml:"province_column"`

	// Province keeps only the rows of one province. Empty aggregates every
	// row of the round. Set per run, never read from config files.
	Province string `json:"-" yaml:"-"`

	Summary SummaryLabels `json:"summary" yaml:"summary"`
	NonVote []string      `json:"non_vote" yaml:"non_vote"`

	// StrictSummary turns disagreeing repeated summary values into an
	// error instead of a warning.
	StrictSummary bool `json:"strict_summary" yaml:"strict_summary"`
}

var defaultSummary = SummaryLabels{
	Valid: []string{"VOTOS VALIDOS", "VALIDOS", "TOTAL VOTOS VALIDOS"},
	Blank: []string{"BLANCOS", "VOTOS BLANCOS", "VOTOS EN BLANCO"},
	Null:  []string{"NULOS", "VOTOS NULOS"},
	Total: []string{"TOTAL VOTOS", "SUFRAGANTES", "TOTAL SUFRAGANTES", "VOTOS EMITIDOS"},
}

var defaultNonVote = []string{
	"ELECTORES",
	"ELECTORES PPL",
	"TOTAL ELECTORES + PPL",
	"JUNTAS",
	"JUNTAS PPL",
	"TOTAL JUNTAS + PPL",
	"JUNTAS ANULADAS",
	"AUSENTISMO",
}

// DefaultPDFOptions matches the layout of the national results report.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		Rounds: []RoundMarkers{
			{Round: "1", Markers: []string{"PRIMERA VUELTA", "1RA VUELTA", "09 DE FEBRERO DE 2025"}},
			{Round: "2", Markers: []string{"SEGUNDA VUELTA", "2DA VUELTA", "13 DE ABRIL DE 2025"}},
		},
		Female:       []string{"MUJERES", "FEMENINO", "F"},
		Male:         []string{"HOMBRES", "MASCULINO", "M"},
		Total:        []string{"TOTAL", "VOTOS", "T"},
		Ignore:       []string{"%", "PORCENTAJE"},
		Summary:      defaultSummary,
		NonVote:      defaultNonVote,
		SkipPrefixes: []string{"PAGINA", "PAG.", "FECHA", "HORA", "FUENTE"},
	}
}

// DefaultTableOptions matches the consolidated tabulation export.
func DefaultTableOptions() TableOptions {
	return TableOptions{
		Candidate:  []string{"CANDIDATO", "CANDIDATE", "ORGANIZACION POLITICA", "ENTIDAD", "NOMBRE"},
		Female:     []string{"MUJERES", "FEMENINO", "VOTOS MUJERES", "F"},
		Male:       []string{"HOMBRES", "MASCULINO", "VOTOS HOMBRES", "M"},
		Total:      []string{"TOTAL", "TOTAL CANDIDATO", "VOTOS CANDIDATO", "T"},
		Round:      []string{"VUELTA"},
		Valid:      []string{"VOTOS VALIDOS", "VALIDOS"},
		Blank:      []string{"BLANCOS", "VOTOS BLANCOS"},
		Null:       []string{"NULOS", "VOTOS NULOS"},
		GrandTotal: []string{"TOTAL VOTOS", "SUFRAGANTES", "VOTOS EMITIDOS"},
		Variable:   []string{"VARIABLE"},
		Value:      []string{"VALUE", "VALOR"},

		ProvinceColumn: []string{"PROVINCIA NOMBRE", "PROVINCIA"},

		Summary: defaultSummary,
		NonVote: defaultNonVote,
	}
}

// labelKey normalizes a label or header cell. Underscores count as spaces so
// that VOTOS_VALIDOS matches VOTOS VALIDOS.
func labelKey(s string) string {
	return record.NormalizeKey(strings.ReplaceAll(s, "_", " "))
}

type labelSet map[string]struct{}

func newLabelSet(labels ...[]string) labelSet {
	s := labelSet{}
	for _, group := range labels {
		for _, l := range group {
			if k := labelKey(l); k != "" {
				s[k] = struct{}{}
			}
		}
	}
	return s
}

func (s labelSet) has(key string) bool {
	_, ok := s[key]
	return ok
}

// summaryField names one of the four summary entries.
type summaryField string

const (
	fieldValid summaryField = "valid"
	fieldBlank summaryField = "blank"
	fieldNull  summaryField = "null"
	fieldTotal summaryField = "total"
)

var summaryFields = []summaryField{fieldValid, fieldBlank, fieldNull, fieldTotal}

// vocabulary classifies row names into summary entries, non-vote rows and
// candidates.
type vocabulary struct {
	summary map[string]summaryField
	nonVote labelSet
}

func newVocabulary(sl SummaryLabels, nonVote []string) vocabulary {
	v := vocabulary{summary: map[string]summaryField{}, nonVote: newLabelSet(nonVote)}
	add := func(f summaryField, labels []string) {
		for _, l := range labels {
			if k := labelKey(l); k != "" {
				v.summary[k] = f
			}
		}
	}
	add(fieldValid, sl.Valid)
	add(fieldBlank, sl.Blank)
	add(fieldNull, sl.Null)
	add(fieldTotal, sl.Total)
	return v
}

func (v vocabulary) summaryField(key string) (summaryField, bool) {
	f, ok := v.summary[key]
	return f, ok
}

// partialSummary collects summary entries as they are found.
type partialSummary map[summaryField]int64

func (p partialSummary) build() (record.Summary, summaryField, bool) {
	for _, f := range summaryFields {
		if _, ok := p[f]; !ok {
			return record.Summary{}, f, false
		}
	}
	return record.Summary{
		Valid: p[fieldValid],
		Blank: p[fieldBlank],
		Null:  p[fieldNull],
		Total: p[fieldTotal],
	}, "", true
}
