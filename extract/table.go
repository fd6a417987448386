package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/brunobiangulo/auditor/record"
)

// Table builds the record of round from a tabulation whose first row is the
// header. Two layouts are understood:
//
//   - wide: one row per candidate with female, male and total columns, and
//     the round summary either repeated on every row or carried by
//     dedicated rows named after the summary entry;
//   - long: VARIABLE / VALUE pairs where VARIABLE is <NAME>_<F|M|T>,
//     summed over every row of the round.
//
// The layout is long when the header has both a variable and a value column.
func Table(rows [][]string, round record.Round, opts TableOptions) (*record.Record, error) {
	return TableFrom("csv", rows, round, opts)
}

// TableFrom is Table with an explicit source label ("csv", "xlsx") used in
// errors and warnings.
func TableFrom(source string, rows [][]string, round record.Round, opts TableOptions) (*record.Record, error) {
	t := &tableExtractor{source: source, round: round, opts: opts, vocab: newVocabulary(opts.Summary, opts.NonVote)}
	if len(rows) == 0 {
		return nil, &SchemaError{Source: source, Missing: []string{first(opts.Round, "VUELTA")}}
	}
	t.header = rows[0]
	if t.col(opts.Variable) >= 0 && t.col(opts.Value) >= 0 {
		return t.long(rows[1:])
	}
	return t.wide(rows[1:])
}

type tableExtractor struct {
	source string
	round  record.Round
	opts   TableOptions
	vocab  vocabulary
	header []string
}

func (t *tableExtractor) fail(row int, field, candidate string, err error) error {
	return &ExtractionError{Source: t.source, Round: t.round, Field: field, Candidate: candidate, Row: row, Err: err}
}

// col returns the index of the first header cell matching one of labels.
func (t *tableExtractor) col(labels []string) int {
	want := newLabelSet(labels)
	for i, h := range t.header {
		if want.has(labelKey(h)) {
			return i
		}
	}
	return -1
}

// matching keeps the data rows of the requested round, and of the selected
// province when there is one, paired with their 1-based row number (the
// header is row 1).
func (t *tableExtractor) matching(rows [][]string, roundCol int) ([]numberedRow, error) {
	provCol := -1
	want := record.NormalizeKey(t.opts.Province)
	if want != "" {
		if provCol = t.col(t.opts.ProvinceColumn); provCol < 0 {
			return nil, &SchemaError{Source: t.source, Missing: []string{first(t.opts.ProvinceColumn, "PROVINCIA")}}
		}
	}

	var out []numberedRow
	inRound := 0
	for i, r := range rows {
		if record.ParseRound(cell(r, roundCol)) != t.round {
			continue
		}
		inRound++
		if provCol >= 0 && record.NormalizeKey(cell(r, provCol)) != want {
			continue
		}
		out = append(out, numberedRow{line: i + 2, cells: r})
	}
	switch {
	case inRound == 0:
		return nil, t.fail(0, "", "", fmt.Errorf("%w: no rows with VUELTA %q", ErrRoundNotFound, t.round))
	case len(out) == 0:
		return nil, t.fail(0, "province", "", fmt.Errorf("%w: no rows for %q with VUELTA %q", ErrProvinceNotFound, t.opts.Province, t.round))
	}
	return out, nil
}

type numberedRow struct {
	line  int
	cells []string
}

func cell(r []string, i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

func first(labels []string, fallback string) string {
	if len(labels) > 0 {
		return labels[0]
	}
	return fallback
}

// ---------------------------------------------------------------------------
// Wide layout
// ---------------------------------------------------------------------------

func (t *tableExtractor) wide(rows [][]string) (*record.Record, error) {
	o := t.opts
	required := []struct {
		labels []string
		name   string
	}{
		{o.Candidate, first(o.Candidate, "CANDIDATO")},
		{o.Female, first(o.Female, "MUJERES")},
		{o.Male, first(o.Male, "HOMBRES")},
		{o.Total, first(o.Total, "TOTAL")},
		{o.Round, first(o.Round, "VUELTA")},
		{o.Valid, first(o.Valid, "VOTOS VALIDOS")},
		{o.Blank, first(o.Blank, "BLANCOS")},
		{o.Null, first(o.Null, "NULOS")},
		{o.GrandTotal, first(o.GrandTotal, "TOTAL VOTOS")},
	}
	idx := make([]int, len(required))
	var missing []string
	for i, r := range required {
		idx[i] = t.col(r.labels)
		if idx[i] < 0 {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Source: t.source, Missing: missing}
	}
	candCol, femCol, maleCol, totCol, roundCol := idx[0], idx[1], idx[2], idx[3], idx[4]
	sumCols := map[summaryField]int{
		fieldValid: idx[5],
		fieldBlank: idx[6],
		fieldNull:  idx[7],
		fieldTotal: idx[8],
	}

	matched, err := t.matching(rows, roundCol)
	if err != nil {
		return nil, err
	}

	var (
		candidates []record.Candidate
		warnings   []string
		designated *record.Summary
		designRow  int
	)
	dedicated := partialSummary{}

	for _, r := range matched {
		s, err := t.repeatedSummary(r, sumCols)
		if err != nil {
			return nil, err
		}
		if s != nil {
			if designated == nil {
				designated, designRow = s, r.line
			} else if *s != *designated {
				msg := fmt.Sprintf("%s: round summary on row %d %s differs from row %d %s",
					t.source, r.line, formatSummary(*s), designRow, formatSummary(*designated))
				if o.StrictSummary {
					return nil, t.fail(r.line, "summary", "", fmt.Errorf("%w: %s", ErrInconsistentSummary, msg))
				}
				warnings = append(warnings, msg)
			}
		}

		name := cell(r.cells, candCol)
		key := record.NormalizeKey(name)
		if key == "" {
			continue
		}
		if f, ok := t.vocab.summaryField(key); ok {
			v, err := t.count(r, totCol, string(f), "")
			if err != nil {
				return nil, err
			}
			dedicated[f] = v
			continue
		}
		if t.vocab.nonVote.has(key) {
			continue
		}

		c := record.Candidate{Name: name}
		for _, fc := range []struct {
			col   int
			field string
			dst   *int64
		}{
			{femCol, "female", &c.Female},
			{maleCol, "male", &c.Male},
			{totCol, "total", &c.Total},
		} {
			v, err := t.count(r, fc.col, fc.field, name)
			if err != nil {
				return nil, err
			}
			*fc.dst = v
		}
		candidates = append(candidates, c)
	}

	var summary record.Summary
	switch {
	case designated != nil:
		summary = *designated
		for _, f := range summaryFields {
			if v, ok := dedicated[f]; ok && v != summaryValueOf(summary, f) {
				msg := fmt.Sprintf("%s: dedicated %s row (%d) differs from repeated summary column (%d)",
					t.source, f, v, summaryValueOf(summary, f))
				if o.StrictSummary {
					return nil, t.fail(0, string(f), "", fmt.Errorf("%w: %s", ErrInconsistentSummary, msg))
				}
				warnings = append(warnings, msg)
			}
		}
	default:
		s, missingField, ok := dedicated.build()
		if !ok {
			return nil, t.fail(0, string(missingField), "", fmt.Errorf("%w: summary %s votes", ErrMissingField, missingField))
		}
		summary = s
	}

	return t.finish(candidates, summary, warnings)
}

// repeatedSummary reads the summary columns of a row. It returns nil when all
// four are empty and an error when only some are filled.
func (t *tableExtractor) repeatedSummary(r numberedRow, cols map[summaryField]int) (*record.Summary, error) {
	filled := 0
	for _, f := range summaryFields {
		if cell(r.cells, cols[f]) != "" {
			filled++
		}
	}
	if filled == 0 {
		return nil, nil
	}
	p := partialSummary{}
	for _, f := range summaryFields {
		v, err := t.count(r, cols[f], string(f), "")
		if err != nil {
			return nil, err
		}
		p[f] = v
	}
	s, _, _ := p.build()
	return &s, nil
}

func (t *tableExtractor) count(r numberedRow, col int, field, candidate string) (int64, error) {
	raw := cell(r.cells, col)
	if raw == "" {
		return 0, t.fail(r.line, field, candidate, fmt.Errorf("%w: empty %s cell", ErrMissingField, field))
	}
	v, err := parseCount(raw)
	if err != nil {
		return 0, t.fail(r.line, field, candidate, err)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Long layout
// ---------------------------------------------------------------------------

var variablePattern = regexp.MustCompile(`^(?P<name>.+)_(?P<sex>[FMTfmt])$`)

type longEntry struct {
	name             string
	f, m, total      int64
	hasF, hasM, hasT bool
}

func (t *tableExtractor) long(rows [][]string) (*record.Record, error) {
	roundCol := t.col(t.opts.Round)
	if roundCol < 0 {
		return nil, &SchemaError{Source: t.source, Missing: []string{first(t.opts.Round, "VUELTA")}}
	}
	varCol, valCol := t.col(t.opts.Variable), t.col(t.opts.Value)

	matched, err := t.matching(rows, roundCol)
	if err != nil {
		return nil, err
	}

	entries := map[string]*longEntry{}
	var order []string
	for _, r := range matched {
		m := variablePattern.FindStringSubmatch(cell(r.cells, varCol))
		if m == nil {
			continue
		}
		name := strings.Join(strings.Fields(strings.ReplaceAll(m[1], "_", " ")), " ")
		sex := strings.ToUpper(m[2])
		key := record.NormalizeKey(name)
		if key == "" {
			continue
		}
		v, err := t.count(r, valCol, "value", name)
		if err != nil {
			return nil, err
		}
		e, ok := entries[key]
		if !ok {
			e = &longEntry{name: name}
			entries[key] = e
			order = append(order, key)
		}
		switch sex {
		case "F":
			e.f += v
			e.hasF = true
		case "M":
			e.m += v
			e.hasM = true
		case "T":
			e.total += v
			e.hasT = true
		}
	}

	var (
		candidates []record.Candidate
		warnings   []string
	)
	sum := partialSummary{}
	sumFrom := map[summaryField]string{}
	for _, key := range order {
		e := entries[key]
		total := e.total
		if !e.hasT {
			total = e.f + e.m
		}
		if f, ok := t.vocab.summaryField(key); ok {
			if !e.hasT && !(e.hasF && e.hasM) {
				return nil, t.fail(0, string(f), "", fmt.Errorf("%w: %s_T", ErrMissingField, e.name))
			}
			if prev, seen := sum[f]; seen {
				if prev != total {
					msg := fmt.Sprintf("%s: summary %s from %s (%d) differs from %s (%d)", t.source, f, e.name, total, sumFrom[f], prev)
					if t.opts.StrictSummary {
						return nil, t.fail(0, string(f), "", fmt.Errorf("%w: %s", ErrInconsistentSummary, msg))
					}
					warnings = append(warnings, msg)
				}
				continue
			}
			sum[f], sumFrom[f] = total, e.name
			continue
		}
		if t.vocab.nonVote.has(key) {
			continue
		}
		if !e.hasF || !e.hasM {
			field := "female"
			if e.hasF {
				field = "male"
			}
			return nil, t.fail(0, field, e.name, fmt.Errorf("%w: %s votes", ErrMissingField, field))
		}
		candidates = append(candidates, record.Candidate{Name: e.name, Female: e.f, Male: e.m, Total: total})
	}

	summary, missing, ok := sum.build()
	if !ok {
		return nil, t.fail(0, string(missing), "", fmt.Errorf("%w: summary %s votes", ErrMissingField, missing))
	}
	return t.finish(candidates, summary, warnings)
}

// ---------------------------------------------------------------------------

func (t *tableExtractor) finish(candidates []record.Candidate, summary record.Summary, warnings []string) (*record.Record, error) {
	warnings = append(warnings, genderWarnings(t.source, candidates)...)

	rec, err := record.New(t.round, t.source, candidates, summary, warnings...)
	if err != nil {
		var dup *record.DuplicateCandidateError
		if errors.As(err, &dup) {
			return nil, t.fail(0, "", dup.Key, ErrDuplicateCandidate)
		}
		return nil, t.fail(0, "", "", err)
	}
	return rec, nil
}

func summaryValueOf(s record.Summary, f summaryField) int64 {
	switch f {
	case fieldValid:
		return s.Valid
	case fieldBlank:
		return s.Blank
	case fieldNull:
		return s.Null
	default:
		return s.Total
	}
}

func formatSummary(s record.Summary) string {
	return fmt.Sprintf("(valid=%d blank=%d null=%d total=%d)", s.Valid, s.Blank, s.Null, s.Total)
}

// Rounds lists the distinct VUELTA values of a tabulation in order of first
// appearance.
func Rounds(rows [][]string, opts TableOptions) ([]record.Round, error) {
	t := &tableExtractor{source: "csv", opts: opts}
	if len(rows) == 0 {
		return nil, &SchemaError{Source: t.source, Missing: []string{first(opts.Round, "VUELTA")}}
	}
	t.header = rows[0]
	col := t.col(opts.Round)
	if col < 0 {
		return nil, &SchemaError{Source: t.source, Missing: []string{first(opts.Round, "VUELTA")}}
	}
	seen := map[record.Round]bool{}
	var out []record.Round
	for _, r := range rows[1:] {
		round := record.ParseRound(cell(r, col))
		if round == "" || seen[round] {
			continue
		}
		seen[round] = true
		out = append(out, round)
	}
	return out, nil
}

// Provinces lists the distinct province names of a tabulation in order of
// first appearance. It returns nil when there is no province column.
func Provinces(rows [][]string, opts TableOptions) []string {
	if len(rows) == 0 {
		return nil
	}
	t := &tableExtractor{opts: opts, header: rows[0]}
	col := t.col(opts.ProvinceColumn)
	if col < 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range rows[1:] {
		name := cell(r, col)
		key := record.NormalizeKey(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}
