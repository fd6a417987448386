package extract

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/brunobiangulo/auditor/parser"
	"github.com/brunobiangulo/auditor/record"
)

const sourcePDF = "pdf"

// line is one visual row of the report, cells ordered left to right.
type line struct {
	page  int
	row   int
	cells []parser.Block
	key   string
}

func groupLines(blocks []parser.Block) []line {
	type pos struct{ page, row int }
	idx := map[pos]int{}
	var lines []line
	for _, b := range blocks {
		p := pos{b.Page, b.Row}
		i, ok := idx[p]
		if !ok {
			i = len(lines)
			idx[p] = i
			lines = append(lines, line{page: b.Page, row: b.Row})
		}
		lines[i].cells = append(lines[i].cells, b)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].page != lines[j].page {
			return lines[i].page < lines[j].page
		}
		return lines[i].row < lines[j].row
	})
	for i := range lines {
		cells := lines[i].cells
		sort.SliceStable(cells, func(a, b int) bool {
			if cells[a].X != cells[b].X {
				return cells[a].X < cells[b].X
			}
			return cells[a].Column < cells[b].Column
		})
		texts := make([]string, len(cells))
		for j, c := range cells {
			texts[j] = c.Text
		}
		lines[i].key = record.NormalizeKey(strings.Join(texts, " "))
	}
	return lines
}

type colKind int

const (
	colIgnore colKind = iota
	colFemale
	colMale
	colTotal
)

func (k colKind) field() string {
	switch k {
	case colFemale:
		return "female"
	case colMale:
		return "male"
	case colTotal:
		return "total"
	}
	return "ignored"
}

type column struct {
	kind   colKind
	center float64
}

func center(b parser.Block) float64 { return b.X + b.Width/2 }

type pdfExtractor struct {
	opts   PDFOptions
	female labelSet
	male   labelSet
	total  labelSet
	ignore labelSet
	vocab  vocabulary
	skip   []string
}

func newPDFExtractor(opts PDFOptions) *pdfExtractor {
	x := &pdfExtractor{
		opts:   opts,
		female: newLabelSet(opts.Female),
		male:   newLabelSet(opts.Male),
		total:  newLabelSet(opts.Total),
		ignore: newLabelSet(opts.Ignore),
		vocab:  newVocabulary(opts.Summary, opts.NonVote),
	}
	for _, p := range opts.SkipPrefixes {
		if k := labelKey(p); k != "" {
			x.skip = append(x.skip, k)
		}
	}
	return x
}

// PDF builds the record of round from the blocks of a results report.
//
// The round's section starts at the first line carrying one of its markers
// and ends where another round's marker appears. Inside it the candidate
// table is located by its header labels; value cells are bound to the
// nearest header column, so column order does not matter. Lines without any
// numeric content are skipped.
func PDF(blocks []parser.Block, round record.Round, opts PDFOptions) (*record.Record, error) {
	x := newPDFExtractor(opts)
	fail := func(field, candidate string, err error) error {
		return &ExtractionError{Source: sourcePDF, Round: round, Field: field, Candidate: candidate, Err: err}
	}

	section := x.section(groupLines(blocks), round)
	if section == nil {
		return nil, fail("", "", fmt.Errorf("%w: no heading for round %q", ErrRoundNotFound, round))
	}

	var (
		cols       []column
		candidates []record.Candidate
		warnings   []string
	)
	sum := partialSummary{}

	for _, l := range section {
		if c, ok := x.header(l); ok {
			cols = c
			continue
		}

		name, values := splitName(l.cells)
		if !hasNumeric(values) {
			continue
		}
		key := record.NormalizeKey(name)
		if key == "" || x.skipped(key) {
			continue
		}

		if f, ok := x.vocab.summaryField(key); ok {
			n, err := summaryValue(values, cols)
			if err != nil {
				return nil, fail(string(f), "", err)
			}
			if prev, seen := sum[f]; seen {
				if n != prev {
					warnings = append(warnings, fmt.Sprintf("pdf: repeated %s line %q (%d) differs from the first one (%d)", f, name, n, prev))
				}
				continue
			}
			sum[f] = n
			continue
		}
		if x.vocab.nonVote.has(key) || cols == nil {
			continue
		}

		c, field, err := candidateFromCells(name, values, cols)
		if err != nil {
			return nil, fail(field, name, err)
		}
		candidates = append(candidates, c)
	}

	if cols == nil {
		return nil, fail("", "", ErrHeaderNotFound)
	}

	if _, ok := sum[fieldValid]; !ok && x.opts.DeriveValidVotes {
		var v int64
		for _, c := range candidates {
			v += c.Total
		}
		sum[fieldValid] = v
		warnings = append(warnings, fmt.Sprintf("pdf: valid votes derived from candidate totals (%d)", v))
	}

	summary, missing, ok := sum.build()
	if !ok {
		return nil, fail(string(missing), "", fmt.Errorf("%w: summary %s votes", ErrMissingField, missing))
	}

	warnings = append(warnings, genderWarnings(sourcePDF, candidates)...)

	rec, err := record.New(round, sourcePDF, candidates, summary, warnings...)
	if err != nil {
		var dup *record.DuplicateCandidateError
		if errors.As(err, &dup) {
			return nil, fail("", dup.Key, ErrDuplicateCandidate)
		}
		return nil, fail("", "", err)
	}
	return rec, nil
}

// DetectRound returns the round whose marker appears first in the report.
func DetectRound(blocks []parser.Block, rounds []RoundMarkers) (record.Round, bool) {
	for _, l := range groupLines(blocks) {
		for _, rm := range rounds {
			if containsAny(l.key, normalizeAll(rm.Markers)) {
				return rm.Round, true
			}
		}
	}
	return "", false
}

// DetectProvince returns the province a provincial report is about: the
// first of provinces named on a line as "PROVINCIA <name>" or
// "PROVINCIA DE <name>". National reports name none.
func DetectProvince(blocks []parser.Block, provinces []string) (string, bool) {
	type candidate struct{ name, key string }
	var cands []candidate
	for _, p := range provinces {
		if k := record.NormalizeKey(p); k != "" {
			cands = append(cands, candidate{p, k})
		}
	}
	// Longer names first so "SANTA ELENA" wins over "SANTA".
	sort.SliceStable(cands, func(i, j int) bool { return len(cands[i].key) > len(cands[j].key) })

	for _, l := range groupLines(blocks) {
		text := " " + strings.Join(strings.Fields(provincePunct.Replace(l.key)), " ") + " "
		for _, c := range cands {
			for _, prefix := range []string{" PROVINCIA ", " PROVINCIA DE ", " PROVINCIA DEL "} {
				if strings.Contains(text, prefix+c.key+" ") {
					return c.name, true
				}
			}
		}
	}
	return "", false
}

var provincePunct = strings.NewReplacer(":", " ", "-", " ", ",", " ", "(", " ", ")", " ")

func (x *pdfExtractor) markers(round record.Round) []string {
	for _, rm := range x.opts.Rounds {
		if rm.Round == round {
			return normalizeAll(rm.Markers)
		}
	}
	return normalizeAll([]string{"VUELTA " + string(round)})
}

func (x *pdfExtractor) section(lines []line, round record.Round) []line {
	own := x.markers(round)
	var others []string
	for _, rm := range x.opts.Rounds {
		if rm.Round != round {
			others = append(others, normalizeAll(rm.Markers)...)
		}
	}

	start := -1
	for i, l := range lines {
		if containsAny(l.key, own) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	end := len(lines)
	for j := start + 1; j < len(lines); j++ {
		if containsAny(lines[j].key, others) && !containsAny(lines[j].key, own) {
			end = j
			break
		}
	}
	return lines[start:end]
}

// header recognizes the candidate table header: a line naming the female,
// male and total columns.
func (x *pdfExtractor) header(l line) ([]column, bool) {
	var cols []column
	var hasF, hasM, hasT bool
	for _, c := range l.cells {
		k := labelKey(c.Text)
		switch {
		case x.female.has(k):
			cols = append(cols, column{colFemale, center(c)})
			hasF = true
		case x.male.has(k):
			cols = append(cols, column{colMale, center(c)})
			hasM = true
		case x.total.has(k):
			cols = append(cols, column{colTotal, center(c)})
			hasT = true
		case x.ignore.has(k):
			cols = append(cols, column{colIgnore, center(c)})
		}
	}
	if !hasF || !hasM || !hasT {
		return nil, false
	}
	return cols, true
}

func (x *pdfExtractor) skipped(key string) bool {
	for _, p := range x.skip {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// splitName separates the leading text cells (the row label) from the value
// cells that follow.
func splitName(cells []parser.Block) (string, []parser.Block) {
	i := 0
	for i < len(cells) && !looksNumeric(cells[i].Text) {
		i++
	}
	texts := make([]string, i)
	for j := 0; j < i; j++ {
		texts[j] = cells[j].Text
	}
	return strings.Join(strings.Fields(strings.Join(texts, " ")), " "), cells[i:]
}

func hasNumeric(cells []parser.Block) bool {
	for _, c := range cells {
		if looksNumeric(c.Text) {
			return true
		}
	}
	return false
}

// bind assigns each count cell to the nearest header column. Percentage
// and decimal cells never carry a count and are left out, so a header that
// lost its "%" labels still binds the counts to the right columns.
func bind(values []parser.Block, cols []column) map[colKind][]parser.Block {
	out := map[colKind][]parser.Block{}
	for _, v := range values {
		if isFraction(v.Text) {
			continue
		}
		best, dist := -1, math.Inf(1)
		for i, c := range cols {
			if d := math.Abs(center(v) - c.center); d < dist {
				best, dist = i, d
			}
		}
		if best >= 0 {
			k := cols[best].kind
			out[k] = append(out[k], v)
		}
	}
	return out
}

// columnCount reads the count bound to one column. Cells are joined only
// when the next one is a bare thousands group sitting closer than one digit
// width (a number the PDF split in two); any other extra cell makes the
// column ambiguous.
func columnCount(cells []parser.Block, k colKind) (int64, error) {
	if len(cells) == 0 {
		return 0, fmt.Errorf("%w: %s votes", ErrMissingField, k.field())
	}
	texts := []string{cells[0].Text}
	prev := cells[0]
	for _, c := range cells[1:] {
		gap := c.X - (prev.X + prev.Width)
		digit := prev.Width / float64(max(1, utf8.RuneCountInString(prev.Text)))
		if isDigitGroup(c.Text) && gap < digit {
			texts[len(texts)-1] += c.Text
		} else {
			texts = append(texts, c.Text)
		}
		prev = c
	}
	if len(texts) > 1 {
		return 0, fmt.Errorf("%w: ambiguous %s column: %q", ErrInvalidNumber, k.field(), texts)
	}
	return parseCount(texts[0])
}

func candidateFromCells(name string, values []parser.Block, cols []column) (record.Candidate, string, error) {
	bound := bind(values, cols)
	var n [3]int64
	for i, k := range []colKind{colFemale, colMale, colTotal} {
		v, err := columnCount(bound[k], k)
		if err != nil {
			return record.Candidate{}, k.field(), err
		}
		n[i] = v
	}
	return record.Candidate{Name: name, Female: n[0], Male: n[1], Total: n[2]}, "", nil
}

// summaryValue reads the figure of a summary line: the total column when the
// table header is known, otherwise the first count on the line.
func summaryValue(values []parser.Block, cols []column) (int64, error) {
	if cols != nil {
		if cells := bind(values, cols)[colTotal]; len(cells) > 0 {
			return columnCount(cells, colTotal)
		}
	}
	for _, v := range values {
		if looksNumeric(v.Text) && !isFraction(v.Text) {
			return parseCount(v.Text)
		}
	}
	return 0, fmt.Errorf("%w: no count on line", ErrMissingField)
}

func genderWarnings(source string, candidates []record.Candidate) []string {
	var out []string
	for _, c := range candidates {
		if c.GenderSum() != c.Total {
			out = append(out, fmt.Sprintf("%s: %s female+male (%d) != total (%d)", source, c.Name, c.GenderSum(), c.Total))
		}
	}
	return out
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if k := record.NormalizeKey(s); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
