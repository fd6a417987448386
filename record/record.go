// Package record defines the normalized vote schema that both the PDF and the
// tabulation extractors populate and the verification engine consumes.
package record

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Round identifies an electoral round ("VUELTA"). Values are compared
// verbatim after trimming, so "1" and "01" are different rounds.
type Round string

// ParseRound trims surrounding whitespace from a raw VUELTA value.
func ParseRound(s string) Round {
	return Round(strings.TrimSpace(s))
}

func (r Round) String() string { return string(r) }

// Candidate holds one candidate's figures for a round.
type Candidate struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Female int64  `json:"female"`
	Male   int64  `json:"male"`
	Total  int64  `json:"total"`
}

// GenderSum returns Female + Male.
func (c Candidate) GenderSum() int64 { return c.Female + c.Male }

// Summary holds the aggregate figures of a round.
type Summary struct {
	Valid int64 `json:"valid"`
	Blank int64 `json:"blank"`
	Null  int64 `json:"null"`
	Total int64 `json:"total"`
}

// Recomputed returns Valid + (Blank + Null).
func (s Summary) Recomputed() int64 { return s.Valid + (s.Blank + s.Null) }

// Record is the round-scoped extraction of one source. It is built once by
// New and only exposes read accessors.
type Record struct {
	round      Round
	source     string
	candidates map[string]Candidate
	summary    Summary
	warnings   []string
}

// DuplicateCandidateError is returned by New when two entries share a
// normalized key.
type DuplicateCandidateError struct {
	Key string
}

func (e *DuplicateCandidateError) Error() string {
	return fmt.Sprintf("duplicate candidate %q", e.Key)
}

// New builds a Record. Candidate keys are (re)computed from their names and
// must be unique.
func New(round Round, source string, candidates []Candidate, summary Summary, warnings ...string) (*Record, error) {
	m := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		c.Key = NormalizeKey(c.Name)
		if c.Key == "" {
			return nil, fmt.Errorf("candidate with empty name")
		}
		if _, ok := m[c.Key]; ok {
			return nil, &DuplicateCandidateError{Key: c.Key}
		}
		m[c.Key] = c
	}
	var w []string
	if len(warnings) > 0 {
		w = append(w, warnings...)
	}
	return &Record{
		round:      round,
		source:     source,
		candidates: m,
		summary:    summary,
		warnings:   w,
	}, nil
}

// Round returns the round the record was extracted for.
func (r *Record) Round() Round { return r.round }

// Source returns the source label ("pdf", "csv", "xlsx").
func (r *Record) Source() string { return r.source }

// Summary returns the round summary.
func (r *Record) Summary() Summary { return r.summary }

// Len returns the number of candidates.
func (r *Record) Len() int { return len(r.candidates) }

// Candidate looks up a candidate by normalized key.
func (r *Record) Candidate(key string) (Candidate, bool) {
	c, ok := r.candidates[key]
	return c, ok
}

// Keys returns the candidate keys in sorted order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.candidates))
	for k := range r.candidates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Candidates returns a copy of the candidates sorted by key.
func (r *Record) Candidates() []Candidate {
	out := make([]Candidate, 0, len(r.candidates))
	for _, k := range r.Keys() {
		out = append(out, r.candidates[k])
	}
	return out
}

// Warnings returns non-fatal observations made while extracting.
func (r *Record) Warnings() []string {
	return append([]string(nil), r.warnings...)
}

var foldMarks = runes.Remove(runes.In(unicode.Mn))

// NormalizeKey folds case, accents and whitespace so that "Votos  válidos"
// and "VOTOS VALIDOS" compare equal.
func NormalizeKey(s string) string {
	t := transform.Chain(norm.NFD, foldMarks, norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}
