package verify

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/auditor/record"
)

// Phase numbers the ordered comparison steps, starting at 1.
type Phase int

const (
	PhaseGender Phase = iota + 1
	PhaseCandidateTotals
	PhaseValidVotes
	PhaseBlankNull
	PhaseGrandTotal
)

// Phases lists every phase in evaluation order.
var Phases = []Phase{PhaseGender, PhaseCandidateTotals, PhaseValidVotes, PhaseBlankNull, PhaseGrandTotal}

// Name returns the short phase name.
func (p Phase) Name() string {
	switch p {
	case PhaseGender:
		return "Gender breakdown"
	case PhaseCandidateTotals:
		return "Candidate totals"
	case PhaseValidVotes:
		return "Valid votes"
	case PhaseBlankNull:
		return "Blanks/nulls"
	case PhaseGrandTotal:
		return "Grand total"
	}
	return fmt.Sprintf("Phase %d", int(p))
}

// Description says what the phase compares.
func (p Phase) Description() string {
	switch p {
	case PhaseGender:
		return "candidate set and female/male votes per candidate"
	case PhaseCandidateTotals:
		return "total votes per candidate"
	case PhaseValidVotes:
		return "valid votes of the round summary"
	case PhaseBlankNull:
		return "blank and null votes of the round summary"
	case PhaseGrandTotal:
		return "reported grand total against valid + (blank + null) on each side, and across sources"
	}
	return ""
}

// Check identifiers of the grand total phase.
const (
	CheckPDFIdentity   = "pdf_recomputed_total"
	CheckCSVIdentity   = "csv_recomputed_total"
	CheckReportedTotal = "reported_total"
	CheckMissingInPDF  = "missing_in_pdf"
	CheckMissingInCSV  = "missing_in_csv"
)

// Discrepancy is one failed equality with the literal values involved.
// Cross-source checks fill PDF and CSV; identity checks fill Reported and
// Recomputed. A candidate present on one side only has a nil value on the
// other.
type Discrepancy struct {
	Candidate  string `json:"candidate,omitempty"`
	Field      string `json:"field"`
	Check      string `json:"check,omitempty"`
	PDF        *int64 `json:"pdf,omitempty"`
	CSV        *int64 `json:"csv,omitempty"`
	Reported   *int64 `json:"reported,omitempty"`
	Recomputed *int64 `json:"recomputed,omitempty"`
}

func (d Discrepancy) String() string {
	var b strings.Builder
	if d.Candidate != "" {
		fmt.Fprintf(&b, "%s ", d.Candidate)
	}
	b.WriteString(d.Field)
	switch d.Check {
	case CheckMissingInPDF:
		b.WriteString(": present in csv only")
		return b.String()
	case CheckMissingInCSV:
		b.WriteString(": present in pdf only")
		return b.String()
	case CheckPDFIdentity, CheckCSVIdentity:
		fmt.Fprintf(&b, " (%s): reported=%s recomputed=%s", d.Check, show(d.Reported), show(d.Recomputed))
		return b.String()
	}
	fmt.Fprintf(&b, ": pdf=%s csv=%s", show(d.PDF), show(d.CSV))
	return b.String()
}

func show(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

// PhaseOutcome is the result of one evaluated phase.
type PhaseOutcome struct {
	Phase         Phase         `json:"phase"`
	Name          string        `json:"name"`
	Passed        bool          `json:"passed"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
}

// Failure describes the first failing phase.
type Failure struct {
	Phase         Phase         `json:"phase"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

func (f *Failure) String() string {
	parts := make([]string, len(f.Discrepancies))
	for i, d := range f.Discrepancies {
		parts[i] = d.String()
	}
	return fmt.Sprintf("phase %d (%s) failed: %s", f.Phase, f.Name, strings.Join(parts, "; "))
}

// Result is the verification outcome. Phases holds only the phases that were
// evaluated: every passing phase up to and including the failing one.
type Result struct {
	Passed   bool           `json:"passed"`
	Round    record.Round   `json:"round"`
	Phases   []PhaseOutcome `json:"phases"`
	Failure  *Failure       `json:"failure,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}
