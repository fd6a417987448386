// Package verify compares the PDF and tabulation records of one round in five
// ordered phases and stops at the first phase that fails.
package verify

import (
	"sort"

	"github.com/brunobiangulo/auditor/record"
)

type phaseFunc func(pdf, csv *record.Record) []Discrepancy

var phaseFuncs = map[Phase]phaseFunc{
	PhaseGender:          genderBreakdown,
	PhaseCandidateTotals: candidateTotals,
	PhaseValidVotes:      validVotes,
	PhaseBlankNull:       blankNull,
	PhaseGrandTotal:      grandTotal,
}

// Run verifies pdf against csv. A phase failure is reported in the Result,
// not as an error; errors are reserved for inputs that cannot be compared.
func Run(pdf, csv *record.Record) (*Result, error) {
	if pdf == nil || csv == nil {
		return nil, ErrNilRecord
	}
	if pdf.Round() != csv.Round() {
		return nil, &RoundMismatchError{PDF: pdf.Round(), CSV: csv.Round()}
	}

	res := &Result{Round: pdf.Round(), Passed: true}
	res.Warnings = append(res.Warnings, pdf.Warnings()...)
	res.Warnings = append(res.Warnings, csv.Warnings()...)

	for _, p := range Phases {
		ds := phaseFuncs[p](pdf, csv)
		res.Phases = append(res.Phases, PhaseOutcome{
			Phase:         p,
			Name:          p.Name(),
			Passed:        len(ds) == 0,
			Discrepancies: ds,
		})
		if len(ds) > 0 {
			res.Passed = false
			res.Failure = &Failure{
				Phase:         p,
				Name:          p.Name(),
				Description:   p.Description(),
				Discrepancies: ds,
			}
			break
		}
	}
	return res, nil
}

func ptr(v int64) *int64 { return &v }

func unionKeys(a, b *record.Record) []string {
	seen := map[string]struct{}{}
	var keys []string
	for _, r := range []*record.Record{a, b} {
		for _, k := range r.Keys() {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func differ(candidate, field string, pdf, csv int64) (Discrepancy, bool) {
	if pdf == csv {
		return Discrepancy{}, false
	}
	return Discrepancy{Candidate: candidate, Field: field, PDF: ptr(pdf), CSV: ptr(csv)}, true
}

func genderBreakdown(pdf, csv *record.Record) []Discrepancy {
	var out []Discrepancy
	for _, k := range unionKeys(pdf, csv) {
		p, inPDF := pdf.Candidate(k)
		c, inCSV := csv.Candidate(k)
		switch {
		case !inCSV:
			out = append(out, Discrepancy{Candidate: p.Name, Field: "candidate", Check: CheckMissingInCSV, PDF: ptr(p.Total)})
			continue
		case !inPDF:
			out = append(out, Discrepancy{Candidate: c.Name, Field: "candidate", Check: CheckMissingInPDF, CSV: ptr(c.Total)})
			continue
		}
		if d, ok := differ(p.Name, "female", p.Female, c.Female); ok {
			out = append(out, d)
		}
		if d, ok := differ(p.Name, "male", p.Male, c.Male); ok {
			out = append(out, d)
		}
	}
	return out
}

// candidateTotals only sees candidates present on both sides; the gender
// phase has already failed otherwise.
func candidateTotals(pdf, csv *record.Record) []Discrepancy {
	var out []Discrepancy
	for _, k := range pdf.Keys() {
		p, _ := pdf.Candidate(k)
		c, ok := csv.Candidate(k)
		if !ok {
			continue
		}
		if d, ok := differ(p.Name, "total", p.Total, c.Total); ok {
			out = append(out, d)
		}
	}
	return out
}

func validVotes(pdf, csv *record.Record) []Discrepancy {
	if d, ok := differ("", "valid", pdf.Summary().Valid, csv.Summary().Valid); ok {
		return []Discrepancy{d}
	}
	return nil
}

func blankNull(pdf, csv *record.Record) []Discrepancy {
	var out []Discrepancy
	ps, cs := pdf.Summary(), csv.Summary()
	if d, ok := differ("", "blank", ps.Blank, cs.Blank); ok {
		out = append(out, d)
	}
	if d, ok := differ("", "null", ps.Null, cs.Null); ok {
		out = append(out, d)
	}
	return out
}

func grandTotal(pdf, csv *record.Record) []Discrepancy {
	var out []Discrepancy
	for _, side := range []struct {
		check string
		s     record.Summary
	}{
		{CheckPDFIdentity, pdf.Summary()},
		{CheckCSVIdentity, csv.Summary()},
	} {
		if re := side.s.Recomputed(); re != side.s.Total {
			out = append(out, Discrepancy{
				Field:      "total",
				Check:      side.check,
				Reported:   ptr(side.s.Total),
				Recomputed: ptr(re),
			})
		}
	}
	if d, ok := differ("", "total", pdf.Summary().Total, csv.Summary().Total); ok {
		d.Check = CheckReportedTotal
		out = append(out, d)
	}
	return out
}
