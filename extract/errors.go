package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brunobiangulo/auditor/record"
)

var (
	// ErrSchema is matched by every *SchemaError.
	ErrSchema = errors.New("extract: schema error")

	// ErrExtraction is matched by every *ExtractionError.
	ErrExtraction = errors.New("extract: extraction failed")

	// ErrRoundNotFound is returned when a source has no data for the requested round.
	ErrRoundNotFound = errors.New("round not found")

	// ErrProvinceNotFound is returned when the tabulation has no rows for
	// the selected province in the requested round.
	ErrProvinceNotFound = errors.New("province not found")

	// ErrHeaderNotFound is returned when the PDF round section has no candidate table header.
	ErrHeaderNotFound = errors.New("candidate table header not found")

	// ErrMissingField is returned when a required count is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidNumber is returned when a count is not a non-negative integer.
	ErrInvalidNumber = errors.New("invalid count")

	// ErrInconsistentSummary is returned in strict mode when repeated summary
	// values disagree across rows of the same round.
	ErrInconsistentSummary = errors.New("inconsistent round summary")

	// ErrDuplicateCandidate is returned when a candidate appears twice in a round.
	ErrDuplicateCandidate = errors.New("duplicate candidate")
)

// SchemaError reports required tabulation columns that are missing from the
// header row.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s schema: missing required column(s): %s", e.Source, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ExtractionError locates a failure inside one source: the round, and when
// known the candidate, field and row involved.
type ExtractionError struct {
	Source    string
	Round     record.Round
	Field     string
	Candidate string
	Row       int // 1-based row of the tabulation (header is row 1), 0 when not row-specific
	Err       error
}

func (e *ExtractionError) Error() string {
	var where []string
	where = append(where, fmt.Sprintf("round %q", e.Round))
	if e.Candidate != "" {
		where = append(where, fmt.Sprintf("candidate %q", e.Candidate))
	}
	if e.Field != "" {
		where = append(where, "field "+e.Field)
	}
	if e.Row > 0 {
		where = append(where, fmt.Sprintf("row %d", e.Row))
	}
	return fmt.Sprintf("%s extraction (%s): %v", e.Source, strings.Join(where, ", "), e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }
