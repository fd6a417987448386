package verify

import (
	"errors"
	"fmt"

	"github.com/brunobiangulo/auditor/record"
)

var (
	// ErrNilRecord is returned when either record is missing.
	ErrNilRecord = errors.New("verify: nil record")

	// ErrRoundMismatch is matched by every *RoundMismatchError.
	ErrRoundMismatch = errors.New("verify: round mismatch")
)

// RoundMismatchError reports two records extracted for different rounds.
// No phase runs when it is returned.
type RoundMismatchError struct {
	PDF record.Round
	CSV record.Round
}

func (e *RoundMismatchError) Error() string {
	return fmt.Sprintf("verify: round mismatch: pdf round %q, csv round %q", e.PDF, e.CSV)
}

func (e *RoundMismatchError) Is(target error) bool { return target == ErrRoundMismatch }
