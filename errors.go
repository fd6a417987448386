package auditor

import "errors"

var (
	// ErrUnsupportedFormat is returned for tabulation formats with no parser.
	ErrUnsupportedFormat = errors.New("auditor: unsupported tabulation format")

	// ErrParsingFailed is returned when a source file cannot be read into
	// blocks or rows.
	ErrParsingFailed = errors.New("auditor: parsing failed")

	// ErrRoundNotDetected is returned when no round was given and none of
	// the configured round markers appears in the PDF.
	ErrRoundNotDetected = errors.New("auditor: round not given and not detected")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("auditor: invalid configuration")
)
