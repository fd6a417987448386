package extract

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// parseCount reads a vote count. Thousand separators (dot, comma, apostrophe
// and any kind of space) are dropped; what remains must be decimal digits.
func parseCount(s string) (int64, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '.' || r == ',' || r == '\'' || unicode.IsSpace(r):
			continue
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
		}
	}
	if b.Len() == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return n, nil
}

// looksNumeric reports whether s is made of digits, separators, signs and
// percent marks only, with at least one digit.
func looksNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == ',' || r == '\'' || r == '%' || r == '-' || r == '+' || unicode.IsSpace(r):
		default:
			return false
		}
	}
	return digits > 0
}

// isFraction reports whether s reads as a percentage or decimal figure
// rather than a count: it carries a percent sign, or its last separator is
// followed by one or two digits ("45,10", "0.5"). Thousand groups always
// have three.
func isFraction(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "%") {
		return true
	}
	i := strings.LastIndexAny(s, ".,")
	if i < 0 {
		return false
	}
	tail := s[i+1:]
	if len(tail) == 0 || len(tail) > 2 {
		return false
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isDigitGroup reports whether s is a bare three-digit thousands group,
// optionally led by a separator.
func isDigitGroup(s string) bool {
	s = strings.TrimLeft(strings.TrimSpace(s), ".,'")
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
