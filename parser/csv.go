package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVParser reads delimited text. Input with a UTF-8 or UTF-16 byte order mark
// is decoded accordingly; otherwise valid UTF-8 is used as is and anything
// else is read as Windows-1252, which is what spreadsheet exports on Spanish
// locales tend to produce.
type CSVParser struct {
	// Comma forces the delimiter. Zero sniffs it from the header line.
	Comma rune
}

func (p *CSVParser) SupportedFormats() []string { return []string{"csv", "tsv", "txt"} }

func (p *CSVParser) Parse(ctx context.Context, r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	decoded, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decoding CSV: %w", err)
	}

	comma := p.Comma
	if comma == 0 {
		comma = sniffDelimiter(decoded)
	}

	cr := csv.NewReader(bytes.NewReader(decoded))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", len(rows)+1, err)
		}
		if isBlankRow(rec) {
			continue
		}
		rows = append(rows, rec)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in CSV")
	}
	return rows, nil
}

func decodeText(data []byte) ([]byte, error) {
	var fallback encoding.Encoding = unicode.UTF8
	if !utf8.Valid(data) {
		fallback = charmap.Windows1252
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(fallback.NewDecoder()), data)
	return out, err
}

// sniffDelimiter picks the most frequent of , ; and tab on the first line,
// ignoring quoted text.
func sniffDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	counts := map[rune]int{}
	quoted := false
	for _, r := range line {
		switch r {
		case '"':
			quoted = !quoted
		case ',', ';', '\t':
			if !quoted {
				counts[r]++
			}
		}
	}
	best, n := ',', 0
	for _, r := range []rune{',', ';', '\t'} {
		if counts[r] > n {
			best, n = r, counts[r]
		}
	}
	return best
}

func isBlankRow(rec []string) bool {
	for _, c := range rec {
		if len(bytes.TrimSpace([]byte(c))) > 0 {
			return false
		}
	}
	return true
}
