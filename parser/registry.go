package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Registry maps tabulation formats (file extensions without the dot) to
// their parsers.
type Registry struct {
	parsers map[string]TableParser
}

// NewRegistry registers parsers under each of their formats. With no
// parsers it registers a default CSVParser and XLSXParser.
func NewRegistry(parsers ...TableParser) *Registry {
	if len(parsers) == 0 {
		parsers = []TableParser{&CSVParser{}, &XLSXParser{}}
	}
	r := &Registry{parsers: make(map[string]TableParser)}
	for _, p := range parsers {
		for _, f := range p.SupportedFormats() {
			r.Register(f, p)
		}
	}
	return r
}

func (r *Registry) Get(format string) (TableParser, error) {
	p, ok := r.parsers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

func (r *Registry) Register(format string, p TableParser) {
	r.parsers[strings.ToLower(format)] = p
}

// FormatOf returns the lower-cased extension of path without the dot.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
