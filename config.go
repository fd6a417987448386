package auditor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/auditor/extract"
	"github.com/brunobiangulo/auditor/parser"
)

// Config holds all configuration for the auditor engine.
type Config struct {
	// Round is verified when the caller does not name one. Empty means
	// detect it from the PDF round markers.
	Round string `json:"round" yaml:"round"`

	// Province restricts per-province tabulations to one province when the
	// caller does not name one. Empty means the one the PDF names, if any,
	// else every row of the round.
	Province string `json:"province" yaml:"province"`

	// Extraction vocabulary
	PDF   extract.PDFOptions   `json:"pdf" yaml:"pdf"`
	Table extract.TableOptions `json:"table" yaml:"table"`

	// PDF layout
	CellGap float64 `json:"cell_gap" yaml:"cell_gap"` // horizontal gap between cells, in font sizes

	// Tabulation reading
	Sheet        string `json:"sheet" yaml:"sheet"`                 // XLSX sheet, first one when empty
	CSVDelimiter string `json:"csv_delimiter" yaml:"csv_delimiter"` // single character, sniffed when empty
}

// DefaultConfig returns a Config matching the national results report and the
// consolidated tabulation export.
func DefaultConfig() Config {
	return Config{
		PDF:     extract.DefaultPDFOptions(),
		Table:   extract.DefaultTableOptions(),
		CellGap: parser.DefaultCellGap,
	}
}

// LoadConfig reads a YAML (or JSON) file over DefaultConfig. Keys absent from
// the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from AUDITOR_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("AUDITOR_ROUND"); v != "" {
		c.Round = strings.TrimSpace(v)
	}
	if v := os.Getenv("AUDITOR_PROVINCE"); v != "" {
		c.Province = strings.TrimSpace(v)
	}
	if v := os.Getenv("AUDITOR_STRICT_SUMMARY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: AUDITOR_STRICT_SUMMARY=%q", ErrInvalidConfig, v)
		}
		c.Table.StrictSummary = b
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.CellGap < 0 {
		return fmt.Errorf("%w: cell_gap must not be negative", ErrInvalidConfig)
	}
	if utf8.RuneCountInString(c.CSVDelimiter) > 1 {
		return fmt.Errorf("%w: csv_delimiter must be a single character", ErrInvalidConfig)
	}
	for _, rm := range c.PDF.Rounds {
		if rm.Round == "" || len(rm.Markers) == 0 {
			return fmt.Errorf("%w: pdf round %q needs a name and at least one marker", ErrInvalidConfig, rm.Round)
		}
	}

	for _, r := range []struct {
		name   string
		labels []string
	}{
		{"pdf.female", c.PDF.Female},
		{"pdf.male", c.PDF.Male},
		{"pdf.total", c.PDF.Total},
		{"table.candidate", c.Table.Candidate},
		{"table.female", c.Table.Female},
		{"table.male", c.Table.Male},
		{"table.total", c.Table.Total},
		{"table.round", c.Table.Round},
		{"table.valid", c.Table.Valid},
		{"table.blank", c.Table.Blank},
		{"table.null", c.Table.Null},
		{"table.grand_total", c.Table.GrandTotal},
	} {
		if len(r.labels) == 0 {
			return fmt.Errorf("%w: %s needs at least one label", ErrInvalidConfig, r.name)
		}
	}
	return nil
}

func (c *Config) comma() rune {
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	if r == utf8.RuneError {
		return 0
	}
	return r
}
