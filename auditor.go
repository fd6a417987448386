// Package auditor reconciles an official PDF results report with a
// consolidated vote tabulation for one electoral round.
package auditor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/brunobiangulo/auditor/extract"
	"github.com/brunobiangulo/auditor/parser"
	"github.com/brunobiangulo/auditor/record"
	"github.com/brunobiangulo/auditor/verify"
)

// Engine is the main entry point of the auditor.
type Engine interface {
	// Verify extracts both sources for the round and runs the phased
	// comparison. A phase failure is reported in the Result, not as an
	// error.
	Verify(ctx context.Context, in Input) (*verify.Result, error)

	// VerifyFiles is Verify over files on disk. The tabulation format is
	// taken from the file extension.
	VerifyFiles(ctx context.Context, pdfPath, tablePath string, round record.Round) (*verify.Result, error)

	// Blocks returns the positioned text blocks of a PDF, as the extractor
	// sees them.
	Blocks(ctx context.Context, pdfPath string) ([]parser.Block, error)

	// Rounds reports the round detected in a PDF ("" when none) and the
	// rounds present in a tabulation.
	Rounds(ctx context.Context, pdfPath, tablePath string) (record.Round, []record.Round, error)
}

// Input is one verification request. PDF and Table are read once.
type Input struct {
	PDF     io.ReaderAt
	PDFSize int64

	Table       io.Reader
	TableFormat string // file extension without the dot, "csv" when empty

	// Round to verify. Empty falls back to Config.Round, then to detection
	// from the PDF markers.
	Round record.Round

	// Province restricts a per-province tabulation to one province. Empty
	// falls back to Config.Province, then to the province the PDF names,
	// then to every row of the round.
	Province string
}

// selection is what a run is restricted to, before resolution.
type selection struct {
	round    record.Round
	province string
}

// engine is the concrete implementation of Engine. It holds no mutable state
// and serves concurrent calls.
type engine struct {
	cfg    Config
	pdf    *parser.PDFParser
	tables *parser.Registry
}

// New creates an auditor engine with the given configuration.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &engine{
		cfg:    cfg,
		pdf:    &parser.PDFParser{CellGap: cfg.CellGap},
		tables: parser.NewRegistry(
			&parser.CSVParser{Comma: cfg.comma()},
			&parser.XLSXParser{Sheet: cfg.Sheet},
		),
	}, nil
}

func (e *engine) Verify(ctx context.Context, in Input) (*verify.Result, error) {
	start := time.Now()
	if in.PDF == nil || in.Table == nil {
		return nil, fmt.Errorf("%w: both a pdf and a tabulation are required", ErrParsingFailed)
	}

	format := in.TableFormat
	if format == "" {
		format = "csv"
	}
	tp, err := e.tables.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	slog.Info("verify: parsing pdf", "size", in.PDFSize)
	parseStart := time.Now()
	blocks, err := e.pdf.Parse(ctx, in.PDF, in.PDFSize)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf: %w", ErrParsingFailed, err)
	}
	slog.Debug("verify: pdf parsed", "blocks", len(blocks),
		"elapsed", time.Since(parseStart).Round(time.Millisecond))

	slog.Info("verify: parsing tabulation", "format", format)
	rows, err := tp.Parse(ctx, in.Table)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParsingFailed, format, err)
	}
	slog.Debug("verify: tabulation parsed", "rows", len(rows))

	return e.reconcile(ctx, blocks, rows, format, selection{round: in.Round, province: in.Province}, start)
}

// reconcile runs round resolution, extraction and the phased comparison on
// already parsed sources.
func (e *engine) reconcile(ctx context.Context, blocks []parser.Block, rows [][]string, format string, sel selection, start time.Time) (*verify.Result, error) {
	round, err := e.resolveRound(sel.round, blocks)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdfRec, err := extract.PDF(blocks, round, e.cfg.PDF)
	if err != nil {
		return nil, fmt.Errorf("extracting pdf: %w", err)
	}
	opts := e.cfg.Table
	opts.Province = e.resolveProvince(sel.province, blocks, rows)
	tableRec, err := extract.TableFrom(tableSource(format), rows, round, opts)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", format, err)
	}
	slog.Info("verify: extraction complete", "round", round, "province", opts.Province,
		"pdf_candidates", pdfRec.Len(), "table_candidates", tableRec.Len())

	res, err := verify.Run(pdfRec, tableRec)
	if err != nil {
		return nil, fmt.Errorf("verifying: %w", err)
	}
	for _, w := range res.Warnings {
		slog.Warn("verify: extraction warning", "round", round, "warning", w)
	}

	if res.Passed {
		slog.Info("verify: all phases passed", "round", round,
			"elapsed", time.Since(start).Round(time.Millisecond))
	} else {
		slog.Info("verify: phase failed", "round", round,
			"phase", int(res.Failure.Phase), "name", res.Failure.Name,
			"discrepancies", len(res.Failure.Discrepancies),
			"elapsed", time.Since(start).Round(time.Millisecond))
	}
	return res, nil
}

func (e *engine) VerifyFiles(ctx context.Context, pdfPath, tablePath string, round record.Round) (*verify.Result, error) {
	pdfFile, size, err := openSized(pdfPath)
	if err != nil {
		return nil, err
	}
	defer pdfFile.Close()

	tableFile, err := os.Open(tablePath)
	if err != nil {
		return nil, fmt.Errorf("opening tabulation: %w", err)
	}
	defer tableFile.Close()

	return e.Verify(ctx, Input{
		PDF:         pdfFile,
		PDFSize:     size,
		Table:       tableFile,
		TableFormat: parser.FormatOf(tablePath),
		Round:       round,
	})
}

func (e *engine) Blocks(ctx context.Context, pdfPath string) ([]parser.Block, error) {
	blocks, err := e.pdf.ParseFile(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf: %w", ErrParsingFailed, err)
	}
	return blocks, nil
}

func (e *engine) Rounds(ctx context.Context, pdfPath, tablePath string) (record.Round, []record.Round, error) {
	var detected record.Round
	if pdfPath != "" {
		blocks, err := e.Blocks(ctx, pdfPath)
		if err != nil {
			return "", nil, err
		}
		detected, _ = extract.DetectRound(blocks, e.cfg.PDF.Rounds)
	}
	if tablePath == "" {
		return detected, nil, nil
	}

	format := parser.FormatOf(tablePath)
	tp, err := e.tables.Get(format)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	f, err := os.Open(tablePath)
	if err != nil {
		return "", nil, fmt.Errorf("opening tabulation: %w", err)
	}
	defer f.Close()

	rows, err := tp.Parse(ctx, f)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrParsingFailed, format, err)
	}
	rounds, err := extract.Rounds(rows, e.cfg.Table)
	if err != nil {
		return "", nil, fmt.Errorf("reading rounds: %w", err)
	}
	return detected, rounds, nil
}

// resolveRound picks the requested round, the configured one, or the one
// whose marker appears first in the PDF.
func (e *engine) resolveRound(requested record.Round, blocks []parser.Block) (record.Round, error) {
	if r := record.ParseRound(string(requested)); r != "" {
		return r, nil
	}
	if r := record.ParseRound(e.cfg.Round); r != "" {
		return r, nil
	}
	r, ok := extract.DetectRound(blocks, e.cfg.PDF.Rounds)
	if !ok {
		return "", ErrRoundNotDetected
	}
	slog.Info("verify: round detected from pdf", "round", r)
	return r, nil
}

// resolveProvince picks the requested province, the configured one, or the
// one the PDF names among those of the tabulation. Empty means every row.
func (e *engine) resolveProvince(requested string, blocks []parser.Block, rows [][]string) string {
	if p := strings.TrimSpace(requested); p != "" {
		return p
	}
	if p := strings.TrimSpace(e.cfg.Province); p != "" {
		return p
	}
	provinces := extract.Provinces(rows, e.cfg.Table)
	if len(provinces) == 0 {
		return ""
	}
	p, ok := extract.DetectProvince(blocks, provinces)
	if !ok {
		return ""
	}
	slog.Info("verify: province detected from pdf", "province", p)
	return p
}

func tableSource(format string) string {
	switch format {
	case "xlsx", "xlsm":
		return "xlsx"
	}
	return "csv"
}

func openSized(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening pdf: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat pdf: %w", err)
	}
	return f, info.Size(), nil
}
