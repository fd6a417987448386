package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultCellGap is the horizontal gap, in multiples of the font size, that
// separates two cells on the same row.
const DefaultCellGap = 1.2

// wordGap is the gap, in multiples of the font size, above which two glyph
// runs inside a cell are joined with a space.
const wordGap = 0.15

type PDFParser struct {
	CellGap float64
}

// ParseFile opens the PDF at path and extracts its blocks.
func (p *PDFParser) ParseFile(ctx context.Context, path string) ([]Block, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	return p.extract(ctx, reader)
}

// Parse extracts blocks from an in-memory or on-disk PDF.
func (p *PDFParser) Parse(ctx context.Context, r io.ReaderAt, size int64) ([]Block, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	return p.extract(ctx, reader)
}

// ParseReader buffers r to a temporary file first, since the PDF reader needs
// random access.
func (p *PDFParser) ParseReader(ctx context.Context, r io.Reader) ([]Block, error) {
	tmp, err := os.CreateTemp("", "auditor-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return nil, fmt.Errorf("writing temp PDF: %w", err)
	}
	return p.Parse(ctx, tmp, size)
}

func (p *PDFParser) extract(ctx context.Context, reader *pdf.Reader) ([]Block, error) {
	gap := p.CellGap
	if gap <= 0 {
		gap = DefaultCellGap
	}

	var blocks []Block
	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		blocks = append(blocks, pageBlocks(i, rows, gap)...)
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no text found in PDF")
	}
	return blocks, nil
}

// pageBlocks lays out the rows of one page top to bottom.
func pageBlocks(page int, rows pdf.Rows, gap float64) []Block {
	sorted := make([]*pdf.Row, 0, len(rows))
	for _, r := range rows {
		if r != nil && len(r.Content) > 0 {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position > sorted[j].Position
	})

	var blocks []Block
	rowIdx := 0
	for _, r := range sorted {
		cells := splitCells(r.Content, gap)
		if len(cells) == 0 {
			continue
		}
		for col, c := range cells {
			c.Page = page
			c.Row = rowIdx
			c.Column = col
			blocks = append(blocks, c)
		}
		rowIdx++
	}
	return blocks
}

// splitCells merges glyph runs of one row into cells. A new cell starts when
// the horizontal gap exceeds gap times the font size.
func splitCells(texts pdf.TextHorizontal, gap float64) []Block {
	runs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			runs = append(runs, t)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

	var (
		cells []Block
		cur   *Block
		text  strings.Builder
		end   float64
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.Join(strings.Fields(text.String()), " ")
		cur.Width = end - cur.X
		if cur.Text != "" {
			cells = append(cells, *cur)
		}
		cur = nil
		text.Reset()
	}

	for _, t := range runs {
		size := t.FontSize
		if size <= 0 {
			size = 10
		}
		if cur != nil {
			g := t.X - end
			switch {
			case g > gap*size:
				flush()
			case g > wordGap*size:
				text.WriteByte(' ')
			}
		}
		if cur == nil {
			cur = &Block{X: t.X, Y: t.Y}
			end = t.X
		}
		text.WriteString(t.S)
		if e := t.X + t.W; e > end {
			end = e
		}
	}
	flush()
	return cells
}
