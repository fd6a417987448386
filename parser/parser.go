// Package parser turns raw source documents into the shapes the vote
// extractors work on: positioned text blocks for PDF reports and rows of
// string cells for tabulations.
package parser

import (
	"context"
	"io"
)

// Block is one cell of text extracted from a PDF page. Row and Column are
// indexes within the page and row; X, Y and Width are in PDF user space
// (Y grows upwards).
type Block struct {
	Page   int     `json:"page"`
	Row    int     `json:"row"`
	Column int     `json:"column"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Text   string  `json:"text"`
}

// TableParser reads a tabulation into rows of string cells. The first row is
// the header.
type TableParser interface {
	Parse(ctx context.Context, r io.Reader) ([][]string, error)
	SupportedFormats() []string
}
