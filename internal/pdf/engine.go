// Package pdf rewrites text in PDF documents while keeping the original
// styling. It locates literal text on a page, samples the style of what is
// already there, removes the matched show operations from the content
// stream, paints the matched area white, and writes replacement text with
// one of the fourteen built-in fonts.
package pdf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNotPDF flags input bytes that cannot be opened as a PDF document.
var ErrNotPDF = errors.New("not a pdf")

// Document is an open PDF held in memory for mutation. Pages load lazily
// and keep their mutated content until Serialize writes everything back.
type Document struct {
	ctx   *model.Context
	pages map[int]*page
}

// Open parses data into a mutable document. Validation is relaxed, the
// same leniency a viewer applies.
func Open(data []byte) (*Document, error) {
	if !looksLikePDF(data) {
		return nil, fmt.Errorf("%w: missing %%PDF header", ErrNotPDF)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	return &Document{ctx: ctx, pages: make(map[int]*page)}, nil
}

// looksLikePDF checks for the %PDF marker within the first kilobyte, the
// accepted tolerance for junk bytes before the header.
func looksLikePDF(data []byte) bool {
	limit := len(data)
	if limit > 1024 {
		limit = 1024
	}
	return bytes.Contains(data[:limit], []byte("%PDF-"))
}

// PageCount returns the number of pages. Pages are addressed 1-based.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// Serialize writes the document back to bytes. Mutated page contents are
// flushed as fresh compressed streams, then the cross-reference table is
// optimized so unreferenced objects drop out.
func (d *Document) Serialize() ([]byte, error) {
	for _, pg := range d.pages {
		if err := pg.flush(d.ctx); err != nil {
			return nil, err
		}
	}
	if err := api.OptimizeContext(d.ctx); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	return buf.Bytes(), nil
}
