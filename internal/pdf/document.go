package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Span is one style-homogeneous run of positioned text, as sampled for
// style extraction. Color is packed 0xRRGGBB.
type Span struct {
	Text  string
	Font  string // base font name from the resource dictionary
	Flags int    // font descriptor flags
	Size  float64
	Color int
	Rect  *types.Rectangle
}

// page carries the mutable per-page state: the combined content stream,
// the parsed fragments and lines derived from it, and queued redactions.
type page struct {
	nr      int
	dict    types.Dict
	res     types.Dict
	fonts   map[string]*fontRes
	content []byte
	frags   []fragment
	lines   []line
	qDepth  int
	parsed  bool
	dirty   bool
	pending []*types.Rectangle
	added   map[Font]string
}

func (d *Document) page(nr int) (*page, error) {
	if pg, ok := d.pages[nr]; ok {
		return pg, nil
	}

	pageDict, _, attrs, err := d.ctx.PageDict(nr, false)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", nr, err)
	}
	if pageDict == nil {
		return nil, fmt.Errorf("page %d: missing page dictionary", nr)
	}

	pg := &page{
		nr:    nr,
		dict:  pageDict,
		res:   resolveResources(d.ctx, pageDict, attrs),
		added: make(map[Font]string),
	}
	pg.fonts = loadPageFonts(d.ctx, pg.res)
	pg.content, err = pageContent(d.ctx, pageDict)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", nr, err)
	}

	d.pages[nr] = pg
	return pg, nil
}

// resolveResources returns the page's own resource dictionary, falling back
// to the inherited one from the page tree.
func resolveResources(ctx *model.Context, pageDict types.Dict, attrs *model.InheritedPageAttrs) types.Dict {
	if obj, found := pageDict.Find("Resources"); found {
		if res := derefDict(ctx, obj); res != nil {
			return res
		}
	}
	if attrs != nil && attrs.Resources != nil {
		return attrs.Resources
	}
	return nil
}

// pageContent concatenates the page's content streams into one buffer.
// A stream boundary is always a token boundary, so a newline join is safe.
func pageContent(ctx *model.Context, pageDict types.Dict) ([]byte, error) {
	obj, found := pageDict.Find("Contents")
	if !found {
		return nil, nil
	}
	blobs, err := contentBlobs(ctx, obj)
	if err != nil {
		return nil, err
	}
	return bytes.Join(blobs, []byte("\n")), nil
}

func contentBlobs(ctx *model.Context, obj types.Object) ([][]byte, error) {
	switch o := obj.(type) {
	case types.IndirectRef:
		deref, err := ctx.Dereference(o)
		if err != nil {
			return nil, fmt.Errorf("dereference contents: %w", err)
		}
		return contentBlobs(ctx, deref)
	case types.StreamDict:
		if len(o.Content) == 0 && len(o.Raw) > 0 {
			if err := o.Decode(); err != nil {
				return nil, fmt.Errorf("decode content stream: %w", err)
			}
		}
		return [][]byte{append([]byte(nil), o.Content...)}, nil
	case types.Array:
		var blobs [][]byte
		for _, item := range o {
			sub, err := contentBlobs(ctx, item)
			if err != nil {
				return nil, err
			}
			blobs = append(blobs, sub...)
		}
		return blobs, nil
	}
	return nil, nil
}

// ensureParsed builds the fragment and line views of the current content.
// Mutations invalidate the views; the next access reparses.
func (pg *page) ensureParsed() error {
	if pg.parsed {
		return nil
	}
	frags, qDepth, err := walkContent(pg.content, pg.fonts)
	if err != nil {
		return fmt.Errorf("page %d content: %w", pg.nr, err)
	}
	pg.frags = frags
	pg.qDepth = qDepth
	pg.lines = assembleLines(frags)
	pg.parsed = true
	return nil
}

// SearchPage returns the bounding box of every literal occurrence of text
// on the page, top to bottom and left to right. Matching is case-sensitive
// and confined to single lines: an occurrence wrapped onto the next line is
// not found.
func (d *Document) SearchPage(pageNr int, text string) ([]*types.Rectangle, error) {
	if text == "" {
		return nil, nil
	}
	pg, err := d.page(pageNr)
	if err != nil {
		return nil, err
	}
	if err := pg.ensureParsed(); err != nil {
		return nil, err
	}

	var out []*types.Rectangle
	for i := range pg.lines {
		ln := &pg.lines[i]
		for _, occ := range ln.occurrences(text) {
			out = append(out, types.NewRectangle(
				ln.origins[occ[0]],
				ln.y-descentRatio*ln.size,
				ln.origins[occ[1]],
				ln.y+ascentRatio*ln.size,
			))
		}
	}
	return out, nil
}

// SpansInRect returns the page's text spans that overlap clip, in reading
// order.
func (d *Document) SpansInRect(pageNr int, clip *types.Rectangle) ([]Span, error) {
	pg, err := d.page(pageNr)
	if err != nil {
		return nil, err
	}
	if err := pg.ensureParsed(); err != nil {
		return nil, err
	}

	var out []Span
	for i := range pg.lines {
		for _, idx := range pg.lines[i].frags {
			f := &pg.frags[idx]
			llx, lly, urx, ury := f.bbox()
			if w, h := rectOverlap(llx, lly, urx, ury, clip); w > 0 && h > 0 {
				out = append(out, pg.spanFor(f))
			}
		}
	}
	return out, nil
}

func (pg *page) spanFor(f *fragment) Span {
	sp := Span{
		Text:  f.text,
		Font:  f.font,
		Size:  f.size,
		Color: f.color,
	}
	if fr := pg.fonts[f.font]; fr != nil {
		if fr.baseFont != "" {
			sp.Font = fr.baseFont
		}
		sp.Flags = fr.flags
	}
	llx, lly, urx, ury := f.bbox()
	sp.Rect = types.NewRectangle(llx, lly, urx, ury)
	return sp
}

// rectOverlap returns the width and height of the intersection between a
// box and r; non-positive values mean no overlap on that axis.
func rectOverlap(llx, lly, urx, ury float64, r *types.Rectangle) (float64, float64) {
	w := minFloat(urx, r.UR.X) - maxFloat(llx, r.LL.X)
	h := minFloat(ury, r.UR.Y) - maxFloat(lly, r.LL.Y)
	return w, h
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// flush writes the page's mutated content back into the cross-reference
// table as a single compressed stream.
func (pg *page) flush(ctx *model.Context) error {
	if !pg.dirty {
		return nil
	}
	sd, err := ctx.NewStreamDictForBuf(pg.content)
	if err != nil {
		return fmt.Errorf("page %d: new content stream: %w", pg.nr, err)
	}
	if err := sd.Encode(); err != nil {
		return fmt.Errorf("page %d: encode content stream: %w", pg.nr, err)
	}
	ir, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return fmt.Errorf("page %d: register content stream: %w", pg.nr, err)
	}
	pg.dict.Update("Contents", *ir)
	pg.dirty = false
	return nil
}
