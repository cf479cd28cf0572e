package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// AddRedaction queues a rectangle for removal on the page. Nothing changes
// until ApplyRedactions runs.
func (d *Document) AddRedaction(pageNr int, r *types.Rectangle) error {
	pg, err := d.page(pageNr)
	if err != nil {
		return err
	}
	pg.pending = append(pg.pending, r)
	return nil
}

// ApplyRedactions executes the queued redactions: every show operation
// whose text overlaps a queued rectangle is cut out of the content stream,
// replaced by a no-glyph stub that keeps the text state moving the same
// way, and each rectangle is painted white on top.
func (d *Document) ApplyRedactions(pageNr int) error {
	pg, err := d.page(pageNr)
	if err != nil {
		return err
	}
	if len(pg.pending) == 0 {
		return nil
	}
	if err := pg.ensureParsed(); err != nil {
		return err
	}

	var cuts []*fragment
	seen := make(map[int]struct{})
	for i := range pg.frags {
		f := &pg.frags[i]
		if !redactionHit(f, pg.pending) {
			continue
		}
		if _, dup := seen[f.start]; dup {
			continue
		}
		seen[f.start] = struct{}{}
		cuts = append(cuts, f)
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].start < cuts[j].start })

	var out bytes.Buffer
	pos := 0
	for _, f := range cuts {
		if f.start < pos {
			continue
		}
		out.Write(pg.content[pos:f.start])
		out.WriteString(compensation(f))
		pos = f.end
	}
	out.Write(pg.content[pos:])

	closeSaves(&out, pg.qDepth)
	for _, r := range pg.pending {
		fillRect(&out, r)
	}

	pg.content = out.Bytes()
	pg.pending = nil
	pg.dirty = true
	pg.parsed = false
	return nil
}

// redactionHit reports whether the fragment's box genuinely overlaps one of
// the rectangles. A sliver of contact does not count; neighboring text must
// survive.
func redactionHit(f *fragment, rects []*types.Rectangle) bool {
	llx, lly, urx, ury := f.bbox()
	for _, r := range rects {
		w, h := rectOverlap(llx, lly, urx, ury, r)
		if w > 0.5 && h > 0.25*f.size {
			return true
		}
	}
	return false
}

// compensation builds the stub that stands in for a removed show operation:
// the operator's side effects, then a TJ adjustment covering the advance the
// glyphs would have produced.
func compensation(f *fragment) string {
	var parts []string
	if f.prelude != "" {
		parts = append(parts, f.prelude)
	}
	if f.kern1000 != 0 {
		parts = append(parts, fmt.Sprintf("[%s] TJ", fmtNum(-f.kern1000)))
	}
	if len(parts) == 0 {
		return " "
	}
	return " " + strings.Join(parts, " ") + " "
}

// closeSaves pops graphics-state saves the original content left open, so
// appended paint commands run in the page's default state.
func closeSaves(b *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("\nQ")
	}
}

// fillRect paints r solid white.
func fillRect(b *bytes.Buffer, r *types.Rectangle) {
	fmt.Fprintf(b, "\nq 1 1 1 rg %s %s %s %s re f Q",
		fmtNum(r.LL.X), fmtNum(r.LL.Y), fmtNum(r.Width()), fmtNum(r.Height()))
}

// InsertText writes text at pos using one of the built-in fonts. Color is
// RGB in [0,1]. Characters outside the single-byte range render as '?'.
func (d *Document) InsertText(pageNr int, pos types.Point, text string, font Font, size float64, color [3]float64) error {
	pg, err := d.page(pageNr)
	if err != nil {
		return err
	}
	if err := pg.ensureParsed(); err != nil {
		return err
	}
	name, err := ensureFontResource(d.ctx, pg, font)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	out.Write(pg.content)
	closeSaves(&out, pg.qDepth)
	fmt.Fprintf(&out, "\nq BT /%s %s Tf %s %s %s rg 1 0 0 1 %s %s Tm (%s) Tj ET Q",
		name, fmtNum(size),
		fmtNum(color[0]), fmtNum(color[1]), fmtNum(color[2]),
		fmtNum(pos.X), fmtNum(pos.Y),
		escapeText(text))

	pg.content = out.Bytes()
	pg.dirty = true
	pg.parsed = false
	return nil
}

// escapeText encodes text as a literal string, backslash-escaping the
// delimiters and substituting '?' for anything beyond Latin-1.
func escapeText(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r > 0xFF {
				b.WriteByte('?')
			} else {
				b.WriteByte(byte(r))
			}
		}
	}
	return b.String()
}
