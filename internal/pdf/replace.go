package pdf

import (
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

// Replacements maps literal source text to literal target text. Keys are
// processed in sorted order per page so results are deterministic.
type Replacements map[string]string

// Engine is the document capability the replacer drives. *Document
// implements it.
type Engine interface {
	PageCount() int
	SearchPage(pageNr int, text string) ([]*types.Rectangle, error)
	SpansInRect(pageNr int, clip *types.Rectangle) ([]Span, error)
	AddRedaction(pageNr int, r *types.Rectangle) error
	ApplyRedactions(pageNr int) error
	InsertText(pageNr int, pos types.Point, text string, font Font, size float64, color [3]float64) error
	Serialize() ([]byte, error)
}

var _ Engine = (*Document)(nil)

// Replacer rewrites literal text occurrences across a PDF, carrying over
// the style of whatever it replaces.
type Replacer struct {
	logger *zap.Logger
	open   func(data []byte) (Engine, error)
}

// NewReplacer creates a Replacer. A nil logger disables logging.
func NewReplacer(logger *zap.Logger) *Replacer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replacer{
		logger: logger,
		open:   func(data []byte) (Engine, error) { return Open(data) },
	}
}

// Style applied when an occurrence's original style cannot be sampled, and
// the lift that puts inserted text back on the matched baseline.
const (
	fallbackSize = 11.0
	baselineLift = 2.0
)

// Replace applies rules to every page of the document in data and returns
// the rewritten bytes plus the number of insertions made. Each occurrence
// is replaced in place: its style is sampled first, the matched area is
// redacted white, and the target text is inserted on the old baseline.
// With an empty mapping or zero occurrences the input bytes come back
// unchanged.
func (r *Replacer) Replace(data []byte, rules Replacements) ([]byte, int, error) {
	if len(rules) == 0 {
		return data, 0, nil
	}

	doc, err := r.open(data)
	if err != nil {
		return nil, 0, err
	}

	keys := make([]string, 0, len(rules))
	for source := range rules {
		keys = append(keys, source)
	}
	sort.Strings(keys)

	total := 0
	for pageNr := 1; pageNr <= doc.PageCount(); pageNr++ {
		for _, source := range keys {
			n, err := r.replaceOnPage(doc, pageNr, source, rules[source])
			if err != nil {
				return nil, 0, err
			}
			total += n
		}
	}
	if total == 0 {
		return data, 0, nil
	}

	out, err := doc.Serialize()
	if err != nil {
		return nil, 0, err
	}
	r.logger.Info("replaced pdf text",
		zap.Int("substitutions", total),
		zap.Int("rules", len(keys)),
	)
	return out, total, nil
}

// replaceOnPage handles every occurrence of source on one page. Occurrence
// rectangles are computed once, up front; redacting one occurrence does not
// move the others.
func (r *Replacer) replaceOnPage(doc Engine, pageNr int, source, target string) (int, error) {
	rects, err := doc.SearchPage(pageNr, source)
	if err != nil {
		return 0, err
	}
	if len(rects) == 0 {
		return 0, nil
	}

	for _, rect := range rects {
		font, size, color := sampleStyle(doc, pageNr, rect)
		if err := doc.AddRedaction(pageNr, rect); err != nil {
			return 0, err
		}
		if err := doc.ApplyRedactions(pageNr); err != nil {
			return 0, err
		}
		at := types.Point{X: rect.LL.X, Y: rect.LL.Y + baselineLift}
		if err := doc.InsertText(pageNr, at, target, font, size, color); err != nil {
			return 0, err
		}
	}

	r.logger.Debug("replaced occurrences",
		zap.Int("page", pageNr),
		zap.String("source", source),
		zap.Int("count", len(rects)),
	)
	return len(rects), nil
}

// sampleStyle picks the style for one occurrence from the first text span
// overlapping its rectangle. When nothing can be sampled the replacement
// falls back to black 11pt Helvetica.
func sampleStyle(doc Engine, pageNr int, rect *types.Rectangle) (Font, float64, [3]float64) {
	spans, err := doc.SpansInRect(pageNr, rect)
	if err != nil || len(spans) == 0 {
		return Helvetica, fallbackSize, [3]float64{0, 0, 0}
	}
	sp := spans[0]
	return Classify(sp.Font, sp.Flags), sp.Size, unpackColor(sp.Color)
}

// unpackColor expands a packed 0xRRGGBB value into RGB components in [0,1].
func unpackColor(c int) [3]float64 {
	return [3]float64{
		float64(c>>16&0xFF) / 255,
		float64(c>>8&0xFF) / 255,
		float64(c&0xFF) / 255,
	}
}
