package docx

import (
	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// FlattenStats reports what a flattening pass changed.
type FlattenStats struct {
	ParagraphsExtracted int `json:"paragraphs_extracted"`
	TextboxesRemoved    int `json:"textboxes_removed"`
	DuplicatesRemoved   int `json:"duplicates_removed"`
}

// Changed reports whether the pass rewrote the document body. An anchor
// paragraph whose text box held no paragraphs at all extracts nothing, and
// a document where that was the only candidate is left untouched.
func (s FlattenStats) Changed() bool {
	return s.ParagraphsExtracted > 0 || s.DuplicatesRemoved > 0
}

// Flattener collapses floating text boxes into the normal content flow.
//
// Converters that import page-description documents place recovered text in
// anchored text boxes nested inside drawings:
//
//	<w:p><w:drawing>...<wps:txbx><w:txbxContent><w:p>...
//
// Word-processing flows built that way reflow badly and often repeat the
// same text once per anchor. Flatten promotes the paragraphs inside every
// text-box container to the top level of the body and drops paragraphs whose
// trimmed text was already emitted anywhere earlier in the document.
type Flattener struct {
	logger *zap.Logger
}

// NewFlattener creates a Flattener. A nil logger disables logging.
func NewFlattener(logger *zap.Logger) *Flattener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flattener{logger: logger}
}

// Flatten rewrites the document entry of the package in data and returns the
// rebuilt package. Flattening is best effort: on any processing problem the
// original bytes come back unchanged, because normalization must never block
// the conversion pipeline. When nothing needed to change, the returned slice
// is the input slice, byte for byte.
func (f *Flattener) Flatten(data []byte) ([]byte, FlattenStats) {
	out, stats, err := f.flatten(data)
	if err != nil {
		f.logger.Warn("textbox flattening skipped", zap.Error(err))
		return data, FlattenStats{}
	}
	return out, stats
}

func (f *Flattener) flatten(data []byte) ([]byte, FlattenStats, error) {
	var stats FlattenStats

	pkg, err := OpenPackage(data)
	if err != nil {
		return nil, stats, err
	}
	if !pkg.Has(documentEntry) {
		// Not a word-processing package. Nothing to do.
		return data, stats, nil
	}
	docXML, err := pkg.Read(documentEntry)
	if err != nil {
		return nil, stats, err
	}

	doc, err := parseXML(docXML)
	if err != nil {
		return nil, stats, err
	}
	body := findBody(doc)
	if body == nil {
		return data, stats, nil
	}

	rebuilt, stats := flattenBody(body)
	if !stats.Changed() {
		return data, stats, nil
	}

	// Section properties stay last across any body rewrite.
	var sectPr *etree.Element
	for _, child := range body.ChildElements() {
		if matchesTag(child, tagSectPr) {
			sectPr = child
			break
		}
	}
	for _, child := range body.ChildElements() {
		body.RemoveChild(child)
	}
	for _, child := range rebuilt {
		body.AddChild(child)
	}
	if sectPr != nil {
		body.AddChild(sectPr)
	}

	newXML, err := serializeXML(doc)
	if err != nil {
		return nil, stats, err
	}
	out, err := pkg.Rebuild(map[string][]byte{documentEntry: newXML})
	if err != nil {
		return nil, stats, err
	}

	f.logger.Info("flattened text boxes",
		zap.Int("paragraphsExtracted", stats.ParagraphsExtracted),
		zap.Int("textboxesRemoved", stats.TextboxesRemoved),
		zap.Int("duplicatesRemoved", stats.DuplicatesRemoved),
	)
	return out, stats, nil
}

// flattenBody walks the body children in order and produces the replacement
// child sequence. The seen set spans the whole document, so a paragraph
// repeated by a later text box is dropped no matter where its first copy
// appeared. Only paragraphs are deduplicated; tables and any other block
// elements pass through untouched. The returned sequence excludes the
// trailing section properties, which the caller reappends.
func flattenBody(body *etree.Element) ([]*etree.Element, FlattenStats) {
	var stats FlattenStats
	seen := make(map[string]struct{})
	var newChildren []*etree.Element

	for _, child := range body.ChildElements() {
		if matchesTag(child, tagSectPr) {
			continue
		}
		if !matchesTag(child, tagParagraph) {
			newChildren = append(newChildren, child)
			continue
		}

		containers := findAll(child, tagTextboxCont)
		if len(containers) == 0 {
			text := paragraphText(child)
			if text != "" {
				if _, dup := seen[text]; dup {
					stats.DuplicatesRemoved++
					continue
				}
				seen[text] = struct{}{}
			}
			newChildren = append(newChildren, child)
			continue
		}

		// The outer paragraph only anchors the drawing; it is replaced by
		// the paragraphs inside its text-box containers and never kept
		// itself.
		for _, container := range containers {
			for _, inner := range container.ChildElements() {
				if !matchesTag(inner, tagParagraph) {
					continue
				}
				text := paragraphText(inner)
				if text != "" {
					if _, dup := seen[text]; dup {
						stats.DuplicatesRemoved++
						continue
					}
					seen[text] = struct{}{}
				}
				newChildren = append(newChildren, cloneElement(inner))
				stats.ParagraphsExtracted++
			}
		}
		stats.TextboxesRemoved++
	}

	return newChildren, stats
}
