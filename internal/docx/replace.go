package docx

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Replacements maps literal source text to literal target text. Keys are
// unique by construction; processing order is the sorted key order so
// results are deterministic regardless of how the mapping was built.
type Replacements map[string]string

// Replacer performs text substitution confined to w:t leaves.
//
// Substitution happens on the parsed tree, one leaf at a time, and never
// touches run structure: a source string split across adjacent leaves is not
// found. That is the accepted trade-off for guaranteeing that formatting
// runs survive untouched.
type Replacer struct {
	logger *zap.Logger
}

// NewReplacer creates a Replacer. A nil logger disables logging.
func NewReplacer(logger *zap.Logger) *Replacer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replacer{logger: logger}
}

// Replace applies rules to the document entry of the package in data and
// returns the rebuilt package plus the number of substitutions made. Each
// rule replaces the first occurrence of its source text per leaf, in every
// leaf that contains it. With an empty mapping, a missing document entry, or
// zero substitutions the input bytes come back unchanged.
func (r *Replacer) Replace(data []byte, rules Replacements) ([]byte, int, error) {
	keys := activeKeys(rules)
	if len(keys) == 0 {
		return data, 0, nil
	}

	pkg, err := OpenPackage(data)
	if err != nil {
		return nil, 0, err
	}
	if !pkg.Has(documentEntry) {
		return data, 0, nil
	}
	docXML, err := pkg.Read(documentEntry)
	if err != nil {
		return nil, 0, err
	}
	doc, err := parseXML(docXML)
	if err != nil {
		return nil, 0, err
	}

	total := 0
	for _, leaf := range findAll(doc.Root(), tagText) {
		original := leaf.Text()
		if original == "" {
			continue
		}
		replaced, n := substituteLeaf(original, keys, rules)
		if n > 0 {
			leaf.SetText(replaced)
			total += n
		}
	}
	if total == 0 {
		return data, 0, nil
	}

	newXML, err := serializeXML(doc)
	if err != nil {
		return nil, 0, err
	}
	out, err := pkg.Rebuild(map[string][]byte{documentEntry: newXML})
	if err != nil {
		return nil, 0, err
	}

	r.logger.Info("replaced document text",
		zap.Int("substitutions", total),
		zap.Int("rules", len(keys)),
	)
	return out, total, nil
}

// activeKeys returns the rule keys worth attempting, sorted. Empty sources
// and identity rules are dropped up front.
func activeKeys(rules Replacements) []string {
	keys := make([]string, 0, len(rules))
	for source, target := range rules {
		if source == "" || source == target {
			continue
		}
		keys = append(keys, source)
	}
	sort.Strings(keys)
	return keys
}

type claim struct {
	start, end int
	target     string
}

// substituteLeaf computes every substitution for one leaf against its
// original text. Each key claims the first occurrence of its source; a key
// whose occurrence overlaps an earlier claim is skipped, not retried at a
// later occurrence. Claims are then spliced in position order.
func substituteLeaf(original string, keys []string, rules Replacements) (string, int) {
	var claims []claim
	for _, source := range keys {
		idx := strings.Index(original, source)
		if idx < 0 {
			continue
		}
		end := idx + len(source)
		if overlaps(claims, idx, end) {
			continue
		}
		claims = append(claims, claim{start: idx, end: end, target: rules[source]})
	}
	if len(claims) == 0 {
		return original, 0
	}

	sort.Slice(claims, func(i, j int) bool { return claims[i].start < claims[j].start })
	var sb strings.Builder
	pos := 0
	for _, c := range claims {
		sb.WriteString(original[pos:c.start])
		sb.WriteString(c.target)
		pos = c.end
	}
	sb.WriteString(original[pos:])
	return sb.String(), len(claims)
}

func overlaps(claims []claim, start, end int) bool {
	for _, c := range claims {
		if start < c.end && end > c.start {
			return true
		}
	}
	return false
}
