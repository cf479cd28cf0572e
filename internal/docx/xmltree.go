package docx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ErrMalformedXML indicates the document entry could not be parsed as XML.
var ErrMalformedXML = errors.New("malformed xml")

// parseXML parses a document part into an element tree. The tree keeps the
// namespace prefixes exactly as declared in the input, so serializing it
// never invents new prefixes for the known bindings in Namespaces.
func parseXML(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedXML)
	}
	return doc, nil
}

// serializeXML renders the tree back to bytes, making sure the XML
// declaration the producer wrote (or an equivalent one) leads the output.
func serializeXML(doc *etree.Document) ([]byte, error) {
	if !hasXMLDeclaration(doc) {
		decl := etree.NewDocument()
		decl.CreateProcInst(xmlProcInstTarg, xmlProcInstValue)
		doc.InsertChildAt(0, decl.Child[0])
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	return out, nil
}

func hasXMLDeclaration(doc *etree.Document) bool {
	for _, child := range doc.Child {
		if pi, ok := child.(*etree.ProcInst); ok && pi.Target == xmlProcInstTarg {
			return true
		}
	}
	return false
}

// matchesTag reports whether el is the element named by a qualified tag
// like "w:p". The fast path compares the prefix literally; a document that
// binds the namespace to some other prefix (or as the default) still
// matches through URI resolution.
func matchesTag(el *etree.Element, tag string) bool {
	if el.FullTag() == tag {
		return true
	}
	prefix, local, ok := strings.Cut(tag, ":")
	if !ok {
		return false
	}
	uri, known := Namespaces[prefix]
	if !known {
		return false
	}
	return el.Tag == local && el.NamespaceURI() == uri
}

// findAll returns every descendant of root matching the qualified tag, in
// document order. Matches nested inside other matches are included, so a
// text box inside another text box yields both. The root itself is never a
// match.
func findAll(root *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	collectMatches(root, tag, &out)
	return out
}

func collectMatches(el *etree.Element, tag string, out *[]*etree.Element) {
	for _, child := range el.ChildElements() {
		if matchesTag(child, tag) {
			*out = append(*out, child)
		}
		collectMatches(child, tag, out)
	}
}

// findBody locates the first w:body element anywhere under the document
// root, in document order.
func findBody(doc *etree.Document) *etree.Element {
	root := doc.Root()
	if root == nil {
		return nil
	}
	bodies := findAll(root, tagBody)
	if len(bodies) == 0 {
		return nil
	}
	return bodies[0]
}

// paragraphText concatenates the content of every w:t descendant of el in
// document order and trims surrounding whitespace. This is the normalized
// text the flattener deduplicates on.
func paragraphText(el *etree.Element) string {
	var sb strings.Builder
	for _, t := range findAll(el, tagText) {
		sb.WriteString(t.Text())
	}
	return strings.TrimSpace(sb.String())
}

// cloneElement deep-copies a subtree. The copy shares nothing with the
// source, so it can be reparented freely.
func cloneElement(el *etree.Element) *etree.Element {
	return el.Copy()
}
