// Package docx mutates WordprocessingML packages produced by external
// converters: it flattens floating text boxes into the normal content flow
// and performs surgical text replacement confined to text runs. All
// operations are byte-in/byte-out and keep untouched package entries
// byte-identical.
package docx

// Namespace prefixes used by the documents this package handles. The table
// is fixed: serialization must keep the prefixes the producer declared, and
// elements created here always use these bindings.
const (
	nsWordML       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsDrawingWP    = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsDrawingMain  = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsWordShape    = "http://schemas.microsoft.com/office/word/2010/wordprocessingShape"
	nsMarkupCompat = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	nsWord14       = "http://schemas.microsoft.com/office/word/2010/wordml"
	nsWordGroup    = "http://schemas.microsoft.com/office/word/2010/wordprocessingGroup"
	nsRelations    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsVML          = "urn:schemas-microsoft-com:vml"
	nsOffice       = "urn:schemas-microsoft-com:office:office"
	nsWordCanvas   = "http://schemas.microsoft.com/office/word/2010/wordprocessingCanvas"
	nsWord10       = "urn:schemas-microsoft-com:office:word"
)

// Namespaces maps every known prefix to its URI. Consumers that build
// documents from scratch (tests, mostly) declare these on the root element.
var Namespaces = map[string]string{
	"w":   nsWordML,
	"wp":  nsDrawingWP,
	"a":   nsDrawingMain,
	"wps": nsWordShape,
	"mc":  nsMarkupCompat,
	"w14": nsWord14,
	"wpg": nsWordGroup,
	"r":   nsRelations,
	"v":   nsVML,
	"o":   nsOffice,
	"wpc": nsWordCanvas,
	"w10": nsWord10,
}

// Qualified tags this package cares about.
const (
	tagBody          = "w:body"
	tagParagraph     = "w:p"
	tagText          = "w:t"
	tagSectPr        = "w:sectPr"
	tagTextboxCont   = "w:txbxContent"
	tagTable         = "w:tbl"
	tagDrawing       = "w:drawing"
	documentEntry    = "word/document.xml"
	xmlProcInstTarg  = "xml"
	xmlProcInstValue = `version="1.0" encoding="UTF-8" standalone="yes"`
)
