package pdf

import "strings"

// Font identifies one of the fourteen built-in font programs every PDF
// viewer ships. Replacement text is always inserted with one of these, so
// the output never depends on fonts embedded in the input.
type Font string

const (
	Helvetica            Font = "helv"
	HelveticaBold        Font = "hebo"
	HelveticaOblique     Font = "heit"
	HelveticaBoldOblique Font = "hebi"
	TimesRoman           Font = "tiro"
	TimesBold            Font = "tibo"
	TimesItalic          Font = "tiit"
	TimesBoldItalic      Font = "tibi"
	Courier              Font = "cour"
	CourierBold          Font = "cobo"
	CourierOblique       Font = "coit"
	CourierBoldOblique   Font = "cobi"
	Symbol               Font = "symb"
	ZapfDingbats         Font = "zadb"
)

// baseNames maps each canonical font to the PostScript name written into
// font resource dictionaries.
var baseNames = map[Font]string{
	Helvetica:            "Helvetica",
	HelveticaBold:        "Helvetica-Bold",
	HelveticaOblique:     "Helvetica-Oblique",
	HelveticaBoldOblique: "Helvetica-BoldOblique",
	TimesRoman:           "Times-Roman",
	TimesBold:            "Times-Bold",
	TimesItalic:          "Times-Italic",
	TimesBoldItalic:      "Times-BoldItalic",
	Courier:              "Courier",
	CourierBold:          "Courier-Bold",
	CourierOblique:       "Courier-Oblique",
	CourierBoldOblique:   "Courier-BoldOblique",
	Symbol:               "Symbol",
	ZapfDingbats:         "ZapfDingbats",
}

// BaseName returns the PostScript name of the font program.
func (f Font) BaseName() string {
	if n, ok := baseNames[f]; ok {
		return n
	}
	return baseNames[Helvetica]
}

// Style bits of a sampled span's flags word. These are not FontDescriptor
// flags; styleFlags maps descriptors onto this layout before spans are
// built.
const (
	flagItalic = 1 << 1
	flagBold   = 1 << 4
)

// Classify maps an arbitrary font name plus its span flags to a canonical
// font. Family is detected by case-insensitive keyword match; anything
// matching no family is sans-serif. Bold and italic come from the name or
// from the flag bits; Symbol and ZapfDingbats have no style variants.
func Classify(name string, flags int) Font {
	n := strings.ToLower(name)

	if containsAny(n, "symbol", "symb") {
		return Symbol
	}
	if containsAny(n, "zapf", "dingbat", "zadb") {
		return ZapfDingbats
	}

	bold := containsAny(n, "bold", "black", "heavy") || flags&flagBold != 0
	italic := containsAny(n, "italic", "oblique") || flags&flagItalic != 0

	if containsAny(n, "courier", "cour", "mono", "consola", "menlo", "fixed") {
		return pickStyle(bold, italic, Courier, CourierBold, CourierOblique, CourierBoldOblique)
	}
	if containsAny(n, "times", "tiro", "serif", "roman", "georgia", "palatino", "cambria") {
		return pickStyle(bold, italic, TimesRoman, TimesBold, TimesItalic, TimesBoldItalic)
	}
	return pickStyle(bold, italic, Helvetica, HelveticaBold, HelveticaOblique, HelveticaBoldOblique)
}

func pickStyle(bold, italic bool, regular, boldVariant, italicVariant, boldItalic Font) Font {
	switch {
	case bold && italic:
		return boldItalic
	case bold:
		return boldVariant
	case italic:
		return italicVariant
	default:
		return regular
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
