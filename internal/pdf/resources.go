package pdf

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// fontRes is what the interpreter needs to know about one font resource:
// its declared name, the style bits for classification, the glyph widths,
// and the ToUnicode map when the font carries one.
type fontRes struct {
	baseFont     string
	flags        int
	firstChar    int
	widths       []float64
	missingWidth float64
	toUni        *toUnicode
}

// glyphWidth returns the advance of a glyph code as a fraction of the font
// size, and whether the font declared one.
func (f *fontRes) glyphWidth(code int) (float64, bool) {
	if idx := code - f.firstChar; idx >= 0 && idx < len(f.widths) {
		return f.widths[idx] / 1000, true
	}
	if f.missingWidth > 0 {
		return f.missingWidth / 1000, true
	}
	return 0, false
}

// loadPageFonts reads the Font subdictionary of a resource dictionary.
// Loading is lenient; a font entry that cannot be resolved is skipped.
func loadPageFonts(ctx *model.Context, res types.Dict) map[string]*fontRes {
	fonts := make(map[string]*fontRes)
	if res == nil {
		return fonts
	}
	obj, found := res.Find("Font")
	if !found {
		return fonts
	}
	fontDict := derefDict(ctx, obj)
	if fontDict == nil {
		return fonts
	}
	for name, fontObj := range fontDict {
		d := derefDict(ctx, fontObj)
		if d == nil {
			continue
		}
		fr := &fontRes{baseFont: baseFontName(d)}
		desc := derefDict(ctx, dictValue(d, "FontDescriptor"))
		fr.flags = styleFlags(fr.baseFont, desc)
		fr.missingWidth = floatValue(dictValue(desc, "MissingWidth"))
		if v, ok := dictValue(d, "FirstChar").(types.Integer); ok {
			fr.firstChar = int(v)
		}
		for _, w := range derefArray(ctx, dictValue(d, "Widths")) {
			fr.widths = append(fr.widths, floatValue(w))
		}
		if data := streamBytes(ctx, dictValue(d, "ToUnicode")); len(data) > 0 {
			fr.toUni = parseToUnicode(data)
		}
		fonts[name] = fr
	}
	return fonts
}

// FontDescriptor flag bits. The descriptor uses its own layout, distinct
// from the span-style bits Classify reads (bit 2 means Serif there, not
// italic).
const (
	descItalic    = 1 << 6
	descForceBold = 1 << 18
)

// boldStemV splits regular from bold dominant stem widths. Regular text
// faces run 70-110; bold cuts 130-190.
const boldStemV = 120

// styleFlags synthesizes the span-style bold and italic bits for a font
// from its descriptor and name. Italic comes from the descriptor italic
// flag, a nonzero ItalicAngle, or the name; bold from ForceBold, a heavy
// StemV, or the name.
func styleFlags(name string, desc types.Dict) int {
	n := strings.ToLower(name)
	descFlags := 0
	if v, ok := dictValue(desc, "Flags").(types.Integer); ok {
		descFlags = int(v)
	}
	var flags int
	if descFlags&descItalic != 0 || floatValue(dictValue(desc, "ItalicAngle")) != 0 || containsAny(n, "italic", "oblique") {
		flags |= flagItalic
	}
	if descFlags&descForceBold != 0 || floatValue(dictValue(desc, "StemV")) > boldStemV || containsAny(n, "bold", "black", "heavy") {
		flags |= flagBold
	}
	return flags
}

// baseFontName returns the font's BaseFont with any subset tag stripped.
func baseFontName(d types.Dict) string {
	n, ok := dictValue(d, "BaseFont").(types.Name)
	if !ok {
		return ""
	}
	name := string(n)
	if len(name) > 7 && name[6] == '+' && strings.ToUpper(name[:6]) == name[:6] {
		name = name[7:]
	}
	return name
}

func dictValue(d types.Dict, key string) types.Object {
	obj, found := d.Find(key)
	if !found {
		return nil
	}
	return obj
}

// derefDict resolves obj to a dictionary, following an indirect reference
// if needed. It returns nil when obj is neither.
func derefDict(ctx *model.Context, obj types.Object) types.Dict {
	if obj == nil {
		return nil
	}
	if ref, ok := obj.(types.IndirectRef); ok {
		deref, err := ctx.Dereference(ref)
		if err != nil {
			return nil
		}
		obj = deref
	}
	if d, ok := obj.(types.Dict); ok {
		return d
	}
	return nil
}

// derefArray resolves obj to an array, following an indirect reference if
// needed. It returns nil when obj is neither.
func derefArray(ctx *model.Context, obj types.Object) types.Array {
	if obj == nil {
		return nil
	}
	if ref, ok := obj.(types.IndirectRef); ok {
		deref, err := ctx.Dereference(ref)
		if err != nil {
			return nil
		}
		obj = deref
	}
	if a, ok := obj.(types.Array); ok {
		return a
	}
	return nil
}

// floatValue reads a numeric object as float64, returning 0 for anything
// else.
func floatValue(obj types.Object) float64 {
	switch v := obj.(type) {
	case types.Integer:
		return float64(v)
	case types.Float:
		return float64(v)
	}
	return 0
}

// streamBytes resolves obj to a stream and returns its decoded content.
func streamBytes(ctx *model.Context, obj types.Object) []byte {
	if obj == nil {
		return nil
	}
	if ref, ok := obj.(types.IndirectRef); ok {
		deref, err := ctx.Dereference(ref)
		if err != nil {
			return nil
		}
		obj = deref
	}
	sd, ok := obj.(types.StreamDict)
	if !ok {
		return nil
	}
	if len(sd.Content) == 0 && len(sd.Raw) > 0 {
		if err := sd.Decode(); err != nil {
			return nil
		}
	}
	return sd.Content
}

// ensureFontResource makes sure the page's resource dictionary carries one
// of the built-in fonts and returns the resource name to reference it by.
func ensureFontResource(ctx *model.Context, pg *page, f Font) (string, error) {
	if name, ok := pg.added[f]; ok {
		return name, nil
	}

	if pg.res == nil {
		pg.res = types.NewDict()
	}
	pg.dict.Insert("Resources", pg.res)

	fontDict := derefDict(ctx, dictValue(pg.res, "Font"))
	if fontDict == nil {
		fontDict = types.NewDict()
		pg.res.Update("Font", fontDict)
	}

	name := string(f)
	for n := 2; ; n++ {
		if _, taken := fontDict.Find(name); !taken {
			break
		}
		name = fmt.Sprintf("%s%d", f, n)
	}

	d := types.NewDict()
	d.InsertName("Type", "Font")
	d.InsertName("Subtype", "Type1")
	d.InsertName("BaseFont", f.BaseName())
	if f != Symbol && f != ZapfDingbats {
		d.InsertName("Encoding", "WinAnsiEncoding")
	}
	ir, err := ctx.IndRefForNewObject(d)
	if err != nil {
		return "", fmt.Errorf("register font %s: %w", f.BaseName(), err)
	}
	fontDict.Insert(name, *ir)

	pg.added[f] = name
	pg.fonts[name] = &fontRes{baseFont: f.BaseName()}
	return name, nil
}

// toUnicode is a parsed ToUnicode CMap: code bytes to text, with the code
// lengths seen in the map, longest first.
type toUnicode struct {
	entries map[string]string
	lengths []int
}

// parseToUnicode reads the bfchar and bfrange sections of a ToUnicode CMap
// stream. The scan is line-oriented and tolerant of entries it cannot read.
func parseToUnicode(data []byte) *toUnicode {
	m := &toUnicode{entries: make(map[string]string)}
	lengthSet := make(map[int]struct{})

	sc := bufio.NewScanner(bytes.NewReader(data))
	state := ""
	for sc.Scan() {
		ln := strings.TrimSpace(sc.Text())
		if ln == "" || strings.HasPrefix(ln, "%") {
			continue
		}
		switch {
		case strings.HasSuffix(ln, "begincodespacerange"):
			state = "codespace"
			continue
		case strings.HasSuffix(ln, "beginbfchar"):
			state = "bfchar"
			continue
		case strings.HasSuffix(ln, "beginbfrange"):
			state = "bfrange"
			continue
		case strings.HasPrefix(ln, "end"):
			state = ""
			continue
		}
		switch state {
		case "codespace":
			if hexes := hexTokens(ln); len(hexes) > 0 {
				if b := hexBytes(hexes[0]); len(b) > 0 {
					lengthSet[len(b)] = struct{}{}
				}
			}
		case "bfchar":
			hexes := hexTokens(ln)
			if len(hexes) < 2 {
				continue
			}
			src := hexBytes(hexes[0])
			if len(src) == 0 {
				continue
			}
			m.entries[string(src)] = utf16BE(hexBytes(hexes[1]))
			lengthSet[len(src)] = struct{}{}
		case "bfrange":
			ln = joinBracketed(ln, sc)
			hexes := hexTokens(ln)
			if len(hexes) < 3 {
				continue
			}
			src := hexBytes(hexes[0])
			lo := beInt(src)
			hi := beInt(hexBytes(hexes[1]))
			lengthSet[len(src)] = struct{}{}
			if strings.Contains(ln, "[") {
				for i := 0; i <= hi-lo && 2+i < len(hexes); i++ {
					m.entries[string(beBytes(lo+i, len(src)))] = utf16BE(hexBytes(hexes[2+i]))
				}
			} else {
				dst := hexBytes(hexes[2])
				base := beInt(dst)
				for i := 0; i <= hi-lo; i++ {
					m.entries[string(beBytes(lo+i, len(src)))] = utf16BE(beBytes(base+i, len(dst)))
				}
			}
		}
	}

	if len(lengthSet) == 0 {
		for k := range m.entries {
			lengthSet[len(k)] = struct{}{}
		}
	}
	for l := range lengthSet {
		m.lengths = append(m.lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(m.lengths)))
	return m
}

// next decodes the first code in data, trying the longest code length
// first. It returns the mapped text, the bytes consumed, and whether the
// map knew the code; an unmapped leading byte passes through as itself.
func (m *toUnicode) next(data []byte) (string, int, bool) {
	for _, l := range m.lengths {
		if len(data) < l {
			continue
		}
		if val, ok := m.entries[string(data[:l])]; ok {
			return val, l, true
		}
	}
	return string(rune(data[0])), 1, false
}

// decode maps code bytes to text, one code at a time.
func (m *toUnicode) decode(data []byte) string {
	if len(m.lengths) == 0 {
		return latin1(data)
	}
	var out strings.Builder
	for len(data) > 0 {
		text, n, _ := m.next(data)
		out.WriteString(text)
		data = data[n:]
	}
	return out.String()
}

// joinBracketed pulls in continuation lines until an open bracket closes.
func joinBracketed(ln string, sc *bufio.Scanner) string {
	if !strings.Contains(ln, "[") || strings.Contains(ln, "]") {
		return ln
	}
	for sc.Scan() {
		next := strings.TrimSpace(sc.Text())
		ln += " " + next
		if strings.Contains(next, "]") {
			break
		}
	}
	return ln
}

// hexTokens extracts the <...> hex runs from one CMap line.
func hexTokens(ln string) []string {
	var tokens []string
	for {
		start := strings.IndexByte(ln, '<')
		if start < 0 {
			return tokens
		}
		end := strings.IndexByte(ln[start+1:], '>')
		if end < 0 {
			return tokens
		}
		tokens = append(tokens, strings.ReplaceAll(ln[start+1:start+1+end], " ", ""))
		ln = ln[start+1+end+1:]
	}
}

func hexBytes(s string) []byte {
	if len(s)%2 == 1 {
		s += "0"
	}
	out := make([]byte, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		if !isHexDigit(s[i]) || !isHexDigit(s[i+1]) {
			return nil
		}
		out[i/2] = hexVal(s[i])<<4 | hexVal(s[i+1])
	}
	return out
}

func beInt(b []byte) int {
	v := 0
	for _, by := range b {
		v = v<<8 | int(by)
	}
	return v
}

func beBytes(v, length int) []byte {
	out := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func utf16BE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	if len(b) == 0 {
		return ""
	}
	buf := make([]uint16, len(b)/2)
	for i := range buf {
		buf[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(buf))
}
