package pdf

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Content-stream operands are represented with a small set of Go types:
// float64 (numbers), pdfString (string objects), pdfName (names), pdfArray,
// pdfDict, bool and nil. Operators collect the operands that precede them.
type (
	pdfString []byte
	pdfName   string
	pdfArray  []any
	pdfDict   map[string]any
)

// operation is one operator with its operands plus the byte range it spans
// in the content, so a show operator can later be cut out structurally.
type operation struct {
	op       string
	operands []any
	start    int
	end      int
}

// contentParser tokenizes a decoded content stream into operations.
type contentParser struct {
	data     []byte
	pos      int
	operands []any
	opStart  int
}

func newContentParser(data []byte) *contentParser {
	return &contentParser{data: data, opStart: -1}
}

// parse returns all operations in stream order. The parser is lenient:
// bytes it cannot classify are skipped, inline-image payloads are jumped
// over, and only unterminated constructs are reported as errors.
func (p *contentParser) parse() ([]operation, error) {
	var ops []operation
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return ops, nil
		}

		start := p.pos
		c := p.data[p.pos]
		switch {
		case isRegular(c):
			kw := p.readKeyword()
			switch kw {
			case "true":
				p.pushOperand(true, start)
			case "false":
				p.pushOperand(false, start)
			case "null":
				p.pushOperand(nil, start)
			case "ID":
				// Inline image payload; skip to EI and drop the BI operands.
				p.skipInlineImage()
				p.operands = nil
				p.opStart = -1
			default:
				op := operation{op: kw, operands: p.operands, start: start, end: p.pos}
				if p.opStart >= 0 {
					op.start = p.opStart
				}
				ops = append(ops, op)
				p.operands = nil
				p.opStart = -1
			}
		case c == '/':
			n, err := p.readName()
			if err != nil {
				return nil, err
			}
			p.pushOperand(n, start)
		case c == '(':
			s, err := p.readLiteralString()
			if err != nil {
				return nil, err
			}
			p.pushOperand(s, start)
		case c == '<':
			if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
				d, err := p.readDict()
				if err != nil {
					return nil, err
				}
				p.pushOperand(d, start)
			} else {
				s, err := p.readHexString()
				if err != nil {
					return nil, err
				}
				p.pushOperand(s, start)
			}
		case c == '[':
			a, err := p.readArray()
			if err != nil {
				return nil, err
			}
			p.pushOperand(a, start)
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			f, err := p.readNumber()
			if err != nil {
				return nil, err
			}
			p.pushOperand(f, start)
		default:
			p.pos++
		}
	}
}

func (p *contentParser) pushOperand(v any, start int) {
	if p.opStart < 0 {
		p.opStart = start
	}
	p.operands = append(p.operands, v)
}

func (p *contentParser) skipWhitespace() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) {
			p.pos++
			continue
		}
		if c == '%' {
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
			continue
		}
		return
	}
}

func (p *contentParser) readKeyword() string {
	start := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isLetter(c) || c == '*' || c == '\'' || c == '"' || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return string(p.data[start:p.pos])
}

// skipInlineImage advances past the binary payload that follows an ID
// keyword, up to and including the closing EI.
func (p *contentParser) skipInlineImage() {
	if p.pos < len(p.data) && isWhitespace(p.data[p.pos]) {
		p.pos++
	}
	for p.pos+1 < len(p.data) {
		if p.data[p.pos] == 'E' && p.data[p.pos+1] == 'I' {
			after := p.pos + 2
			if after >= len(p.data) || isWhitespace(p.data[after]) || isDelimiter(p.data[after]) {
				p.pos = after
				return
			}
		}
		p.pos++
	}
	p.pos = len(p.data)
}

func (p *contentParser) readNumber() (float64, error) {
	start := p.pos
	if c := p.data[p.pos]; c == '+' || c == '-' {
		p.pos++
	}
	seenDot := false
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
		} else if c == '.' && !seenDot {
			seenDot = true
			p.pos++
		} else {
			break
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(string(p.data[start:p.pos]), "."), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number at offset %d: %w", start, err)
	}
	return f, nil
}

func (p *contentParser) readLiteralString() (pdfString, error) {
	p.pos++ // consume '('
	var out bytes.Buffer
	depth := 1
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case c == '\\':
			p.pos++
			if p.pos >= len(p.data) {
				return nil, fmt.Errorf("unterminated string escape")
			}
			e := p.data[p.pos]
			switch e {
			case 'n':
				out.WriteByte('\n')
				p.pos++
			case 'r':
				out.WriteByte('\r')
				p.pos++
			case 't':
				out.WriteByte('\t')
				p.pos++
			case 'b':
				out.WriteByte('\b')
				p.pos++
			case 'f':
				out.WriteByte('\f')
				p.pos++
			case '(', ')', '\\':
				out.WriteByte(e)
				p.pos++
			case '\r':
				// Escaped EOL is a line continuation.
				p.pos++
				if p.pos < len(p.data) && p.data[p.pos] == '\n' {
					p.pos++
				}
			case '\n':
				p.pos++
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				p.pos++
				for i := 0; i < 2 && p.pos < len(p.data); i++ {
					d := p.data[p.pos]
					if d < '0' || d > '7' {
						break
					}
					v = v*8 + int(d-'0')
					p.pos++
				}
				out.WriteByte(byte(v & 0xFF))
			default:
				out.WriteByte(e)
				p.pos++
			}
		case c == '(':
			depth++
			out.WriteByte(c)
			p.pos++
		case c == ')':
			depth--
			p.pos++
			if depth == 0 {
				return pdfString(out.Bytes()), nil
			}
			out.WriteByte(c)
		default:
			out.WriteByte(c)
			p.pos++
		}
	}
	return nil, fmt.Errorf("unterminated literal string")
}

func (p *contentParser) readHexString() (pdfString, error) {
	p.pos++ // consume '<'
	var out bytes.Buffer
	var hi byte
	haveHi := false
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c == '>' {
			p.pos++
			if haveHi {
				out.WriteByte(hexVal(hi) << 4)
			}
			return pdfString(out.Bytes()), nil
		}
		if isWhitespace(c) {
			p.pos++
			continue
		}
		if !isHexDigit(c) {
			return nil, fmt.Errorf("invalid hex digit %q at offset %d", c, p.pos)
		}
		if haveHi {
			out.WriteByte(hexVal(hi)<<4 | hexVal(c))
			haveHi = false
		} else {
			hi = c
			haveHi = true
		}
		p.pos++
	}
	return nil, fmt.Errorf("unterminated hex string")
}

func (p *contentParser) readName() (pdfName, error) {
	p.pos++ // consume '/'
	var out bytes.Buffer
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && p.pos+2 < len(p.data) && isHexDigit(p.data[p.pos+1]) && isHexDigit(p.data[p.pos+2]) {
			out.WriteByte(hexVal(p.data[p.pos+1])<<4 | hexVal(p.data[p.pos+2]))
			p.pos += 3
			continue
		}
		out.WriteByte(c)
		p.pos++
	}
	return pdfName(out.String()), nil
}

func (p *contentParser) readArray() (pdfArray, error) {
	p.pos++ // consume '['
	var arr pdfArray
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unterminated array")
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		v, err := p.readValue()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
}

func (p *contentParser) readDict() (pdfDict, error) {
	p.pos += 2 // consume '<<'
	dict := make(pdfDict)
	for {
		p.skipWhitespace()
		if p.pos+1 >= len(p.data) {
			return nil, fmt.Errorf("unterminated dictionary")
		}
		if p.data[p.pos] == '>' && p.data[p.pos+1] == '>' {
			p.pos += 2
			return dict, nil
		}
		if p.data[p.pos] != '/' {
			return nil, fmt.Errorf("dictionary key at offset %d is not a name", p.pos)
		}
		key, err := p.readName()
		if err != nil {
			return nil, err
		}
		val, err := p.readValue()
		if err != nil {
			return nil, err
		}
		dict[string(key)] = val
	}
}

// readValue parses one operand inside an array or dictionary, where
// keywords are restricted to true/false/null.
func (p *contentParser) readValue() (any, error) {
	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return nil, fmt.Errorf("unexpected end of content")
	}
	c := p.data[p.pos]
	switch {
	case c == '/':
		return p.readName()
	case c == '(':
		return p.readLiteralString()
	case c == '<':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
			return p.readDict()
		}
		return p.readHexString()
	case c == '[':
		return p.readArray()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.readNumber()
	case isRegular(c):
		switch kw := p.readKeyword(); kw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		default:
			return nil, fmt.Errorf("unexpected keyword %q in composite value", kw)
		}
	}
	return nil, fmt.Errorf("unexpected byte %q at offset %d", c, p.pos)
}

// Character classes from the PDF lexical grammar.

func isWhitespace(c byte) bool {
	return c == 0x00 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' '
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool {
	return isLetter(c) || c == '\'' || c == '"'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

func identity() matrix {
	return matrix{1, 0, 0, 1, 0, 0}
}

func translation(tx, ty float64) matrix {
	return matrix{1, 0, 0, 1, tx, ty}
}

// mul returns m × n (m applied first).
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// fragment is one show operator's worth of positioned text in device space.
// start/end give the byte range of its operation in the content, and prelude
// plus kern1000 describe the minimal replacement that keeps the text state
// intact when the operation is cut out.
type fragment struct {
	text     string
	x, y     float64   // baseline origin of the first glyph
	size     float64   // effective font size after matrix scaling
	font     string    // font resource name
	color    int       // packed 0xRRGGBB fill color
	origins  []float64 // x of each rune boundary; len = rune count + 1
	txAdv    float64   // total advance in text space
	kern1000 float64   // txAdv expressed as a TJ adjustment
	prelude  string    // side effects of the operator besides showing text
	start    int
	end      int
}

func (f *fragment) endX() float64 {
	return f.origins[len(f.origins)-1]
}

func (f *fragment) bbox() (llx, lly, urx, ury float64) {
	return f.x, f.y - descentRatio*f.size, f.endX(), f.y + ascentRatio*f.size
}

// Vertical extent of a glyph box relative to its baseline, and the advance
// used for glyphs whose font declares no width. These are the usual
// approximations for the built-in fonts.
const (
	ascentRatio  = 0.8
	descentRatio = 0.2
	advanceRatio = 0.5
)

// textState mirrors the PDF text-state parameters the walker cares about.
type textState struct {
	tm, tlm matrix
	font    string
	size    float64
	leading float64
	charSp  float64
	wordSp  float64
	horizSc float64
}

// gstate is the graphics state subset the walker tracks, with a q/Q stack.
type gstate struct {
	ctm  matrix
	fill [3]float64
}

// walker executes content-stream operations, collecting text fragments.
type walker struct {
	fonts map[string]*fontRes
	gs    gstate
	stack []gstate
	text  textState
	frags []fragment
}

// walkContent interprets a decoded content stream. It returns the collected
// fragments plus the number of graphics-state saves left open at the end of
// the stream (needed to neutralize the state before appending new content).
func walkContent(data []byte, fonts map[string]*fontRes) ([]fragment, int, error) {
	ops, err := newContentParser(data).parse()
	if err != nil {
		return nil, 0, err
	}
	w := &walker{
		fonts: fonts,
		gs:    gstate{ctm: identity()},
		text:  textState{tm: identity(), tlm: identity(), horizSc: 100},
	}
	for _, op := range ops {
		w.exec(op)
	}
	return w.frags, len(w.stack), nil
}

func (w *walker) exec(op operation) {
	switch op.op {
	case "q":
		w.stack = append(w.stack, w.gs)
	case "Q":
		if n := len(w.stack); n > 0 {
			w.gs = w.stack[n-1]
			w.stack = w.stack[:n-1]
		}
	case "cm":
		if m, ok := matrixOperands(op.operands); ok {
			w.gs.ctm = m.mul(w.gs.ctm)
		}
	case "BT":
		w.text.tm = identity()
		w.text.tlm = identity()
	case "ET":
	case "Tf":
		if len(op.operands) >= 2 {
			if n, ok := op.operands[len(op.operands)-2].(pdfName); ok {
				w.text.font = string(n)
			}
			w.text.size = floatOperand(op.operands[len(op.operands)-1])
		}
	case "Tc":
		if len(op.operands) == 1 {
			w.text.charSp = floatOperand(op.operands[0])
		}
	case "Tw":
		if len(op.operands) == 1 {
			w.text.wordSp = floatOperand(op.operands[0])
		}
	case "Tz":
		if len(op.operands) == 1 {
			w.text.horizSc = floatOperand(op.operands[0])
		}
	case "TL":
		if len(op.operands) == 1 {
			w.text.leading = floatOperand(op.operands[0])
		}
	case "Ts":
		// Text rise shifts the baseline; ignored for extraction purposes.
	case "Tm":
		if m, ok := matrixOperands(op.operands); ok {
			w.text.tm = m
			w.text.tlm = m
		}
	case "Td":
		if len(op.operands) == 2 {
			w.translateLine(floatOperand(op.operands[0]), floatOperand(op.operands[1]))
		}
	case "TD":
		if len(op.operands) == 2 {
			ty := floatOperand(op.operands[1])
			w.text.leading = -ty
			w.translateLine(floatOperand(op.operands[0]), ty)
		}
	case "T*":
		w.translateLine(0, -w.text.leading)
	case "Tj":
		if len(op.operands) == 1 {
			if s, ok := op.operands[0].(pdfString); ok {
				w.show(s, op, "")
			}
		}
	case "'":
		w.translateLine(0, -w.text.leading)
		if len(op.operands) == 1 {
			if s, ok := op.operands[0].(pdfString); ok {
				w.show(s, op, "T*")
			}
		}
	case "\"":
		if len(op.operands) == 3 {
			aw := floatOperand(op.operands[0])
			ac := floatOperand(op.operands[1])
			w.text.wordSp = aw
			w.text.charSp = ac
			w.translateLine(0, -w.text.leading)
			if s, ok := op.operands[2].(pdfString); ok {
				w.show(s, op, fmt.Sprintf("%s Tw %s Tc T*", fmtNum(aw), fmtNum(ac)))
			}
		}
	case "TJ":
		if len(op.operands) == 1 {
			if arr, ok := op.operands[0].(pdfArray); ok {
				w.showArray(arr, op)
			}
		}
	case "rg":
		if len(op.operands) == 3 {
			w.gs.fill = rgbOperands(op.operands)
		}
	case "g":
		if len(op.operands) == 1 {
			v := floatOperand(op.operands[0])
			w.gs.fill = [3]float64{v, v, v}
		}
	case "k":
		if len(op.operands) == 4 {
			w.gs.fill = cmykToRGB(
				floatOperand(op.operands[0]),
				floatOperand(op.operands[1]),
				floatOperand(op.operands[2]),
				floatOperand(op.operands[3]),
			)
		}
	case "sc", "scn":
		switch countNumeric(op.operands) {
		case 1:
			v := floatOperand(op.operands[0])
			w.gs.fill = [3]float64{v, v, v}
		case 3:
			w.gs.fill = rgbOperands(op.operands)
		case 4:
			w.gs.fill = cmykToRGB(
				floatOperand(op.operands[0]),
				floatOperand(op.operands[1]),
				floatOperand(op.operands[2]),
				floatOperand(op.operands[3]),
			)
		}
	}
}

// translateLine implements Td: both matrices move to the start of the next
// line, offset from the current line start.
func (w *walker) translateLine(tx, ty float64) {
	w.text.tlm = translation(tx, ty).mul(w.text.tlm)
	w.text.tm = w.text.tlm
}

// show emits one fragment for a string-show operator and advances the text
// matrix by the estimated width.
func (w *walker) show(s pdfString, op operation, prelude string) {
	text, runeAdv := w.decode(s)
	frag := w.beginFragment(op, prelude)
	for i, r := range []rune(text) {
		frag.appendRune(w, r, runeAdv[i])
	}
	w.endFragment(frag)
}

// showArray handles TJ: strings draw glyphs, numbers adjust the position by
// thousandths of the font size.
func (w *walker) showArray(arr pdfArray, op operation) {
	frag := w.beginFragment(op, "")
	for _, item := range arr {
		switch v := item.(type) {
		case pdfString:
			text, runeAdv := w.decode(v)
			for i, r := range []rune(text) {
				frag.appendRune(w, r, runeAdv[i])
			}
		case float64:
			frag.adjust(w, -v/1000*w.text.size*w.text.horizSc/100)
		}
	}
	w.endFragment(frag)
}

// fragBuilder accumulates one fragment while the walker advances through a
// show operator.
type fragBuilder struct {
	frag   fragment
	runes  []rune
	starts []float64
	adv    float64 // cumulative advance in text space
}

func (w *walker) beginFragment(op operation, prelude string) *fragBuilder {
	x, y := w.deviceAt(0)
	m := w.text.tm.mul(w.gs.ctm)
	eff := w.text.size * math.Abs(m[3])
	if eff == 0 {
		eff = w.text.size
	}
	return &fragBuilder{
		frag: fragment{
			x:       x,
			y:       y,
			size:    eff,
			font:    w.text.font,
			color:   packColor(w.gs.fill),
			prelude: prelude,
			start:   op.start,
			end:     op.end,
		},
	}
}

// deviceAt maps a text-space x offset on the current baseline to device
// space, through the text matrix and the CTM.
func (w *walker) deviceAt(advX float64) (float64, float64) {
	tm := w.text.tm
	return w.gs.ctm.apply(tm[0]*advX+tm[4], tm[1]*advX+tm[5])
}

func (b *fragBuilder) appendRune(w *walker, r rune, advance float64) {
	x, _ := w.deviceAt(b.adv)
	b.runes = append(b.runes, r)
	b.starts = append(b.starts, x)
	b.adv += advance
}

func (b *fragBuilder) adjust(w *walker, delta float64) {
	b.adv += delta
}

func (w *walker) endFragment(b *fragBuilder) {
	if len(b.runes) == 0 {
		// Position still advances even when nothing was decoded.
		w.text.tm = translation(b.adv, 0).mul(w.text.tm)
		return
	}
	endX, _ := w.deviceAt(b.adv)
	b.frag.text = string(b.runes)
	b.frag.origins = append(b.starts, endX)
	b.frag.txAdv = b.adv
	if w.text.size != 0 && w.text.horizSc != 0 {
		b.frag.kern1000 = b.adv * 1000 / w.text.size / (w.text.horizSc / 100)
	}
	w.frags = append(w.frags, b.frag)
	w.text.tm = translation(b.adv, 0).mul(w.text.tm)
}

// decode turns show-operator bytes into text plus a per-rune advance in
// text space. Codes map through the font's ToUnicode map when one exists,
// and each code advances by its declared width, with advanceRatio covering
// fonts that declare none. Word spacing applies to single-byte code 32
// only.
func (w *walker) decode(s pdfString) (string, []float64) {
	f := w.fonts[w.text.font]
	scale := w.text.horizSc / 100
	var runes []rune
	var adv []float64
	emit := func(text string, code, codeLen int) {
		rs := []rune(text)
		if len(rs) == 0 {
			return
		}
		em := advanceRatio
		if f != nil && codeLen == 1 {
			if v, ok := f.glyphWidth(code); ok {
				em = v
			}
		}
		a := w.text.size*em + w.text.charSp
		if codeLen == 1 && code == 32 {
			a += w.text.wordSp
		}
		per := a * scale / float64(len(rs))
		for _, r := range rs {
			runes = append(runes, r)
			adv = append(adv, per)
		}
	}
	data := []byte(s)
	if f != nil && f.toUni != nil && len(f.toUni.lengths) > 0 {
		for len(data) > 0 {
			text, n, _ := f.toUni.next(data)
			emit(text, beInt(data[:n]), n)
			data = data[n:]
		}
	} else {
		for _, b := range data {
			emit(string(rune(b)), int(b), 1)
		}
	}
	return string(runes), adv
}

// latin1 maps single-byte string data straight to runes, which matches the
// standard encodings for the built-in fonts closely enough for matching.
func latin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func matrixOperands(ops []any) (matrix, bool) {
	if len(ops) != 6 {
		return matrix{}, false
	}
	var m matrix
	for i, v := range ops {
		f, ok := v.(float64)
		if !ok {
			return matrix{}, false
		}
		m[i] = f
	}
	return m, true
}

func floatOperand(v any) float64 {
	f, _ := v.(float64)
	return f
}

func countNumeric(ops []any) int {
	n := 0
	for _, v := range ops {
		if _, ok := v.(float64); ok {
			n++
		}
	}
	return n
}

func rgbOperands(ops []any) [3]float64 {
	return [3]float64{
		clamp01(floatOperand(ops[0])),
		clamp01(floatOperand(ops[1])),
		clamp01(floatOperand(ops[2])),
	}
}

func cmykToRGB(c, m, y, k float64) [3]float64 {
	return [3]float64{
		clamp01((1 - c) * (1 - k)),
		clamp01((1 - m) * (1 - k)),
		clamp01((1 - y) * (1 - k)),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func packColor(rgb [3]float64) int {
	r := int(math.Round(rgb[0] * 255))
	g := int(math.Round(rgb[1] * 255))
	b := int(math.Round(rgb[2] * 255))
	return r<<16 | g<<8 | b
}

// fmtNum renders a number the way content streams write them, with no
// trailing zeros.
func fmtNum(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// line is a baseline-merged run of fragments, the unit text search works
// on. Text split across show operators on one line is findable here; text
// split across lines is not.
type line struct {
	text    string
	origins []float64 // x of each rune boundary; len = rune count + 1
	y       float64
	size    float64
	frags   []int // indexes into the page fragment slice, left to right
}

// occurrences returns the rune range of each literal occurrence of text in
// the line, left to right and non-overlapping.
func (ln *line) occurrences(text string) [][2]int {
	if text == "" {
		return nil
	}
	var out [][2]int
	width := utf8.RuneCountInString(text)
	from, runeBase := 0, 0
	for {
		idx := strings.Index(ln.text[from:], text)
		if idx < 0 {
			return out
		}
		start := runeBase + utf8.RuneCountInString(ln.text[from:from+idx])
		out = append(out, [2]int{start, start + width})
		from += idx + len(text)
		runeBase = start + width
	}
}

// assembleLines groups fragments into lines. Fragments whose baselines sit
// within half the glyph height of each other belong to one line; lines come
// out top to bottom, fragments within a line left to right. A gap wider
// than a quarter of the font size between adjacent fragments reads as a
// word break and contributes one space.
func assembleLines(frags []fragment) []line {
	if len(frags) == 0 {
		return nil
	}

	groups := groupByBaseline(frags)

	lines := make([]line, 0, len(groups))
	for _, idxs := range groups {
		sortByStartX(frags, idxs)
		lines = append(lines, buildLine(frags, idxs))
	}
	sortLines(lines)
	return lines
}

func groupByBaseline(frags []fragment) [][]int {
	type group struct {
		y    float64
		size float64
		idxs []int
	}
	var groups []*group
	for i := range frags {
		f := &frags[i]
		var target *group
		for _, g := range groups {
			tol := 0.5 * math.Max(g.size, f.size)
			if math.Abs(g.y-f.y) <= tol {
				target = g
				break
			}
		}
		if target == nil {
			target = &group{y: f.y, size: f.size}
			groups = append(groups, target)
		}
		if f.size > target.size {
			target.size = f.size
		}
		target.idxs = append(target.idxs, i)
	}
	out := make([][]int, len(groups))
	for i, g := range groups {
		out[i] = g.idxs
	}
	return out
}

func sortByStartX(frags []fragment, idxs []int) {
	sort.SliceStable(idxs, func(i, j int) bool {
		return frags[idxs[i]].x < frags[idxs[j]].x
	})
}

func buildLine(frags []fragment, idxs []int) line {
	ln := line{y: frags[idxs[0]].y, frags: idxs}

	var runes []rune
	var starts []float64
	end := 0.0
	for k, idx := range idxs {
		f := &frags[idx]
		if f.size > ln.size {
			ln.size = f.size
		}
		if k > 0 && f.x-end > 0.25*ln.size {
			runes = append(runes, ' ')
			starts = append(starts, end)
		}
		fr := []rune(f.text)
		runes = append(runes, fr...)
		starts = append(starts, f.origins[:len(fr)]...)
		if e := f.endX(); e > end {
			end = e
		}
	}
	ln.text = string(runes)
	ln.origins = append(starts, end)
	return ln
}

func sortLines(lines []line) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].y != lines[j].y {
			return lines[i].y > lines[j].y
		}
		return lines[i].origins[0] < lines[j].origins[0]
	})
}
