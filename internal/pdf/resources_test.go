package pdf

import (
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCMap = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0041> <0058>
<0042> <0059>
endbfchar
1 beginbfrange
<0061> <0063> <0041>
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func TestParseToUnicode(t *testing.T) {
	m := parseToUnicode([]byte(sampleCMap))
	require.NotNil(t, m)
	assert.Equal(t, []int{2}, m.lengths)

	assert.Equal(t, "X", m.decode([]byte{0x00, 0x41}))
	assert.Equal(t, "Y", m.decode([]byte{0x00, 0x42}))

	// The bfrange expands to consecutive targets.
	assert.Equal(t, "ABC", m.decode([]byte{0x00, 0x61, 0x00, 0x62, 0x00, 0x63}))
}

func TestParseToUnicodeArrayRange(t *testing.T) {
	cmap := `1 begincodespacerange
<00> <FF>
endcodespacerange
1 beginbfrange
<01> <02> [<0058> <0059>]
endbfrange`
	m := parseToUnicode([]byte(cmap))
	assert.Equal(t, "XY", m.decode([]byte{0x01, 0x02}))
}

func TestParseToUnicodeMultilineArrayRange(t *testing.T) {
	cmap := `1 beginbfrange
<01> <03> [<0058>
<0059>
<005A>]
endbfrange`
	m := parseToUnicode([]byte(cmap))
	assert.Equal(t, "XYZ", m.decode([]byte{0x01, 0x02, 0x03}))
}

func TestToUnicodeDecodeGreedy(t *testing.T) {
	cmap := `2 beginbfchar
<20> <0041>
<2021> <0042>
endbfchar`
	m := parseToUnicode([]byte(cmap))
	require.Equal(t, []int{2, 1}, m.lengths)

	// The two-byte code wins over two one-byte matches.
	assert.Equal(t, "B", m.decode([]byte{0x20, 0x21}))
	assert.Equal(t, "AA", m.decode([]byte{0x20, 0x20}))
}

func TestToUnicodeDecodeFallsThroughUnmapped(t *testing.T) {
	cmap := `1 beginbfchar
<01> <0041>
endbfchar`
	m := parseToUnicode([]byte(cmap))
	assert.Equal(t, "Aé", m.decode([]byte{0x01, 0xE9}))
}

func TestHexTokens(t *testing.T) {
	assert.Equal(t, []string{"0041", "005A"}, hexTokens("<0041> <005A>"))
	assert.Equal(t, []string{"0041"}, hexTokens("<00 41>"))
	assert.Empty(t, hexTokens("no hex here"))
	assert.Empty(t, hexTokens("<unterminated"))
}

func TestStyleFlags(t *testing.T) {
	tests := []struct {
		name string
		font string
		desc types.Dict
		want int
	}{
		{
			name: "UprightSerifDescriptor",
			font: "LiberationSerif",
			// Serif|Nonsymbolic; the serif bit must not read as italic.
			desc: types.Dict{"Flags": types.Integer(34), "StemV": types.Integer(86)},
			want: 0,
		},
		{
			name: "DescriptorItalicAndForceBold",
			font: "Cabin",
			desc: types.Dict{"Flags": types.Integer(2 | 32 | 64 | 262144)},
			want: flagItalic | flagBold,
		},
		{
			name: "ItalicAngle",
			font: "Georgia",
			desc: types.Dict{"ItalicAngle": types.Float(-12)},
			want: flagItalic,
		},
		{
			name: "HeavyStem",
			font: "Georgia",
			desc: types.Dict{"StemV": types.Integer(165)},
			want: flagBold,
		},
		{
			name: "NameKeywordsWithoutDescriptor",
			font: "Futura-BoldOblique",
			desc: nil,
			want: flagItalic | flagBold,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, styleFlags(tt.font, tt.desc))
		})
	}
}

func TestLoadPageFontsSynthesizesStyleFlags(t *testing.T) {
	res := types.Dict{
		"Font": types.Dict{
			"F1": types.Dict{
				"Type":     types.Name("Font"),
				"Subtype":  types.Name("TrueType"),
				"BaseFont": types.Name("LiberationSerif"),
				"FontDescriptor": types.Dict{
					"Flags":       types.Integer(34),
					"StemV":       types.Integer(86),
					"ItalicAngle": types.Integer(0),
				},
			},
			"F2": types.Dict{
				"Type":     types.Name("Font"),
				"Subtype":  types.Name("TrueType"),
				"BaseFont": types.Name("Cabin"),
				"FontDescriptor": types.Dict{
					"Flags": types.Integer(2 | 32 | 64 | 262144),
				},
			},
		},
	}
	fonts := loadPageFonts(nil, res)
	require.Contains(t, fonts, "F1")
	require.Contains(t, fonts, "F2")

	// An upright serif face classifies as regular Times, not italic.
	assert.Equal(t, 0, fonts["F1"].flags)
	assert.Equal(t, TimesRoman, Classify(fonts["F1"].baseFont, fonts["F1"].flags))

	// Italic and ForceBold bits survive even when the name carries no
	// style keywords.
	assert.Equal(t, flagItalic|flagBold, fonts["F2"].flags)
	assert.Equal(t, HelveticaBoldOblique, Classify(fonts["F2"].baseFont, fonts["F2"].flags))
}

func TestLoadPageFontsReadsWidths(t *testing.T) {
	res := types.Dict{
		"Font": types.Dict{
			"F1": types.Dict{
				"Type":      types.Name("Font"),
				"Subtype":   types.Name("TrueType"),
				"BaseFont":  types.Name("LiberationSerif"),
				"FirstChar": types.Integer(65),
				"Widths":    types.Array{types.Integer(600), types.Float(722)},
				"FontDescriptor": types.Dict{
					"MissingWidth": types.Integer(250),
				},
			},
		},
	}
	fonts := loadPageFonts(nil, res)
	require.Contains(t, fonts, "F1")
	f := fonts["F1"]

	w, ok := f.glyphWidth('A')
	require.True(t, ok)
	assert.InDelta(t, 0.6, w, 0.0001)

	w, ok = f.glyphWidth('B')
	require.True(t, ok)
	assert.InDelta(t, 0.722, w, 0.0001)

	// Out of range falls back to the descriptor's MissingWidth.
	w, ok = f.glyphWidth('z')
	require.True(t, ok)
	assert.InDelta(t, 0.25, w, 0.0001)
}

func TestGlyphWidthWithoutData(t *testing.T) {
	f := &fontRes{}
	_, ok := f.glyphWidth('A')
	assert.False(t, ok)
}

func TestBaseFontName(t *testing.T) {
	tests := []struct {
		name string
		dict types.Dict
		want string
	}{
		{
			name: "SubsetTagStripped",
			dict: types.Dict{"BaseFont": types.Name("ABCDEF+Arial-Bold")},
			want: "Arial-Bold",
		},
		{
			name: "PlainNameKept",
			dict: types.Dict{"BaseFont": types.Name("Times-Roman")},
			want: "Times-Roman",
		},
		{
			name: "LowercasePrefixIsNotASubsetTag",
			dict: types.Dict{"BaseFont": types.Name("abcdef+Arial")},
			want: "abcdef+Arial",
		},
		{
			name: "MissingBaseFont",
			dict: types.Dict{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, baseFontName(tt.dict))
		})
	}
}
