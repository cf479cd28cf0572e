package docx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReplacer() *Replacer {
	return NewReplacer(nil)
}

// leafTexts returns the text of every w:t leaf in document order.
func leafTexts(t *testing.T, data []byte) []string {
	t.Helper()

	pkg, err := OpenPackage(data)
	require.NoError(t, err)
	docXML, err := pkg.Read(documentEntry)
	require.NoError(t, err)
	doc, err := parseXML(docXML)
	require.NoError(t, err)

	var out []string
	for _, leaf := range findAll(doc.Root(), tagText) {
		out = append(out, leaf.Text())
	}
	return out
}

func TestReplaceConfinedToLeaves(t *testing.T) {
	r := newTestReplacer()

	in := buildDocx(t, wrapDocument(para("Hello World")+para("untouched")))
	out, n, err := r.Replace(in, Replacements{"Hello": "Hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"Hi World", "untouched"}, leafTexts(t, out))

	// Run structure survives: still one run per paragraph.
	docXML := string(readEntry(t, out, documentEntry))
	assert.Contains(t, docXML, "<w:t>Hi World</w:t>")
}

func TestReplaceFirstOccurrencePerLeaf(t *testing.T) {
	r := newTestReplacer()

	t.Run("SecondOccurrenceInSameLeafStays", func(t *testing.T) {
		in := buildDocx(t, wrapDocument(para("abc abc")))
		out, n, err := r.Replace(in, Replacements{"abc": "xyz"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"xyz abc"}, leafTexts(t, out))
	})

	t.Run("EveryContainingLeafIsACandidate", func(t *testing.T) {
		in := buildDocx(t, wrapDocument(para("abc one")+para("plain")+para("abc two")))
		out, n, err := r.Replace(in, Replacements{"abc": "xyz"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"xyz one", "plain", "xyz two"}, leafTexts(t, out))
	})

	t.Run("IndependentRulesInOneLeaf", func(t *testing.T) {
		in := buildDocx(t, wrapDocument(para("alpha beta gamma")))
		out, n, err := r.Replace(in, Replacements{"alpha": "A", "gamma": "G"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"A beta G"}, leafTexts(t, out))
	})
}

func TestReplaceOverlappingClaims(t *testing.T) {
	r := newTestReplacer()

	// "abcd" sorts first and claims [0,4). The first "bc" occurrence sits
	// inside that claim, so the key is skipped for this leaf rather than
	// retried at the later standalone "bc".
	in := buildDocx(t, wrapDocument(para("abcd bc")))
	out, n, err := r.Replace(in, Replacements{"abcd": "X", "bc": "Y"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"X bc"}, leafTexts(t, out))

	// Here the only "bc" sits inside the "abcd" claim, so it is dropped.
	in = buildDocx(t, wrapDocument(para("abcd tail")))
	out, n, err = r.Replace(in, Replacements{"abcd": "X", "bc": "Y"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"X tail"}, leafTexts(t, out))
}

func TestReplaceUnchangedInputs(t *testing.T) {
	r := newTestReplacer()

	t.Run("EmptyMapping", func(t *testing.T) {
		in := buildDocx(t, wrapDocument(para("Hello")))
		out, n, err := r.Replace(in, Replacements{})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, in, out)
	})

	t.Run("OnlyInactiveRules", func(t *testing.T) {
		in := buildDocx(t, wrapDocument(para("Hello")))
		out, n, err := r.Replace(in, Replacements{"": "x", "same": "same"})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, in, out)
	})

	t.Run("NoMatches", func(t *testing.T) {
		in := buildDocx(t, wrapDocument(para("Hello")))
		out, n, err := r.Replace(in, Replacements{"absent": "x"})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, in, out)
	})

	t.Run("MissingDocumentEntry", func(t *testing.T) {
		in := buildPlainZip(t, map[string]string{"readme.txt": "Hello"})
		out, n, err := r.Replace(in, Replacements{"Hello": "Hi"})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, in, out)
	})

	t.Run("SplitAcrossLeavesNotFound", func(t *testing.T) {
		// The source string spans two adjacent runs; leaf-confined matching
		// does not see it.
		body := `<w:p><w:r><w:t>Hel</w:t></w:r><w:r><w:t>lo</w:t></w:r></w:p>`
		in := buildDocx(t, wrapDocument(body))
		out, n, err := r.Replace(in, Replacements{"Hello": "Hi"})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, in, out)
	})
}

func TestReplaceErrors(t *testing.T) {
	r := newTestReplacer()

	t.Run("CorruptArchive", func(t *testing.T) {
		_, _, err := r.Replace([]byte("not a zip"), Replacements{"a": "b"})
		assert.ErrorIs(t, err, ErrCorruptArchive)
	})

	t.Run("MalformedDocument", func(t *testing.T) {
		in := buildDocx(t, "<w:document xmlns:w=\""+nsWordML+"\"><broken")
		_, _, err := r.Replace(in, Replacements{"a": "b"})
		assert.ErrorIs(t, err, ErrMalformedXML)
	})
}

func TestReplaceKeepsOtherEntriesIdentical(t *testing.T) {
	r := newTestReplacer()

	in := buildDocx(t, wrapDocument(para("Hello World")))
	out, n, err := r.Replace(in, Replacements{"World": "There"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	assert.Equal(t, entryNames(t, in), entryNames(t, out))
	assert.Equal(t,
		readEntry(t, in, "_rels/.rels"),
		readEntry(t, out, "_rels/.rels"))
	assert.Equal(t,
		readEntry(t, in, "[Content_Types].xml"),
		readEntry(t, out, "[Content_Types].xml"))
}
