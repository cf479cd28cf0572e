package docx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPackage(t *testing.T) {
	t.Run("ValidPackage", func(t *testing.T) {
		data := buildDocx(t, wrapDocument(para("hello")))
		pkg, err := OpenPackage(data)
		require.NoError(t, err)
		assert.True(t, pkg.Has("word/document.xml"))
		assert.Equal(t, []string{"_rels/.rels", "[Content_Types].xml", "word/document.xml"}, pkg.Entries())
	})

	t.Run("CorruptInput", func(t *testing.T) {
		_, err := OpenPackage([]byte("this is not an archive"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCorruptArchive)
	})
}

func TestPackageRead(t *testing.T) {
	data := buildDocx(t, wrapDocument(para("hello")))
	pkg, err := OpenPackage(data)
	require.NoError(t, err)

	t.Run("ExistingEntry", func(t *testing.T) {
		content, err := pkg.Read("word/document.xml")
		require.NoError(t, err)
		assert.Contains(t, string(content), "<w:t>hello</w:t>")
	})

	t.Run("MissingEntry", func(t *testing.T) {
		_, err := pkg.Read("word/missing.xml")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})
}

func TestPackageRebuild(t *testing.T) {
	data := buildDocx(t, wrapDocument(para("hello")))
	pkg, err := OpenPackage(data)
	require.NoError(t, err)

	t.Run("OverrideReplacesSingleEntry", func(t *testing.T) {
		replacement := []byte(wrapDocument(para("changed")))
		out, err := pkg.Rebuild(map[string][]byte{"word/document.xml": replacement})
		require.NoError(t, err)

		assert.Equal(t, replacement, readEntry(t, out, "word/document.xml"))

		// Every other entry keeps its exact content and position.
		assert.Equal(t, entryNames(t, data), entryNames(t, out))
		for _, name := range entryNames(t, data) {
			if name == "word/document.xml" {
				continue
			}
			assert.Equal(t, readEntry(t, data, name), readEntry(t, out, name), name)
		}
	})

	t.Run("NoOverrides", func(t *testing.T) {
		out, err := pkg.Rebuild(nil)
		require.NoError(t, err)
		assert.Equal(t, entryNames(t, data), entryNames(t, out))
		for _, name := range entryNames(t, data) {
			assert.Equal(t, readEntry(t, data, name), readEntry(t, out, name), name)
		}
	})

	t.Run("UnknownOverrideAppended", func(t *testing.T) {
		out, err := pkg.Rebuild(map[string][]byte{"word/extra.xml": []byte("<extra/>")})
		require.NoError(t, err)
		names := entryNames(t, out)
		require.NotEmpty(t, names)
		assert.Equal(t, "word/extra.xml", names[len(names)-1])
		assert.Equal(t, []byte("<extra/>"), readEntry(t, out, "word/extra.xml"))
	})

	t.Run("LargeEntryOrderStable", func(t *testing.T) {
		body := strings.Join(manyParas(40), "")
		big := buildDocx(t, wrapDocument(body))
		pkg, err := OpenPackage(big)
		require.NoError(t, err)
		out, err := pkg.Rebuild(nil)
		require.NoError(t, err)
		assert.Equal(t, entryNames(t, big), entryNames(t, out))
	})
}
