package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// wrapDocument wraps body content in a minimal WordprocessingML document
// with the namespace declarations a converter-produced file carries.
func wrapDocument(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape"` +
		` xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006">` +
		`<w:body>` + body + `</w:body></w:document>`
}

// para builds a plain paragraph with a single run.
func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

// textboxPara builds an anchor paragraph holding one text box whose content
// is the given paragraphs, mirroring the nesting a PDF import produces.
func textboxPara(inner ...string) string {
	var sb bytes.Buffer
	sb.WriteString(`<w:p><w:r><w:drawing><wp:anchor><a:graphic><wps:wsp><wps:txbx><w:txbxContent>`)
	for _, p := range inner {
		sb.WriteString(p)
	}
	sb.WriteString(`</w:txbxContent></wps:txbx></wps:wsp></a:graphic></wp:anchor></w:drawing></w:r></w:p>`)
	return sb.String()
}

// buildDocx assembles an in-memory package with the standard parts and the
// given word/document.xml content.
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	rels, err := w.Create("_rels/.rels")
	require.NoError(t, err)
	_, err = io.WriteString(rels, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`)
	require.NoError(t, err)

	ct, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = io.WriteString(ct, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`)
	require.NoError(t, err)

	doc, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = io.WriteString(doc, documentXML)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

// buildPlainZip assembles a zip archive that is not a word-processing
// package at all.
func buildPlainZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(f, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// readEntry pulls one entry out of a package produced by the code under
// test.
func readEntry(t *testing.T, data []byte, name string) []byte {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		return content
	}
	t.Fatalf("entry %s not found", name)
	return nil
}

// entryNames lists the entries of a package in archive order.
func entryNames(t *testing.T, data []byte) []string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

// manyParas generates n distinct paragraphs, handy for order checks.
func manyParas(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = para(fmt.Sprintf("paragraph %d", i+1))
	}
	return out
}
