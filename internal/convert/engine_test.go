package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBinary writes an executable shell script standing in for soffice.
func stubBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soffice")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

// copyScript emulates a successful conversion: it finds --outdir and the
// input path, then copies the input bytes to the named output file.
func copyScript(outputName string) string {
	return fmt.Sprintf(`out=""
while [ "$#" -gt 0 ]; do
  if [ "$1" = "--outdir" ]; then out="$2"; fi
  in="$1"
  shift
done
cp "$in" "$out/%s"`, outputName)
}

func TestPDFToDOCX(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	script := fmt.Sprintf("echo \"$@\" > %q\n%s", argsFile, copyScript("input.docx"))
	e := NewEngine(stubBinary(t, script), t.TempDir(), 0, nil)

	input := []byte("%PDF-1.4 pretend")
	out, err := e.PDFToDOCX(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, input, out)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "--headless")
	assert.Contains(t, string(args), "--infilter=writer_pdf_import")
	assert.Contains(t, string(args), "--convert-to docx")
	assert.Contains(t, string(args), "input.pdf")
}

func TestDOCXToPDFUsesExportFilter(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	script := fmt.Sprintf("echo \"$@\" > %q\n%s", argsFile, copyScript("input.pdf"))
	e := NewEngine(stubBinary(t, script), t.TempDir(), 0, nil)

	out, err := e.DOCXToPDF(context.Background(), []byte("docx bytes"))
	require.NoError(t, err)
	assert.Equal(t, []byte("docx bytes"), out)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "pdf:writer_pdf_Export:UseLosslessCompression=true")
	assert.Contains(t, string(args), "UseTaggedPDF=true")
}

func TestOutputFoundByGlobWhenRenamed(t *testing.T) {
	e := NewEngine(stubBinary(t, copyScript("renamed.docx")), t.TempDir(), 0, nil)

	out, err := e.PDFToDOCX(context.Background(), []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), out)
}

func TestEngineFailureCarriesStderr(t *testing.T) {
	e := NewEngine(stubBinary(t, `echo "conversion barfed" >&2; exit 3`), t.TempDir(), 0, nil)

	_, err := e.PDFToDOCX(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineFailure)
	assert.Contains(t, err.Error(), "conversion barfed")
}

func TestEngineFailureWhenNoOutput(t *testing.T) {
	e := NewEngine(stubBinary(t, "exit 0"), t.TempDir(), 0, nil)

	_, err := e.PDFToDOCX(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrEngineFailure)
	assert.Contains(t, err.Error(), "no *.docx output")
}

func TestEngineTimeout(t *testing.T) {
	// The stub backgrounds a child that inherits stderr and outlives the
	// kill, the shape of the real soffice wrapper around soffice.bin.
	e := NewEngine(stubBinary(t, "sleep 5 &\nwait"), t.TempDir(), 50*time.Millisecond, nil)

	start := time.Now()
	_, err := e.PDFToDOCX(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrEngineTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestJobDirectoryCleanedUp(t *testing.T) {
	tempDir := t.TempDir()
	e := NewEngine(stubBinary(t, copyScript("input.docx")), tempDir, 0, nil)

	_, err := e.PDFToDOCX(context.Background(), []byte("payload"))
	require.NoError(t, err)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), "convert-"),
			"job dir %s should have been removed", entry.Name())
	}
}

func TestAvailable(t *testing.T) {
	assert.NoError(t, NewEngine("/bin/sh", "", 0, nil).Available())
	assert.Error(t, NewEngine("/definitely/not/here/soffice", "", 0, nil).Available())
}
