// Package convert shells out to a headless LibreOffice for PDF/DOCX
// conversion. Every job runs in its own temp directory and is bounded by a
// timeout; the engine never touches the caller's filesystem.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrEngineTimeout reports that LibreOffice did not finish within the
	// configured limit.
	ErrEngineTimeout = errors.New("conversion engine timed out")
	// ErrEngineFailure reports that LibreOffice exited unsuccessfully or
	// produced no usable output.
	ErrEngineFailure = errors.New("conversion engine failed")
)

// DefaultTimeout bounds a single conversion. Large scanned documents can
// keep LibreOffice busy for minutes.
const DefaultTimeout = 180 * time.Second

// waitDelay bounds how long a killed conversion may hold its pipes open.
// soffice is a wrapper around soffice.bin, and the child it spawns
// inherits stderr; without the delay Run would block until that child
// exits on its own.
const waitDelay = time.Second

// pdfExportFilter selects lossless, tagged PDF 1.5 output.
const pdfExportFilter = "pdf:writer_pdf_Export:" +
	"UseLosslessCompression=true," +
	"Quality=100," +
	"SelectPdfVersion=1," +
	"UseTaggedPDF=true"

// Engine drives the LibreOffice binary.
type Engine struct {
	binary  string
	tempDir string
	timeout time.Duration
	logger  *zap.Logger
}

// NewEngine creates an Engine. Empty binary defaults to soffice on PATH,
// empty tempDir to the system temp directory, a non-positive timeout to
// DefaultTimeout. A nil logger disables logging.
func NewEngine(binary, tempDir string, timeout time.Duration, logger *zap.Logger) *Engine {
	if binary == "" {
		binary = "soffice"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{binary: binary, tempDir: tempDir, timeout: timeout, logger: logger}
}

// Available reports whether the configured binary resolves to an
// executable.
func (e *Engine) Available() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}
	return nil
}

// PDFToDOCX converts a PDF to DOCX. The writer_pdf_import filter makes
// LibreOffice treat the PDF as an editable document.
func (e *Engine) PDFToDOCX(ctx context.Context, pdf []byte) ([]byte, error) {
	return e.run(ctx, job{
		input:   "input.pdf",
		output:  "input.docx",
		outGlob: "*.docx",
		data:    pdf,
		args:    []string{"--headless", "--infilter=writer_pdf_import", "--convert-to", "docx"},
	})
}

// DOCXToPDF converts a DOCX to PDF with the high-quality export filter.
func (e *Engine) DOCXToPDF(ctx context.Context, docx []byte) ([]byte, error) {
	return e.run(ctx, job{
		input:   "input.docx",
		output:  "input.pdf",
		outGlob: "*.pdf",
		data:    docx,
		args:    []string{"--headless", "--convert-to", pdfExportFilter},
	})
}

type job struct {
	input   string
	output  string
	outGlob string
	data    []byte
	args    []string
}

func (e *Engine) run(ctx context.Context, j job) ([]byte, error) {
	base := e.tempDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "convert-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, j.input)
	if err := os.WriteFile(inPath, j.data, 0o600); err != nil {
		return nil, fmt.Errorf("write job input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string{}, j.args...), "--outdir", dir, inPath)
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Info("converting document",
		zap.String("input", j.input),
		zap.Int("bytes", len(j.data)),
	)
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrEngineTimeout, e.timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrEngineFailure, diagnostic(stderr.Bytes(), err))
	}

	out, err := readOutput(dir, j.output, j.outGlob)
	if err != nil {
		return nil, err
	}
	e.logger.Info("conversion complete",
		zap.String("output", j.output),
		zap.Int("bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// readOutput locates the produced file. LibreOffice names it after the
// input; the extension glob covers filters that pick their own name.
func readOutput(dir, expected, glob string) ([]byte, error) {
	path := filepath.Join(dir, expected)
	if _, err := os.Stat(path); err != nil {
		matches, _ := filepath.Glob(filepath.Join(dir, glob))
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: no %s output produced", ErrEngineFailure, glob)
		}
		path = matches[0]
	}
	out, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrEngineFailure, err)
	}
	return out, nil
}

func diagnostic(stderr []byte, err error) string {
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		return msg
	}
	return err.Error()
}
