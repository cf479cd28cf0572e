package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePDF  = "application/pdf"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Engine  string `json:"engine"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// apiError is an error with a client-facing status code. Handlers return
// plain errors for unexpected failures, which map to 500.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

// handle adapts an error-returning handler to http.HandlerFunc, turning
// failures into JSON error bodies.
func (s *Server) handle(fn func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		status := http.StatusInternalServerError
		var ae *apiError
		if errors.As(err, &ae) {
			status = ae.status
		}
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
		s.writeJSON(w, status, errorResponse{Error: err.Error()})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: Version,
		Engine:  "libreoffice",
	})
}

// convertPDFToDOCX converts an uploaded PDF to DOCX, flattens the text
// boxes the import scatters through the result, and optionally applies
// text replacements before responding.
func (s *Server) convertPDFToDOCX(w http.ResponseWriter, r *http.Request) error {
	name, data, err := readUpload(r, ".pdf", "PDF")
	if err != nil {
		return err
	}
	rules, err := parseReplacements(r, false)
	if err != nil {
		return err
	}

	out, err := s.converter.PDFToDOCX(r.Context(), data)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	out, _ = s.flattener.Flatten(out)
	if len(rules) > 0 {
		out, _, err = s.docxText.Replace(out, rules)
		if err != nil {
			return fmt.Errorf("text replacement failed: %w", err)
		}
	}

	sendAttachment(w, swapExt(name, ".docx"), mimeDOCX, out)
	return nil
}

// convertDOCXToPDF applies optional text replacements to an uploaded DOCX
// and converts the result to PDF.
func (s *Server) convertDOCXToPDF(w http.ResponseWriter, r *http.Request) error {
	name, data, err := readUpload(r, ".docx", "DOCX")
	if err != nil {
		return err
	}
	rules, err := parseReplacements(r, false)
	if err != nil {
		return err
	}

	if len(rules) > 0 {
		data, _, err = s.docxText.Replace(data, rules)
		if err != nil {
			return fmt.Errorf("text replacement failed: %w", err)
		}
	}
	out, err := s.converter.DOCXToPDF(r.Context(), data)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	sendAttachment(w, swapExt(name, ".pdf"), mimePDF, out)
	return nil
}

func (s *Server) replaceDOCXText(w http.ResponseWriter, r *http.Request) error {
	name, data, err := readUpload(r, ".docx", "DOCX")
	if err != nil {
		return err
	}
	rules, err := parseReplacements(r, true)
	if err != nil {
		return err
	}

	out, _, err := s.docxText.Replace(data, rules)
	if err != nil {
		return fmt.Errorf("text replacement failed: %w", err)
	}

	sendAttachment(w, name, mimeDOCX, out)
	return nil
}

func (s *Server) replacePDFText(w http.ResponseWriter, r *http.Request) error {
	name, data, err := readUpload(r, ".pdf", "PDF")
	if err != nil {
		return err
	}
	rules, err := parseReplacements(r, true)
	if err != nil {
		return err
	}

	out, _, err := s.pdfText.Replace(data, rules)
	if err != nil {
		return fmt.Errorf("text replacement failed: %w", err)
	}

	sendAttachment(w, name, mimePDF, out)
	return nil
}

// readUpload pulls the uploaded file out of the multipart form and enforces
// its extension. kind names the format in client-facing messages.
func readUpload(r *http.Request, ext, kind string) (string, []byte, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, badRequest("Missing file upload: %v", err)
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ext) {
		return "", nil, badRequest("File must be a %s", kind)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, badRequest("Empty file received")
	}
	return header.Filename, data, nil
}

// parseReplacements decodes the replacements form field, a JSON object of
// old to new strings. When required is false an absent field means no
// substitutions.
func parseReplacements(r *http.Request, required bool) (map[string]string, error) {
	raw := r.FormValue("replacements")
	if raw == "" {
		if required {
			return nil, badRequest("Missing replacements field")
		}
		return nil, nil
	}
	var rules map[string]string
	if err := sonic.UnmarshalString(raw, &rules); err != nil {
		return nil, badRequest("Invalid replacements JSON: %v", err)
	}
	if rules == nil {
		return nil, badRequest("Invalid replacements JSON: expected an object")
	}
	return rules, nil
}

// swapExt replaces the file extension, keeping the base name.
func swapExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

func sendAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
