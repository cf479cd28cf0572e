// Package server exposes document conversion and text replacement over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-converter-agent/internal/docx"
	"github.com/nerdneilsfield/go-converter-agent/internal/pdf"
)

// Version is the service version reported by the health endpoint.
const Version = "2.0.0"

// Converter turns documents from one format into the other. The production
// implementation shells out to LibreOffice, so handlers receive it as an
// interface.
type Converter interface {
	PDFToDOCX(ctx context.Context, pdf []byte) ([]byte, error)
	DOCXToPDF(ctx context.Context, docx []byte) ([]byte, error)
}

// Server is the HTTP face of the converter service.
type Server struct {
	converter Converter
	flattener *docx.Flattener
	docxText  *docx.Replacer
	pdfText   *pdf.Replacer
	logger    *zap.Logger
	mux       *http.ServeMux
}

// New builds a server around the given conversion engine. A nil logger
// disables logging.
func New(converter Converter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		converter: converter,
		flattener: docx.NewFlattener(logger),
		docxText:  docx.NewReplacer(logger),
		pdfText:   pdf.NewReplacer(logger),
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /convert/pdf-to-docx", s.handle(s.convertPDFToDOCX))
	s.mux.HandleFunc("POST /convert/docx-to-pdf", s.handle(s.convertDOCXToPDF))
	s.mux.HandleFunc("POST /replace-text", s.handle(s.replaceDOCXText))
	s.mux.HandleFunc("POST /replace-text-pdf", s.handle(s.replacePDFText))
	return s
}

// ServeHTTP assigns every request an ID, echoes it in the X-Request-ID
// header, and writes one access log line once the handler returns.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set("X-Request-ID", id)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	s.mux.ServeHTTP(rec, r.WithContext(withRequestID(r.Context(), id)))

	s.logger.Info("request",
		zap.String("request_id", id),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("elapsed", time.Since(start)))
}

// ListenAndServe runs the server on addr until ctx is canceled, then drains
// in-flight requests before returning.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// requestID returns the ID assigned by ServeHTTP, or "" outside a request.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
