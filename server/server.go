// Package server exposes table extraction over HTTP.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	invoicetable "github.com/Muhammad-Talha4k/invoice-table-extraction"
	"github.com/Muhammad-Talha4k/invoice-table-extraction/store"
)

// DefaultMaxUploadBytes caps the size of an uploaded file.
const DefaultMaxUploadBytes int64 = 32 << 20

// Archive persists extraction results. *store.Store implements it.
type Archive interface {
	Save(ctx context.Context, source string, res *invoicetable.Result) (string, error)
	Get(ctx context.Context, id string) (*store.Record, error)
	List(ctx context.Context, limit int) ([]store.Summary, error)
	Delete(ctx context.Context, id string) error
}

// Server serves the extraction API.
type Server struct {
	extractor      *invoicetable.Extractor
	archive        Archive
	logger         *zap.Logger
	maxUploadBytes int64
	allowedOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithStore persists every extraction and enables the /extractions routes.
func WithStore(a Archive) Option {
	return func(s *Server) { s.archive = a }
}

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxUploadBytes overrides DefaultMaxUploadBytes.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithAllowedOrigins enables CORS for the given origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// New creates a server around an extractor. A nil extractor uses the
// default configuration.
func New(extractor *invoicetable.Extractor, opts ...Option) *Server {
	if extractor == nil {
		extractor = invoicetable.NewExtractor()
	}
	s := &Server{
		extractor:      extractor,
		logger:         zap.NewNop(),
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	if len(s.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"X-Extraction-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/extract", s.handleExtract)
	r.Post("/decode", s.handleDecode)

	r.Route("/extractions", func(r chi.Router) {
		r.Use(s.requireArchive)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Delete("/{id}", s.handleDelete)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) requireArchive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.archive == nil {
			writeError(w, http.StatusNotFound, "no extraction store configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	extractor := s.extractor
	if v := r.URL.Query().Get("min_non_nan_pct"); v != "" {
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_non_nan_pct must be a number")
			return
		}
		cfg := extractor.Config()
		cfg.MinNonNaNPct = pct
		if extractor, err = invoicetable.NewExtractorWithConfig(cfg); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if r.ContentLength > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form with a \"file\" field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing \"file\" field")
		return
	}
	defer file.Close()

	result, err := extractor.ExtractReader(file, header.Filename)
	if err != nil {
		s.logger.Warn("extraction failed", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	var id string
	if s.archive != nil {
		if id, err = s.archive.Save(r.Context(), header.Filename, result); err != nil {
			s.logger.Error("failed to save extraction", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save extraction")
			return
		}
		w.Header().Set("X-Extraction-Id", id)
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, invoicetable.RenderMarkdown(result))
		return
	}

	writeJSON(w, http.StatusOK, newExtractionResponse(id, header.Filename, result))
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	table, err := invoicetable.DecodeJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newTableView(table.Header, table.Rows))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	summaries, err := s.archive.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list extractions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list extractions")
		return
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "extraction not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load extraction", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load extraction")
		return
	}
	writeJSON(w, http.StatusOK, newExtractionResponse(rec.ID, rec.Source, rec.Result))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.archive.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "extraction not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete extraction", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete extraction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps extraction errors to response codes.
func statusFor(err error) int {
	var loadErr *invoicetable.LoadError
	var formatErr *invoicetable.FormatError
	switch {
	case errors.Is(err, invoicetable.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, invoicetable.ErrSourceTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &loadErr), errors.As(err, &formatErr), errors.Is(err, invoicetable.ErrNoColumns):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
