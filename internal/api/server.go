// Package api exposes the HTTP interface for the pipeline service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/config"
	"github.com/shubhamdixena/opportunity-pipeline/internal/convert"
	"github.com/shubhamdixena/opportunity-pipeline/internal/metrics"
	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
	"github.com/shubhamdixena/opportunity-pipeline/internal/run"
)

// Discoverer enumerates candidate post URLs for a seed.
type Discoverer interface {
	Discover(ctx context.Context, seedURL string, maxPosts int, strategy string) (pipeline.Discovery, error)
}

// Extractor pulls readable content from one URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (pipeline.Extraction, error)
}

// Structurer turns raw text into a candidate record.
type Structurer interface {
	StructureWithInstructions(ctx context.Context, title, rawText, sourceURL, instructions string) (pipeline.Structured, error)
}

// Validator scores a candidate.
type Validator interface {
	Validate(c pipeline.Candidate) pipeline.ValidationResult
}

// Converter persists a validated candidate as an opportunity.
type Converter interface {
	Convert(ctx context.Context, item pipeline.RawItem, candidate pipeline.Candidate, validation pipeline.ValidationResult) (convert.Result, error)
}

// BatchProcessor drives one pass over all pending raw items.
type BatchProcessor interface {
	ProcessPending(ctx context.Context) (convert.BatchResult, error)
}

// RunController controls campaign runs.
type RunController interface {
	Start(ctx context.Context, campaignID string) (pipeline.CampaignRun, error)
	Stop(ctx context.Context, campaignID string) (pipeline.CampaignRun, error)
	Status(ctx context.Context, campaignID string) (run.StatusReport, error)
	Queue(ctx context.Context) (run.QueueStatus, error)
}

// Server wires HTTP handlers to the pipeline collaborators.
type Server struct {
	router     chi.Router
	items      pipeline.ItemStore
	discoverer Discoverer
	extractor  Extractor
	engine     Structurer
	validator  Validator
	converter  Converter
	processor  BatchProcessor
	runs       RunController
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	items pipeline.ItemStore,
	discoverer Discoverer,
	extractor Extractor,
	engine Structurer,
	validator Validator,
	converter Converter,
	processor BatchProcessor,
	runs RunController,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		items:      items,
		discoverer: discoverer,
		extractor:  extractor,
		engine:     engine,
		validator:  validator,
		converter:  converter,
		processor:  processor,
		runs:       runs,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/discover", s.discover)
		r.Post("/extract", s.extract)
		r.Post("/structure", s.structure)
		r.Post("/convert/{item_id}", s.convertItem)
		r.Post("/process", s.processBatch)
		r.Route("/campaigns/{campaign_id}", func(r chi.Router) {
			r.Post("/start", s.startCampaign)
			r.Post("/stop", s.stopCampaign)
			r.Get("/runs", s.campaignRuns)
		})
		r.Get("/queue/status", s.queueStatus)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
