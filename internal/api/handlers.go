package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type discoverRequest struct {
	URL      string `json:"url"`
	MaxPosts int    `json:"max_posts"`
	Strategy string `json:"strategy"`
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !validHTTPURL(req.URL) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	if req.MaxPosts <= 0 {
		req.MaxPosts = s.cfg.Discovery.MaxPostsDefault
	}
	discovery, err := s.discoverer.Discover(r.Context(), req.URL, req.MaxPosts, req.Strategy)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, discovery)
}

type extractRequest struct {
	URL string `json:"url"`
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !validHTTPURL(req.URL) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	extraction, err := s.extractor.Extract(r.Context(), req.URL)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, extraction)
}

type structureRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	SourceURL    string `json:"source_url"`
	Instructions string `json:"instructions"`
}

// structure runs the AI structuring pass and attaches the validation score,
// without persisting anything. Operators use it to tune prompts.
func (s *Server) structure(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	structured, err := s.engine.StructureWithInstructions(r.Context(), req.Title, req.Content, req.SourceURL, req.Instructions)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	validation := s.validator.Validate(structured.Candidate)
	structured.Confidence = validation.Confidence
	writeData(w, http.StatusOK, map[string]any{
		"structured": structured,
		"validation": validation,
	})
}

type convertRequest struct {
	Candidate *pipeline.Candidate `json:"candidate"`
}

// convertItem validates and converts one stored raw item. The caller may
// supply an already-structured candidate; otherwise the structuring engine
// runs on the item's scraped content.
func (s *Server) convertItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	item, err := s.items.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	var req convertRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	var candidate pipeline.Candidate
	if req.Candidate != nil {
		candidate = *req.Candidate
	} else {
		if item.Body == "" {
			writeError(w, http.StatusUnprocessableEntity, "item has no scraped content")
			return
		}
		structured, err := s.engine.StructureWithInstructions(r.Context(), item.Title, item.Body, item.URL, "")
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		candidate = structured.Candidate
	}

	validation := s.validator.Validate(candidate)
	result, err := s.converter.Convert(r.Context(), item, candidate, validation)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"result":     result,
		"validation": validation,
	})
}

func (s *Server) processBatch(w http.ResponseWriter, r *http.Request) {
	result, err := s.processor.ProcessPending(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) startCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	started, err := s.runs.Start(r.Context(), campaignID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeData(w, http.StatusAccepted, started)
}

func (s *Server) stopCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	stopped, err := s.runs.Stop(r.Context(), campaignID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, stopped)
}

func (s *Server) campaignRuns(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	report, err := s.runs.Status(r.Context(), campaignID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, report)
}

func (s *Server) queueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.runs.Queue(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, status)
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func statusForError(err error) int {
	var (
		fetchErr     *pipeline.FetchError
		extractErr   *pipeline.ExtractionError
		discoveryErr *pipeline.DiscoveryError
		parseErr     *pipeline.ParseError
	)
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrInactiveCampaign), errors.Is(err, pipeline.ErrNotConfigured):
		return http.StatusUnprocessableEntity
	case errors.As(err, &extractErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr), errors.As(err, &discoveryErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}
