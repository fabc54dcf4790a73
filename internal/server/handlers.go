package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tarlanaraujo/TarlanTV/internal/models"
	"github.com/tarlanaraujo/TarlanTV/internal/service"
	"github.com/tarlanaraujo/TarlanTV/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitJobRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.URL == "" {
		s.writeErr(w, r, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	jobID, err := s.coord.Submit(r.Context(), req.URL)
	if err != nil && jobID > 0 {
		// The job exists and is already failed; report it so it can be polled.
		w.Header().Set("Location", fmt.Sprintf("/api/jobs/%d", jobID))
	}
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": models.JobPending,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", v))
			return
		}
		limit = n
	}

	jobs, err := s.coord.ListJobs(r.Context(), limit)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, http.StatusBadRequest, err)
		return
	}
	job, err := s.coord.JobStatus(r.Context(), jobID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobChannels(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, http.StatusBadRequest, err)
		return
	}
	groups, err := s.coord.JobChannels(r.Context(), jobID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	total := 0
	for _, g := range groups {
		total += len(g.Channels)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":     jobID,
		"total":      total,
		"categories": groups,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, http.StatusBadRequest, err)
		return
	}
	export, err := s.coord.ExportWorkingChannels(r.Context(), jobID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-mpegurl")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.Content))
}

func (s *Server) handleRetestChannel(w http.ResponseWriter, r *http.Request) {
	channelID, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.coord.RetestChannel(r.Context(), channelID); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"channel_id": channelID,
		"status":     "testing",
	})
}

func (s *Server) handleDiscoverLinks(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		s.writeErr(w, r, http.StatusBadRequest, errors.New("url query parameter is required"))
		return
	}
	links, err := s.coord.DiscoverLinks(r.Context(), pageURL)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			s.writeErr(w, r, http.StatusBadRequest, err)
			return
		}
		s.writeErr(w, r, http.StatusBadGateway, err)
		return
	}
	if links == nil {
		links = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":   pageURL,
		"count": len(links),
		"links": links,
	})
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// parseID extracts a path parameter by name and parses it as int64.
func parseID(r *http.Request, param string) (int64, error) {
	v := chi.URLParam(r, param)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %s", param, v)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceErr maps coordinator and store errors to HTTP statuses.
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeErr(w, r, http.StatusNotFound, err)
	case errors.Is(err, service.ErrInvalidURL):
		s.writeErr(w, r, http.StatusBadRequest, err)
	case errors.Is(err, service.ErrBusy):
		s.writeErr(w, r, http.StatusConflict, err)
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrStopped):
		s.writeErr(w, r, http.StatusServiceUnavailable, err)
	default:
		s.writeErr(w, r, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, status int, err error) {
	id := requestID(r.Context())
	if status >= 500 {
		s.logger.Error("request failed",
			zap.Int("status", status),
			zap.String("request_id", id),
			zap.Error(err),
		)
	}
	writeJSON(w, status, APIError{
		Status:    status,
		Error:     http.StatusText(status),
		Detail:    err.Error(),
		RequestID: id,
	})
}
