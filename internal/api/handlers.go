package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/karimelassali/baraka-dispatch/internal/audience"
	"github.com/karimelassali/baraka-dispatch/internal/history"
	"github.com/karimelassali/baraka-dispatch/internal/models"
	"github.com/karimelassali/baraka-dispatch/internal/progress"
	"github.com/karimelassali/baraka-dispatch/internal/sequencer"
)

// CreateCampaignRequest is the request body for POST /campaigns.
type CreateCampaignRequest struct {
	MessageBody string            `json:"message_body"`
	ImageURL    string            `json:"image_url,omitempty"`
	Target      models.TargetSpec `json:"target"`
}

// CreateCampaignResponse is returned once the snapshot is persisted, before
// delivery completes.
type CreateCampaignResponse struct {
	ID         string `json:"id"`
	Recipients int    `json:"recipients"`
	Status     string `json:"status"`
}

// PreviewRequest is the request body for POST /audience/preview.
type PreviewRequest struct {
	Target models.TargetSpec `json:"target"`
}

// PreviewResponse carries the cheap audience count for operator confirmation.
type PreviewResponse struct {
	Count int `json:"count"`
}

// ListResponse is one page of campaign history with page-level stats.
type ListResponse struct {
	Records []models.CampaignSummary `json:"records"`
	HasMore bool                     `json:"has_more"`
	Stats   history.Stats            `json:"stats"`
}

// ErrorResponse is the error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePreview handles POST /api/v1/audience/preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body", "INVALID_JSON")
		return
	}

	count, err := s.resolver.Preview(r.Context(), req.Target)
	if err != nil {
		if errors.Is(err, audience.ErrInvalidTargetSpec) {
			s.sendError(w, http.StatusBadRequest, err.Error(), "INVALID_TARGET_SPEC")
			return
		}
		s.logger.Error("audience preview failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "preview failed", "INTERNAL_ERROR")
		return
	}

	s.sendJSON(w, http.StatusOK, PreviewResponse{Count: count})
}

// handleCreateCampaign handles POST /api/v1/campaigns: resolve the audience,
// persist the snapshot, start delivery, return immediately.
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body", "INVALID_JSON")
		return
	}
	if req.MessageBody == "" {
		s.sendError(w, http.StatusBadRequest, "message_body is required", "MISSING_MESSAGE")
		return
	}

	recipients, err := s.resolver.Resolve(r.Context(), req.Target)
	if err != nil {
		switch {
		case errors.Is(err, audience.ErrInvalidTargetSpec):
			s.sendError(w, http.StatusBadRequest, err.Error(), "INVALID_TARGET_SPEC")
		case errors.Is(err, audience.ErrEmptyAudience):
			s.sendError(w, http.StatusUnprocessableEntity, err.Error(), "EMPTY_AUDIENCE")
		default:
			s.logger.Error("audience resolve failed", "error", err)
			s.sendError(w, http.StatusInternalServerError, "failed to resolve audience", "INTERNAL_ERROR")
		}
		return
	}

	c := &models.Campaign{
		MessageBody: req.MessageBody,
		ImageURL:    req.ImageURL,
		Target:      req.Target,
		Recipients:  recipients,
	}
	if err := s.store.Create(r.Context(), c); err != nil {
		s.logger.Error("failed to persist campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to persist campaign", "INTERNAL_ERROR")
		return
	}

	if err := s.sequencer.Start(c.ID); err != nil {
		// The campaign exists and is resumable; surface the start failure.
		s.logger.Error("failed to start delivery", "campaign_id", c.ID, "error", err)
	}

	s.logger.Info("campaign created", "campaign_id", c.ID, "recipients", len(recipients), "mode", req.Target.Mode)
	s.sendJSON(w, http.StatusAccepted, CreateCampaignResponse{
		ID:         c.ID,
		Recipients: len(recipients),
		Status:     c.Status,
	})
}

// handleResume handles POST /api/v1/campaigns/{id}/resume.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.sequencer.Start(id)
	switch {
	case err == nil:
		s.sendJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": models.CampaignStatusRunning})
	case errors.Is(err, sequencer.ErrNotFound):
		s.sendError(w, http.StatusNotFound, "campaign not found", "NOT_FOUND")
	case errors.Is(err, sequencer.ErrAlreadyRunning):
		s.sendError(w, http.StatusConflict, "campaign is already being delivered", "ALREADY_RUNNING")
	case errors.Is(err, sequencer.ErrCompleted):
		s.sendError(w, http.StatusConflict, "campaign is already completed", "ALREADY_COMPLETED")
	default:
		s.logger.Error("failed to resume campaign", "campaign_id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to resume campaign", "INTERNAL_ERROR")
	}
}

// handleCancel handles POST /api/v1/campaigns/{id}/cancel.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.sequencer.Cancel(id) {
		s.sendError(w, http.StatusConflict, "campaign has no active delivery", "NOT_RUNNING")
		return
	}
	s.sendJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

// handleProgress handles GET /api/v1/campaigns/{id}/progress.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.progress.Snapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "campaign not found", "NOT_FOUND")
			return
		}
		s.logger.Error("failed to read progress", "campaign_id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to read progress", "INTERNAL_ERROR")
		return
	}

	s.sendJSON(w, http.StatusOK, snap)
}

// handleGetCampaign handles GET /api/v1/campaigns/{id}.
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.store.Load(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load campaign", "campaign_id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to load campaign", "INTERNAL_ERROR")
		return
	}
	if c == nil {
		s.sendError(w, http.StatusNotFound, "campaign not found", "NOT_FOUND")
		return
	}

	s.sendJSON(w, http.StatusOK, c)
}

// handleListCampaigns handles GET /api/v1/campaigns.
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	filter := models.CampaignListFilter{
		Status: r.URL.Query().Get("status"),
	}

	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 0 {
			s.sendError(w, http.StatusBadRequest, "page must be a non-negative integer", "INVALID_PAGE")
			return
		}
		filter.Page = page
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "from must be RFC 3339", "INVALID_DATE")
			return
		}
		filter.From = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "to must be RFC 3339", "INVALID_DATE")
			return
		}
		filter.To = &t
	}

	page, err := s.history.Query(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list campaigns", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list campaigns", "INTERNAL_ERROR")
		return
	}

	s.sendJSON(w, http.StatusOK, ListResponse{
		Records: page.Records,
		HasMore: page.HasMore,
		Stats:   history.PageStats(page.Records),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message, code string) {
	s.sendJSON(w, status, ErrorResponse{Error: message, Code: code})
}
