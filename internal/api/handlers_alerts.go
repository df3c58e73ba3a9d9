package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/solana-scanner/internal/service"
)

// whaleAlertRequest is one chat message forwarded by the alert bridge
type whaleAlertRequest struct {
	MessageID string     `json:"messageId"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// handleIngestWhaleAlert handles POST /api/alerts/whale
func (s *Server) handleIngestWhaleAlert(w http.ResponseWriter, r *http.Request) {
	var req whaleAlertRequest
	if err := parseJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "content is required", nil)
		return
	}

	msg := service.AlertMessage{Ref: req.MessageID, Text: req.Content}
	if req.Timestamp != nil {
		msg.PostedAt = *req.Timestamp
	}

	event, inserted, err := s.insights.IngestWhaleAlert(r.Context(), msg)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if event == nil {
		respondError(w, http.StatusUnprocessableEntity, ErrCodeNoEvent, "Message is not a whale buy alert", nil)
		return
	}

	status := http.StatusCreated
	if !inserted {
		status = http.StatusOK
	}
	respondJSON(w, status, event)
}

// handleListWhaleEvents handles GET /api/alerts/whale?limit=
func (s *Server) handleListWhaleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be an integer", nil)
			return
		}
		limit = parsed
	}

	events, err := s.insights.RecentWhaleEvents(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// handleGetWhaleEvent handles GET /api/alerts/whale/{id}
func (s *Server) handleGetWhaleEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.insights.WhaleEvent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, event)
}
