package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/reactions/internal/breaker"
	"github.com/lazypower/reactions/internal/engine"
)

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	var req struct {
		Emoji    string `json:"emoji"`
		UserID   string `json:"user_id"`
		UserName string `json:"user_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	accepted, err := s.engine.ToggleReaction(r.Context(), messageID, req.Emoji, req.UserID, req.UserName)

	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
			"field": verr.Field,
		})
		return
	}

	// Persistence failures leave the in-memory change committed, so the
	// response still carries the accepted flag and the current reactions.
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, breaker.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	default:
		var perr *breaker.PersistenceError
		if errors.As(err, &perr) {
			status = http.StatusBadGateway
		} else {
			status = http.StatusInternalServerError
		}
	}

	reactions, _ := s.engine.GetReactionsForMessage(messageID)
	body := map[string]any{
		"message_id": messageID,
		"accepted":   accepted,
		"persisted":  err == nil,
		"reactions":  reactions,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, status, body)
}

func (s *Server) handleGetReactions(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	reactions, ok := s.engine.GetReactionsForMessage(messageID)
	if !ok {
		writeError(w, http.StatusNotFound, "no reactions for message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message_id": messageID,
		"reactions":  reactions,
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	before := s.engine.GetMetrics()
	if err := s.engine.PerformManualCleanup(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	after := s.engine.GetMetrics()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"messages_before":  before.TotalMessages,
		"messages_after":   after.TotalMessages,
		"reactions_before": before.TotalReactions,
		"reactions_after":  after.TotalReactions,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": s.engine.GetMetrics(),
		"healthy": s.engine.IsHealthy(),
		"message": s.engine.StatusMessage(),
	})
}
