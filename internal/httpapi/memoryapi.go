package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if strings.TrimSpace(userID) == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "missing user id")
		return
	}

	profile, err := s.store.Profile(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if strings.TrimSpace(userID) == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "missing user id")
		return
	}

	convCtx, err := s.store.Context(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, convCtx)
}

type resolveQuestionRequest struct {
	Question string `json:"question"`
}

// handleResolveQuestion removes an answered question from the user's
// pending list.
func (s *Server) handleResolveQuestion(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if strings.TrimSpace(userID) == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "missing user id")
		return
	}

	var req resolveQuestionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "missing_question", "question is required")
		return
	}

	if err := s.store.RemovePendingQuestion(r.Context(), userID, req.Question); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	convCtx, err := s.store.Context(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, convCtx)
}
