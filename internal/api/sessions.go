package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/quizwire/quizwire/internal/middleware"
	"github.com/quizwire/quizwire/internal/services"
)

// GET /session/{sessionId}
func (rt *Router) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := rt.sessions.Get(r.PathValue("sessionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /session/{sessionCode}
//
// Public join-by-code. A valid bearer token, when present, is carried in
// as claims; the service decides whether a fresh anonymous identity is
// minted.
func (rt *Router) handleJoin(w http.ResponseWriter, r *http.Request) {
	var claims *services.TokenClaims
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		claims = &services.TokenClaims{
			UserID:      c.UID,
			Anonymous:   c.Anonymous,
			SessionCode: c.SessionCode,
		}
	}
	result, err := rt.sessions.JoinByCode(r.PathValue("sessionCode"), claims)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /session/{id}/start
func (rt *Router) handleStartSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var overrides services.StartOverrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := rt.sessions.Start(r.PathValue("id"), claims.UID, overrides)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type createSessionRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	AllowAnonymous bool   `json:"allow_anonymous"`
	Collections    []struct {
		Questions []services.QuestionInput `json:"questions"`
	} `json:"collections"`
}

// POST /api/sessions
func (rt *Router) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	groups := make([][]services.QuestionInput, 0, len(req.Collections))
	for _, col := range req.Collections {
		groups = append(groups, col.Questions)
	}
	sess, err := rt.sessions.Create(claims.UID, req.Name, req.Description, req.AllowAnonymous, groups)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}
