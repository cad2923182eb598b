package api

import (
	"encoding/json"
	"net/http"

	"github.com/quizwire/quizwire/internal/middleware"
	"github.com/quizwire/quizwire/internal/services"
)

type answerPayload struct {
	Content services.Content `json:"content"`
}

// POST /session/{sid}/question-collection/{qcid}/question/{qid}/answer
// The answer is persisted first, then its fanout event is published; a
// publish failure reports 500 even though the record was saved.
func (rt *Router) handleCreateAnswer(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var payload answerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a, err := rt.answers.Create(claims.UID, r.PathValue("sid"), r.PathValue("qid"), payload.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// PATCH /session/{sid}/question-collection/{qcid}/question/{qid}/answer/{aid}
func (rt *Router) handleUpdateAnswer(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var payload answerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := rt.answers.Update(claims.UID, r.PathValue("aid"), payload.Content); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "answer updated"})
}
