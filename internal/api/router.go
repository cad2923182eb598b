package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/quizwire/quizwire/internal/middleware"
	"github.com/quizwire/quizwire/internal/services"
)

// Router wires the HTTP surface to the domain services. The feed is the
// answer store's change stream, consumed by the SSE endpoint only.
type Router struct {
	auth     *services.AuthService
	sessions *services.SessionService
	answers  *services.AnswerService
	feed     services.AnswerFeed
}

func NewRouter(auth *services.AuthService, sessions *services.SessionService, answers *services.AnswerService, feed services.AnswerFeed) *Router {
	return &Router{auth: auth, sessions: sessions, answers: answers, feed: feed}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", rt.handleRegister)
	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
	mux.Handle("POST /api/sessions", middleware.RequireAuth(http.HandlerFunc(rt.handleCreateSession)))

	mux.Handle("POST /session/{sid}/question-collection/{qcid}/question/{qid}/answer",
		middleware.RequireAuth(http.HandlerFunc(rt.handleCreateAnswer)))
	mux.Handle("PATCH /session/{sid}/question-collection/{qcid}/question/{qid}/answer/{aid}",
		middleware.RequireAuth(http.HandlerFunc(rt.handleUpdateAnswer)))

	mux.HandleFunc("GET /session/{sessionId}/question/{questionId}/answers/events", rt.handleAnswerStream)
	mux.Handle("GET /session/{sessionId}", middleware.RequireAuth(http.HandlerFunc(rt.handleGetSession)))
	mux.HandleFunc("POST /session/{sessionCode}", rt.handleJoin)
	mux.Handle("POST /session/{id}/start", middleware.RequireAuth(http.HandlerFunc(rt.handleStartSession)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		http.Error(w, se.Message, statusForCode(se.Code))
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func statusForCode(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	default:
		// storage and transport failures are infrastructure errors
		return http.StatusInternalServerError
	}
}
