package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/quizwire/quizwire/internal/services"
)

// GET /session/{sessionId}/question/{questionId}/answers/events
//
// One long-lived SSE connection per viewer. The handler opens a filtered
// change-feed subscription, confirms the connection, then relays every
// matching insert/update as a discrete `data:` frame in arrival order.
// Client disconnect tears the subscription down exactly once. When the
// feed channel closes underneath us the stream ends, so the client
// reconnects rather than hanging on a dead subscription.
func (rt *Router) handleAnswerStream(w http.ResponseWriter, r *http.Request) {
	questionID := r.PathValue("questionId")
	sessionID := r.PathValue("sessionId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	confirmation := map[string]string{
		"type":       "connected",
		"sessionId":  sessionID,
		"questionId": questionID,
	}
	if err := writeEvent(w, confirmation); err != nil {
		return
	}
	flusher.Flush()

	sub := rt.feed.WatchAnswers(questionID)
	defer sub.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, map[string]services.Content{"content": ev.Answer.Content}); err != nil {
				log.Printf("answer stream: write event: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
