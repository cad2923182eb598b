package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quizwire/quizwire/internal/api"
	"github.com/quizwire/quizwire/internal/config"
	"github.com/quizwire/quizwire/internal/middleware"
	"github.com/quizwire/quizwire/internal/queue"
	"github.com/quizwire/quizwire/internal/services"
	"github.com/quizwire/quizwire/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	commit := os.Getenv("QUIZWIRE_COMMIT")
	buildTime := os.Getenv("QUIZWIRE_BUILD_TIME")

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		log.Fatalf("open sqlite db: %v", err)
	}
	st, err := store.NewSQLiteStore(db)
	if err != nil {
		log.Fatalf("init store: %v", err)
	}

	// The broker connection comes up concurrently with the listener, so
	// the first requests may race it; publishes before Ready fail with a
	// transient not-ready error. A failed dial is fatal: the service does
	// not run in a silent no-fanout mode.
	transport := queue.New()
	go func() {
		if err := transport.Dial(cfg.Broker.URL()); err != nil {
			log.Fatalf("connect broker: %v", err)
		}
		log.Printf("connected to broker at %s:%d queue=%s", cfg.Broker.Host, cfg.Broker.Port, cfg.Broker.Queue)
	}()
	publisher := queue.NewPublisher(transport, cfg.Broker.Queue)

	authSvc := services.NewAuthService(st, middleware.SignOwnerToken)
	sessionSvc := services.NewSessionService(st, middleware.SignAnonymousToken)
	answerSvc := services.NewAnswerService(st, publisher)

	mux := http.NewServeMux()
	api.NewRouter(authSvc, sessionSvc, answerSvc, st).Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"name":       "QuizWire API",
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	handler := middleware.NoStore(middleware.CORS(middleware.WithAuth(mux)))

	log.Printf("QuizWire server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
