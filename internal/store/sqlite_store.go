package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/quizwire/quizwire/internal/services"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	pass_hash  BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	code            TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	description     TEXT,
	active          INTEGER NOT NULL DEFAULT 0,
	allow_anonymous INTEGER NOT NULL DEFAULT 0,
	owner_id        TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS question_collections (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	ord        INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS questions (
	id            TEXT PRIMARY KEY,
	collection_id TEXT NOT NULL REFERENCES question_collections(id),
	ord           INTEGER NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT
);
CREATE TABLE IF NOT EXISTS answers (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	question_id TEXT NOT NULL,
	content     TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id);
CREATE INDEX IF NOT EXISTS idx_questions_collection ON questions(collection_id);
`

// SQLiteStore is the durable record of sessions, questions and answers,
// and the source of the answer change feed: every successful answer write
// is observable on the feed as an insert or update event.
type SQLiteStore struct {
	db   *sql.DB
	feed *feed
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db, feed: newFeed()}, nil
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func int64ToBool(v int64) bool { return v != 0 }

func encodeContent(c services.Content) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeContent(raw string) (services.Content, error) {
	var c services.Content
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return services.Content{}, err
	}
	return c, nil
}

// WatchAnswers opens a change-feed subscription filtered to one question.
// The caller owns the subscription and must Close it exactly when done;
// Close is idempotent.
func (s *SQLiteStore) WatchAnswers(questionID string) services.AnswerSubscription {
	return s.feed.subscribe(questionID)
}

// OpenSubscriptions reports the number of live feed subscriptions.
func (s *SQLiteStore) OpenSubscriptions() int { return s.feed.open() }

// InsertAnswer persists a new answer and emits an insert feed event.
func (s *SQLiteStore) InsertAnswer(a *services.Answer) (*services.Answer, error) {
	content, err := encodeContent(a.Content)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO answers (id, owner_id, session_id, question_id, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.SessionID, a.QuestionID, content, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert answer: %w", err)
	}
	cp := *a
	s.feed.emit(services.FeedInsert, &cp)
	return &cp, nil
}

// UpdateAnswerContent replaces the content of the answer matching
// {owner, id} and emits an update feed event. Returns (nil, nil) when no
// row matches.
func (s *SQLiteStore) UpdateAnswerContent(ownerID, answerID string, c services.Content) (*services.Answer, error) {
	content, err := encodeContent(c)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	res, err := s.db.Exec(
		`UPDATE answers SET content = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND owner_id = ?`,
		content, answerID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update answer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update answer: rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	a, err := s.GetAnswer(answerID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	cp := *a
	s.feed.emit(services.FeedUpdate, &cp)
	return a, nil
}

// GetAnswer returns the answer by id, or (nil, nil) when absent.
func (s *SQLiteStore) GetAnswer(id string) (*services.Answer, error) {
	row := s.db.QueryRow(
		`SELECT id, owner_id, session_id, question_id, content, created_at, updated_at
		 FROM answers WHERE id = ?`, id)
	var a services.Answer
	var content string
	err := row.Scan(&a.ID, &a.OwnerID, &a.SessionID, &a.QuestionID, &content, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan answer: %w", err)
	}
	if a.Content, err = decodeContent(content); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return &a, nil
}

// InsertSession persists a session together with its collections and
// questions in one transaction.
func (s *SQLiteStore) InsertSession(sess *services.Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, code, name, description, active, allow_anonymous, owner_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Code, sess.Name, toNullString(sess.Description),
		boolToInt64(sess.Active), boolToInt64(sess.AllowAnonymous), sess.OwnerID, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	for _, col := range sess.Collections {
		if _, err := tx.Exec(
			`INSERT INTO question_collections (id, session_id, ord) VALUES (?, ?, ?)`,
			col.ID, sess.ID, col.Order,
		); err != nil {
			return fmt.Errorf("insert collection: %w", err)
		}
		for _, q := range col.Questions {
			if _, err := tx.Exec(
				`INSERT INTO questions (id, collection_id, ord, title, description) VALUES (?, ?, ?, ?, ?)`,
				q.ID, col.ID, q.Order, q.Title, toNullString(q.Description),
			); err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) scanSession(row *sql.Row) (*services.Session, error) {
	var sess services.Session
	var description sql.NullString
	var active, allowAnon int64
	err := row.Scan(&sess.ID, &sess.Code, &sess.Name, &description, &active, &allowAnon, &sess.OwnerID, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.Description = description.String
	sess.Active = int64ToBool(active)
	sess.AllowAnonymous = int64ToBool(allowAnon)
	return &sess, nil
}

const sessionColumns = `id, code, name, description, active, allow_anonymous, owner_id, created_at`

// GetSession returns the session by id, or (nil, nil) when absent.
func (s *SQLiteStore) GetSession(id string) (*services.Session, error) {
	return s.scanSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
}

// GetSessionByCode returns the session by join code, or (nil, nil) when
// absent.
func (s *SQLiteStore) GetSessionByCode(code string) (*services.Session, error) {
	return s.scanSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE code = ?`, code))
}

// SetSessionActive flips the active flag.
func (s *SQLiteStore) SetSessionActive(id string, active bool) error {
	if _, err := s.db.Exec(`UPDATE sessions SET active = ? WHERE id = ?`, boolToInt64(active), id); err != nil {
		return fmt.Errorf("set session active: %w", err)
	}
	return nil
}

// FirstQuestion returns the first question of the session's first
// collection in collection/question order, or (nil, nil) when the session
// has no questions.
func (s *SQLiteStore) FirstQuestion(sessionID string) (*services.Question, error) {
	row := s.db.QueryRow(
		`SELECT q.id, q.collection_id, q.ord, q.title, q.description
		 FROM questions q
		 JOIN question_collections c ON c.id = q.collection_id
		 WHERE c.session_id = ?
		 ORDER BY c.ord, q.ord
		 LIMIT 1`, sessionID)
	var q services.Question
	var description sql.NullString
	err := row.Scan(&q.ID, &q.CollectionID, &q.Order, &q.Title, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan question: %w", err)
	}
	q.Description = description.String
	return &q, nil
}

// UpdateQuestionText replaces a question's title and description.
func (s *SQLiteStore) UpdateQuestionText(id, title, description string) error {
	if _, err := s.db.Exec(
		`UPDATE questions SET title = ?, description = ? WHERE id = ?`,
		title, toNullString(description), id,
	); err != nil {
		return fmt.Errorf("update question text: %w", err)
	}
	return nil
}

// AddUser persists an owner account.
func (s *SQLiteStore) AddUser(u *services.User) error {
	if _, err := s.db.Exec(
		`INSERT INTO users (id, email, pass_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PassHash, u.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUserByEmail returns the user by email, or (nil, nil) when absent.
func (s *SQLiteStore) FindUserByEmail(email string) (*services.User, error) {
	row := s.db.QueryRow(`SELECT id, email, pass_hash, created_at FROM users WHERE email = ?`, email)
	var u services.User
	err := row.Scan(&u.ID, &u.Email, &u.PassHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
