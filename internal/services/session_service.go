package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStore abstracts persistence for the session workflows. Lookup
// methods return (nil, nil) when no record matches.
type SessionStore interface {
	InsertSession(s *Session) error
	GetSession(id string) (*Session, error)
	GetSessionByCode(code string) (*Session, error)
	SetSessionActive(id string, active bool) error
	FirstQuestion(sessionID string) (*Question, error)
	UpdateQuestionText(id, title, description string) error
}

// TokenClaims carries the identity a verified bearer token asserts.
type TokenClaims struct {
	UserID      string
	Anonymous   bool
	SessionCode string
}

// AnonymousTokenSigner mints an anonymous identity token bound to a
// session. Implemented by middleware.SignAnonymousToken via a closure.
type AnonymousTokenSigner func(uid, sessionCode, sessionID string, ttl time.Duration) (string, error)

// SessionService hosts the join-by-code handshake plus the session
// lifecycle operations around it.
type SessionService struct {
	store     SessionStore
	signToken AnonymousTokenSigner
	tokenTTL  time.Duration
	now       func() time.Time
	idGen     func(n int) string
}

func NewSessionService(store SessionStore, signer AnonymousTokenSigner) *SessionService {
	return &SessionService{
		store:     store,
		signToken: signer,
		tokenTTL:  24 * time.Hour,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     shortID,
	}
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// SessionView is the filtered, public projection of a session.
type SessionView struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Active         bool   `json:"active"`
	AllowAnonymous bool   `json:"allow_anonymous"`
}

func viewOf(s *Session) *SessionView {
	return &SessionView{
		ID:             s.ID,
		Code:           s.Code,
		Name:           s.Name,
		Description:    s.Description,
		Active:         s.Active,
		AllowAnonymous: s.AllowAnonymous,
	}
}

// JoinResult is the outcome of a join-by-code handshake. Token is empty
// when the caller's existing identity was accepted as-is.
type JoinResult struct {
	Session *SessionView `json:"session"`
	Token   string       `json:"token,omitempty"`
}

// JoinByCode resolves a session by its join code and decides the identity
// policy. Without claims, an anonymous identity is minted only when the
// session allows it. With claims whose session code matches the target,
// the existing identity stands. A mismatched session code mints a brand
// new anonymous identity bound to the target session, discarding the
// caller's prior one (long-standing behavior, kept as-is).
func (s *SessionService) JoinByCode(code string, claims *TokenClaims) (*JoinResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, NewInvalidError("session code required")
	}
	sess, err := s.store.GetSessionByCode(code)
	if err != nil {
		return nil, NewStorageError("lookup session by code", err)
	}
	if sess == nil {
		return nil, NewNotFoundError("session not found")
	}
	if claims != nil && claims.SessionCode == sess.Code {
		return &JoinResult{Session: viewOf(sess)}, nil
	}
	if claims == nil && !sess.AllowAnonymous {
		return nil, NewForbiddenError("session does not allow anonymous access")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	uid := "anon-" + s.idGen(12)
	token, err := s.signToken(uid, sess.Code, sess.ID, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &JoinResult{Session: viewOf(sess), Token: token}, nil
}

// Get returns the filtered view of a session.
func (s *SessionService) Get(id string) (*SessionView, error) {
	if id == "" {
		return nil, NewInvalidError("session id required")
	}
	sess, err := s.store.GetSession(id)
	if err != nil {
		return nil, NewStorageError("lookup session", err)
	}
	if sess == nil {
		return nil, NewNotFoundError("session not found")
	}
	return viewOf(sess), nil
}

// StartOverrides carries the optional title/description used to seed the
// first question when a session starts.
type StartOverrides struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Start activates a session owned by ownerID and seeds the first question
// of its first collection with the supplied title and description. Both
// default to the session's own name and description when absent.
func (s *SessionService) Start(id, ownerID string, overrides StartOverrides) (*SessionView, error) {
	if id == "" || ownerID == "" {
		return nil, NewInvalidError("session/owner required")
	}
	sess, err := s.store.GetSession(id)
	if err != nil {
		return nil, NewStorageError("lookup session", err)
	}
	if sess == nil || sess.OwnerID != ownerID {
		return nil, NewNotFoundError("session not found")
	}
	if err := s.store.SetSessionActive(id, true); err != nil {
		return nil, NewStorageError("activate session", err)
	}
	sess.Active = true
	title := strings.TrimSpace(overrides.Title)
	if title == "" {
		title = sess.Name
	}
	description := strings.TrimSpace(overrides.Description)
	if description == "" {
		description = sess.Description
	}
	first, err := s.store.FirstQuestion(id)
	if err != nil {
		return nil, NewStorageError("lookup first question", err)
	}
	if first != nil {
		if err := s.store.UpdateQuestionText(first.ID, title, description); err != nil {
			return nil, NewStorageError("seed first question", err)
		}
	}
	return viewOf(sess), nil
}

// QuestionInput seeds one question when creating a session.
type QuestionInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Create builds a session with a fresh unique join code and one question
// collection per input group.
func (s *SessionService) Create(ownerID, name, description string, allowAnonymous bool, collections [][]QuestionInput) (*Session, error) {
	if ownerID == "" {
		return nil, NewForbiddenError("unauthorized")
	}
	if strings.TrimSpace(name) == "" {
		return nil, NewInvalidError("name required")
	}
	sess := &Session{
		ID:             s.idGen(8),
		Code:           strings.ToUpper(s.idGen(6)),
		Name:           strings.TrimSpace(name),
		Description:    strings.TrimSpace(description),
		AllowAnonymous: allowAnonymous,
		OwnerID:        ownerID,
		CreatedAt:      s.now(),
	}
	for ci, group := range collections {
		col := &QuestionCollection{ID: s.idGen(8), SessionID: sess.ID, Order: ci}
		for qi, in := range group {
			if strings.TrimSpace(in.Title) == "" {
				return nil, NewInvalidError("question title required")
			}
			col.Questions = append(col.Questions, &Question{
				ID:           s.idGen(8),
				CollectionID: col.ID,
				Order:        qi,
				Title:        strings.TrimSpace(in.Title),
				Description:  strings.TrimSpace(in.Description),
			})
		}
		sess.Collections = append(sess.Collections, col)
	}
	if err := s.store.InsertSession(sess); err != nil {
		return nil, NewStorageError("insert session", err)
	}
	return sess, nil
}
