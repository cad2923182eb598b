package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnswerStore abstracts the persistence operations AnswerService needs.
// UpdateAnswerContent returns (nil, nil) when no row matches {owner, id}.
type AnswerStore interface {
	InsertAnswer(a *Answer) (*Answer, error)
	UpdateAnswerContent(ownerID, answerID string, c Content) (*Answer, error)
}

// FanoutPublisher delivers a FanoutEvent to the answer queue. Implemented
// by queue.Publisher.
type FanoutPublisher interface {
	Publish(ev FanoutEvent) error
}

// AnswerService runs the answer submission workflow: persist first, then
// publish to the fanout queue. The publish is synchronous with the request
// and never retried; a publish failure surfaces as an error even though
// the answer is already persisted.
type AnswerService struct {
	store     AnswerStore
	publisher FanoutPublisher
	now       func() time.Time
	idGen     func() string
}

func NewAnswerService(store AnswerStore, publisher FanoutPublisher) *AnswerService {
	return &AnswerService{
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     defaultAnswerID,
	}
}

func defaultAnswerID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func validContent(c Content) bool {
	if strings.TrimSpace(c.Type) == "" {
		return false
	}
	switch c.Value.(type) {
	case string, bool, float64, int, int64:
		return true
	default:
		return false
	}
}

// Create persists a new answer and publishes its fanout event. The record
// stays persisted when the publish fails; callers surface the error to the
// client without rolling back.
func (s *AnswerService) Create(ownerID, sessionID, questionID string, c Content) (*Answer, error) {
	if ownerID == "" || sessionID == "" || questionID == "" {
		return nil, NewInvalidError("owner/session/question required")
	}
	if !validContent(c) {
		return nil, NewInvalidError("content must carry a type and a string, number or boolean value")
	}
	now := s.now()
	a := &Answer{
		ID:         s.idGen(),
		OwnerID:    ownerID,
		SessionID:  sessionID,
		QuestionID: questionID,
		Content:    c,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	stored, err := s.store.InsertAnswer(a)
	if err != nil {
		return nil, NewStorageError("insert answer", err)
	}
	if stored != nil {
		a = stored
	}
	ev := FanoutEvent{Content: a.Content, AnswerID: a.ID, SessionID: a.SessionID}
	if err := s.publisher.Publish(ev); err != nil {
		return nil, NewTransportError("publish answer event", err)
	}
	return a, nil
}

// Update replaces the content of an existing answer, scoped to its owner.
func (s *AnswerService) Update(ownerID, answerID string, c Content) (*Answer, error) {
	if ownerID == "" || answerID == "" {
		return nil, NewInvalidError("owner/answer required")
	}
	if !validContent(c) {
		return nil, NewInvalidError("content must carry a type and a string, number or boolean value")
	}
	a, err := s.store.UpdateAnswerContent(ownerID, answerID, c)
	if err != nil {
		return nil, NewStorageError("update answer", err)
	}
	if a == nil {
		return nil, NewNotFoundError("answer not found")
	}
	ev := FanoutEvent{Content: a.Content, AnswerID: a.ID, SessionID: a.SessionID}
	if err := s.publisher.Publish(ev); err != nil {
		return nil, NewTransportError("publish answer event", err)
	}
	return a, nil
}
