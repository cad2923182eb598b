package services

import "time"

// Session is a joinable unit identified by a short, shareable code.
type Session struct {
	ID             string                `json:"id"`
	Code           string                `json:"code"`
	Name           string                `json:"name"`
	Description    string                `json:"description,omitempty"`
	Active         bool                  `json:"active"`
	AllowAnonymous bool                  `json:"allow_anonymous"`
	OwnerID        string                `json:"owner_id,omitempty"`
	Collections    []*QuestionCollection `json:"collections,omitempty"`
	CreatedAt      time.Time             `json:"created_at,omitempty"`
}

// QuestionCollection groups ordered questions within a session.
type QuestionCollection struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Order     int         `json:"order"`
	Questions []*Question `json:"questions,omitempty"`
}

// Question is a single prompt participants answer.
type Question struct {
	ID           string `json:"id"`
	CollectionID string `json:"collection_id"`
	Order        int    `json:"order"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
}

// Content is the typed value of an answer: value is a string, number or
// boolean, discriminated by Type.
type Content struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Answer is a participant's response to a question. OwnerID is fixed at
// creation; updates replace Content only.
type Answer struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	SessionID  string    `json:"session_id"`
	QuestionID string    `json:"question_id"`
	Content    Content   `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FanoutEvent is the transient payload published to the answer queue.
type FanoutEvent struct {
	Content   Content `json:"content"`
	AnswerID  string  `json:"aid,omitempty"`
	SessionID string  `json:"sessionId"`
}

// User is a session owner account.
type User struct {
	ID        string
	Email     string
	PassHash  []byte
	CreatedAt time.Time
}

// Change-feed ops, matching the tags the store emits.
const (
	FeedInsert = "insert"
	FeedUpdate = "update"
)

// AnswerEvent is one change-feed notification carrying the full record.
type AnswerEvent struct {
	Op     string
	Answer *Answer
}

// AnswerSubscription is one open, filtered view on the answer change feed.
// Close is idempotent; the Events channel is closed once the subscription
// is released.
type AnswerSubscription interface {
	Events() <-chan AnswerEvent
	Close()
}

// AnswerFeed hands out per-subscriber change-feed subscriptions filtered
// by question.
type AnswerFeed interface {
	WatchAnswers(questionID string) AnswerSubscription
}
