package store

import (
	"sync"

	"github.com/quizwire/quizwire/internal/services"
)

// subscriber channel buffer. A viewer that stalls past this many pending
// events starts dropping; the stream is at-least-once, not lossless.
const subscriptionBuffer = 16

// feed dispatches answer change events to open subscriptions. One feed per
// store; one subscription per streaming client.
type feed struct {
	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
}

func newFeed() *feed {
	return &feed{subs: map[uint64]*subscription{}}
}

type subscription struct {
	feed       *feed
	id         uint64
	questionID string
	ch         chan services.AnswerEvent
	once       sync.Once
}

func (s *subscription) Events() <-chan services.AnswerEvent { return s.ch }

// Close releases the subscription and closes its channel. Safe to call
// more than once and concurrently with emit.
func (s *subscription) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s.id)
		close(s.ch)
		s.feed.mu.Unlock()
	})
}

func (f *feed) subscribe(questionID string) *subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := &subscription{
		feed:       f,
		id:         f.nextID,
		questionID: questionID,
		ch:         make(chan services.AnswerEvent, subscriptionBuffer),
	}
	f.subs[sub.id] = sub
	return sub
}

// emit fans one event out to every matching subscription. Sends never
// block a writer: a full subscriber buffer drops the event for that
// subscriber only.
func (f *feed) emit(op string, a *services.Answer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.questionID != a.QuestionID {
			continue
		}
		cp := *a
		select {
		case sub.ch <- services.AnswerEvent{Op: op, Answer: &cp}:
		default:
		}
	}
}

func (f *feed) open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
