package queue

import (
	"encoding/json"
	"fmt"

	"github.com/quizwire/quizwire/internal/services"
)

// Publisher emits answer fanout events to one named queue. It re-declares
// the queue before each publish so a broker restart between service
// startup and the publish does not lose the destination.
type Publisher struct {
	transport *Transport
	queue     string
}

func NewPublisher(transport *Transport, queue string) *Publisher {
	return &Publisher{transport: transport, queue: queue}
}

// Publish sends the event to the queue. The call is synchronous with the
// request and never retried here.
func (p *Publisher) Publish(ev services.FanoutEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode fanout event: %w", err)
	}
	if err := p.transport.EnsureQueue(p.queue); err != nil {
		return err
	}
	return p.transport.Send(p.queue, body)
}
