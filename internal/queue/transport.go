package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// State is the transport's readiness. Connecting until Dial finishes;
// Ready or Failed afterwards.
type State int

const (
	StateConnecting State = iota
	StateReady
	StateFailed
)

// ErrNotReady is returned for publishes that arrive before the broker
// connection finished. Early publishes are rejected, not queued; the
// caller surfaces the failure and the client retries.
var ErrNotReady = errors.New("queue transport not ready")

const publishTimeout = 5 * time.Second

// channel is the slice of amqp.Channel the transport uses. Narrowed to an
// interface so tests can substitute the broker.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Transport owns the single long-lived connection and channel to the
// broker. It is created once at process start and shared by every request
// handler; handlers never close or replace it. The channel is guarded by
// a mutex so concurrent in-flight publishes serialize.
type Transport struct {
	mu    sync.Mutex
	state State
	conn  *amqp.Connection
	ch    channel
	err   error
}

// New returns a transport in the Connecting state. Call Dial to bring it
// up; until then every publish fails with ErrNotReady.
func New() *Transport {
	return &Transport{state: StateConnecting}
}

// Dial establishes the connection and channel. An error here is terminal
// for the transport: the caller is expected to treat it as fatal to the
// process rather than run without fanout.
func (t *Transport) Dial(url string) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		t.fail(fmt.Errorf("dial broker: %w", err))
		return t.err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		t.fail(fmt.Errorf("open channel: %w", err))
		return t.err
	}
	t.mu.Lock()
	t.conn = conn
	t.ch = ch
	t.state = StateReady
	t.mu.Unlock()
	return nil
}

func (t *Transport) fail(err error) {
	t.mu.Lock()
	t.state = StateFailed
	t.err = err
	t.mu.Unlock()
}

// State reports the current readiness.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// EnsureQueue declares the named queue. The declare is idempotent, so it
// is safe to repeat before every publish; this covers a broker restart
// that dropped the queue after startup.
func (t *Transport) EnsureQueue(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, err := t.channelLocked()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(name, false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", name, err)
	}
	return nil
}

// Send publishes one message body to the named queue via the default
// exchange. Failures are per-call, not fatal.
func (t *Transport) Send(name string, body []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, err := t.channelLocked()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, "", name, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish to %q: %w", name, err)
	}
	return nil
}

func (t *Transport) channelLocked() (channel, error) {
	switch t.state {
	case StateReady:
		return t.ch, nil
	case StateFailed:
		return nil, t.err
	default:
		return nil, ErrNotReady
	}
}

// Close tears the channel and connection down. Used on shutdown only.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateReady {
		return nil
	}
	t.state = StateFailed
	t.err = errors.New("queue transport closed")
	if err := t.ch.Close(); err != nil {
		return err
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
