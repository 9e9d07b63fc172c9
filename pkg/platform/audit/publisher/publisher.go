// Package publisher decouples audit emission from sink latency. Services emit
// synchronously by default; an async buffer keeps hot paths off the sink when
// one is configured.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	audit "patrol/pkg/platform/audit"
)

// Publisher forwards events to a sink, optionally through a buffered channel.
type Publisher struct {
	sink   audit.Sink
	logger *slog.Logger

	inbox  chan audit.Event
	done   chan struct{}
	closed sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode with the given
// channel capacity. Events are dropped (and logged) when the buffer is full;
// audit loss is preferred over blocking visit recording.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithLogger sets the logger used for drop and sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New creates a Publisher over the given sink.
func New(sink audit.Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default(), done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit delivers an event to the sink. In async mode delivery is best-effort.
func (p *Publisher) Emit(_ context.Context, event audit.Event) error {
	if p.inbox == nil {
		if err := p.sink.Append(event); err != nil {
			p.logger.Warn("audit append failed", "action", event.Action, "error", err)
			return err
		}
		return nil
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
	}
	return nil
}

func (p *Publisher) drain() {
	for event := range p.inbox {
		if err := p.sink.Append(event); err != nil {
			p.logger.Warn("audit append failed", "action", event.Action, "error", err)
		}
	}
	close(p.done)
}

// Close drains buffered events and closes the sink.
func (p *Publisher) Close() error {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
	return p.sink.Close()
}
