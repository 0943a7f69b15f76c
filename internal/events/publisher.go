package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/example/room-booking/internal/application"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "booking"

// Recorder receives publish outcomes and breaker transitions.
// *metrics.Collectors satisfies it.
type Recorder interface {
	ObservePublish(eventType string, err error)
	SetBreakerState(name string, state float64)
}

// BreakerSettings tune the publish circuit breaker.
type BreakerSettings struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// Options configure a Publisher.
type Options struct {
	TopicPrefix string
	Breaker     BreakerSettings
	Recorder    Recorder
	Logger      *slog.Logger
}

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("events: publisher is closed")

// Publisher implements application.EventSink on top of a watermill publisher.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[interface{}]
	prefix    string
	recorder  Recorder
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps pub. The publisher takes ownership of pub and closes it
// on Close.
func NewPublisher(pub message.Publisher, opts Options) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.Trim(opts.TopicPrefix, ".")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	threshold := opts.Breaker.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := opts.Breaker.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	p := &Publisher{
		publisher: pub,
		prefix:    prefix,
		recorder:  opts.Recorder,
		logger:    logger.With("component", "events"),
	}
	p.breaker = gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "events",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("event publisher circuit breaker changed state",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			if p.recorder != nil {
				p.recorder.SetBreakerState(name, float64(to))
			}
		},
	})
	return p
}

// Topic returns the topic an event type is published on.
func (p *Publisher) Topic(eventType application.EventType) string {
	return p.prefix + "." + string(eventType)
}

// Publish implements application.EventSink.
func (p *Publisher) Publish(ctx context.Context, event application.ChangeEvent) (err error) {
	if p == nil {
		return nil
	}
	defer func() {
		if p.recorder != nil {
			p.recorder.ObservePublish(string(event.Type), err)
		}
	}()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	data, err := json.Marshal(newPayload(event))
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("subject_id", event.SubjectID)
	msg.SetContext(ctx)

	topic := p.Topic(event.Type)
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close shuts down the underlying publisher. Later publishes fail with ErrClosed.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
