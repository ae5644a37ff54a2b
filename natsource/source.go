// Package natsource adapts NATS to the realtime event source boundary.
//
// Topics map onto subjects under a configurable prefix: change events for
// topic "orders" arrive on "<prefix>.events.orders" as JSON, and control
// messages (heartbeats) are published to "<prefix>.ctrl.orders". Producers
// use PublishEvent to emit change events onto a topic.
//
// Durability is deliberately out of scope: the adapter uses core NATS
// publish/subscribe, so events published while a consumer is down are not
// replayed.
package natsource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/maoragency/Zomet-sub000/internal/logging"
	"github.com/maoragency/Zomet-sub000/types"
)

// DefaultSubjectPrefix is used when Config.SubjectPrefix is empty.
const DefaultSubjectPrefix = "realtime"

// Config configures a Source.
type Config struct {
	// SubjectPrefix roots the subject namespace for events and control
	// messages.
	SubjectPrefix string

	Logger types.Logger
}

func (cfg *Config) applyDefaults() {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
}

// wireEvent is the JSON envelope carried on event subjects.
type wireEvent struct {
	Kind      types.EventKind `json:"kind"`
	Table     string          `json:"table,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Source implements the event source boundary over a NATS connection.
//
// The connection is borrowed, not owned: closing the Source's channels
// never closes the underlying *nats.Conn.
type Source struct {
	nc     *nats.Conn
	cfg    Config
	logger types.Logger
}

var _ types.EventSource = (*Source)(nil)

// New creates a Source over an established NATS connection.
//
// Parameters:
//   - nc: Connected NATS client (required)
//   - cfg: Subject prefix and logging configuration
//
// Returns:
//   - *Source: Initialized source
//   - error: Non-nil if nc is nil
func New(nc *nats.Conn, cfg Config) (*Source, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS connection is required")
	}
	cfg.applyDefaults()

	return &Source{nc: nc, cfg: cfg, logger: cfg.Logger}, nil
}

// OpenChannel opens one duplex channel bound to a topic. Change events on
// the topic's event subject are fanned out to handlers registered via On.
func (s *Source) OpenChannel(_ context.Context, topic string) (types.Channel, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	ch := newChannel(s, topic)
	sub, err := s.nc.Subscribe(s.eventSubject(topic), ch.onMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to topic %q: %w", topic, err)
	}
	ch.sub = sub

	s.logger.Debug("opened channel", "topic", topic, "subject", s.eventSubject(topic))

	return ch, nil
}

// PublishEvent emits a change event onto a topic. Used by producers and
// by tests to drive subscriptions end to end.
//
// Parameters:
//   - topic: Target topic
//   - ev: Event to publish; Topic is overridden by the topic argument
//
// Returns:
//   - error: Marshalling or publish error
func (s *Source) PublishEvent(topic string, ev types.ChangeEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(wireEvent{
		Kind:      ev.Kind,
		Table:     ev.Table,
		Payload:   ev.Payload,
		Timestamp: ev.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return s.nc.Publish(s.eventSubject(topic), data)
}

func (s *Source) eventSubject(topic string) string {
	return s.cfg.SubjectPrefix + ".events." + topic
}

func (s *Source) controlSubject(topic string) string {
	return s.cfg.SubjectPrefix + ".ctrl." + topic
}
