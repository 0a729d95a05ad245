package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aimaster/apiserver/config"
	"github.com/aimaster/apiserver/types"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the broker selected by cfg.Events.Backend. It returns nil
// without error when events are disabled.
func Open(ctx context.Context, cfg config.Config) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Events.Backend)) {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		backend, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	case "pubsub":
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

const (
	attrEventType = "event_type"
	attrUserID    = "user_id"
	attrFlow      = "flow"

	publishEventType = "actuar.published"
)

// EventPublisher sends publish events to a fixed channel.
type EventPublisher struct {
	mq      *MQ
	channel string
}

func NewEventPublisher(m *MQ, channel string) *EventPublisher {
	return &EventPublisher{mq: m, channel: channel}
}

// Publish encodes ev as JSON and sends it.
func (p *EventPublisher) Publish(ctx context.Context, ev types.PublishEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode publish event: %w", err)
	}
	_, err = p.mq.Publish(ctx, p.channel, data, map[string]string{
		attrEventType: publishEventType,
		attrUserID:    strconv.Itoa(ev.UserID),
		attrFlow:      ev.Flow,
	})
	return err
}

// DecodePublishEvent parses a message produced by EventPublisher.
func DecodePublishEvent(msg Message) (types.PublishEvent, error) {
	if t := msg.Attributes[attrEventType]; t != "" && t != publishEventType {
		return types.PublishEvent{}, fmt.Errorf("unexpected event type %q", t)
	}
	var ev types.PublishEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return types.PublishEvent{}, fmt.Errorf("decode publish event: %w", err)
	}
	return ev, nil
}
