package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/boutique-admin/api/internal/services"
)

const meterName = "github.com/boutique-admin/api/internal/platform/jobs"

// envelope wraps an order event with a delivery id so consumers can dedupe.
type envelope struct {
	EventID string              `json:"eventId"`
	Event   services.OrderEvent `json:"event"`
}

// PubSubOrderPublisher publishes order lifecycle events to a Pub/Sub topic.
type PubSubOrderPublisher struct {
	topic     *pubsub.Topic
	marshal   func(any) ([]byte, error)
	newID     func() string
	published metric.Int64Counter
	failed    metric.Int64Counter
}

var _ services.OrderEventPublisher = (*PubSubOrderPublisher)(nil)

// PublisherOption customises the publisher.
type PublisherOption func(*PubSubOrderPublisher)

// WithMeter overrides the meter used for publish counters.
func WithMeter(m metric.Meter) PublisherOption {
	return func(p *PubSubOrderPublisher) {
		if m != nil {
			p.registerMetrics(m)
		}
	}
}

// NewPubSubOrderPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderPublisher(topic *pubsub.Topic, opts ...PublisherOption) (*PubSubOrderPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	p := &PubSubOrderPublisher{
		topic:   topic,
		marshal: json.Marshal,
		newID:   uuid.NewString,
	}
	p.registerMetrics(otel.GetMeterProvider().Meter(meterName))
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *PubSubOrderPublisher) registerMetrics(m metric.Meter) {
	if c, err := m.Int64Counter("orders.events.published", metric.WithDescription("Order events accepted by Pub/Sub")); err == nil {
		p.published = c
	}
	if c, err := m.Int64Counter("orders.events.failed", metric.WithDescription("Order events that could not be published")); err == nil {
		p.failed = c
	}
}

// PublishOrderEvent sends the event and waits for the server acknowledgement.
func (p *PubSubOrderPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order publisher: not initialised")
	}

	eventID := p.newID()
	data, err := p.marshal(envelope{EventID: eventID, Event: event})
	if err != nil {
		p.count(ctx, p.failed, event.Type)
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := map[string]string{"eventId": eventID}
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "status", event.Status)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: p.orderingKey(event),
	})
	if _, err := result.Get(ctx); err != nil {
		p.count(ctx, p.failed, event.Type)
		return fmt.Errorf("publish order event: %w", err)
	}
	p.count(ctx, p.published, event.Type)
	return nil
}

func (p *PubSubOrderPublisher) orderingKey(event services.OrderEvent) string {
	if !p.topic.EnableMessageOrdering {
		return ""
	}
	return event.OrderID
}

func (p *PubSubOrderPublisher) count(ctx context.Context, c metric.Int64Counter, eventType string) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// NoopOrderPublisher drops events. It is used when no Pub/Sub project is configured.
type NoopOrderPublisher struct{}

// PublishOrderEvent implements services.OrderEventPublisher.
func (NoopOrderPublisher) PublishOrderEvent(context.Context, services.OrderEvent) error {
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
