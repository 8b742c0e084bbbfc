package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/boutique-admin/api/internal/services"
)

func newTestTopic(t *testing.T) (*pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	t.Cleanup(topic.Stop)
	return topic, srv
}

func TestPubSubOrderPublisherPublishesEnvelope(t *testing.T) {
	topic, srv := newTestTopic(t)

	publisher, err := NewPubSubOrderPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderPublisher: %v", err)
	}
	publisher.newID = func() string { return "evt-1" }

	event := services.OrderEvent{
		Type:        services.OrderEventCreated,
		OrderID:     "ord_1",
		OrderNumber: "ORD-20260101-ABC123",
		Status:      "PENDING",
		Total:       "120.00",
		Currency:    "USD",
		OccurredAt:  time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := publisher.PublishOrderEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload envelope
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.EventID != "evt-1" || payload.Event.OrderID != "ord_1" || payload.Event.Total != "120.00" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	attrs := messages[0].Attributes
	if attrs["type"] != services.OrderEventCreated || attrs["orderId"] != "ord_1" || attrs["eventId"] != "evt-1" {
		t.Fatalf("unexpected attributes %#v", attrs)
	}
	if _, ok := attrs["clientId"]; ok {
		t.Fatalf("client id attribute should not be present")
	}
}

func TestPubSubOrderPublisherMarshalFailure(t *testing.T) {
	topic, srv := newTestTopic(t)

	publisher, err := NewPubSubOrderPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderPublisher: %v", err)
	}
	publisher.marshal = func(any) ([]byte, error) { return nil, errors.New("boom") }

	if err := publisher.PublishOrderEvent(context.Background(), services.OrderEvent{Type: services.OrderEventDeleted}); err == nil {
		t.Fatal("expected marshal error")
	}
	if got := len(srv.Messages()); got != 0 {
		t.Fatalf("expected no messages, got %d", got)
	}
}

func TestNewPubSubOrderPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubOrderPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}

func TestNoopOrderPublisher(t *testing.T) {
	var p services.OrderEventPublisher = NoopOrderPublisher{}
	if err := p.PublishOrderEvent(context.Background(), services.OrderEvent{}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
