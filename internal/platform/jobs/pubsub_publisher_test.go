package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kharidari/api/internal/domain"
)

func TestPubSubOrderEventsPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubOrderEventsPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventsPublisher: %v", err)
	}

	event := domain.OrderEvent{
		Type:        domain.OrderEventPlaced,
		OrderID:     "ord_test",
		OrderNumber: "KH-2026-000042",
		UserID:      "user-1",
		Total:       170_000,
		Currency:    "INR",
		OccurredAt:  time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
	}

	if err := publisher.PublishOrderEvent(ctx, event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload domain.OrderEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != event.OrderID || payload.Type != event.Type {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["eventType"]; attr != string(domain.OrderEventPlaced) {
		t.Fatalf("expected event type attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["orderNumber"]; attr != event.OrderNumber {
		t.Fatalf("expected order number attribute, got %q", attr)
	}
}
