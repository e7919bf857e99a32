package events

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
)

func TestPubSubQuotationPublisherPublishesMessage(t *testing.T) {
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

	topic, err := client.CreateTopic(ctx, "quotation-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubQuotationPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubQuotationPublisher: %v", err)
	}

	occurredAt := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	event := QuotationEvent{
		EventType:   EventQuotationApproved,
		QuotationID: "q_test",
		ClientID:    "user-1",
		Status:      "approved",
		ReviewedBy:  "engineer-1",
		TotalPrice:  375050,
		OccurredAt:  occurredAt,
	}

	if _, err := publisher.PublishQuotationEvent(ctx, event); err != nil {
		t.Fatalf("PublishQuotationEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload QuotationEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.QuotationID != event.QuotationID || payload.TotalPrice != event.TotalPrice {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["eventType"]; attr != EventQuotationApproved {
		t.Fatalf("expected event type attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["reviewedBy"]; ok {
		t.Fatalf("reviewedBy attribute should not be present")
	}
}
