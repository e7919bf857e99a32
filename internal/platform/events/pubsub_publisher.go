package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/instrugate/api/internal/platform/textutil"
)

// QuotationEvent is the message emitted on every quotation lifecycle change.
type QuotationEvent struct {
	EventType   string    `json:"event_type"`
	QuotationID string    `json:"quotation_id"`
	ClientID    string    `json:"client_id"`
	Status      string    `json:"status"`
	ReviewedBy  string    `json:"reviewed_by,omitempty"`
	TotalPrice  int64     `json:"total_price"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Lifecycle event types carried in the event_type attribute.
const (
	EventQuotationCreated   = "quotation.created"
	EventQuotationApproved  = "quotation.approved"
	EventQuotationRejected  = "quotation.rejected"
	EventQuotationSubmitted = "quotation.submitted"
)

// PubSubQuotationPublisher publishes quotation lifecycle events to a Pub/Sub
// topic for downstream consumers such as the ERP export worker.
type PubSubQuotationPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubQuotationPublisher constructs a Pub/Sub backed event publisher.
func NewPubSubQuotationPublisher(topic *pubsub.Topic) (*PubSubQuotationPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub quotation publisher: topic is required")
	}
	return &PubSubQuotationPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishQuotationEvent enqueues the event and returns the broker message ID.
func (p *PubSubQuotationPublisher) PublishQuotationEvent(ctx context.Context, event QuotationEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub quotation publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal quotation event: %w", err)
	}

	attrs := textutil.NormalizeStringMap(map[string]string{
		"eventType":   event.EventType,
		"quotationId": event.QuotationID,
		"clientId":    event.ClientID,
		"status":      event.Status,
	})

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish quotation event: %w", err)
	}
	return id, nil
}
