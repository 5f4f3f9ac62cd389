package notify

import (
	"context"
	"log"
	"time"

	"conversation-service/internal/models"
)

// Publisher is the transport the notifier emits through.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Envelope wraps an outbound core event for the external push-notification
// trigger. Consumers decide whether and how to notify; the core only emits.
type Envelope struct {
	SchemaVersion int     `json:"schema_version"`
	EventType     string  `json:"event_type"`
	OccurredAt    string  `json:"occurred_at"`
	Service       string  `json:"service"`
	Environment   string  `json:"environment"`
	Payload       Payload `json:"payload"`
}

// Payload carries the message and its delivery targets.
type Payload struct {
	Message    models.Message `json:"message"`
	Recipients []int          `json:"recipients"`
}

// Notifier emits message lifecycle events. Emission is fire-and-forget:
// failures are logged and counted, never surfaced to the sender.
type Notifier struct {
	publisher   Publisher
	service     string
	environment string
}

// NewNotifier constructs a Notifier.
func NewNotifier(publisher Publisher, service, environment string) *Notifier {
	return &Notifier{publisher: publisher, service: service, environment: environment}
}

// MessageCreated emits a message.created event for the given recipients
// (every participant except the sender).
func (n *Notifier) MessageCreated(ctx context.Context, msg models.Message, recipients []int) {
	n.emit(ctx, "message.created", msg, recipients)
}

// MessageDeleted emits a message.deleted event.
func (n *Notifier) MessageDeleted(ctx context.Context, msg models.Message, recipients []int) {
	n.emit(ctx, "message.deleted", msg, recipients)
}

func (n *Notifier) emit(ctx context.Context, eventType string, msg models.Message, recipients []int) {
	if n == nil || n.publisher == nil {
		return
	}

	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       n.service,
		Environment:   n.environment,
		Payload: Payload{
			Message:    msg,
			Recipients: recipients,
		},
	}

	if err := n.publisher.Publish(ctx, eventType, envelope); err != nil {
		log.Printf("notify publish failed: %v", err)
	}
}
