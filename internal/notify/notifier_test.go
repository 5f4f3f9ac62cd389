package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
	"conversation-service/internal/notify"
)

func TestMessageCreatedEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	notifier := notify.NewNotifier(publisher, "conversation-service", "test")

	msg := models.Message{ID: 42, ConversationID: 7, SenderID: 1, ReceiverID: 2, Text: "hello"}

	var captured notify.Envelope
	publisher.On("Publish", mock.Anything, "message.created", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(notify.Envelope)
		if ok {
			captured = envelope
		}
		return ok
	})).Return(nil)

	notifier.MessageCreated(context.Background(), msg, []int{2, 3})

	publisher.AssertExpectations(t)
	assert.Equal(t, 1, captured.SchemaVersion)
	assert.Equal(t, "message.created", captured.EventType)
	assert.Equal(t, "conversation-service", captured.Service)
	assert.Equal(t, "test", captured.Environment)
	assert.Equal(t, 42, captured.Payload.Message.ID)
	assert.Equal(t, []int{2, 3}, captured.Payload.Recipients)

	occurred, err := time.Parse(time.RFC3339Nano, captured.OccurredAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), occurred, time.Minute)
}

func TestMessageDeletedRoutingKey(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	notifier := notify.NewNotifier(publisher, "conversation-service", "test")

	publisher.On("Publish", mock.Anything, "message.deleted", mock.Anything).Return(nil)

	notifier.MessageDeleted(context.Background(), models.Message{ID: 42}, []int{2})
	publisher.AssertExpectations(t)
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	notifier := notify.NewNotifier(publisher, "conversation-service", "test")

	publisher.On("Publish", mock.Anything, "message.created", mock.Anything).Return(errors.New("broker down"))

	// Emission is fire-and-forget; a broker failure must not propagate.
	notifier.MessageCreated(context.Background(), models.Message{ID: 42}, []int{2})
	publisher.AssertExpectations(t)
}

func TestNilPublisherIsNoop(t *testing.T) {
	notifier := notify.NewNotifier(nil, "conversation-service", "test")
	notifier.MessageCreated(context.Background(), models.Message{ID: 42}, []int{2})
}
