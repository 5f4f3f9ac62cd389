package unread

import (
	"context"

	"conversation-service/internal/repositories"
)

// Tracker derives per-(conversation, user) unread counts from message read
// flags. Counts are computed on demand, so an append arriving after a
// mark-all-read re-introduces unread state without any cache to invalidate.
type Tracker struct {
	messages repositories.MessageRepository
}

// NewTracker constructs a Tracker.
func NewTracker(messages repositories.MessageRepository) *Tracker {
	return &Tracker{messages: messages}
}

// CountFor returns the number of messages in the conversation that the user
// has not read and did not send.
func (t *Tracker) CountFor(ctx context.Context, conversationID, userID int) (int, error) {
	return t.messages.CountUnread(ctx, conversationID, userID)
}
