package models

import "time"

// Message kinds. The core stores bodies opaquely; only these tags matter.
const (
	MessageTypeText    = "text"
	MessageTypeDeleted = "deleted"
)

// DeletedBody replaces the text of a soft-deleted message.
const DeletedBody = "This message was deleted"

// Message is a single message row. ReceiverID is the resolved receiver for
// pairwise conversations; for groups it is informational only (broadcast
// targets all members).
type Message struct {
	ID             int       `db:"id" json:"id"`
	ConversationID int       `db:"conversation_id" json:"conversationId"`
	SenderID       int       `db:"sender_id" json:"senderId"`
	ReceiverID     int       `db:"receiver_id" json:"receiverId"`
	Text           string    `db:"text" json:"text"`
	MessageType    string    `db:"message_type" json:"messageType"`
	IsRead         bool      `db:"is_read" json:"isRead"`
	CreatedAt      time.Time `db:"created_at" json:"timestamp"`
}

// Realtime event names. The conversation channel carries new_message and
// message_deleted; the per-user global channel carries receive_message as a
// catch-all with the identical payload.
const (
	EventNewMessage     = "new_message"
	EventReceiveMessage = "receive_message"
	EventMessageDeleted = "message_deleted"
)

// MessageEvent is the payload broadcast over websocket connections.
type MessageEvent struct {
	Type           string   `json:"type"`
	Message        *Message `json:"message,omitempty"`
	MessageID      int      `json:"messageId,omitempty"`
	ConversationID int      `json:"conversationId"`
}
