package models

import "time"

// Membership roles for group conversations.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// GroupMember is one (conversation, user) membership row.
type GroupMember struct {
	ConversationID int       `db:"conversation_id" json:"conversationId"`
	UserID         int       `db:"user_id" json:"userId"`
	Role           string    `db:"role" json:"role"`
	JoinedAt       time.Time `db:"joined_at" json:"joinedAt"`
}
