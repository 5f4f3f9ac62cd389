package models

import "time"

// Conversation is either pairwise (two fixed participant slots, stored
// normalized so participant1 < participant2) or a group (title, creator and
// dynamic membership rows). The kind is immutable after creation.
type Conversation struct {
	ID             int        `db:"id" json:"id"`
	IsGroup        bool       `db:"is_group" json:"isGroup"`
	Participant1ID *int       `db:"participant1_id" json:"participant1Id,omitempty"`
	Participant2ID *int       `db:"participant2_id" json:"participant2Id,omitempty"`
	Title          *string    `db:"title" json:"title,omitempty"`
	CreatedBy      *int       `db:"created_by" json:"createdBy,omitempty"`
	IsActive       bool       `db:"is_active" json:"isActive"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// HasSlot reports whether the user occupies one of the two pairwise slots.
// Always false for groups, which have no slots.
func (c Conversation) HasSlot(userID int) bool {
	if c.IsGroup {
		return false
	}
	return (c.Participant1ID != nil && *c.Participant1ID == userID) ||
		(c.Participant2ID != nil && *c.Participant2ID == userID)
}

// OtherParticipant returns the pairwise peer of the given user.
func (c Conversation) OtherParticipant(userID int) (int, bool) {
	if c.IsGroup || c.Participant1ID == nil || c.Participant2ID == nil {
		return 0, false
	}
	switch userID {
	case *c.Participant1ID:
		return *c.Participant2ID, true
	case *c.Participant2ID:
		return *c.Participant1ID, true
	}
	return 0, false
}

// ConversationSummary is the list-view shape merged from conversation
// metadata, the latest message and the caller's unread count.
type ConversationSummary struct {
	ID                int        `json:"id"`
	IsGroup           bool       `json:"isGroup"`
	ParticipantID     *int       `json:"participantId,omitempty"`
	ParticipantName   string     `json:"participantName,omitempty"`
	ConversationTitle *string    `json:"conversationTitle,omitempty"`
	LastMessage       string     `json:"lastMessage"`
	LastMessageTime   *time.Time `json:"lastMessageTime"`
	UnreadCount       int        `json:"unreadCount"`
	IsActive          bool       `json:"isActive"`
}
