package access

import (
	"context"
	"errors"
	"fmt"

	"conversation-service/internal/domain"
	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
)

// Guard is the single authorization capability for conversations. Every
// operation in the service layer consults it explicitly, even when the
// underlying query is already scoped to the caller — a query-construction
// bug must never be the only thing between two users' data.
type Guard struct {
	conversations repositories.ConversationRepository
	members       repositories.MemberRepository
}

// NewGuard constructs a Guard.
func NewGuard(conversations repositories.ConversationRepository, members repositories.MemberRepository) *Guard {
	return &Guard{conversations: conversations, members: members}
}

// Require loads the conversation and verifies access in one step. It
// returns domain.ErrNotFound when the conversation does not exist and
// domain.ErrForbidden when the user may not touch it. Authorization failure
// is a hard deny, never a filtered response.
func (g *Guard) Require(ctx context.Context, conversationID, userID int) (models.Conversation, error) {
	conv, err := g.conversations.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.Conversation{}, domain.ErrNotFound
		}
		return models.Conversation{}, fmt.Errorf("%w: load conversation: %v", domain.ErrInternal, err)
	}

	allowed, err := g.allowed(ctx, conv, userID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !allowed {
		return models.Conversation{}, domain.ErrForbidden
	}
	return conv, nil
}

// CanRead reports whether the user may read the conversation.
func (g *Guard) CanRead(ctx context.Context, conversationID, userID int) (bool, error) {
	conv, err := g.conversations.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return false, domain.ErrNotFound
		}
		return false, err
	}
	return g.allowed(ctx, conv, userID)
}

// CanWrite reports whether the user may write to the conversation. Read and
// write authorization are the same check in this core.
func (g *Guard) CanWrite(ctx context.Context, conversationID, userID int) (bool, error) {
	return g.CanRead(ctx, conversationID, userID)
}

func (g *Guard) allowed(ctx context.Context, conv models.Conversation, userID int) (bool, error) {
	if conv.IsGroup {
		member, err := g.members.IsMember(ctx, conv.ID, userID)
		if err != nil {
			return false, fmt.Errorf("%w: check membership: %v", domain.ErrInternal, err)
		}
		return member, nil
	}
	return conv.HasSlot(userID), nil
}
