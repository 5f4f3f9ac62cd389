package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"conversation-service/internal/access"
	"conversation-service/internal/domain"
	"conversation-service/internal/models"
	"conversation-service/internal/notify"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
	"conversation-service/internal/unread"
	"conversation-service/internal/userdir"
)

// Broadcaster fans a persisted message out to connected sessions of the
// given participants. Implemented by the ws hub; delivery is best-effort.
type Broadcaster interface {
	Publish(participants []int, event models.MessageEvent)
}

// ConversationService orchestrates the conversation core: it composes the
// stores, the membership guard, the unread tracker and the broadcaster into
// the public operations.
type ConversationService struct {
	conversations repositories.ConversationRepository
	members       repositories.MemberRepository
	messages      repositories.MessageRepository
	guard         *access.Guard
	unread        *unread.Tracker
	directory     userdir.Directory
	broadcaster   Broadcaster
	notifier      *notify.Notifier
	pageSize      int
}

// NewConversationService wires the orchestrator.
func NewConversationService(
	conversations repositories.ConversationRepository,
	members repositories.MemberRepository,
	messages repositories.MessageRepository,
	guard *access.Guard,
	tracker *unread.Tracker,
	directory userdir.Directory,
	broadcaster Broadcaster,
	notifier *notify.Notifier,
	pageSize int,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		members:       members,
		messages:      messages,
		guard:         guard,
		unread:        tracker,
		directory:     directory,
		broadcaster:   broadcaster,
		notifier:      notifier,
		pageSize:      pageSize,
	}
}

// ListConversations merges conversation metadata, the latest message and
// the caller's unread counts, newest activity first. The repository joins
// everything in one query; this layer only resolves display names.
func (s *ConversationService) ListConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	rows, err := s.conversations.ListWithActivity(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %v", domain.ErrInternal, err)
	}

	summaries := make([]models.ConversationSummary, 0, len(rows))
	peerIDs := make([]int, 0, len(rows))
	for _, row := range rows {
		summary := models.ConversationSummary{
			ID:                row.ID,
			IsGroup:           row.IsGroup,
			ConversationTitle: row.Title,
			IsActive:          row.IsActive,
			LastMessageTime:   row.LastMessageTime,
			UnreadCount:       row.UnreadCount,
		}
		if row.LastMessage != nil {
			summary.LastMessage = *row.LastMessage
		}

		if !row.IsGroup {
			if peer, ok := row.OtherParticipant(userID); ok {
				peerID := peer
				summary.ParticipantID = &peerID
				peerIDs = append(peerIDs, peer)
			}
		}

		summaries = append(summaries, summary)
	}

	if err := s.resolveNames(ctx, peerIDs, summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *ConversationService) resolveNames(ctx context.Context, peerIDs []int, summaries []models.ConversationSummary) error {
	if len(peerIDs) == 0 {
		return nil
	}
	users, err := s.directory.BulkUsers(ctx, peerIDs)
	if err != nil {
		return fmt.Errorf("%w: resolve participants: %v", domain.ErrInternal, err)
	}
	nameByID := make(map[int]string, len(users))
	for _, u := range users {
		nameByID[u.ID] = u.Name
	}
	for i := range summaries {
		if summaries[i].ParticipantID != nil {
			summaries[i].ParticipantName = nameByID[*summaries[i].ParticipantID]
		}
	}
	return nil
}

// StartPairwise finds or creates the pairwise conversation with the given
// peer and returns its summary for the caller. A lost creation race is
// surfaced as success with the winner's record.
func (s *ConversationService) StartPairwise(ctx context.Context, userID, peerID int) (models.ConversationSummary, error) {
	if peerID <= 0 {
		return models.ConversationSummary{}, fmt.Errorf("%w: userId is required", domain.ErrValidation)
	}
	if peerID == userID {
		return models.ConversationSummary{}, fmt.Errorf("%w: cannot start a conversation with yourself", domain.ErrValidation)
	}

	conv, err := s.conversations.FindOrCreatePairwise(ctx, userID, peerID)
	if err != nil {
		return models.ConversationSummary{}, fmt.Errorf("%w: find or create pairwise: %v", domain.ErrInternal, err)
	}

	summary := models.ConversationSummary{
		ID:       conv.ID,
		IsGroup:  false,
		IsActive: conv.IsActive,
	}
	peer := peerID
	summary.ParticipantID = &peer

	if user, err := s.directory.GetUser(ctx, peerID); err == nil {
		summary.ParticipantName = user.Name
	}

	latest, err := s.messages.Latest(ctx, conv.ID)
	if err == nil {
		summary.LastMessage = latest.Text
		t := latest.CreatedAt
		summary.LastMessageTime = &t
	} else if !errors.Is(err, repositories.ErrMessageNotFound) {
		return models.ConversationSummary{}, fmt.Errorf("%w: latest message: %v", domain.ErrInternal, err)
	}

	count, err := s.unread.CountFor(ctx, conv.ID, userID)
	if err != nil {
		return models.ConversationSummary{}, fmt.Errorf("%w: unread count: %v", domain.ErrInternal, err)
	}
	summary.UnreadCount = count
	return summary, nil
}

// GetHistory returns one page of messages, oldest first, after re-verifying
// read access regardless of how the request was scoped.
func (s *ConversationService) GetHistory(ctx context.Context, conversationID, userID, page int) ([]models.Message, bool, error) {
	if _, err := s.guard.Require(ctx, conversationID, userID); err != nil {
		return nil, false, err
	}
	msgs, hasMore, err := s.messages.ListPage(ctx, conversationID, page, s.pageSize)
	if err != nil {
		return nil, false, fmt.Errorf("%w: list messages: %v", domain.ErrInternal, err)
	}
	return msgs, hasMore, nil
}

// SendInput describes a send request. Exactly one of ConversationID or
// ReceiverID must identify the destination; with only a ReceiverID the
// pairwise conversation is resolved or created.
type SendInput struct {
	SenderID       int
	ConversationID int
	ReceiverID     int
	Text           string
	MessageType    string
}

// Send persists a message and triggers fan-out. Once the message is durably
// stored the call reports success; broadcast and push emission are
// best-effort and never fail the send.
func (s *ConversationService) Send(ctx context.Context, in SendInput) (models.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return models.Message{}, fmt.Errorf("%w: message text is required", domain.ErrValidation)
	}
	messageType := in.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	conversationID := in.ConversationID
	if conversationID == 0 {
		if in.ReceiverID <= 0 {
			return models.Message{}, fmt.Errorf("%w: conversationId or receiverId is required", domain.ErrValidation)
		}
		conv, err := s.conversations.FindOrCreatePairwise(ctx, in.SenderID, in.ReceiverID)
		if err != nil {
			return models.Message{}, fmt.Errorf("%w: find or create pairwise: %v", domain.ErrInternal, err)
		}
		conversationID = conv.ID
	}

	// Write access is always re-verified here, even when the conversation
	// was just resolved for this sender.
	conv, err := s.guard.Require(ctx, conversationID, in.SenderID)
	if err != nil {
		return models.Message{}, err
	}

	receiverID, err := s.resolveReceiver(conv, in.SenderID, in.ReceiverID)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.Create(ctx, conv.ID, in.SenderID, receiverID, text, messageType)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: store message: %v", domain.ErrInternal, err)
	}

	if err := s.conversations.Touch(ctx, conv.ID); err != nil {
		log.Printf("touch conversation %d failed: %v", conv.ID, err)
	}
	observability.IncMessageSent(conversationKind(conv))

	s.fanOut(ctx, conv, msg, models.EventNewMessage)
	return msg, nil
}

// resolveReceiver computes the stored receiver. For pairwise conversations
// the receiver is always the other participant, and a disagreeing
// client-supplied receiver is rejected. For groups the field is
// informational only and defaults to the sender.
func (s *ConversationService) resolveReceiver(conv models.Conversation, senderID, requested int) (int, error) {
	if conv.IsGroup {
		if requested > 0 {
			return requested, nil
		}
		return senderID, nil
	}

	peer, ok := conv.OtherParticipant(senderID)
	if !ok {
		return 0, domain.ErrForbidden
	}
	if requested > 0 && requested != peer {
		return 0, fmt.Errorf("%w: receiver does not match conversation", domain.ErrValidation)
	}
	return peer, nil
}

// MarkRead flips every unread message not sent by the caller. Idempotent.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID int) error {
	if _, err := s.guard.Require(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.messages.MarkAllRead(ctx, conversationID, userID); err != nil {
		return fmt.Errorf("%w: mark read: %v", domain.ErrInternal, err)
	}
	return nil
}

// SoftDelete replaces the message body with the deleted sentinel. Only the
// original sender may delete; anyone else gets Forbidden, not NotFound.
func (s *ConversationService) SoftDelete(ctx context.Context, messageID, requesterID int) (models.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, domain.ErrNotFound
		}
		return models.Message{}, fmt.Errorf("%w: load message: %v", domain.ErrInternal, err)
	}

	conv, err := s.guard.Require(ctx, msg.ConversationID, requesterID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != requesterID {
		return models.Message{}, domain.ErrForbidden
	}

	deleted, err := s.messages.SoftDelete(ctx, messageID, requesterID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, domain.ErrNotFound
		}
		return models.Message{}, fmt.Errorf("%w: soft delete: %v", domain.ErrInternal, err)
	}

	s.fanOut(ctx, conv, deleted, models.EventMessageDeleted)
	return deleted, nil
}

// fanOut publishes the realtime event and the push trigger. Both are
// decoupled from the request cycle; failures here never reach the caller.
func (s *ConversationService) fanOut(ctx context.Context, conv models.Conversation, msg models.Message, eventType string) {
	participants, err := s.participantsOf(ctx, conv)
	if err != nil {
		log.Printf("resolve participants for fan-out failed: %v", err)
		return
	}

	if s.broadcaster != nil {
		event := models.MessageEvent{
			Type:           eventType,
			Message:        &msg,
			MessageID:      msg.ID,
			ConversationID: conv.ID,
		}
		s.broadcaster.Publish(participants, event)
	}

	if s.notifier != nil {
		recipients := make([]int, 0, len(participants))
		for _, id := range participants {
			if id != msg.SenderID {
				recipients = append(recipients, id)
			}
		}
		go func() {
			ctx := context.WithoutCancel(ctx)
			switch eventType {
			case models.EventMessageDeleted:
				s.notifier.MessageDeleted(ctx, msg, recipients)
			default:
				s.notifier.MessageCreated(ctx, msg, recipients)
			}
		}()
	}
}

// participantsOf lists every user eligible for delivery, sender included
// (multi-device sync relies on the sender's other sessions receiving the
// event too).
func (s *ConversationService) participantsOf(ctx context.Context, conv models.Conversation) ([]int, error) {
	if !conv.IsGroup {
		ids := make([]int, 0, 2)
		if conv.Participant1ID != nil {
			ids = append(ids, *conv.Participant1ID)
		}
		if conv.Participant2ID != nil {
			ids = append(ids, *conv.Participant2ID)
		}
		return ids, nil
	}

	members, err := s.members.ListMembers(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func conversationKind(conv models.Conversation) string {
	if conv.IsGroup {
		return "group"
	}
	return "pairwise"
}
