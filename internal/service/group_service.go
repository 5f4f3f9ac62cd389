package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"conversation-service/internal/domain"
	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
)

// GroupResult is a created group with its initial membership.
type GroupResult struct {
	Conversation models.Conversation
	Members      []models.GroupMember
}

// CreateGroup creates a group conversation with the creator as admin and
// all listed members, atomically. Member ids are validated against the user
// directory before anything is written.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID int, title string, memberIDs []int) (GroupResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return GroupResult{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if len(memberIDs) == 0 {
		return GroupResult{}, fmt.Errorf("%w: memberIds must be a non-empty list", domain.ErrValidation)
	}

	unique := dedupe(append([]int{creatorID}, memberIDs...))
	users, err := s.directory.BulkUsers(ctx, unique)
	if err != nil {
		return GroupResult{}, fmt.Errorf("%w: validate members: %v", domain.ErrInternal, err)
	}
	if len(users) != len(unique) {
		return GroupResult{}, fmt.Errorf("%w: one or more member ids are invalid", domain.ErrValidation)
	}

	conv, members, err := s.conversations.CreateGroup(ctx, creatorID, title, memberIDs)
	if err != nil {
		return GroupResult{}, fmt.Errorf("%w: create group: %v", domain.ErrInternal, err)
	}
	return GroupResult{Conversation: conv, Members: members}, nil
}

// ListMembers returns the membership of a group the caller belongs to.
func (s *ConversationService) ListMembers(ctx context.Context, conversationID, userID int) ([]models.GroupMember, error) {
	conv, err := s.guard.Require(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, fmt.Errorf("%w: not a group conversation", domain.ErrValidation)
	}

	members, err := s.members.ListMembers(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: list members: %v", domain.ErrInternal, err)
	}
	return members, nil
}

// AddMembers adds users to a group. Any current member may add; users
// already present are skipped.
func (s *ConversationService) AddMembers(ctx context.Context, conversationID, requesterID int, memberIDs []int) ([]models.GroupMember, error) {
	conv, err := s.guard.Require(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, fmt.Errorf("%w: not a group conversation", domain.ErrValidation)
	}
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("%w: memberIds must be a non-empty list", domain.ErrValidation)
	}

	unique := dedupe(memberIDs)
	users, err := s.directory.BulkUsers(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("%w: validate members: %v", domain.ErrInternal, err)
	}
	if len(users) != len(unique) {
		return nil, fmt.Errorf("%w: one or more member ids are invalid", domain.ErrValidation)
	}

	added, err := s.members.AddMembers(ctx, conversationID, unique)
	if err != nil {
		return nil, fmt.Errorf("%w: add members: %v", domain.ErrInternal, err)
	}
	return added, nil
}

// RemoveMember removes a user from a group. Self-removal is always allowed;
// removing anyone else requires the admin role. Past messages of a removed
// member stay untouched.
func (s *ConversationService) RemoveMember(ctx context.Context, conversationID, requesterID, memberID int) error {
	conv, err := s.guard.Require(ctx, conversationID, requesterID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return fmt.Errorf("%w: not a group conversation", domain.ErrValidation)
	}

	if requesterID != memberID {
		requester, err := s.members.GetMember(ctx, conversationID, requesterID)
		if err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				return domain.ErrForbidden
			}
			return fmt.Errorf("%w: load requester membership: %v", domain.ErrInternal, err)
		}
		if requester.Role != models.RoleAdmin {
			return domain.ErrForbidden
		}
	}

	if err := s.members.RemoveMember(ctx, conversationID, memberID); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: remove member: %v", domain.ErrInternal, err)
	}
	return nil
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
