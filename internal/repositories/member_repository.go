package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

var ErrMemberNotFound = errors.New("member not found")

// MemberRepository owns group membership rows.
type MemberRepository interface {
	IsMember(ctx context.Context, conversationID, userID int) (bool, error)
	GetMember(ctx context.Context, conversationID, userID int) (models.GroupMember, error)
	ListMembers(ctx context.Context, conversationID int) ([]models.GroupMember, error)
	AddMembers(ctx context.Context, conversationID int, userIDs []int) ([]models.GroupMember, error)
	RemoveMember(ctx context.Context, conversationID, userID int) error
}

// MemberRepo is the sqlx implementation of MemberRepository.
type MemberRepo struct {
	db *sqlx.DB
}

// NewMemberRepo constructs a MemberRepo.
func NewMemberRepo(db *sqlx.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

// IsMember checks whether a membership row exists.
func (r *MemberRepo) IsMember(ctx context.Context, conversationID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM group_members WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID)
	return exists, err
}

// GetMember fetches a membership row, including its role.
func (r *MemberRepo) GetMember(ctx context.Context, conversationID, userID int) (models.GroupMember, error) {
	var member models.GroupMember
	err := r.db.GetContext(ctx, &member,
		`SELECT conversation_id, user_id, role, joined_at FROM group_members
         WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMember{}, ErrMemberNotFound
	}
	return member, err
}

// ListMembers returns all membership rows of a conversation.
func (r *MemberRepo) ListMembers(ctx context.Context, conversationID int) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT conversation_id, user_id, role, joined_at FROM group_members
         WHERE conversation_id = $1 ORDER BY joined_at ASC, user_id ASC`,
		conversationID)
	return members, err
}

// AddMembers inserts membership rows with the member role. Already-present
// users are skipped, so re-adding is a no-op.
func (r *MemberRepo) AddMembers(ctx context.Context, conversationID int, userIDs []int) ([]models.GroupMember, error) {
	added := make([]models.GroupMember, 0, len(userIDs))
	for _, id := range userIDs {
		var member models.GroupMember
		err := r.db.GetContext(ctx, &member,
			`INSERT INTO group_members (conversation_id, user_id, role)
             VALUES ($1, $2, $3)
             ON CONFLICT (conversation_id, user_id) DO NOTHING
             RETURNING conversation_id, user_id, role, joined_at`,
			conversationID, id, models.RoleMember)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		added = append(added, member)
	}
	return added, nil
}

// RemoveMember deletes a membership row.
func (r *MemberRepo) RemoveMember(ctx context.Context, conversationID, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}
