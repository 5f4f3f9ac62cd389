package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

const conversationColumns = `id, is_group, participant1_id, participant2_id, title, created_by, is_active, created_at, updated_at`

// ConversationActivity is a conversation row joined with its latest message
// and the caller's unread count, for the list view.
type ConversationActivity struct {
	models.Conversation
	LastMessage     *string    `db:"last_message"`
	LastMessageTime *time.Time `db:"last_message_time"`
	UnreadCount     int        `db:"unread_count"`
}

// ConversationRepository owns conversation identity and creation-time
// deduplication.
type ConversationRepository interface {
	FindOrCreatePairwise(ctx context.Context, userA, userB int) (models.Conversation, error)
	CreateGroup(ctx context.Context, creatorID int, title string, memberIDs []int) (models.Conversation, []models.GroupMember, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	ListWithActivity(ctx context.Context, userID int) ([]ConversationActivity, error)
	Touch(ctx context.Context, conversationID int) error
}

// ConversationRepo is the sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// FindOrCreatePairwise returns the unique pairwise conversation for the
// unordered pair, creating it when absent. Concurrent calls from both users
// are serialized by the partial unique index on the normalized pair: the
// loser's insert hits the conflict, inserts nothing and re-reads the
// winner's row.
func (r *ConversationRepo) FindOrCreatePairwise(ctx context.Context, userA, userB int) (models.Conversation, error) {
	if userA == userB {
		return models.Conversation{}, errors.New("cannot create conversation with self")
	}
	pair := []int{userA, userB}
	sort.Ints(pair)
	p1, p2 := pair[0], pair[1]

	var conv models.Conversation
	query := `SELECT ` + conversationColumns + ` FROM conversations
        WHERE is_group = FALSE AND participant1_id = $1 AND participant2_id = $2`
	err := r.db.GetContext(ctx, &conv, query, p1, p2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	insert := `INSERT INTO conversations (is_group, participant1_id, participant2_id)
        VALUES (FALSE, $1, $2)
        ON CONFLICT (participant1_id, participant2_id) WHERE is_group = FALSE DO NOTHING
        RETURNING ` + conversationColumns
	err = r.db.GetContext(ctx, &conv, insert, p1, p2)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the creation race; the winner's row exists now.
		err = r.db.GetContext(ctx, &conv, query, p1, p2)
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// CreateGroup creates the conversation row, the creator's admin membership
// and all member rows as one transaction. Any failure rolls the whole group
// back.
func (r *ConversationRepo) CreateGroup(ctx context.Context, creatorID int, title string, memberIDs []int) (models.Conversation, []models.GroupMember, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conv models.Conversation
	err = tx.GetContext(ctx, &conv,
		`INSERT INTO conversations (is_group, title, created_by)
         VALUES (TRUE, $1, $2)
         RETURNING `+conversationColumns, title, creatorID)
	if err != nil {
		return models.Conversation{}, nil, err
	}

	// Creator joins as admin, everyone else as member; dedupe the list.
	seen := map[int]struct{}{creatorID: {}}
	ids := []int{creatorID}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	members := make([]models.GroupMember, 0, len(ids))
	for _, id := range ids {
		role := models.RoleMember
		if id == creatorID {
			role = models.RoleAdmin
		}
		var member models.GroupMember
		err = tx.GetContext(ctx, &member,
			`INSERT INTO group_members (conversation_id, user_id, role)
             VALUES ($1, $2, $3)
             RETURNING conversation_id, user_id, role, joined_at`,
			conv.ID, id, role)
		if err != nil {
			return models.Conversation{}, nil, err
		}
		members = append(members, member)
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, nil, err
	}
	return conv, members, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListWithActivity returns every pairwise conversation where the user
// occupies a slot plus every group conversation with a membership row, each
// joined with its latest message and the caller's unread count in one
// query, newest activity first.
func (r *ConversationRepo) ListWithActivity(ctx context.Context, userID int) ([]ConversationActivity, error) {
	query := `
        SELECT c.id, c.is_group, c.participant1_id, c.participant2_id, c.title, c.created_by, c.is_active, c.created_at, c.updated_at,
               lm.text AS last_message,
               lm.created_at AS last_message_time,
               (SELECT COUNT(*) FROM messages m
                 WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.is_read = FALSE) AS unread_count
        FROM conversations c
        LEFT JOIN LATERAL (
            SELECT text, created_at FROM messages
            WHERE conversation_id = c.id
            ORDER BY created_at DESC, id DESC LIMIT 1
        ) lm ON TRUE
        WHERE (c.is_group = FALSE AND (c.participant1_id = $1 OR c.participant2_id = $1))
           OR (c.is_group = TRUE AND EXISTS (
                SELECT 1 FROM group_members gm
                WHERE gm.conversation_id = c.id AND gm.user_id = $1))
        ORDER BY lm.created_at DESC NULLS LAST, c.id`
	var rows []ConversationActivity
	err := r.db.SelectContext(ctx, &rows, query, userID)
	return rows, err
}

// Touch bumps updated_at after activity in the conversation.
func (r *ConversationRepo) Touch(ctx context.Context, conversationID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID)
	return err
}
