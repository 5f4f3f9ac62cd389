package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
	"conversation-service/internal/userdir"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) FindOrCreatePairwise(ctx context.Context, userA, userB int) (models.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) CreateGroup(ctx context.Context, creatorID int, title string, memberIDs []int) (models.Conversation, []models.GroupMember, error) {
	args := m.Called(ctx, creatorID, title, memberIDs)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	var members []models.GroupMember
	if val := args.Get(1); val != nil {
		members = val.([]models.GroupMember)
	}
	return conv, members, args.Error(2)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListWithActivity(ctx context.Context, userID int) ([]repositories.ConversationActivity, error) {
	args := m.Called(ctx, userID)
	var rows []repositories.ConversationActivity
	if val := args.Get(0); val != nil {
		rows = val.([]repositories.ConversationActivity)
	}
	return rows, args.Error(1)
}

func (m *ConversationRepositoryMock) Touch(ctx context.Context, conversationID int) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MemberRepositoryMock struct {
	mock.Mock
}

func (m *MemberRepositoryMock) IsMember(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MemberRepositoryMock) GetMember(ctx context.Context, conversationID, userID int) (models.GroupMember, error) {
	args := m.Called(ctx, conversationID, userID)
	var member models.GroupMember
	if val := args.Get(0); val != nil {
		member = val.(models.GroupMember)
	}
	return member, args.Error(1)
}

func (m *MemberRepositoryMock) ListMembers(ctx context.Context, conversationID int) ([]models.GroupMember, error) {
	args := m.Called(ctx, conversationID)
	var members []models.GroupMember
	if val := args.Get(0); val != nil {
		members = val.([]models.GroupMember)
	}
	return members, args.Error(1)
}

func (m *MemberRepositoryMock) AddMembers(ctx context.Context, conversationID int, userIDs []int) ([]models.GroupMember, error) {
	args := m.Called(ctx, conversationID, userIDs)
	var members []models.GroupMember
	if val := args.Get(0); val != nil {
		members = val.([]models.GroupMember)
	}
	return members, args.Error(1)
}

func (m *MemberRepositoryMock) RemoveMember(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, conversationID, senderID, receiverID int, text, messageType string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, receiverID, text, messageType)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListPage(ctx context.Context, conversationID, page, pageSize int) ([]models.Message, bool, error) {
	args := m.Called(ctx, conversationID, page, pageSize)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) Latest(ctx context.Context, conversationID int) (models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkAllRead(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) CountUnread(ctx context.Context, conversationID, userID int) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID, senderID int) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) GetUser(ctx context.Context, userID int) (userdir.User, error) {
	args := m.Called(ctx, userID)
	var user userdir.User
	if val := args.Get(0); val != nil {
		user = val.(userdir.User)
	}
	return user, args.Error(1)
}

func (m *DirectoryMock) BulkUsers(ctx context.Context, ids []int) ([]userdir.User, error) {
	args := m.Called(ctx, ids)
	var users []userdir.User
	if val := args.Get(0); val != nil {
		users = val.([]userdir.User)
	}
	return users, args.Error(1)
}

// BroadcasterMock records published events for assertions.
type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Publish(participants []int, event models.MessageEvent) {
	m.Called(participants, event)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MemberRepository = (*MemberRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ userdir.Directory = (*DirectoryMock)(nil)
