package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/domain"
	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
	"conversation-service/internal/userdir"
)

func TestCreateGroupRequiresTitleAndMembers(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateGroup(context.Background(), 1, "   ", []int{2})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateGroup(context.Background(), 1, "team", nil)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateGroupValidatesMemberIDs(t *testing.T) {
	svc, m := newTestService(t)

	// Directory resolves only two of the three requested users.
	m.directory.On("BulkUsers", mock.Anything, []int{1, 2, 3}).Return([]userdir.User{
		{ID: 1, Name: "Ana"}, {ID: 2, Name: "Dana"},
	}, nil)

	_, err := svc.CreateGroup(context.Background(), 1, "team", []int{2, 3})
	require.ErrorIs(t, err, domain.ErrValidation)
	m.conversations.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateGroupIncludesCreatorAsAdmin(t *testing.T) {
	svc, m := newTestService(t)

	conv := groupConv(9)
	membership := []models.GroupMember{
		{ConversationID: 9, UserID: 1, Role: models.RoleAdmin},
		{ConversationID: 9, UserID: 2, Role: models.RoleMember},
		{ConversationID: 9, UserID: 3, Role: models.RoleMember},
	}

	m.directory.On("BulkUsers", mock.Anything, []int{1, 2, 3}).Return([]userdir.User{
		{ID: 1, Name: "Ana"}, {ID: 2, Name: "Dana"}, {ID: 3, Name: "Eli"},
	}, nil)
	m.conversations.On("CreateGroup", mock.Anything, 1, "team", []int{2, 3}).Return(conv, membership, nil)

	result, err := svc.CreateGroup(context.Background(), 1, "team", []int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, 9, result.Conversation.ID)
	require.Len(t, result.Members, 3)
	assert.Equal(t, models.RoleAdmin, result.Members[0].Role)
}

func TestListMembersRejectsPairwise(t *testing.T) {
	svc, m := newTestService(t)

	conv := pairwiseConv(7, 1, 2)
	m.conversations.On("Get", mock.Anything, 7).Return(conv, nil)

	_, err := svc.ListMembers(context.Background(), 7, 1)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAddMembersAllowsAnyMember(t *testing.T) {
	svc, m := newTestService(t)

	conv := groupConv(9)
	added := []models.GroupMember{{ConversationID: 9, UserID: 4, Role: models.RoleMember}}

	m.conversations.On("Get", mock.Anything, 9).Return(conv, nil)
	m.members.On("IsMember", mock.Anything, 9, 2).Return(true, nil)
	m.directory.On("BulkUsers", mock.Anything, []int{4}).Return([]userdir.User{{ID: 4, Name: "Noa"}}, nil)
	m.members.On("AddMembers", mock.Anything, 9, []int{4}).Return(added, nil)

	got, err := svc.AddMembers(context.Background(), 9, 2, []int{4})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.RoleMember, got[0].Role)
}

func TestAddMembersForbiddenForOutsiders(t *testing.T) {
	svc, m := newTestService(t)

	conv := groupConv(9)
	m.conversations.On("Get", mock.Anything, 9).Return(conv, nil)
	m.members.On("IsMember", mock.Anything, 9, 8).Return(false, nil)

	_, err := svc.AddMembers(context.Background(), 9, 8, []int{4})
	require.ErrorIs(t, err, domain.ErrForbidden)
	m.members.AssertNotCalled(t, "AddMembers", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveMemberSelfRemovalAlwaysAllowed(t *testing.T) {
	svc, m := newTestService(t)

	conv := groupConv(9)
	m.conversations.On("Get", mock.Anything, 9).Return(conv, nil)
	m.members.On("IsMember", mock.Anything, 9, 3).Return(true, nil)
	m.members.On("RemoveMember", mock.Anything, 9, 3).Return(nil)

	require.NoError(t, svc.RemoveMember(context.Background(), 9, 3, 3))
	m.members.AssertNotCalled(t, "GetMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveMemberRequiresAdmin(t *testing.T) {
	svc, m := newTestService(t)

	conv := groupConv(9)
	m.conversations.On("Get", mock.Anything, 9).Return(conv, nil)
	m.members.On("IsMember", mock.Anything, 9, 2).Return(true, nil)
	m.members.On("GetMember", mock.Anything, 9, 2).Return(models.GroupMember{ConversationID: 9, UserID: 2, Role: models.RoleMember}, nil)

	err := svc.RemoveMember(context.Background(), 9, 2, 3)
	require.ErrorIs(t, err, domain.ErrForbidden)
	m.members.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveMemberAsAdmin(t *testing.T) {
	svc, m := newTestService(t)

	conv := groupConv(9)
	m.conversations.On("Get", mock.Anything, 9).Return(conv, nil)
	m.members.On("IsMember", mock.Anything, 9, 1).Return(true, nil)
	m.members.On("GetMember", mock.Anything, 9, 1).Return(models.GroupMember{ConversationID: 9, UserID: 1, Role: models.RoleAdmin}, nil)
	m.members.On("RemoveMember", mock.Anything, 9, 3).Return(nil)

	require.NoError(t, svc.RemoveMember(context.Background(), 9, 1, 3))
}

func TestRemoveMemberNotFound(t *testing.T) {
	svc, m := newTestService(t)

	conv := groupConv(9)
	m.conversations.On("Get", mock.Anything, 9).Return(conv, nil)
	m.members.On("IsMember", mock.Anything, 9, 1).Return(true, nil)
	m.members.On("GetMember", mock.Anything, 9, 1).Return(models.GroupMember{ConversationID: 9, UserID: 1, Role: models.RoleAdmin}, nil)
	m.members.On("RemoveMember", mock.Anything, 9, 77).Return(repositories.ErrMemberNotFound)

	err := svc.RemoveMember(context.Background(), 9, 1, 77)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
