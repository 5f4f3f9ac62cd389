package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/access"
	"conversation-service/internal/handlers"
	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
	"conversation-service/internal/service"
	"conversation-service/internal/unread"
	"conversation-service/internal/userdir"
)

type handlerMocks struct {
	conversations *mocks.ConversationRepositoryMock
	members       *mocks.MemberRepositoryMock
	messages      *mocks.MessageRepositoryMock
	directory     *mocks.DirectoryMock
	broadcaster   *mocks.BroadcasterMock
}

// newTestRouter wires the full handler stack with repository mocks and a
// stub auth middleware authenticating as user 1.
func newTestRouter(t *testing.T) (*gin.Engine, *handlerMocks) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := &handlerMocks{
		conversations: new(mocks.ConversationRepositoryMock),
		members:       new(mocks.MemberRepositoryMock),
		messages:      new(mocks.MessageRepositoryMock),
		directory:     new(mocks.DirectoryMock),
		broadcaster:   new(mocks.BroadcasterMock),
	}
	guard := access.NewGuard(m.conversations, m.members)
	tracker := unread.NewTracker(m.messages)
	svc := service.NewConversationService(
		m.conversations, m.members, m.messages,
		guard, tracker, m.directory, m.broadcaster, nil, 50,
	)

	conversationHandler := handlers.NewConversationHandler(svc)
	groupHandler := handlers.NewGroupHandler(svc, m.directory)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})

	router.GET("/conversations", conversationHandler.List)
	router.POST("/conversations", conversationHandler.Start)
	router.GET("/conversations/:id", conversationHandler.History)
	router.POST("/conversations/:id/read", conversationHandler.MarkRead)
	router.POST("/messages", conversationHandler.Send)
	router.DELETE("/messages/:id", conversationHandler.DeleteMessage)

	router.POST("/groups", groupHandler.Create)
	router.GET("/groups/:id/members", groupHandler.Members)
	router.POST("/groups/:id/members", groupHandler.AddMembers)
	router.DELETE("/groups/:id/members/:memberId", groupHandler.RemoveMember)

	return router, m
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func pairwise(id, a, b int) models.Conversation {
	return models.Conversation{ID: id, Participant1ID: &a, Participant2ID: &b, IsActive: true}
}

func TestListConversationsEmpty(t *testing.T) {
	router, m := newTestRouter(t)
	m.conversations.On("ListWithActivity", mock.Anything, 1).Return(nil, nil)

	rec := doJSON(router, http.MethodGet, "/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversations": []}`, rec.Body.String())
}

func TestHandlersRejectMissingIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// No middleware sets the caller identity; every handler must refuse
	// rather than act as user zero.
	svc := service.NewConversationService(
		new(mocks.ConversationRepositoryMock), new(mocks.MemberRepositoryMock), new(mocks.MessageRepositoryMock),
		access.NewGuard(new(mocks.ConversationRepositoryMock), new(mocks.MemberRepositoryMock)),
		unread.NewTracker(new(mocks.MessageRepositoryMock)),
		new(mocks.DirectoryMock), new(mocks.BroadcasterMock), nil, 50,
	)
	handler := handlers.NewConversationHandler(svc)

	router := gin.New()
	router.GET("/conversations", handler.List)
	router.POST("/messages", handler.Send)

	rec := doJSON(router, http.MethodGet, "/conversations", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(router, http.MethodPost, "/messages", gin.H{"conversationId": 7, "text": "hello"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStartConversationReturnsSummary(t *testing.T) {
	router, m := newTestRouter(t)

	conv := pairwise(7, 1, 2)
	m.conversations.On("FindOrCreatePairwise", mock.Anything, 1, 2).Return(conv, nil)
	m.directory.On("GetUser", mock.Anything, 2).Return(userdir.User{ID: 2, Name: "Dana"}, nil)
	m.messages.On("Latest", mock.Anything, 7).Return(models.Message{}, repositories.ErrMessageNotFound)
	m.messages.On("CountUnread", mock.Anything, 7, 1).Return(0, nil)

	rec := doJSON(router, http.MethodPost, "/conversations", gin.H{"userId": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 7, body["id"])
	assert.EqualValues(t, 2, body["participantId"])
	assert.Equal(t, "Dana", body["participantName"])
}

func TestStartConversationRejectsMissingUserID(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/conversations", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryReturnsCamelCaseMessages(t *testing.T) {
	router, m := newTestRouter(t)

	conv := pairwise(7, 1, 2)
	page := []models.Message{{ID: 10, ConversationID: 7, SenderID: 2, ReceiverID: 1, Text: "hi", MessageType: models.MessageTypeText}}

	m.conversations.On("Get", mock.Anything, 7).Return(conv, nil)
	m.messages.On("ListPage", mock.Anything, 7, 1, 50).Return(page, false, nil)

	rec := doJSON(router, http.MethodGet, "/conversations/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Messages []map[string]any `json:"messages"`
		HasMore  bool             `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.False(t, body.HasMore)
	assert.EqualValues(t, 7, body.Messages[0]["conversationId"])
	assert.EqualValues(t, 2, body.Messages[0]["senderId"])
	assert.Contains(t, body.Messages[0], "isRead")
	assert.Contains(t, body.Messages[0], "timestamp")
}

func TestHistoryForbidden(t *testing.T) {
	router, m := newTestRouter(t)

	conv := pairwise(7, 2, 3)
	m.conversations.On("Get", mock.Anything, 7).Return(conv, nil)

	rec := doJSON(router, http.MethodGet, "/conversations/7", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error": "forbidden"}`, rec.Body.String())
}

func TestSendMessageCreated(t *testing.T) {
	router, m := newTestRouter(t)

	conv := pairwise(7, 1, 2)
	stored := models.Message{ID: 42, ConversationID: 7, SenderID: 1, ReceiverID: 2, Text: "hello", MessageType: models.MessageTypeText}

	m.conversations.On("Get", mock.Anything, 7).Return(conv, nil)
	m.conversations.On("Touch", mock.Anything, 7).Return(nil)
	m.messages.On("Create", mock.Anything, 7, 1, 2, "hello", models.MessageTypeText).Return(stored, nil)
	m.broadcaster.On("Publish", []int{1, 2}, mock.Anything).Return()

	rec := doJSON(router, http.MethodPost, "/messages", gin.H{"conversationId": 7, "text": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 42, body["id"])
	assert.EqualValues(t, 2, body["receiverId"])
}

func TestSendMessageRequiresText(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/messages", gin.H{"conversationId": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadSuccess(t *testing.T) {
	router, m := newTestRouter(t)

	conv := pairwise(7, 1, 2)
	m.conversations.On("Get", mock.Anything, 7).Return(conv, nil)
	m.messages.On("MarkAllRead", mock.Anything, 7, 1).Return(nil)

	rec := doJSON(router, http.MethodPost, "/conversations/7/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": true}`, rec.Body.String())
}

func TestDeleteMessageNotFound(t *testing.T) {
	router, m := newTestRouter(t)

	m.messages.On("Get", mock.Anything, 404).Return(models.Message{}, repositories.ErrMessageNotFound)

	rec := doJSON(router, http.MethodDelete, "/messages/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMessageForbiddenForNonSender(t *testing.T) {
	router, m := newTestRouter(t)

	conv := pairwise(7, 1, 2)
	msg := models.Message{ID: 42, ConversationID: 7, SenderID: 2, Text: "hello"}
	m.messages.On("Get", mock.Anything, 42).Return(msg, nil)
	m.conversations.On("Get", mock.Anything, 7).Return(conv, nil)

	rec := doJSON(router, http.MethodDelete, "/messages/42", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
