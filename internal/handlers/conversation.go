package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/models"
	"conversation-service/internal/service"
)

// ConversationHandler exposes the conversation and message endpoints.
type ConversationHandler struct {
	svc *service.ConversationService
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(svc *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// List handles GET /conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	summaries, err := h.svc.ListConversations(c.Request.Context(), userID)
	if err != nil {
		log.Printf("list conversations failed: %v", err)
		respondError(c, err)
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// Start handles POST /conversations: find-or-create a pairwise
// conversation with the given user. A creation race resolved to an
// existing record is success, never an error.
func (h *ConversationHandler) Start(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		UserID int `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.svc.StartPairwise(c.Request.Context(), userID, req.UserID)
	if err != nil {
		log.Printf("start conversation failed: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// History handles GET /conversations/:id?page=N. Messages come back oldest
// first for the requested page.
func (h *ConversationHandler) History(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	msgs, hasMore, err := h.svc.GetHistory(c.Request.Context(), conversationID, userID, page)
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "hasMore": hasMore})
}

// Send handles POST /messages. The caller supplies either a conversationId
// or a receiverId; with only a receiverId the pairwise conversation is
// resolved or created first.
func (h *ConversationHandler) Send(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		ConversationID int    `json:"conversationId"`
		ReceiverID     int    `json:"receiverId"`
		Text           string `json:"text" binding:"required"`
		MessageType    string `json:"messageType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), service.SendInput{
		SenderID:       userID,
		ConversationID: req.ConversationID,
		ReceiverID:     req.ReceiverID,
		Text:           req.Text,
		MessageType:    req.MessageType,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead handles POST /conversations/:id/read.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteMessage handles DELETE /messages/:id (sender-only soft delete).
func (h *ConversationHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.svc.SoftDelete(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
