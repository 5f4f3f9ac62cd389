package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/models"
	"conversation-service/internal/service"
	"conversation-service/internal/userdir"
)

// GroupHandler exposes group creation and membership management.
type GroupHandler struct {
	svc       *service.ConversationService
	directory userdir.Directory
}

// NewGroupHandler builds a GroupHandler.
func NewGroupHandler(svc *service.ConversationService, directory userdir.Directory) *GroupHandler {
	return &GroupHandler{svc: svc, directory: directory}
}

type memberResponse struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	JoinedAt string `json:"joinedAt"`
}

// Create handles POST /groups.
func (h *GroupHandler) Create(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		Title     string `json:"title" binding:"required"`
		MemberIDs []int  `json:"memberIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.CreateGroup(c.Request.Context(), userID, req.Title, req.MemberIDs)
	if err != nil {
		log.Printf("create group failed: %v", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        result.Conversation.ID,
		"title":     req.Title,
		"isGroup":   true,
		"members":   h.enrich(c, result.Members),
		"createdAt": result.Conversation.CreatedAt,
	})
}

// Members handles GET /groups/:id/members.
func (h *GroupHandler) Members(c *gin.Context) {
	conversationID, ok := groupID(c)
	if !ok {
		return
	}

	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	members, err := h.svc.ListMembers(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": h.enrich(c, members)})
}

// AddMembers handles POST /groups/:id/members.
func (h *GroupHandler) AddMembers(c *gin.Context) {
	conversationID, ok := groupID(c)
	if !ok {
		return
	}

	var req struct {
		MemberIDs []int `json:"memberIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	added, err := h.svc.AddMembers(c.Request.Context(), conversationID, userID, req.MemberIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": h.enrich(c, added)})
}

// RemoveMember handles DELETE /groups/:id/members/:memberId. Admin-gated
// unless the caller removes themself.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	conversationID, ok := groupID(c)
	if !ok {
		return
	}
	memberID, err := strconv.Atoi(c.Param("memberId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}

	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.svc.RemoveMember(c.Request.Context(), conversationID, userID, memberID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// enrich attaches display names from the user directory. Name resolution is
// best-effort; a directory outage degrades to empty names rather than
// failing membership operations.
func (h *GroupHandler) enrich(c *gin.Context, members []models.GroupMember) []memberResponse {
	ids := make([]int, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}

	nameByID := map[int]string{}
	if h.directory != nil && len(ids) > 0 {
		users, err := h.directory.BulkUsers(c.Request.Context(), ids)
		if err != nil {
			log.Printf("resolve member names failed: %v", err)
		}
		for _, u := range users {
			nameByID[u.ID] = u.Name
		}
	}

	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, memberResponse{
			ID:       m.UserID,
			Name:     nameByID[m.UserID],
			Role:     m.Role,
			JoinedAt: m.JoinedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}

func groupID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, false
	}
	return id, true
}
