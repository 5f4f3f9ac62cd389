package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"conversation-service/internal/auth"
	"conversation-service/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// canReader is the authorization check consulted before a conversation
// subscription is accepted.
type canReader interface {
	CanRead(ctx context.Context, conversationID, userID int) (bool, error)
}

// SubscriptionHandler upgrades websocket connections for the global and
// conversation-scoped channels.
type SubscriptionHandler struct {
	hub      *Hub
	guard    canReader
	verifier *auth.Verifier
}

// NewSubscriptionHandler constructs a SubscriptionHandler.
func NewSubscriptionHandler(hub *Hub, g canReader, verifier *auth.Verifier) *SubscriptionHandler {
	return &SubscriptionHandler{hub: hub, guard: g, verifier: verifier}
}

// HandleGlobal subscribes the caller to their global channel: every message
// in any of their conversations arrives as receive_message.
func (h *SubscriptionHandler) HandleGlobal(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := h.connInfo(c, userID)
	h.hub.AddUserClient(userID, conn, info)
	observability.IncWSActive("global")
	observability.IncWSEvent("global", "ws_connect")

	go func() {
		defer func() {
			h.hub.RemoveUserClient(userID, conn)
			observability.DecWSActive("global")
			observability.IncWSEvent("global", "ws_disconnect")
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HandleConversation subscribes the caller to a single conversation
// channel. Membership is verified before the upgrade; a non-participant is
// denied outright.
func (h *SubscriptionHandler) HandleConversation(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("conversation-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	allowed, err := h.guard.CanRead(c.Request.Context(), conversationID, userID)
	if err != nil || !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for conversation"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := h.connInfo(c, userID)
	h.hub.AddRoomClient(conversationID, conn, info)
	observability.IncWSActive("room")
	observability.IncWSEvent("room", "ws_connect")

	go func() {
		defer func() {
			h.hub.RemoveRoomClient(conversationID, conn)
			observability.DecWSActive("room")
			observability.IncWSEvent("room", "ws_disconnect")
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *SubscriptionHandler) authenticate(c *gin.Context) (int, bool) {
	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}

	parts := strings.Split(token, " ")
	if len(parts) != 2 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return 0, false
	}

	userID, err := h.verifier.Verify(parts[1])
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return 0, false
	}
	return userID, true
}

func (h *SubscriptionHandler) connInfo(c *gin.Context, userID int) ConnInfo {
	return ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}
}
