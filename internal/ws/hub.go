package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
)

// Hub fans persisted messages out to currently-connected sessions. It keeps
// two registries: conversation-scoped rooms and per-user global
// connections (clients not yet subscribed to a specific conversation).
// Delivery is best-effort and never persisted; disconnected clients catch
// up through history on reconnect.
type Hub struct {
	rooms    map[int]map[*websocket.Conn]bool
	users    map[int]map[*websocket.Conn]bool
	info     map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
	queue    chan broadcast
	stopOnce sync.Once
	done     chan struct{}
}

type broadcast struct {
	participants []int
	event        models.MessageEvent
}

const queueCapacity = 256

// NewHub creates an empty hub. Call Run in a goroutine before publishing.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[int]map[*websocket.Conn]bool),
		users: make(map[int]map[*websocket.Conn]bool),
		info:  make(map[*websocket.Conn]ConnInfo),
		queue: make(chan broadcast, queueCapacity),
		done:  make(chan struct{}),
	}
}

// Run drains the publish queue on a single goroutine, which preserves
// per-conversation emit order: events are delivered in the order they were
// enqueued after commit.
func (h *Hub) Run() {
	for {
		select {
		case b := <-h.queue:
			h.deliver(b)
		case <-h.done:
			return
		}
	}
}

// Stop terminates the dispatch loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish enqueues an event for every session of the given participants.
// It never blocks the caller: when the queue is full the event is dropped
// and counted, per the best-effort delivery contract.
func (h *Hub) Publish(participants []int, event models.MessageEvent) {
	select {
	case h.queue <- broadcast{participants: participants, event: event}:
	default:
		observability.IncBroadcastDropped()
		log.Printf("broadcast queue full, dropping event conversation=%d", event.ConversationID)
	}
}

// AddRoomClient registers a connection on a conversation channel.
func (h *Hub) AddRoomClient(conversationID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[conversationID][conn] = true
	h.info[conn] = info
}

// RemoveRoomClient removes a conversation channel connection.
func (h *Hub) RemoveRoomClient(conversationID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[conversationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	delete(h.info, conn)
}

// AddUserClient registers a connection on the global channel for a user.
func (h *Hub) AddUserClient(userID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[*websocket.Conn]bool)
	}
	h.users[userID][conn] = true
	h.info[conn] = info
}

// RemoveUserClient removes a global channel connection.
func (h *Hub) RemoveUserClient(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
	delete(h.info, conn)
}

func (h *Hub) deliver(b broadcast) {
	room, global := h.snapshot(b.event.ConversationID, b.participants)

	for conn := range room {
		h.write(conn, b.event, "room", b.event.ConversationID, 0)
	}

	// The global channel carries the identical payload under the catch-all
	// event name so clients without a room subscription still sync.
	globalEvent := b.event
	if globalEvent.Type == models.EventNewMessage {
		globalEvent.Type = models.EventReceiveMessage
	}
	for userID, conns := range global {
		for conn := range conns {
			h.write(conn, globalEvent, "global", b.event.ConversationID, userID)
		}
	}
}

func (h *Hub) snapshot(conversationID int, participants []int) (map[*websocket.Conn]bool, map[int]map[*websocket.Conn]bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	allowed := make(map[int]struct{}, len(participants))
	for _, userID := range participants {
		allowed[userID] = struct{}{}
	}

	// Room subscriptions are authorized at upgrade time, but membership can
	// change while a socket stays open. Delivery re-checks each connection
	// against the current participant set, so a removed member's open room
	// subscription goes silent immediately.
	room := make(map[*websocket.Conn]bool, len(h.rooms[conversationID]))
	for conn := range h.rooms[conversationID] {
		if _, ok := allowed[h.info[conn].UserID]; !ok {
			continue
		}
		room[conn] = true
	}

	global := make(map[int]map[*websocket.Conn]bool)
	for _, userID := range participants {
		conns, ok := h.users[userID]
		if !ok {
			continue
		}
		copied := make(map[*websocket.Conn]bool, len(conns))
		for conn := range conns {
			copied[conn] = true
		}
		global[userID] = copied
	}
	return room, global
}

func (h *Hub) write(conn *websocket.Conn, event models.MessageEvent, kind string, conversationID, userID int) {
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("websocket write error: %v", err)
		conn.Close()
		if kind == "room" {
			h.RemoveRoomClient(conversationID, conn)
		} else {
			h.RemoveUserClient(userID, conn)
		}
		observability.IncWSEvent(kind, "ws_error")
	}
}
