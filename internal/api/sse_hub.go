package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"

	"attune/domain/core"
	"attune/internal/sequence"

	"github.com/gin-gonic/gin"
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	SessionID string
	Channel   chan ExchangeEvent
}

// ExchangeEvent represents a reconciliation state change for SSE streaming.
// Ordering is carried by SequenceNo, not the timestamp.
type ExchangeEvent struct {
	SessionID  string                 `json:"session_id"`
	EventType  string                 `json:"event_type"`
	SequenceNo int64                  `json:"sequence_no"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// SSEHub manages Server-Sent Events for real-time exchange updates. Delivery
// is at-least-once best-effort; clients reconcile with a full-state fetch.
type SSEHub struct {
	clients    map[string]map[chan ExchangeEvent]bool
	clientsMu  sync.RWMutex
	register   chan SSEClient
	unregister chan SSEClient
	broadcast  chan ExchangeEvent
	sequences  *sequence.Allocator
	done       chan struct{}
	closeOnce  sync.Once
}

// NewSSEHub creates a new SSE hub
func NewSSEHub(sequences *sequence.Allocator) *SSEHub {
	hub := &SSEHub{
		clients:    make(map[string]map[chan ExchangeEvent]bool),
		register:   make(chan SSEClient, 10),
		unregister: make(chan SSEClient, 10),
		broadcast:  make(chan ExchangeEvent, 100),
		sequences:  sequences,
		done:       make(chan struct{}),
	}

	go hub.run()
	return hub
}

// Shutdown stops the hub loop
func (h *SSEHub) Shutdown() {
	h.closeOnce.Do(func() { close(h.done) })
}

// run processes SSE hub operations
func (h *SSEHub) run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[chan ExchangeEvent]bool)
			}
			h.clients[client.SessionID][client.Channel] = true
			log.Printf("[SSE] Client registered for session %s (total clients: %d)",
				client.SessionID, len(h.clients[client.SessionID]))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if clients, exists := h.clients[client.SessionID]; exists {
				delete(clients, client.Channel)
				close(client.Channel)
				log.Printf("[SSE] Client unregistered from session %s (remaining clients: %d)",
					client.SessionID, len(clients))
				if len(clients) == 0 {
					delete(h.clients, client.SessionID)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			if clients, exists := h.clients[event.SessionID]; exists {
				for clientChan := range clients {
					select {
					case clientChan <- event:
						// Event sent successfully
					default:
						// Client channel is full, skip; the client catches up
						// via full-state fetch
						log.Printf("[SSE] Client channel full for session %s, skipping event",
							event.SessionID)
					}
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Publish satisfies ports.Notifier: stamps a per-session sequence number and
// broadcasts to every client on the session
func (h *SSEHub) Publish(_ context.Context, sessionID core.SessionID, eventType string, payload map[string]interface{}) {
	event := ExchangeEvent{
		SessionID:  sessionID.String(),
		EventType:  eventType,
		SequenceNo: h.sequences.Next("events:" + sessionID.String()),
		Payload:    payload,
		Timestamp:  time.Now(),
	}

	select {
	case h.broadcast <- event:
	default:
		log.Printf("[SSE] Broadcast channel full, dropping event: %s", event.EventType)
	}
}

// HandleSSE handles Server-Sent Events endpoint
func (h *SSEHub) HandleSSE(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(400, gin.H{"error": "session_id parameter required"})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Cache-Control")

	// Create client channel
	clientChan := make(chan ExchangeEvent, 10)

	// Register client
	select {
	case h.register <- SSEClient{SessionID: sessionID, Channel: clientChan}:
	default:
		c.JSON(500, gin.H{"error": "SSE hub registration failed"})
		return
	}

	defer func() {
		select {
		case h.unregister <- SSEClient{SessionID: sessionID, Channel: clientChan}:
		default:
			// Hub might be overloaded, just leave channel for GC
		}
	}()

	// Keep connection alive and stream events
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event := <-clientChan:
			eventJSON, err := json.Marshal(event)
			if err != nil {
				log.Printf("[SSE] Failed to marshal event: %v", err)
				return true
			}

			c.SSEvent("exchange", string(eventJSON))
			return true

		case <-time.After(30 * time.Second):
			// Send ping to keep connection alive
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			// Client disconnected
			return false
		}
	})
}

// GetActiveSessions returns sessions with active SSE clients
func (h *SSEHub) GetActiveSessions() []string {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	sessions := make([]string, 0, len(h.clients))
	for sessionID := range h.clients {
		sessions = append(sessions, sessionID)
	}
	return sessions
}

// GetClientCount returns the number of active clients for a session
func (h *SSEHub) GetClientCount(sessionID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	if clients, exists := h.clients[sessionID]; exists {
		return len(clients)
	}
	return 0
}
