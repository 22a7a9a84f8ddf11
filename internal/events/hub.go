// Package events implements JobEventHub: a websocket broadcast hub that
// fans out job lifecycle events to connected observers (SPEC_FULL.md's
// supplemented real-time observability surface). Adapted from the teacher's
// JobWSHub (internal/services/jobmanager/websocket.go): the register/
// unregister/broadcast loop and slow-client eviction carry over, but the
// teacher's hub had no notion of a client caring about one symbol versus
// another — every observer got every price tick. A dashboard watching
// GeneratePlan jobs has no use for ExecutePlan noise, so ServeWS accepts a
// `job_type` query parameter and the broadcast loop filters per connected
// client instead of fanning every event out to everyone.
package events

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/processor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub manages websocket clients and broadcasts job lifecycle events.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan processor.JobLifecycleEvent
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *common.Logger
}

// client represents one connected websocket observer. A nil/empty jobTypes
// subscribes to every job type; otherwise only events for a Job.Type present
// in jobTypes are delivered.
type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	jobTypes map[string]struct{}
}

// wants reports whether event should be delivered to c given its
// subscription filter.
func (c *client) wants(event processor.JobLifecycleEvent) bool {
	if len(c.jobTypes) == 0 {
		return true
	}
	if event.Job == nil {
		return true
	}
	_, ok := c.jobTypes[event.Job.Type]
	return ok
}

// parseJobTypes splits a comma-separated `job_type` query value into a
// filter set. An empty or all-blank value yields a nil set (subscribe to
// everything).
func parseJobTypes(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}
	set := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			set[part] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

var _ processor.EventSink = (*Hub)(nil)

// NewHub returns a Hub that must be started with Run before it can accept
// clients or deliver events.
func NewHub(logger *common.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan processor.JobLifecycleEvent, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main event loop. Intended to be launched as a
// goroutine by the app wiring.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Debug().Int("clients", len(h.clients)).Msg("job event client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Debug().Int("clients", len(h.clients)).Msg("job event client disconnected")

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn().Str("error", err.Error()).Msg("failed to marshal job lifecycle event")
				continue
			}

			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				if !c.wants(event) {
					continue
				}
				select {
				case c.send <- data:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, c := range slow {
					delete(h.clients, c)
					close(c.send)
				}
				h.mu.Unlock()
			}
		}
	}
}

// Stop signals the hub's event loop to exit. Safe to call more than once.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Publish implements processor.EventSink, feeding job lifecycle transitions
// into the broadcast loop. Never blocks: a full broadcast channel drops the
// event and logs a warning rather than stalling the Processor.
func (h *Hub) Publish(event processor.JobLifecycleEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Msg("job event broadcast channel full, dropping event")
	}
}

// ServeWS upgrades an HTTP connection to a websocket and registers the
// client to receive broadcast events. An optional `job_type` query
// parameter (comma-separated) restricts delivery to those job types; when
// absent, the client receives every job's lifecycle events.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Str("error", err.Error()).Msg("job event websocket upgrade failed")
		return
	}

	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		jobTypes: parseJobTypes(r.URL.Query().Get("job_type")),
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
