// Package api implements the optional status/monitoring surface (spec
// component C9): a read-only HTTP + WebSocket layer, grounded on the
// teacher's internal/api/{routes,websocket}.go Hub pattern, adapted to
// broadcast coordinator lifecycle events instead of CoinJoin alerts. It has
// no bearing on the core loop's correctness — it is wired in as an
// EventSink the coordinator calls fire-and-forget.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is broadcast to every connected WebSocket client per lifecycle
// transition (SPEC_FULL.md §3).
type Event struct {
	Type      string    `json:"type"` // "checkout" | "checkin" | "rollover"
	BatchID   int32     `json:"batchId"`
	Iteration uint8     `json:"iteration"`
	PointID   int64     `json:"pointId,omitempty"`
	LeaseID   string    `json:"leaseId,omitempty"`
	Promoted  int64     `json:"promoted,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub maintains active WebSocket clients and broadcasts Events. It also
// tracks the current iteration for the /status handler.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex

	currentIteration atomic.Uint32
}

// NewHub constructs a Hub; callers must run Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Run drains the broadcast channel into every connected client. It never
// blocks the coordinator: emit drops the event if the channel is full.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("status api: websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

func (h *Hub) emit(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("status api: marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		log.Printf("status api: broadcast buffer full, dropping %s event", ev.Type)
	}
}

// Checkout implements coordinator.EventSink.
func (h *Hub) Checkout(batchID int32, iteration uint8, pointID int64, leaseID string) {
	h.currentIteration.Store(uint32(iteration))
	h.emit(Event{Type: "checkout", BatchID: batchID, Iteration: iteration, PointID: pointID, LeaseID: leaseID, Timestamp: time.Now()})
}

// Checkin implements coordinator.EventSink.
func (h *Hub) Checkin(batchID int32, iteration uint8, pointID int64) {
	h.emit(Event{Type: "checkin", BatchID: batchID, Iteration: iteration, PointID: pointID, Timestamp: time.Now()})
}

// Rollover implements coordinator.EventSink.
func (h *Hub) Rollover(batchID int32, iteration uint8, promoted int64) {
	h.currentIteration.Store(uint32(iteration))
	h.emit(Event{Type: "rollover", BatchID: batchID, Iteration: iteration, Promoted: promoted, Timestamp: time.Now()})
}

// CurrentIteration returns the most recently observed iteration number.
func (h *Hub) CurrentIteration() uint8 { return uint8(h.currentIteration.Load()) }
