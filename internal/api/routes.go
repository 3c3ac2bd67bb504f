package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/constructible-engine/pkg/models"
)

// StatusStore is the read-only slice of internal/store.Store the status API
// needs.
type StatusStore interface {
	BatchStatus(ctx context.Context, batchID int32) (models.BatchStatus, error)
}

// StatusSnapshot is the JSON body of GET /status.
type StatusSnapshot struct {
	models.BatchStatus
	BatchID          int32 `json:"batchId"`
	CurrentIteration uint8 `json:"currentIteration"`
}

// SetupRouter builds the status/monitoring gin router (SPEC_FULL.md §4.9).
// Grounded on the teacher's internal/api.SetupRouter, trimmed to the
// read-only surface this domain calls for: the enumeration itself stays
// non-interactive (spec.md Non-goals) regardless of who is watching.
func SetupRouter(store StatusStore, hub *Hub, batchID int32) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/status", func(c *gin.Context) {
		bs, err := store.BatchStatus(c.Request.Context(), batchID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, StatusSnapshot{
			BatchStatus:      bs,
			BatchID:          batchID,
			CurrentIteration: hub.CurrentIteration(),
		})
	})

	r.GET("/ws", func(c *gin.Context) {
		subscribe(hub, c)
	})

	return r
}

func subscribe(h *Hub, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
