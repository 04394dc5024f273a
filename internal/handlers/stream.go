package handlers

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/video-captioning/internal/queue"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

const progressIdleTimeout = 30 * time.Minute

// ProgressSubscriber hands out per-job progress subscriptions
type ProgressSubscriber interface {
	Subscribe(jobID string) (<-chan types.Progress, func())
}

// StreamHandler pushes export progress over WebSocket
type StreamHandler struct {
	hub ProgressSubscriber
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub ProgressSubscriber) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Handle streams progress events for the :id job until it completes or fails
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	jobID := c.Params("id")
	events, unsubscribe := h.hub.Subscribe(jobID)
	defer unsubscribe()

	log.Printf("WebSocket progress connection established: %s", jobID)

	// reads only detect the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err := forwardProgress(events, closed, progressIdleTimeout, func(p types.Progress) error {
		return c.WriteJSON(p)
	})
	if err != nil {
		log.Printf("WebSocket write error for %s: %v", jobID, err)
	}
}

// forwardProgress writes events until a terminal status, the client closes,
// or no event arrives within idle
func forwardProgress(events <-chan types.Progress, closed <-chan struct{}, idle time.Duration, write func(types.Progress) error) error {
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if err := write(p); err != nil {
				return err
			}
			if queue.IsTerminal(p.Status) {
				return nil
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idle)
		case <-closed:
			return nil
		case <-timer.C:
			return nil
		}
	}
}
