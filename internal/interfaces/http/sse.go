package http

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/bid-reconciler/internal/domain/event"
)

// eventBuffer bounds the events queued for one slow stream; overflow is dropped
const eventBuffer = 32

// StreamEvents handles GET /api/runs/:id/events. It sends the current
// snapshot, then every lifecycle event of the run, and ends after the run
// is imported or cancelled.
func (h *Handlers) StreamEvents(c *gin.Context) {
	runID := c.Param("id")
	snap, err := h.importService.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.fail(c, "Failed to open event stream", err)
		return
	}

	events := make(chan *event.Event, eventBuffer)
	name := "sse-" + uuid.NewString()
	h.dispatcher.SubscribeAll(name, func(ctx context.Context, evt *event.Event) error {
		if evt.RunID != runID {
			return nil
		}
		select {
		case events <- evt:
		default:
			h.logger.Error("Event stream lagging, event dropped", "run_id", runID, "event_type", evt.Type)
		}
		return nil
	})
	defer h.dispatcher.UnsubscribeAll(name)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	initial := true
	closed := snap.State.IsTerminal()
	c.Stream(func(w io.Writer) bool {
		if initial {
			initial = false
			c.SSEvent("snapshot", snap)
			return !closed
		}

		select {
		case evt := <-events:
			c.SSEvent(evt.Type.String(), evt)
			return !evt.Type.IsTerminal()
		case <-c.Request.Context().Done():
			return false
		case <-h.shutdown:
			return false
		}
	})
}
