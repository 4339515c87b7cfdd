// Live proposal event streams (Server-Sent Events).
//
// This file exposes the real-time side of the API:
//   - GET /rfps/{id}/stream   (events for one RFP)
//   - GET /proposals/stream   (all proposal activity)
//
// Clients reconnecting with a Last-Event-ID header first receive the logged
// events they missed, then switch to live delivery. A comment heartbeat every
// 30 seconds keeps intermediaries from closing idle connections.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/procurehub/go-procurement-backend/internal/fanout"
	"github.com/procurehub/go-procurement-backend/internal/http/middleware"
)

const heartbeatInterval = 30 * time.Second

// StreamRFPEvents godoc
// @ID          streamRFPEvents
// @Summary     Stream proposal events for one RFP
// @Description Server-Sent Events. Emits new-proposal and proposal-update events as vendor replies arrive for the RFP. Supports Last-Event-ID replay.
// @Tags        Streams
// @Produce     text/event-stream
//
// @Param       id             path    string  true   "RFP ID"
// @Param       Last-Event-ID  header  string  false  "Resume after this event id"
//
// @Success     200  "Event stream"
// @Router      /rfps/{id}/stream [get]
func (h *Handlers) StreamRFPEvents(c *gin.Context) {
	h.serveStream(c, fanout.RFPChannel(c.Param("id")))
}

// StreamProposalEvents godoc
// @ID          streamProposalEvents
// @Summary     Stream all proposal activity
// @Description Server-Sent Events. Emits proposal-update events for every RFP. Supports Last-Event-ID replay.
// @Tags        Streams
// @Produce     text/event-stream
//
// @Param       Last-Event-ID  header  string  false  "Resume after this event id"
//
// @Success     200  "Event stream"
// @Router      /proposals/stream [get]
func (h *Handlers) StreamProposalEvents(c *gin.Context) {
	h.serveStream(c, fanout.GlobalChannel)
}

// serveStream replays missed events, then relays live ones until the client
// disconnects. Events carry the IDs assigned at publish time so replay and
// live delivery share one sequence per channel.
func (h *Handlers) serveStream(c *gin.Context, channel string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "streaming not supported")
		return
	}

	done := middleware.TrackStreamClient()
	defer done()

	lastEventID := fanout.ParseLastEventID(c.GetHeader("Last-Event-ID"))

	ctx := c.Request.Context()

	// Replay history the client missed.
	history, err := h.stream.ReplayFrom(ctx, channel, lastEventID)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("channel", channel).Msg("event replay failed")
	}
	for i := range history {
		writeEvent(c, &history[i])
	}
	if len(history) > 0 {
		flusher.Flush()
	}

	ch, unsub := h.stream.Subscribe(channel)
	defer unsub()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	flusher.Flush()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			writeEvent(c, &ev)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(c.Writer, ": heartbeat\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, ev *fanout.Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("event", ev.Type).Msg("event payload not serializable")
		return
	}
	fmt.Fprintf(c.Writer, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
}
