package overlay

import (
	"context"
	"encoding/json"

	"github.com/alexandrevicenzi/go-sse"
	"github.com/mcdev12/scoreboard/go/internal/livematch"
	"github.com/rs/zerolog/log"
)

// EventsPath is the SSE channel overlay states are published on
const EventsPath = "/overlay/events"

// StateSource is the part of *livematch.Synchronizer the hub consumes
type StateSource interface {
	Snapshot() livematch.State
	Changes() <-chan struct{}
	SetVisible(visible bool)
}

// Hub fans synchronizer snapshots out to WebSocket and SSE viewers and feeds
// viewer visibility back into the synchronizer.
type Hub struct {
	source StateSource
	conns  *ConnectionManager
	events *sse.Server
}

// NewHub wires source to the viewer transports. events may be nil.
func NewHub(source StateSource, conns *ConnectionManager, events *sse.Server) *Hub {
	conns.OnVisibilityChange(source.SetVisible)
	return &Hub{source: source, conns: conns, events: events}
}

// View returns the current overlay view
func (h *Hub) View() View {
	return NewView(h.source.Snapshot())
}

// Run publishes every snapshot change until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("overlay hub started")
	h.publish()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("overlay hub shutting down")
			return
		case <-h.source.Changes():
			h.publish()
		}
	}
}

func (h *Hub) publish() {
	view := h.View()
	data, err := json.Marshal(view)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal overlay view")
		return
	}

	h.conns.Broadcast(data)
	if h.events != nil {
		h.events.SendMessage(EventsPath, sse.NewMessage("", string(data), view.Type))
	}
}
