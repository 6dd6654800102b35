package overlay

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/alexandrevicenzi/go-sse"
	"github.com/mcdev12/scoreboard/go/internal/httpjson"
	"github.com/rs/zerolog/log"
)

//go:embed templates/overlay.html
var templates embed.FS

var pageTemplate = template.Must(template.New("overlay.html").Funcs(template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}).ParseFS(templates, "templates/overlay.html"))

// Handler serves the overlay page, its live channels and the state endpoint
type Handler struct {
	hub    *Hub
	conns  *ConnectionManager
	events *sse.Server
}

func NewHandler(hub *Hub, conns *ConnectionManager, events *sse.Server) *Handler {
	return &Handler{hub: hub, conns: conns, events: events}
}

// RegisterRoutes registers overlay routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /overlay", h.HandlePage)
	mux.HandleFunc("GET /overlay/ws", h.HandleWebSocket)
	mux.HandleFunc("GET /api/overlay/state", h.HandleState)
	mux.HandleFunc("GET /api/overlay/stats", h.HandleStats)
	if h.events != nil {
		mux.Handle("GET "+EventsPath, h.events)
	}
}

// HandlePage renders the scoreboard with the current state already filled in
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, h.hub.View()); err != nil {
		log.Error().Err(err).Msg("failed to render overlay page")
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := h.conns.UpgradeConnection(w, r); err != nil {
		// the upgrader has already replied to the client
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
	}
}

// HandleState handles GET /api/overlay/state
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	httpjson.Write(w, http.StatusOK, h.hub.View())
}

type statsResponse struct {
	Viewers        int `json:"viewers"`
	VisibleViewers int `json:"visible_viewers"`
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	total, visible := h.conns.Stats()
	httpjson.Write(w, http.StatusOK, statsResponse{Viewers: total, VisibleViewers: visible})
}
