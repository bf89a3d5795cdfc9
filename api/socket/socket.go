package socket

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/puoklam/social-graph-backend/middleware"
	"github.com/puoklam/social-graph-backend/ws"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handlers struct {
	logger *zap.Logger
	hub    *ws.Hub
	auth   middleware.Auth
}

func (h *Handlers) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	u := middleware.UserFrom(r.Context())
	c := ws.NewClient(h.hub, conn, u.ID, h.logger)
	if !h.hub.Register(c) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	go c.WritePump()
	go c.ReadPump()
}

func (h *Handlers) SetupRoutes(r *chi.Mux) {
	r.Route("/ws", func(r chi.Router) {
		r.Use(h.auth.Required)
		r.Get("/", h.serveWs)
	})
}

func NewHandlers(logger *zap.Logger, hub *ws.Hub, a middleware.Auth) *Handlers {
	return &Handlers{logger: logger, hub: hub, auth: a}
}
