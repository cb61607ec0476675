package handlers

import (
	"log"
	"net/http"

	"github.com/forumboard/server/internal/hub"
	"github.com/forumboard/server/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cookie-or-ticket auth below is the actual gate; cross-origin
		// pages cannot read either.
		return true
	},
}

// WebSocketHandler upgrades authenticated connections onto the hub.
type WebSocketHandler struct {
	chatHub     *hub.Hub
	sessions    *session.Manager
	authHandler *AuthHandler
}

func NewWebSocketHandler(chatHub *hub.Hub, sessions *session.Manager, authHandler *AuthHandler) *WebSocketHandler {
	return &WebSocketHandler{
		chatHub:     chatHub,
		sessions:    sessions,
		authHandler: authHandler,
	}
}

// WebSocketRouter registers the websocket endpoint.
func WebSocketRouter(r chi.Router, handler *WebSocketHandler) {
	r.Get("/chat/ws", handler.Serve)
}

// Serve authenticates the request and hands the connection to the hub.
// The username bound to the socket always comes from the session cookie or
// a verified ticket, never from a frame the socket sends later.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade for %q: %v", username, err)
		return
	}

	hub.NewClient(h.chatHub, conn, username).Start()
}

func (h *WebSocketHandler) authenticate(r *http.Request) (string, bool) {
	if username, ok := h.sessions.CurrentUser(r); ok {
		return username, true
	}

	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		return "", false
	}
	username, err := h.authHandler.VerifyTicket(ticket)
	if err != nil {
		return "", false
	}
	return username, true
}
