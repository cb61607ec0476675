package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/forumboard/server/internal/hub"
	"github.com/forumboard/server/internal/services"
	"github.com/forumboard/server/internal/session"
	"github.com/forumboard/server/internal/store"
	"github.com/forumboard/server/types"
	"github.com/go-chi/chi/v5"
)

// ChatHandler serves message history and posting for conversations, and
// fans new posts out through the broadcast hub.
type ChatHandler struct {
	convoService *services.ConvoService
	postService  *services.PostService
	chatHub      *hub.Hub
}

func NewChatHandler(convoService *services.ConvoService, postService *services.PostService, chatHub *hub.Hub) *ChatHandler {
	return &ChatHandler{
		convoService: convoService,
		postService:  postService,
		chatHub:      chatHub,
	}
}

// ChatRouter registers the chat routes. History and posting require an
// authenticated session.
func ChatRouter(r chi.Router, handler *ChatHandler, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Get("/chat", handler.HistoryByTitle)
	r.With(requireAuth).Get("/chat/{convoID}", handler.History)
	r.With(requireAuth).Post("/chat/{convoID}", handler.Post)
}

// ChatHistoryResponse is the render data for a conversation's messages.
type ChatHistoryResponse struct {
	Convo    types.Convo  `json:"convo"`
	Messages []types.Post `json:"messages"`
}

// HistoryByTitle resolves a conversation by title, the lookup the
// conversation list page links with.
func (h *ChatHandler) HistoryByTitle(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	convo, err := h.convoService.GetByTitle(r.Context(), title)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		log.Printf("find convo %q: %v", title, err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	h.writeHistory(w, r, convo)
}

// History returns a conversation's messages in creation order.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	convoID, err := convoIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	convo, err := h.convoService.GetByID(r.Context(), convoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		log.Printf("find convo %d: %v", convoID, err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	h.writeHistory(w, r, convo)
}

func (h *ChatHandler) writeHistory(w http.ResponseWriter, r *http.Request, convo types.Convo) {
	messages, err := h.postService.ListByConvo(r.Context(), convo.ID)
	if err != nil {
		if errors.Is(err, store.ErrConvoNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		log.Printf("list posts for convo %d: %v", convo.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, ChatHistoryResponse{Convo: convo, Messages: messages})
}

// PostMessageRequest carries a chat message body.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// Post appends a message to the conversation as the session's user and
// fans it out to all connected clients.
func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	current, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	convoID, err := convoIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	text, err := decodeMessageText(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	post, err := h.postService.Create(r.Context(), convoID, current.Username, text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingText):
			writeError(w, http.StatusBadRequest, "message text is required")
		case errors.Is(err, store.ErrConvoNotFound):
			writeError(w, http.StatusNotFound, "conversation not found")
		default:
			log.Printf("post to convo %d: %v", convoID, err)
			writeError(w, http.StatusInternalServerError, "failed to save message")
		}
		return
	}

	// Fan-out is best-effort; the post is already durable.
	if h.chatHub != nil {
		if err := h.chatHub.PublishChat(r.Context(), post.Author, post.Text); err != nil {
			log.Printf("broadcast post %d: %v", post.ID, err)
		}
	}

	writeJSON(w, http.StatusCreated, post)
}

func convoIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "convoID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid conversation id")
	}
	return id, nil
}

func decodeMessageText(r *http.Request) (string, error) {
	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			return "", err
		}
		return r.PostFormValue("text"), nil
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", err
	}
	return req.Text, nil
}
