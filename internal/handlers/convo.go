package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/forumboard/server/internal/services"
	"github.com/forumboard/server/internal/store"
	"github.com/forumboard/server/types"
	"github.com/go-chi/chi/v5"
)

// ConvoHandler serves the conversation directory.
type ConvoHandler struct {
	convoService *services.ConvoService
	postService  *services.PostService
}

func NewConvoHandler(convoService *services.ConvoService, postService *services.PostService) *ConvoHandler {
	return &ConvoHandler{
		convoService: convoService,
		postService:  postService,
	}
}

// ConvoRouter registers the conversation routes. All of them require an
// authenticated session.
func ConvoRouter(r chi.Router, handler *ConvoHandler, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Get("/convoList", handler.List)
	r.With(requireAuth).Post("/convoList", handler.Create)
}

// ConvoSummary is one directory entry: the conversation plus its message
// count.
type ConvoSummary struct {
	types.Convo
	PostCount int `json:"post_count"`
}

// ConvoListResponse is the render data for the conversation directory.
type ConvoListResponse struct {
	Convos []ConvoSummary `json:"convos"`
}

// List returns all conversations in creation order, each with its post
// count.
func (h *ConvoHandler) List(w http.ResponseWriter, r *http.Request) {
	convos, err := h.convoService.List(r.Context())
	if err != nil {
		log.Printf("list convos: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	summaries := make([]ConvoSummary, 0, len(convos))
	for _, convo := range convos {
		count, err := h.postService.CountByConvo(r.Context(), convo.ID)
		if err != nil {
			log.Printf("count posts for convo %d: %v", convo.ID, err)
			writeError(w, http.StatusInternalServerError, "failed to list conversations")
			return
		}
		summaries = append(summaries, ConvoSummary{Convo: convo, PostCount: count})
	}
	writeJSON(w, http.StatusOK, ConvoListResponse{Convos: summaries})
}

// CreateConvoRequest carries the new conversation's title. The field name
// matches the HTML form input.
type CreateConvoRequest struct {
	ConvoTitle string `json:"convoTitle"`
}

// Create makes a new conversation; duplicate titles are rejected with a
// conflict, even under concurrent creation.
func (h *ConvoHandler) Create(w http.ResponseWriter, r *http.Request) {
	title, err := decodeConvoTitle(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	convo, err := h.convoService.Create(r.Context(), title)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingTitle):
			if isFormRequest(r) {
				writeText(w, http.StatusBadRequest, "Conversation title is required.")
				return
			}
			writeError(w, http.StatusBadRequest, "conversation title is required")
		case errors.Is(err, store.ErrTitleTaken):
			if isFormRequest(r) {
				writeText(w, http.StatusConflict, "A conversation with this title already exists.")
				return
			}
			writeError(w, http.StatusConflict, "a conversation with this title already exists")
		default:
			log.Printf("create convo %q: %v", title, err)
			writeError(w, http.StatusInternalServerError, "failed to create conversation")
		}
		return
	}

	if isFormRequest(r) {
		http.Redirect(w, r, "/convoList", http.StatusFound)
		return
	}
	writeJSON(w, http.StatusCreated, convo)
}

func decodeConvoTitle(r *http.Request) (string, error) {
	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			return "", err
		}
		return r.PostFormValue("convoTitle"), nil
	}

	var req CreateConvoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", err
	}
	return req.ConvoTitle, nil
}
