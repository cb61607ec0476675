package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/forumboard/server/internal/services"
	"github.com/forumboard/server/internal/session"
	"github.com/forumboard/server/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	maxAttachmentMemory = 8 << 20
	maxAttachmentBytes  = 64 << 20
	formFieldFile       = "file"
)

// AttachmentHandler serves file uploads into conversations.
type AttachmentHandler struct {
	attachmentService *services.AttachmentService
}

func NewAttachmentHandler(attachmentService *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// AttachmentRouter registers the attachment routes.
func AttachmentRouter(r chi.Router, handler *AttachmentHandler, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Get("/chat/{convoID}/attachments", handler.List)
	r.With(requireAuth).Post("/chat/{convoID}/attachments", handler.Upload)
	r.With(requireAuth).Get("/attachments/{attachmentID}", handler.Download)
}

// Upload stores a multipart file upload against a conversation.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.attachmentService.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "attachments are not configured")
		return
	}

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

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentBytes)
	if err := r.ParseMultipartForm(maxAttachmentMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	attachment, err := h.attachmentService.Upload(
		r.Context(),
		convoID,
		current.Username,
		header.Filename,
		contentType,
		header.Size,
		file,
	)
	if err != nil {
		if errors.Is(err, store.ErrConvoNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		log.Printf("upload attachment to convo %d: %v", convoID, err)
		writeError(w, http.StatusInternalServerError, "failed to store attachment")
		return
	}

	writeJSON(w, http.StatusCreated, attachment)
}

// List returns a conversation's attachments in upload order.
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	convoID, err := convoIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	attachments, err := h.attachmentService.ListByConvo(r.Context(), convoID)
	if err != nil {
		log.Printf("list attachments for convo %d: %v", convoID, err)
		writeError(w, http.StatusInternalServerError, "failed to list attachments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": attachments})
}

// Download streams an attachment's contents.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	if !h.attachmentService.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "attachments are not configured")
		return
	}

	raw := chi.URLParam(r, "attachmentID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	attachment, reader, err := h.attachmentService.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "attachment not found")
			return
		}
		log.Printf("open attachment %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to open attachment")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+attachment.Filename+`"`)
	if attachment.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(attachment.Size, 10))
	}
	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("stream attachment %d: %v", id, err)
	}
}
