package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/messagely/apiserver/config"
	"github.com/messagely/apiserver/internal/services"
	"github.com/messagely/apiserver/internal/store"
	"github.com/messagely/apiserver/types"
)

// MessageHandler provides HTTP handlers for message resources.
type MessageHandler struct {
	messages          *services.MessageService
	readReceiptPolicy string
}

// NewMessageHandler constructs a handler with the provided service.
func NewMessageHandler(messages *services.MessageService, readReceiptPolicy string) *MessageHandler {
	if readReceiptPolicy == "" {
		readReceiptPolicy = config.ReadReceiptRecipient
	}
	return &MessageHandler{
		messages:          messages,
		readReceiptPolicy: readReceiptPolicy,
	}
}

// MessagesRouter registers message routes on the given router.
func MessagesRouter(r chi.Router, messages *services.MessageService, readReceiptPolicy string) {
	handler := NewMessageHandler(messages, readReceiptPolicy)

	r.Use(RequireLogin)
	r.Post("/", handler.Send)
	r.Route("/{messageID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Post("/read", handler.MarkRead)
	})
}

// Get returns a message detail. Only the sender or the recipient may view it.
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseMessageID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.fetchMessage(w, r, id)
	if err != nil {
		return
	}

	identity, _ := usernameFromContext(r.Context())
	if identity != message.FromUser.Username && identity != message.ToUser.Username {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// Send creates a message from the authenticated user.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.ToUsername = strings.TrimSpace(req.ToUsername)
	if req.ToUsername == "" || strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "to_username and body required")
		return
	}

	identity, _ := usernameFromContext(r.Context())
	message, err := h.messages.Send(r.Context(), identity, req.ToUsername, req.Body)
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("no such user: %s", req.ToUsername))
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, SentMessageResponse{Message: message})
}

// MarkRead stamps a message's read receipt. Which party may do so is a
// policy decision: the recipient under the documented rule, the sender
// under the legacy-compatibility rule.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseMessageID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.fetchMessage(w, r, id)
	if err != nil {
		return
	}

	allowed := message.ToUser.Username
	if h.readReceiptPolicy == config.ReadReceiptSender {
		allowed = message.FromUser.Username
	}

	identity, _ := usernameFromContext(r.Context())
	if identity != allowed {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	receipt, err := h.messages.MarkRead(r.Context(), message)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to mark message read")
		return
	}

	writeJSON(w, http.StatusOK, ReadStatusResponse{ReadStatus: receipt})
}

// fetchMessage loads a message and writes the error response itself on
// failure; a non-nil error means the response is already written.
func (h *MessageHandler) fetchMessage(w http.ResponseWriter, r *http.Request, id int64) (types.Message, error) {
	message, err := h.messages.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return types.Message{}, err
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch message")
		return types.Message{}, err
	}
	return message, nil
}

type SendMessageRequest struct {
	ToUsername string `json:"to_username"`
	Body       string `json:"body"`
}

type MessageResponse struct {
	Message types.Message `json:"message"`
}

type SentMessageResponse struct {
	Message types.SentMessage `json:"message"`
}

type ReadStatusResponse struct {
	ReadStatus types.ReadReceipt `json:"readStatus"`
}
