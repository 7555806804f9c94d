package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/messagely/apiserver/internal/services"
	"github.com/messagely/apiserver/internal/store"
	"github.com/messagely/apiserver/types"
)

// UserHandler provides HTTP handlers for user resources.
type UserHandler struct {
	users    *services.UserService
	messages *services.MessageService
}

// NewUserHandler constructs a handler with the provided services.
func NewUserHandler(users *services.UserService, messages *services.MessageService) *UserHandler {
	return &UserHandler{
		users:    users,
		messages: messages,
	}
}

// UsersRouter registers user routes on the given router.
func UsersRouter(r chi.Router, users *services.UserService, messages *services.MessageService) {
	handler := NewUserHandler(users, messages)

	r.With(RequireLogin).Get("/", handler.List)
	r.Route("/{username}", func(r chi.Router) {
		r.Use(RequireCorrectUser)
		r.Get("/", handler.Get)
		r.Get("/to", handler.ListTo)
		r.Get("/from", handler.ListFrom)
	})
}

// List returns every user's public profile.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, UserListResponse{Users: users})
}

// Get returns a user's full profile including timestamps.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.users.Get(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no such user: %s", username))
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: user})
}

// ListTo returns messages addressed to the user.
func (h *UserHandler) ListTo(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	messages, err := h.messages.ListTo(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, InboxResponse{Messages: messages})
}

// ListFrom returns messages sent by the user.
func (h *UserHandler) ListFrom(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	messages, err := h.messages.ListFrom(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, OutboxResponse{Messages: messages})
}

type UserListResponse struct {
	Users []types.Profile `json:"users"`
}

type UserResponse struct {
	User types.User `json:"user"`
}

type InboxResponse struct {
	Messages []types.InboxMessage `json:"messages"`
}

type OutboxResponse struct {
	Messages []types.OutboxMessage `json:"messages"`
}
