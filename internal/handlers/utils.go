package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const contextUsernameKey contextKey = "username"

// ErrorResponse is the error payload; every error body carries a message.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Healthz is a liveness probe.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func usernameFromContext(ctx context.Context) (string, error) {
	username, _ := ctx.Value(contextUsernameKey).(string)
	if strings.TrimSpace(username) == "" {
		return "", errors.New("missing identity")
	}
	return username, nil
}

func parseMessageID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "messageID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid message id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}
