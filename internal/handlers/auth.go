package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/messagely/apiserver/config"
	"github.com/messagely/apiserver/internal/services"
	"github.com/messagely/apiserver/internal/store"
)

// AuthHandler provides registration and login endpoints.
type AuthHandler struct {
	users    *services.UserService
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users *services.UserService, authCfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{
		users:    users,
		secret:   []byte(authCfg.JWTSecret),
		tokenTTL: authCfg.TokenTTL,
	}
}

// AuthRouter registers the auth routes on the given router.
func AuthRouter(r chi.Router, users *services.UserService, authCfg config.AuthConfig) {
	handler := NewAuthHandler(users, authCfg)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
}

// Register creates an account, stamps the first login and returns a token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	if _, err := h.users.Register(r.Context(), services.RegisterParams{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "username taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	token, err := IssueToken(req.Username, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// Login verifies credentials, stamps last_login_at and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	ok, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid username or password")
		return
	}

	if err := h.users.TouchLogin(r.Context(), req.Username); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update login timestamp")
		return
	}

	token, err := IssueToken(req.Username, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}
