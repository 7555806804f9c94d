package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/messagely/apiserver/config"
	"github.com/messagely/apiserver/internal/services"
	"github.com/messagely/apiserver/internal/store"
	"github.com/messagely/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// memUserRepo is an in-memory services.UserRepository.
type memUserRepo struct {
	users map[string]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]types.User)}
}

func (m *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if _, exists := m.users[user.Username]; exists {
		return types.User{}, store.ErrDuplicate
	}
	now := time.Now()
	user.JoinAt = now
	user.LastLoginAt = now
	m.users[user.Username] = user
	return user, nil
}

func (m *memUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	user, ok := m.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserRepo) TouchLogin(ctx context.Context, username string) error {
	user, ok := m.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.LastLoginAt = time.Now()
	m.users[username] = user
	return nil
}

func (m *memUserRepo) List(ctx context.Context) ([]types.Profile, error) {
	profiles := make([]types.Profile, 0, len(m.users))
	for _, user := range m.users {
		profiles = append(profiles, types.Profile{
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Phone:     user.Phone,
		})
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Username < profiles[j].Username })
	return profiles, nil
}

func (m *memUserRepo) profile(username string) types.Profile {
	user := m.users[username]
	return types.Profile{
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
	}
}

// memMessageRepo is an in-memory services.MessageRepository backed by
// memUserRepo for the profile joins.
type memMessageRepo struct {
	users  *memUserRepo
	nextID int64
	rows   []memMessage
}

type memMessage struct {
	id     int64
	from   string
	to     string
	body   string
	sentAt time.Time
	readAt *time.Time
}

func newMemMessageRepo(users *memUserRepo) *memMessageRepo {
	return &memMessageRepo{users: users, nextID: 1}
}

func (m *memMessageRepo) Create(ctx context.Context, from, to, body string) (types.SentMessage, error) {
	if _, ok := m.users.users[to]; !ok {
		return types.SentMessage{}, store.ErrInvalidReference
	}
	row := memMessage{id: m.nextID, from: from, to: to, body: body, sentAt: time.Now()}
	m.nextID++
	m.rows = append(m.rows, row)
	return types.SentMessage{
		ID:           row.id,
		FromUsername: row.from,
		ToUsername:   row.to,
		Body:         row.body,
		SentAt:       row.sentAt,
	}, nil
}

func (m *memMessageRepo) Get(ctx context.Context, id int64) (types.Message, error) {
	for _, row := range m.rows {
		if row.id == id {
			return types.Message{
				ID:       row.id,
				Body:     row.body,
				SentAt:   row.sentAt,
				ReadAt:   row.readAt,
				FromUser: m.users.profile(row.from),
				ToUser:   m.users.profile(row.to),
			}, nil
		}
	}
	return types.Message{}, store.ErrNotFound
}

func (m *memMessageRepo) MarkRead(ctx context.Context, id int64) (types.ReadReceipt, error) {
	for i := range m.rows {
		if m.rows[i].id == id {
			now := time.Now()
			m.rows[i].readAt = &now
			return types.ReadReceipt{ID: id, ReadAt: now}, nil
		}
	}
	return types.ReadReceipt{}, store.ErrNotFound
}

func (m *memMessageRepo) ListFrom(ctx context.Context, username string) ([]types.OutboxMessage, error) {
	messages := make([]types.OutboxMessage, 0)
	for _, row := range m.rows {
		if row.from == username {
			messages = append(messages, types.OutboxMessage{
				ID:     row.id,
				Body:   row.body,
				SentAt: row.sentAt,
				ReadAt: row.readAt,
				ToUser: m.users.profile(row.to),
			})
		}
	}
	return messages, nil
}

func (m *memMessageRepo) ListTo(ctx context.Context, username string) ([]types.InboxMessage, error) {
	messages := make([]types.InboxMessage, 0)
	for _, row := range m.rows {
		if row.to == username {
			messages = append(messages, types.InboxMessage{
				ID:       row.id,
				Body:     row.body,
				SentAt:   row.sentAt,
				ReadAt:   row.readAt,
				FromUser: m.users.profile(row.from),
			})
		}
	}
	return messages, nil
}

type testEnv struct {
	t      *testing.T
	router *chi.Mux
}

func newTestEnv(t *testing.T, readReceiptPolicy string) *testEnv {
	t.Helper()

	users := newMemUserRepo()
	messages := newMemMessageRepo(users)
	userService := services.NewUserService(users, bcrypt.MinCost)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messageService := services.NewMessageService(messages, nil, logger)

	authCfg := config.AuthConfig{
		JWTSecret:         testSecret,
		TokenTTL:          time.Hour,
		BcryptCost:        bcrypt.MinCost,
		ReadReceiptPolicy: readReceiptPolicy,
	}

	router := chi.NewRouter()
	router.Use(Identify([]byte(testSecret)))
	AuthRouter(router, userService, authCfg)
	router.Route("/users", func(r chi.Router) {
		UsersRouter(r, userService, messageService)
	})
	router.Route("/messages", func(r chi.Router) {
		MessagesRouter(r, messageService, readReceiptPolicy)
	})

	return &testEnv{t: t, router: router}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// register creates an account through the API and returns its token.
func (e *testEnv) register(username string) string {
	e.t.Helper()

	rec := e.do(http.MethodPost, "/register", "", map[string]string{
		"username":   username,
		"password":   "password-" + username,
		"first_name": "First-" + username,
		"last_name":  "Last-" + username,
		"phone":      "+14155550000",
	})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("register %s: status %d body %s", username, rec.Code, rec.Body.String())
	}

	var resp TokenResponse
	decodeBody(e.t, rec, &resp)
	return resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, value any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), value); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
