package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/messagely/apiserver/types"
)

// Event topics published on message lifecycle transitions.
const (
	TopicMessageCreated = "message.created"
	TopicMessageRead    = "message.read"
)

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, fromUsername, toUsername, body string) (types.SentMessage, error)
	Get(ctx context.Context, id int64) (types.Message, error)
	MarkRead(ctx context.Context, id int64) (types.ReadReceipt, error)
	ListFrom(ctx context.Context, username string) ([]types.OutboxMessage, error)
	ListTo(ctx context.Context, username string) ([]types.InboxMessage, error)
}

// EventPublisher sends broker events. Implemented by mq.MQ.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

// MessageEvent is the payload published on message lifecycle topics.
type MessageEvent struct {
	ID           int64     `json:"id"`
	FromUsername string    `json:"from_username"`
	ToUsername   string    `json:"to_username"`
	At           time.Time `json:"at"`
}

// MessageService encapsulates messaging use-cases.
type MessageService struct {
	repo      MessageRepository
	publisher EventPublisher
	logger    *slog.Logger
}

func NewMessageService(repo MessageRepository, publisher EventPublisher, logger *slog.Logger) *MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Send persists a new message and publishes a created event.
func (s *MessageService) Send(ctx context.Context, fromUsername, toUsername, body string) (types.SentMessage, error) {
	message, err := s.repo.Create(ctx, fromUsername, toUsername, body)
	if err != nil {
		return types.SentMessage{}, err
	}

	s.publish(ctx, TopicMessageCreated, MessageEvent{
		ID:           message.ID,
		FromUsername: message.FromUsername,
		ToUsername:   message.ToUsername,
		At:           message.SentAt,
	})
	return message, nil
}

// Get returns a message with both party profiles.
func (s *MessageService) Get(ctx context.Context, id int64) (types.Message, error) {
	return s.repo.Get(ctx, id)
}

// MarkRead stamps the message read and publishes a read event.
func (s *MessageService) MarkRead(ctx context.Context, message types.Message) (types.ReadReceipt, error) {
	receipt, err := s.repo.MarkRead(ctx, message.ID)
	if err != nil {
		return types.ReadReceipt{}, err
	}

	s.publish(ctx, TopicMessageRead, MessageEvent{
		ID:           receipt.ID,
		FromUsername: message.FromUser.Username,
		ToUsername:   message.ToUser.Username,
		At:           receipt.ReadAt,
	})
	return receipt, nil
}

// ListFrom returns the user's outbox.
func (s *MessageService) ListFrom(ctx context.Context, username string) ([]types.OutboxMessage, error) {
	return s.repo.ListFrom(ctx, username)
}

// ListTo returns the user's inbox.
func (s *MessageService) ListTo(ctx context.Context, username string) ([]types.InboxMessage, error) {
	return s.repo.ListTo(ctx, username)
}

// publish is best-effort: a broker failure is logged and never surfaced to
// the request that triggered it.
func (s *MessageService) publish(ctx context.Context, topic string, event MessageEvent) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal event", "topic", topic, "err", err)
		return
	}
	if _, err := s.publisher.Publish(ctx, topic, data, map[string]string{"topic": topic}); err != nil {
		s.logger.Error("publish event", "topic", topic, "message_id", event.ID, "err", err)
	}
}
