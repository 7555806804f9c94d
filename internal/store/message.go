package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/messagely/apiserver/types"
)

// MessageRepository handles persistence for direct messages.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message with sent_at set to now and read_at unset.
// An unknown recipient surfaces as ErrInvalidReference.
func (r *MessageRepository) Create(ctx context.Context, fromUsername, toUsername, body string) (types.SentMessage, error) {
	message := types.SentMessage{
		FromUsername: fromUsername,
		ToUsername:   toUsername,
		Body:         body,
		SentAt:       time.Now(),
	}

	const query = `
		INSERT INTO messages (from_username, to_username, body, sent_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		message.FromUsername,
		message.ToUsername,
		message.Body,
		message.SentAt,
	).Scan(&message.ID); err != nil {
		return types.SentMessage{}, classifyError(err)
	}
	return message, nil
}

// Get fetches a message with both party profiles joined in.
func (r *MessageRepository) Get(ctx context.Context, id int64) (types.Message, error) {
	const query = `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       f.username, f.first_name, f.last_name, f.phone,
		       t.username, t.first_name, t.last_name, t.phone
		FROM messages AS m
		JOIN users AS f ON m.from_username = f.username
		JOIN users AS t ON m.to_username = t.username
		WHERE m.id = $1`
	var message types.Message
	var readAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&message.ID,
		&message.Body,
		&message.SentAt,
		&readAt,
		&message.FromUser.Username,
		&message.FromUser.FirstName,
		&message.FromUser.LastName,
		&message.FromUser.Phone,
		&message.ToUser.Username,
		&message.ToUser.FirstName,
		&message.ToUser.LastName,
		&message.ToUser.Phone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, ErrNotFound
		}
		return types.Message{}, err
	}
	message.ReadAt = nullableTime(readAt)
	return message, nil
}

// MarkRead stamps read_at unconditionally. Marking an already-read message
// advances the timestamp; the ownership rule lives in the handler, not here.
func (r *MessageRepository) MarkRead(ctx context.Context, id int64) (types.ReadReceipt, error) {
	const query = `
		UPDATE messages
		SET read_at = current_timestamp
		WHERE id = $1
		RETURNING id, read_at`
	var receipt types.ReadReceipt
	err := r.db.QueryRowContext(ctx, query, id).Scan(&receipt.ID, &receipt.ReadAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ReadReceipt{}, ErrNotFound
		}
		return types.ReadReceipt{}, err
	}
	return receipt, nil
}

// ListFrom returns every message sent by the user, annotated with the
// recipient's profile. A single join replaces the legacy per-message
// profile lookup; the output shape is unchanged.
func (r *MessageRepository) ListFrom(ctx context.Context, username string) ([]types.OutboxMessage, error) {
	const query = `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       u.username, u.first_name, u.last_name, u.phone
		FROM messages AS m
		JOIN users AS u ON m.to_username = u.username
		WHERE m.from_username = $1
		ORDER BY m.id`
	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]types.OutboxMessage, 0)
	for rows.Next() {
		var message types.OutboxMessage
		var readAt sql.NullTime
		if err := rows.Scan(
			&message.ID,
			&message.Body,
			&message.SentAt,
			&readAt,
			&message.ToUser.Username,
			&message.ToUser.FirstName,
			&message.ToUser.LastName,
			&message.ToUser.Phone,
		); err != nil {
			return nil, err
		}
		message.ReadAt = nullableTime(readAt)
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

// ListTo returns every message addressed to the user, annotated with the
// sender's profile.
func (r *MessageRepository) ListTo(ctx context.Context, username string) ([]types.InboxMessage, error) {
	const query = `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       u.username, u.first_name, u.last_name, u.phone
		FROM messages AS m
		JOIN users AS u ON m.from_username = u.username
		WHERE m.to_username = $1
		ORDER BY m.id`
	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]types.InboxMessage, 0)
	for rows.Next() {
		var message types.InboxMessage
		var readAt sql.NullTime
		if err := rows.Scan(
			&message.ID,
			&message.Body,
			&message.SentAt,
			&readAt,
			&message.FromUser.Username,
			&message.FromUser.FirstName,
			&message.FromUser.LastName,
			&message.FromUser.Phone,
		); err != nil {
			return nil, err
		}
		message.ReadAt = nullableTime(readAt)
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func nullableTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
