package types

import "time"

// Message is a direct message with both party profiles embedded,
// as returned by a detail fetch.
type Message struct {
	ID     int64      `json:"id" db:"id"`
	Body   string     `json:"body" db:"body"`
	SentAt time.Time  `json:"sent_at" db:"sent_at"`
	ReadAt *time.Time `json:"read_at" db:"read_at"`

	// FromUser is the sender's public profile.
	FromUser Profile `json:"from_user"`

	// ToUser is the recipient's public profile.
	ToUser Profile `json:"to_user"`
}

// SentMessage is the creation result echoed back to the sender.
// Party profiles are not joined in; the client already knows both usernames.
type SentMessage struct {
	ID           int64     `json:"id" db:"id"`
	FromUsername string    `json:"from_username" db:"from_username"`
	ToUsername   string    `json:"to_username" db:"to_username"`
	Body         string    `json:"body" db:"body"`
	SentAt       time.Time `json:"sent_at" db:"sent_at"`
}

// InboxMessage is a message addressed to a user, annotated with the
// sender's profile.
type InboxMessage struct {
	ID       int64      `json:"id" db:"id"`
	Body     string     `json:"body" db:"body"`
	SentAt   time.Time  `json:"sent_at" db:"sent_at"`
	ReadAt   *time.Time `json:"read_at" db:"read_at"`
	FromUser Profile    `json:"from_user"`
}

// OutboxMessage is a message sent by a user, annotated with the
// recipient's profile.
type OutboxMessage struct {
	ID     int64      `json:"id" db:"id"`
	Body   string     `json:"body" db:"body"`
	SentAt time.Time  `json:"sent_at" db:"sent_at"`
	ReadAt *time.Time `json:"read_at" db:"read_at"`
	ToUser Profile    `json:"to_user"`
}

// ReadReceipt records the read_at transition for a message.
type ReadReceipt struct {
	ID     int64     `json:"id" db:"id"`
	ReadAt time.Time `json:"read_at" db:"read_at"`
}
