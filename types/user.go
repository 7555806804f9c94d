package types

import "time"

// User represents an account in the system.
// Accounts are keyed by username; messages reference users by username,
// so a username is effectively immutable once created.
type User struct {
	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// Phone is the user's contact phone number.
	Phone string `json:"phone" db:"phone"`

	// JoinAt is the timestamp when the account was created.
	JoinAt time.Time `json:"join_at" db:"join_at"`

	// LastLoginAt is the timestamp of the most recent successful login.
	LastLoginAt time.Time `json:"last_login_at" db:"last_login_at"`
}

// Profile is the public subset of a user record embedded in listings
// and message payloads.
type Profile struct {
	Username  string `json:"username" db:"username"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Phone     string `json:"phone" db:"phone"`
}
