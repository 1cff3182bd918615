package store

import "errors"

// ErrNotFound is returned when a targeted record does not exist.
var ErrNotFound = errors.New("not found")

// Message kinds.
const (
	KindText  = "text"
	KindImage = "image"
)

// All timestamps are Unix milliseconds; 0 means absent.

// User is a profile plus its presence record.
type User struct {
	ID               string
	Name             string
	Email            string
	Online           bool
	LastSeen         int64
	PushSubscription string
	CreatedAt        int64
}

// Chat is a two-party conversation and its last-message summary.
type Chat struct {
	ID                  string
	Participants        []string
	LastMessage         string
	LastMessageAt       int64
	LastMessageSenderID string
	CreatedAt           int64
}

// Message belongs to exactly one chat.
type Message struct {
	ID         string
	ChatID     string
	SenderID   string
	SenderName string
	Kind       string
	Text       string
	ImageURL   string
	Timestamp  int64
	Read       bool
}
