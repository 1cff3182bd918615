package store

import "context"

// Store is the document store the client talks to. DB implements it on
// SQLite and mongostore.Store on MongoDB.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePresence fails with ErrNotFound when the user record is missing.
	// Writes older than the stored last_seen are ignored.
	UpdatePresence(ctx context.Context, userID string, online bool, at int64) error
	// MergePresence creates the record when needed.
	MergePresence(ctx context.Context, userID string, online bool, at int64) error
	// UpdatePushSubscription fails with ErrNotFound when the user record is missing.
	UpdatePushSubscription(ctx context.Context, userID, subscription string) error
	SavePushSubscription(ctx context.Context, userID, subscription string) error

	ChatsForUser(ctx context.Context, userID string) ([]Chat, error)
	GetChat(ctx context.Context, id string) (*Chat, error)
	CreateChat(ctx context.Context, participants []string) (*Chat, error)
	UpdateChatSummary(ctx context.Context, chatID, text, senderID string, at int64) error

	// AddMessage assigns ID (when empty) and the server timestamp.
	AddMessage(ctx context.Context, m *Message) (*Message, error)
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
	UnreadMessageIDs(ctx context.Context, chatID, senderID string) ([]string, error)
	CountUnread(ctx context.Context, chatID, senderID string) (int, error)
	// MarkRead flips every id to read in one atomic batch.
	MarkRead(ctx context.Context, chatID string, ids []string) error

	Close() error
}

var _ Store = (*DB)(nil)
