package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateChat inserts a chat with empty last-message fields.
func (db *DB) CreateChat(ctx context.Context, participants []string) (*Chat, error) {
	c := &Chat{
		ID:           uuid.NewString(),
		Participants: append([]string(nil), participants...),
		CreatedAt:    db.serverTime(),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO chats (id, created_at) VALUES (?, ?)`, c.ID, c.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	for i, userID := range c.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_participants (chat_id, user_id, position) VALUES (?, ?, ?)`,
			c.ID, userID, i); err != nil {
			return nil, fmt.Errorf("insert participant: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

// ChatsForUser returns every chat whose participants contain userID.
func (db *DB) ChatsForUser(ctx context.Context, userID string) ([]Chat, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.id, c.last_message, c.last_message_at, c.last_message_sender_id, c.created_at, p.user_id
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE c.id IN (SELECT chat_id FROM chat_participants WHERE user_id = ?)
		ORDER BY c.created_at, c.id, p.position`, userID)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		var participant string
		if err := rows.Scan(&c.ID, &c.LastMessage, &c.LastMessageAt, &c.LastMessageSenderID, &c.CreatedAt, &participant); err != nil {
			return nil, err
		}
		if n := len(chats); n > 0 && chats[n-1].ID == c.ID {
			chats[n-1].Participants = append(chats[n-1].Participants, participant)
			continue
		}
		c.Participants = []string{participant}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (db *DB) GetChat(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	err := db.QueryRowContext(ctx, `
		SELECT id, last_message, last_message_at, last_message_sender_id, created_at
		FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &c.LastMessage, &c.LastMessageAt, &c.LastMessageSenderID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get chat %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %s: %w", id, err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT user_id FROM chat_participants WHERE chat_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		c.Participants = append(c.Participants, userID)
	}
	return &c, rows.Err()
}

func (db *DB) UpdateChatSummary(ctx context.Context, chatID, text, senderID string, at int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE chats SET last_message = ?, last_message_at = ?, last_message_sender_id = ?
		WHERE id = ?`, text, at, senderID, chatID)
	if err != nil {
		return fmt.Errorf("update chat summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update chat summary %s: %w", chatID, ErrNotFound)
	}
	return nil
}
