package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AddMessage appends m to its chat with a server-assigned timestamp.
func (db *DB) AddMessage(ctx context.Context, m *Message) (*Message, error) {
	out := *m
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.Kind == "" {
		out.Kind = KindText
	}
	out.Timestamp = db.serverTime()

	_, err := db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, sender_name, kind, text, image_url, timestamp, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.ChatID, out.SenderID, out.SenderName, out.Kind, out.Text, out.ImageURL, out.Timestamp, out.Read)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &out, nil
}

// ListMessages returns the chat's messages oldest first.
func (db *DB) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, sender_name, kind, text, image_url, timestamp, is_read
		FROM messages
		WHERE chat_id = ?
		ORDER BY timestamp ASC, seq ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderName, &m.Kind, &m.Text, &m.ImageURL, &m.Timestamp, &m.Read); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UnreadMessageIDs lists messages in chatID written by senderID and not yet read.
func (db *DB) UnreadMessageIDs(ctx context.Context, chatID, senderID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM messages
		WHERE chat_id = ? AND sender_id = ? AND is_read = 0
		ORDER BY seq`, chatID, senderID)
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) CountUnread(ctx context.Context, chatID, senderID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE chat_id = ? AND sender_id = ? AND is_read = 0`, chatID, senderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead flips ids to read in one transaction. If any id is missing from
// chatID nothing is written.
func (db *DB) MarkRead(ctx context.Context, chatID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE messages SET is_read = 1 WHERE chat_id = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("prepare mark read: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, chatID, id)
		if err != nil {
			return fmt.Errorf("mark read %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("mark read %s: %w", id, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
