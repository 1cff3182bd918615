package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateUser registers a profile. New users start online with last_seen = now.
func (db *DB) CreateUser(ctx context.Context, u *User) error {
	now := db.serverTime()
	if u.CreatedAt == 0 {
		u.CreatedAt = now
	}
	if u.LastSeen == 0 {
		u.Online = true
		u.LastSeen = now
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, online, last_seen, push_subscription, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			updated_at = excluded.updated_at`,
		u.ID, u.Name, u.Email, u.Online, u.LastSeen, u.PushSubscription, u.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, name, email, online, last_seen, push_subscription, created_at`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Online, &u.LastSeen, &u.PushSubscription, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// FindUserByEmail matches the stored email exactly; callers normalize first.
func (db *DB) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY created_at LIMIT 1`, email))
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (db *DB) UpdatePresence(ctx context.Context, userID string, online bool, at int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE users SET online = ?, last_seen = ?, updated_at = ?
		WHERE id = ? AND last_seen <= ?`,
		online, at, db.serverTime(), userID, at)
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update presence %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (db *DB) MergePresence(ctx context.Context, userID string, online bool, at int64) error {
	now := db.serverTime()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, online, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			online = excluded.online,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at
		WHERE excluded.last_seen >= users.last_seen`,
		userID, online, at, now, now)
	if err != nil {
		return fmt.Errorf("merge presence: %w", err)
	}
	return nil
}

func (db *DB) UpdatePushSubscription(ctx context.Context, userID, subscription string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET push_subscription = ?, updated_at = ? WHERE id = ?`,
		subscription, db.serverTime(), userID)
	if err != nil {
		return fmt.Errorf("update push subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update push subscription: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update push subscription %s: %w", userID, ErrNotFound)
	}
	return nil
}

// SavePushSubscription stores the device subscription, creating the user
// record when it does not exist yet.
func (db *DB) SavePushSubscription(ctx context.Context, userID, subscription string) error {
	now := db.serverTime()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, push_subscription, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			push_subscription = excluded.push_subscription,
			updated_at = excluded.updated_at`,
		userID, subscription, now, now)
	if err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	return nil
}
