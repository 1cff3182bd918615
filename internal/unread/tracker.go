// Package unread counts and clears the messages a peer sent that the local
// user has not read.
package unread

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatcore/internal/bus"
	"github.com/matheus3301/chatcore/internal/metrics"
	"go.uber.org/zap"
)

// Store is the part of the document store the tracker needs.
type Store interface {
	UnreadMessageIDs(ctx context.Context, chatID, senderID string) ([]string, error)
	CountUnread(ctx context.Context, chatID, senderID string) (int, error)
	MarkRead(ctx context.Context, chatID string, ids []string) error
}

// ReadEvent is the payload of bus.KindMessagesRead.
type ReadEvent struct {
	ChatID string
	PeerID string
	Count  int
}

type Tracker struct {
	store   Store
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewTracker(s Store, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Tracker {
	return &Tracker{store: s, bus: b, metrics: m, logger: logger}
}

// MarkAsRead flips every unread message peerID sent in chatID in one atomic
// batch and returns how many were flipped. Nothing is written when there are none.
func (t *Tracker) MarkAsRead(ctx context.Context, chatID, peerID string) (int, error) {
	ids, err := t.store.UnreadMessageIDs(ctx, chatID, peerID)
	if err != nil {
		return 0, fmt.Errorf("list unread: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := t.store.MarkRead(ctx, chatID, ids); err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	t.metrics.UnreadBatches.Inc()
	t.metrics.UnreadMarked.Add(float64(len(ids)))
	t.logger.Debug("messages marked read", zap.String("chat_id", chatID), zap.Int("count", len(ids)))
	if t.bus != nil {
		t.bus.Emit(bus.KindMessagesRead, ReadEvent{ChatID: chatID, PeerID: peerID, Count: len(ids)})
	}
	return len(ids), nil
}

// Count returns the number of unread messages peerID sent in chatID, or 0
// when the store cannot be read.
func (t *Tracker) Count(ctx context.Context, chatID, peerID string) int {
	n, err := t.store.CountUnread(ctx, chatID, peerID)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("unread count failed", zap.String("chat_id", chatID), zap.Error(err))
		}
		return 0
	}
	return n
}
