// Package screens drives the home and conversation screens: what runs while
// each is visible, and what happens when it stops being visible.
package screens

import (
	"context"
	"time"

	"github.com/matheus3301/chatcore/internal/bus"
	"github.com/matheus3301/chatcore/internal/chatlist"
	"github.com/matheus3301/chatcore/internal/metrics"
	"github.com/matheus3301/chatcore/internal/presence"
	"github.com/matheus3301/chatcore/internal/store"
	"go.uber.org/zap"
)

// Store is the part of the document store screens read and write directly.
type Store interface {
	presence.Writer
	ListMessages(ctx context.Context, chatID string) ([]store.Message, error)
}

// Passer builds one chat list.
type Passer interface {
	Pass(ctx context.Context, userID string) ([]chatlist.Row, error)
}

// ReadMarker clears a peer's unread messages.
type ReadMarker interface {
	MarkAsRead(ctx context.Context, chatID, peerID string) (int, error)
}

// Deps are shared by every screen of one signed-in user.
type Deps struct {
	UserID     string
	Store      Store
	Aggregator Passer
	Unread     ReadMarker
	Bus        *bus.Bus
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	Heartbeat time.Duration
	Refresh   time.Duration
	Location  *time.Location
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Heartbeat <= 0 {
		d.Heartbeat = 3 * time.Second
	}
	if d.Refresh <= 0 {
		d.Refresh = 5 * time.Second
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

func (d Deps) publisher(logger *zap.Logger) *presence.Publisher {
	return presence.NewPublisher(d.UserID, d.Store, d.Heartbeat, d.Metrics, logger)
}
