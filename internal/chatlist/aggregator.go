// Package chatlist builds the home screen's list of conversations.
package chatlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatcore/internal/metrics"
	"github.com/matheus3301/chatcore/internal/presence"
	"github.com/matheus3301/chatcore/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store is the part of the document store a pass reads.
type Store interface {
	ChatsForUser(ctx context.Context, userID string) ([]store.Chat, error)
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// UnreadCounter reports unread counts; failures come back as 0.
type UnreadCounter interface {
	Count(ctx context.Context, chatID, peerID string) int
}

type Options struct {
	StaleAfter      time.Duration
	PlaceholderName string
	Concurrency     int
	Now             func() time.Time
}

// Aggregator runs chat list passes.
type Aggregator struct {
	store   Store
	unread  UnreadCounter
	opts    Options
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewAggregator(s Store, u UnreadCounter, opts Options, m *metrics.Metrics, logger *zap.Logger) *Aggregator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.PlaceholderName == "" {
		opts.PlaceholderName = "placeholder"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{store: s, unread: u, opts: opts, metrics: m, logger: logger}
}

// Pass builds the full sorted list for userID. It fails only when the chat
// query fails or ctx ends; per-chat lookup failures degrade that row.
func (a *Aggregator) Pass(ctx context.Context, userID string) ([]Row, error) {
	start := time.Now()

	chats, err := a.store.ChatsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}

	rows := make([]Row, len(chats))
	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, c := range chats {
		g.Go(func() error {
			rows[i] = a.row(ctx, userID, c)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	Sort(rows)
	a.metrics.PassDuration.Observe(time.Since(start).Seconds())
	return rows, nil
}

func (a *Aggregator) row(ctx context.Context, userID string, c store.Chat) Row {
	r := Row{ChatID: c.ID, Preview: c.LastMessage}
	if c.LastMessageAt > 0 {
		r.LastMessageAt = time.UnixMilli(c.LastMessageAt)
	}

	peerID, err := PeerOf(c, userID)
	if err != nil {
		a.logger.Warn("skipping peer lookup for malformed chat", zap.String("chat_id", c.ID), zap.Error(err))
		return a.degrade(r)
	}
	r.PeerID = peerID

	var (
		wg      sync.WaitGroup
		user    *store.User
		userErr error
		unread  int
	)
	wg.Go(func() { user, userErr = a.store.GetUser(ctx, peerID) })
	wg.Go(func() { unread = a.unread.Count(ctx, c.ID, peerID) })
	wg.Wait()

	if userErr != nil {
		if ctx.Err() == nil {
			a.logger.Warn("peer profile lookup failed", zap.String("chat_id", c.ID), zap.String("peer_id", peerID), zap.Error(userErr))
		}
		return a.degrade(r)
	}

	r.PeerName = user.Name
	if r.PeerName == "" {
		r.PeerName = a.opts.PlaceholderName
	}
	r.Online = presence.IsOnline(presence.FromUser(user), a.opts.Now(), a.opts.StaleAfter)
	r.Unread = unread
	return r
}

func (a *Aggregator) degrade(r Row) Row {
	a.metrics.DegradedRows.Inc()
	r.PeerName = a.opts.PlaceholderName
	r.Online = false
	r.Unread = 0
	r.Degraded = true
	return r
}
