package screens

import (
	"context"
	"sync"

	"github.com/matheus3301/chatcore/internal/chatlist"
	"github.com/matheus3301/chatcore/internal/lifecycle"
	"github.com/matheus3301/chatcore/internal/presence"
	"github.com/matheus3301/chatcore/internal/schedule"
	"go.uber.org/zap"
)

const homeName = "home"

// Home is the chat list screen. While resumed it heartbeats presence and
// refreshes the list on a timer.
type Home struct {
	deps     Deps
	screen   *lifecycle.Screen
	view     *chatlist.View
	presence *presence.Publisher
	refresh  *schedule.Ticker
	logger   *zap.Logger

	mu sync.Mutex
}

func NewHome(d Deps) *Home {
	d = d.withDefaults()
	h := &Home{
		deps:   d,
		screen: lifecycle.NewScreen(homeName, d.Bus),
		view:   chatlist.NewView(d.Bus, d.Metrics),
		logger: d.Logger.With(zap.String("screen", homeName)),
	}
	h.presence = d.publisher(h.logger)
	h.refresh = schedule.NewTicker("chatlist", d.Refresh, h.pass, h.logger)
	return h
}

func (h *Home) State() lifecycle.State { return h.screen.State() }

// Snapshot is the last rendered chat list.
func (h *Home) Snapshot() chatlist.Snapshot { return h.view.Snapshot() }

// Resume shows the screen. Resuming a resumed screen restarts its timers.
func (h *Home) Resume(parent context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx, err := h.screen.Resume(parent)
	if err != nil {
		return err
	}
	h.presence.Start(ctx)
	h.refresh.Start(ctx)
	return nil
}

// Pause hides the screen: no render happens after Pause returns, and the
// user is announced offline.
func (h *Home) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.screen.Pause(); err != nil {
		return err
	}
	h.refresh.Stop()
	h.presence.Stop()
	return nil
}

// Destroy ends the screen for good.
func (h *Home) Destroy() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	was := h.screen.State()
	if err := h.screen.Destroy(); err != nil {
		return err
	}
	h.refresh.Stop()
	if was == lifecycle.Resumed {
		h.presence.Stop()
	}
	return nil
}

// pass runs one aggregation and renders it if the screen is still showing
// and no newer pass has started.
func (h *Home) pass(ctx context.Context) {
	rows, err := h.deps.Aggregator.Pass(ctx, h.deps.UserID)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Warn("chat list pass failed", zap.Error(err))
		}
		return
	}
	if !h.screen.IfActive(ctx, func() { h.view.Render(rows) }) {
		h.deps.Metrics.DiscardedPasses.Inc()
	}
}
