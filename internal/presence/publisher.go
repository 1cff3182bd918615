package presence

import (
	"context"
	"time"

	"github.com/matheus3301/chatcore/internal/metrics"
	"github.com/matheus3301/chatcore/internal/schedule"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// offlineTimeout bounds the final offline write, which runs after the
// screen's own context is gone.
const offlineTimeout = 5 * time.Second

// Writer is the part of the store the publisher writes through.
type Writer interface {
	UpdatePresence(ctx context.Context, userID string, online bool, at int64) error
	MergePresence(ctx context.Context, userID string, online bool, at int64) error
}

// Publisher heartbeats the local user's presence while a screen is visible.
type Publisher struct {
	userID  string
	store   Writer
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
	ticker  *schedule.Ticker
}

func NewPublisher(userID string, w Writer, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Publisher {
	p := &Publisher{
		userID:  userID,
		store:   w,
		metrics: m,
		logger:  logger.With(zap.String("user_id", userID)),
		now:     time.Now,
	}
	p.ticker = schedule.NewTicker("presence", interval, func(ctx context.Context) {
		p.Beat(ctx, true)
	}, p.logger)
	return p
}

// Start begins heartbeating. A running heartbeat is cancelled first.
func (p *Publisher) Start(ctx context.Context) {
	p.ticker.Start(ctx)
}

// Stop ends the heartbeat and writes online=false once. The offline write is
// ordered after any in-flight heartbeat.
func (p *Publisher) Stop() {
	p.ticker.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), offlineTimeout)
	defer cancel()
	p.Beat(ctx, false)
}

// Beat writes one presence update: an update of the existing record, falling
// back to a merge write. Failures are logged and dropped.
func (p *Publisher) Beat(ctx context.Context, online bool) {
	at := p.now().UnixMilli()

	updateErr := p.store.UpdatePresence(ctx, p.userID, online, at)
	if updateErr == nil {
		p.metrics.PresenceWrites.WithLabelValues(metrics.WriteUpdated).Inc()
		return
	}
	mergeErr := p.store.MergePresence(ctx, p.userID, online, at)
	if mergeErr == nil {
		p.metrics.PresenceWrites.WithLabelValues(metrics.WriteMerged).Inc()
		return
	}

	p.metrics.PresenceWrites.WithLabelValues(metrics.WriteFailed).Inc()
	if ctx.Err() != nil {
		// superseded or shutting down
		return
	}
	p.logger.Warn("presence write failed",
		zap.Bool("online", online),
		zap.Error(multierr.Combine(updateErr, mergeErr)))
}
