package screens

import (
	"context"
	"sync"

	"github.com/matheus3301/chatcore/internal/bus"
	"github.com/matheus3301/chatcore/internal/lifecycle"
	"github.com/matheus3301/chatcore/internal/messaging"
	"github.com/matheus3301/chatcore/internal/presence"
	"github.com/matheus3301/chatcore/internal/timeline"
	"github.com/matheus3301/chatcore/internal/unread"
	"go.uber.org/zap"
)

// TimelineRendered is the payload of bus.KindTimelineRendered.
type TimelineRendered struct {
	ChatID string
	Items  []timeline.Item
}

// Conversation is one open chat. Its message listener runs from Open to
// Destroy; presence runs only while resumed.
type Conversation struct {
	deps     Deps
	chatID   string
	peerID   string
	screen   *lifecycle.Screen
	presence *presence.Publisher
	logger   *zap.Logger

	life  sync.Mutex
	mu    sync.Mutex
	stop  context.CancelFunc
	done  chan struct{}
	items []timeline.Item
}

func NewConversation(d Deps, chatID, peerID string) *Conversation {
	d = d.withDefaults()
	c := &Conversation{
		deps:   d,
		chatID: chatID,
		peerID: peerID,
		screen: lifecycle.NewScreen("chat:"+chatID, d.Bus),
		logger: d.Logger.With(zap.String("screen", "chat"), zap.String("chat_id", chatID)),
	}
	c.presence = d.publisher(c.logger)
	return c
}

func (c *Conversation) ChatID() string { return c.chatID }
func (c *Conversation) PeerID() string { return c.peerID }

func (c *Conversation) State() lifecycle.State { return c.screen.State() }

// Timeline is the last built timeline.
func (c *Conversation) Timeline() []timeline.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

// Open resumes the screen, attaches the message listener and builds the
// first timeline. Opening an open conversation resumes it.
func (c *Conversation) Open(parent context.Context) error {
	c.life.Lock()
	defer c.life.Unlock()
	if err := c.resumeLocked(parent); err != nil {
		return err
	}

	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	events, unsub := c.deps.Bus.Subscribe("message.", 64)
	c.stop = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.reload(ctx)
	go c.listen(ctx, events, unsub, done)
	return nil
}

// Resume shows the screen and clears the peer's unread messages, which may
// have arrived while it was hidden.
func (c *Conversation) Resume(parent context.Context) error {
	c.life.Lock()
	defer c.life.Unlock()
	return c.resumeLocked(parent)
}

func (c *Conversation) resumeLocked(parent context.Context) error {
	ctx, err := c.screen.Resume(parent)
	if err != nil {
		return err
	}
	c.presence.Start(ctx)
	c.markRead(ctx)
	return nil
}

func (c *Conversation) Pause() error {
	c.life.Lock()
	defer c.life.Unlock()
	if err := c.screen.Pause(); err != nil {
		return err
	}
	c.presence.Stop()
	return nil
}

// Destroy detaches the listener and ends the screen.
func (c *Conversation) Destroy() error {
	c.life.Lock()
	defer c.life.Unlock()
	was := c.screen.State()
	if err := c.screen.Destroy(); err != nil {
		return err
	}
	if was == lifecycle.Resumed {
		c.presence.Stop()
	}

	c.mu.Lock()
	stop, done := c.stop, c.done
	c.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
	return nil
}

func (c *Conversation) markRead(ctx context.Context) {
	n, err := c.deps.Unread.MarkAsRead(ctx, c.chatID, c.peerID)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("mark as read failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		c.logger.Debug("cleared unread", zap.Int("count", n))
	}
}

func (c *Conversation) listen(ctx context.Context, events <-chan bus.Event, unsub func(), done chan struct{}) {
	defer close(done)
	defer unsub()
	for {
		select {
		case evt := <-events:
			if c.concerns(evt) {
				c.reload(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conversation) concerns(evt bus.Event) bool {
	switch p := evt.Payload.(type) {
	case messaging.Created:
		return p.ChatID == c.chatID
	case unread.ReadEvent:
		return p.ChatID == c.chatID
	}
	return false
}

// reload rebuilds the timeline from a fresh snapshot of the chat's messages.
func (c *Conversation) reload(ctx context.Context) {
	msgs, err := c.deps.Store.ListMessages(ctx, c.chatID)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("load messages failed", zap.Error(err))
		}
		return
	}
	items := timeline.Build(msgs, c.deps.Now(), c.deps.Location)

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	c.deps.Bus.Emit(bus.KindTimelineRendered, TimelineRendered{ChatID: c.chatID, Items: items})
}
