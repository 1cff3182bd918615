package screens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/chatcore/internal/bus"
	"github.com/matheus3301/chatcore/internal/chatlist"
	"github.com/matheus3301/chatcore/internal/lifecycle"
	"github.com/matheus3301/chatcore/internal/messaging"
	"github.com/matheus3301/chatcore/internal/metrics"
	"github.com/matheus3301/chatcore/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

type presenceWrite struct {
	online bool
	at     int64
}

type fakeStore struct {
	mu     sync.Mutex
	writes []presenceWrite
	msgs   map[string][]store.Message
	lists  atomic.Int32
}

func (f *fakeStore) UpdatePresence(_ context.Context, _ string, online bool, at int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, presenceWrite{online, at})
	return nil
}

func (f *fakeStore) MergePresence(context.Context, string, bool, int64) error { return nil }

func (f *fakeStore) ListMessages(_ context.Context, chatID string) ([]store.Message, error) {
	f.lists.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Message(nil), f.msgs[chatID]...), nil
}

func (f *fakeStore) lastWrite() (presenceWrite, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return presenceWrite{}, false
	}
	return f.writes[len(f.writes)-1], true
}

type fakePasser struct {
	rows    []chatlist.Row
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (f *fakePasser) Pass(context.Context, string) ([]chatlist.Row, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	return f.rows, nil
}

type fakeMarker struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeMarker) MarkAsRead(_ context.Context, chatID, peerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, chatID+"/"+peerID)
	return 0, nil
}

func (f *fakeMarker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testDeps(s *fakeStore, p Passer, u ReadMarker) Deps {
	return Deps{
		UserID:     "me",
		Store:      s,
		Aggregator: p,
		Unread:     u,
		Bus:        bus.New(),
		Metrics:    metrics.New(),
		Logger:     zap.NewNop(),
		Heartbeat:  time.Hour,
		Refresh:    time.Hour,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHomeRendersWhileResumed(t *testing.T) {
	s := &fakeStore{}
	p := &fakePasser{rows: []chatlist.Row{{ChatID: "c1", PeerName: "Bruno"}}}
	h := NewHome(testDeps(s, p, &fakeMarker{}))

	if err := h.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first render", func() bool { return len(h.Snapshot().Rows) == 1 })

	if err := h.Pause(); err != nil {
		t.Fatal(err)
	}
	last, ok := s.lastWrite()
	if !ok || last.online {
		t.Errorf("last presence write = %+v, want offline", last)
	}
	if h.State() != lifecycle.Paused {
		t.Errorf("state = %s", h.State())
	}
}

func TestHomeDiscardsPassFinishingAfterPause(t *testing.T) {
	s := &fakeStore{}
	p := &fakePasser{
		rows:    []chatlist.Row{{ChatID: "c1"}},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	d := testDeps(s, p, &fakeMarker{})
	h := NewHome(d)

	if err := h.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-p.started

	errc := make(chan error, 1)
	go func() { errc <- h.Pause() }()
	waitFor(t, "pause", func() bool { return h.State() == lifecycle.Paused })
	close(p.release)
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	if rows := h.Snapshot().Rows; len(rows) != 0 {
		t.Errorf("rendered %d rows after pause, want 0", len(rows))
	}
	if got := testutil.ToFloat64(d.Metrics.DiscardedPasses); got != 1 {
		t.Errorf("discarded passes = %v, want 1", got)
	}
}

func TestHomeRestartAndDestroy(t *testing.T) {
	s := &fakeStore{}
	h := NewHome(testDeps(s, &fakePasser{}, &fakeMarker{}))

	if err := h.Pause(); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("Pause() before Resume error = %v", err)
	}
	ctx := context.Background()
	if err := h.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.Resume(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := h.Destroy(); err != nil {
		t.Fatal(err)
	}
	if last, _ := s.lastWrite(); last.online {
		t.Error("Destroy() of a resumed screen should write offline")
	}
	if err := h.Resume(ctx); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("Resume() after Destroy error = %v", err)
	}
	if err := h.Destroy(); err != nil {
		t.Errorf("second Destroy() error = %v", err)
	}
}

func TestConversationMarksReadOnOpenAndResume(t *testing.T) {
	s := &fakeStore{}
	u := &fakeMarker{}
	c := NewConversation(testDeps(s, &fakePasser{}, u), "c1", "peer")
	ctx := context.Background()

	if err := c.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if u.count() != 1 {
		t.Fatalf("MarkAsRead calls after open = %d, want 1", u.count())
	}
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := c.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if u.count() != 2 {
		t.Errorf("MarkAsRead calls after resume = %d, want 2", u.count())
	}
	if u.calls[0] != "c1/peer" {
		t.Errorf("MarkAsRead(%s), want c1/peer", u.calls[0])
	}
	_ = c.Destroy()
}

func TestConversationRebuildsTimelineOnNewMessage(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s := &fakeStore{msgs: map[string][]store.Message{
		"c1": {{ID: "m1", ChatID: "c1", Timestamp: now.Add(-time.Hour).UnixMilli()}},
	}}
	d := testDeps(s, &fakePasser{}, &fakeMarker{})
	d.Now = func() time.Time { return now }
	d.Location = time.UTC
	c := NewConversation(d, "c1", "peer")

	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Destroy() }()
	if items := c.Timeline(); len(items) != 2 || items[0].Label != "Today" {
		t.Fatalf("initial timeline = %+v", items)
	}

	s.mu.Lock()
	s.msgs["c1"] = append(s.msgs["c1"], store.Message{ID: "m2", ChatID: "c1", Timestamp: now.UnixMilli()})
	s.mu.Unlock()

	before := s.lists.Load()
	d.Bus.Emit(bus.KindMessageCreated, messaging.Created{ChatID: "other"})
	d.Bus.Emit(bus.KindMessageCreated, messaging.Created{ChatID: "c1"})
	waitFor(t, "rebuilt timeline", func() bool { return len(c.Timeline()) == 3 })
	if got := s.lists.Load() - before; got != 1 {
		t.Errorf("reloads = %d, want 1 (other chat ignored)", got)
	}
}

func TestConversationListenerStopsOnDestroy(t *testing.T) {
	s := &fakeStore{msgs: map[string][]store.Message{}}
	d := testDeps(s, &fakePasser{}, &fakeMarker{})
	c := NewConversation(d, "c1", "peer")

	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Destroy(); err != nil {
		t.Fatal(err)
	}
	before := s.lists.Load()
	d.Bus.Emit(bus.KindMessageCreated, messaging.Created{ChatID: "c1"})
	time.Sleep(50 * time.Millisecond)
	if s.lists.Load() != before {
		t.Error("destroyed conversation reloaded messages")
	}
	if last, _ := s.lastWrite(); last.online {
		t.Error("Destroy() should write offline")
	}
}

func TestManager(t *testing.T) {
	s := &fakeStore{}
	m := NewManager(testDeps(s, &fakePasser{}, &fakeMarker{}))
	ctx := context.Background()

	if _, err := m.Conversation("c1"); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Conversation() error = %v, want ErrNotOpen", err)
	}
	c, err := m.Open(ctx, "c1", "peer")
	if err != nil {
		t.Fatal(err)
	}
	again, err := m.Open(ctx, "c1", "peer")
	if err != nil || again != c {
		t.Errorf("second Open() = %p, %v; want same conversation", again, err)
	}
	if err := m.Home().Resume(ctx); err != nil {
		t.Fatal(err)
	}

	if err := m.Close("c1"); err != nil {
		t.Fatal(err)
	}
	if c.State() != lifecycle.Destroyed {
		t.Errorf("closed conversation state = %s", c.State())
	}
	if err := m.Close("c1"); !errors.Is(err, ErrNotOpen) {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := m.Open(ctx, "c2", "peer2"); err != nil {
		t.Fatal(err)
	}
	if err := m.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if m.Home().State() != lifecycle.Destroyed {
		t.Errorf("home state = %s", m.Home().State())
	}
}
