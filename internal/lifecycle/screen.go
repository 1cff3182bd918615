// Package lifecycle tracks the visibility of a screen and hands out a
// cancellation token per visible period.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/chatcore/internal/bus"
)

// State is a screen lifecycle state.
type State string

const (
	Created   State = "CREATED"
	Resumed   State = "RESUMED"
	Paused    State = "PAUSED"
	Destroyed State = "DESTROYED"
)

var ErrInvalidTransition = errors.New("invalid screen transition")

// Resumed -> Resumed is a restart: the old token is cancelled and a new one issued.
var validTransitions = map[State][]State{
	Created:   {Resumed, Destroyed},
	Resumed:   {Resumed, Paused, Destroyed},
	Paused:    {Resumed, Destroyed},
	Destroyed: {},
}

// Change is the payload of bus.KindScreenState events.
type Change struct {
	Screen string
	From   State
	To     State
}

// Screen is a state machine whose RESUMED periods each carry a context that
// is cancelled when the period ends.
type Screen struct {
	name string
	bus  *bus.Bus

	mu     sync.Mutex
	state  State
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScreen returns a screen in CREATED. b may be nil.
func NewScreen(name string, b *bus.Bus) *Screen {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &Screen{name: name, bus: b, state: Created, ctx: ctx, cancel: cancel}
}

func (s *Screen) Name() string { return s.name }

func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Context returns the token of the current visible period. It is already
// cancelled when the screen is not RESUMED.
func (s *Screen) Context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Resume enters RESUMED and returns a fresh token derived from parent.
func (s *Screen) Resume(parent context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(Resumed); err != nil {
		return nil, err
	}
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(parent)
	return s.ctx, nil
}

// Pause enters PAUSED and cancels the current token. Once Pause returns no
// IfActive callback is running or will run until the next Resume.
func (s *Screen) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(Paused); err != nil {
		return err
	}
	s.cancel()
	return nil
}

// Destroy enters DESTROYED for good. Destroying twice is a no-op.
func (s *Screen) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Destroyed {
		return nil
	}
	if err := s.transition(Destroyed); err != nil {
		return err
	}
	s.cancel()
	return nil
}

// IfActive runs fn under the screen lock when the screen is RESUMED and ctx
// is still live, and reports whether it ran. fn must not call back into s.
func (s *Screen) IfActive(ctx context.Context, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Resumed || ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// transition must be called with s.mu held.
func (s *Screen) transition(to State) error {
	if !slices.Contains(validTransitions[s.state], to) {
		return fmt.Errorf("%w: %s from %s to %s", ErrInvalidTransition, s.name, s.state, to)
	}
	from := s.state
	s.state = to
	if s.bus != nil {
		s.bus.Emit(bus.KindScreenState, Change{Screen: s.name, From: from, To: to})
	}
	return nil
}
