package screens

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"
)

// ErrNotOpen is returned for a conversation that is not open.
var ErrNotOpen = errors.New("conversation is not open")

// Manager owns the home screen and the open conversations.
type Manager struct {
	deps Deps
	home *Home

	mu    sync.Mutex
	convs map[string]*Conversation
}

func NewManager(d Deps) *Manager {
	return &Manager{deps: d, home: NewHome(d), convs: make(map[string]*Conversation)}
}

func (m *Manager) Home() *Home { return m.home }

// Open opens the conversation, or resumes it when it is already open.
func (m *Manager) Open(ctx context.Context, chatID, peerID string) (*Conversation, error) {
	m.mu.Lock()
	c, ok := m.convs[chatID]
	if !ok {
		c = NewConversation(m.deps, chatID, peerID)
		m.convs[chatID] = c
	}
	m.mu.Unlock()

	if err := c.Open(ctx); err != nil {
		if !ok {
			m.mu.Lock()
			delete(m.convs, chatID)
			m.mu.Unlock()
		}
		return nil, err
	}
	return c, nil
}

func (m *Manager) Conversation(chatID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[chatID]
	if !ok {
		return nil, ErrNotOpen
	}
	return c, nil
}

// Close destroys the conversation and forgets it.
func (m *Manager) Close(chatID string) error {
	m.mu.Lock()
	c, ok := m.convs[chatID]
	delete(m.convs, chatID)
	m.mu.Unlock()
	if !ok {
		return ErrNotOpen
	}
	return c.Destroy()
}

// Shutdown destroys every screen. Screens that were showing announce the
// user offline on the way out.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	convs := m.convs
	m.convs = make(map[string]*Conversation)
	m.mu.Unlock()

	var err error
	for _, c := range convs {
		err = multierr.Append(err, c.Destroy())
	}
	return multierr.Append(err, m.home.Destroy())
}
