// Package resolve finds or creates the conversation between two users.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/chatcore/internal/bus"
	"github.com/matheus3301/chatcore/internal/store"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var (
	ErrEmptyEmail   = errors.New("email is required")
	ErrSelfChat     = errors.New("cannot start a chat with yourself")
	ErrUserNotFound = errors.New("no user with that email")
)

// Store is the part of the document store the resolver needs.
type Store interface {
	ChatsForUser(ctx context.Context, userID string) ([]store.Chat, error)
	CreateChat(ctx context.Context, participants []string) (*store.Chat, error)
	FindUserByEmail(ctx context.Context, email string) (*store.User, error)
}

// Result of a resolution.
type Result struct {
	ChatID  string
	PeerID  string
	Created bool
}

// Resolver maps a (user, peer) pair to a chat id.
//
// ResolveOrCreate is a read followed by a write with no transaction. Two
// clients resolving the same pair at once can both miss and both create,
// leaving duplicate chats for the pair.
type Resolver struct {
	store  Store
	bus    *bus.Bus
	users  *cache.Cache
	logger *zap.Logger
}

func New(s Store, b *bus.Bus, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:  s,
		bus:    b,
		users:  cache.New(time.Minute, 5*time.Minute),
		logger: logger,
	}
}

// ResolveOrCreate returns the first chat of userID that includes peerID, or
// creates one with empty last-message fields.
func (r *Resolver) ResolveOrCreate(ctx context.Context, userID, peerID string) (Result, error) {
	if userID == peerID {
		return Result{}, ErrSelfChat
	}

	chats, err := r.store.ChatsForUser(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("query chats: %w", err)
	}
	for _, c := range chats {
		if slices.Contains(c.Participants, peerID) {
			return Result{ChatID: c.ID, PeerID: peerID}, nil
		}
	}

	c, err := r.store.CreateChat(ctx, []string{userID, peerID})
	if err != nil {
		return Result{}, fmt.Errorf("create chat: %w", err)
	}
	r.logger.Info("chat created", zap.String("chat_id", c.ID), zap.String("peer_id", peerID))
	if r.bus != nil {
		r.bus.Emit(bus.KindChatCreated, c.ID)
	}
	return Result{ChatID: c.ID, PeerID: peerID, Created: true}, nil
}

// NormalizeEmail lower-cases and trims an address typed by the user.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LookupEmail finds the user registered under email. Hits are cached briefly.
func (r *Resolver) LookupEmail(ctx context.Context, email string) (*store.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmptyEmail
	}
	if u, ok := r.users.Get(email); ok {
		return u.(*store.User), nil
	}
	u, err := r.store.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	r.users.SetDefault(email, u)
	return u, nil
}

// Forget drops the cached lookup for email.
func (r *Resolver) Forget(email string) {
	r.users.Delete(NormalizeEmail(email))
}

// AddByEmail starts (or finds) a chat with the user registered under email.
// Result.Created is false when the chat already existed.
func (r *Resolver) AddByEmail(ctx context.Context, userID, email string) (Result, *store.User, error) {
	peer, err := r.LookupEmail(ctx, email)
	if err != nil {
		return Result{}, nil, err
	}
	if peer.ID == userID {
		return Result{}, nil, ErrSelfChat
	}
	res, err := r.ResolveOrCreate(ctx, userID, peer.ID)
	if err != nil {
		return Result{}, nil, err
	}
	return res, peer, nil
}
