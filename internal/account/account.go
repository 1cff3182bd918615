// Package account keeps the signed-in user's own profile record.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/chatcore/internal/resolve"
	"github.com/matheus3301/chatcore/internal/store"
	"go.uber.org/zap"
)

var (
	ErrEmptyName  = errors.New("name is required")
	ErrEmailTaken = errors.New("email already registered to another user")
)

// Store is the part of the document store profiles need.
type Store interface {
	CreateUser(ctx context.Context, u *store.User) error
	GetUser(ctx context.Context, id string) (*store.User, error)
	FindUserByEmail(ctx context.Context, email string) (*store.User, error)
}

// Forgetter drops cached lookups for an email that no longer points at its
// old owner.
type Forgetter interface {
	Forget(email string)
}

type Profiles struct {
	store  Store
	cache  Forgetter
	logger *zap.Logger
}

// New returns a Profiles. cache may be nil.
func New(s Store, cache Forgetter, logger *zap.Logger) *Profiles {
	return &Profiles{store: s, cache: cache, logger: logger}
}

// Save registers or updates userID's name and email. A new record starts
// online with last_seen = now; an existing record keeps its presence.
func (p *Profiles) Save(ctx context.Context, userID, name, email string) (*store.User, error) {
	name = strings.TrimSpace(name)
	email = resolve.NormalizeEmail(email)
	if name == "" {
		return nil, ErrEmptyName
	}
	if email == "" {
		return nil, resolve.ErrEmptyEmail
	}

	owner, err := p.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil && owner.ID != userID:
		return nil, ErrEmailTaken
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("check email: %w", err)
	}

	var previous string
	if u, err := p.store.GetUser(ctx, userID); err == nil {
		previous = u.Email
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if err := p.store.CreateUser(ctx, &store.User{ID: userID, Name: name, Email: email}); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	if p.cache != nil && previous != "" && previous != email {
		p.cache.Forget(previous)
	}
	p.logger.Info("profile saved", zap.String("user_id", userID), zap.Bool("new", previous == ""))
	return p.Get(ctx, userID)
}

func (p *Profiles) Get(ctx context.Context, userID string) (*store.User, error) {
	u, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return u, nil
}
