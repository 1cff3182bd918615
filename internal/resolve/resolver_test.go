package resolve

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/matheus3301/chatcore/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type countingStore struct {
	Store
	lookups int
}

func (c *countingStore) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	c.lookups++
	return c.Store.FindUserByEmail(ctx, email)
}

func TestResolveOrCreateCreatesOnce(t *testing.T) {
	db := testDB(t)
	r := New(db, nil, zap.NewNop())
	ctx := context.Background()

	first, err := r.ResolveOrCreate(ctx, "me", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !first.Created {
		t.Error("first resolution should create")
	}

	second, err := r.ResolveOrCreate(ctx, "me", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if second.Created || second.ChatID != first.ChatID {
		t.Errorf("second = %+v, want existing chat %s", second, first.ChatID)
	}

	// The peer resolves to the same chat from their side.
	back, err := r.ResolveOrCreate(ctx, "bob", "me")
	if err != nil {
		t.Fatal(err)
	}
	if back.ChatID != first.ChatID {
		t.Errorf("reverse resolution = %s, want %s", back.ChatID, first.ChatID)
	}

	chat, err := db.GetChat(ctx, first.ChatID)
	if err != nil {
		t.Fatal(err)
	}
	if chat.LastMessage != "" || chat.LastMessageAt != 0 || chat.LastMessageSenderID != "" {
		t.Errorf("new chat should have empty summary: %+v", chat)
	}
}

func TestResolveOrCreateRejectsSelf(t *testing.T) {
	r := New(testDB(t), nil, zap.NewNop())
	if _, err := r.ResolveOrCreate(context.Background(), "me", "me"); !errors.Is(err, ErrSelfChat) {
		t.Errorf("error = %v, want ErrSelfChat", err)
	}
}

func TestAddByEmail(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.CreateUser(ctx, &store.User{ID: "me", Name: "Me", Email: "me@example.com"})
	_ = db.CreateUser(ctx, &store.User{ID: "bob", Name: "Bob", Email: "bob@example.com"})
	r := New(db, nil, zap.NewNop())

	tests := []struct {
		name    string
		email   string
		wantErr error
	}{
		{"empty", "   ", ErrEmptyEmail},
		{"unknown", "nobody@example.com", ErrUserNotFound},
		{"self", "ME@example.com", ErrSelfChat},
		{"normalized", "  Bob@Example.COM ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, peer, err := r.AddByEmail(ctx, "me", tt.email)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddByEmail() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (peer.ID != "bob" || !res.Created) {
				t.Errorf("res = %+v, peer = %+v", res, peer)
			}
		})
	}

	again, _, err := r.AddByEmail(ctx, "me", "bob@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if again.Created {
		t.Error("second add should report the existing chat")
	}
}

func TestLookupEmailCachesHits(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.CreateUser(ctx, &store.User{ID: "bob", Email: "bob@example.com"})
	cs := &countingStore{Store: db}
	r := New(cs, nil, zap.NewNop())

	for range 3 {
		if _, err := r.LookupEmail(ctx, "bob@example.com"); err != nil {
			t.Fatal(err)
		}
	}
	if cs.lookups != 1 {
		t.Errorf("store lookups = %d, want 1", cs.lookups)
	}

	for range 2 {
		_, _ = r.LookupEmail(ctx, "nobody@example.com")
	}
	if cs.lookups != 3 {
		t.Errorf("misses should not be cached, lookups = %d, want 3", cs.lookups)
	}
}

func TestForgetDropsCachedLookup(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.CreateUser(ctx, &store.User{ID: "bob", Email: "bob@example.com"})
	cs := &countingStore{Store: db}
	r := New(cs, nil, zap.NewNop())

	if _, err := r.LookupEmail(ctx, "bob@example.com"); err != nil {
		t.Fatal(err)
	}
	r.Forget(" Bob@Example.com")
	_ = db.CreateUser(ctx, &store.User{ID: "bob", Email: "robert@example.com"})

	if _, err := r.LookupEmail(ctx, "bob@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("LookupEmail(old) error = %v, want ErrUserNotFound", err)
	}
	if cs.lookups != 2 {
		t.Errorf("store lookups = %d, want 2", cs.lookups)
	}
}
