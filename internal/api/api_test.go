package api_test

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/chatcore/internal/account"
	"github.com/matheus3301/chatcore/internal/api"
	"github.com/matheus3301/chatcore/internal/auth"
	"github.com/matheus3301/chatcore/internal/blob"
	"github.com/matheus3301/chatcore/internal/bus"
	"github.com/matheus3301/chatcore/internal/chatlist"
	"github.com/matheus3301/chatcore/internal/client"
	"github.com/matheus3301/chatcore/internal/messaging"
	"github.com/matheus3301/chatcore/internal/metrics"
	"github.com/matheus3301/chatcore/internal/push"
	"github.com/matheus3301/chatcore/internal/resolve"
	"github.com/matheus3301/chatcore/internal/screens"
	"github.com/matheus3301/chatcore/internal/store"
	"github.com/matheus3301/chatcore/internal/unread"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 0x49, 0x48, 0x44, 0x52}

type env struct {
	db     *store.DB
	mgr    *screens.Manager
	client *client.Client
}

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

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testDB(t)
	for _, u := range []*store.User{
		{ID: "me", Name: "Ana", Email: "ana@example.com"},
		{ID: "peer", Name: "Bruno", Email: "bruno@example.com"},
	} {
		if err := db.CreateUser(context.Background(), u); err != nil {
			t.Fatal(err)
		}
	}
	return serve(t, db, "me")
}

// serve runs a ChatService signed in as userID over bufconn.
func serve(t *testing.T, db *store.DB, userID string) *env {
	t.Helper()
	logger := zap.NewNop()
	b := bus.New()
	m := metrics.New()
	blobs, err := blob.NewLocal(filepath.Join(t.TempDir(), "blobs"), "https://cdn.example.com")
	if err != nil {
		t.Fatal(err)
	}
	tracker := unread.NewTracker(db, b, m, logger)
	agg := chatlist.NewAggregator(db, tracker, chatlist.Options{StaleAfter: 10 * time.Second}, m, logger)
	mgr := screens.NewManager(screens.Deps{
		UserID: userID, Store: db, Aggregator: agg, Unread: tracker,
		Bus: b, Metrics: m, Logger: logger,
		Heartbeat: time.Hour, Refresh: time.Hour,
	})
	resolver := resolve.New(db, b, logger)
	svc := api.NewService(
		auth.Static(userID), mgr, agg, db, tracker, resolver,
		messaging.NewSender(db, blobs, push.Nop{}, b, m, logger),
		push.NewRegistrar(db, logger),
		account.New(db, resolver, logger),
		b, logger,
	)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	api.RegisterChatServiceServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = mgr.Shutdown()
		_ = conn.Close()
		srv.Stop()
	})
	return &env{db: db, mgr: mgr, client: client.FromConn(conn)}
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := grpcstatus.Code(err); got != code {
		t.Errorf("code = %s (%v), want %s", got, err, code)
	}
}

func TestAddChatSendAndTimeline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	added, err := e.client.AddChat(ctx, "  Bruno@Example.com ")
	if err != nil {
		t.Fatal(err)
	}
	if added["created"] != true || added["peer_id"] != "peer" || added["peer_name"] != "Bruno" {
		t.Errorf("AddChat() = %v", added)
	}
	chatID := added["chat_id"].(string)

	again, err := e.client.AddChat(ctx, "bruno@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if again["created"] != false || again["chat_id"] != chatID {
		t.Errorf("second AddChat() = %v, want existing chat", again)
	}

	if _, err := e.client.SendText(ctx, chatID, "hello"); err != nil {
		t.Fatal(err)
	}
	img, err := e.client.SendImage(ctx, chatID, pngHeader)
	if err != nil {
		t.Fatal(err)
	}
	if msg := img["message"].(map[string]any); msg["type"] != store.KindImage {
		t.Errorf("image message = %v", msg)
	}

	tl, err := e.client.GetTimeline(ctx, chatID)
	if err != nil {
		t.Fatal(err)
	}
	items := tl["items"].([]any)
	if len(items) != 3 {
		t.Fatalf("timeline has %d items, want separator + 2 messages", len(items))
	}
	if first := items[0].(map[string]any); first["kind"] != "separator" || first["label"] != "Today" {
		t.Errorf("first item = %v", first)
	}

	list, err := e.client.ListChats(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	rows := list["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	row := rows[0].(map[string]any)
	if row["preview"] != messaging.ImagePreview || row["peer_name"] != "Bruno" || row["unread"] != float64(0) {
		t.Errorf("row = %v", row)
	}
}

func TestOpenChatMarksPeerMessagesRead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	chat, err := e.db.CreateChat(ctx, []string{"me", "peer"})
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if _, err := e.db.AddMessage(ctx, &store.Message{ChatID: chat.ID, SenderID: "peer", Text: "hi"}); err != nil {
			t.Fatal(err)
		}
	}

	opened, err := e.client.OpenChat(ctx, chat.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if opened["peer_id"] != "peer" || opened["state"] != "RESUMED" {
		t.Errorf("OpenChat() = %v", opened)
	}
	if n, _ := e.db.CountUnread(ctx, chat.ID, "peer"); n != 0 {
		t.Errorf("unread after open = %d, want 0", n)
	}

	paused, err := e.client.SetChatState(ctx, chat.ID, api.StatePaused)
	if err != nil {
		t.Fatal(err)
	}
	if paused["state"] != "PAUSED" {
		t.Errorf("SetChatState() = %v", paused)
	}
	if _, err := e.client.CloseChat(ctx, chat.ID); err != nil {
		t.Fatal(err)
	}
	_, err = e.client.SetChatState(ctx, chat.ID, api.StateResumed)
	wantCode(t, err, codes.NotFound)
}

func TestErrorCodes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	chat, err := e.db.CreateChat(ctx, []string{"me", "peer"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.client.AddChat(ctx, "")
	wantCode(t, err, codes.InvalidArgument)
	_, err = e.client.AddChat(ctx, "nobody@example.com")
	wantCode(t, err, codes.NotFound)
	_, err = e.client.AddChat(ctx, "ana@example.com")
	wantCode(t, err, codes.InvalidArgument)
	_, err = e.client.SendText(ctx, chat.ID, "   ")
	wantCode(t, err, codes.InvalidArgument)
	_, err = e.client.SendImage(ctx, chat.ID, []byte("not an image"))
	wantCode(t, err, codes.InvalidArgument)
	_, err = e.client.SendText(ctx, "missing", "hi")
	wantCode(t, err, codes.NotFound)
	_, err = e.client.SetHomeState(ctx, api.StatePaused)
	wantCode(t, err, codes.FailedPrecondition)
	_, err = e.client.SetHomeState(ctx, "sideways")
	wantCode(t, err, codes.InvalidArgument)
	_, err = e.client.RegisterDevice(ctx, "")
	wantCode(t, err, codes.InvalidArgument)
}

func TestWatchChatListStreamsRenders(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := e.db.CreateChat(ctx, []string{"me", "peer"}); err != nil {
		t.Fatal(err)
	}

	got := make(chan map[string]any, 4)
	go func() {
		_ = e.client.WatchChatList(ctx, func(snap map[string]any) error {
			got <- snap
			return nil
		})
	}()
	// give the stream time to subscribe before the first render
	time.Sleep(100 * time.Millisecond)

	if _, err := e.client.SetHomeState(ctx, api.StateResumed); err != nil {
		t.Fatal(err)
	}
	select {
	case snap := <-got:
		if rows := snap["rows"].([]any); len(rows) != 1 {
			t.Errorf("streamed rows = %v", rows)
		}
	case <-ctx.Done():
		t.Fatal("no snapshot streamed")
	}
}

func TestRegisterDevice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.client.RegisterDevice(ctx, `{"endpoint":"https://push.example.com/x"}`); err != nil {
		t.Fatal(err)
	}
	u, err := e.db.GetUser(ctx, "me")
	if err != nil {
		t.Fatal(err)
	}
	if u.PushSubscription == "" {
		t.Error("subscription not stored")
	}
}

func TestRegisteredProfilesCanAddEachOtherByEmail(t *testing.T) {
	db := testDB(t)
	ana := serve(t, db, "me")
	bruno := serve(t, db, "peer")
	ctx := context.Background()

	if _, err := ana.client.AddChat(ctx, "bruno@example.com"); grpcstatus.Code(err) != codes.NotFound {
		t.Fatalf("AddChat before registration: %v, want NotFound", err)
	}

	saved, err := bruno.client.SaveProfile(ctx, "Bruno", "  Bruno@Example.com ")
	if err != nil {
		t.Fatal(err)
	}
	if saved["email"] != "bruno@example.com" || saved["online"] != true {
		t.Errorf("SaveProfile() = %v", saved)
	}
	if _, err := ana.client.SaveProfile(ctx, "Ana", "ana@example.com"); err != nil {
		t.Fatal(err)
	}

	added, err := ana.client.AddChat(ctx, "BRUNO@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if added["created"] != true || added["peer_id"] != "peer" || added["peer_name"] != "Bruno" {
		t.Errorf("AddChat() = %v", added)
	}

	back, err := bruno.client.AddChat(ctx, "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if back["created"] != false || back["chat_id"] != added["chat_id"] {
		t.Errorf("reverse AddChat() = %v, want the existing chat", back)
	}

	list, err := ana.client.ListChats(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	rows := list["rows"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["peer_name"] != "Bruno" {
		t.Errorf("rows = %v", rows)
	}

	got, err := ana.client.GetProfile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got["name"] != "Ana" || got["user_id"] != "me" {
		t.Errorf("GetProfile() = %v", got)
	}
}

func TestProfileErrorCodes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.client.SaveProfile(ctx, "", "ana@example.com")
	wantCode(t, err, codes.InvalidArgument)
	_, err = e.client.SaveProfile(ctx, "Ana", "")
	wantCode(t, err, codes.InvalidArgument)
	_, err = e.client.SaveProfile(ctx, "Ana", "bruno@example.com")
	wantCode(t, err, codes.AlreadyExists)

	stranger := serve(t, e.db, "ghost")
	_, err = stranger.client.GetProfile(ctx)
	wantCode(t, err, codes.NotFound)
}
