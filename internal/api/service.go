package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/matheus3301/chatcore/internal/account"
	"github.com/matheus3301/chatcore/internal/auth"
	"github.com/matheus3301/chatcore/internal/bus"
	"github.com/matheus3301/chatcore/internal/chatlist"
	"github.com/matheus3301/chatcore/internal/messaging"
	"github.com/matheus3301/chatcore/internal/push"
	"github.com/matheus3301/chatcore/internal/resolve"
	"github.com/matheus3301/chatcore/internal/screens"
	"github.com/matheus3301/chatcore/internal/store"
	"github.com/matheus3301/chatcore/internal/timeline"
	"github.com/matheus3301/chatcore/internal/unread"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Screen states accepted by SetHomeState and SetChatState.
const (
	StateResumed = "resumed"
	StatePaused  = "paused"
)

// ChatStore is the part of the document store the service reads directly.
type ChatStore interface {
	GetChat(ctx context.Context, id string) (*store.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]store.Message, error)
}

// Service implements ChatServiceServer for the signed-in user.
type Service struct {
	auth       auth.Provider
	screens    *screens.Manager
	aggregator *chatlist.Aggregator
	chats      ChatStore
	unread     *unread.Tracker
	resolver   *resolve.Resolver
	sender     *messaging.Sender
	registrar  *push.Registrar
	profiles   *account.Profiles
	bus        *bus.Bus
	logger     *zap.Logger
}

var _ ChatServiceServer = (*Service)(nil)

func NewService(
	a auth.Provider,
	mgr *screens.Manager,
	agg *chatlist.Aggregator,
	chats ChatStore,
	tracker *unread.Tracker,
	resolver *resolve.Resolver,
	sender *messaging.Sender,
	registrar *push.Registrar,
	profiles *account.Profiles,
	b *bus.Bus,
	logger *zap.Logger,
) *Service {
	return &Service{
		auth:       a,
		screens:    mgr,
		aggregator: agg,
		chats:      chats,
		unread:     tracker,
		resolver:   resolver,
		sender:     sender,
		registrar:  registrar,
		profiles:   profiles,
		bus:        b,
		logger:     logger,
	}
}

func (s *Service) user() (string, error) {
	id, err := s.auth.CurrentUserID()
	if err != nil {
		return "", toStatus("auth", err)
	}
	return id, nil
}

// SetHomeState resumes or pauses the home screen.
func (s *Service) SetHomeState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	state, err := requireField(req, "state")
	if err != nil {
		return nil, toStatus("set home state", err)
	}
	home := s.screens.Home()
	switch state {
	case StateResumed:
		// screens outlive the request
		err = home.Resume(context.WithoutCancel(ctx))
	case StatePaused:
		err = home.Pause()
	default:
		err = fmt.Errorf("%w: state must be %q or %q", errBadRequest, StateResumed, StatePaused)
	}
	if err != nil {
		return nil, toStatus("set home state", err)
	}
	return newStruct(map[string]any{"state": string(home.State())})
}

// ListChats returns the last rendered chat list, or a fresh pass when
// "fresh" is set.
func (s *Service) ListChats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if !req.GetFields()["fresh"].GetBoolValue() {
		return newStruct(snapshotMap(s.screens.Home().Snapshot()))
	}
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	rows, err := s.aggregator.Pass(ctx, userID)
	if err != nil {
		return nil, toStatus("list chats", err)
	}
	return newStruct(snapshotMap(chatlist.Snapshot{Rows: rows}))
}

// WatchChatList streams every rendered chat list, starting with the current one.
func (s *Service) WatchChatList(_ *structpb.Struct, stream grpc.ServerStream) error {
	ch, unsub := s.bus.Subscribe(bus.KindChatListRendered, 16)
	defer unsub()
	s.logger.Debug("chat list watcher attached")

	send := func(snap chatlist.Snapshot) error {
		out, err := newStruct(snapshotMap(snap))
		if err != nil {
			return err
		}
		return stream.SendMsg(out)
	}
	if snap := s.screens.Home().Snapshot(); !snap.RenderedAt.IsZero() {
		if err := send(snap); err != nil {
			return err
		}
	}

	for {
		select {
		case evt := <-ch:
			snap, ok := evt.Payload.(chatlist.Snapshot)
			if !ok {
				continue
			}
			if err := send(snap); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// OpenChat opens a conversation screen. peer_id is looked up when omitted.
func (s *Service) OpenChat(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireField(req, "chat_id")
	if err != nil {
		return nil, toStatus("open chat", err)
	}
	peerID := field(req, "peer_id")
	if peerID == "" {
		if peerID, err = s.peerOf(ctx, chatID); err != nil {
			return nil, toStatus("open chat", err)
		}
	}

	c, err := s.screens.Open(context.WithoutCancel(ctx), chatID, peerID)
	if err != nil {
		return nil, toStatus("open chat", err)
	}
	return newStruct(map[string]any{
		"chat_id": c.ChatID(),
		"peer_id": c.PeerID(),
		"state":   string(c.State()),
	})
}

func (s *Service) peerOf(ctx context.Context, chatID string) (string, error) {
	userID, err := s.auth.CurrentUserID()
	if err != nil {
		return "", err
	}
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	return chatlist.PeerOf(*chat, userID)
}

func (s *Service) SetChatState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireField(req, "chat_id")
	if err != nil {
		return nil, toStatus("set chat state", err)
	}
	state, err := requireField(req, "state")
	if err != nil {
		return nil, toStatus("set chat state", err)
	}
	c, err := s.screens.Conversation(chatID)
	if err != nil {
		return nil, toStatus("set chat state", err)
	}
	switch state {
	case StateResumed:
		err = c.Resume(context.WithoutCancel(ctx))
	case StatePaused:
		err = c.Pause()
	default:
		err = fmt.Errorf("%w: state must be %q or %q", errBadRequest, StateResumed, StatePaused)
	}
	if err != nil {
		return nil, toStatus("set chat state", err)
	}
	return newStruct(map[string]any{"chat_id": chatID, "state": string(c.State())})
}

func (s *Service) CloseChat(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireField(req, "chat_id")
	if err != nil {
		return nil, toStatus("close chat", err)
	}
	if err := s.screens.Close(chatID); err != nil {
		return nil, toStatus("close chat", err)
	}
	return newStruct(map[string]any{"chat_id": chatID})
}

// GetTimeline returns the open conversation's timeline, or builds one from
// the stored messages when the conversation is not open.
func (s *Service) GetTimeline(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireField(req, "chat_id")
	if err != nil {
		return nil, toStatus("get timeline", err)
	}
	if c, err := s.screens.Conversation(chatID); err == nil {
		return newStruct(timelineMap(chatID, c.Timeline()))
	}

	msgs, err := s.chats.ListMessages(ctx, chatID)
	if err != nil {
		return nil, toStatus("get timeline", err)
	}
	now := time.Now()
	return newStruct(timelineMap(chatID, timeline.Build(msgs, now, now.Location())))
}

func (s *Service) MarkRead(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	chatID, err := requireField(req, "chat_id")
	if err != nil {
		return nil, toStatus("mark read", err)
	}
	peerID := field(req, "peer_id")
	if peerID == "" {
		if peerID, err = s.peerOf(ctx, chatID); err != nil {
			return nil, toStatus("mark read", err)
		}
	}
	n, err := s.unread.MarkAsRead(ctx, chatID, peerID)
	if err != nil {
		return nil, toStatus("mark read", err)
	}
	return newStruct(map[string]any{"chat_id": chatID, "marked": n})
}

func (s *Service) SendText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	chatID, err := requireField(req, "chat_id")
	if err != nil {
		return nil, toStatus("send text", err)
	}
	msg, err := s.sender.SendText(ctx, userID, chatID, field(req, "text"))
	if err != nil {
		return nil, toStatus("send text", err)
	}
	return newStruct(map[string]any{"message": messageMap(msg)})
}

// SendImage takes the image bytes base64-encoded in "data".
func (s *Service) SendImage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	chatID, err := requireField(req, "chat_id")
	if err != nil {
		return nil, toStatus("send image", err)
	}
	encoded, err := requireField(req, "data")
	if err != nil {
		return nil, toStatus("send image", err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, toStatus("send image", fmt.Errorf("%w: data is not base64", errBadRequest))
	}
	msg, err := s.sender.SendImage(ctx, userID, chatID, bytes.NewReader(data))
	if err != nil {
		return nil, toStatus("send image", err)
	}
	return newStruct(map[string]any{"message": messageMap(msg)})
}

// AddChat starts a chat with the user registered under "email". "created" is
// false when the chat already existed.
func (s *Service) AddChat(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	res, peer, err := s.resolver.AddByEmail(ctx, userID, field(req, "email"))
	if err != nil {
		return nil, toStatus("add chat", err)
	}
	return newStruct(map[string]any{
		"chat_id":   res.ChatID,
		"peer_id":   res.PeerID,
		"peer_name": peer.Name,
		"created":   res.Created,
	})
}

func (s *Service) RegisterDevice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	sub, err := requireField(req, "subscription")
	if err != nil {
		return nil, toStatus("register device", err)
	}
	if err := s.registrar.Register(ctx, userID, sub); err != nil {
		return nil, toStatus("register device", err)
	}
	return newStruct(map[string]any{"user_id": userID})
}

// SaveProfile registers or updates the signed-in user's name and email.
func (s *Service) SaveProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	u, err := s.profiles.Save(ctx, userID, field(req, "name"), field(req, "email"))
	if err != nil {
		return nil, toStatus("save profile", err)
	}
	return newStruct(profileMap(u))
}

func (s *Service) GetProfile(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	u, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, toStatus("get profile", err)
	}
	return newStruct(profileMap(u))
}
