// Package messaging appends outgoing messages to a conversation.
package messaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/matheus3301/chatcore/internal/blob"
	"github.com/matheus3301/chatcore/internal/bus"
	"github.com/matheus3301/chatcore/internal/metrics"
	"github.com/matheus3301/chatcore/internal/push"
	"github.com/matheus3301/chatcore/internal/store"
	"go.uber.org/zap"
)

// ImagePreview is the conversation summary of an image message.
const ImagePreview = "📷 Image"

// sniffLen is how many leading bytes filetype needs to match any image kind.
const sniffLen = 261

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNotParticipant = errors.New("sender is not a participant of the chat")
)

// Store is the part of the document store the sender writes through.
type Store interface {
	GetChat(ctx context.Context, id string) (*store.Chat, error)
	GetUser(ctx context.Context, id string) (*store.User, error)
	AddMessage(ctx context.Context, m *store.Message) (*store.Message, error)
	UpdateChatSummary(ctx context.Context, chatID, text, senderID string, at int64) error
}

// Created is the payload of bus.KindMessageCreated.
type Created struct {
	ChatID    string
	MessageID string
	SenderID  string
}

// Sender appends messages, keeps the conversation summary current and
// notifies the peer.
type Sender struct {
	store   Store
	blobs   blob.Store
	push    push.Notifier
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewSender(s Store, blobs blob.Store, n push.Notifier, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Sender {
	if n == nil {
		n = push.Nop{}
	}
	return &Sender{store: s, blobs: blobs, push: n, bus: b, metrics: m, logger: logger}
}

// SendText appends a text message from userID to chatID.
func (s *Sender) SendText(ctx context.Context, userID, chatID, text string) (*store.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	return s.send(ctx, userID, chatID, &store.Message{Kind: store.KindText, Text: text}, text)
}

// SendImage uploads the image read from r and appends an image message
// pointing at it.
func (s *Sender) SendImage(ctx context.Context, userID, chatID string, r io.Reader) (*store.Message, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read image: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrEmptyMessage
	}
	ext, mime, err := blob.Sniff(head)
	if err != nil {
		return nil, err
	}

	// Check membership before the upload so strangers cannot fill the blob store.
	if _, _, err := s.participants(ctx, userID, chatID); err != nil {
		return nil, err
	}

	url, err := s.blobs.Upload(ctx, blob.NewKey(userID, ext), io.MultiReader(bytes.NewReader(head), r), mime)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return s.send(ctx, userID, chatID, &store.Message{Kind: store.KindImage, ImageURL: url}, ImagePreview)
}

func (s *Sender) send(ctx context.Context, userID, chatID string, m *store.Message, preview string) (*store.Message, error) {
	sender, peerID, err := s.participants(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	m.ChatID = chatID
	m.SenderID = userID
	m.SenderName = sender.Name
	m.Read = false
	msg, err := s.store.AddMessage(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if err := s.store.UpdateChatSummary(ctx, chatID, preview, userID, msg.Timestamp); err != nil {
		// the message itself is stored; the summary catches up on the next send
		s.logger.Warn("chat summary update failed", zap.String("chat_id", chatID), zap.Error(err))
	}

	s.notify(ctx, sender, peerID, msg)

	s.logger.Info("message sent",
		zap.String("chat_id", chatID),
		zap.String("msg_id", msg.ID),
		zap.String("kind", msg.Kind))
	if s.bus != nil {
		s.bus.Emit(bus.KindMessageCreated, Created{ChatID: chatID, MessageID: msg.ID, SenderID: userID})
	}
	return msg, nil
}

// participants loads the sending user and returns the other participant.
func (s *Sender) participants(ctx context.Context, userID, chatID string) (*store.User, string, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, "", fmt.Errorf("load chat %s: %w", chatID, err)
	}
	peerID := ""
	member := false
	for _, p := range chat.Participants {
		if p == userID {
			member = true
		} else {
			peerID = p
		}
	}
	if !member || peerID == "" {
		return nil, "", ErrNotParticipant
	}

	sender, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, "", fmt.Errorf("load sender: %w", err)
		}
		sender = &store.User{ID: userID}
	}
	return sender, peerID, nil
}

// notify is best-effort; a failed push never fails the send.
func (s *Sender) notify(ctx context.Context, sender *store.User, peerID string, msg *store.Message) {
	p := push.Payload{
		Title:         sender.Name,
		Body:          msg.Text,
		ChatID:        msg.ChatID,
		OtherUserID:   sender.ID,
		OtherUserName: sender.Name,
		MessageType:   msg.Kind,
	}
	if p.Title == "" {
		p.Title = "New message"
	}
	if msg.Kind == store.KindImage {
		p.Body = "Image"
	}

	if err := s.push.Notify(ctx, peerID, p); err != nil {
		s.metrics.PushDeliveries.WithLabelValues(metrics.PushFailed).Inc()
		s.logger.Warn("push delivery failed", zap.String("peer_id", peerID), zap.Error(err))
		return
	}
	s.metrics.PushDeliveries.WithLabelValues(metrics.PushSent).Inc()
}
