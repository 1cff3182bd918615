// Package push delivers new-message notifications to a user's device.
package push

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatcore/internal/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Payload is the data message a device receives.
type Payload struct {
	Title         string
	Body          string
	ChatID        string
	OtherUserID   string
	OtherUserName string
	MessageType   string
}

// Map flattens p to string pairs; optional keys are omitted when empty.
func (p Payload) Map() map[string]string {
	m := map[string]string{
		"title":       p.Title,
		"body":        p.Body,
		"messageType": p.MessageType,
	}
	if m["messageType"] == "" {
		m["messageType"] = store.KindText
	}
	for k, v := range map[string]string{
		"chatId":        p.ChatID,
		"otherUserId":   p.OtherUserID,
		"otherUserName": p.OtherUserName,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// DisplayBody is the text a device shows; images get a camera prefix.
func (p Payload) DisplayBody() string {
	if p.MessageType == store.KindImage {
		return "📷 " + p.Body
	}
	return p.Body
}

// Notifier delivers a payload to every device of userID.
type Notifier interface {
	Notify(ctx context.Context, userID string, p Payload) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, string, Payload) error { return nil }

// SubscriptionStore persists device subscriptions. Update fails when the
// user record is missing; Save creates it.
type SubscriptionStore interface {
	UpdatePushSubscription(ctx context.Context, userID, subscription string) error
	SavePushSubscription(ctx context.Context, userID, subscription string) error
}

// Registrar records the device subscription of the signed-in user.
type Registrar struct {
	store  SubscriptionStore
	logger *zap.Logger
}

func NewRegistrar(s SubscriptionStore, logger *zap.Logger) *Registrar {
	return &Registrar{store: s, logger: logger}
}

func (r *Registrar) Register(ctx context.Context, userID, subscription string) error {
	if subscription == "" {
		return fmt.Errorf("empty subscription")
	}
	updateErr := r.store.UpdatePushSubscription(ctx, userID, subscription)
	if updateErr == nil {
		r.logger.Info("push subscription registered", zap.String("user_id", userID))
		return nil
	}
	if mergeErr := r.store.SavePushSubscription(ctx, userID, subscription); mergeErr != nil {
		return fmt.Errorf("save subscription: %w", multierr.Combine(updateErr, mergeErr))
	}
	r.logger.Info("push subscription registered", zap.String("user_id", userID), zap.Bool("merged", true))
	return nil
}
