package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/matheus3301/chatcore/internal/store"
	"go.uber.org/zap"
)

// UserGetter reads the stored subscription of a user.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
}

// WebPush sends Web Push messages to the subscription stored on the user.
type WebPush struct {
	users  UserGetter
	cfg    WebPushConfig
	logger *zap.Logger
}

func NewWebPush(users UserGetter, cfg WebPushConfig, logger *zap.Logger) *WebPush {
	if cfg.TTL == 0 {
		cfg.TTL = 60
	}
	return &WebPush{users: users, cfg: cfg, logger: logger}
}

func (w *WebPush) Notify(ctx context.Context, userID string, p Payload) error {
	u, err := w.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if u.PushSubscription == "" {
		w.logger.Debug("recipient has no push subscription", zap.String("user_id", userID))
		return nil
	}

	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(u.PushSubscription), &sub); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}
	body, err := json.Marshal(p.Map())
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &sub, &webpush.Options{
		Subscriber:      w.cfg.Subscriber,
		VAPIDPublicKey:  w.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: w.cfg.VAPIDPrivateKey,
		TTL:             w.cfg.TTL,
	})
	if err != nil {
		return fmt.Errorf("send web push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("web push rejected: %s", resp.Status)
	}
	return nil
}
