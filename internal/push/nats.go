package push

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
)

// Publisher is the slice of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS hands payloads to a push gateway listening on <subject>.<userID>.
type NATS struct {
	conn    Publisher
	subject string
}

func NewNATS(conn Publisher, subject string) *NATS {
	return &NATS{conn: conn, subject: subject}
}

// DialNATS connects with reconnects enabled.
func DialNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("chatd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

func (n *NATS) Notify(ctx context.Context, userID string, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(p.Map())
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := n.conn.Publish(n.subject+"."+userID, data); err != nil {
		return fmt.Errorf("publish push: %w", err)
	}
	return nil
}
