// Package client talks to a running chatd over its Unix socket.
package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/matheus3301/chatcore/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn   grpc.ClientConnInterface
	closer io.Closer
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn, closer: conn}, nil
}

// FromConn wraps an existing connection; Close leaves it open.
func FromConn(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Call invokes a unary ChatService method.
func (c *Client) Call(ctx context.Context, method string, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	in, err := structpb.NewStruct(args)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Healthy reports whether the daemon answers its health check.
func (c *Client) Healthy(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		return err
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("daemon status %s", resp.Status)
	}
	return nil
}

func (c *Client) SetHomeState(ctx context.Context, state string) (map[string]any, error) {
	return c.Call(ctx, api.MethodSetHomeState, map[string]any{"state": state})
}

func (c *Client) ListChats(ctx context.Context, fresh bool) (map[string]any, error) {
	return c.Call(ctx, api.MethodListChats, map[string]any{"fresh": fresh})
}

func (c *Client) OpenChat(ctx context.Context, chatID, peerID string) (map[string]any, error) {
	return c.Call(ctx, api.MethodOpenChat, map[string]any{"chat_id": chatID, "peer_id": peerID})
}

func (c *Client) SetChatState(ctx context.Context, chatID, state string) (map[string]any, error) {
	return c.Call(ctx, api.MethodSetChatState, map[string]any{"chat_id": chatID, "state": state})
}

func (c *Client) CloseChat(ctx context.Context, chatID string) (map[string]any, error) {
	return c.Call(ctx, api.MethodCloseChat, map[string]any{"chat_id": chatID})
}

func (c *Client) GetTimeline(ctx context.Context, chatID string) (map[string]any, error) {
	return c.Call(ctx, api.MethodGetTimeline, map[string]any{"chat_id": chatID})
}

func (c *Client) MarkRead(ctx context.Context, chatID, peerID string) (map[string]any, error) {
	return c.Call(ctx, api.MethodMarkRead, map[string]any{"chat_id": chatID, "peer_id": peerID})
}

func (c *Client) SendText(ctx context.Context, chatID, text string) (map[string]any, error) {
	return c.Call(ctx, api.MethodSendText, map[string]any{"chat_id": chatID, "text": text})
}

func (c *Client) SendImage(ctx context.Context, chatID string, data []byte) (map[string]any, error) {
	return c.Call(ctx, api.MethodSendImage, map[string]any{
		"chat_id": chatID,
		"data":    base64.StdEncoding.EncodeToString(data),
	})
}

func (c *Client) AddChat(ctx context.Context, email string) (map[string]any, error) {
	return c.Call(ctx, api.MethodAddChat, map[string]any{"email": email})
}

func (c *Client) RegisterDevice(ctx context.Context, subscription string) (map[string]any, error) {
	return c.Call(ctx, api.MethodRegisterDevice, map[string]any{"subscription": subscription})
}

func (c *Client) SaveProfile(ctx context.Context, name, email string) (map[string]any, error) {
	return c.Call(ctx, api.MethodSaveProfile, map[string]any{"name": name, "email": email})
}

func (c *Client) GetProfile(ctx context.Context) (map[string]any, error) {
	return c.Call(ctx, api.MethodGetProfile, nil)
}

// WatchChatList calls fn with every chat list snapshot until ctx ends, the
// stream fails, or fn returns an error.
func (c *Client) WatchChatList(ctx context.Context, fn func(map[string]any) error) error {
	stream, err := c.conn.NewStream(ctx, api.WatchChatListStreamDesc, api.FullMethod(api.MethodWatchChatList))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(out.AsMap()); err != nil {
			return err
		}
	}
}
