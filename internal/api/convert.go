package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/chatcore/internal/chatlist"
	"github.com/matheus3301/chatcore/internal/store"
	"github.com/matheus3301/chatcore/internal/timeline"
	"google.golang.org/protobuf/types/known/structpb"
)

var errBadRequest = errors.New("bad request")

func field(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func requireField(req *structpb.Struct, key string) (string, error) {
	v := field(req, key)
	if v == "" {
		return "", fmt.Errorf("%w: missing field %s", errBadRequest, key)
	}
	return v, nil
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

// millis is t in Unix milliseconds, 0 for the zero time.
func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func profileMap(u *store.User) map[string]any {
	return map[string]any{
		"user_id":   u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"online":    u.Online,
		"last_seen": u.LastSeen,
	}
}

func rowMap(r chatlist.Row) map[string]any {
	return map[string]any{
		"chat_id":         r.ChatID,
		"peer_id":         r.PeerID,
		"peer_name":       r.PeerName,
		"online":          r.Online,
		"preview":         r.Preview,
		"last_message_at": millis(r.LastMessageAt),
		"unread":          r.Unread,
		"degraded":        r.Degraded,
	}
}

func snapshotMap(s chatlist.Snapshot) map[string]any {
	rows := make([]any, len(s.Rows))
	for i, r := range s.Rows {
		rows[i] = rowMap(r)
	}
	return map[string]any{
		"rows":        rows,
		"rendered_at": millis(s.RenderedAt),
	}
}

func messageMap(m *store.Message) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"chat_id":     m.ChatID,
		"sender_id":   m.SenderID,
		"sender_name": m.SenderName,
		"type":        m.Kind,
		"text":        m.Text,
		"image_url":   m.ImageURL,
		"timestamp":   m.Timestamp,
		"read":        m.Read,
	}
}

func timelineMap(chatID string, items []timeline.Item) map[string]any {
	out := make([]any, len(items))
	for i, it := range items {
		if it.Kind == timeline.KindSeparator {
			out[i] = map[string]any{"kind": string(it.Kind), "label": it.Label}
			continue
		}
		m := messageMap(it.Message)
		m["kind"] = string(it.Kind)
		out[i] = m
	}
	return map[string]any{"chat_id": chatID, "items": out}
}
