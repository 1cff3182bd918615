package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

const (
	KindScreenState      = "screen.state_changed"
	KindMessageCreated   = "message.created"
	KindMessagesRead     = "message.read"
	KindChatCreated      = "chat.created"
	KindChatListRendered = "chatlist.rendered"
	KindTimelineRendered = "timeline.rendered"
)
