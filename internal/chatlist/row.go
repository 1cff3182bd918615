package chatlist

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/chatcore/internal/store"
)

// ErrInvalidParticipants marks a chat that is not exactly the user plus one peer.
var ErrInvalidParticipants = errors.New("chat does not have exactly two participants")

// Row is one rendered chat list entry.
type Row struct {
	ChatID        string
	PeerID        string
	PeerName      string
	Online        bool
	Preview       string
	LastMessageAt time.Time // zero when the chat has no messages
	Unread        int
	// Degraded is set when the row carries placeholder data.
	Degraded bool
}

// PeerOf returns the participant of c that is not userID.
func PeerOf(c store.Chat, userID string) (string, error) {
	if len(c.Participants) != 2 {
		return "", fmt.Errorf("chat %s has %d participants: %w", c.ID, len(c.Participants), ErrInvalidParticipants)
	}
	a, b := c.Participants[0], c.Participants[1]
	switch {
	case a == userID && b != userID:
		return b, nil
	case b == userID && a != userID:
		return a, nil
	}
	return "", fmt.Errorf("chat %s participants %v for user %s: %w", c.ID, c.Participants, userID, ErrInvalidParticipants)
}

// Sort orders rows by last message time descending. Rows without a last
// message go last; ties keep their input order.
func Sort(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		switch {
		case a.LastMessageAt.IsZero() && b.LastMessageAt.IsZero():
			return 0
		case a.LastMessageAt.IsZero():
			return 1
		case b.LastMessageAt.IsZero():
			return -1
		}
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})
}

// TimeAgo is the short relative label shown next to a row.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%d min", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hr", int(d/time.Hour))
	case d < 48*time.Hour:
		return "1 day"
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%d days", int(d/(24*time.Hour)))
	}
	return t.Format("02/01/06")
}
