// Package timeline turns a conversation's ordered messages into display rows
// with a date separator before the first message of each calendar day.
package timeline

import (
	"time"

	"github.com/matheus3301/chatcore/internal/store"
)

type Kind string

const (
	KindSeparator Kind = "separator"
	KindMessage   Kind = "message"
)

// DateLayout is used for separators older than yesterday.
const DateLayout = "02/01/2006"

// Item is one timeline row: a separator with Label, or a message.
type Item struct {
	Kind    Kind
	Label   string
	Day     time.Time
	Message *store.Message
}

// Build derives the timeline from msgs, which must be sorted by timestamp
// ascending. Days are calendar days in loc. A message without a server
// timestamp yet is placed on now's day.
func Build(msgs []store.Message, now time.Time, loc *time.Location) []Item {
	if len(msgs) == 0 {
		return nil
	}
	items := make([]Item, 0, len(msgs)+4)
	var prevDay time.Time
	for i := range msgs {
		m := &msgs[i]
		day := dayOf(m.Timestamp, now, loc)
		if i == 0 || !day.Equal(prevDay) {
			items = append(items, Item{Kind: KindSeparator, Label: Label(day, now, loc), Day: day})
			prevDay = day
		}
		items = append(items, Item{Kind: KindMessage, Message: m, Day: day})
	}
	return items
}

// Label names day relative to now: "Today", "Yesterday", or dd/MM/yyyy.
func Label(day, now time.Time, loc *time.Location) string {
	today := startOfDay(now.In(loc))
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format(DateLayout)
	}
}

func dayOf(ms int64, now time.Time, loc *time.Location) time.Time {
	t := now
	if ms > 0 {
		t = time.UnixMilli(ms)
	}
	return startOfDay(t.In(loc))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
