package chatlist

import (
	"sync"
	"time"

	"github.com/matheus3301/chatcore/internal/bus"
	"github.com/matheus3301/chatcore/internal/metrics"
)

// Snapshot is a full rendered list, the payload of bus.KindChatListRendered.
type Snapshot struct {
	Rows       []Row
	RenderedAt time.Time
}

// View holds the last rendered list. Each render replaces it wholesale.
type View struct {
	bus     *bus.Bus
	metrics *metrics.Metrics

	mu   sync.RWMutex
	snap Snapshot
}

func NewView(b *bus.Bus, m *metrics.Metrics) *View {
	return &View{bus: b, metrics: m}
}

func (v *View) Render(rows []Row) {
	snap := Snapshot{Rows: append([]Row(nil), rows...), RenderedAt: time.Now()}

	v.mu.Lock()
	v.snap = snap
	v.mu.Unlock()

	v.metrics.PassRows.Set(float64(len(rows)))
	if v.bus != nil {
		v.bus.Emit(bus.KindChatListRendered, snap)
	}
}

// Snapshot returns a copy of the last render.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Snapshot{Rows: append([]Row(nil), v.snap.Rows...), RenderedAt: v.snap.RenderedAt}
}
