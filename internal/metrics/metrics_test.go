package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	m := New()
	m.DegradedRows.Inc()
	m.PresenceWrites.WithLabelValues(WriteFailed).Inc()

	if got := testutil.ToFloat64(m.DegradedRows); got != 1 {
		t.Errorf("degraded rows = %v, want 1", got)
	}

	const want = `
# HELP chatcore_presence_writes_total Presence writes by outcome.
# TYPE chatcore_presence_writes_total counter
chatcore_presence_writes_total{result="failed"} 1
`
	if err := testutil.GatherAndCompare(m.Registry, strings.NewReader(want), "chatcore_presence_writes_total"); err != nil {
		t.Error(err)
	}
}

func TestNewIsIndependent(t *testing.T) {
	a, b := New(), New()
	a.UnreadMarked.Add(3)
	if got := testutil.ToFloat64(b.UnreadMarked); got != 0 {
		t.Errorf("second registry saw %v, want 0", got)
	}
}
