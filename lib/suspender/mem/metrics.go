package mem

import (
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// restoreCause tells which operation restored an object
type restoreCause int

const (
	restoreCauseExplicit restoreCause = iota
	restoreCauseMinimum
	restoreCauseExpired
)

func (c restoreCause) String() string {
	switch c {
	case restoreCauseExplicit:
		return "explicit"
	case restoreCauseMinimum:
		return "minimum"
	case restoreCauseExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// engineMetrics is the metric set of one suspender instance.
// Every instance owns its own set so that several engines in one process do not share counters.
type engineMetrics struct {
	set *metrics.Set

	suspended        *metrics.Counter
	restored         [3]*metrics.Counter // indexed by restoreCause
	listenerFailures *metrics.Counter
	sweeps           *metrics.Counter
	sweepFailures    *metrics.Counter
	sweepDuration    *metrics.Histogram
}

// newEngineMetrics registers the metric set. suspendedObjects and activeGroups back the gauges.
func newEngineMetrics(suspendedObjects, activeGroups func() float64) *engineMetrics {
	set := metrics.NewSet()

	m := &engineMetrics{
		set:              set,
		suspended:        set.NewCounter("dsuspend_suspended_total"),
		listenerFailures: set.NewCounter("dsuspend_listener_failures_total"),
		sweeps:           set.NewCounter("dsuspend_sweeps_total"),
		sweepFailures:    set.NewCounter("dsuspend_sweep_failures_total"),
		sweepDuration:    set.NewHistogram("dsuspend_sweep_duration_seconds"),
	}

	for _, cause := range []restoreCause{restoreCauseExplicit, restoreCauseMinimum, restoreCauseExpired} {
		m.restored[cause] = set.NewCounter(`dsuspend_restored_total{cause="` + cause.String() + `"}`)
	}

	set.NewGauge("dsuspend_suspended_objects", suspendedObjects)
	set.NewGauge("dsuspend_active_groups", activeGroups)

	return m
}

func (m *engineMetrics) objectSuspended() {
	m.suspended.Inc()
}

func (m *engineMetrics) objectsRestored(cause restoreCause, n int) {
	if n > 0 {
		m.restored[cause].Add(n)
	}
}

func (m *engineMetrics) listenerFailed() {
	m.listenerFailures.Inc()
}

func (m *engineMetrics) sweepDone(start time.Time, failed bool) {
	m.sweeps.Inc()
	if failed {
		m.sweepFailures.Inc()
	}
	m.sweepDuration.UpdateDuration(start)
}

func (m *engineMetrics) restoredCount(cause restoreCause) uint64 {
	return m.restored[cause].Get()
}

func (m *engineMetrics) writePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
