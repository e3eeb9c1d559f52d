package suspender

import (
	"io"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// MinSuspensionPathSegmentCount is the minimum number of segments of a suspension path.
	// Paths with one segment less (a single segment) can still be used to query and restore groups.
	MinSuspensionPathSegmentCount = 2

	// MinSuspensionDuration is the smallest suspension duration, shorter durations are raised to it
	MinSuspensionDuration = 100 * time.Millisecond

	// MaxSuspensionDuration is the largest suspension duration, longer durations are lowered to it
	MaxSuspensionDuration = 10 * 365 * 24 * time.Hour
)

// --------------------------------------------------------------------------
// Listener
// --------------------------------------------------------------------------

// RestoredObjectListener is notified about every restored object.
//
// Listeners are called outside all internal locks, so they may call back into the suspender.
// A returned error (or a panic) is logged and does not affect other listeners or objects.
// Listeners registered with AddListener must be comparable (e.g. pointer types).
type RestoredObjectListener interface {
	// OnObjectRestored is called once per restored object with the path it was suspended by
	OnObjectRestored(path Path, object any) error
}

// --------------------------------------------------------------------------
// Info
// --------------------------------------------------------------------------

// Info contains statistics about a suspender
type Info struct {
	DivisionCount        int                    `json:"division_count"`
	SuspendedObjects     int                    `json:"suspended_objects"`
	ActiveGroups         int                    `json:"active_groups"`
	DivisionDistribution util.DistributionStats `json:"division_distribution"`
	Started              bool                   `json:"started"`
}

// --------------------------------------------------------------------------
// Suspender Interface
// --------------------------------------------------------------------------

// ISuspender suspends objects by hierarchical paths for a bounded duration.
//
// Every suspended object is restored exactly once: either explicitly (Restore, RestoreMin)
// or automatically when its suspension duration has expired. Restoring a path restores every
// object suspended by this path or by any longer path starting with it.
//
// All path operations fail with ErrCInvalidArgument if the path has too few segments.
type ISuspender interface {

	// --------------------------------------------------------------------------
	// Life-cycle
	// --------------------------------------------------------------------------

	// Start starts the background restorer. Starting twice fails with ErrCInvalidState.
	Start() (err error)

	// Stop stops the background restorer and waits until it has exited.
	// Stopping a suspender that is not started fails with ErrCInvalidState.
	Stop() (err error)

	// --------------------------------------------------------------------------
	// Listeners
	// --------------------------------------------------------------------------

	// AddListener registers a listener that is notified about all restorations
	// that are not given an explicit listener list.
	AddListener(listener RestoredObjectListener)

	// RemoveListener removes a registered listener.
	RemoveListener(listener RestoredObjectListener)

	// --------------------------------------------------------------------------
	// Operations
	// --------------------------------------------------------------------------

	// HasObjectsSuspendedBy returns whether there are objects suspended by path or by a path
	// with path as prefix. The path needs at least one segment.
	HasObjectsSuspendedBy(path Path) (ok bool, err error)

	// Suspend suspends object by path for duration. An object that is already suspended by
	// the same path is replaced (without notification). The path needs at least two segments.
	// The duration is clamped into [MinSuspensionDuration, MaxSuspensionDuration].
	Suspend(path Path, object any, duration time.Duration) (err error)

	// Restore restores all objects suspended by path or by a path with path as prefix
	// and notifies the registered listeners. The path needs at least one segment.
	Restore(path Path) (err error)

	// RestoreTo is like Restore but notifies the given listeners instead of the registered ones.
	RestoreTo(path Path, listeners []RestoredObjectListener) (err error)

	// RestoreMin restores at most one object: the one with the minimum restoration time
	// among the objects suspended by path or by a path with path as prefix.
	// If the object suspended by exactly path has the same restoration time as the minimum
	// of the longer paths, one of the longer paths wins. The path needs at least one segment.
	RestoreMin(path Path) (err error)

	// RestoreMinTo is like RestoreMin but notifies the given listeners instead of the registered ones.
	RestoreMinTo(path Path, listeners []RestoredObjectListener) (err error)

	// --------------------------------------------------------------------------
	// Restorer Tuning
	// --------------------------------------------------------------------------

	// SetRestorerSleepTimeAfterUsefulWork sets how long the restorer sleeps after a sweep
	// that restored at least one object. Clamped into [0, 10s].
	SetRestorerSleepTimeAfterUsefulWork(d time.Duration)

	// SetRestorerSleepTimeAfterIdleWork sets how long the restorer sleeps after a sweep
	// that restored nothing. Clamped into [0, 60s].
	SetRestorerSleepTimeAfterIdleWork(d time.Duration)

	// --------------------------------------------------------------------------
	// Metadata
	// --------------------------------------------------------------------------

	// GetInfo returns statistics about the suspender.
	// The values are not a consistent snapshot if the suspender is used concurrently.
	GetInfo() (info Info)

	// WriteMetrics writes the metrics of the suspender in Prometheus text format
	WriteMetrics(w io.Writer)
}
