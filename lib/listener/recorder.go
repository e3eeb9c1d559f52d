package listener

import (
	"sort"
	"sync"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/suspender"
)

// Restoration is a restored object as seen by a Recorder
type Restoration struct {
	Path   suspender.Path
	Object any
}

// Recorder is a listener that records every restoration it is notified about.
//
// OnRestore (optional) is called after recording, its error is returned to the suspender.
// It must be set before the Recorder is registered.
//
// Thread-safety: All methods are thread-safe.
type Recorder struct {
	OnRestore func(path suspender.Path, object any) error

	mu           sync.Mutex
	restorations []Restoration
	counts       map[string]int
	changed      chan struct{} // closed and replaced on every restoration
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{
		counts:  make(map[string]int),
		changed: make(chan struct{}),
	}
}

func (r *Recorder) OnObjectRestored(path suspender.Path, object any) error {
	r.mu.Lock()
	r.restorations = append(r.restorations, Restoration{Path: path, Object: object})
	r.counts[path.String()]++
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()

	if r.OnRestore != nil {
		return r.OnRestore(path, object)
	}
	return nil
}

// Len returns the number of recorded restorations
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.restorations)
}

// Count returns how often path was restored
func (r *Recorder) Count(path suspender.Path) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[path.String()]
}

// Paths returns the distinct restored paths in sorted order
func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, 0, len(r.counts))
	for p := range r.counts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Restorations returns a copy of all recorded restorations in the order they were recorded
func (r *Recorder) Restorations() []Restoration {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Restoration, len(r.restorations))
	copy(out, r.restorations)
	return out
}

// Duplicates returns the paths restored more than once
func (r *Recorder) Duplicates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dups []string
	for p, n := range r.counts {
		if n > 1 {
			dups = append(dups, p)
		}
	}
	sort.Strings(dups)
	return dups
}

// Wait blocks until at least n restorations are recorded or timeout has passed.
// Returns whether n restorations were reached.
func (r *Recorder) Wait(n int, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	r.mu.Lock()
	for len(r.restorations) < n {
		ch := r.changed
		r.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return r.Len() >= n
		}

		r.mu.Lock()
	}
	r.mu.Unlock()
	return true
}

// Reset forgets all recorded restorations
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.restorations = nil
	r.counts = make(map[string]int)
}
