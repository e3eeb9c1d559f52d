package mem

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/common"
	"github.com/ValentinKolb/dSuspend/lib/suspender"
	"github.com/ValentinKolb/dSuspend/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	MinDivisionCount     = 4
	MaxDivisionCount     = 256
	DefaultDivisionCount = 64

	MaxRestorerSleepAfterUsefulWork     = 10 * time.Second
	DefaultRestorerSleepAfterUsefulWork = 0

	MaxRestorerSleepAfterIdleWork     = 60 * time.Second
	DefaultRestorerSleepAfterIdleWork = time.Second

	// restorationTimeGranularity is the step restoration times are rounded up to
	restorationTimeGranularity = suspender.MinSuspensionDuration / 2
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a memory suspender. Out of range values are clamped silently.
type Options struct {
	DivisionCount                int              // Number of divisions [4, 256]
	RestorerSleepAfterUsefulWork time.Duration    // Sleep after a sweep that restored objects [0, 10s]
	RestorerSleepAfterIdleWork   time.Duration    // Sleep after a sweep that restored nothing [0, 60s]
	Clock                        func() time.Time // Source of the current time (nil = time.Now)
}

// DefaultOptions returns the default memory suspender options
func DefaultOptions() *Options {
	return &Options{
		DivisionCount:                DefaultDivisionCount,
		RestorerSleepAfterUsefulWork: DefaultRestorerSleepAfterUsefulWork,
		RestorerSleepAfterIdleWork:   DefaultRestorerSleepAfterIdleWork,
	}
}

// OptionsFromConfig returns the options described by a suspender configuration
func OptionsFromConfig(c common.SuspenderConfig) *Options {
	return &Options{
		DivisionCount:                c.DivisionCount,
		RestorerSleepAfterUsefulWork: c.RestorerSleepAfterUsefulWork,
		RestorerSleepAfterIdleWork:   c.RestorerSleepAfterIdleWork,
	}
}

// --------------------------------------------------------------------------
// Core Memory Suspender structure
// --------------------------------------------------------------------------

// memSuspender implements suspender.ISuspender with objects sharded over divisions.
// A path is routed to its division by the hash of its first two segments.
type memSuspender struct {
	seed      uint64
	divisions []*division
	groups    *groupCounter
	listeners listenerRegistry
	metrics   *engineMetrics
	restorer  *restorer
	log       logger.ILogger

	lifecycleMu sync.Mutex
	started     bool
}

// NewMemSuspender creates a new memory suspender with the specified options (optional).
// The suspender can be used right away, expired objects are restored automatically only after Start.
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMemSuspender(opts *Options) suspender.ISuspender {
	if opts == nil {
		opts = DefaultOptions()
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	divisionCount := util.MustAdjustInt(opts.DivisionCount, MinDivisionCount, MaxDivisionCount)

	s := &memSuspender{
		seed:      util.GenerateSeed(),
		divisions: make([]*division, divisionCount),
		groups:    newGroupCounter(),
		log:       common.GetLogger(common.LoggerSuspender),
	}

	s.metrics = newEngineMetrics(
		func() float64 { return float64(s.suspendedObjects()) },
		func() float64 { return float64(s.groups.activeGroups()) },
	)

	for i := range s.divisions {
		s.divisions[i] = newDivision(s.groups, s.metrics, clock)
	}

	s.restorer = newRestorer(s.divisions, s.listeners.get, clock, s.metrics)
	s.SetRestorerSleepTimeAfterUsefulWork(opts.RestorerSleepAfterUsefulWork)
	s.SetRestorerSleepTimeAfterIdleWork(opts.RestorerSleepAfterIdleWork)

	return s
}

// --------------------------------------------------------------------------
// Life-cycle
// --------------------------------------------------------------------------

func (s *memSuspender) Start() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started {
		return suspender.NewError(suspender.ErrCInvalidState, "suspender is already started")
	}

	s.restorer.start()
	s.started = true
	s.log.Infof("memory suspender started with %d divisions", len(s.divisions))
	return nil
}

func (s *memSuspender) Stop() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started {
		return suspender.NewError(suspender.ErrCInvalidState, "suspender is not started")
	}

	s.restorer.stop()
	s.started = false
	s.log.Infof("memory suspender stopped")
	return nil
}

// --------------------------------------------------------------------------
// Listeners
// --------------------------------------------------------------------------

func (s *memSuspender) AddListener(listener suspender.RestoredObjectListener) {
	s.listeners.add(listener)
}

func (s *memSuspender) RemoveListener(listener suspender.RestoredObjectListener) {
	s.listeners.remove(listener)
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// HasObjectsSuspendedBy uses the group counter for single segment paths.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *memSuspender) HasObjectsSuspendedBy(path suspender.Path) (bool, error) {
	if err := checkSegmentCount(path, suspender.MinSuspensionPathSegmentCount-1); err != nil {
		return false, err
	}

	if path.SegmentCount() == 1 {
		return s.groups.has(path.FirstSegment()), nil
	}
	return s.divisionFor(path).hasObjectsUnder(path)
}

// Suspend suspends object in the division of path.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *memSuspender) Suspend(path suspender.Path, object any, duration time.Duration) error {
	if err := checkSegmentCount(path, suspender.MinSuspensionPathSegmentCount); err != nil {
		return err
	}
	return s.divisionFor(path).suspend(path, object, duration)
}

func (s *memSuspender) Restore(path suspender.Path) error {
	return s.RestoreTo(path, s.listeners.get())
}

// RestoreTo restores a single segment path in every division, holding one division lock at a time.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *memSuspender) RestoreTo(path suspender.Path, listeners []suspender.RestoredObjectListener) error {
	if err := checkSegmentCount(path, suspender.MinSuspensionPathSegmentCount-1); err != nil {
		return err
	}

	if path.SegmentCount() > 1 {
		_, err := s.divisionFor(path).restore(path, listeners)
		return err
	}

	if !s.groups.has(path.FirstSegment()) {
		return nil
	}
	for _, d := range s.divisions {
		if _, err := d.restore(path, listeners); err != nil {
			return err
		}
	}
	return nil
}

func (s *memSuspender) RestoreMin(path suspender.Path) error {
	return s.RestoreMinTo(path, s.listeners.get())
}

// RestoreMinTo restores a single segment path in the division holding the smallest restoration
// time under it. Divisions are inspected one at a time, so the object restored is the minimum of
// what was observed and not necessarily the minimum at any single instant.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *memSuspender) RestoreMinTo(path suspender.Path, listeners []suspender.RestoredObjectListener) error {
	if err := checkSegmentCount(path, suspender.MinSuspensionPathSegmentCount-1); err != nil {
		return err
	}

	if path.SegmentCount() > 1 {
		_, err := s.divisionFor(path).restoreMinimumInSubtree(path, listeners)
		return err
	}

	if !s.groups.has(path.FirstSegment()) {
		return nil
	}

	var (
		best     *division
		bestTime int64
	)
	for _, d := range s.divisions {
		t, ok, err := d.findMinimumRestorationTime(path)
		if err != nil {
			return err
		}
		if ok && (best == nil || t < bestTime) {
			best, bestTime = d, t
		}
	}

	if best == nil {
		return nil
	}
	_, err := best.restoreMinimumInSubtree(path, listeners)
	return err
}

// --------------------------------------------------------------------------
// Restorer Tuning
// --------------------------------------------------------------------------

func (s *memSuspender) SetRestorerSleepTimeAfterUsefulWork(d time.Duration) {
	s.restorer.setSleepAfterUseful(util.MustAdjustDuration(d, 0, MaxRestorerSleepAfterUsefulWork))
}

func (s *memSuspender) SetRestorerSleepTimeAfterIdleWork(d time.Duration) {
	s.restorer.setSleepAfterIdle(util.MustAdjustDuration(d, 0, MaxRestorerSleepAfterIdleWork))
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

// GetInfo collects the division sizes one division at a time.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *memSuspender) GetInfo() suspender.Info {
	sizes := make([]float64, len(s.divisions))
	total := 0
	for i, d := range s.divisions {
		n := d.size()
		sizes[i] = float64(n)
		total += n
	}

	s.lifecycleMu.Lock()
	started := s.started
	s.lifecycleMu.Unlock()

	return suspender.Info{
		DivisionCount:        len(s.divisions),
		SuspendedObjects:     total,
		ActiveGroups:         s.groups.activeGroups(),
		DivisionDistribution: util.NewDistributionStats(sizes),
		Started:              started,
	}
}

func (s *memSuspender) WriteMetrics(w io.Writer) {
	s.metrics.writePrometheus(w)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// divisionFor returns the division owning path. The path needs at least two segments.
func (s *memSuspender) divisionFor(path suspender.Path) *division {
	h := util.CombineHashes(
		util.HashString(path.Segment(0), s.seed),
		util.HashString(path.Segment(1), s.seed),
	)
	return s.divisions[h%uint64(len(s.divisions))]
}

func (s *memSuspender) suspendedObjects() int {
	total := 0
	for _, d := range s.divisions {
		total += d.size()
	}
	return total
}

// calcRestorationTime returns now+duration (unix millis) rounded up to a multiple of the granularity
func calcRestorationTime(nowMillis int64, duration time.Duration) int64 {
	granularity := restorationTimeGranularity.Milliseconds()
	ideal := nowMillis + duration.Milliseconds()

	rest := ideal % granularity
	if rest < 0 {
		rest += granularity
	}
	if rest == 0 {
		return ideal
	}
	return ideal + granularity - rest
}

// --------------------------------------------------------------------------
// Listener Registry
// --------------------------------------------------------------------------

// listenerRegistry is a copy-on-write list of listeners.
// Readers take a snapshot without locking, so listeners can be added or removed during a notification.
type listenerRegistry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[[]suspender.RestoredObjectListener]
}

// get returns the current listeners. The returned slice must not be modified.
func (r *listenerRegistry) get() []suspender.RestoredObjectListener {
	if p := r.snapshot.Load(); p != nil {
		return *p
	}
	return nil
}

// add registers listener, adding a registered listener again does nothing
func (r *listenerRegistry) add(listener suspender.RestoredObjectListener) {
	if listener == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.get()
	for _, l := range current {
		if l == listener {
			return
		}
	}

	next := make([]suspender.RestoredObjectListener, len(current), len(current)+1)
	copy(next, current)
	next = append(next, listener)
	r.snapshot.Store(&next)
}

func (r *listenerRegistry) remove(listener suspender.RestoredObjectListener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.get()
	next := make([]suspender.RestoredObjectListener, 0, len(current))
	for _, l := range current {
		if l != listener {
			next = append(next, l)
		}
	}
	r.snapshot.Store(&next)
}
