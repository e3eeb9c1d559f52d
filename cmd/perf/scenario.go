package perf

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/common"
	"github.com/ValentinKolb/dSuspend/lib/listener"
	"github.com/ValentinKolb/dSuspend/lib/suspender"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Scenario
// --------------------------------------------------------------------------

// scenario describes the load test tree. Every group A<a> holds
//
//	A<a>/B<b>                  suspended for 2h
//	A<a>/B<b>/C<c>             suspended for 1h
//	A<a>/B<b>/C<c>/D<d>/E<e>   suspended for LeafDuration
//
// The leaves expire while the test waits, the rest is restored explicitly:
// the first half of the groups by prefix and the second half by repeated minimum restores.
type scenario struct {
	Groups         int           // number of A nodes
	Branches       int           // B nodes per A
	Children       int           // C nodes per B
	LeafParents    int           // D nodes per C
	Leaves         int           // E nodes per D
	Threads        int           // goroutines per phase
	LeafDuration   time.Duration // suspension duration of the leaves
	MaxDeviation   time.Duration // accepted deviation of a leaf restoration from its ideal time
	ExpiryDeadline time.Duration // extra time granted to the restorer after LeafDuration
}

func defaultScenario() scenario {
	return scenario{
		Groups:         64,
		Branches:       2,
		Children:       2,
		LeafParents:    2,
		Leaves:         256,
		Threads:        10,
		LeafDuration:   10 * time.Second,
		MaxDeviation:   3 * time.Second,
		ExpiryDeadline: 5 * time.Second,
	}
}

// leafCount returns the number of leaves of the tree
func (sc scenario) leafCount() int {
	return sc.Groups * sc.Branches * sc.Children * sc.LeafParents * sc.Leaves
}

// innerCount returns the number of suspended B and C nodes of the tree
func (sc scenario) innerCount() int {
	return sc.Groups * sc.Branches * (1 + sc.Children)
}

// loadResult holds the measurements and check failures of a scenario run
type loadResult struct {
	RunID           string
	Scenario        scenario
	SuspendDuration time.Duration
	SuspendOps      int64
	SuspendRate     float64 // suspend calls per second
	Deviation       gometrics.Histogram
	RestoreDuration time.Duration
	Restored        int
	Failures        []string
}

// Passed returns whether all checks of the run succeeded
func (r *loadResult) Passed() bool {
	return len(r.Failures) == 0
}

func (r *loadResult) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// newDeviationHistogram returns the histogram of leaf restoration deviations (ms)
func newDeviationHistogram() gometrics.Histogram {
	return gometrics.NewHistogram(gometrics.NewUniformSample(4096))
}

// --------------------------------------------------------------------------
// Run
// --------------------------------------------------------------------------

// run executes the scenario against a started suspender
func (sc scenario) run(s suspender.ISuspender) *loadResult {
	log := common.GetLogger(common.LoggerPerf)

	result := &loadResult{
		RunID:     uuid.NewString(),
		Scenario:  sc,
		Deviation: newDeviationHistogram(),
	}

	var (
		leafStartMu sync.RWMutex
		leafStart   time.Time
	)

	recorder := listener.NewRecorder()
	recorder.OnRestore = func(path suspender.Path, _ any) error {
		if path.SegmentCount() != 5 {
			return nil
		}
		leafStartMu.RLock()
		ideal := leafStart.Add(sc.LeafDuration)
		leafStartMu.RUnlock()

		deviation := time.Since(ideal)
		if deviation < 0 {
			deviation = -deviation
		}
		result.Deviation.Update(deviation.Milliseconds())
		return nil
	}
	s.AddListener(recorder)
	defer s.RemoveListener(recorder)

	// phase 1: concurrently build the tree
	log.Infof("[%s] suspending %d leaves and %d inner objects with %d goroutines", result.RunID, sc.leafCount(), sc.innerCount(), sc.Threads)

	meter := gometrics.NewMeter()
	start := time.Now()
	leafStartMu.Lock()
	sc.runParallel(func(int) { sc.suspendTree(s, meter, log) })
	leafStart = time.Now()
	leafStartMu.Unlock()
	result.SuspendDuration = time.Since(start)
	result.SuspendOps = meter.Count()
	result.SuspendRate = float64(result.SuspendOps) / max(result.SuspendDuration.Seconds(), 1e-9)
	meter.Stop()

	sc.checkTree(s, result)

	// phase 2: wait for the leaves to expire
	log.Infof("[%s] waiting up to %s for the leaves to expire", result.RunID, sc.LeafDuration+sc.ExpiryDeadline)
	if !recorder.Wait(sc.leafCount(), sc.LeafDuration+sc.ExpiryDeadline) {
		result.failf("only %d of %d leaves were restored", recorder.Len(), sc.leafCount())
	}
	if maxDev := time.Duration(result.Deviation.Max()) * time.Millisecond; maxDev > sc.MaxDeviation {
		result.failf("max leaf restoration deviation %s exceeds %s", maxDev, sc.MaxDeviation)
	}
	sc.checkRestored(recorder, result, sc.leafCount())
	sc.checkLeavesGone(s, result)

	// phase 3: concurrently restore the inner objects
	log.Infof("[%s] restoring %d inner objects", result.RunID, sc.innerCount())

	start = time.Now()
	half := sc.Groups / 2
	sc.runParallel(func(worker int) {
		if worker%2 == 0 {
			sc.restoreByPrefix(s, 1, half, log)
		} else {
			sc.restoreByMinimum(s, half+1, sc.Groups, log)
		}
	})
	result.RestoreDuration = time.Since(start)
	result.Restored = recorder.Len()

	sc.checkRestored(recorder, result, sc.leafCount()+sc.innerCount())
	sc.checkEmpty(s, result)

	return result
}

// runParallel runs fn on Threads goroutines (at least two, so both restore strategies run) and waits
func (sc scenario) runParallel(fn func(worker int)) {
	threads := max(sc.Threads, 2)

	var wg sync.WaitGroup
	wg.Add(threads)
	for i := 0; i < threads; i++ {
		go func(worker int) {
			defer wg.Done()
			fn(worker)
		}(i)
	}
	wg.Wait()
}

// suspendTree suspends every node of the tree that has nothing suspended under it yet.
// Every goroutine walks the whole tree, so the same paths are suspended concurrently.
func (sc scenario) suspendTree(s suspender.ISuspender, meter gometrics.Meter, log logger.ILogger) {
	suspendIfAbsent := func(path suspender.Path, d time.Duration) {
		has, err := s.HasObjectsSuspendedBy(path)
		if err != nil {
			log.Warningf("has %s failed: %v", path, err)
			return
		}
		if has {
			return
		}
		if err := s.Suspend(path, path.String(), d); err != nil {
			log.Warningf("suspend %s failed: %v", path, err)
			return
		}
		meter.Mark(1)
	}

	for a := 1; a <= sc.Groups; a++ {
		for b := 1; b <= sc.Branches; b++ {
			ab := branchPath(a, b)
			suspendIfAbsent(ab, 2*time.Hour)

			for c := 1; c <= sc.Children; c++ {
				abc := ab.Child(fmt.Sprintf("C%d", c))
				suspendIfAbsent(abc, time.Hour)

				for d := 1; d <= sc.LeafParents; d++ {
					abcd := abc.Child(fmt.Sprintf("D%d", d))
					for e := 1; e <= sc.Leaves; e++ {
						suspendIfAbsent(abcd.Child(fmt.Sprintf("E%d", e)), sc.LeafDuration)
					}
				}
			}
		}
	}
}

// restoreByPrefix restores the branches of the groups [from, to] with prefix restores
func (sc scenario) restoreByPrefix(s suspender.ISuspender, from, to int, log logger.ILogger) {
	for a := from; a <= to; a++ {
		for b := 1; b <= sc.Branches; b++ {
			path := branchPath(a, b)
			if has, _ := s.HasObjectsSuspendedBy(path); !has {
				continue
			}
			if err := s.Restore(path); err != nil {
				log.Warningf("restore %s failed: %v", path, err)
			}
		}
	}
}

// restoreByMinimum drains the branches of the groups [from, to] with minimum restores
func (sc scenario) restoreByMinimum(s suspender.ISuspender, from, to int, log logger.ILogger) {
	for a := from; a <= to; a++ {
		for b := 1; b <= sc.Branches; b++ {
			path := branchPath(a, b)
			for {
				has, err := s.HasObjectsSuspendedBy(path)
				if err != nil || !has {
					break
				}
				if err := s.RestoreMin(path); err != nil {
					log.Warningf("restore min %s failed: %v", path, err)
					break
				}
			}
		}
	}
}

// --------------------------------------------------------------------------
// Checks
// --------------------------------------------------------------------------

func (sc scenario) checkTree(s suspender.ISuspender, result *loadResult) {
	missing := 0
	sc.eachPath(func(path suspender.Path) {
		if has, _ := s.HasObjectsSuspendedBy(path); !has {
			missing++
		}
	})
	for a := 1; a <= sc.Groups; a++ {
		if has, _ := s.HasObjectsSuspendedBy(suspender.MustPath(fmt.Sprintf("A%d", a))); !has {
			missing++
		}
	}
	if missing > 0 {
		result.failf("%d paths had nothing suspended after the suspend phase", missing)
	}
}

func (sc scenario) checkLeavesGone(s suspender.ISuspender, result *loadResult) {
	remaining := 0
	sc.eachPath(func(path suspender.Path) {
		if path.SegmentCount() == 5 {
			if has, _ := s.HasObjectsSuspendedBy(path); has {
				remaining++
			}
		} else if has, _ := s.HasObjectsSuspendedBy(path); !has {
			result.failf("%s was restored before the leaves expired", path)
		}
	})
	if remaining > 0 {
		result.failf("%d leaves are still suspended after expiry", remaining)
	}
}

func (sc scenario) checkRestored(recorder *listener.Recorder, result *loadResult, expected int) {
	if dups := recorder.Duplicates(); len(dups) > 0 {
		result.failf("%d paths were restored more than once (e.g. %s)", len(dups), dups[0])
	}
	if n := len(recorder.Paths()); n != expected {
		result.failf("expected %d distinct restored paths, got %d", expected, n)
	}
}

func (sc scenario) checkEmpty(s suspender.ISuspender, result *loadResult) {
	for a := 1; a <= sc.Groups; a++ {
		group := suspender.MustPath(fmt.Sprintf("A%d", a))
		if has, _ := s.HasObjectsSuspendedBy(group); has {
			result.failf("group %s still has suspended objects", group)
		}
	}
	info := s.GetInfo()
	if info.SuspendedObjects != 0 {
		result.failf("%d objects are still suspended", info.SuspendedObjects)
	}
	if info.ActiveGroups != 0 {
		result.failf("%d groups are still active", info.ActiveGroups)
	}
}

// eachPath calls fn for every suspended path of the tree
func (sc scenario) eachPath(fn func(path suspender.Path)) {
	for a := 1; a <= sc.Groups; a++ {
		for b := 1; b <= sc.Branches; b++ {
			ab := branchPath(a, b)
			fn(ab)
			for c := 1; c <= sc.Children; c++ {
				abc := ab.Child(fmt.Sprintf("C%d", c))
				fn(abc)
				for d := 1; d <= sc.LeafParents; d++ {
					abcd := abc.Child(fmt.Sprintf("D%d", d))
					for e := 1; e <= sc.Leaves; e++ {
						fn(abcd.Child(fmt.Sprintf("E%d", e)))
					}
				}
			}
		}
	}
}

func branchPath(a, b int) suspender.Path {
	return suspender.MustPath(fmt.Sprintf("A%d", a), fmt.Sprintf("B%d", b))
}
