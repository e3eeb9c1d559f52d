package testing

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/listener"
	"github.com/ValentinKolb/dSuspend/lib/suspender"
)

// SuspenderFactory creates a new suspender that takes its current time from clock
type SuspenderFactory func(clock func() time.Time) suspender.ISuspender

// waitTimeout bounds every wait for the background restorer
const waitTimeout = 5 * time.Second

// RunSuspenderTests runs a comprehensive test suite for an ISuspender implementation.
func RunSuspenderTests(t *testing.T, name string, factory SuspenderFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("SegmentCountValidation", func(t *testing.T) {
			testSegmentCountValidation(t, factory)
		})

		t.Run("LifeCycle", func(t *testing.T) {
			testLifeCycle(t, factory)
		})

		t.Run("Uniqueness", func(t *testing.T) {
			testUniqueness(t, factory)
		})

		t.Run("PrefixRestore", func(t *testing.T) {
			testPrefixRestore(t, factory)
		})

		t.Run("MinimumTieBreak", func(t *testing.T) {
			testMinimumTieBreak(t, factory)
		})

		t.Run("MinimumOrder", func(t *testing.T) {
			testMinimumOrder(t, factory)
		})

		t.Run("SingleSegment", func(t *testing.T) {
			testSingleSegment(t, factory)
		})

		t.Run("Expiry", func(t *testing.T) {
			testExpiry(t, factory)
		})

		t.Run("ListenerRegistry", func(t *testing.T) {
			testListenerRegistry(t, factory)
		})

		t.Run("ListenerFailureIsolation", func(t *testing.T) {
			testListenerFailureIsolation(t, factory)
		})

		t.Run("ReentrantListener", func(t *testing.T) {
			testReentrantListener(t, factory)
		})

		t.Run("ConcurrentRestore", func(t *testing.T) {
			testConcurrentRestore(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// p parses a path literal like "/A/B" and panics on invalid input
func p(s string) suspender.Path {
	path, err := suspender.ParsePath(s)
	if err != nil {
		panic(err)
	}
	return path
}

func mustSuspend(t *testing.T, s suspender.ISuspender, path string, object any, d time.Duration) {
	t.Helper()
	if err := s.Suspend(p(path), object, d); err != nil {
		t.Fatalf("Suspend(%s) failed: %v", path, err)
	}
}

func mustHave(t *testing.T, s suspender.ISuspender, path string, expected bool) {
	t.Helper()
	has, err := s.HasObjectsSuspendedBy(p(path))
	if err != nil {
		t.Fatalf("HasObjectsSuspendedBy(%s) failed: %v", path, err)
	}
	if has != expected {
		t.Errorf("HasObjectsSuspendedBy(%s) = %v, expected %v", path, has, expected)
	}
}

func listeners(ls ...suspender.RestoredObjectListener) []suspender.RestoredObjectListener {
	return ls
}

// failingListener returns err or panics on every notification
type failingListener struct {
	err   error
	panic bool
}

func (f *failingListener) OnObjectRestored(path suspender.Path, _ any) error {
	if f.panic {
		panic(fmt.Sprintf("listener panic on %s", path))
	}
	return f.err
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSegmentCountValidation(t *testing.T, factory SuspenderFactory) {
	s := factory(NewFakeClock().Now)
	root := suspender.Path{}
	group := p("/A")

	checks := map[string]error{
		"HasObjectsSuspendedBy(/)": func() error { _, err := s.HasObjectsSuspendedBy(root); return err }(),
		"Suspend(/A)":              s.Suspend(group, 1, time.Hour),
		"Suspend(/)":               s.Suspend(root, 1, time.Hour),
		"Restore(/)":               s.Restore(root),
		"RestoreTo(/)":             s.RestoreTo(root, nil),
		"RestoreMin(/)":            s.RestoreMin(root),
		"RestoreMinTo(/)":          s.RestoreMinTo(root, nil),
	}

	for name, err := range checks {
		if !errors.Is(err, suspender.ErrInvalidArgument) {
			t.Errorf("%s: expected ErrInvalidArgument, got %v", name, err)
		}
	}

	// one segment is enough for everything except Suspend
	if _, err := s.HasObjectsSuspendedBy(group); err != nil {
		t.Errorf("HasObjectsSuspendedBy(/A) failed: %v", err)
	}
	if err := s.Restore(group); err != nil {
		t.Errorf("Restore(/A) failed: %v", err)
	}
	if err := s.RestoreMin(group); err != nil {
		t.Errorf("RestoreMin(/A) failed: %v", err)
	}
}

func testLifeCycle(t *testing.T, factory SuspenderFactory) {
	s := factory(NewFakeClock().Now)

	if err := s.Stop(); !errors.Is(err, suspender.ErrInvalidState) {
		t.Errorf("Stop before Start: expected ErrInvalidState, got %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !s.GetInfo().Started {
		t.Error("Info should report the suspender as started")
	}

	if err := s.Start(); !errors.Is(err, suspender.ErrInvalidState) {
		t.Errorf("Second Start: expected ErrInvalidState, got %v", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := s.Stop(); !errors.Is(err, suspender.ErrInvalidState) {
		t.Errorf("Second Stop: expected ErrInvalidState, got %v", err)
	}

	// a stopped suspender can be started again
	if err := s.Start(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop after restart failed: %v", err)
	}
}

func testUniqueness(t *testing.T, factory SuspenderFactory) {
	s := factory(NewFakeClock().Now)
	rec := listener.NewRecorder()

	mustSuspend(t, s, "/A/B", "first", time.Hour)
	mustSuspend(t, s, "/A/B", "second", 2*time.Hour)

	if n := s.GetInfo().SuspendedObjects; n != 1 {
		t.Errorf("Expected exactly 1 suspended object, got %d", n)
	}

	if err := s.RestoreTo(p("/A/B"), listeners(rec)); err != nil {
		t.Fatalf("RestoreTo failed: %v", err)
	}

	restorations := rec.Restorations()
	if len(restorations) != 1 {
		t.Fatalf("Expected 1 restoration, got %d", len(restorations))
	}
	if restorations[0].Object != "second" {
		t.Errorf("Expected the second object, got %v", restorations[0].Object)
	}
	if n := s.GetInfo().SuspendedObjects; n != 0 {
		t.Errorf("Expected no suspended objects, got %d", n)
	}
}

func testPrefixRestore(t *testing.T, factory SuspenderFactory) {
	s := factory(NewFakeClock().Now)
	rec := listener.NewRecorder()
	s.AddListener(rec)

	mustSuspend(t, s, "/A/B", 1, time.Hour)
	mustSuspend(t, s, "/A/B/C1", 2, time.Hour)
	mustSuspend(t, s, "/A/B/C2", 3, time.Hour)
	mustSuspend(t, s, "/A/BB/C", 4, time.Hour)

	mustHave(t, s, "/A", true)
	mustHave(t, s, "/A/B", true)
	mustHave(t, s, "/A/B/C1", true)
	mustHave(t, s, "/A/B/C3", false)

	if err := s.Restore(p("/A/B")); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	for _, path := range []string{"/A/B", "/A/B/C1", "/A/B/C2"} {
		if n := rec.Count(p(path)); n != 1 {
			t.Errorf("Expected %s to be restored once, got %d", path, n)
		}
	}
	if rec.Len() != 3 {
		t.Errorf("Expected 3 restorations, got %d", rec.Len())
	}

	mustHave(t, s, "/A/B", false)
	mustHave(t, s, "/A/BB", true)
	mustHave(t, s, "/A", true)

	// restoring again does nothing
	if err := s.Restore(p("/A/B")); err != nil {
		t.Fatalf("Second Restore failed: %v", err)
	}
	if rec.Len() != 3 {
		t.Errorf("Second Restore should not notify, got %d restorations", rec.Len())
	}

	if err := s.Restore(p("/A/BB")); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	mustHave(t, s, "/A", false)
}

func testMinimumTieBreak(t *testing.T, factory SuspenderFactory) {
	t.Run("DirectEarlier", func(t *testing.T) {
		s := factory(NewFakeClock().Now)
		rec := listener.NewRecorder()

		mustSuspend(t, s, "/A/B", "direct", time.Hour)
		mustSuspend(t, s, "/A/B/C", "subtree", 2*time.Hour)

		if err := s.RestoreMinTo(p("/A/B"), listeners(rec)); err != nil {
			t.Fatalf("RestoreMinTo failed: %v", err)
		}
		if rec.Len() != 1 || rec.Count(p("/A/B")) != 1 {
			t.Errorf("Expected only /A/B to be restored, got %v", rec.Paths())
		}
	})

	t.Run("SubtreeEarlier", func(t *testing.T) {
		s := factory(NewFakeClock().Now)
		rec := listener.NewRecorder()

		mustSuspend(t, s, "/A/B", "direct", 2*time.Hour)
		mustSuspend(t, s, "/A/B/C/D", "subtree", time.Hour)

		if err := s.RestoreMinTo(p("/A/B"), listeners(rec)); err != nil {
			t.Fatalf("RestoreMinTo failed: %v", err)
		}
		if rec.Len() != 1 || rec.Count(p("/A/B/C/D")) != 1 {
			t.Errorf("Expected only /A/B/C/D to be restored, got %v", rec.Paths())
		}
		mustHave(t, s, "/A/B/C", false)
		mustHave(t, s, "/A/B", true)
	})

	t.Run("EqualFavorsSubtree", func(t *testing.T) {
		s := factory(NewFakeClock().Now)
		rec := listener.NewRecorder()

		mustSuspend(t, s, "/A/B", "direct", time.Hour)
		mustSuspend(t, s, "/A/B/C", "subtree", time.Hour)

		if err := s.RestoreMinTo(p("/A/B"), listeners(rec)); err != nil {
			t.Fatalf("RestoreMinTo failed: %v", err)
		}
		if rec.Len() != 1 || rec.Count(p("/A/B/C")) != 1 {
			t.Errorf("Expected only /A/B/C to be restored, got %v", rec.Paths())
		}
	})

	t.Run("Nothing", func(t *testing.T) {
		s := factory(NewFakeClock().Now)
		rec := listener.NewRecorder()

		mustSuspend(t, s, "/A/X", "other", time.Hour)

		if err := s.RestoreMinTo(p("/A/B"), listeners(rec)); err != nil {
			t.Fatalf("RestoreMinTo failed: %v", err)
		}
		if rec.Len() != 0 {
			t.Errorf("Expected nothing to be restored, got %v", rec.Paths())
		}
	})
}

func testMinimumOrder(t *testing.T, factory SuspenderFactory) {
	s := factory(NewFakeClock().Now)
	rec := listener.NewRecorder()

	durations := map[string]time.Duration{
		"/A/B/1":     5 * time.Hour,
		"/A/B/2/x":   time.Hour,
		"/A/B/3":     4 * time.Hour,
		"/A/B/4/y/z": 2 * time.Hour,
		"/A/B/5":     3 * time.Hour,
	}
	expected := []string{"/A/B/2/x", "/A/B/4/y/z", "/A/B/5", "/A/B/3", "/A/B/1"}

	for path, d := range durations {
		mustSuspend(t, s, path, path, d)
	}

	for range expected {
		if err := s.RestoreMinTo(p("/A/B"), listeners(rec)); err != nil {
			t.Fatalf("RestoreMinTo failed: %v", err)
		}
	}

	restorations := rec.Restorations()
	if len(restorations) != len(expected) {
		t.Fatalf("Expected %d restorations, got %d", len(expected), len(restorations))
	}
	for i, r := range restorations {
		if r.Path.String() != expected[i] {
			t.Errorf("Restoration %d: expected %s, got %s", i, expected[i], r.Path)
		}
	}
	mustHave(t, s, "/A", false)
}

func testSingleSegment(t *testing.T, factory SuspenderFactory) {
	s := factory(NewFakeClock().Now)
	rec := listener.NewRecorder()

	// spread the group over (very likely) many divisions
	const n = 100
	for i := 0; i < n; i++ {
		mustSuspend(t, s, fmt.Sprintf("/G/%d/leaf", i), i, time.Duration(i+1)*time.Minute)
	}
	mustSuspend(t, s, "/Other/x", -1, time.Second)

	mustHave(t, s, "/G", true)
	mustHave(t, s, "/H", false)

	// the global minimum of the group is /G/0/leaf
	if err := s.RestoreMinTo(p("/G"), listeners(rec)); err != nil {
		t.Fatalf("RestoreMinTo failed: %v", err)
	}
	if rec.Len() != 1 || rec.Count(p("/G/0/leaf")) != 1 {
		t.Errorf("Expected /G/0/leaf to be restored, got %v", rec.Paths())
	}

	if err := s.RestoreTo(p("/G"), listeners(rec)); err != nil {
		t.Fatalf("RestoreTo failed: %v", err)
	}
	if rec.Len() != n {
		t.Errorf("Expected %d restorations, got %d", n, rec.Len())
	}
	if dups := rec.Duplicates(); len(dups) != 0 {
		t.Errorf("Unexpected duplicates: %v", dups)
	}

	mustHave(t, s, "/G", false)
	mustHave(t, s, "/Other", true)

	info := s.GetInfo()
	if info.SuspendedObjects != 1 || info.ActiveGroups != 1 {
		t.Errorf("Expected 1 object in 1 group, got %d objects in %d groups", info.SuspendedObjects, info.ActiveGroups)
	}
}

func testExpiry(t *testing.T, factory SuspenderFactory) {
	clock := NewFakeClock()
	s := factory(clock.Now)
	rec := listener.NewRecorder()
	s.AddListener(rec)

	mustSuspend(t, s, "/A/B", "1h", time.Hour)
	mustSuspend(t, s, "/A/B/C", "2h", 2*time.Hour)
	mustSuspend(t, s, "/A/D", "3h", 3*time.Hour)
	mustSuspend(t, s, "/X/Y/Z", "1h", time.Hour)
	mustSuspend(t, s, "/X/Y", "2h", 2*time.Hour)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = s.Stop() }()

	steps := []struct {
		advance  time.Duration
		total    int
		restored []string
		pending  []string
	}{
		{time.Hour, 2, []string{"/A/B", "/X/Y/Z"}, []string{"/A/B/C", "/A/D", "/X/Y"}},
		{time.Hour, 4, []string{"/A/B/C", "/X/Y"}, []string{"/A/D"}},
		{time.Hour, 5, []string{"/A/D"}, nil},
	}

	for i, step := range steps {
		clock.Advance(step.advance)

		if !rec.Wait(step.total, waitTimeout) {
			t.Fatalf("Step %d: expected %d restorations, got %d", i, step.total, rec.Len())
		}
		for _, path := range step.restored {
			if rec.Count(p(path)) != 1 {
				t.Errorf("Step %d: expected %s to be restored once, got %d", i, path, rec.Count(p(path)))
			}
		}
		for _, path := range step.pending {
			if rec.Count(p(path)) != 0 {
				t.Errorf("Step %d: %s restored too early", i, path)
			}
			mustHave(t, s, path, true)
		}
	}

	mustHave(t, s, "/A", false)
	mustHave(t, s, "/X", false)
	if rec.Len() != 5 {
		t.Errorf("Expected 5 restorations in total, got %d", rec.Len())
	}
}

func testListenerRegistry(t *testing.T, factory SuspenderFactory) {
	s := factory(NewFakeClock().Now)
	registered := listener.NewRecorder()
	explicit := listener.NewRecorder()

	s.AddListener(registered)
	s.AddListener(registered) // ignored

	mustSuspend(t, s, "/A/1", 1, time.Hour)
	mustSuspend(t, s, "/A/2", 2, time.Hour)
	mustSuspend(t, s, "/A/3", 3, time.Hour)

	if err := s.Restore(p("/A/1")); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if registered.Len() != 1 {
		t.Errorf("Registered listener should be notified once, got %d", registered.Len())
	}

	if err := s.RestoreTo(p("/A/2"), listeners(explicit)); err != nil {
		t.Fatalf("RestoreTo failed: %v", err)
	}
	if registered.Len() != 1 || explicit.Len() != 1 {
		t.Errorf("Only the explicit listener should be notified, got %d and %d", registered.Len(), explicit.Len())
	}

	s.RemoveListener(registered)
	if err := s.Restore(p("/A/3")); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if registered.Len() != 1 {
		t.Errorf("Removed listener should not be notified, got %d", registered.Len())
	}
}

func testListenerFailureIsolation(t *testing.T, factory SuspenderFactory) {
	s := factory(NewFakeClock().Now)
	rec := listener.NewRecorder()

	s.AddListener(&failingListener{err: errors.New("listener error")})
	s.AddListener(&failingListener{panic: true})
	s.AddListener(rec)

	mustSuspend(t, s, "/A/B", 1, time.Hour)
	mustSuspend(t, s, "/A/B/C", 2, time.Hour)
	mustSuspend(t, s, "/A/D", 3, time.Hour)

	if err := s.Restore(p("/A/B")); err != nil {
		t.Fatalf("Restore should not report listener failures: %v", err)
	}
	if err := s.RestoreMin(p("/A")); err != nil {
		t.Fatalf("RestoreMin should not report listener failures: %v", err)
	}

	if rec.Len() != 3 {
		t.Errorf("Expected 3 restorations despite failing listeners, got %d", rec.Len())
	}
}

func testReentrantListener(t *testing.T, factory SuspenderFactory) {
	s := factory(NewFakeClock().Now)

	rec := listener.NewRecorder()
	rec.OnRestore = func(path suspender.Path, object any) error {
		// suspend a follow up object from inside the notification
		if path.LastSegment() == "first" {
			return s.Suspend(p("/A/B/second"), object, time.Hour)
		}
		return nil
	}
	s.AddListener(rec)

	mustSuspend(t, s, "/A/B/first", 1, time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Restore(p("/A/B"))
	}()

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Restore with a reentrant listener did not return")
	}

	mustHave(t, s, "/A/B/second", true)
}

func testConcurrentRestore(t *testing.T, factory SuspenderFactory) {
	s := factory(NewFakeClock().Now)
	rec := listener.NewRecorder()
	s.AddListener(rec)

	const (
		groups  = 16
		workers = 8
		b, c, d = 4, 3, 3
	)

	// build the tree concurrently, every worker owns some groups
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		expected = make(map[string]bool)
	)

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for g := w; g < groups; g += workers {
				for i := 0; i < b; i++ {
					paths := []string{fmt.Sprintf("/G%d/B%d", g, i)}
					for j := 0; j < c; j++ {
						paths = append(paths, fmt.Sprintf("/G%d/B%d/C%d", g, i, j))
						for k := 0; k < d; k++ {
							paths = append(paths, fmt.Sprintf("/G%d/B%d/C%d/D%d", g, i, j, k))
						}
					}
					for n, path := range paths {
						if err := s.Suspend(p(path), path, time.Hour+time.Duration(n)*time.Second); err != nil {
							t.Errorf("Suspend(%s) failed: %v", path, err)
						}
						mu.Lock()
						expected[path] = true
						mu.Unlock()
					}
				}
			}
		}(w)
	}
	wg.Wait()

	if n := s.GetInfo().SuspendedObjects; n != len(expected) {
		t.Fatalf("Expected %d suspended objects, got %d", len(expected), n)
	}

	// even groups are restored by prefix, odd groups one by one
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for g := w; g < groups; g += workers {
				group := p(fmt.Sprintf("/G%d", g))
				if g%2 == 0 {
					if err := s.Restore(group); err != nil {
						t.Errorf("Restore(%s) failed: %v", group, err)
					}
					continue
				}
				for {
					has, err := s.HasObjectsSuspendedBy(group)
					if err != nil {
						t.Errorf("HasObjectsSuspendedBy(%s) failed: %v", group, err)
						return
					}
					if !has {
						break
					}
					if err := s.RestoreMin(group); err != nil {
						t.Errorf("RestoreMin(%s) failed: %v", group, err)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()

	for g := 0; g < groups; g++ {
		mustHave(t, s, fmt.Sprintf("/G%d", g), false)
	}

	if rec.Len() != len(expected) {
		t.Errorf("Expected %d restorations, got %d", len(expected), rec.Len())
	}
	if dups := rec.Duplicates(); len(dups) != 0 {
		t.Errorf("Duplicate restorations: %v", dups)
	}
	for _, path := range rec.Paths() {
		if !expected[path] {
			t.Errorf("Unexpected restoration of %s", path)
		}
	}

	info := s.GetInfo()
	if info.SuspendedObjects != 0 || info.ActiveGroups != 0 {
		t.Errorf("Expected an empty suspender, got %d objects in %d groups", info.SuspendedObjects, info.ActiveGroups)
	}
}
