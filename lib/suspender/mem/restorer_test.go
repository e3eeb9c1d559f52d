package mem

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/listener"
	"github.com/ValentinKolb/dSuspend/lib/suspender"
	suspendertesting "github.com/ValentinKolb/dSuspend/lib/suspender/testing"
)

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	if !sleepContext(ctx, 0) {
		t.Error("Zero sleep on a live context should return true")
	}
	if !sleepContext(ctx, time.Millisecond) {
		t.Error("Short sleep on a live context should return true")
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if sleepContext(ctx, time.Minute) {
		t.Error("Cancelled sleep should return false")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Cancellation did not interrupt the sleep")
	}

	if sleepContext(ctx, 0) {
		t.Error("Zero sleep on a cancelled context should return false")
	}
}

// TestRestorerStopInterruptsSleep tests that Stop returns promptly while the restorer sleeps
func TestRestorerStopInterruptsSleep(t *testing.T) {
	s := newMem(t, &Options{
		DivisionCount:              4,
		RestorerSleepAfterIdleWork: MaxRestorerSleepAfterIdleWork,
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// wait for the first sweep, the restorer is asleep afterwards
	deadline := time.Now().Add(5 * time.Second)
	for s.metrics.sweeps.Get() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Restorer did not sweep")
		}
		time.Sleep(time.Millisecond)
	}

	done := make(chan error)
	go func() { done <- s.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not interrupt the restorer sleep")
	}
}

// TestRestorerSleepSelection tests that useful and idle sweeps choose their sleep time
func TestRestorerSleepSelection(t *testing.T) {
	clock := suspendertesting.NewFakeClock()
	s := newMem(t, &Options{
		DivisionCount:                4,
		RestorerSleepAfterUsefulWork: 7 * time.Millisecond,
		RestorerSleepAfterIdleWork:   9 * time.Millisecond,
		Clock:                        clock.Now,
	})
	rec := listener.NewRecorder()
	s.AddListener(rec)

	_ = s.Suspend(suspender.MustPath("A", "B"), 1, time.Hour)
	clock.Advance(time.Hour)

	var sleeps []time.Duration
	s.restorer.sleep = func(_ context.Context, d time.Duration) bool {
		sleeps = append(sleeps, d)
		return len(sleeps) < 3
	}

	done := make(chan struct{})
	s.restorer.run(context.Background(), done)

	expected := []time.Duration{7 * time.Millisecond, 9 * time.Millisecond, 9 * time.Millisecond}
	if len(sleeps) != len(expected) {
		t.Fatalf("Expected %d sleeps, got %v", len(expected), sleeps)
	}
	for i := range expected {
		if sleeps[i] != expected[i] {
			t.Errorf("Sleep %d: expected %s, got %s", i, expected[i], sleeps[i])
		}
	}
	if rec.Len() != 1 {
		t.Errorf("Expected 1 expired restoration, got %d", rec.Len())
	}

	select {
	case <-done:
	default:
		t.Error("run should close done when it exits")
	}
}

// TestRestorerRecoversPanics tests that a panicking division does not stop the sweep
func TestRestorerRecoversPanics(t *testing.T) {
	clock := suspendertesting.NewFakeClock()
	s := newMem(t, &Options{DivisionCount: 4, Clock: clock.Now})
	rec := listener.NewRecorder()
	s.AddListener(rec)

	broken := s.divisions[0]
	expected := 0
	for i := 0; i < 100; i++ {
		path := suspender.MustPath("G", fmt.Sprint(i))
		_ = s.Suspend(path, i, time.Minute)
		if s.divisionFor(path) != broken {
			expected++
		}
	}
	clock.Advance(time.Minute)

	s.restorer.sweepDivision = func(d *division, ls []suspender.RestoredObjectListener, asOf int64) int {
		if d == broken {
			panic("broken division")
		}
		return d.restoreExpired(ls, asOf)
	}

	if n := s.restorer.sweep(); n != expected {
		t.Errorf("Expected %d restorations from the healthy divisions, got %d", expected, n)
	}
	if rec.Len() != expected {
		t.Errorf("Expected %d notifications, got %d", expected, rec.Len())
	}
	if failures := s.metrics.sweepFailures.Get(); failures != 1 {
		t.Errorf("Expected 1 sweep failure, got %d", failures)
	}

	// the division works again once it stops panicking
	s.restorer.sweepDivision = (*division).restoreExpired
	if n := s.restorer.sweep(); n != 100-expected {
		t.Errorf("Expected the remaining %d restorations, got %d", 100-expected, n)
	}
}

// TestRestorerExpiresWhileRunning tests expiry through a started suspender with the real clock
func TestRestorerExpiresWhileRunning(t *testing.T) {
	s := newMem(t, &Options{
		DivisionCount:              4,
		RestorerSleepAfterIdleWork: time.Millisecond,
	})
	rec := listener.NewRecorder()
	s.AddListener(rec)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = s.Stop() }()

	for i := 0; i < 10; i++ {
		_ = s.Suspend(suspender.MustPath("A", fmt.Sprint(i)), i, suspender.MinSuspensionDuration)
	}

	if !rec.Wait(10, 5*time.Second) {
		t.Fatalf("Expected 10 expired restorations, got %d", rec.Len())
	}
	if has, _ := s.HasObjectsSuspendedBy(suspender.MustPath("A")); has {
		t.Error("All objects should be restored")
	}
}

// TestConcurrentExpiryAndRestore races subtree restores against the expiry sweep
func TestConcurrentExpiryAndRestore(t *testing.T) {
	clock := suspendertesting.NewFakeClock()
	s := newMem(t, &Options{
		DivisionCount:              8,
		RestorerSleepAfterIdleWork: 0,
		Clock:                      clock.Now,
	})
	rec := listener.NewRecorder()
	s.AddListener(rec)

	const groups, perGroup = 8, 50
	total := 0
	for g := 0; g < groups; g++ {
		for i := 0; i < perGroup; i++ {
			for _, path := range []suspender.Path{
				suspender.MustPath(fmt.Sprint("G", g), fmt.Sprint("S", i%5), fmt.Sprint(i)),
				suspender.MustPath(fmt.Sprint("G", g), fmt.Sprint("S", i%5), fmt.Sprint(i), "leaf"),
			} {
				_ = s.Suspend(path, path.String(), time.Duration(1+i%3)*time.Minute)
				total++
			}
		}
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for g := 0; g < groups; g++ {
			for i := 0; i < 5; i++ {
				_ = s.Restore(suspender.MustPath(fmt.Sprint("G", g), fmt.Sprint("S", i)))
			}
		}
	}()

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		time.Sleep(time.Millisecond)
	}
	<-done

	if !rec.Wait(total, 5*time.Second) {
		t.Errorf("Expected %d restorations, got %d", total, rec.Len())
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if dups := rec.Duplicates(); len(dups) != 0 {
		t.Errorf("Duplicate restorations: %v", dups)
	}
	if rec.Len() != total {
		t.Errorf("Expected exactly %d restorations, got %d", total, rec.Len())
	}
	if n := s.GetInfo().SuspendedObjects; n != 0 {
		t.Errorf("Expected no suspended objects, got %d", n)
	}
}
