package listener

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/suspender"
)

// TestRecorderCounts tests recording, counting and duplicate detection
func TestRecorderCounts(t *testing.T) {
	rec := NewRecorder()

	a := suspender.MustPath("A", "B")
	b := suspender.MustPath("A", "C")

	_ = rec.OnObjectRestored(a, 1)
	_ = rec.OnObjectRestored(b, 2)
	_ = rec.OnObjectRestored(a, 3)

	if rec.Len() != 3 {
		t.Errorf("Expected 3 restorations, got %d", rec.Len())
	}
	if rec.Count(a) != 2 || rec.Count(b) != 1 {
		t.Errorf("Unexpected counts: %d, %d", rec.Count(a), rec.Count(b))
	}

	paths := rec.Paths()
	if len(paths) != 2 || paths[0] != "/A/B" || paths[1] != "/A/C" {
		t.Errorf("Unexpected paths: %v", paths)
	}

	dups := rec.Duplicates()
	if len(dups) != 1 || dups[0] != "/A/B" {
		t.Errorf("Unexpected duplicates: %v", dups)
	}

	restorations := rec.Restorations()
	if restorations[2].Object != 3 {
		t.Errorf("Restorations should keep their order, got %v", restorations)
	}

	rec.Reset()
	if rec.Len() != 0 || len(rec.Paths()) != 0 {
		t.Error("Reset should forget everything")
	}
}

// TestRecorderOnRestore tests that the hook error is returned
func TestRecorderOnRestore(t *testing.T) {
	hookErr := errors.New("hook")
	rec := NewRecorder()
	rec.OnRestore = func(suspender.Path, any) error { return hookErr }

	if err := rec.OnObjectRestored(suspender.MustPath("A", "B"), nil); !errors.Is(err, hookErr) {
		t.Errorf("Expected hook error, got %v", err)
	}
	if rec.Len() != 1 {
		t.Error("Restoration should be recorded even if the hook fails")
	}
}

// TestRecorderWait tests waiting for restorations from another goroutine
func TestRecorderWait(t *testing.T) {
	rec := NewRecorder()

	go func() {
		for i := 0; i < 5; i++ {
			_ = rec.OnObjectRestored(suspender.MustPath("A", fmt.Sprint(i)), i)
		}
	}()

	if !rec.Wait(5, 2*time.Second) {
		t.Fatalf("Wait returned false, got %d restorations", rec.Len())
	}

	if rec.Wait(6, 20*time.Millisecond) {
		t.Error("Wait should time out when not enough restorations arrive")
	}
}

// TestAsyncListenerDelivers tests that all restorations reach the target in order and Close drains
func TestAsyncListenerDelivers(t *testing.T) {
	rec := NewRecorder()
	async := NewAsyncListener(rec)

	const n = 1000
	for i := 0; i < n; i++ {
		if err := async.OnObjectRestored(suspender.MustPath("A", fmt.Sprint(i)), i); err != nil {
			t.Fatalf("OnObjectRestored failed: %v", err)
		}
	}

	async.Close()

	if rec.Len() != n {
		t.Fatalf("Expected %d deliveries after Close, got %d", n, rec.Len())
	}
	if async.Pending() != 0 {
		t.Errorf("Expected no pending restorations, got %d", async.Pending())
	}
	if async.Delivered() != n {
		t.Errorf("Expected %d delivered, got %d", n, async.Delivered())
	}

	for i, r := range rec.Restorations() {
		if r.Object != i {
			t.Fatalf("Restoration %d delivered out of order: %v", i, r.Object)
		}
	}

	if err := async.OnObjectRestored(suspender.MustPath("A", "late"), nil); !errors.Is(err, suspender.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState after Close, got %v", err)
	}
}

// TestAsyncListenerConcurrentProducers tests many producers with per producer ordering
func TestAsyncListenerConcurrentProducers(t *testing.T) {
	rec := NewRecorder()
	async := NewAsyncListener(rec)

	const producers = 10
	const perProducer = 500

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = async.OnObjectRestored(suspender.MustPath(fmt.Sprint("P", p), fmt.Sprint(i)), i)
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}
	wg.Wait()
	async.Close()

	if rec.Len() != producers*perProducer {
		t.Fatalf("Expected %d deliveries, got %d", producers*perProducer, rec.Len())
	}
	if len(rec.Duplicates()) != 0 {
		t.Errorf("Unexpected duplicates: %v", rec.Duplicates())
	}

	last := make(map[string]int)
	for _, r := range rec.Restorations() {
		producer := r.Path.FirstSegment()
		if prev, ok := last[producer]; ok && r.Object.(int) <= prev {
			t.Fatalf("Producer %s delivered out of order: %d after %d", producer, r.Object, prev)
		}
		last[producer] = r.Object.(int)
	}
}

// TestAsyncListenerFailures tests that failing targets are counted and do not stop delivery
func TestAsyncListenerFailures(t *testing.T) {
	rec := NewRecorder()
	calls := 0
	rec.OnRestore = func(_ suspender.Path, object any) error {
		calls++
		switch object {
		case "error":
			return errors.New("failed")
		case "panic":
			panic("boom")
		}
		return nil
	}

	async := NewAsyncListener(rec)
	for _, obj := range []string{"ok", "error", "panic", "ok"} {
		_ = async.OnObjectRestored(suspender.MustPath("A", obj), obj)
	}
	async.Close()

	if calls != 4 {
		t.Errorf("Expected 4 deliveries, got %d", calls)
	}
	if async.Failures() != 2 {
		t.Errorf("Expected 2 failures, got %d", async.Failures())
	}
}
