package mem

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/common"
	"github.com/ValentinKolb/dSuspend/lib/listener"
	"github.com/ValentinKolb/dSuspend/lib/suspender"
	suspendertesting "github.com/ValentinKolb/dSuspend/lib/suspender/testing"
)

func newMem(t *testing.T, opts *Options) *memSuspender {
	t.Helper()
	s, ok := NewMemSuspender(opts).(*memSuspender)
	if !ok {
		t.Fatal("NewMemSuspender did not return a *memSuspender")
	}
	return s
}

func TestCalcRestorationTime(t *testing.T) {
	granularity := restorationTimeGranularity.Milliseconds()
	if granularity != 50 {
		t.Fatalf("Expected a granularity of 50ms, got %d", granularity)
	}

	r := rand.New(rand.NewSource(42))
	durations := []time.Duration{
		suspender.MinSuspensionDuration,
		time.Second,
		1234 * time.Millisecond,
		time.Hour,
	}

	for i := 0; i < 1000; i++ {
		now := suspendertesting.BaseTime.UnixMilli() + r.Int63n(1_000_000)
		for _, d := range durations {
			ideal := now + d.Milliseconds()
			got := calcRestorationTime(now, d)

			if got%granularity != 0 {
				t.Fatalf("calcRestorationTime(%d, %s) = %d is not a multiple of %d", now, d, got, granularity)
			}
			if got < ideal || got >= ideal+granularity {
				t.Fatalf("calcRestorationTime(%d, %s) = %d not in [%d, %d)", now, d, got, ideal, ideal+granularity)
			}
		}
	}

	// exact multiples are kept
	if got := calcRestorationTime(1000, time.Second); got != 2000 {
		t.Errorf("Expected 2000, got %d", got)
	}
	if got := calcRestorationTime(1001, time.Second); got != 2050 {
		t.Errorf("Expected 2050, got %d", got)
	}
}

func TestOptionsClamping(t *testing.T) {
	tests := []struct {
		in, expected int
	}{
		{0, MinDivisionCount},
		{1, MinDivisionCount},
		{17, 17},
		{1000, MaxDivisionCount},
	}
	for _, tt := range tests {
		s := newMem(t, &Options{DivisionCount: tt.in})
		if len(s.divisions) != tt.expected {
			t.Errorf("DivisionCount %d: expected %d divisions, got %d", tt.in, tt.expected, len(s.divisions))
		}
	}

	s := newMem(t, nil)
	if len(s.divisions) != DefaultDivisionCount {
		t.Errorf("Expected %d default divisions, got %d", DefaultDivisionCount, len(s.divisions))
	}
	if idle := time.Duration(s.restorer.sleepAfterIdle.Load()); idle != DefaultRestorerSleepAfterIdleWork {
		t.Errorf("Expected default idle sleep %s, got %s", DefaultRestorerSleepAfterIdleWork, idle)
	}

	s.SetRestorerSleepTimeAfterIdleWork(time.Hour)
	s.SetRestorerSleepTimeAfterUsefulWork(-time.Second)
	if idle := time.Duration(s.restorer.sleepAfterIdle.Load()); idle != MaxRestorerSleepAfterIdleWork {
		t.Errorf("Idle sleep should be clamped to %s, got %s", MaxRestorerSleepAfterIdleWork, idle)
	}
	if useful := time.Duration(s.restorer.sleepAfterUseful.Load()); useful != 0 {
		t.Errorf("Useful sleep should be clamped to 0, got %s", useful)
	}

	s.SetRestorerSleepTimeAfterUsefulWork(time.Minute)
	if useful := time.Duration(s.restorer.sleepAfterUseful.Load()); useful != MaxRestorerSleepAfterUsefulWork {
		t.Errorf("Useful sleep should be clamped to %s, got %s", MaxRestorerSleepAfterUsefulWork, useful)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(common.SuspenderConfig{
		DivisionCount:                32,
		RestorerSleepAfterUsefulWork: time.Millisecond,
		RestorerSleepAfterIdleWork:   time.Second,
	})

	if opts.DivisionCount != 32 || opts.RestorerSleepAfterUsefulWork != time.Millisecond || opts.RestorerSleepAfterIdleWork != time.Second {
		t.Errorf("Unexpected options %+v", opts)
	}
	if opts.Clock != nil {
		t.Error("Options from a config should use the real clock")
	}
}

func TestSuspendDurationClamping(t *testing.T) {
	clock := suspendertesting.NewFakeClock()
	s := newMem(t, &Options{DivisionCount: 4, Clock: clock.Now})
	base := clock.Now().UnixMilli()

	short := suspender.MustPath("A", "short")
	long := suspender.MustPath("A", "long")
	_ = s.Suspend(short, 1, time.Nanosecond)
	_ = s.Suspend(long, 2, 100*365*24*time.Hour)

	if got, _, _ := s.divisionFor(short).findMinimumRestorationTime(short); got != base+suspender.MinSuspensionDuration.Milliseconds() {
		t.Errorf("Short duration should be raised to the minimum, got +%dms", got-base)
	}
	if got, _, _ := s.divisionFor(long).findMinimumRestorationTime(long); got != base+suspender.MaxSuspensionDuration.Milliseconds() {
		t.Errorf("Long duration should be lowered to the maximum, got +%dms", got-base)
	}
}

func TestRoutingUsesFirstTwoSegments(t *testing.T) {
	s := newMem(t, &Options{DivisionCount: MaxDivisionCount})

	for i := 0; i < 100; i++ {
		prefix := suspender.MustPath(fmt.Sprint("g", i), fmt.Sprint("s", i))
		d := s.divisionFor(prefix)
		if s.divisionFor(prefix.Child("x")) != d || s.divisionFor(prefix.Child("x").Child("y")) != d {
			t.Fatalf("Paths below %s are routed to different divisions", prefix)
		}
	}

	// many second segments should spread over several divisions
	used := make(map[*division]bool)
	for i := 0; i < 1000; i++ {
		used[s.divisionFor(suspender.MustPath("G", fmt.Sprint(i)))] = true
	}
	if len(used) < 2 {
		t.Errorf("Expected paths of one group to use several divisions, used %d", len(used))
	}
}

// TestGroupCounterConsistency checks after every random operation that each group counter
// equals the number of divisions holding that group
func TestGroupCounterConsistency(t *testing.T) {
	clock := suspendertesting.NewFakeClock()
	s := newMem(t, &Options{DivisionCount: 8, Clock: clock.Now})
	r := rand.New(rand.NewSource(7))

	groups := []string{"a", "b", "c"}
	randomPath := func(minSegments int) suspender.Path {
		n := minSegments + r.Intn(3)
		segments := []string{groups[r.Intn(len(groups))]}
		for i := 1; i < n; i++ {
			segments = append(segments, fmt.Sprint(r.Intn(4)))
		}
		return suspender.MustPath(segments...)
	}

	check := func(step int) {
		for _, g := range groups {
			expected := int64(0)
			for _, d := range s.divisions {
				if d.hasObjectsUnderFirstSegment(g) {
					expected++
				}
			}
			if got := s.groups.count(g); got != expected {
				t.Fatalf("Step %d: counter of %s is %d, %d divisions hold it", step, g, got, expected)
			}
		}
	}

	for step := 0; step < 2000; step++ {
		switch r.Intn(5) {
		case 0, 1:
			_ = s.Suspend(randomPath(2), step, time.Duration(1+r.Intn(10))*time.Minute)
		case 2:
			_ = s.RestoreTo(randomPath(1), nil)
		case 3:
			_ = s.RestoreMinTo(randomPath(1), nil)
		case 4:
			clock.Advance(time.Minute)
			for _, d := range s.divisions {
				d.restoreExpired(nil, clock.Now().UnixMilli())
			}
		}
		check(step)
	}
}

func TestGetInfo(t *testing.T) {
	s := newMem(t, &Options{DivisionCount: 8})

	for i := 0; i < 40; i++ {
		_ = s.Suspend(suspender.MustPath(fmt.Sprint("g", i%4), fmt.Sprint(i)), i, time.Hour)
	}

	info := s.GetInfo()
	if info.DivisionCount != 8 {
		t.Errorf("Expected 8 divisions, got %d", info.DivisionCount)
	}
	if info.SuspendedObjects != 40 {
		t.Errorf("Expected 40 objects, got %d", info.SuspendedObjects)
	}
	if info.ActiveGroups != 4 {
		t.Errorf("Expected 4 groups, got %d", info.ActiveGroups)
	}
	if info.Started {
		t.Error("Suspender is not started")
	}
	if info.DivisionDistribution.Mean != 5 {
		t.Errorf("Expected a mean of 5 objects per division, got %v", info.DivisionDistribution.Mean)
	}
}

func TestWriteMetrics(t *testing.T) {
	s := newMem(t, &Options{DivisionCount: 4})
	rec := listener.NewRecorder()

	_ = s.Suspend(suspender.MustPath("A", "B"), 1, time.Hour)
	_ = s.Suspend(suspender.MustPath("A", "C"), 2, time.Hour)
	_ = s.Suspend(suspender.MustPath("A", "D"), 3, time.Hour)
	_ = s.RestoreTo(suspender.MustPath("A", "B"), ls(rec))
	_ = s.RestoreMinTo(suspender.MustPath("A"), ls(rec))

	var buf bytes.Buffer
	s.WriteMetrics(&buf)
	out := buf.String()

	for _, expected := range []string{
		"dsuspend_suspended_total 3",
		`dsuspend_restored_total{cause="explicit"} 1`,
		`dsuspend_restored_total{cause="minimum"} 1`,
		`dsuspend_restored_total{cause="expired"} 0`,
		"dsuspend_suspended_objects 1",
		"dsuspend_active_groups 1",
	} {
		if !strings.Contains(out, expected) {
			t.Errorf("Metrics should contain %q:\n%s", expected, out)
		}
	}

	if n := s.metrics.restoredCount(restoreCauseExplicit); n != 1 {
		t.Errorf("Expected 1 explicit restoration, got %d", n)
	}
	if n := s.metrics.restoredCount(restoreCauseMinimum); n != 1 {
		t.Errorf("Expected 1 minimum restoration, got %d", n)
	}
}
