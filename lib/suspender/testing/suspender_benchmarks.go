package testing

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/suspender"
)

// RunSuspenderBenchmarks runs all benchmarks for a suspender implementation
func RunSuspenderBenchmarks(b *testing.B, name string, factory SuspenderFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Suspend", func(b *testing.B) {
			benchmarkSuspend(b, factory(NewFakeClock().Now))
		})

		b.Run("SuspendExisting", func(b *testing.B) {
			benchmarkSuspendExisting(b, factory(NewFakeClock().Now))
		})

		b.Run("Has", func(b *testing.B) {
			benchmarkHas(b, factory(NewFakeClock().Now))
		})

		b.Run("HasGroup", func(b *testing.B) {
			benchmarkHasGroup(b, factory(NewFakeClock().Now))
		})

		b.Run("SuspendRestore", func(b *testing.B) {
			benchmarkSuspendRestore(b, factory(NewFakeClock().Now))
		})

		b.Run("SuspendRestoreMin", func(b *testing.B) {
			benchmarkSuspendRestoreMin(b, factory(NewFakeClock().Now))
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory(NewFakeClock().Now))
		})
	})
}

// benchPaths creates n paths spread over 100 groups
func benchPaths(n int) []suspender.Path {
	paths := make([]suspender.Path, n)
	for i := range paths {
		paths[i] = suspender.MustPath(fmt.Sprintf("g%d", i%100), fmt.Sprintf("s%d", i), "leaf")
	}
	return paths
}

func benchmarkSuspend(b *testing.B, s suspender.ISuspender) {
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			path := suspender.MustPath(fmt.Sprintf("g%d", i%100), fmt.Sprintf("s%d", i))
			_ = s.Suspend(path, i, time.Hour)
		}
	})
}

func benchmarkSuspendExisting(b *testing.B, s suspender.ISuspender) {
	paths := benchPaths(1000)
	for i, path := range paths {
		_ = s.Suspend(path, i, time.Hour)
	}

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			_ = s.Suspend(paths[i%int64(len(paths))], i, time.Hour)
		}
	})
}

func benchmarkHas(b *testing.B, s suspender.ISuspender) {
	paths := benchPaths(1000)
	for i, path := range paths {
		_ = s.Suspend(path, i, time.Hour)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			_, _ = s.HasObjectsSuspendedBy(paths[r.Intn(len(paths))])
		}
	})
}

func benchmarkHasGroup(b *testing.B, s suspender.ISuspender) {
	paths := benchPaths(1000)
	for i, path := range paths {
		_ = s.Suspend(path, i, time.Hour)
	}

	groups := make([]suspender.Path, 100)
	for i := range groups {
		groups[i] = suspender.MustPath(fmt.Sprintf("g%d", i))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			_, _ = s.HasObjectsSuspendedBy(groups[r.Intn(len(groups))])
		}
	})
}

func benchmarkSuspendRestore(b *testing.B, s suspender.ISuspender) {
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			prefix := suspender.MustPath(fmt.Sprintf("g%d", i%100), fmt.Sprintf("s%d", i))
			_ = s.Suspend(prefix.Child("a"), i, time.Hour)
			_ = s.Suspend(prefix.Child("b"), i, time.Hour)
			_ = s.RestoreTo(prefix, nil)
		}
	})
}

func benchmarkSuspendRestoreMin(b *testing.B, s suspender.ISuspender) {
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			prefix := suspender.MustPath(fmt.Sprintf("g%d", i%100), fmt.Sprintf("s%d", i))
			_ = s.Suspend(prefix.Child("a"), i, time.Hour)
			_ = s.Suspend(prefix.Child("b"), i, 2*time.Hour)
			_ = s.RestoreMinTo(prefix, nil)
			_ = s.RestoreMinTo(prefix, nil)
		}
	})
}

func benchmarkMixedUsage(b *testing.B, s suspender.ISuspender) {
	paths := benchPaths(10000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			path := paths[r.Intn(len(paths))]
			switch op := r.Intn(10); {
			case op < 5:
				_ = s.Suspend(path, op, time.Duration(1+r.Intn(60))*time.Minute)
			case op < 7:
				_, _ = s.HasObjectsSuspendedBy(path)
			case op < 9:
				_ = s.RestoreTo(path, nil)
			default:
				_ = s.RestoreMinTo(suspender.MustPath(path.FirstSegment(), path.Segment(1)), nil)
			}
		}
	})
}
