package mem

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/suspender"
	suspendertesting "github.com/ValentinKolb/dSuspend/lib/suspender/testing"
)

func newTestSuspender(clock func() time.Time) suspender.ISuspender {
	return NewMemSuspender(&Options{
		DivisionCount:                16,
		RestorerSleepAfterUsefulWork: 0,
		RestorerSleepAfterIdleWork:   2 * time.Millisecond,
		Clock:                        clock,
	})
}

func Test(t *testing.T) {
	suspendertesting.RunSuspenderTests(t, "MemSuspender", newTestSuspender)
}

func Benchmark(b *testing.B) {
	suspendertesting.RunSuspenderBenchmarks(b, "MemSuspender", func(clock func() time.Time) suspender.ISuspender {
		return NewMemSuspender(&Options{DivisionCount: DefaultDivisionCount, Clock: clock})
	})
}
