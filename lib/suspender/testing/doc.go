// Package testing provides standardised tests and benchmarks for
// implementations of the suspender.ISuspender interface.
//
// The package contains:
//   - testing: A test suite validating the ISuspender contract (segment count validation,
//     life-cycle, uniqueness, prefix and minimum restoration, expiry, listeners, concurrency)
//   - benchmark: Performance tests for the common suspender operations
//   - clock: A manually advanced clock to control restoration times
//
// Example usage:
//
//	// Creating a factory function for your implementation. The factory must use the given
//	// clock for restoration times and should sleep only briefly between idle sweeps.
//	factory := func(clock func() time.Time) suspender.ISuspender {
//		return NewMySuspender(clock)
//	}
//
//	// Running the standard test suite
//	suspendertesting.RunSuspenderTests(t, "MySuspender", factory)
//
//	// Running performance benchmarks
//	suspendertesting.RunSuspenderBenchmarks(b, "MySuspender", factory)
package testing
