// Package listener provides ready-made suspender.RestoredObjectListener implementations.
//
// The package contains:
//   - Recorder: records every restoration and lets callers wait for a number of them.
//     Useful in tests and in the load tool to check that every object is restored exactly once.
//   - AsyncListener: wraps a slow listener. Restorations are pushed onto a lock-free
//     multi-producer single-consumer queue and delivered by one goroutine, so the goroutine
//     restoring objects never waits for the wrapped listener.
//
// Example usage:
//
//	rec := listener.NewRecorder()
//	async := listener.NewAsyncListener(rec)
//	defer async.Close()
//
//	s.AddListener(async)
package listener
