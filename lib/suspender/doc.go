// Package suspender defines the public API for suspending objects by hierarchical paths.
//
// An object is suspended by a Path (e.g. /session/42/upload/7) for a bounded duration.
// It is restored exactly once, either explicitly or automatically when the duration has
// expired, and every restoration is reported to RestoredObjectListener implementations.
//
// The package focuses on:
//   - A unified interface (ISuspender) for suspending and restoring objects
//   - The Path value type used as key for everything else
//   - Unified error handling through the Error type and its ErrCode
//
// Key Components:
//
//   - Path: An immutable sequence of non-empty segments without the separator "/".
//     Paths double as a grouping mechanism: restoring /session/42 restores every object
//     suspended by /session/42 or by any longer path starting with it.
//
//   - ISuspender: Start/Stop the background restorer, register listeners, suspend objects
//     and restore them by prefix (Restore) or one at a time in restoration time order (RestoreMin).
//
//   - Error: Errors carry an ErrCode. ErrCInvalidArgument is returned when a path has too
//     few segments or a path segment is invalid, ErrCInvalidState when the life-cycle is misused.
//     Both are programmer errors and should not be retried.
//
// Implementations:
//
//	- Memory Suspender (mem): A sharded, in-memory implementation. Objects are spread over
//	  independently locked divisions and restored by a single background goroutine.
//	  Available in the "github.com/ValentinKolb/dSuspend/lib/suspender/mem" package.
//
// Usage Example:
//
//	s := mem.NewMemSuspender(nil)
//	s.AddListener(myListener)
//	if err := s.Start(); err != nil {
//	    // Handle error
//	}
//	defer s.Stop()
//
//	_ = s.Suspend(suspender.MustPath("session", "42", "upload"), upload, 30*time.Second)
//
//	// restore everything of session 42 now
//	_ = s.Restore(suspender.MustPath("session", "42"))
package suspender
