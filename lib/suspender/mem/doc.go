// Package mem implements an in-memory suspender.ISuspender that spreads suspended
// objects over independently locked divisions.
//
// Key Components:
//
//   - memSuspender: The central structure implementing suspender.ISuspender. It routes each
//     path to its division, aggregates single segment operations over all divisions, owns the
//     listener registry and the background restorer.
//
//   - division: One shard of the suspender. It holds a tree of suspended objects and a
//     restoration queue, both guarded by one mutex. Listeners are always called after the
//     mutex is released.
//
//   - treeNode: A node of a division tree. A node represents a path prefix, its entries are
//     the objects suspended by the prefix plus one segment. Every node keeps a local index
//     of its entries by restoration time. Empty nodes are pruned immediately.
//
//   - groupCounter: Maps the first segment of a path to the number of divisions holding objects
//     under it, so single segment existence checks need no division lock at all.
//
//   - restorer: A single goroutine that restores expired objects in all divisions and then
//     sleeps. The sleep time depends on whether the last sweep restored anything.
//
// Internal Mechanisms:
//
//   - Routing: The first two segments are hashed with util.HashString (seeded per instance)
//     and combined with util.CombineHashes. The result modulo the division count selects the
//     division. All paths sharing their first two segments live in the same division, so every
//     operation on a path with at least two segments touches exactly one division.
//
//   - Restoration Times: Restoration times are unix milliseconds rounded up to a multiple of
//     half the minimum suspension duration (50ms). Objects suspended at about the same time for
//     the same duration share one bucket of the restoration queue, which keeps the queue small.
//     The restoration can therefore be late by up to one granularity plus the sleep time of the
//     restorer, but it is never early.
//
//   - Subtree Restore: Restoring a prefix only unlinks the subtree below it while the division
//     lock is held. The unlinked subtree is then walked breadth-first without the lock, each node
//     taking the lock briefly to remove its entries from the restoration queue before its entries
//     are notified. The expiry sweep skips queue elements of unlinked nodes, so every object is
//     still notified exactly once.
//
//   - Minimum Restore: The object suspended by the path itself competes with the minimum of the
//     subtree below it. It only wins if its restoration time is strictly smaller. For single
//     segment paths the division with the smallest observed minimum is chosen first, the result
//     is the minimum of what was observed and not a linearizable global minimum.
//
//   - Metrics: Every instance owns a VictoriaMetrics set with counters by restoration cause,
//     listener failure and sweep counters, a sweep duration histogram and size gauges.
//     It is exposed with WriteMetrics.
//
// Example usage:
//
//	s := mem.NewMemSuspender(nil)
//	s.AddListener(myListener)
//	if err := s.Start(); err != nil {
//		// handle error
//	}
//	defer s.Stop()
//
//	_ = s.Suspend(suspender.MustPath("session", "42", "upload"), upload, time.Minute)
//	_ = s.Restore(suspender.MustPath("session", "42")) // restores the upload
package mem
