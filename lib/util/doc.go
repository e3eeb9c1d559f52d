// Package util provides the data structures and helpers shared by the
// suspension engine and its tooling.
//
// The package contains:
//   - bucketheap: A priority queue of buckets that groups members with equal priority and supports member-based removal
//   - functions: Hashing and range clamping helpers
//   - statistics: Summary statistics describing how evenly values are distributed
//
// The bucket heap backs both the restoration queue of a division and the local
// index of every tree node, the hash functions route paths to divisions.
package util
