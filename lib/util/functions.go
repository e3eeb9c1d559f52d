package util

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for the division routing hash
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the current time, only if crypto/rand is unavailable
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// HashString generates a hash value for a string with a seed
// This function uses the FNV-1a hash algorithm, which is fast and has good distribution
func HashString(s string, seed uint64) uint64 {

	// FNV-1a hash with seed incorporation
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	// Start with the offset combined with our seed for uniqueness
	hash := uint64(offset64) ^ seed

	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}

	return hash
}

// CombineHashes mixes two hash values into one (order sensitive)
func CombineHashes(first, second uint64) uint64 {
	return (17*37+first)*37 + second
}

// --------------------------------------------------------------------------
// Clamping
// --------------------------------------------------------------------------

// ErrInvalidRange is returned by the clamp helpers when min > max
var ErrInvalidRange = errors.New("invalid range: min > max")

// AdjustInt clamps value into [min, max]
func AdjustInt(value, min, max int) (int, error) {
	if min > max {
		return 0, fmt.Errorf("%w (%d > %d)", ErrInvalidRange, min, max)
	}
	if value < min {
		return min, nil
	}
	if value > max {
		return max, nil
	}
	return value, nil
}

// AdjustDuration clamps value into [min, max]
func AdjustDuration(value, min, max time.Duration) (time.Duration, error) {
	if min > max {
		return 0, fmt.Errorf("%w (%s > %s)", ErrInvalidRange, min, max)
	}
	if value < min {
		return min, nil
	}
	if value > max {
		return max, nil
	}
	return value, nil
}

// MustAdjustInt is AdjustInt for constant ranges, it panics if min > max
func MustAdjustInt(value, min, max int) int {
	v, err := AdjustInt(value, min, max)
	if err != nil {
		panic(err)
	}
	return v
}

// MustAdjustDuration is AdjustDuration for constant ranges, it panics if min > max
func MustAdjustDuration(value, min, max time.Duration) time.Duration {
	v, err := AdjustDuration(value, min, max)
	if err != nil {
		panic(err)
	}
	return v
}
