package suspender

import (
	"strings"
)

// Separator separates the segments of a path in its string form.
// It can never be part of a segment.
const Separator = "/"

// Path is an immutable, ordered sequence of non-empty segments.
// The zero value is the root path (no segments).
//
// Paths are values: two paths with equal segments are interchangeable.
// Use Equal to compare them and String as a map key.
type Path struct {
	segments []string
}

// NewPath creates a path from the given segments.
// Fails with ErrCInvalidArgument if a segment is empty or contains the separator.
// The segments are copied.
func NewPath(segments ...string) (Path, error) {
	for i, segment := range segments {
		if segment == "" {
			return Path{}, invalidArgumentf("segment %d of path is empty", i)
		}
		if strings.Contains(segment, Separator) {
			return Path{}, invalidArgumentf("segment %d of path (%q) contains %q", i, segment, Separator)
		}
	}

	if len(segments) == 0 {
		return Path{}, nil
	}

	copied := make([]string, len(segments))
	copy(copied, segments)
	return Path{segments: copied}, nil
}

// MustPath is like NewPath but panics on invalid segments.
// It is intended for literals and tests.
func MustPath(segments ...string) Path {
	p, err := NewPath(segments...)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePath parses the string form of a path (e.g. "/a/b/c").
// The leading separator is optional, "/" and "" denote the root path.
func ParsePath(s string) (Path, error) {
	s = strings.TrimPrefix(s, Separator)
	if s == "" {
		return Path{}, nil
	}
	return NewPath(strings.Split(s, Separator)...)
}

// SegmentCount returns the number of segments
func (p Path) SegmentCount() int {
	return len(p.segments)
}

// Segment returns the segment at index i. It panics if i is out of range.
func (p Path) Segment(i int) string {
	return p.segments[i]
}

// FirstSegment returns the first segment. It panics on the root path.
func (p Path) FirstSegment() string {
	return p.segments[0]
}

// LastSegment returns the last segment. It panics on the root path.
func (p Path) LastSegment() string {
	return p.segments[len(p.segments)-1]
}

// Segments returns a copy of the segments
func (p Path) Segments() []string {
	copied := make([]string, len(p.segments))
	copy(copied, p.segments)
	return copied
}

// IsRoot returns true if the path has no segments
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// WithAppendedSegment returns a new path with segment appended. The receiver is not changed.
func (p Path) WithAppendedSegment(segment string) (Path, error) {
	appended := make([]string, len(p.segments)+1)
	copy(appended, p.segments)
	appended[len(p.segments)] = segment
	return NewPath(appended...)
}

// mustAppend is WithAppendedSegment for segments that are known to be valid
func (p Path) mustAppend(segment string) Path {
	appended := make([]string, len(p.segments)+1)
	copy(appended, p.segments)
	appended[len(p.segments)] = segment
	return Path{segments: appended}
}

// Child returns the path with segment appended.
// The segment must already be validated (e.g. taken from another Path), otherwise it panics.
func (p Path) Child(segment string) Path {
	if segment == "" || strings.Contains(segment, Separator) {
		panic(invalidArgumentf("invalid segment %q", segment))
	}
	return p.mustAppend(segment)
}

// HasPrefix returns true if the first segments of p equal the segments of prefix.
// A prefix longer than p is never a prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	for i, segment := range prefix.segments {
		if p.segments[i] != segment {
			return false
		}
	}
	return true
}

// HasSuffix returns true if the last segments of p equal the segments of suffix.
// A suffix longer than p is never a suffix.
func (p Path) HasSuffix(suffix Path) bool {
	if len(suffix.segments) > len(p.segments) {
		return false
	}
	offset := len(p.segments) - len(suffix.segments)
	for i, segment := range suffix.segments {
		if p.segments[offset+i] != segment {
			return false
		}
	}
	return true
}

// Equal returns true if both paths have the same segments
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i, segment := range p.segments {
		if other.segments[i] != segment {
			return false
		}
	}
	return true
}

// String returns the path in its string form, e.g. "/a/b". The root path is "/".
// Since segments never contain the separator, the string form is unique per path.
func (p Path) String() string {
	return Separator + strings.Join(p.segments, Separator)
}
