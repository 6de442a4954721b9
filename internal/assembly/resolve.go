package assembly

import (
	"errors"
	"path/filepath"
	"sort"
)

// ErrNoSegments is returned when a non-initial round has no section segments
// to resolve against.
var ErrNoSegments = errors.New("render pass produced no section segments")

// ResolveSegment maps a round's zero-based index to the media file that holds
// just that round's animation.
//
// Round 0 resolves to the whole-program output: there is no prior section to
// isolate it from, so the complete video is the round's artifact. Later rounds
// resolve to the section file at their index within the segment set, ordered
// by base name — ordering is an explicit contract with the render engine,
// whose section files are named so lexicographic order matches section order.
// An index past the end clamps to the last segment rather than failing: the
// engine can emit fewer sections than completed rounds when sections are
// trivial. An empty segment set cannot satisfy a non-initial round.
func ResolveSegment(index int, segments []string, whole string) (string, error) {
	if index <= 0 {
		return whole, nil
	}
	if len(segments) == 0 {
		return "", ErrNoSegments
	}

	ordered := append([]string(nil), segments...)
	sort.Slice(ordered, func(i, j int) bool {
		return filepath.Base(ordered[i]) < filepath.Base(ordered[j])
	})

	if index < len(ordered) {
		return ordered[index], nil
	}
	return ordered[len(ordered)-1], nil
}
