// Package layout implements the segment/offset bookkeeping for aggregate
// feature datasets.
//
// An Index maps named segments to contiguous, non-overlapping row ranges in
// one feature dataset. It is built once from the ordered per-source durations
// and persisted next to the dataset, so any later subset selection ("all rows
// belonging to source X") is answered from the persisted index instead of
// being re-derived.
//
// Invariants (checked by Validate):
//   - segments[0].Start == 0
//   - segments[i].Stop == segments[i+1].Start
//   - every segment has Start < Stop
package layout

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

var (
	// ErrEmptyDurations is returned by FromDurations for an empty sequence.
	ErrEmptyDurations = errors.New("layout: empty duration sequence")

	// ErrNegativeOffset is returned by Shifted when a bound would go below zero.
	ErrNegativeOffset = errors.New("layout: shift would produce a negative bound")

	// ErrLengthMismatch is returned by FromDurations when names and durations
	// disagree in length.
	ErrLengthMismatch = errors.New("layout: names and durations must have the same length")
)

// ZeroDurationError reports a source that contributed no rows. Zero-width
// segments are rejected outright; they would collide with their neighbor.
type ZeroDurationError struct {
	Name string
}

func (e *ZeroDurationError) Error() string {
	return fmt.Sprintf("layout: zero duration for segment %q", e.Name)
}

// UnknownSegmentError reports a segment name that is not part of the index.
type UnknownSegmentError struct {
	Name string
}

func (e *UnknownSegmentError) Error() string {
	return fmt.Sprintf("layout: unknown segment %q", e.Name)
}

// CorruptionError reports an index that violates the contiguity or
// non-overlap invariant. It is surfaced as a fatal integrity failure and
// never silently repaired.
type CorruptionError struct {
	Pos    int
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("layout: corrupt index at segment %d: %s", e.Pos, e.Reason)
}

// Segment is a half-open row range [Start, Stop) attributed to one source.
type Segment struct {
	Name  string `json:"name"`
	Start uint64 `json:"start"`
	Stop  uint64 `json:"stop"`
}

// Len returns the number of rows covered by the segment.
func (s Segment) Len() uint64 { return s.Stop - s.Start }

// Range is a half-open row interval without attribution.
type Range struct {
	Start uint64 `json:"start"`
	Stop  uint64 `json:"stop"`
}

// Len returns the number of rows covered by the range.
func (r Range) Len() uint64 { return r.Stop - r.Start }

// Index is an ordered sequence of contiguous segments. The zero value is an
// empty index; indexes built by FromDurations always satisfy Validate.
type Index []Segment

// FromDurations builds an Index by cumulative summation of the ordered
// durations. names[i] labels the segment covering durations[i] rows.
// Insertion order is the caller's source processing order.
func FromDurations(names []string, durations []uint64) (Index, error) {
	if len(durations) == 0 {
		return nil, ErrEmptyDurations
	}
	if len(names) != len(durations) {
		return nil, ErrLengthMismatch
	}

	idx := make(Index, 0, len(durations))
	var offset uint64
	for i, d := range durations {
		if d == 0 {
			return nil, &ZeroDurationError{Name: names[i]}
		}
		idx = append(idx, Segment{Name: names[i], Start: offset, Stop: offset + d})
		offset += d
	}
	return idx, nil
}

// LastStop returns the total row count covered by the index.
func (x Index) LastStop() uint64 {
	if len(x) == 0 {
		return 0
	}
	return x[len(x)-1].Stop
}

// Shifted returns a copy of the index with every bound shifted by the given
// amount. Shifting below zero fails with ErrNegativeOffset.
func (x Index) Shifted(by int64) (Index, error) {
	out := make(Index, len(x))
	for i, s := range x {
		if by < 0 && uint64(-by) > s.Start {
			return nil, fmt.Errorf("%w: segment %q start %d shifted by %d", ErrNegativeOffset, s.Name, s.Start, by)
		}
		out[i] = Segment{
			Name:  s.Name,
			Start: uint64(int64(s.Start) + by),
			Stop:  uint64(int64(s.Stop) + by),
		}
	}
	return out, nil
}

// Concat merges independently built indexes into one row space, shifting each
// part by the cumulative total of the parts before it.
func Concat(parts ...Index) Index {
	var out Index
	var offset uint64
	for _, p := range parts {
		for _, s := range p {
			out = append(out, Segment{Name: s.Name, Start: s.Start + offset, Stop: s.Stop + offset})
		}
		offset += p.LastStop()
	}
	return out
}

// Find returns the first segment with the given name.
func (x Index) Find(name string) (Segment, bool) {
	for _, s := range x {
		if s.Name == name {
			return s, true
		}
	}
	return Segment{}, false
}

// Names returns the segment names in order.
func (x Index) Names() []string {
	out := make([]string, len(x))
	for i, s := range x {
		out[i] = s.Name
	}
	return out
}

// Slices returns one row range per segment in order. This is the
// decomposition that drives scatter writes.
func (x Index) Slices() []Range {
	out := make([]Range, len(x))
	for i, s := range x {
		out[i] = Range{Start: s.Start, Stop: s.Stop}
	}
	return out
}

// AllIndices returns the flat ordered sequence of absolute row indices
// covered by the named segments, in segment order. With no names it covers
// the whole index. Unknown names fail with UnknownSegmentError.
func (x Index) AllIndices(names ...string) ([]uint64, error) {
	segs, err := x.subset(names)
	if err != nil {
		return nil, err
	}

	var total uint64
	for _, s := range segs {
		total += s.Len()
	}
	out := make([]uint64, 0, total)
	for _, s := range segs {
		for r := s.Start; r < s.Stop; r++ {
			out = append(out, r)
		}
	}
	return out, nil
}

// Bitmap returns the set of absolute row indices covered by the named
// segments as a roaring bitmap. With no names it covers the whole index.
func (x Index) Bitmap(names ...string) (*roaring64.Bitmap, error) {
	segs, err := x.subset(names)
	if err != nil {
		return nil, err
	}

	bm := roaring64.New()
	for _, s := range segs {
		bm.AddRange(s.Start, s.Stop)
	}
	return bm, nil
}

func (x Index) subset(names []string) (Index, error) {
	if len(names) == 0 {
		return x, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	seen := make(map[string]bool, len(names))
	var segs Index
	for _, s := range x {
		if wanted[s.Name] {
			segs = append(segs, s)
			seen[s.Name] = true
		}
	}
	for _, n := range names {
		if !seen[n] {
			return nil, &UnknownSegmentError{Name: n}
		}
	}
	return segs, nil
}

// Validate checks the contiguity and non-overlap invariants. A persisted
// index that fails Validate on reload must be treated as corrupt.
func (x Index) Validate() error {
	for i, s := range x {
		if s.Start >= s.Stop {
			return &CorruptionError{Pos: i, Reason: fmt.Sprintf("empty or inverted range [%d, %d)", s.Start, s.Stop)}
		}
		if i == 0 {
			if s.Start != 0 {
				return &CorruptionError{Pos: 0, Reason: fmt.Sprintf("first segment starts at %d, want 0", s.Start)}
			}
			continue
		}
		if prev := x[i-1].Stop; s.Start != prev {
			return &CorruptionError{Pos: i, Reason: fmt.Sprintf("segment starts at %d, previous stops at %d", s.Start, prev)}
		}
	}
	return nil
}
