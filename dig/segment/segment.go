package segment

import "iter"

// Segment is one unit of delivery from a reader: for every channel it covers,
// a contiguous run of samples in the output index space. All runs within a
// segment have equal length, and consecutive segments cover consecutive,
// non-overlapping, monotonically increasing output ranges.
type Segment map[int][]float64

// Len returns the per-channel sample count of the segment, 0 if empty.
func (s Segment) Len() int {
	for _, run := range s {
		return len(run)
	}
	return 0
}

// Reader produces the segment sequence for a resolved read plan. Segments
// must be consumed in the order yielded; a non-nil error terminates the
// sequence.
type Reader interface {
	Segments() iter.Seq2[Segment, error]
}

// SliceReader serves a fixed, pre-built segment sequence. Its main use is
// testing assembly without a backing file.
type SliceReader struct {
	Segs []Segment
	Err  error // yielded after the last segment when non-nil
}

func (r *SliceReader) Segments() iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) {
		for _, seg := range r.Segs {
			if !yield(seg, nil) {
				return
			}
		}
		if r.Err != nil {
			yield(nil, r.Err)
		}
	}
}
