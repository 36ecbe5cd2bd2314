package digfile

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/nedm-daq/digaccess/dig/segment"
)

// SegmentReader walks a read range of the capture body and yields it as
// segments of downsampled per-channel runs. The total sample count it
// delivers per channel is exactly (endRead-startRead)/downsample, the same
// floor division the assembler allocates with.
type SegmentReader struct {
	f            *File
	channels     []int
	startRead    int
	endRead      int
	downsample   int
	segmentReads int // output samples per yielded segment
}

// NewSegmentReader validates the requested channel subset against the file
// and prepares a reader over [startRead, endRead) with the given downsample
// factor. segmentReads caps the per-channel length of each yielded segment.
func (f *File) NewSegmentReader(channels []int, startRead, endRead, downsample, segmentReads int) (*SegmentReader, error) {
	for _, chn := range channels {
		if _, ok := f.columns[chn]; !ok {
			return nil, fmt.Errorf("%w: %d, channels in this file are %s", ErrNoChannel, chn, f.hdr.Inventory())
		}
	}
	if downsample < 1 {
		return nil, fmt.Errorf("downsample factor must be positive, got %d", downsample)
	}
	if segmentReads < 1 {
		return nil, fmt.Errorf("segment size must be positive, got %d", segmentReads)
	}
	return &SegmentReader{
		f:            f,
		channels:     channels,
		startRead:    startRead,
		endRead:      endRead,
		downsample:   downsample,
		segmentReads: segmentReads,
	}, nil
}

// Segments yields the capture in order. A yielded error terminates the
// sequence.
func (r *SegmentReader) Segments() iter.Seq2[segment.Segment, error] {
	return func(yield func(segment.Segment, error) bool) {
		total := (r.endRead - r.startRead) / r.downsample
		for k0 := 0; k0 < total; k0 += r.segmentReads {
			kEnd := min(k0+r.segmentReads, total)
			seg, err := r.readBlock(k0, kEnd)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(seg, nil) {
				return
			}
		}
	}
}

// readBlock materializes output samples [k0, kEnd). Output sample k comes
// from read startRead + k*downsample; the covering raw rows are fetched in
// one contiguous ReadAt and the kept rows extracted from the buffer.
func (r *SegmentReader) readBlock(k0, kEnd int) (segment.Segment, error) {
	firstRead := r.startRead + k0*r.downsample
	lastRead := r.startRead + (kEnd-1)*r.downsample
	rows := lastRead - firstRead + 1

	buf := make([]byte, rows*r.f.rowBytes)
	byteOff := r.f.dataOffset + int64(firstRead)*int64(r.f.rowBytes)
	if _, err := r.f.handle.ReadAt(buf, byteOff); err != nil {
		return nil, fmt.Errorf("%w: reads [%d, %d]: %v", ErrTruncated, firstRead, lastRead, err)
	}

	seg := make(segment.Segment, len(r.channels))
	for _, chn := range r.channels {
		if _, ok := seg[chn]; ok {
			continue // duplicate channel ids share one run
		}
		col := r.f.columns[chn]
		run := make([]float64, kEnd-k0)
		for k := range run {
			off := k*r.downsample*r.f.rowBytes + col*sampleBytes
			run[k] = float64(int16(binary.LittleEndian.Uint16(buf[off : off+sampleBytes])))
		}
		seg[chn] = run
	}
	return seg, nil
}
