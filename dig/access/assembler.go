package access

import (
	"context"
	"fmt"

	"github.com/nedm-daq/digaccess/dig/common"
	"github.com/nedm-daq/digaccess/dig/segment"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/mem"
)

// MaxStoreBytes is the hard ceiling on the total size of one assembled data
// store. Anything above it cannot be addressed sensibly in one process and
// needs a streaming consumer instead.
const MaxStoreBytes = uint64(1) << 62

const bytesPerSample = 8 // float64

// Assembler materializes a resolved plan into per-channel arrays. It
// allocates the full store up front, then folds the segment sequence into it
// strictly in order with a single output offset shared across channels.
type Assembler struct {
	plan    Plan
	log     zerolog.Logger
	asserts *assert.AssertHandler

	// availableMemory overrides the gopsutil probe in tests; 0 means probe.
	availableMemory uint64
}

// NewAssembler creates an assembler for a resolved plan.
func NewAssembler(plan Plan, logger zerolog.Logger) *Assembler {
	return &Assembler{
		plan:    plan,
		log:     logger,
		asserts: assert.NewAssertHandler(),
	}
}

// Assemble consumes the full segment sequence into a channel-indexed store.
// It either returns a complete store or an error and no store at all; there
// is no partial result. The sequence must deliver exactly
// plan.StoreLength() samples per channel: over-delivery fails with
// common.ErrSegmentOverflow, under-delivery with common.ErrSegmentShortfall.
func (a *Assembler) Assemble(ctx context.Context, reader segment.Reader) (map[int][]float64, error) {
	store, err := a.allocate()
	if err != nil {
		return nil, err
	}
	if err := a.accumulate(ctx, store, reader); err != nil {
		return nil, err
	}
	return store, nil
}

func (a *Assembler) allocate() (map[int][]float64, error) {
	length := a.plan.StoreLength()
	if length < 0 {
		return nil, fmt.Errorf("%w: plan read range [%d, %d) is inverted", common.ErrSettings, a.plan.StartRead, a.plan.EndRead)
	}

	store := make(map[int][]float64, len(a.plan.Channels))
	channelCount := uint64(len(a.plan.Channels))
	// Division instead of multiplication so a pathological extent cannot
	// overflow uint64 before the comparison.
	if channelCount > 0 && uint64(length) > MaxStoreBytes/bytesPerSample/channelCount {
		err := fmt.Errorf("%w: %d channels x %d samples, reduce the channel count, read range, or max_frequency, or consume the file as segments",
			common.ErrCapacity, channelCount, length)
		a.log.Error().Err(err).Msg("data store exceeds maximum array size")
		return nil, err
	}
	channelBytes := uint64(length) * bytesPerSample

	available := a.availableMemory
	if available == 0 {
		if vm, err := mem.VirtualMemory(); err == nil {
			available = vm.Available
		} else {
			a.log.Debug().Err(err).Msg("could not probe available memory, skipping pre-check")
		}
	}

	var allocated uint64
	for _, chn := range a.plan.Channels {
		if _, ok := store[chn]; ok {
			continue // duplicate channel ids share one array
		}
		if available != 0 && allocated+channelBytes > available {
			err := fmt.Errorf("%w: channel %d needs %d bytes with only %d available, try clearing space or consuming the file as segments",
				common.ErrOutOfMemory, chn, channelBytes, available-allocated)
			a.log.Error().Err(err).Int("channel", chn).Msg("data store does not fit in working memory")
			return nil, err
		}
		store[chn] = make([]float64, length)
		allocated += channelBytes
	}
	return store, nil
}

func (a *Assembler) accumulate(ctx context.Context, store map[int][]float64, reader segment.Reader) error {
	length := a.plan.StoreLength()
	offset := 0
	for seg, err := range reader.Segments() {
		if err != nil {
			return fmt.Errorf("segment sequence failed at output offset %d: %w", offset, err)
		}
		segLen := seg.Len()
		if segLen == 0 {
			continue
		}
		if offset+segLen > length {
			return fmt.Errorf("%w: segment of %d samples at offset %d exceeds allocated length %d",
				common.ErrSegmentOverflow, segLen, offset, length)
		}
		for _, chn := range a.plan.Channels {
			run, ok := seg[chn]
			if !ok {
				continue
			}
			a.asserts.Assert(ctx, len(run) == segLen, "segment runs must have equal length across channels")
			copy(store[chn][offset:], run)
		}
		offset += segLen
	}
	if offset != length {
		return fmt.Errorf("%w: got %d of %d samples", common.ErrSegmentShortfall, offset, length)
	}
	return nil
}
