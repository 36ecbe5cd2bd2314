package access

import (
	"fmt"
	"math"

	"github.com/nedm-daq/digaccess/dig/common"
	"github.com/nedm-daq/digaccess/dig/config"
	"github.com/nedm-daq/digaccess/dig/header"
)

// Plan is the canonical, conflict-free description of a read: which
// channels, which read range, and which downsample factor to materialize.
// Once resolved it is immutable; changing a request means opening a new
// session. StartRead/EndRead are converted, not clamped, so EndRead may
// exceed the file's read count if the caller asked for that.
type Plan struct {
	Downsample int
	Channels   []int // resolution order, duplicates preserved
	StartRead  int
	EndRead    int
}

// StoreLength is the per-channel array length the plan materializes. The
// floor division here is the allocation contract the segment reader chunking
// must match sample for sample.
func (p Plan) StoreLength() int {
	return (p.EndRead - p.StartRead) / p.Downsample
}

// Converter performs the pure numeric conversions between the time and
// frequency domain settings and their read-domain equivalents.
type Converter struct {
	FileFrequency float64 // native sample rate of the file in Hz
}

// TimeToRead maps a wall-clock offset from run start to a read index.
// Rounds up, so the returned read is the first sample at or after the
// requested time.
func (c Converter) TimeToRead(t float64) int {
	return int(math.Ceil(t * c.FileFrequency))
}

// MaxFrequencyToDownsample maps an output-rate ceiling to a downsample
// factor. Rounds down, so the realized frequency never exceeds maxF. A
// ceiling above the file frequency yields 0; resolution rejects that.
func (c Converter) MaxFrequencyToDownsample(maxF float64) int {
	return int(math.Floor(c.FileFrequency / maxF))
}

// DefaultPlan reads the entire file: every channel, no downsampling.
func DefaultPlan(hdr *header.Info) Plan {
	return Plan{
		Downsample: 1,
		Channels:   append([]int(nil), hdr.ChannelList...),
		StartRead:  0,
		EndRead:    hdr.DataLengthReads,
	}
}

// ResolvePlan turns validated settings into a canonical plan against the
// header facts. Exactly one of each mutually exclusive pair may contribute:
// {start_time, start_read}, {end_time, end_read}, {max_frequency,
// downsample}. Both present fails with common.ErrSettings naming the pair.
func ResolvePlan(s *config.Settings, hdr *header.Info) (Plan, error) {
	if s == nil {
		s = &config.Settings{}
	}
	if s.StartTime != nil && s.StartRead != nil {
		return Plan{}, fmt.Errorf(`%w: please only specify one of "start_time" or "start_read"`, common.ErrSettings)
	}
	if s.EndTime != nil && s.EndRead != nil {
		return Plan{}, fmt.Errorf(`%w: please only specify one of "end_time" or "end_read"`, common.ErrSettings)
	}
	if s.MaxFrequency != nil && s.Downsample != nil {
		return Plan{}, fmt.Errorf(`%w: please only specify one of "max_frequency" or "downsample"`, common.ErrSettings)
	}

	plan := DefaultPlan(hdr)
	conv := Converter{FileFrequency: hdr.FileFrequency}

	if s.Downsample != nil {
		plan.Downsample = *s.Downsample
	}
	if s.ChannelsToRead != nil {
		plan.Channels = append([]int(nil), s.ChannelsToRead...)
	}
	if s.StartRead != nil {
		plan.StartRead = *s.StartRead
	}
	if s.EndRead != nil {
		plan.EndRead = *s.EndRead
	}
	if s.StartTime != nil {
		plan.StartRead = conv.TimeToRead(*s.StartTime)
	}
	if s.EndTime != nil {
		plan.EndRead = conv.TimeToRead(*s.EndTime)
	}
	if s.MaxFrequency != nil {
		plan.Downsample = conv.MaxFrequencyToDownsample(*s.MaxFrequency)
	}

	// A max_frequency above the file frequency floors to 0; fail here
	// rather than let a degenerate factor reach allocation.
	if plan.Downsample < 1 {
		return Plan{}, fmt.Errorf("%w: downsample factor %d is not positive (max_frequency above the file frequency of %g Hz?)",
			common.ErrSettings, plan.Downsample, hdr.FileFrequency)
	}
	if plan.StartRead < 0 {
		return Plan{}, fmt.Errorf("%w: start_read %d is negative", common.ErrSettings, plan.StartRead)
	}
	if plan.EndRead < plan.StartRead {
		return Plan{}, fmt.Errorf("%w: end_read %d precedes start_read %d", common.ErrSettings, plan.EndRead, plan.StartRead)
	}
	return plan, nil
}
