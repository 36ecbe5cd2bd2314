package access

import (
	"testing"

	"github.com/nedm-daq/digaccess/dig/common"
	"github.com/nedm-daq/digaccess/dig/config"
	"github.com/nedm-daq/digaccess/dig/header"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeader() *header.Info {
	return header.New(
		[]int{0, 1, 5},
		map[int]string{0: "spin", 1: "bfield", 5: "squid"},
		100000, 1000.0, 1000.0,
	)
}

func iptr(i int) *int         { return &i }
func fptr(f float64) *float64 { return &f }

func TestTimeToReadRoundsUp(t *testing.T) {
	conv := Converter{FileFrequency: 1000.0}

	assert.Equal(t, 2, conv.TimeToRead(0.0015))
	assert.Equal(t, 1, conv.TimeToRead(0.001))
	assert.Equal(t, 0, conv.TimeToRead(0.0))
}

func TestTimeToReadCeilingProperty(t *testing.T) {
	conv := Converter{FileFrequency: 1000.0}

	prev := 0
	for _, tm := range []float64{0, 0.0001, 0.0005, 0.001, 0.0015, 0.01, 0.5, 1, 10.0001} {
		read := conv.TimeToRead(tm)
		assert.GreaterOrEqual(t, float64(read), tm*1000.0, "time %v", tm)
		assert.GreaterOrEqual(t, read, prev, "monotonicity at %v", tm)
		prev = read
	}
}

func TestMaxFrequencyToDownsampleRoundsDown(t *testing.T) {
	conv := Converter{FileFrequency: 1000.0}

	assert.Equal(t, 3, conv.MaxFrequencyToDownsample(300.0))
	assert.Equal(t, 1, conv.MaxFrequencyToDownsample(1000.0))
	assert.Equal(t, 10, conv.MaxFrequencyToDownsample(100.0))
	// realized frequency never exceeds the ceiling
	for _, maxF := range []float64{3, 7, 100, 333, 999} {
		downsample := conv.MaxFrequencyToDownsample(maxF)
		assert.LessOrEqual(t, float64(downsample), 1000.0/maxF, "max_frequency %v", maxF)
	}
}

func TestResolvePlanDefaults(t *testing.T) {
	plan, err := ResolvePlan(&config.Settings{}, testHeader())
	require.NoError(t, err)

	assert.Equal(t, Plan{
		Downsample: 1,
		Channels:   []int{0, 1, 5},
		StartRead:  0,
		EndRead:    100000,
	}, plan)
}

func TestResolvePlanOverrides(t *testing.T) {
	plan, err := ResolvePlan(&config.Settings{
		Downsample:     iptr(4),
		ChannelsToRead: []int{5, 0, 5},
		StartRead:      iptr(10),
		EndRead:        iptr(90),
	}, testHeader())
	require.NoError(t, err)

	assert.Equal(t, 4, plan.Downsample)
	// resolution order kept, duplicates not deduplicated
	assert.Equal(t, []int{5, 0, 5}, plan.Channels)
	assert.Equal(t, 10, plan.StartRead)
	assert.Equal(t, 90, plan.EndRead)
}

func TestResolvePlanTimeConversion(t *testing.T) {
	plan, err := ResolvePlan(&config.Settings{
		StartTime: fptr(0.0015),
		EndTime:   fptr(1.0),
	}, testHeader())
	require.NoError(t, err)

	assert.Equal(t, 2, plan.StartRead)
	assert.Equal(t, 1000, plan.EndRead)
}

func TestResolvePlanMaxFrequency(t *testing.T) {
	plan, err := ResolvePlan(&config.Settings{MaxFrequency: fptr(300.0)}, testHeader())
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Downsample)
}

func TestResolvePlanConflictingPairs(t *testing.T) {
	cases := []struct {
		name     string
		settings *config.Settings
	}{
		{"start_time vs start_read", &config.Settings{StartTime: fptr(0.5), StartRead: iptr(10)}},
		{"end_time vs end_read", &config.Settings{EndTime: fptr(0.5), EndRead: iptr(10)}},
		{"max_frequency vs downsample", &config.Settings{MaxFrequency: fptr(100.0), Downsample: iptr(2)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolvePlan(tc.settings, testHeader())
			require.ErrorIs(t, err, common.ErrSettings)
			assert.Contains(t, err.Error(), "only specify one")
		})
	}
}

func TestResolvePlanRejectsDegenerateDownsample(t *testing.T) {
	// a ceiling above the file frequency floors the factor to zero
	_, err := ResolvePlan(&config.Settings{MaxFrequency: fptr(5000.0)}, testHeader())
	require.ErrorIs(t, err, common.ErrSettings)
	assert.Contains(t, err.Error(), "not positive")

	_, err = ResolvePlan(&config.Settings{Downsample: iptr(0)}, testHeader())
	assert.ErrorIs(t, err, common.ErrSettings)
}

func TestResolvePlanRejectsInvertedRange(t *testing.T) {
	_, err := ResolvePlan(&config.Settings{StartRead: iptr(50), EndRead: iptr(10)}, testHeader())
	assert.ErrorIs(t, err, common.ErrSettings)

	_, err = ResolvePlan(&config.Settings{StartRead: iptr(-3)}, testHeader())
	assert.ErrorIs(t, err, common.ErrSettings)
}

func TestResolvePlanDoesNotClampEndRead(t *testing.T) {
	// conversion, not clamping: an end past the file is the reader's problem
	plan, err := ResolvePlan(&config.Settings{EndRead: iptr(200000)}, testHeader())
	require.NoError(t, err)
	assert.Equal(t, 200000, plan.EndRead)
}

func TestStoreLengthFloors(t *testing.T) {
	assert.Equal(t, 3, Plan{Downsample: 3, StartRead: 0, EndRead: 10}.StoreLength())
	assert.Equal(t, 10, Plan{Downsample: 1, StartRead: 0, EndRead: 10}.StoreLength())
	assert.Equal(t, 0, Plan{Downsample: 5, StartRead: 8, EndRead: 10}.StoreLength())
}
