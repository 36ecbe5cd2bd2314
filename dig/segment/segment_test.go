package segment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLen(t *testing.T) {
	assert.Equal(t, 0, Segment{}.Len())
	assert.Equal(t, 3, Segment{7: {1, 2, 3}}.Len())
}

func TestSliceReaderYieldsInOrder(t *testing.T) {
	segs := []Segment{
		{0: {1, 2}},
		{0: {3}},
	}
	r := &SliceReader{Segs: segs}

	var got []float64
	for seg, err := range r.Segments() {
		require.NoError(t, err)
		got = append(got, seg[0]...)
	}
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestSliceReaderTrailingError(t *testing.T) {
	boom := errors.New("boom")
	r := &SliceReader{Segs: []Segment{{0: {1}}}, Err: boom}

	var errs []error
	count := 0
	for seg, err := range r.Segments() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		count += seg.Len()
	}
	assert.Equal(t, 1, count)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}
