// Package export converts assembled channel data into Apache Arrow records
// for downstream analysis tooling.
package export

import (
	"errors"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/nedm-daq/digaccess/dig/header"
)

var ErrRaggedStore = errors.New("channels have unequal lengths")

// Record builds an Arrow record with one float64 column per channel of the
// store, in ascending channel order, named by the header's display names.
// The caller owns the record and must Release it.
func Record(hdr *header.Info, store map[int][]float64) (arrow.Record, error) {
	channels := make([]int, 0, len(store))
	for chn := range store {
		channels = append(channels, chn)
	}
	sort.Ints(channels)

	rows := -1
	fields := make([]arrow.Field, 0, len(channels))
	for _, chn := range channels {
		if rows == -1 {
			rows = len(store[chn])
		} else if len(store[chn]) != rows {
			return nil, fmt.Errorf("%w: channel %d has %d samples, expected %d", ErrRaggedStore, chn, len(store[chn]), rows)
		}
		name := hdr.ChannelNames[chn]
		if name == "" {
			name = fmt.Sprintf("channel_%d", chn)
		}
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64})
	}

	schema := arrow.NewSchema(fields, nil)
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()

	for i, chn := range channels {
		builder.Field(i).(*array.Float64Builder).AppendValues(store[chn], nil)
	}
	return builder.NewRecord(), nil
}
