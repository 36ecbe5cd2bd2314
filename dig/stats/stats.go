// Package stats computes per-channel summaries over an assembled data
// store. Assembly itself is sequential; summaries run after it, over
// read-only arrays, so they fan out across channels.
package stats

import (
	"runtime"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one channel's assembled array.
type Summary struct {
	Channel int
	Samples int
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
}

// Summarize computes a Summary per channel of the store, in ascending
// channel order, using a bounded worker pool sized to the CPU count.
func Summarize(store map[int][]float64) []Summary {
	channels := make([]int, 0, len(store))
	for chn := range store {
		channels = append(channels, chn)
	}
	sort.Ints(channels)

	out := make([]Summary, len(channels))
	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i, chn := range channels {
		p.Go(func() {
			out[i] = summarize(chn, store[chn])
		})
	}
	p.Wait()
	return out
}

func summarize(chn int, data []float64) Summary {
	s := Summary{Channel: chn, Samples: len(data)}
	if len(data) == 0 {
		return s
	}
	s.Mean = stat.Mean(data, nil)
	s.StdDev = stat.StdDev(data, nil)
	s.Min = floats.Min(data)
	s.Max = floats.Max(data)
	return s
}
