package header

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
	radix "github.com/armon/go-radix"
)

// Info holds the header facts of a .dig capture file. It is the read-only
// fact source consumed by settings resolution and assembly: which channels
// exist, how many reads the file holds, and at what rate they were taken.
type Info struct {
	Version         uint16         // container format version
	ChannelList     []int          // channel ids in file order
	ChannelNames    map[int]string // channel id -> display name
	DataLengthReads int            // total reads in the file
	FileFrequency   float64        // native sample rate in Hz
	OutputFrequency float64        // rate exposed to consumers after fixed conversion

	channelSet *roaring.Bitmap
	nameIndex  *radix.Tree
}

// New builds an Info and its lookup indexes. Callers normally get one from
// digfile.ReadHeader rather than constructing it directly; tests use New to
// fabricate header facts without a file.
func New(channels []int, names map[int]string, dataLengthReads int, fileFrequency, outputFrequency float64) *Info {
	info := &Info{
		ChannelList:     channels,
		ChannelNames:    names,
		DataLengthReads: dataLengthReads,
		FileFrequency:   fileFrequency,
		OutputFrequency: outputFrequency,
	}
	info.buildIndexes()
	return info
}

func (h *Info) buildIndexes() {
	h.channelSet = roaring.New()
	h.nameIndex = radix.New()
	for _, chn := range h.ChannelList {
		h.channelSet.Add(uint32(chn))
		if name, ok := h.ChannelNames[chn]; ok {
			h.nameIndex.Insert(name, chn)
		}
	}
}

// HasChannel reports whether the file contains the given channel id.
func (h *Info) HasChannel(chn int) bool {
	if chn < 0 {
		return false
	}
	return h.channelSet.Contains(uint32(chn))
}

// ChannelByName returns the channel id registered under an exact display name.
func (h *Info) ChannelByName(name string) (int, bool) {
	v, ok := h.nameIndex.Get(name)
	if !ok {
		return 0, false
	}
	return v.(int), true
}

// ChannelsByPrefix returns the ids of all channels whose display name starts
// with the given prefix, in name order.
func (h *Info) ChannelsByPrefix(prefix string) []int {
	var out []int
	h.nameIndex.WalkPrefix(prefix, func(_ string, v interface{}) bool {
		out = append(out, v.(int))
		return false
	})
	return out
}

// Inventory renders the full channel id/name listing, used by lookup errors
// so a caller can discover valid alternatives without reopening the file.
func (h *Info) Inventory() string {
	ids := append([]int(nil), h.ChannelList...)
	sort.Ints(ids)
	parts := make([]string, 0, len(ids))
	for _, chn := range ids {
		name := h.ChannelNames[chn]
		if name == "" {
			name = "?"
		}
		parts = append(parts, fmt.Sprintf("%d (%s)", chn, name))
	}
	return strings.Join(parts, ", ")
}
