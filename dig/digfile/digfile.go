// Package digfile implements the binary .dig container written by the
// digitizer: a fixed header, a channel table, and the capture body as
// interleaved rows of int16 samples, one row per read in channel-table
// order. All integers are little-endian.
//
// Layout:
//
//	0   magic "DIG1"
//	4   uint16  format version
//	6   uint16  channel count C
//	8   uint64  data length in reads N
//	16  float64 file frequency (Hz)
//	24  float64 output frequency (Hz)
//	32  channel table, C entries of { uint16 id, uint8 nameLen, name }
//	..  body: N rows of C int16 samples
package digfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/nedm-daq/digaccess/dig/header"
	"github.com/nedm-daq/digaccess/dig/source"
)

var magic = [4]byte{'D', 'I', 'G', '1'}

// FormatVersion is the container version this package writes.
const FormatVersion uint16 = 1

const (
	fixedHeaderBytes = 32
	sampleBytes      = 2 // int16
)

var (
	ErrBadMagic    = errors.New("not a dig file (bad magic)")
	ErrBadVersion  = errors.New("unsupported dig format version")
	ErrTruncated   = errors.New("dig file truncated")
	ErrNoChannel   = errors.New("channel not present in file")
	ErrBadFixture  = errors.New("inconsistent channel data")
	ErrZeroChannel = errors.New("dig file declares no channels")
)

// File is an open .dig container: parsed header facts plus the geometry
// needed to address the capture body.
type File struct {
	handle     source.Handle
	hdr        *header.Info
	dataOffset int64
	rowBytes   int
	columns    map[int]int // channel id -> column index within a row
}

// Open parses the header of a .dig container. The body is not touched
// until a segment reader runs.
func Open(h source.Handle) (*File, error) {
	fixed := make([]byte, fixedHeaderBytes)
	if _, err := io.ReadFull(io.NewSectionReader(h, 0, fixedHeaderBytes), fixed); err != nil {
		return nil, fmt.Errorf("%w: reading fixed header: %v", ErrTruncated, err)
	}
	if [4]byte(fixed[0:4]) != magic {
		return nil, ErrBadMagic
	}
	version := binary.LittleEndian.Uint16(fixed[4:6])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	channelCount := int(binary.LittleEndian.Uint16(fixed[6:8]))
	if channelCount == 0 {
		return nil, ErrZeroChannel
	}
	dataLengthReads := int(binary.LittleEndian.Uint64(fixed[8:16]))
	fileFrequency := math.Float64frombits(binary.LittleEndian.Uint64(fixed[16:24]))
	outputFrequency := math.Float64frombits(binary.LittleEndian.Uint64(fixed[24:32]))

	channels := make([]int, 0, channelCount)
	names := make(map[int]string, channelCount)
	columns := make(map[int]int, channelCount)
	off := int64(fixedHeaderBytes)
	entry := make([]byte, 3)
	for i := 0; i < channelCount; i++ {
		if _, err := h.ReadAt(entry, off); err != nil {
			return nil, fmt.Errorf("%w: reading channel table entry %d: %v", ErrTruncated, i, err)
		}
		id := int(binary.LittleEndian.Uint16(entry[0:2]))
		nameLen := int(entry[2])
		name := make([]byte, nameLen)
		if _, err := h.ReadAt(name, off+3); err != nil {
			return nil, fmt.Errorf("%w: reading channel %d name: %v", ErrTruncated, id, err)
		}
		channels = append(channels, id)
		names[id] = string(name)
		columns[id] = i
		off += 3 + int64(nameLen)
	}

	hdr := header.New(channels, names, dataLengthReads, fileFrequency, outputFrequency)
	hdr.Version = version

	return &File{
		handle:     h,
		hdr:        hdr,
		dataOffset: off,
		rowBytes:   channelCount * sampleBytes,
		columns:    columns,
	}, nil
}

// Header returns the parsed header facts.
func (f *File) Header() *header.Info { return f.hdr }

// Write serializes header facts and per-channel samples into the .dig
// container layout. Every channel in info.ChannelList must supply exactly
// info.DataLengthReads samples. Used by capture tooling and test fixtures.
func Write(w io.Writer, info *header.Info, samples map[int][]int16) error {
	for _, chn := range info.ChannelList {
		if len(samples[chn]) != info.DataLengthReads {
			return fmt.Errorf("%w: channel %d has %d samples, header declares %d reads",
				ErrBadFixture, chn, len(samples[chn]), info.DataLengthReads)
		}
		if len(info.ChannelNames[chn]) > 255 {
			return fmt.Errorf("%w: channel %d name exceeds 255 bytes", ErrBadFixture, chn)
		}
	}

	fixed := make([]byte, fixedHeaderBytes)
	copy(fixed[0:4], magic[:])
	binary.LittleEndian.PutUint16(fixed[4:6], FormatVersion)
	binary.LittleEndian.PutUint16(fixed[6:8], uint16(len(info.ChannelList)))
	binary.LittleEndian.PutUint64(fixed[8:16], uint64(info.DataLengthReads))
	binary.LittleEndian.PutUint64(fixed[16:24], math.Float64bits(info.FileFrequency))
	binary.LittleEndian.PutUint64(fixed[24:32], math.Float64bits(info.OutputFrequency))
	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}

	for _, chn := range info.ChannelList {
		name := info.ChannelNames[chn]
		entry := make([]byte, 3+len(name))
		binary.LittleEndian.PutUint16(entry[0:2], uint16(chn))
		entry[2] = byte(len(name))
		copy(entry[3:], name)
		if _, err := w.Write(entry); err != nil {
			return fmt.Errorf("failed to write channel table: %w", err)
		}
	}

	row := make([]byte, len(info.ChannelList)*sampleBytes)
	for read := 0; read < info.DataLengthReads; read++ {
		for i, chn := range info.ChannelList {
			binary.LittleEndian.PutUint16(row[i*sampleBytes:], uint16(samples[chn][read]))
		}
		if _, err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write read %d: %w", read, err)
		}
	}
	return nil
}
