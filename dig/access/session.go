// Package access is the core of digaccess: it resolves loosely-specified
// user settings into a canonical read plan, drives segment-wise assembly of
// the capture into per-channel arrays, and serves validated channel lookups
// out of the assembled store.
package access

import (
	"context"
	"fmt"
	"slices"
	"sync"

	internal "github.com/nedm-daq/digaccess/dig"
	"github.com/nedm-daq/digaccess/dig/common"
	"github.com/nedm-daq/digaccess/dig/config"
	"github.com/nedm-daq/digaccess/dig/digfile"
	"github.com/nedm-daq/digaccess/dig/header"
	"github.com/nedm-daq/digaccess/dig/segment"
	"github.com/nedm-daq/digaccess/dig/source"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures Open.
type Options struct {
	Dir          string             // directory holding the file; local source only
	DocID        string             // remote document id; non-empty selects the server source
	Store        source.RemoteStore // overrides the stock HTTP store for the server source
	Settings     map[string]any     // raw read settings, keys per config.KnownKeys
	SegmentReads int                // output samples per segment; 0 uses the default
	Logger       *zerolog.Logger    // nil uses the stock stderr logger
}

// Session is one open view of a .dig file under one resolved read plan. Its
// lifecycle is unresolved -> resolved(plan) -> assembled-cached; the last
// transition happens once, on first data access, and is never invalidated.
// The sync.Once makes that one-shot transition safe under concurrent first
// access.
type Session struct {
	log      zerolog.Logger
	id       uuid.UUID
	fileName string
	handle   source.Handle
	file     *digfile.File
	plan     Plan
	reader   segment.Reader

	assembleOnce sync.Once
	store        map[int][]float64
	assembleErr  error
}

// Open opens fileName, resolves the read settings against its header, and
// returns a session ready to assemble on first access. Malformed settings
// fail before any file I/O; conflicting or degenerate settings fail after
// header parsing, before any capture data is read. The source is the local
// filesystem unless opts.DocID names a remote document.
func Open(fileName string, opts Options) (*Session, error) {
	settings, err := config.ParseSettings(anyMap(opts.Settings))
	if err != nil {
		return nil, err
	}

	logger := internal.GetLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	id := uuid.New()
	logger = logger.With().Str("session", id.String()).Str("file", fileName).Logger()

	handle, err := openHandle(fileName, opts)
	if err != nil {
		return nil, err
	}

	file, err := digfile.Open(handle)
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to parse header of %s: %w", fileName, err)
	}

	plan, err := ResolvePlan(settings, file.Header())
	if err != nil {
		handle.Close()
		return nil, err
	}

	segmentReads := opts.SegmentReads
	if segmentReads == 0 {
		segmentReads = internal.DefaultSegmentReads
	}
	reader, err := file.NewSegmentReader(plan.Channels, plan.StartRead, plan.EndRead, plan.Downsample, segmentReads)
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrSettings, err)
	}

	logger.Debug().
		Int("downsample", plan.Downsample).
		Ints("channels", plan.Channels).
		Int("start_read", plan.StartRead).
		Int("end_read", plan.EndRead).
		Msg("read plan resolved")

	return &Session{
		log:      logger,
		id:       id,
		fileName: fileName,
		handle:   handle,
		file:     file,
		plan:     plan,
		reader:   reader,
	}, nil
}

func anyMap(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

func openHandle(fileName string, opts Options) (source.Handle, error) {
	if opts.DocID == "" {
		return source.OpenLocal(fileName, opts.Dir)
	}
	store := opts.Store
	if store == nil {
		store = &source.HTTPStore{Endpoint: internal.DefaultRemoteEndpoint}
	}
	return source.OpenServer(opts.DocID, store)
}

// Header returns the parsed header facts of the open file.
func (s *Session) Header() *header.Info { return s.file.Header() }

// Plan returns the resolved read plan.
func (s *Session) Plan() Plan { return s.plan }

// Frequency returns the output sample rate exposed to consumers.
func (s *Session) Frequency() float64 { return s.file.Header().OutputFrequency }

// SourceKind reports whether the session reads a local file or a remote
// document.
func (s *Session) SourceKind() source.Kind { return s.handle.Kind() }

// DataDict assembles the planned extent on first call and returns the
// channel-indexed store. The store is cached for the session's lifetime and
// must be treated as read-only; a failed assembly caches the failure and
// never exposes a partial store.
func (s *Session) DataDict() (map[int][]float64, error) {
	s.assembleOnce.Do(func() {
		asm := NewAssembler(s.plan, s.log)
		s.store, s.assembleErr = asm.Assemble(context.Background(), s.reader)
		if s.assembleErr != nil {
			s.log.Error().Err(s.assembleErr).Msg("data assembly failed")
		}
	})
	return s.store, s.assembleErr
}

// Channel returns the assembled array for one channel, triggering assembly
// if it has not run yet.
func (s *Session) Channel(chn int) ([]float64, error) {
	if s.plan.Channels == nil {
		return nil, fmt.Errorf("%w: channels_to_read must be a sequence, a one element list suffices if only one channel is desired",
			common.ErrSettings)
	}
	if !slices.Contains(s.plan.Channels, chn) {
		return nil, &ChannelNotFoundError{Channel: chn, Header: s.file.Header()}
	}
	store, err := s.DataDict()
	if err != nil {
		return nil, err
	}
	return store[chn], nil
}

// Close releases the underlying file handle. Assembled data stays valid;
// it no longer depends on the handle.
func (s *Session) Close() error { return s.handle.Close() }
