package common

import "errors"

// Common error types used across digaccess packages. Every failure mode here
// is a logic or capacity error, never transient, so nothing in this module
// retries; errors are raised at the point of detection and surfaced as-is.
var (
	// ErrSettings marks malformed or conflicting read settings.
	ErrSettings = errors.New("invalid read settings")
	// ErrCapacity marks an extent too large for in-memory assembly. The
	// remedy is a smaller plan (fewer channels, more downsampling), not
	// freeing memory.
	ErrCapacity = errors.New("requested extent too large for in-memory assembly")
	// ErrOutOfMemory marks an allocation-time memory shortfall.
	ErrOutOfMemory = errors.New("insufficient memory for data store")
	// ErrChannelNotFound marks a lookup of a channel outside the read plan.
	ErrChannelNotFound = errors.New("channel has not been read")
	// ErrSegmentOverflow marks a segment sequence delivering more samples
	// than the store was allocated for.
	ErrSegmentOverflow = errors.New("segment sequence overflows allocated store")
	// ErrSegmentShortfall marks a segment sequence ending before the store
	// was filled.
	ErrSegmentShortfall = errors.New("segment sequence ended short of allocated store")
)
