package access

import (
	"fmt"

	"github.com/nedm-daq/digaccess/dig/common"
	"github.com/nedm-daq/digaccess/dig/header"
)

// ChannelNotFoundError reports a lookup of a channel outside the read plan.
// It deliberately enumerates every channel the FILE offers, not just the
// requested subset, so the caller can discover valid alternatives without
// reopening anything.
type ChannelNotFoundError struct {
	Channel int
	Header  *header.Info
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("invalid channel: %d has not been read, channels available in this file are %s",
		e.Channel, e.Header.Inventory())
}

func (e *ChannelNotFoundError) Unwrap() error { return common.ErrChannelNotFound }
