package astilibav

import (
	"github.com/asticode/go-astimux"
)

// Event names
const (
	// ffmpeg log line forwarded through the event handler
	EventNameLog astimux.EventName = "astilibav.log"
	// Display-mode detection could not classify the input, simple mode is used instead
	EventNameMuxerDisplayModeFailed astimux.EventName = "astilibav.muxer.display.mode.failed"
	// Display mode has been resolved from the first real video frame
	EventNameMuxerDisplayModeResolved astimux.EventName = "astilibav.muxer.display.mode.resolved"
	// Leftover frames/samples of a ragged generation have been discarded
	EventNameMuxerTruncated astimux.EventName = "astilibav.muxer.truncated"
)

// Stat names
const (
	StatNameAllocatedFrames = "astilibav.allocated.frames"
	StatNameIncomingRate    = "astilibav.incoming.rate"
	StatNameOutgoingRate    = "astilibav.outgoing.rate"
)

// EventMuxerDisplayMode describes a resolved display mode
type EventMuxerDisplayMode struct {
	DisplayMode DisplayMode
	FPS         float64
	Height      int
	Interlaced  bool
	Width       int
}

// EventMuxerTruncated describes discarded leftovers of a ragged generation
type EventMuxerTruncated struct {
	Frames  int
	Samples int
}
