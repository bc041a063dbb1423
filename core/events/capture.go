package events

const (
	// KindCaptureFrameDropped identifies capture frames discarded instead
	// of sent.
	KindCaptureFrameDropped Kind = "capture.frame_dropped"
)

// CaptureFrameDropped marks a microphone frame that was dropped rather
// than buffered, e.g. because the session was not connected.
type CaptureFrameDropped struct {
	Base
	Reason string
}

// NewCaptureFrameDropped creates a capture frame dropped event.
func NewCaptureFrameDropped(reason string) CaptureFrameDropped {
	return CaptureFrameDropped{Base: NewBase(KindCaptureFrameDropped), Reason: reason}
}
