package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alembiq/bunsen-core/core/audio"
	"github.com/alembiq/bunsen-core/core/events"
	"github.com/alembiq/bunsen-core/core/realtime"
)

// captureDevice guards the optional microphone backend so the controller
// can treat "no capture configured" as a session without outbound audio.
type captureDevice struct {
	client    AudioCapture
	capturing atomic.Bool
}

func (d *captureDevice) set(client AudioCapture) {
	if d != nil {
		d.client = client
	}
}

func (d *captureDevice) isConfigured() bool {
	return d != nil && d.client != nil
}

func (d *captureDevice) start(ctx context.Context, onSamples func(samples []float32)) error {
	if !d.isConfigured() {
		return nil
	}

	if !d.capturing.CompareAndSwap(false, true) {
		return nil
	}

	if err := d.client.StartCapture(ctx, onSamples); err != nil {
		d.capturing.Store(false)
		return fmt.Errorf("failed to start audio capture: %w", err)
	}
	return nil
}

func (d *captureDevice) stop() {
	if !d.isConfigured() {
		return
	}

	if !d.capturing.CompareAndSwap(true, false) {
		return
	}

	if err := d.client.StopCapture(); err != nil {
		logger.Warn("Failed to stop audio capture", "error", err)
	}
}

func (d *captureDevice) encoding() audio.EncodingInfo {
	if !d.isConfigured() {
		return audio.DefaultInputEncoding()
	}
	return d.client.InputEncoding()
}

func (d *captureDevice) close() error {
	if !d.isConfigured() {
		return nil
	}

	d.stop()
	switch c := d.client.(type) {
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close capture client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}

// playbackDevice guards the optional speaker backend.
type playbackDevice struct {
	client AudioPlayback
}

func (d *playbackDevice) set(client AudioPlayback) {
	if d != nil {
		d.client = client
	}
}

func (d *playbackDevice) isConfigured() bool {
	return d != nil && d.client != nil
}

func (d *playbackDevice) enqueue(samples []float32) error {
	if !d.isConfigured() {
		return nil
	}
	return d.client.Enqueue(samples)
}

// mark registers a consumption callback. Without a configured backend the
// callback fires immediately so scheduling can keep progressing.
func (d *playbackDevice) mark(callback func()) error {
	if !d.isConfigured() {
		callback()
		return nil
	}
	return d.client.Mark(callback)
}

func (d *playbackDevice) flush() {
	if !d.isConfigured() {
		return
	}
	d.client.Flush()
}

func (d *playbackDevice) encoding() audio.EncodingInfo {
	if !d.isConfigured() {
		return audio.DefaultOutputEncoding()
	}
	return d.client.OutputEncoding()
}

func (d *playbackDevice) close() error {
	if !d.isConfigured() {
		return nil
	}

	d.flush()
	switch c := d.client.(type) {
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close playback client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}

// capturePipeline re-chunks device-period sample callbacks into fixed-size
// frames, encodes them as PCM16 blobs, and forwards them to the bound live
// session. Samples that arrive while no session is bound, or while muted,
// are discarded along with any partial frame; a dropped frame must never
// surface later.
type capturePipeline struct {
	mu         sync.Mutex
	pending    []float32
	sampleRate int
	send       func(frame realtime.Blob) error

	muted   atomic.Bool
	dropped atomic.Int64

	emitEvent eventEmitter
}

func newCapturePipeline() *capturePipeline {
	return &capturePipeline{emitEvent: noopEventEmitter}
}

// bind points the pipeline at a live session's outbound stream.
func (p *capturePipeline) bind(sampleRate int, send func(frame realtime.Blob) error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sampleRate = sampleRate
	p.send = send
	p.pending = nil
}

// unbind detaches the pipeline, discarding any partial frame.
func (p *capturePipeline) unbind() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.send = nil
	p.pending = nil
}

func (p *capturePipeline) setMuted(muted bool) { p.muted.Store(muted) }
func (p *capturePipeline) isMuted() bool       { return p.muted.Load() }

// droppedCount reports discarded deliveries: sample chunks that arrived
// while the stream was not accepting audio plus frames whose send failed.
func (p *capturePipeline) droppedCount() int64 { return p.dropped.Load() }

// push folds freshly captured samples into the pending frame and forwards
// every completed frame. Device callbacks arrive sequentially; push only
// has to be safe against concurrent bind/unbind and mute flips.
func (p *capturePipeline) push(samples []float32) {
	p.mu.Lock()
	if p.send == nil || p.muted.Load() {
		p.pending = nil
		p.dropped.Add(1)
		p.mu.Unlock()
		return
	}

	p.pending = append(p.pending, samples...)

	var frames [][]float32
	offset := 0
	for len(p.pending)-offset >= audio.FrameSamples {
		frame := make([]float32, audio.FrameSamples)
		copy(frame, p.pending[offset:offset+audio.FrameSamples])
		frames = append(frames, frame)
		offset += audio.FrameSamples
	}
	if offset > 0 {
		p.pending = append(p.pending[:0], p.pending[offset:]...)
	}
	sampleRate, send := p.sampleRate, p.send
	p.mu.Unlock()

	for _, frame := range frames {
		encoded := audio.EncodeFrame(frame, sampleRate)
		if err := send(realtime.Blob{MIMEType: encoded.MIMEType, Data: encoded.Data}); err != nil {
			p.dropped.Add(1)
			p.emitEvent(events.NewCaptureFrameDropped(err.Error()))
			logger.Warn("Dropped capture frame", "error", err)
		}
	}
}
