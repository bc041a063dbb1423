package miniaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/alembiq/bunsen-core/core/audio"
	"github.com/gen2brain/malgo"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	queued []byte
	marks  []playbackMark

	mu sync.Mutex
	// queueMu guards queued and marks together, mark positions are only
	// meaningful relative to the current queue head
	queueMu sync.Mutex
}

type playbackMark struct {
	position int
	callback func()
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatF32
	channels := 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = uint32(audio.OutputSampleRate)
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = uint32(audio.OutputSampleRate) / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	c.Flush()
	return nil
}

func (c *playbackClient) Enqueue(samples []float32) error {
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	c.queued = append(c.queued, encodeF32(samples)...)
	return nil
}

func (c *playbackClient) Mark(callback func()) error {
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	c.marks = append(c.marks, playbackMark{
		position: len(c.queued),
		callback: callback,
	})
	return nil
}

func (c *playbackClient) Flush() {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	c.queued = nil
	c.marks = nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame
		if need > len(pOutput) {
			need = len(pOutput)
		}

		// The device pre-zeroes pOutput, so a partial copy plays the
		// queued tail followed by silence.
		c.queueMu.Lock()
		n := copy(pOutput[:need], c.queued)
		if n < len(c.queued) {
			c.queued = c.queued[n:]
		} else {
			c.queued = nil
		}
		passed := c.passMarks(n)
		c.queueMu.Unlock()

		if len(passed) > 0 {
			go func() {
				for _, mark := range passed {
					mark.callback()
				}
			}()
		}
	}
}

// passMarks splits off the marks whose audio has been fully consumed and
// rebases the rest against the new queue head. Positions are
// nondecreasing in append order, so passed marks are always a prefix.
// Callers must hold queueMu.
func (c *playbackClient) passMarks(consumed int) []playbackMark {
	passed := 0
	for i, mark := range c.marks {
		if mark.position > consumed {
			c.marks[i].position -= consumed
		} else {
			passed++
		}
	}
	if passed == 0 {
		return nil
	}

	fired := make([]playbackMark, passed)
	copy(fired, c.marks[:passed])
	c.marks = c.marks[passed:]
	return fired
}

func encodeF32(samples []float32) []byte {
	data := make([]byte, len(samples)*4)
	for i, sample := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(sample))
	}
	return data
}
