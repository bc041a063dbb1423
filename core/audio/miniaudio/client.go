package miniaudio

import (
	"context"
	"fmt"

	"github.com/alembiq/bunsen-core/core/audio"
	"github.com/gen2brain/malgo"
)

// Client drives the default capture and playback devices through
// miniaudio. Capture runs mono at audio.InputSampleRate, playback mono
// at audio.OutputSampleRate, both as 32-bit float samples.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{
		audioContext: audioCtx,
	}

	if err := client.playbackClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	// The playback device idles on silence until audio is queued, so it
	// can run for the whole lifetime of the client.
	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

// StartCapture begins delivering microphone samples to onSamples. The
// callback runs on the device thread and must not block.
func (c *Client) StartCapture(_ context.Context, onSamples func(samples []float32)) error {
	return c.captureClient.Start(onSamples)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

// Enqueue appends decoded samples to the playback queue.
func (c *Client) Enqueue(samples []float32) error {
	return c.playbackClient.Enqueue(samples)
}

// Mark registers a callback that fires once playback has consumed
// everything queued before it.
func (c *Client) Mark(callback func()) error {
	return c.playbackClient.Mark(callback)
}

// Flush drops all queued audio and pending marks without firing them.
func (c *Client) Flush() {
	c.playbackClient.Flush()
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) InputEncoding() audio.EncodingInfo {
	return audio.DefaultInputEncoding()
}

func (c *Client) OutputEncoding() audio.EncodingInfo {
	return audio.DefaultOutputEncoding()
}
