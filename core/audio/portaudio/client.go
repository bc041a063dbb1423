// Package portaudio provides an alternative microphone capture client
// for hosts where miniaudio is unavailable. It is capture only.
package portaudio

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/alembiq/bunsen-core/core/audio"
	"github.com/gordonklaus/portaudio"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream
	in         []float32

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]float32, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(audio.InputSampleRate), bufferSize, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open capture stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
	}, nil
}

// StartCapture begins delivering microphone samples to onSamples from a
// background read loop. Capture runs until StopCapture is called or ctx
// is cancelled.
func (c *Client) StartCapture(ctx context.Context, onSamples func(samples []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}

	log.Println("Starting microphone capture. Speak now...")
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			default:
			}

			if err := c.stream.Read(); err != nil {
				log.Printf("Failed to read from capture stream: %v", err)
				continue
			}

			samples := make([]float32, len(c.in))
			copy(samples, c.in)
			onSamples(samples)
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		return nil
	}

	close(c.stop)
	<-c.done
	c.stop, c.done = nil, nil

	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture stream: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	_ = c.StopCapture()
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) InputEncoding() audio.EncodingInfo {
	return audio.DefaultInputEncoding()
}
