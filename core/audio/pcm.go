package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// EncodedFrame is one transport-ready chunk of audio: base64 16-bit
// little-endian PCM with the sample rate declared in the MIME type.
type EncodedFrame struct {
	MIMEType string
	Data     string
}

// PCMMIMEType tags raw PCM payloads with their sample rate, e.g.
// "audio/pcm;rate=16000".
func PCMMIMEType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// EncodeFrame converts float samples into a transport-ready frame. Samples
// are clamped to [-1, 1] before quantization, so feeding hot input cannot
// wrap around.
func EncodeFrame(samples []float32, sampleRate int) EncodedFrame {
	return EncodedFrame{
		MIMEType: PCMMIMEType(sampleRate),
		Data:     base64.StdEncoding.EncodeToString(EncodePCM16(samples)),
	}
}

// DecodeFrame converts a base64 16-bit PCM payload back to float samples.
func DecodeFrame(data string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio payload: %w", err)
	}
	return DecodePCM16(raw)
}

// EncodePCM16 quantizes normalized float samples to 16-bit signed
// little-endian PCM.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sample*32767)))
	}
	return out
}

// DecodePCM16 converts 16-bit signed little-endian PCM to normalized float
// samples. The payload must hold whole samples.
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm16 payload has partial sample: %d bytes", len(data))
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
	}
	return samples, nil
}

// Duration reports how long the given number of samples plays for at the
// given rate.
func Duration(sampleCount, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(sampleCount) * time.Second / time.Duration(sampleRate)
}
