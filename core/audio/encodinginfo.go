package audio

const (
	// InputSampleRate is the sample rate the remote model expects for
	// microphone audio.
	InputSampleRate = 16000
	// OutputSampleRate is the sample rate of audio coming back from the
	// remote model.
	OutputSampleRate = 24000

	// FrameSamples is the number of samples in one outbound capture frame
	// (~256ms at the input rate).
	FrameSamples = 4096
)

func DefaultInputEncoding() EncodingInfo {
	return EncodingInfo{SampleRate: InputSampleRate, Format: EncodingFloat32}
}

func DefaultOutputEncoding() EncodingInfo {
	return EncodingInfo{SampleRate: OutputSampleRate, Format: EncodingFloat32}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	case EncodingFloat32:
		return 4
	}
	return -1
}

const (
	// EncodingLinear16 is 16-bit signed little-endian PCM, the wire format.
	EncodingLinear16 encodingFormat = "linear16"
	// EncodingFloat32 is normalized [-1, 1] float samples, the in-process
	// format the capture and playback clients speak.
	EncodingFloat32 encodingFormat = "float32"
)
