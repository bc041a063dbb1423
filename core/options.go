package session

import (
	"context"

	"github.com/alembiq/bunsen-core/core/audio"
	"github.com/alembiq/bunsen-core/core/events"
	"github.com/alembiq/bunsen-core/core/realtime"
)

type ControllerOption func(*Controller)

// RealtimeSession is an open live-model session the controller streams
// against.
type RealtimeSession interface {
	SendRealtimeInput(chunks ...realtime.Blob) error
	SendText(text string) error
	SendToolResponses(responses ...realtime.FunctionResponse) error
	Close() error
}

// RealtimeClient opens live sessions against a conversational model
// provider.
type RealtimeClient interface {
	Connect(ctx context.Context, config realtime.SessionConfig, callbacks realtime.Callbacks) (RealtimeSession, error)
}

// RealtimeClientFunc adapts a connect function into a RealtimeClient.
type RealtimeClientFunc func(ctx context.Context, config realtime.SessionConfig, callbacks realtime.Callbacks) (RealtimeSession, error)

func (f RealtimeClientFunc) Connect(ctx context.Context, config realtime.SessionConfig, callbacks realtime.Callbacks) (RealtimeSession, error) {
	return f(ctx, config, callbacks)
}

// WithRealtimeClient replaces the default Gemini live client. Without it the
// controller builds one on the first connect, which requires an API key.
func WithRealtimeClient(client RealtimeClient) ControllerOption {
	return func(c *Controller) { c.realtimeClient = client }
}

// AudioCapture produces microphone samples in the device's period-sized
// chunks until stopped.
type AudioCapture interface {
	StartCapture(ctx context.Context, onSamples func(samples []float32)) error
	StopCapture() error
	InputEncoding() audio.EncodingInfo
}

// AudioPlayback consumes scheduled model audio. Mark registers a callback
// fired once the device has consumed everything enqueued before it; Flush
// drops queued audio and pending marks without firing them.
type AudioPlayback interface {
	Enqueue(samples []float32) error
	Mark(callback func()) error
	Flush()
	OutputEncoding() audio.EncodingInfo
}

// AudioClient combines both device halves; the miniaudio client implements
// it directly.
type AudioClient interface {
	AudioCapture
	AudioPlayback
}

// WithCaptureClient wires a microphone backend. Without one the session
// carries no outbound audio (typed input still works).
func WithCaptureClient(client AudioCapture) ControllerOption {
	return func(c *Controller) { c.capture.set(client) }
}

// WithPlaybackClient wires a speaker backend. Without one inbound audio is
// discarded.
func WithPlaybackClient(client AudioPlayback) ControllerOption {
	return func(c *Controller) { c.playback.set(client) }
}

// WithAudioClient wires one client as both capture and playback backend.
func WithAudioClient(client AudioClient) ControllerOption {
	return func(c *Controller) {
		c.capture.set(client)
		c.playback.set(client)
	}
}

// WithAPIKey sets the credential used when the controller builds the
// default live client. An ephemeral token name works here too.
func WithAPIKey(apiKey string) ControllerOption {
	return func(c *Controller) { c.apiKey = apiKey }
}

// WithModel overrides the live model. Empty keeps the provider default.
func WithModel(model string) ControllerOption {
	return func(c *Controller) { c.model = model }
}

// WithVoice selects the prebuilt voice for spoken replies. Empty keeps the
// provider default.
func WithVoice(voice string) ControllerOption {
	return func(c *Controller) { c.voice = voice }
}

// WithSystemInstruction sets the tutoring persona and ground rules sent at
// session setup.
func WithSystemInstruction(text string) ControllerOption {
	return func(c *Controller) { c.systemInstruction = text }
}

// WithTool registers an additional tool the model may call. Registration is
// closed after construction; later calls to unknown names get a generic
// "unknown function" response.
func WithTool(tool Tool) ControllerOption {
	return func(c *Controller) { c.tools.register(tool) }
}

// WithEventCallback registers a catch-all callback invoked for every event
// the controller emits, in emission order.
func WithEventCallback(callback func(event events.Event)) ControllerOption {
	return func(c *Controller) { c.callbackOptions.onEvent = callback }
}

// WithStateCallback registers a callback for connection state transitions.
func WithStateCallback(callback func(previous, current string)) ControllerOption {
	return func(c *Controller) { c.callbackOptions.onStateChanged = callback }
}

// WithErrorCallback registers a callback for surfaced session errors.
func WithErrorCallback(callback func(message string)) ControllerOption {
	return func(c *Controller) { c.callbackOptions.onError = callback }
}

// WithUserTranscriptCallback registers a callback for cumulative updates to
// the user's in-progress message.
func WithUserTranscriptCallback(callback func(messageID, text string)) ControllerOption {
	return func(c *Controller) { c.callbackOptions.onUserTranscriptUpdated = callback }
}

// WithAssistantTranscriptCallback registers a callback for cumulative
// updates to the assistant's in-progress message.
func WithAssistantTranscriptCallback(callback func(messageID, text string)) ControllerOption {
	return func(c *Controller) { c.callbackOptions.onAssistantTranscriptUpdated = callback }
}

// WithTurnCompletedCallback registers a callback fired when the current
// turn's messages finalize.
func WithTurnCompletedCallback(callback func()) ControllerOption {
	return func(c *Controller) { c.callbackOptions.onTurnCompleted = callback }
}

// WithSpeakingStateCallback registers a callback for tutor speech: true when
// playback starts, false when it finishes or is interrupted.
func WithSpeakingStateCallback(callback func(isSpeaking bool)) ControllerOption {
	return func(c *Controller) { c.callbackOptions.onSpeakingStateChanged = callback }
}

// WithVisualizationCallback registers a callback fired after a tool call
// changes the visualization; read Visualization for the full state.
func WithVisualizationCallback(callback func(mode string)) ControllerOption {
	return func(c *Controller) { c.callbackOptions.onVisualizationChanged = callback }
}
