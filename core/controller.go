package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alembiq/bunsen-core/core/audio"
	"github.com/alembiq/bunsen-core/core/events"
	"github.com/alembiq/bunsen-core/core/realtime"
	"github.com/alembiq/bunsen-core/core/realtime/gemini"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotConnected is returned by operations that need an open live session.
var ErrNotConnected = errors.New("session is not connected")

// Controller owns one live tutoring session at a time: the protocol stream,
// the audio device halves, and the stores fed by inbound traffic. All
// methods are safe for concurrent use.
//
// Contract: callbacks run on the controller's internal goroutines and must
// return promptly. A callback that needs Connect, Disconnect, or Close has
// to call it from its own goroutine.
type Controller struct {
	mu        sync.Mutex
	state     ConnectionState
	lastError error
	session   *liveSession

	realtimeClient    RealtimeClient
	apiKey            string
	model             string
	voice             string
	systemInstruction string

	capture  captureDevice
	playback playbackDevice

	pipeline      *capturePipeline
	scheduler     *playbackScheduler
	transcript    *transcript
	visualization *visualizationStore
	tools         *toolDispatcher

	callbackOptions callbackOptions
	emitEvent       eventEmitter

	closeOnce sync.Once
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		state:         StateDisconnected,
		pipeline:      newCapturePipeline(),
		transcript:    newTranscript(),
		visualization: newVisualizationStore(),
		emitEvent:     noopEventEmitter,
	}
	c.scheduler = newPlaybackScheduler(&c.playback)
	c.tools = newToolDispatcher(builtinTools(c)...)

	for _, opt := range opts {
		opt(c)
	}

	c.emitEvent = panicSafeEmitter(newCallbackEventEmitter(c.callbackOptions))
	c.pipeline.emitEvent = c.emitEvent
	c.scheduler.emitEvent = c.emitEvent
	c.tools.emitEvent = c.emitEvent

	return c
}

// liveSession ties one protocol stream to the guards its callbacks need.
type liveSession struct {
	id          string
	baseContext context.Context

	// stream is assigned once the dial resolves; ready is closed right
	// after, so the read pump can wait for the handle instead of racing
	// the tail of Connect.
	stream RealtimeSession
	ready  chan struct{}

	// closing marks the session as shutting down so its own teardown does
	// not echo back through the close/error callbacks.
	closing  atomic.Bool
	teardown sync.Once
}

func newLiveSession(ctx context.Context) *liveSession {
	return &liveSession{
		id:          uuid.NewString(),
		baseContext: ctx,
		ready:       make(chan struct{}),
	}
}

// Connect opens a live session: it tears down any previous session, claims
// the microphone, dials the live protocol, and starts forwarding capture
// frames once the model acknowledges setup. Any failure on this path rolls
// everything back, moves the controller to the error state, and retains the
// failure for LastError.
//
// ctx governs the dial and stays the base context for tool execution during
// the session's lifetime.
func (c *Controller) Connect(ctx context.Context) error {
	sess := newLiveSession(ctx)

	ctx, span := tracer.Start(ctx, "connect live session")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sess.id))

	c.Disconnect()

	c.mu.Lock()
	previous := c.state
	c.state = StateConnecting
	c.lastError = nil
	c.session = sess
	c.mu.Unlock()
	c.emitEvent(events.NewSessionStateChanged(previous.String(), StateConnecting.String()))

	client, err := c.liveClient()
	if err != nil {
		return c.failConnect(span, sess, "configure live client", err)
	}

	if err := c.capture.start(ctx, c.pipeline.push); err != nil {
		return c.failConnect(span, sess, "acquire capture device", err)
	}

	stream, err := client.Connect(ctx, c.sessionConfig(), c.sessionCallbacks(sess))
	if err != nil {
		return c.failConnect(span, sess, "open live session", err)
	}

	c.mu.Lock()
	aborted := sess.closing.Load()
	if !aborted {
		sess.stream = stream
		c.state = StateConnected
		c.pipeline.bind(c.capture.encoding().SampleRate, func(frame realtime.Blob) error {
			return stream.SendRealtimeInput(frame)
		})
		c.scheduler.reset()
	}
	c.mu.Unlock()
	close(sess.ready)

	if aborted {
		// Disconnected while the dial was in flight; the fresh stream is
		// ours to dispose of.
		_ = stream.Close()
		return fmt.Errorf("connect aborted: session was disconnected")
	}

	c.emitEvent(events.NewSessionStateChanged(StateConnecting.String(), StateConnected.String()))
	logger.Info("Live session opened", "session_id", sess.id)
	return nil
}

func (c *Controller) failConnect(span trace.Span, sess *liveSession, stage string, err error) error {
	wrapped := fmt.Errorf("failed to %s: %w", stage, err)
	span.RecordError(wrapped)
	span.SetStatus(codes.Error, wrapped.Error())

	c.teardownSession(sess)

	c.mu.Lock()
	previous := c.state
	c.state = StateError
	c.lastError = wrapped
	c.mu.Unlock()

	if previous != StateError {
		c.emitEvent(events.NewSessionStateChanged(previous.String(), StateError.String()))
	}
	c.emitEvent(events.NewSessionError(stage, wrapped.Error()))
	logger.Error("Live session connect failed", "stage", stage, "error", err)
	return wrapped
}

// liveClient returns the configured realtime client, building the default
// Gemini client on first use.
func (c *Controller) liveClient() (RealtimeClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.realtimeClient != nil {
		return c.realtimeClient, nil
	}

	clientOpts := []gemini.ClientOption{}
	if c.apiKey != "" {
		clientOpts = append(clientOpts, gemini.WithAPIKey(c.apiKey))
	}
	client, err := gemini.NewClient(clientOpts...)
	if err != nil {
		return nil, err
	}

	c.realtimeClient = RealtimeClientFunc(func(ctx context.Context, config realtime.SessionConfig, callbacks realtime.Callbacks) (RealtimeSession, error) {
		return client.Connect(ctx, config, callbacks)
	})
	return c.realtimeClient, nil
}

func (c *Controller) sessionConfig() realtime.SessionConfig {
	return realtime.SessionConfig{
		Model:             c.model,
		SystemInstruction: c.systemInstruction,
		Voice:             c.voice,
		Tools:             c.tools.declarations(),
	}
}

func (c *Controller) sessionCallbacks(sess *liveSession) realtime.Callbacks {
	return realtime.Callbacks{
		OnMessage: func(message realtime.ServerMessage) {
			if sess.closing.Load() {
				return
			}
			c.handleServerMessage(sess, message)
		},
		OnError: func(err error) {
			if sess.closing.Load() {
				return
			}
			c.handleSessionError(sess, err)
		},
		OnClose: func(reason string) {
			if sess.closing.Load() {
				return
			}
			c.handleSessionClose(sess, reason)
		},
	}
}

// handleServerMessage routes one inbound message. The protocol's fields are
// mutually non-exclusive, so every present field is handled, in a fixed
// order, on the session's read pump.
func (c *Controller) handleServerMessage(sess *liveSession, message realtime.ServerMessage) {
	if len(message.ToolCalls) > 0 {
		c.dispatchToolCalls(sess, message.ToolCalls)
	}

	if message.InputTranscription != "" {
		record := c.transcript.appendDelta(SpeakerUser, message.InputTranscription)
		c.emitEvent(events.NewUserTranscriptUpdated(record.ID, record.Text))
	}

	if message.OutputTranscription != "" {
		record := c.transcript.appendDelta(SpeakerModel, message.OutputTranscription)
		c.emitEvent(events.NewAssistantTranscriptUpdated(record.ID, record.Text))
	}

	for _, chunk := range message.Audio {
		samples, err := audio.DecodeFrame(chunk.Data)
		if err != nil {
			logger.Warn("Skipping undecodable audio chunk", "error", err, "session_id", sess.id)
			continue
		}
		if _, err := c.scheduler.schedule(samples, c.playback.encoding().SampleRate); err != nil {
			logger.Warn("Failed to schedule audio chunk", "error", err, "session_id", sess.id)
		}
	}

	if message.TurnComplete {
		c.transcript.completeTurn()
		c.emitEvent(events.NewTranscriptTurnCompleted())
	}

	if message.Interrupted {
		c.scheduler.interrupt()
	}
}

// dispatchToolCalls executes a batch and sends all responses in one reply.
func (c *Controller) dispatchToolCalls(sess *liveSession, calls []realtime.FunctionCall) {
	responses := c.tools.dispatch(sess.baseContext, calls)

	<-sess.ready
	if sess.stream == nil || sess.closing.Load() {
		logger.Warn("Discarding tool responses, session is closing", "session_id", sess.id)
		return
	}
	if err := sess.stream.SendToolResponses(responses...); err != nil {
		logger.Warn("Failed to send tool responses", "error", err, "session_id", sess.id)
	}
}

// handleSessionError runs on the session's read pump. Teardown is handed
// off to its own goroutine because closing the stream waits for the pump to
// exit.
func (c *Controller) handleSessionError(sess *liveSession, err error) {
	sess.closing.Store(true)

	wrapped := fmt.Errorf("live session error: %w", err)
	c.mu.Lock()
	current := c.session
	previous := c.state
	if current == sess {
		c.state = StateError
		c.lastError = wrapped
	}
	c.mu.Unlock()
	if current != sess {
		return
	}

	if previous != StateError {
		c.emitEvent(events.NewSessionStateChanged(previous.String(), StateError.String()))
	}
	c.emitEvent(events.NewSessionError("session", wrapped.Error()))
	logger.Error("Live session failed", "error", err, "session_id", sess.id)

	go c.teardownSession(sess)
}

// handleSessionClose handles the server ending the session, which by
// contract is an error-free disconnect.
func (c *Controller) handleSessionClose(sess *liveSession, reason string) {
	sess.closing.Store(true)

	c.mu.Lock()
	current := c.session
	previous := c.state
	if current == sess {
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	if current != sess {
		return
	}

	logger.Info("Live session closed by server", "reason", reason, "session_id", sess.id)
	if previous != StateDisconnected {
		c.emitEvent(events.NewSessionStateChanged(previous.String(), StateDisconnected.String()))
	}

	go c.teardownSession(sess)
}

// teardownSession releases everything tied to one live session: capture
// forwarding, the stream itself, scheduled playback, and the turn buffers.
// It runs at most once per session and is safe from any goroutine except
// the session's own read pump.
func (c *Controller) teardownSession(sess *liveSession) {
	sess.teardown.Do(func() {
		sess.closing.Store(true)

		c.pipeline.unbind()
		c.capture.stop()

		c.mu.Lock()
		stream := sess.stream
		c.mu.Unlock()
		if stream != nil {
			if err := stream.Close(); err != nil {
				logger.Warn("Failed to close live stream", "error", err, "session_id", sess.id)
			}
		}

		c.scheduler.interrupt()
		c.transcript.clearTurn()

		c.mu.Lock()
		if c.session == sess {
			c.session = nil
		}
		c.mu.Unlock()
	})
}

// Disconnect ends the live session and releases its per-session resources.
// It is idempotent and callable from any state, including while a connect
// attempt is still in flight.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	sess := c.session
	previous := c.state
	c.state = StateDisconnected
	c.mu.Unlock()

	if sess != nil {
		c.teardownSession(sess)
	}

	if previous != StateDisconnected {
		c.emitEvent(events.NewSessionStateChanged(previous.String(), StateDisconnected.String()))
	}
}

// Close disconnects and releases the audio device handles. The controller
// is not usable afterwards.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.Disconnect()

		if err := c.capture.close(); err != nil {
			logger.Warn("Failed to close capture device", "error", err)
		}
		// One client can serve as both halves; closing the capture side
		// already released it.
		if any(c.playback.client) == any(c.capture.client) {
			return
		}
		if err := c.playback.close(); err != nil {
			logger.Warn("Failed to close playback device", "error", err)
		}
	})
}

// State reports the connection state.
func (c *Controller) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent session failure. It survives the
// error-to-disconnected transition and clears when a new connect starts.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Transcript returns the conversation so far, ordered by message creation.
func (c *Controller) Transcript() []Message {
	return c.transcript.Snapshot()
}

// Visualization returns the current visualization state.
func (c *Controller) Visualization() VisualizationState {
	return c.visualization.Snapshot()
}

// SetMuted pauses or resumes microphone forwarding without releasing the
// capture device. Frames produced while muted are dropped, never queued.
func (c *Controller) SetMuted(muted bool) {
	c.pipeline.setMuted(muted)
}

// Muted reports whether microphone forwarding is paused.
func (c *Controller) Muted() bool {
	return c.pipeline.isMuted()
}

// DroppedFrames reports how many capture chunks were discarded because the
// outbound stream was unavailable or the microphone was muted.
func (c *Controller) DroppedFrames() int64 {
	return c.pipeline.droppedCount()
}

// SendText submits a typed message into the live turn.
func (c *Controller) SendText(text string) error {
	stream, err := c.currentStream()
	if err != nil {
		return err
	}
	if err := stream.SendText(text); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

// SendSnapshot attaches out-of-band media to the session, e.g. an image of
// the student's canvas. Data is raw bytes and is base64-encoded for the
// wire.
func (c *Controller) SendSnapshot(mimeType string, data []byte) error {
	stream, err := c.currentStream()
	if err != nil {
		return err
	}
	chunk := realtime.Blob{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}
	if err := stream.SendRealtimeInput(chunk); err != nil {
		return fmt.Errorf("failed to send snapshot: %w", err)
	}
	return nil
}

func (c *Controller) currentStream() (RealtimeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.session == nil || c.session.stream == nil {
		return nil, ErrNotConnected
	}
	return c.session.stream, nil
}
