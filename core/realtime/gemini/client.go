// Package gemini implements a live session client for the Gemini Live
// API over WebSocket.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alembiq/bunsen-core/core/realtime"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	liveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the native audio dialog model used when the session
	// config does not name one.
	DefaultModel = "models/gemini-2.5-flash-preview-native-audio-dialog"
)

// ErrSessionClosed is returned by sends on a session that was closed.
var ErrSessionClosed = errors.New("session is closed")

// Client opens live sessions against the Gemini Live API.
type Client struct {
	apiKey string

	liveEndpoint  string
	authTokensURL string
}

func NewClient(opts ...ClientOption) (*Client, error) {
	options := clientOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	apiKey := options.apiKey
	if apiKey == "" {
		envKey, ok := os.LookupEnv("GEMINI_API_KEY")
		if !ok || envKey == "" {
			return nil, fmt.Errorf("gemini api key not found")
		}
		apiKey = envKey
	}

	return &Client{
		apiKey:        apiKey,
		liveEndpoint:  liveEndpoint,
		authTokensURL: authTokensURL,
	}, nil
}

// Connect dials the live endpoint, performs session setup and returns an
// open session. The context governs the handshake only; cancelling it
// afterwards does not close the session.
func (c *Client) Connect(ctx context.Context, config realtime.SessionConfig, callbacks realtime.Callbacks) (*Session, error) {
	ctx, span := tracer.Start(ctx, "connect live session")
	defer span.End()

	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	span.SetAttributes(attribute.String("request.model", model))
	var toolNames []string
	for _, tool := range config.Tools {
		toolNames = append(toolNames, tool.Name)
	}
	span.SetAttributes(attribute.StringSlice("request.available_tools", toolNames))

	endpoint, err := url.Parse(c.liveEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid live endpoint: %w", err)
	}
	queryParams := endpoint.Query()
	queryParams.Set("key", c.apiKey)
	endpoint.RawQuery = queryParams.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("failed to open socket connection to gemini (status %d): %w", resp.StatusCode, err)
		} else {
			err = fmt.Errorf("failed to open socket connection to gemini: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// The handshake below is blocking reads/writes on the socket, so tie
	// it to the caller's context by closing the socket on cancellation.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(clientMessage{Setup: newSetup(model, config)}); err != nil {
		_ = conn.Close()
		err = fmt.Errorf("failed to send session setup: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		err = fmt.Errorf("failed to read setup acknowledgement: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ack, err := decodeServerMessage(payload)
	if err != nil {
		_ = conn.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !ack.SetupComplete {
		_ = conn.Close()
		err := fmt.Errorf("expected setup acknowledgement as first message")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	session := &Session{
		conn:      conn,
		callbacks: callbacks,
		done:      make(chan struct{}),
	}

	if callbacks.OnOpen != nil {
		callbacks.OnOpen()
	}
	go session.readLoop()

	return session, nil
}

// Session is an open live session. Inbound messages are decoded and
// dispatched to the callbacks from a single read loop, preserving server
// order.
type Session struct {
	conn      *websocket.Conn
	callbacks realtime.Callbacks

	done chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

// SendRealtimeInput streams media chunks to the model.
func (s *Session) SendRealtimeInput(chunks ...realtime.Blob) error {
	if len(chunks) == 0 {
		return nil
	}

	input := &realtimeInput{MediaChunks: make([]inlineData, 0, len(chunks))}
	for _, chunk := range chunks {
		input.MediaChunks = append(input.MediaChunks, inlineData{
			MIMEType: chunk.MIMEType,
			Data:     chunk.Data,
		})
	}
	return s.sendMessage(clientMessage{RealtimeInput: input})
}

// SendText submits a typed user turn and marks it complete so the model
// responds immediately.
func (s *Session) SendText(text string) error {
	return s.sendMessage(clientMessage{ClientContent: &clientContent{
		Turns:        []content{{Role: "user", Parts: []part{{Text: text}}}},
		TurnComplete: true,
	}})
}

// SendToolResponses returns tool results to the model. All responses are
// delivered in a single message.
func (s *Session) SendToolResponses(responses ...realtime.FunctionResponse) error {
	if len(responses) == 0 {
		return nil
	}

	response := &toolResponse{FunctionResponses: make([]functionResponse, 0, len(responses))}
	for _, functionResp := range responses {
		response.FunctionResponses = append(response.FunctionResponses, functionResponse{
			ID:       functionResp.ID,
			Name:     functionResp.Name,
			Response: functionResp.Response,
		})
	}
	return s.sendMessage(clientMessage{ToolResponse: response})
}

func (s *Session) sendMessage(message clientMessage) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write to gemini session: %w", err)
	}
	return nil
}

// Close tears the session down and waits for the read loop to exit. It
// is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *Session) readLoop() {
	defer close(s.done)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			reason := ""
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				reason = closeErr.Text
			}

			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if s.callbacks.OnError != nil {
					s.callbacks.OnError(fmt.Errorf("failed to read from gemini session: %w", err))
				}
				if reason == "" {
					reason = err.Error()
				}
			}

			s.closed.Store(true)
			if s.callbacks.OnClose != nil {
				s.callbacks.OnClose(reason)
			}
			return
		}

		message, err := decodeServerMessage(payload)
		if err != nil {
			if s.callbacks.OnError != nil {
				s.callbacks.OnError(err)
			} else {
				logger.Warn("Failed to decode live session message", "error", err)
			}
			continue
		}

		if message.GoAway {
			logger.Info("Live session received go-away notice")
		}

		if s.callbacks.OnMessage != nil {
			s.callbacks.OnMessage(message)
		}
	}
}
