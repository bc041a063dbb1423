package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alembiq/bunsen-core/core/realtime"
	"github.com/gorilla/websocket"
)

// newLiveTestServer starts a websocket server and returns a client dialed at it.
func newLiveTestServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) (*Client, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn, r)
	}))

	client := &Client{
		apiKey:       "test-key",
		liveEndpoint: "ws" + strings.TrimPrefix(server.URL, "http"),
	}
	return client, server.Close
}

func acceptSetup(conn *websocket.Conn) (clientMessage, error) {
	var message clientMessage
	if err := conn.ReadJSON(&message); err != nil {
		return clientMessage{}, err
	}
	return message, conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
}

func awaitMessage(t *testing.T, messages <-chan realtime.ServerMessage) realtime.ServerMessage {
	t.Helper()
	select {
	case message := <-messages:
		return message
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server message")
		return realtime.ServerMessage{}
	}
}

func awaitFrame(t *testing.T, frames <-chan map[string]any) map[string]any {
	t.Helper()
	select {
	case frame := <-frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client frame")
		return nil
	}
}

func TestConnectDeliversServerMessagesInOrder(t *testing.T) {
	setupFrames := make(chan clientMessage, 1)
	keys := make(chan string, 1)

	client, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		keys <- r.URL.Query().Get("key")

		setup, err := acceptSetup(conn)
		if err != nil {
			return
		}
		setupFrames <- setup

		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{
			"outputTranscription": map[string]any{"text": "Hel"},
		}})
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{
			"outputTranscription": map[string]any{"text": "lo"},
			"turnComplete":        true,
		}})
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second),
		)
	})
	defer closeServer()

	received := make(chan realtime.ServerMessage, 4)
	closed := make(chan struct{})
	session, err := client.Connect(context.Background(), realtime.SessionConfig{}, realtime.Callbacks{
		OnMessage: func(message realtime.ServerMessage) { received <- message },
		OnClose:   func(string) { close(closed) },
	})
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer session.Close()

	select {
	case key := <-keys:
		if key != "test-key" {
			t.Fatalf("expected api key query parameter, got %q", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
	}

	select {
	case setup := <-setupFrames:
		if setup.Setup == nil || setup.Setup.Model != DefaultModel {
			t.Fatalf("expected setup frame with default model, got %+v", setup.Setup)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for setup frame")
	}

	first := awaitMessage(t, received)
	if first.OutputTranscription != "Hel" || first.TurnComplete {
		t.Fatalf("expected first transcription fragment, got %+v", first)
	}
	second := awaitMessage(t, received)
	if second.OutputTranscription != "lo" || !second.TurnComplete {
		t.Fatalf("expected final fragment with turn complete, got %+v", second)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close callback")
	}
}

func TestConnectRejectsUnexpectedFirstMessage(t *testing.T) {
	client, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		var message clientMessage
		if err := conn.ReadJSON(&message); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{"turnComplete": true}})
	})
	defer closeServer()

	_, err := client.Connect(context.Background(), realtime.SessionConfig{}, realtime.Callbacks{})
	if err == nil {
		t.Fatal("expected connect to fail without setup acknowledgement")
	}
}

func TestSessionWritesRealtimeInputAndToolResponses(t *testing.T) {
	frames := make(chan map[string]any, 2)
	client, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		if _, err := acceptSetup(conn); err != nil {
			return
		}
		for range 2 {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	})
	defer closeServer()

	session, err := client.Connect(context.Background(), realtime.SessionConfig{}, realtime.Callbacks{})
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer session.Close()

	err = session.SendRealtimeInput(realtime.Blob{MIMEType: "audio/pcm;rate=16000", Data: "AAAA"})
	if err != nil {
		t.Fatalf("expected realtime input send to succeed, got %v", err)
	}
	err = session.SendToolResponses(realtime.FunctionResponse{
		ID:       "call-1",
		Name:     "update_simulation",
		Response: map[string]any{"success": true},
	})
	if err != nil {
		t.Fatalf("expected tool response send to succeed, got %v", err)
	}

	frame := awaitFrame(t, frames)
	input, ok := frame["realtimeInput"].(map[string]any)
	if !ok {
		t.Fatalf("expected realtimeInput frame, got %+v", frame)
	}
	chunks, _ := input["mediaChunks"].([]any)
	if len(chunks) != 1 {
		t.Fatalf("expected a single media chunk, got %+v", input["mediaChunks"])
	}
	chunk, _ := chunks[0].(map[string]any)
	if chunk["mimeType"] != "audio/pcm;rate=16000" || chunk["data"] != "AAAA" {
		t.Fatalf("expected tagged media chunk, got %+v", chunk)
	}

	frame = awaitFrame(t, frames)
	toolFrame, ok := frame["toolResponse"].(map[string]any)
	if !ok {
		t.Fatalf("expected toolResponse frame, got %+v", frame)
	}
	responses, _ := toolFrame["functionResponses"].([]any)
	if len(responses) != 1 {
		t.Fatalf("expected a single function response, got %+v", toolFrame["functionResponses"])
	}
	response, _ := responses[0].(map[string]any)
	if response["id"] != "call-1" || response["name"] != "update_simulation" {
		t.Fatalf("expected function response to carry call identity, got %+v", response)
	}
}

func TestSendTextCompletesTurn(t *testing.T) {
	frames := make(chan map[string]any, 1)
	client, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		if _, err := acceptSetup(conn); err != nil {
			return
		}
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		frames <- frame
	})
	defer closeServer()

	session, err := client.Connect(context.Background(), realtime.SessionConfig{}, realtime.Callbacks{})
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer session.Close()

	if err := session.SendText("What is activation energy?"); err != nil {
		t.Fatalf("expected text send to succeed, got %v", err)
	}

	frame := awaitFrame(t, frames)
	clientContent, ok := frame["clientContent"].(map[string]any)
	if !ok {
		t.Fatalf("expected clientContent frame, got %+v", frame)
	}
	if clientContent["turnComplete"] != true {
		t.Fatalf("expected text message to complete the turn, got %+v", clientContent)
	}
	turns, _ := clientContent["turns"].([]any)
	if len(turns) != 1 {
		t.Fatalf("expected a single turn, got %+v", clientContent["turns"])
	}
	turn, _ := turns[0].(map[string]any)
	if turn["role"] != "user" {
		t.Fatalf("expected user role, got %+v", turn)
	}
}

func TestSendAfterCloseReturnsErrSessionClosed(t *testing.T) {
	client, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		if _, err := acceptSetup(conn); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer closeServer()

	session, err := client.Connect(context.Background(), realtime.SessionConfig{}, realtime.Callbacks{})
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	if err := session.SendText("hello"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	// Closing again is a no-op.
	if err := session.Close(); err != nil {
		t.Fatalf("expected repeated close to succeed, got %v", err)
	}
}

func TestConnectRespectsContextCancellation(t *testing.T) {
	client, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		// Never acknowledge the setup so the handshake stalls.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer closeServer()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := client.Connect(ctx, realtime.SessionConfig{}, realtime.Callbacks{})
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected connect to fail once the context expired")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect to abort")
	}
}

func TestCreateEphemeralToken(t *testing.T) {
	headers := make(chan string, 1)
	requests := make(chan authTokenRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("x-goog-api-key")
		var request authTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		requests <- request
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "auth_tokens/abc123"})
	}))
	defer server.Close()

	client := &Client{apiKey: "test-key", authTokensURL: server.URL}

	token, err := client.CreateEphemeralToken(context.Background(), EphemeralTokenOptions{Uses: 1})
	if err != nil {
		t.Fatalf("expected token mint to succeed, got %v", err)
	}
	if token.Name != "auth_tokens/abc123" {
		t.Fatalf("expected token name to round trip, got %q", token.Name)
	}
	if header := <-headers; header != "test-key" {
		t.Fatalf("expected api key header, got %q", header)
	}
	if request := <-requests; request.Uses != 1 {
		t.Fatalf("expected a single-use token request, got %+v", request)
	}
}

func TestCreateEphemeralTokenRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	client := &Client{apiKey: "test-key", authTokensURL: server.URL}

	if _, err := client.CreateEphemeralToken(context.Background(), EphemeralTokenOptions{}); err == nil {
		t.Fatal("expected token mint to fail on non-OK status")
	}
}
