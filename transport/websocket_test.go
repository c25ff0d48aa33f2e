package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vinayprograms/acpkit/jsonrpc"
	"github.com/vinayprograms/acpkit/logging"
)

// --- Unit Tests ---

func TestWebSocketConfig_Defaults(t *testing.T) {
	cfg := DefaultWebSocketConfig()
	if cfg.MaxMessageSize != 1024*1024 {
		t.Errorf("MaxMessageSize = %d, want 1MB", cfg.MaxMessageSize)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
	}
	if cfg.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want 30s", cfg.PingInterval)
	}
}

// --- Integration Tests ---

// wsServer accepts one WebSocket connection and hands its stream out.
func wsServer(t *testing.T, cfg WebSocketConfig) (string, <-chan *WebSocketStream) {
	t.Helper()
	streams := make(chan *WebSocketStream, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := AcceptWebSocket(w, r, nil, cfg)
		if err != nil {
			t.Errorf("accept error: %v", err)
			return
		}
		streams <- s
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), streams
}

func TestWebSocketStream_OneMessagePerLine(t *testing.T) {
	url, streams := wsServer(t, DefaultWebSocketConfig())

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer client.Close()

	server := <-streams
	defer server.Close()

	if _, err := server.Write([]byte("{\"id\":0}\n{\"id\":1")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := server.Write([]byte("}\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{`{"id":0}`, `{"id":1}`} {
		kind, data, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		if kind != websocket.TextMessage || string(data) != want {
			t.Errorf("message = (%d, %q), want text %q", kind, data, want)
		}
	}
}

func TestWebSocketStream_ReadAppendsNewline(t *testing.T) {
	url, streams := wsServer(t, DefaultWebSocketConfig())

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer client.Close()

	server := <-streams
	defer server.Close()

	client.WriteMessage(websocket.TextMessage, []byte(`{"id":3,"result":true}`))

	line, err := bufio.NewReader(server).ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if line != `{"id":3,"result":true}`+"\n" {
		t.Errorf("line = %q", line)
	}
}

func TestWebSocketStream_PeerCloseIsEOF(t *testing.T) {
	url, streams := wsServer(t, DefaultWebSocketConfig())

	client, err := DialWebSocket(context.Background(), url, DefaultWebSocketConfig())
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	server := <-streams
	defer server.Close()

	client.Close()

	done := make(chan error, 1)
	go func() {
		_, err := server.Read(make([]byte, 16))
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Errorf("Read() after peer close = %v, want io.EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read() did not return after peer close")
	}

	if _, err := client.Write([]byte("late\n")); !errors.Is(err, ErrClosed) {
		t.Errorf("Write() after Close = %v, want ErrClosed", err)
	}
}

func TestWebSocketStream_JSONRPCRoundTrip(t *testing.T) {
	url, streams := wsServer(t, DefaultWebSocketConfig())

	clientStream, err := DialWebSocket(context.Background(), url, DefaultWebSocketConfig())
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	serverStream := <-streams

	quiet := jsonrpc.WithLogger(logging.Discard())
	server := jsonrpc.NewConn(serverStream, serverStream, jsonrpc.NewRegistry(map[string]jsonrpc.Handler{
		"upper": jsonrpc.Typed(func(ctx context.Context, s string) (string, error) {
			return strings.ToUpper(s), nil
		}),
	}), quiet)
	defer server.Close()

	client := jsonrpc.NewConn(clientStream, clientStream, nil, quiet)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got string
	if err := client.Call(ctx, "upper", "over websocket", &got); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "OVER WEBSOCKET" {
		t.Errorf("result = %q", got)
	}

	var raw json.RawMessage
	err = client.Call(ctx, "missing", nil, &raw)
	if !errors.Is(err, jsonrpc.ErrMethodNotFound) {
		t.Errorf("Call(missing) error = %v, want Method Not Found", err)
	}
}

func TestWebSocketStream_ReadLimit(t *testing.T) {
	cfg := DefaultWebSocketConfig()
	cfg.MaxMessageSize = 64
	url, streams := wsServer(t, cfg)

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer client.Close()

	server := <-streams
	defer server.Close()

	client.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 1000)))

	done := make(chan error, 1)
	go func() {
		_, err := server.Read(make([]byte, 16))
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil || errors.Is(err, io.EOF) {
			t.Errorf("Read() of oversized message = %v, want read limit error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read() did not fail")
	}
}
