package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketStream carries records over a WebSocket connection, one text
// message per record.
type WebSocketStream struct {
	conn   *websocket.Conn
	config WebSocketConfig
	reader *messageReader
	writer *lineWriter

	done chan struct{}
	once sync.Once
}

// WebSocketConfig holds WebSocket stream configuration.
type WebSocketConfig struct {
	// WriteTimeout for write operations (0 = no timeout).
	WriteTimeout time.Duration

	// MaxMessageSize limits incoming message size.
	MaxMessageSize int64

	// PingInterval for keepalive pings (0 = disabled).
	PingInterval time.Duration
}

// DefaultWebSocketConfig returns configuration with sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1024 * 1024, // 1MB
		PingInterval:   30 * time.Second,
	}
}

// NewWebSocketStream wraps an established connection. The stream owns conn
// from here on.
func NewWebSocketStream(conn *websocket.Conn, cfg WebSocketConfig) *WebSocketStream {
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	s := &WebSocketStream{
		conn:   conn,
		config: cfg,
		done:   make(chan struct{}),
	}
	s.reader = &messageReader{next: s.readMessage}
	s.writer = &lineWriter{send: s.writeMessage}

	if cfg.PingInterval > 0 {
		go s.pingLoop()
	}
	return s
}

// DialWebSocket connects to a WebSocket endpoint.
func DialWebSocket(ctx context.Context, url string, cfg WebSocketConfig) (*WebSocketStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	return NewWebSocketStream(conn, cfg), nil
}

// NewWebSocketUpgrader creates an upgrader for accepting WebSocket connections.
func NewWebSocketUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // Override in production
	}
}

// AcceptWebSocket upgrades an HTTP request and wraps the connection.
func AcceptWebSocket(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader, cfg WebSocketConfig) (*WebSocketStream, error) {
	if upgrader == nil {
		upgrader = NewWebSocketUpgrader()
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	return NewWebSocketStream(conn, cfg), nil
}

// Read yields received messages, each followed by a newline. It returns
// io.EOF once the peer closes normally or the stream is closed.
func (s *WebSocketStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// Write sends every complete line in p as one text message.
func (s *WebSocketStream) Write(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, ErrClosed
	default:
	}
	return s.writer.Write(p)
}

// Close sends a close frame and closes the connection.
func (s *WebSocketStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = s.conn.Close()
	})
	return err
}

func (s *WebSocketStream) readMessage() ([]byte, error) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return nil, io.EOF
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, io.EOF
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// writeMessage is called with the line writer's lock held, which keeps
// gorilla's single-writer rule.
func (s *WebSocketStream) writeMessage(line []byte) error {
	if s.config.WriteTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, line)
}

// pingLoop sends keepalive pings until the stream closes.
func (s *WebSocketStream) pingLoop() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
