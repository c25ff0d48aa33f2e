package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSStream carries records over NATS: each record written is published
// on one subject and records are read from a subscription on another. Two
// peers use the same pair of subjects with the roles swapped.
type NATSStream struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	publish  string
	ownsConn bool

	reader *messageReader
	writer *lineWriter

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for identification.
	Name string

	// Token for token-based auth.
	Token string

	// User and Password for basic auth.
	User     string
	Password string

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// MaxReconnects is the maximum number of reconnection attempts.
	// -1 = unlimited
	MaxReconnects int

	// ConnectTimeout for initial connection.
	ConnectTimeout time.Duration
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1, // Unlimited
		ConnectTimeout: 5 * time.Second,
	}
}

// DialNATS connects to a NATS server and opens a stream that publishes on
// publish and reads from subscribe. Closing the stream closes the
// connection.
func DialNATS(cfg NATSConfig, publish, subscribe string) (*NATSStream, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}

	conn, err := nats.Connect(cfg.URL, buildNATSOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	s, err := NewNATSStream(conn, publish, subscribe)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.ownsConn = true
	return s, nil
}

// NewNATSStream opens a stream over an existing connection. The connection
// stays open when the stream is closed.
func NewNATSStream(conn *nats.Conn, publish, subscribe string) (*NATSStream, error) {
	if err := validateSubject(publish); err != nil {
		return nil, err
	}
	if err := validateSubject(subscribe); err != nil {
		return nil, err
	}
	if conn.IsClosed() {
		return nil, ErrClosed
	}

	sub, err := conn.SubscribeSync(subscribe)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &NATSStream{
		conn:    conn,
		sub:     sub,
		publish: publish,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.reader = &messageReader{next: s.nextMessage}
	s.writer = &lineWriter{send: s.publishLine}
	return s, nil
}

// buildNATSOptions constructs NATS connection options from config.
func buildNATSOptions(cfg NATSConfig) []nats.Option {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}

	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	return opts
}

// validateSubject rejects subjects a stream cannot use. Wildcards are
// refused because a stream reads from exactly one peer.
func validateSubject(subject string) error {
	if subject == "" {
		return errors.New("nats: empty subject")
	}
	if strings.ContainsAny(subject, " \t\r\n*>") {
		return fmt.Errorf("nats: invalid subject %q", subject)
	}
	return nil
}

// Read yields received messages, each followed by a newline. It returns
// io.EOF once the stream is closed.
func (s *NATSStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// Write publishes every complete line in p as one message.
func (s *NATSStream) Write(p []byte) (int, error) {
	if s.ctx.Err() != nil {
		return 0, ErrClosed
	}
	return s.writer.Write(p)
}

// Close unsubscribes and, for streams opened with DialNATS, closes the
// connection after flushing published records.
func (s *NATSStream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.sub.Unsubscribe()
		if s.ownsConn {
			s.conn.Flush()
			s.conn.Close()
		}
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
			err = nil
		}
	})
	return err
}

func (s *NATSStream) nextMessage() ([]byte, error) {
	msg, err := s.sub.NextMsgWithContext(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil || errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("nats receive: %w", err)
	}
	return msg.Data, nil
}

func (s *NATSStream) publishLine(line []byte) error {
	if err := s.conn.Publish(s.publish, line); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
