package jsonrpc

import (
	"fmt"
	"strings"
	"time"

	"github.com/vinayprograms/acpkit/logging"
	"github.com/vinayprograms/acpkit/telemetry"
)

// DecodePolicy decides what a malformed inbound record does to the
// connection.
type DecodePolicy int

const (
	// DecodeFatal stops the receive loop on the first malformed record and
	// fails every pending call with the decode error.
	DecodeFatal DecodePolicy = iota

	// DecodeSkip logs and discards the malformed record and keeps reading.
	DecodeSkip
)

// String returns the config spelling of the policy.
func (p DecodePolicy) String() string {
	switch p {
	case DecodeSkip:
		return "skip"
	default:
		return "fatal"
	}
}

// ParseDecodePolicy parses the config spelling of a policy.
func ParseDecodePolicy(s string) (DecodePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fatal":
		return DecodeFatal, nil
	case "skip":
		return DecodeSkip, nil
	default:
		return DecodeFatal, fmt.Errorf("unknown decode policy %q (want fatal or skip)", s)
	}
}

// Option configures a Conn.
type Option func(*options)

type options struct {
	logger         *logging.Logger
	tracer         *telemetry.Tracer
	decodePolicy   DecodePolicy
	maxMessageSize int
	writeQueueSize int
	callTimeout    time.Duration
	middleware     []Middleware
	traceID        string
}

func defaultOptions() options {
	return options{
		decodePolicy:   DecodeFatal,
		maxMessageSize: DefaultMaxMessageSize,
		writeQueueSize: DefaultWriteQueueSize,
	}
}

// WithLogger sets the logger. Default: logging.New().
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer sets the tracer. Default: telemetry.GetTracer().
func WithTracer(t *telemetry.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithDecodePolicy sets the malformed record policy. Default: DecodeFatal.
func WithDecodePolicy(p DecodePolicy) Option {
	return func(o *options) { o.decodePolicy = p }
}

// WithMaxMessageSize bounds inbound records. n <= 0 removes the bound.
// Default: DefaultMaxMessageSize.
func WithMaxMessageSize(n int) Option {
	return func(o *options) { o.maxMessageSize = n }
}

// WithWriteQueueSize sets how many frames may wait for the writer.
// Default: DefaultWriteQueueSize.
func WithWriteQueueSize(n int) Option {
	return func(o *options) { o.writeQueueSize = n }
}

// WithCallTimeout bounds outbound calls whose context has no deadline.
// Zero waits forever. Default: 0.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

// WithMiddleware wraps every inbound handler, first listed outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.middleware = append(o.middleware, mw...) }
}

// WithTraceID sets the id attached to every log line of the connection.
// Default: a random UUID.
func WithTraceID(id string) Option {
	return func(o *options) { o.traceID = id }
}
