package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/acpkit/logging"
	"github.com/vinayprograms/acpkit/telemetry"
)

// Conn is one endpoint of a bidirectional connection. It serves the
// methods in its registry to the peer and issues calls to the peer's
// methods over the same pair of streams.
type Conn struct {
	reader   io.Reader
	output   io.Writer
	decoder  *Decoder
	writer   *serialWriter
	pending  *pendingTable
	registry *Registry
	handle   Middleware
	opts     options
	logger   *logging.Logger
	tracer   *telemetry.Tracer

	// ctx is the parent of every dispatch and is cancelled at shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	inflight sync.WaitGroup
	done     chan struct{}
	once     sync.Once
	errMu    sync.Mutex
	err      error
}

// NewConn wires a connection over r and w and starts its receive loop. The
// loop runs until r ends, a fatal decode error occurs or Close is called.
// The connection can issue calls as soon as NewConn returns.
func NewConn(r io.Reader, w io.Writer, registry *Registry, opts ...Option) *Conn {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.New()
	}
	if o.tracer == nil {
		o.tracer = telemetry.GetTracer()
	}
	if o.traceID == "" {
		o.traceID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		reader:   r,
		output:   w,
		decoder:  NewDecoder(r, o.maxMessageSize),
		writer:   newSerialWriter(w, o.writeQueueSize),
		pending:  newPendingTable(),
		registry: registry,
		handle:   Chain(o.middleware...),
		opts:     o,
		logger:   o.logger.WithComponent("jsonrpc").WithTraceID(o.traceID),
		tracer:   o.tracer,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go c.receiveLoop()
	return c
}

// ID returns the trace id of the connection.
func (c *Conn) ID() string {
	return c.opts.traceID
}

// Done returns a channel that is closed when the connection has shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection shut down: io.EOF when the peer closed its
// stream, ErrClosed after Close, otherwise the read or decode error. It
// returns nil while the connection is open.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Pending reports how many outbound calls await a response.
func (c *Conn) Pending() int {
	return c.pending.len()
}

// Close shuts the connection down. Pending calls fail with ErrClosed, even
// those whose frame is stuck in a blocked write, and running handlers see
// their context cancelled. Streams that are an io.Closer are closed, the
// output first, which releases a blocked write and the receive loop.
func (c *Conn) Close() error {
	c.terminate(ErrClosed)

	var errs []error
	out, outCloses := c.output.(io.Closer)
	if outCloses {
		errs = append(errs, out.Close())
	}
	if in, ok := c.reader.(io.Closer); ok && !(outCloses && sameCloser(in, out)) {
		errs = append(errs, in.Close())
	}
	return errors.Join(errs...)
}

// sameCloser reports whether a and b are the same stream, as when one
// duplex stream is passed as both reader and writer.
func sameCloser(a, b io.Closer) bool {
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}

// Call issues method on the peer and waits for its response. params is
// marshaled as the request params; a non-nil result receives the decoded
// response result. A peer failure is returned as *Error.
//
// Cancelling ctx abandons the call: its pending entry is removed and a
// response arriving later is dropped.
func (c *Conn) Call(ctx context.Context, method string, params, result interface{}) error {
	if c.opts.callTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.callTimeout)
			defer cancel()
		}
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("jsonrpc: encode %s params: %w", method, err)
	}

	id, ch, err := c.pending.add()
	if err != nil {
		return err
	}

	ctx, span := c.tracer.StartCallSpan(ctx, method, id)
	c.logger.CallStart(method, id)
	start := time.Now()

	raw, err := c.roundTrip(ctx, id, ch, method, rawParams)
	if err == nil && result != nil {
		if uerr := json.Unmarshal(raw, result); uerr != nil {
			err = fmt.Errorf("jsonrpc: decode %s result: %w", method, uerr)
		}
	}

	c.logger.CallComplete(method, id, time.Since(start), err)
	spanOpts := telemetry.SpanOptions{ErrorCode: codeOf(err)}
	if c.tracer.Debug() {
		spanOpts.Params = string(rawParams)
		spanOpts.Result = string(raw)
	}
	c.tracer.EndCallSpan(span, spanOpts, err)
	return err
}

func (c *Conn) roundTrip(ctx context.Context, id int64, ch <-chan outcome, method string, params json.RawMessage) (json.RawMessage, error) {
	data, err := Encode(&Request{ID: id, Method: method, Params: params})
	if err != nil {
		c.pending.remove(id)
		return nil, fmt.Errorf("jsonrpc: encode %s request: %w", method, err)
	}

	if err := c.writer.submit(ctx, data); err != nil {
		c.pending.remove(id)
		return nil, fmt.Errorf("jsonrpc: write %s request: %w", method, err)
	}

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		c.pending.remove(id)
		return nil, ctx.Err()
	}
}

// receiveLoop decodes inbound records strictly in arrival order. Requests
// are served on their own goroutines so a slow handler never delays the
// next record; responses settle pending calls inline.
func (c *Conn) receiveLoop() {
	for {
		msg, err := c.decoder.Next()
		if err != nil {
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) && c.opts.decodePolicy == DecodeSkip {
				c.logger.FrameDropped(len(decodeErr.Line), decodeErr.Err)
				continue
			}
			c.stop(err)
			return
		}

		if msg.Request != nil {
			c.inflight.Add(1)
			go c.dispatch(msg.Request)
			continue
		}

		if !c.pending.complete(msg.Response) {
			c.logger.StaleResponse(msg.Response.ID)
		}
	}
}

// stop handles the end of the inbound stream. No response can arrive any
// more, so pending calls fail at once; running handlers may still answer
// before the writer shuts.
func (c *Conn) stop(cause error) {
	switch {
	case c.ctx.Err() != nil:
		// Closed locally; the read error is a consequence.
	case errors.Is(cause, io.EOF):
		c.logger.Info("peer_closed")
	default:
		c.logger.Error("receive_failed", map[string]interface{}{"error": cause.Error()})
	}
	c.pending.failAll(closedError(cause))
	c.inflight.Wait()
	c.terminate(cause)
}

func (c *Conn) terminate(cause error) {
	c.once.Do(func() {
		c.errMu.Lock()
		c.err = cause
		c.errMu.Unlock()

		// The writer shuts before handlers see cancellation, so nothing
		// they produce afterwards reaches the stream.
		c.writer.close()
		c.cancel()
		c.pending.failAll(closedError(cause))
		close(c.done)
	})
}

func closedError(cause error) error {
	if errors.Is(cause, ErrClosed) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrClosed, cause)
}

// dispatch serves one inbound request and writes its response.
func (c *Conn) dispatch(req *Request) {
	defer c.inflight.Done()

	ctx := withRequest(c.ctx, req.Method, req.ID)
	ctx, span := c.tracer.StartDispatchSpan(ctx, req.Method, req.ID)
	c.logger.Dispatch(req.Method, req.ID)
	start := time.Now()

	resp := c.serve(ctx, req)

	var err error
	code := 0
	if resp.Error != nil {
		err = resp.Error
		code = resp.Error.Code
	}
	c.logger.DispatchComplete(req.Method, req.ID, time.Since(start), code, err)
	spanOpts := telemetry.SpanOptions{ErrorCode: code}
	if c.tracer.Debug() {
		spanOpts.Params = string(req.Params)
		spanOpts.Result = string(resp.Result)
	}
	c.tracer.EndDispatchSpan(span, spanOpts, err)

	data, encErr := Encode(resp)
	if encErr != nil {
		// Response holds only RawMessage values already produced by
		// json.Marshal, so this is not expected to fail.
		c.logger.Error("response_encode_failed", map[string]interface{}{
			"id":    req.ID,
			"error": encErr.Error(),
		})
		return
	}
	if werr := c.writer.submit(context.Background(), data); werr != nil {
		c.logger.Warn("response_write_failed", map[string]interface{}{
			"method": req.Method,
			"id":     req.ID,
			"error":  werr.Error(),
		})
	}
}

// serve resolves and runs the handler for req. Unknown methods are answered
// without running anything.
func (c *Conn) serve(ctx context.Context, req *Request) (resp *Response) {
	h, ok := c.registry.Lookup(req.Method)
	if !ok {
		return &Response{ID: req.ID, Error: errorFrom(ErrMethodNotFound)}
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler_panic", map[string]interface{}{
				"method": req.Method,
				"panic":  fmt.Sprint(r),
			})
			resp = &Response{ID: req.ID, Error: Errorf(CodeInternalError, "panic: %v", r)}
		}
	}()

	value, err := c.handle(h)(ctx, req.Params)
	if err != nil {
		return &Response{ID: req.ID, Error: errorFrom(err)}
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return &Response{ID: req.ID, Error: Errorf(CodeInternalError, "encode result: %v", err)}
	}
	return &Response{ID: req.ID, Result: raw}
}
