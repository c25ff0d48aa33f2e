package jsonrpc

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/time/rate"
)

// Error codes produced by the bundled middleware.
const (
	CodeRequestTimeout = 408
	CodeRateLimited    = 429
)

// Middleware wraps the handler serving an inbound request.
type Middleware func(next Handler) Handler

// Chain composes middlewares so the first one listed runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Timeout bounds how long a handler may run. The handler's context is
// cancelled at the deadline and the peer is answered with CodeRequestTimeout
// even if the handler has not returned yet.
func Timeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type result struct {
				value interface{}
				err   error
			}
			done := make(chan result, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						done <- result{err: Errorf(CodeInternalError, "panic: %v", p)}
					}
				}()
				v, err := next(ctx, params)
				done <- result{v, err}
			}()

			select {
			case r := <-done:
				return r.value, r.err
			case <-ctx.Done():
				return nil, NewError(CodeRequestTimeout, "request timed out")
			}
		}
	}
}

// RateLimit rejects inbound requests beyond r per second (with the given
// burst) using a token bucket shared by every method.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next Handler) Handler {
		return func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			if !limiter.Allow() {
				return nil, NewError(CodeRateLimited, "rate limit exceeded")
			}
			return next(ctx, params)
		}
	}
}

type requestKey struct{}

type requestInfo struct {
	method string
	id     int64
}

func withRequest(ctx context.Context, method string, id int64) context.Context {
	return context.WithValue(ctx, requestKey{}, requestInfo{method: method, id: id})
}

// RequestFromContext returns the method name and id of the inbound request
// a handler is serving.
func RequestFromContext(ctx context.Context) (method string, id int64, ok bool) {
	info, ok := ctx.Value(requestKey{}).(requestInfo)
	return info.method, info.id, ok
}
