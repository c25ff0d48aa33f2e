package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
)

// Handler serves one inbound method. params is passed through exactly as
// received; the returned value is marshaled into the response result.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Registry maps wire-level method names to handlers. It is built once and
// never mutated, so lookups need no locking.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry copies handlers into an immutable registry. Nil handlers are
// left out, which makes their methods answer Method Not Found.
func NewRegistry(handlers map[string]Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for method, h := range handlers {
		if h != nil {
			r.handlers[method] = h
		}
	}
	return r
}

// Lookup resolves a wire-level method name.
func (r *Registry) Lookup(method string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[method]
	return h, ok
}

// Methods returns the served method names in sorted order.
func (r *Registry) Methods() []string {
	if r == nil {
		return nil
	}
	methods := make([]string, 0, len(r.handlers))
	for m := range r.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Typed adapts a function over concrete param and result types into a
// Handler. Absent or null params decode to the zero value of P; params that
// do not fit P are answered with CodeInvalidParams.
func Typed[P, R any](fn func(ctx context.Context, params P) (R, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var params P
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, Errorf(CodeInvalidParams, "Invalid params: %v", err)
			}
		}
		return fn(ctx, params)
	}
}
