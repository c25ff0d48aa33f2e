package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

type echoParams struct {
	Text string `json:"text"`
}

type echoResult struct {
	Echo string `json:"echo"`
}

func TestRegistry_LookupAndMethods(t *testing.T) {
	noop := func(ctx context.Context, params json.RawMessage) (interface{}, error) { return nil, nil }
	r := NewRegistry(map[string]Handler{
		"b_method": noop,
		"a_method": noop,
		"skipped":  nil,
	})

	if _, ok := r.Lookup("a_method"); !ok {
		t.Error("a_method should resolve")
	}
	if _, ok := r.Lookup("skipped"); ok {
		t.Error("nil handler should not be registered")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("unregistered method should not resolve")
	}

	want := []string{"a_method", "b_method"}
	if got := r.Methods(); !reflect.DeepEqual(got, want) {
		t.Errorf("Methods() = %v, want %v", got, want)
	}
}

func TestRegistry_CopiesInput(t *testing.T) {
	handlers := map[string]Handler{}
	r := NewRegistry(handlers)
	handlers["late"] = func(ctx context.Context, params json.RawMessage) (interface{}, error) { return nil, nil }

	if _, ok := r.Lookup("late"); ok {
		t.Error("registry should not observe later changes to the input map")
	}
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	if _, ok := r.Lookup("x"); ok {
		t.Error("nil registry should resolve nothing")
	}
	if m := r.Methods(); len(m) != 0 {
		t.Errorf("nil registry Methods() = %v", m)
	}
}

func TestTyped_DecodesParams(t *testing.T) {
	h := Typed(func(ctx context.Context, p echoParams) (echoResult, error) {
		return echoResult{Echo: p.Text}, nil
	})

	v, err := h(context.Background(), json.RawMessage(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if res, ok := v.(echoResult); !ok || res.Echo != "hi" {
		t.Errorf("result = %#v, want echo hi", v)
	}
}

func TestTyped_NullParamsIsZeroValue(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage("null")} {
		called := false
		h := Typed(func(ctx context.Context, p echoParams) (echoResult, error) {
			called = true
			if p.Text != "" {
				t.Errorf("expected zero params, got %+v", p)
			}
			return echoResult{}, nil
		})
		if _, err := h(context.Background(), raw); err != nil {
			t.Errorf("params %q: error = %v", raw, err)
		}
		if !called {
			t.Errorf("params %q: handler not called", raw)
		}
	}
}

func TestTyped_InvalidParams(t *testing.T) {
	called := false
	h := Typed(func(ctx context.Context, p echoParams) (echoResult, error) {
		called = true
		return echoResult{}, nil
	})

	_, err := h(context.Background(), json.RawMessage(`{"text":42}`))
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInvalidParams {
		t.Fatalf("error = %v, want code %d", err, CodeInvalidParams)
	}
	if called {
		t.Error("handler should not run with invalid params")
	}
}

func TestTyped_PassesErrorsThrough(t *testing.T) {
	want := NewError(418, "teapot")
	h := Typed(func(ctx context.Context, p echoParams) (*echoResult, error) {
		return nil, want
	})

	if _, err := h(context.Background(), nil); err != want {
		t.Errorf("error = %v, want %v", err, want)
	}
}
