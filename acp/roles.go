package acp

import (
	"context"
	"encoding/json"

	"github.com/vinayprograms/acpkit/jsonrpc"
)

// Agent is the set of methods an agent serves to its client.
type Agent interface {
	Initialize(ctx context.Context, params InitializeParams) (*InitializeResponse, error)
	Authenticate(ctx context.Context) error
	SendUserMessage(ctx context.Context, params SendUserMessageParams) error
	CancelSendMessage(ctx context.Context) error
}

// Client is the set of methods a client serves to its agent.
type Client interface {
	StreamAssistantMessageChunk(ctx context.Context, params StreamAssistantMessageChunkParams) error
	RequestToolCallConfirmation(ctx context.Context, params RequestToolCallConfirmationParams) (*RequestToolCallConfirmationResponse, error)
	PushToolCall(ctx context.Context, params PushToolCallParams) (*PushToolCallResponse, error)
	UpdateToolCall(ctx context.Context, params UpdateToolCallParams) error
}

// UnimplementedAgent answers every agent method with Method Not Found.
// Embed it to implement only part of Agent.
type UnimplementedAgent struct{}

func (UnimplementedAgent) Initialize(context.Context, InitializeParams) (*InitializeResponse, error) {
	return nil, jsonrpc.ErrMethodNotFound
}

func (UnimplementedAgent) Authenticate(context.Context) error {
	return jsonrpc.ErrMethodNotFound
}

func (UnimplementedAgent) SendUserMessage(context.Context, SendUserMessageParams) error {
	return jsonrpc.ErrMethodNotFound
}

func (UnimplementedAgent) CancelSendMessage(context.Context) error {
	return jsonrpc.ErrMethodNotFound
}

// UnimplementedClient answers every client method with Method Not Found.
// Embed it to implement only part of Client.
type UnimplementedClient struct{}

func (UnimplementedClient) StreamAssistantMessageChunk(context.Context, StreamAssistantMessageChunkParams) error {
	return jsonrpc.ErrMethodNotFound
}

func (UnimplementedClient) RequestToolCallConfirmation(context.Context, RequestToolCallConfirmationParams) (*RequestToolCallConfirmationResponse, error) {
	return nil, jsonrpc.ErrMethodNotFound
}

func (UnimplementedClient) PushToolCall(context.Context, PushToolCallParams) (*PushToolCallResponse, error) {
	return nil, jsonrpc.ErrMethodNotFound
}

func (UnimplementedClient) UpdateToolCall(context.Context, UpdateToolCallParams) error {
	return jsonrpc.ErrMethodNotFound
}

// delegateSlot holds the delegate a connection serves. The connection
// exists before its factory has produced the delegate, so handlers wait
// for bind before using it.
type delegateSlot[D any] struct {
	ready    chan struct{}
	delegate D
	present  bool
}

func newDelegateSlot[D any]() *delegateSlot[D] {
	return &delegateSlot[D]{ready: make(chan struct{})}
}

// bind publishes d to waiting handlers. A nil d answers every method with
// Method Not Found. bind must be called exactly once.
func (s *delegateSlot[D]) bind(d D) {
	s.delegate = d
	s.present = any(d) != nil
	close(s.ready)
}

func (s *delegateSlot[D]) get(ctx context.Context) (D, error) {
	var zero D
	select {
	case <-s.ready:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if !s.present {
		return zero, jsonrpc.ErrMethodNotFound
	}
	return s.delegate, nil
}

// agentRegistry serves the agent methods from the delegate in slot. A nil
// slot serves nothing.
func agentRegistry(slot *delegateSlot[Agent]) *jsonrpc.Registry {
	if slot == nil {
		return jsonrpc.NewRegistry(nil)
	}
	return jsonrpc.NewRegistry(map[string]jsonrpc.Handler{
		MethodInitialize:        typed(slot, Agent.Initialize),
		MethodAuthenticate:      noParams(slot, Agent.Authenticate),
		MethodSendUserMessage:   noResult(slot, Agent.SendUserMessage),
		MethodCancelSendMessage: noParams(slot, Agent.CancelSendMessage),
	})
}

// clientRegistry serves the client methods from the delegate in slot. A
// nil slot serves nothing.
func clientRegistry(slot *delegateSlot[Client]) *jsonrpc.Registry {
	if slot == nil {
		return jsonrpc.NewRegistry(nil)
	}
	return jsonrpc.NewRegistry(map[string]jsonrpc.Handler{
		MethodStreamAssistantMessageChunk: noResult(slot, Client.StreamAssistantMessageChunk),
		MethodRequestToolCallConfirmation: typed(slot, Client.RequestToolCallConfirmation),
		MethodPushToolCall:                typed(slot, Client.PushToolCall),
		MethodUpdateToolCall:              noResult(slot, Client.UpdateToolCall),
	})
}

func typed[D, P, R any](slot *delegateSlot[D], method func(D, context.Context, P) (R, error)) jsonrpc.Handler {
	return jsonrpc.Typed(func(ctx context.Context, params P) (R, error) {
		d, err := slot.get(ctx)
		if err != nil {
			var zero R
			return zero, err
		}
		return method(d, ctx, params)
	})
}

// noResult adapts a method whose response is null.
func noResult[D, P any](slot *delegateSlot[D], method func(D, context.Context, P) error) jsonrpc.Handler {
	return jsonrpc.Typed(func(ctx context.Context, params P) (interface{}, error) {
		d, err := slot.get(ctx)
		if err != nil {
			return nil, err
		}
		return nil, method(d, ctx, params)
	})
}

// noParams adapts a method whose params and response are null. Whatever
// params arrive are ignored.
func noParams[D any](slot *delegateSlot[D], method func(D, context.Context) error) jsonrpc.Handler {
	return func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		d, err := slot.get(ctx)
		if err != nil {
			return nil, err
		}
		return nil, method(d, ctx)
	}
}
