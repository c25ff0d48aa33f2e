// Package acp implements the Agent Client Protocol roles on top of a
// jsonrpc connection. An AgentConnection is what client-side code uses to
// talk to an agent; a ClientConnection is the agent side's view of its
// client. Both serve the local delegate's methods over the same streams.
package acp

import (
	"context"
	"io"

	"github.com/vinayprograms/acpkit/jsonrpc"
)

// AgentConnection calls an agent and serves client methods to it. It
// implements Agent.
type AgentConnection struct {
	conn *jsonrpc.Conn
}

// NewAgentConnection starts serving the client returned by newClient on r
// and w. newClient receives the connection, already able to call the
// agent, so the client can call back into it. Requests arriving before
// newClient returns wait for the client. A nil newClient serves nothing.
func NewAgentConnection(newClient func(*AgentConnection) Client, w io.Writer, r io.Reader, opts ...jsonrpc.Option) *AgentConnection {
	var slot *delegateSlot[Client]
	if newClient != nil {
		slot = newDelegateSlot[Client]()
	}
	c := &AgentConnection{conn: jsonrpc.NewConn(r, w, clientRegistry(slot), opts...)}
	if slot != nil {
		slot.bind(newClient(c))
	}
	return c
}

// Initialize calls the agent's initialize method.
func (c *AgentConnection) Initialize(ctx context.Context, params InitializeParams) (*InitializeResponse, error) {
	return call[InitializeResponse](ctx, c.conn, MethodInitialize, params)
}

// Authenticate calls the agent's authenticate method.
func (c *AgentConnection) Authenticate(ctx context.Context) error {
	return c.conn.Call(ctx, MethodAuthenticate, nil, nil)
}

// SendUserMessage calls the agent's send_user_message method. It returns
// when the agent has finished the turn.
func (c *AgentConnection) SendUserMessage(ctx context.Context, params SendUserMessageParams) error {
	return c.conn.Call(ctx, MethodSendUserMessage, params, nil)
}

// CancelSendMessage calls the agent's cancel_send_message method.
func (c *AgentConnection) CancelSendMessage(ctx context.Context) error {
	return c.conn.Call(ctx, MethodCancelSendMessage, nil, nil)
}

// Conn returns the underlying connection.
func (c *AgentConnection) Conn() *jsonrpc.Conn { return c.conn }

// Done is closed when the connection shuts down.
func (c *AgentConnection) Done() <-chan struct{} { return c.conn.Done() }

// Err reports why the connection shut down.
func (c *AgentConnection) Err() error { return c.conn.Err() }

// Close shuts the connection down.
func (c *AgentConnection) Close() error { return c.conn.Close() }

// ClientConnection calls a client and serves agent methods to it. It
// implements Client.
type ClientConnection struct {
	conn *jsonrpc.Conn
}

// NewClientConnection starts serving the agent returned by newAgent on r
// and w. newAgent receives the connection, already able to call the
// client. Requests arriving before newAgent returns wait for the agent. A
// nil newAgent serves nothing.
func NewClientConnection(newAgent func(*ClientConnection) Agent, w io.Writer, r io.Reader, opts ...jsonrpc.Option) *ClientConnection {
	var slot *delegateSlot[Agent]
	if newAgent != nil {
		slot = newDelegateSlot[Agent]()
	}
	c := &ClientConnection{conn: jsonrpc.NewConn(r, w, agentRegistry(slot), opts...)}
	if slot != nil {
		slot.bind(newAgent(c))
	}
	return c
}

// StreamAssistantMessageChunk calls the client's
// stream_assistant_message_chunk method.
func (c *ClientConnection) StreamAssistantMessageChunk(ctx context.Context, params StreamAssistantMessageChunkParams) error {
	return c.conn.Call(ctx, MethodStreamAssistantMessageChunk, params, nil)
}

// RequestToolCallConfirmation calls the client's
// request_tool_call_confirmation method.
func (c *ClientConnection) RequestToolCallConfirmation(ctx context.Context, params RequestToolCallConfirmationParams) (*RequestToolCallConfirmationResponse, error) {
	return call[RequestToolCallConfirmationResponse](ctx, c.conn, MethodRequestToolCallConfirmation, params)
}

// PushToolCall calls the client's push_tool_call method.
func (c *ClientConnection) PushToolCall(ctx context.Context, params PushToolCallParams) (*PushToolCallResponse, error) {
	return call[PushToolCallResponse](ctx, c.conn, MethodPushToolCall, params)
}

// UpdateToolCall calls the client's update_tool_call method.
func (c *ClientConnection) UpdateToolCall(ctx context.Context, params UpdateToolCallParams) error {
	return c.conn.Call(ctx, MethodUpdateToolCall, params, nil)
}

// Conn returns the underlying connection.
func (c *ClientConnection) Conn() *jsonrpc.Conn { return c.conn }

// Done is closed when the connection shuts down.
func (c *ClientConnection) Done() <-chan struct{} { return c.conn.Done() }

// Err reports why the connection shut down.
func (c *ClientConnection) Err() error { return c.conn.Err() }

// Close shuts the connection down.
func (c *ClientConnection) Close() error { return c.conn.Close() }

func call[R any](ctx context.Context, conn *jsonrpc.Conn, method string, params interface{}) (*R, error) {
	var res R
	if err := conn.Call(ctx, method, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

var (
	_ Agent  = (*AgentConnection)(nil)
	_ Client = (*ClientConnection)(nil)
	_ Agent  = UnimplementedAgent{}
	_ Client = UnimplementedClient{}
)
