// Package transport provides the byte streams a jsonrpc connection runs
// over.
//
// # Overview
//
// A connection needs an input stream and an output stream carrying
// newline-delimited JSON records. This package obtains them from common
// backends and adapts message-oriented backends to that framing:
//
//   - Stdio: stdin/stdout of the current process (editor-spawned agents)
//   - Pipe: an in-memory duplex pair (tests, in-process agent and client)
//   - WebSocketStream: one record per WebSocket text message
//   - NATSStream: one record per NATS message on a pair of subjects
//
// # Usage
//
// Every backend yields a Stream that is passed as both reader and writer:
//
//	stream, err := transport.DialWebSocket(ctx, "ws://localhost:8080/acp", transport.DefaultWebSocketConfig())
//	if err != nil {
//	    return err
//	}
//	agent := acp.NewAgentConnection(newClient, stream, stream)
//	defer agent.Close()
//
// # Framing
//
// Message-oriented streams send each complete line written to them as one
// message without its newline, and yield each received message followed by
// a newline. Partial lines are held until their newline arrives.
package transport
