package acp

// ProtocolVersion is the protocol revision described by the method tables.
const ProtocolVersion = "0.0.9"

// Wire names of the methods an agent serves.
const (
	MethodInitialize        = "initialize"
	MethodAuthenticate      = "authenticate"
	MethodSendUserMessage   = "send_user_message"
	MethodCancelSendMessage = "cancel_send_message"
)

// Wire names of the methods a client serves.
const (
	MethodStreamAssistantMessageChunk = "stream_assistant_message_chunk"
	MethodRequestToolCallConfirmation = "request_tool_call_confirmation"
	MethodPushToolCall                = "push_tool_call"
	MethodUpdateToolCall              = "update_tool_call"
)

// AgentMethods maps each agent wire name to the Agent method serving it.
var AgentMethods = map[string]string{
	MethodInitialize:        "Initialize",
	MethodAuthenticate:      "Authenticate",
	MethodSendUserMessage:   "SendUserMessage",
	MethodCancelSendMessage: "CancelSendMessage",
}

// ClientMethods maps each client wire name to the Client method serving it.
var ClientMethods = map[string]string{
	MethodStreamAssistantMessageChunk: "StreamAssistantMessageChunk",
	MethodRequestToolCallConfirmation: "RequestToolCallConfirmation",
	MethodPushToolCall:                "PushToolCall",
	MethodUpdateToolCall:              "UpdateToolCall",
}
