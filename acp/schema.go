package acp

// ToolCallID identifies a tool call pushed by the agent. The client
// allocates it in its PushToolCall response.
type ToolCallID int64

// Icon names the glyph a client shows next to a tool call.
type Icon string

// Icons understood by clients.
const (
	IconFileSearch Icon = "fileSearch"
	IconFolder     Icon = "folder"
	IconGlobe      Icon = "globe"
	IconHammer     Icon = "hammer"
	IconLightBulb  Icon = "lightBulb"
	IconPencil     Icon = "pencil"
	IconRegex      Icon = "regex"
	IconTerminal   Icon = "terminal"
)

// ToolCallStatus is the lifecycle state of a tool call.
type ToolCallStatus string

const (
	ToolCallRunning  ToolCallStatus = "running"
	ToolCallFinished ToolCallStatus = "finished"
	ToolCallError    ToolCallStatus = "error"
)

// ConfirmationOutcome is the user's answer to a tool call confirmation.
type ConfirmationOutcome string

const (
	OutcomeAllow                ConfirmationOutcome = "allow"
	OutcomeAlwaysAllow          ConfirmationOutcome = "alwaysAllow"
	OutcomeAlwaysAllowMCPServer ConfirmationOutcome = "alwaysAllowMcpServer"
	OutcomeAlwaysAllowTool      ConfirmationOutcome = "alwaysAllowTool"
	OutcomeReject               ConfirmationOutcome = "reject"
	OutcomeCancel               ConfirmationOutcome = "cancel"
)

// InitializeParams opens the session. The client states the protocol
// version it speaks.
type InitializeParams struct {
	ProtocolVersion string `json:"protocolVersion,omitempty"`
}

// InitializeResponse reports the agent's version and whether the user
// still has to authenticate.
type InitializeResponse struct {
	ProtocolVersion string `json:"protocolVersion,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// UserMessageChunk is either text or a path the user referenced.
type UserMessageChunk struct {
	Text string `json:"text,omitempty"`
	Path string `json:"path,omitempty"`
}

// SendUserMessageParams carries one user turn.
type SendUserMessageParams struct {
	Chunks []UserMessageChunk `json:"chunks"`
}

// AssistantMessageChunk is a piece of the agent's reply: visible text or
// reasoning.
type AssistantMessageChunk struct {
	Text    string `json:"text,omitempty"`
	Thought string `json:"thought,omitempty"`
}

// StreamAssistantMessageChunkParams streams one reply chunk to the client.
type StreamAssistantMessageChunkParams struct {
	Chunk AssistantMessageChunk `json:"chunk"`
}

// ToolCallContent is what a client renders for a tool call. Type is
// "markdown" or "diff".
type ToolCallContent struct {
	Type     string `json:"type"`
	Markdown string `json:"markdown,omitempty"`
	Path     string `json:"path,omitempty"`
	OldText  string `json:"oldText,omitempty"`
	NewText  string `json:"newText,omitempty"`
}

// MarkdownContent builds markdown tool call content.
func MarkdownContent(markdown string) *ToolCallContent {
	return &ToolCallContent{Type: "markdown", Markdown: markdown}
}

// DiffContent builds diff tool call content for a file edit.
func DiffContent(path, oldText, newText string) *ToolCallContent {
	return &ToolCallContent{Type: "diff", Path: path, OldText: oldText, NewText: newText}
}

// ToolCallLocation points at a file the tool call touches.
type ToolCallLocation struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// ToolCallConfirmation describes what the user is asked to approve. Type
// is one of "edit", "execute", "mcp", "fetch" or "other"; the remaining
// fields apply to the matching type.
type ToolCallConfirmation struct {
	Type            string   `json:"type"`
	Description     string   `json:"description,omitempty"`
	Command         string   `json:"command,omitempty"`
	RootCommand     string   `json:"rootCommand,omitempty"`
	ServerName      string   `json:"serverName,omitempty"`
	ToolName        string   `json:"toolName,omitempty"`
	ToolDisplayName string   `json:"toolDisplayName,omitempty"`
	URLs            []string `json:"urls,omitempty"`
}

// RequestToolCallConfirmationParams asks the user to approve a tool call.
type RequestToolCallConfirmationParams struct {
	Label        string               `json:"label"`
	Icon         Icon                 `json:"icon"`
	Confirmation ToolCallConfirmation `json:"confirmation"`
	Content      *ToolCallContent     `json:"content,omitempty"`
	Locations    []ToolCallLocation   `json:"locations,omitempty"`
}

// RequestToolCallConfirmationResponse is the user's decision.
type RequestToolCallConfirmationResponse struct {
	ID      ToolCallID          `json:"id"`
	Outcome ConfirmationOutcome `json:"outcome"`
}

// PushToolCallParams announces a tool call that needs no confirmation.
type PushToolCallParams struct {
	Label     string             `json:"label"`
	Icon      Icon               `json:"icon"`
	Content   *ToolCallContent   `json:"content,omitempty"`
	Locations []ToolCallLocation `json:"locations,omitempty"`
}

// PushToolCallResponse returns the id the client assigned.
type PushToolCallResponse struct {
	ID ToolCallID `json:"id"`
}

// UpdateToolCallParams moves a tool call to a new status.
type UpdateToolCallParams struct {
	ToolCallID ToolCallID       `json:"toolCallId"`
	Status     ToolCallStatus   `json:"status"`
	Content    *ToolCallContent `json:"content"`
}
