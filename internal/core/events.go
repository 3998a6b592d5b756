package core

import "github.com/yanmxa/gencode/internal/message"

// EventType names a point in the turn event taxonomy. Order of emission
// within a step follows: UserSubmitted, deltas, tool call events, approval
// events, tool results, Usage, then TurnComplete at the end of the turn.
type EventType string

const (
	EventUserSubmitted         EventType = "UserSubmitted"
	EventSystemInjected        EventType = "SystemInjected"
	EventThinkingDelta         EventType = "ThinkingDelta"
	EventTextDelta             EventType = "TextDelta"
	EventToolCallStart         EventType = "ToolCallStart"
	EventToolCallArgsDelta     EventType = "ToolCallArgsDelta"
	EventToolCallEnd           EventType = "ToolCallEnd"
	EventApprovalRequest       EventType = "ApprovalRequest"
	EventApprovalResolved      EventType = "ApprovalResolved"
	EventToolResultDelta       EventType = "ToolResultDelta"
	EventToolResult            EventType = "ToolResult"
	EventUsage                 EventType = "Usage"
	EventRetrying              EventType = "Retrying"
	EventRoutedModel           EventType = "RoutedModel"
	EventCompactContext        EventType = "CompactContext"
	EventSubAgentSpawned       EventType = "SubAgentSpawned"
	EventSubAgentStatusChanged EventType = "SubAgentStatusChanged"
	EventSubAgentCompleted     EventType = "SubAgentCompleted"
	EventTurnComplete          EventType = "TurnComplete"
)

// Event is one entry in the outbound turn event stream.
type Event struct {
	Type       EventType
	Text       string
	ToolCall   *message.ToolCall
	ToolResult *message.ToolResult
	Usage      *message.Usage
	Attempt    int
	Model      string
	Reason     string
	AgentID    string
	Err        error
}
