package types

import "encoding/json"

// TurnKind discriminates the two directions a conversation turn can take.
type TurnKind string

const (
	// TurnKindRequest carries customer input and recorded tool results.
	TurnKindRequest TurnKind = "request"
	// TurnKindResponse carries model output, including emitted tool calls.
	TurnKindResponse TurnKind = "response"
)

// PartKind discriminates the payload carried by a single turn part.
type PartKind string

const (
	PartKindUserPrompt PartKind = "user-prompt"
	PartKindText       PartKind = "text"
	PartKindToolCall   PartKind = "tool-call"
	PartKindToolReturn PartKind = "tool-return"
)

// Turn is one request or response unit in a conversation's ordered history.
// Turns are appended as a whole and never mutated individually.
type Turn struct {
	Kind  TurnKind   `json:"kind"`
	Parts []TurnPart `json:"parts"`
}

// TurnPart is a single typed fragment inside a turn.
type TurnPart struct {
	Kind       PartKind        `json:"part_kind"`
	Content    string          `json:"content,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
}

// HasToolReturn reports whether any part of the turn records a tool result.
func (t Turn) HasToolReturn() bool {
	for _, part := range t.Parts {
		if part.Kind == PartKindToolReturn {
			return true
		}
	}
	return false
}
