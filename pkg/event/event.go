// Package event defines the chat protocol's wire envelope and the typed
// events exchanged over a connection.
//
// Design principles:
// - Each outbound event type is a separate Go type for type safety
// - Events are serialized into a common WSMessage envelope
// - The Sink interface decouples services from the websocket transport
package event

import "encoding/json"

// Event is the interface all outbound event types implement.
type Event interface {
	// EventName returns the unique name for this event type (e.g., "token")
	EventName() string
}

// Sink receives outbound events for one connection. The websocket Conn
// implements it; tests substitute a recorder.
type Sink interface {
	Emit(ev Event) error
}

// WSMessage is the JSON envelope sent over the WebSocket.
type WSMessage struct {
	Event string         `json:"event"`          // Event name (e.g., "token")
	Data  map[string]any `json:"data,omitempty"` // Event-specific data
	TS    int64          `json:"ts"`             // Timestamp (Unix ms)
}

// InboundMessage is the envelope for client-to-server events.
type InboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound event names.
const (
	InboundSendPrompt        = "send-prompt"
	InboundAuthenticate      = "authenticate"
	InboundAddInstruction    = "add-instruction"
	InboundEditInstruction   = "edit-instruction"
	InboundDeleteInstruction = "delete-instruction"
)

// PromptPayload is the body of a send-prompt event.
type PromptPayload struct {
	Text string `json:"text"`
	Mode string `json:"mode,omitempty"`
}

// AuthenticatePayload carries a credential delivered after connect (e.g.
// obtained via a post-redirect side channel).
type AuthenticatePayload struct {
	Credential string `json:"credential"`
}

type AddInstructionPayload struct {
	Text string `json:"text"`
}

type EditInstructionPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type DeleteInstructionPayload struct {
	ID string `json:"id"`
}
