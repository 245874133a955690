package event

import (
	"time"

	"github.com/aurachat/aurachat/pkg/models"
)

// ========== Outbound payload fragments ==========

// MessagePayload is one history message inside an init event.
type MessagePayload struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationPayload is the active conversation inside an init event.
type ConversationPayload struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Messages []MessagePayload `json:"messages"`
}

// InstructionPayload is one saved instruction.
type InstructionPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ========== Outbound events ==========

// InitEvent pushes the connection's initial state. All fields are null for
// a guest.
type InitEvent struct {
	User         *models.UserInfo     `json:"user"`
	Conversation *ConversationPayload `json:"conversation"`
	Instructions []InstructionPayload `json:"instructions"`
}

func (InitEvent) EventName() string { return "init" }

// AuthResultEvent reports the outcome of credential validation.
type AuthResultEvent struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (AuthResultEvent) EventName() string { return "auth-result" }

// ThinkingEvent is a latency signal sent before the upstream call returns.
type ThinkingEvent struct {
	Message string `json:"message"`
}

func (ThinkingEvent) EventName() string { return "thinking" }

// TokenEvent delivers one word of a streamed response.
type TokenEvent struct {
	Token string `json:"token"`
}

func (TokenEvent) EventName() string { return "token" }

// DoneEvent terminates a token stream.
type DoneEvent struct {
	Success bool `json:"success"`
}

func (DoneEvent) EventName() string { return "done" }

// GuestQuotaEvent reports the guest's remaining daily prompts.
type GuestQuotaEvent struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

func (GuestQuotaEvent) EventName() string { return "guest-quota" }

// InstructionAddedEvent answers an add-instruction request.
type InstructionAddedEvent struct {
	Success     bool                `json:"success"`
	Instruction *InstructionPayload `json:"instruction,omitempty"`
	Message     string              `json:"message,omitempty"`
}

func (InstructionAddedEvent) EventName() string { return "instruction-added" }

// InstructionUpdatedEvent answers an edit-instruction request.
type InstructionUpdatedEvent struct {
	Success     bool                `json:"success"`
	Instruction *InstructionPayload `json:"instruction,omitempty"`
	Message     string              `json:"message,omitempty"`
}

func (InstructionUpdatedEvent) EventName() string { return "instruction-updated" }

// InstructionDeletedEvent answers a delete-instruction request.
type InstructionDeletedEvent struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

func (InstructionDeletedEvent) EventName() string { return "instruction-deleted" }
