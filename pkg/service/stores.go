package service

import (
	"context"

	"github.com/aurachat/aurachat/pkg/db"
	"github.com/aurachat/aurachat/pkg/upstream"
)

// The services consume persistence and the completion API through these
// interfaces; pkg/db and pkg/upstream provide the production
// implementations and tests substitute fakes.

// IdentityStore resolves and creates durable accounts.
type IdentityStore interface {
	FindByEmail(email string) (*db.User, error)
	Create(user *db.User) error
}

// ConversationStore persists conversations and their ordered messages.
type ConversationStore interface {
	FindLatest(userID string) (*db.Conversation, error)
	Create(userID, title string) (*db.Conversation, error)
	AppendMessage(conversationID, role, content string) (*db.Message, error)
	ListMessages(conversationID string) ([]db.Message, error)
	ListRecent(conversationID string, limit int) ([]db.Message, error)
	Touch(conversationID string) error
}

// InstructionStore persists account-scoped custom instructions.
type InstructionStore interface {
	List(userID string) ([]db.Instruction, error)
	Create(userID, text string) (*db.Instruction, error)
	Update(userID, id, text string) (*db.Instruction, error)
	Delete(userID, id string) error
}

// Completer is the upstream completion client surface the orchestrator
// needs.
type Completer interface {
	Complete(ctx context.Context, req upstream.Request) (upstream.Result, error)
}
