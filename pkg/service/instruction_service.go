package service

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/aurachat/aurachat/pkg/db"
	"github.com/aurachat/aurachat/pkg/event"
	"github.com/aurachat/aurachat/pkg/models"
)

const notAuthenticatedMessage = "Not authenticated"

// InstructionService handles the account-scoped instruction CRUD events.
// Guests get a failure reply; nothing here ever closes the connection.
type InstructionService struct {
	store  InstructionStore
	logger *slog.Logger
}

func NewInstructionService(store InstructionStore, logger *slog.Logger) *InstructionService {
	return &InstructionService{store: store, logger: logger}
}

func (s *InstructionService) Add(sess *models.SessionState, text string, sink event.Sink) {
	user := sess.User()
	if user == nil {
		_ = sink.Emit(event.InstructionAddedEvent{Success: false, Message: notAuthenticatedMessage})
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		_ = sink.Emit(event.InstructionAddedEvent{Success: false, Message: "Empty instruction"})
		return
	}

	created, err := s.store.Create(user.ID, text)
	if err != nil {
		s.logger.Error("add instruction failed", "session", sess.ID, "error", err)
		_ = sink.Emit(event.InstructionAddedEvent{Success: false, Message: "Create failed"})
		return
	}
	_ = sink.Emit(event.InstructionAddedEvent{
		Success:     true,
		Instruction: &event.InstructionPayload{ID: created.ID, Text: created.Text},
	})
}

func (s *InstructionService) Edit(sess *models.SessionState, id, text string, sink event.Sink) {
	user := sess.User()
	if user == nil {
		_ = sink.Emit(event.InstructionUpdatedEvent{Success: false, Message: notAuthenticatedMessage})
		return
	}

	updated, err := s.store.Update(user.ID, id, strings.TrimSpace(text))
	if err != nil {
		if !errors.Is(err, db.ErrInstructionNotFound) {
			s.logger.Error("edit instruction failed", "session", sess.ID, "error", err)
		}
		_ = sink.Emit(event.InstructionUpdatedEvent{Success: false, Message: "Update failed"})
		return
	}
	_ = sink.Emit(event.InstructionUpdatedEvent{
		Success:     true,
		Instruction: &event.InstructionPayload{ID: updated.ID, Text: updated.Text},
	})
}

func (s *InstructionService) Delete(sess *models.SessionState, id string, sink event.Sink) {
	user := sess.User()
	if user == nil {
		_ = sink.Emit(event.InstructionDeletedEvent{Success: false, Message: notAuthenticatedMessage})
		return
	}

	if err := s.store.Delete(user.ID, id); err != nil {
		if !errors.Is(err, db.ErrInstructionNotFound) {
			s.logger.Error("delete instruction failed", "session", sess.ID, "error", err)
		}
		_ = sink.Emit(event.InstructionDeletedEvent{Success: false, Message: "Delete failed"})
		return
	}
	_ = sink.Emit(event.InstructionDeletedEvent{Success: true, ID: id})
}
