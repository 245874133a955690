package service

import (
	"errors"
	"log/slog"

	"github.com/aurachat/aurachat/pkg/auth"
	"github.com/aurachat/aurachat/pkg/db"
	"github.com/aurachat/aurachat/pkg/event"
	"github.com/aurachat/aurachat/pkg/models"
	"github.com/aurachat/aurachat/pkg/quota"
)

// SessionService owns connection lifecycle: handshake authentication, the
// initial-state push, explicit re-authentication, and teardown. Credential
// failures downgrade the connection to guest; they never close the socket.
type SessionService struct {
	users     IdentityStore
	convs     ConversationStore
	instr     InstructionStore
	quota     *quota.Tracker
	streamer  *Streamer
	jwtSecret string
	logger    *slog.Logger
}

func NewSessionService(users IdentityStore, convs ConversationStore, instr InstructionStore,
	tracker *quota.Tracker, streamer *Streamer, jwtSecret string, logger *slog.Logger) *SessionService {
	return &SessionService{
		users:     users,
		convs:     convs,
		instr:     instr,
		quota:     tracker,
		streamer:  streamer,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// NewSession creates state for a freshly opened connection.
func (s *SessionService) NewSession() *models.SessionState {
	return models.NewSessionState()
}

// Connect performs the opportunistic handshake authentication and pushes
// the init event. An absent credential means guest; an invalid one means
// guest plus a failure notice.
func (s *SessionService) Connect(sess *models.SessionState, credential string, sink event.Sink) {
	if credential == "" {
		_ = sink.Emit(event.InitEvent{Instructions: []event.InstructionPayload{}})
		s.logger.Debug("guest connected (no credential)", "session", sess.ID)
		return
	}

	init, user, err := s.resolve(credential)
	if err != nil {
		s.logger.Warn("connection auth failed", "session", sess.ID, "error", err)
		_ = sink.Emit(event.InitEvent{Instructions: []event.InstructionPayload{}})
		_ = sink.Emit(event.AuthResultEvent{Success: false, Message: authFailureMessage(err)})
		return
	}

	sess.SetUser(user)
	_ = sink.Emit(*init)
	_ = sink.Emit(event.AuthResultEvent{Success: true})
	s.logger.Info("session connected", "session", sess.ID, "email", user.Email)
}

// Authenticate handles the explicit re-authenticate event, used when a
// credential becomes available only after the socket opened. It always
// answers with auth-result; success replaces the identity wholesale and
// re-pushes init.
func (s *SessionService) Authenticate(sess *models.SessionState, credential string, sink event.Sink) {
	if credential == "" {
		_ = sink.Emit(event.AuthResultEvent{Success: false, Message: "No credential provided"})
		return
	}

	init, user, err := s.resolve(credential)
	if err != nil {
		s.logger.Warn("authenticate failed", "session", sess.ID, "error", err)
		_ = sink.Emit(event.AuthResultEvent{Success: false, Message: authFailureMessage(err)})
		return
	}

	sess.SetUser(user)
	_ = sink.Emit(*init)
	_ = sink.Emit(event.AuthResultEvent{Success: true})
	s.logger.Info("session authenticated", "session", sess.ID, "email", user.Email)
}

// Disconnect releases connection-scoped state. No durable side effects.
func (s *SessionService) Disconnect(sess *models.SessionState) {
	s.streamer.CancelAll(sess.ID)
	s.quota.Release(sess.ID)
	s.logger.Debug("session disconnected", "session", sess.ID)
}

// resolve validates the credential, resolves or creates the account, and
// assembles the full init payload (active conversation with ordered
// messages, plus instructions).
func (s *SessionService) resolve(credential string) (*event.InitEvent, *models.UserInfo, error) {
	profile, err := auth.Verify(credential, s.jwtSecret)
	if err != nil {
		return nil, nil, err
	}

	account, err := s.users.FindByEmail(profile.Email)
	if errors.Is(err, db.ErrUserNotFound) {
		account = &db.User{
			Email:    profile.Email,
			Name:     profile.Name,
			Avatar:   profile.Avatar,
			Provider: profile.Provider,
		}
		if err := s.users.Create(account); err != nil {
			return nil, nil, err
		}
	} else if err != nil {
		return nil, nil, err
	}

	conv, err := findOrCreateConversation(s.convs, account.ID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.convs.ListMessages(conv.ID)
	if err != nil {
		return nil, nil, err
	}
	msgPayloads := make([]event.MessagePayload, 0, len(messages))
	for _, m := range messages {
		msgPayloads = append(msgPayloads, event.MessagePayload{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	instructions, err := s.instr.List(account.ID)
	if err != nil {
		return nil, nil, err
	}
	insPayloads := make([]event.InstructionPayload, 0, len(instructions))
	for _, ins := range instructions {
		insPayloads = append(insPayloads, event.InstructionPayload{ID: ins.ID, Text: ins.Text})
	}

	user := &models.UserInfo{
		ID:     account.ID,
		Email:  account.Email,
		Name:   account.Name,
		Avatar: account.Avatar,
	}

	init := &event.InitEvent{
		User: user,
		Conversation: &event.ConversationPayload{
			ID:       conv.ID,
			Title:    conv.Title,
			Messages: msgPayloads,
		},
		Instructions: insPayloads,
	}
	return init, user, nil
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "Credential expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "Invalid credential"
	default:
		return "Authentication failed"
	}
}
