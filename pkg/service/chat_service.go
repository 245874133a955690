// Prompt orchestration: identity/quota branch, context assembly, the
// upstream call, persistence, and the token stream.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aurachat/aurachat/pkg/db"
	"github.com/aurachat/aurachat/pkg/event"
	"github.com/aurachat/aurachat/pkg/models"
	"github.com/aurachat/aurachat/pkg/quota"
	"github.com/aurachat/aurachat/pkg/upstream"
)

var (
	ErrEmptyPrompt = errors.New("empty prompt")
	ErrBusy        = errors.New("prompt already in flight")
)

// Client-visible notices. All failures surface as a single error token;
// none of them terminate the connection.
const (
	emptyPromptToken = "Error: Empty prompt"
	busyToken        = "Error: A response is already being generated"
	quotaToken       = "Error: Guest daily quota reached. Please sign in."
	upstreamToken    = "Error: Unable to fetch AI response"
	thinkingMessage  = "AI is thinking..."
	truncationNotice = "[Note: the response was shortened by the output limit.]"
)

// ChatService handles inbound prompts.
type ChatService struct {
	convs         ConversationStore
	instr         InstructionStore
	quota         *quota.Tracker
	completer     Completer
	streamer      *Streamer
	historyWindow int
	logger        *slog.Logger
}

func NewChatService(convs ConversationStore, instr InstructionStore, tracker *quota.Tracker,
	completer Completer, streamer *Streamer, historyWindow int, logger *slog.Logger) *ChatService {
	return &ChatService{
		convs:         convs,
		instr:         instr,
		quota:         tracker,
		completer:     completer,
		streamer:      streamer,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// HandlePrompt processes one send-prompt event. Overlapping prompts on the
// same connection are rejected, not queued; the in-flight marker clears
// when the stream's done event fires.
func (s *ChatService) HandlePrompt(ctx context.Context, sess *models.SessionState, text, mode string, sink event.Sink) {
	text = strings.TrimSpace(text)
	if text == "" {
		_ = sink.Emit(event.TokenEvent{Token: emptyPromptToken})
		return
	}

	if !sess.TryBeginPrompt() {
		_ = sink.Emit(event.TokenEvent{Token: busyToken})
		return
	}

	if user := sess.User(); user != nil {
		s.handleAccountPrompt(ctx, sess, user, text, mode, sink)
		return
	}
	s.handleGuestPrompt(ctx, sess, text, mode, sink)
}

// handleGuestPrompt enforces the daily quota, then completes with no
// instructions or history and no persistence.
func (s *ChatService) handleGuestPrompt(ctx context.Context, sess *models.SessionState, text, mode string, sink event.Sink) {
	allowed, _ := s.quota.CheckAndConsume(sess.ID)
	if !allowed {
		sess.EndPrompt()
		_ = sink.Emit(event.GuestQuotaEvent{Remaining: 0, Limit: s.quota.Limit()})
		_ = sink.Emit(event.TokenEvent{Token: quotaToken})
		return
	}

	_ = sink.Emit(event.ThinkingEvent{Message: thinkingMessage})

	res, err := s.completer.Complete(ctx, upstream.Request{Prompt: text, Mode: mode})
	if err != nil {
		s.failPrompt(sess, sink, "guest prompt failed", err)
		return
	}

	s.streamer.Stream(sess.ID, sink, streamText(res), sess.EndPrompt)
}

// handleAccountPrompt persists the user message, assembles instructions and
// recent history, completes, persists the reply, and streams.
func (s *ChatService) handleAccountPrompt(ctx context.Context, sess *models.SessionState, user *models.UserInfo, text, mode string, sink event.Sink) {
	conv, err := findOrCreateConversation(s.convs, user.ID)
	if err != nil {
		s.failPrompt(sess, sink, "resolve conversation failed", err)
		return
	}

	if _, err := s.convs.AppendMessage(conv.ID, db.RoleUser, text); err != nil {
		s.failPrompt(sess, sink, "persist user message failed", err)
		return
	}

	instructions, err := s.instr.List(user.ID)
	if err != nil {
		s.failPrompt(sess, sink, "load instructions failed", err)
		return
	}
	texts := make([]string, 0, len(instructions))
	for _, ins := range instructions {
		texts = append(texts, ins.Text)
	}

	// Includes the message just saved.
	recent, err := s.convs.ListRecent(conv.ID, s.historyWindow)
	if err != nil {
		s.failPrompt(sess, sink, "load history failed", err)
		return
	}
	history := make([]upstream.HistoryMessage, 0, len(recent))
	for _, m := range recent {
		history = append(history, upstream.HistoryMessage{Role: m.Role, Content: m.Content})
	}

	_ = sink.Emit(event.ThinkingEvent{Message: thinkingMessage})

	res, err := s.completer.Complete(ctx, upstream.Request{
		Prompt:       text,
		Mode:         mode,
		Instructions: texts,
		History:      history,
	})
	if err != nil {
		s.failPrompt(sess, sink, "completion failed", err)
		return
	}

	// A failed write must not cost the user the computed response: the text
	// streams regardless, and the failure is reported as an error token after
	// the stream's done event so it never interleaves with the tokens.
	var persistErr error
	if _, err := s.convs.AppendMessage(conv.ID, db.RoleAssistant, res.Text); err != nil {
		persistErr = err
	} else if err := s.convs.Touch(conv.ID); err != nil {
		s.logger.Warn("bump conversation timestamp failed", "conversation", conv.ID, "error", err)
	}

	s.streamer.Stream(sess.ID, sink, streamText(res), func() {
		if persistErr != nil {
			s.logger.Error("persist assistant message failed", "session", sess.ID, "error", persistErr)
			_ = sink.Emit(event.TokenEvent{Token: upstreamToken})
		}
		sess.EndPrompt()
	})
}

func (s *ChatService) failPrompt(sess *models.SessionState, sink event.Sink, msg string, err error) {
	sess.EndPrompt()
	s.logger.Error(msg, "session", sess.ID, "error", err)
	_ = sink.Emit(event.TokenEvent{Token: upstreamToken})
}

func streamText(res upstream.Result) string {
	if res.Truncated {
		return res.Text + "\n\n" + truncationNotice
	}
	return res.Text
}

// findOrCreateConversation resolves the account's active conversation, the
// most recently updated one, creating it lazily on first use. The read-
// then-create is intentionally untransacted; a duplicate under truly
// concurrent first prompts only starts a second thread of history.
func findOrCreateConversation(convs ConversationStore, userID string) (*db.Conversation, error) {
	conv, err := convs.FindLatest(userID)
	if errors.Is(err, db.ErrConversationNotFound) {
		return convs.Create(userID, db.DefaultConversationTitle)
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}
