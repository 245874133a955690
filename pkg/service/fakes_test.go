package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aurachat/aurachat/pkg/db"
	"github.com/aurachat/aurachat/pkg/event"
	"github.com/aurachat/aurachat/pkg/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sinkRecorder captures emitted events in order.
type sinkRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *sinkRecorder) Emit(e event.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *sinkRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventName())
	}
	return out
}

func (r *sinkRecorder) tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if tok, ok := e.(event.TokenEvent); ok {
			out = append(out, tok.Token)
		}
	}
	return out
}

func (r *sinkRecorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// ========== In-memory stores ==========

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*db.User
	seq     int
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]*db.User)}
}

func (m *memUsers) FindByEmail(email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, db.ErrUserNotFound
}

func (m *memUsers) Create(user *db.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		m.seq++
		user.ID = fmt.Sprintf("user-%d", m.seq)
	}
	cp := *user
	m.byEmail[user.Email] = &cp
	return nil
}

type memConvs struct {
	mu       sync.Mutex
	convs    []*db.Conversation
	messages map[string][]db.Message
	seq      int
	touched  []string

	// When set, AppendMessage fails for the given role; touchErr fails Touch.
	appendFailRole string
	appendErr      error
	touchErr       error
}

func newMemConvs() *memConvs {
	return &memConvs{messages: make(map[string][]db.Message)}
}

func (m *memConvs) FindLatest(userID string) (*db.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *db.Conversation
	for _, c := range m.convs {
		if c.UserID != userID {
			continue
		}
		if latest == nil || c.UpdatedAt.After(latest.UpdatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, db.ErrConversationNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memConvs) Create(userID, title string) (*db.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c := &db.Conversation{
		ID:        fmt.Sprintf("conv-%d", m.seq),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.convs = append(m.convs, c)
	cp := *c
	return &cp, nil
}

func (m *memConvs) AppendMessage(conversationID, role, content string) (*db.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendFailRole != "" && role == m.appendFailRole {
		return nil, m.appendErr
	}
	m.seq++
	msg := db.Message{
		ID:             fmt.Sprintf("msg-%d", m.seq),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	return &msg, nil
}

func (m *memConvs) ListMessages(conversationID string) ([]db.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.Message(nil), m.messages[conversationID]...), nil
}

func (m *memConvs) ListRecent(conversationID string, limit int) ([]db.Message, error) {
	msgs, _ := m.ListMessages(conversationID)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *memConvs) Touch(conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.touchErr != nil {
		return m.touchErr
	}
	m.touched = append(m.touched, conversationID)
	for _, c := range m.convs {
		if c.ID == conversationID {
			c.UpdatedAt = time.Now()
		}
	}
	return nil
}

type memInstructions struct {
	mu     sync.Mutex
	byUser map[string][]db.Instruction
	seq    int
}

func newMemInstructions() *memInstructions {
	return &memInstructions{byUser: make(map[string][]db.Instruction)}
}

func (m *memInstructions) List(userID string) ([]db.Instruction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.Instruction(nil), m.byUser[userID]...), nil
}

func (m *memInstructions) Create(userID, text string) (*db.Instruction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ins := db.Instruction{ID: fmt.Sprintf("ins-%d", m.seq), UserID: userID, Text: text}
	m.byUser[userID] = append(m.byUser[userID], ins)
	return &ins, nil
}

func (m *memInstructions) Update(userID, id, text string) (*db.Instruction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ins := range m.byUser[userID] {
		if ins.ID == id {
			m.byUser[userID][i].Text = text
			cp := m.byUser[userID][i]
			return &cp, nil
		}
	}
	return nil, db.ErrInstructionNotFound
}

func (m *memInstructions) Delete(userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.byUser[userID]
	for i, ins := range list {
		if ins.ID == id {
			m.byUser[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return db.ErrInstructionNotFound
}

// fakeCompleter returns a scripted result and records every request.
type fakeCompleter struct {
	mu       sync.Mutex
	result   upstream.Result
	err      error
	requests []upstream.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req upstream.Request) (upstream.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return upstream.Result{}, f.err
	}
	return f.result, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
