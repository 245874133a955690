package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultConversationTitle names the lazily created active conversation.
const DefaultConversationTitle = "Main conversation"

// Conversation groups messages for one account. The account's "active"
// conversation is the most recently updated one.
type Conversation struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	UserID string `json:"user_id" gorm:"index;size:36;not null"`
	Title  string `json:"title" gorm:"size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (*Conversation) TableName() string {
	return "conversations"
}

// Message is one immutable conversational turn. History ordering is by
// CreatedAt ascending.
type Message struct {
	ID             string `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string `json:"conversation_id" gorm:"index;size:36;not null"`
	Role           string `json:"role" gorm:"size:20;not null"` // user, assistant
	Content        string `json:"content" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

func (*Message) TableName() string {
	return "messages"
}

// ConversationStore provides conversation and message persistence.
type ConversationStore struct {
	db *gorm.DB
}

func NewConversationStore(gdb *gorm.DB) *ConversationStore {
	return &ConversationStore{db: gdb}
}

// FindLatest returns the account's most recently updated conversation, or
// ErrConversationNotFound when the account has none.
func (s *ConversationStore) FindLatest(userID string) (*Conversation, error) {
	var conv Conversation
	err := s.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// Create starts a new conversation for the account.
func (s *ConversationStore) Create(userID, title string) (*Conversation, error) {
	if title == "" {
		title = DefaultConversationTitle
	}
	conv := &Conversation{
		ID:     uuid.New().String(),
		UserID: userID,
		Title:  title,
	}
	if err := s.db.Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// AppendMessage stores a new message at the end of the conversation.
func (s *ConversationStore) AppendMessage(conversationID, role, content string) (*Message, error) {
	msg := &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	if err := s.db.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// ListMessages returns the full history in creation order.
func (s *ConversationStore) ListMessages(conversationID string) ([]Message, error) {
	var messages []Message
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// ListRecent returns the last limit messages in creation order.
func (s *ConversationStore) ListRecent(conversationID string, limit int) ([]Message, error) {
	messages, err := s.ListMessages(conversationID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// Touch bumps the conversation's update timestamp after a completed
// exchange.
func (s *ConversationStore) Touch(conversationID string) error {
	return s.db.Model(&Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now()).Error
}
