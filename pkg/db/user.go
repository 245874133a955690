package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// User is a durable account identity resolved from a session credential.
type User struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	Email    string `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name     string `json:"name" gorm:"size:255"`
	Avatar   string `json:"avatar" gorm:"size:1024"`
	Provider string `json:"provider" gorm:"size:50"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (*User) TableName() string {
	return "users"
}

// UserStore provides lookup and creation of accounts.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(gdb *gorm.DB) *UserStore {
	return &UserStore{db: gdb}
}

// FindByEmail returns ErrUserNotFound when no account exists for the email.
func (s *UserStore) FindByEmail(email string) (*User, error) {
	var user User
	if err := s.db.First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a new account. An empty ID is assigned a fresh uuid.
func (s *UserStore) Create(user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	return s.db.Create(user).Error
}
