package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrInstructionNotFound = errors.New("instruction not found")

// Instruction is a free-text custom instruction saved by an account. All of
// an account's instructions are folded into every future prompt, in creation
// order.
type Instruction struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	UserID string `json:"user_id" gorm:"index;size:36;not null"`
	Text   string `json:"text" gorm:"type:text;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (*Instruction) TableName() string {
	return "instructions"
}

// InstructionStore provides account-scoped instruction CRUD. Every method
// filters by the owning account so one account can never touch another's
// rows.
type InstructionStore struct {
	db *gorm.DB
}

func NewInstructionStore(gdb *gorm.DB) *InstructionStore {
	return &InstructionStore{db: gdb}
}

// List returns the account's instructions in creation order.
func (s *InstructionStore) List(userID string) ([]Instruction, error) {
	var instructions []Instruction
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&instructions).Error; err != nil {
		return nil, err
	}
	return instructions, nil
}

func (s *InstructionStore) Create(userID, text string) (*Instruction, error) {
	ins := &Instruction{
		ID:     uuid.New().String(),
		UserID: userID,
		Text:   text,
	}
	if err := s.db.Create(ins).Error; err != nil {
		return nil, err
	}
	return ins, nil
}

func (s *InstructionStore) Update(userID, id, text string) (*Instruction, error) {
	res := s.db.Model(&Instruction{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"text": text, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInstructionNotFound
	}

	var ins Instruction
	if err := s.db.First(&ins, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ins, nil
}

func (s *InstructionStore) Delete(userID, id string) error {
	res := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&Instruction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInstructionNotFound
	}
	return nil
}
