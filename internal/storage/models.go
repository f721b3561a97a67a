package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	Income  TransactionType = "income"
	Outcome TransactionType = "outcome"
)

// Valid reports whether t is income or outcome.
func (t TransactionType) Valid() bool {
	return t == Income || t == Outcome
}

// Category groups transactions. Title is the natural key used by imports.
type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title     string    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Transaction represents a stored financial transaction.
type Transaction struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Title      string          `gorm:"not null"`
	Type       TransactionType `gorm:"not null"`
	Value      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CategoryID *uuid.UUID      `gorm:"type:uuid;index"`
	Category   *Category
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
