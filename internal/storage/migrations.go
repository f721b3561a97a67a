package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Migration is one reversible schema change.
type Migration struct {
	ID   string
	Up   func(m gorm.Migrator) error
	Down func(m gorm.Migrator) error
}

// SchemaMigration records an applied migration.
type SchemaMigration struct {
	ID        string `gorm:"primaryKey"`
	AppliedAt time.Time
}

// Table layouts as of the migration that creates them.
type categoriesTable struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title     string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (categoriesTable) TableName() string { return "categories" }

type transactionsTable struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Title      string           `gorm:"type:varchar(255);not null"`
	Type       string           `gorm:"type:varchar(16);not null"`
	Value      decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	CategoryID *uuid.UUID       `gorm:"type:uuid;index"`
	Category   *categoriesTable `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	CreatedAt  time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (transactionsTable) TableName() string { return "transactions" }

// Migrations lists every schema change in apply order.
var Migrations = []Migration{
	{
		ID: "1594060627625_create_categories",
		Up: func(m gorm.Migrator) error {
			return m.CreateTable(&categoriesTable{})
		},
		Down: func(m gorm.Migrator) error {
			return m.DropTable("categories")
		},
	},
	{
		ID: "1594060627626_create_transactions",
		Up: func(m gorm.Migrator) error {
			return m.CreateTable(&transactionsTable{})
		},
		Down: func(m gorm.Migrator) error {
			return m.DropTable("transactions")
		},
	},
}

// Migrate applies pending migrations in order and returns the ids it ran.
func (d *Database) Migrate(ctx context.Context) ([]string, error) {
	db := d.db.WithContext(ctx)
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return nil, fmt.Errorf("Migrate: schema_migrations: %w", err)
	}

	applied, err := d.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, mig := range Migrations {
		if applied[mig.ID] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx.Migrator()); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{ID: mig.ID, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return ran, fmt.Errorf("Migrate: %s: %w", mig.ID, err)
		}
		ran = append(ran, mig.ID)
	}
	return ran, nil
}

// Rollback reverts the most recently applied migration and returns its id.
// It returns an empty id when nothing has been applied.
func (d *Database) Rollback(ctx context.Context) (string, error) {
	if !d.db.WithContext(ctx).Migrator().HasTable(&SchemaMigration{}) {
		return "", nil
	}
	applied, err := d.appliedMigrations(ctx)
	if err != nil {
		return "", err
	}

	for i := len(Migrations) - 1; i >= 0; i-- {
		mig := Migrations[i]
		if !applied[mig.ID] {
			continue
		}
		err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := mig.Down(tx.Migrator()); err != nil {
				return err
			}
			return tx.Delete(&SchemaMigration{ID: mig.ID}).Error
		})
		if err != nil {
			return "", fmt.Errorf("Rollback: %s: %w", mig.ID, err)
		}
		return mig.ID, nil
	}
	return "", nil
}

func (d *Database) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	var rows []SchemaMigration
	if err := d.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("appliedMigrations: %w", err)
	}
	applied := make(map[string]bool, len(rows))
	for _, r := range rows {
		applied[r.ID] = true
	}
	return applied, nil
}
