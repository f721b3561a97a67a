package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLite caps a statement at 32766 bound variables; a Transaction row binds 8.
const (
	createBatchSize = 500
	lookupChunkSize = 1000
)

type Database struct {
	db *gorm.DB
}

// NewDatabase opens the store and applies any pending migrations.
func NewDatabase(ctx context.Context, driver, dsn string) (*Database, error) {
	d, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return d, nil
}

// Open connects to the store for driver ("sqlite" or "postgres") without
// touching the schema.
func Open(driver, dsn string) (*Database, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	return sqlDB.Close()
}

// batched splits multi-row inserts into createBatchSize statements, run in
// one database transaction.
func (d *Database) batched(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx).Session(&gorm.Session{CreateBatchSize: createBatchSize})
}
