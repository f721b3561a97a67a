package storage

import (
	"context"
	"fmt"
)

// SaveTransactions inserts transactions in one write. The Category
// association is not upserted; only CategoryID is written.
func (d *Database) SaveTransactions(ctx context.Context, transactions []Transaction) error {
	if len(transactions) == 0 {
		return nil
	}
	err := d.batched(ctx).Omit("Category").Create(&transactions).Error
	if err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}
	return nil
}

// ListTransactions returns all transactions with their category, newest first.
func (d *Database) ListTransactions(ctx context.Context) ([]Transaction, error) {
	var transactions []Transaction
	err := d.db.WithContext(ctx).Preload("Category").Order("created_at desc").Find(&transactions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}
