package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NgigiN/ledger/internal/storage"
)

func openTestDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.NewDatabase(context.Background(), "sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestImportIntoSQLite(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewService(db, db)

	content := "title,type,value,category\n" +
		"Groceries,outcome,150.00,Food\n" +
		"Salary,income,3000.00,Work\n"

	if _, err := svc.Import(ctx, writeCSV(t, content)); err != nil {
		t.Fatalf("first import: %v", err)
	}
	// Same titles again: categories are reused, transactions are not deduplicated.
	second, err := svc.Import(ctx, writeCSV(t, content))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}

	categories, err := db.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("got %d categories, want 2", len(categories))
	}
	ids := map[string]string{}
	for _, c := range categories {
		ids[c.Title] = c.ID.String()
	}

	transactions, err := db.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(transactions) != 4 {
		t.Fatalf("got %d transactions, want 4", len(transactions))
	}
	for _, tx := range transactions {
		if tx.Category == nil {
			t.Fatalf("transaction %q has no category", tx.Title)
		}
	}
	for _, tx := range second {
		if tx.CategoryID.String() != ids[tx.Category.Title] {
			t.Errorf("transaction %q linked to %s, want %s", tx.Title, tx.CategoryID, ids[tx.Category.Title])
		}
	}
}

func TestImportLargeFileIntoSQLite(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	const rows = 6000
	var b strings.Builder
	b.WriteString("title,type,value,category\n")
	for i := 0; i < rows; i++ {
		// 1500 distinct categories, each used four times.
		fmt.Fprintf(&b, "t%d,outcome,1.00,Cat%d\n", i, i%1500)
	}

	got, err := NewService(db, db).Import(ctx, writeCSV(t, b.String()))
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if len(got) != rows {
		t.Fatalf("got %d transactions, want %d", len(got), rows)
	}

	stored, err := db.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(stored) != rows {
		t.Errorf("stored %d transactions, want %d", len(stored), rows)
	}
	categories, err := db.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(categories) != 1500 {
		t.Errorf("stored %d categories, want 1500", len(categories))
	}
}
