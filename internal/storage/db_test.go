package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

// testDB opens a migrated sqlite database in a temp dir.
func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabaseUnknownDriver(t *testing.T) {
	if _, err := NewDatabase(context.Background(), "oracle", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFindCategoriesByTitles(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	categories := db.NewCategories([]string{"Food", "Work", "Rent"})
	if err := db.SaveCategories(ctx, categories); err != nil {
		t.Fatalf("SaveCategories: %v", err)
	}
	for _, c := range categories {
		if c.ID.String() == "00000000-0000-0000-0000-000000000000" || c.CreatedAt.IsZero() {
			t.Fatalf("category %q not populated after save: %+v", c.Title, c)
		}
	}

	found, err := db.FindCategoriesByTitles(ctx, []string{"Food", "Rent", "food", "Food"})
	if err != nil {
		t.Fatalf("FindCategoriesByTitles: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("found %d categories, want 2", len(found))
	}

	none, err := db.FindCategoriesByTitles(ctx, nil)
	if err != nil || len(none) != 0 {
		t.Fatalf("empty lookup = %v, %v", none, err)
	}
}

func TestSaveTransactionsAndSummary(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	categories := db.NewCategories([]string{"Food", "Work"})
	if err := db.SaveCategories(ctx, categories); err != nil {
		t.Fatalf("SaveCategories: %v", err)
	}
	food, work := categories[0], categories[1]

	transactions := []Transaction{
		{Title: "Groceries", Type: Outcome, Value: decimal.RequireFromString("150.25"), CategoryID: &food.ID, Category: &food},
		{Title: "Lunch", Type: Outcome, Value: decimal.RequireFromString("20"), CategoryID: &food.ID},
		{Title: "Salary", Type: Income, Value: decimal.RequireFromString("3000"), CategoryID: &work.ID},
		{Title: "Cash", Type: Income, Value: decimal.RequireFromString("5")},
	}
	if err := db.SaveTransactions(ctx, transactions); err != nil {
		t.Fatalf("SaveTransactions: %v", err)
	}

	stored, err := db.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(stored) != 4 {
		t.Fatalf("got %d transactions, want 4", len(stored))
	}

	summary, err := db.CategorySummary(ctx)
	if err != nil {
		t.Fatalf("CategorySummary: %v", err)
	}
	if len(summary) != 3 {
		t.Fatalf("got %d summary rows, want 3", len(summary))
	}
	// Sorted by title: uncategorised first.
	if summary[0].Title != "" || !summary[0].Income.Equal(decimal.NewFromInt(5)) {
		t.Errorf("uncategorised totals = %+v", summary[0])
	}
	if summary[1].Title != "Food" || !summary[1].Outcome.Equal(decimal.RequireFromString("170.25")) {
		t.Errorf("food totals = %+v", summary[1])
	}
	if !summary[2].Balance().Equal(decimal.NewFromInt(3000)) {
		t.Errorf("work balance = %s, want 3000", summary[2].Balance())
	}
}

func TestLargeBatches(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	const n = 5000
	titles := make([]string, 0, 2*n)
	for i := 0; i < n; i++ {
		titles = append(titles, fmt.Sprintf("c%d", i))
	}
	categories := db.NewCategories(titles)
	if err := db.SaveCategories(ctx, categories); err != nil {
		t.Fatalf("SaveCategories: %v", err)
	}

	// Every title twice: lookups are deduplicated and chunked.
	titles = append(titles, titles...)
	found, err := db.FindCategoriesByTitles(ctx, titles)
	if err != nil {
		t.Fatalf("FindCategoriesByTitles: %v", err)
	}
	if len(found) != n {
		t.Fatalf("found %d categories, want %d", len(found), n)
	}

	transactions := make([]Transaction, 0, n)
	for i := range categories {
		transactions = append(transactions, Transaction{
			Title:      fmt.Sprintf("t%d", i),
			Type:       Outcome,
			Value:      decimal.RequireFromString("1.00"),
			CategoryID: &categories[i].ID,
		})
	}
	if err := db.SaveTransactions(ctx, transactions); err != nil {
		t.Fatalf("SaveTransactions: %v", err)
	}

	var count int64
	if err := db.db.Model(&Transaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != n {
		t.Errorf("stored %d transactions, want %d", count, n)
	}
}
