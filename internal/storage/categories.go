package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// FindCategoriesByTitles returns every category whose title is in titles.
// Titles are deduplicated and looked up lookupChunkSize at a time. Matching
// is exact and case-sensitive.
func (d *Database) FindCategoriesByTitles(ctx context.Context, titles []string) ([]Category, error) {
	unique := make([]string, 0, len(titles))
	seen := make(map[string]bool, len(titles))
	for _, t := range titles {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}

	var categories []Category
	for start := 0; start < len(unique); start += lookupChunkSize {
		end := min(start+lookupChunkSize, len(unique))
		var chunk []Category
		if err := d.db.WithContext(ctx).Where("title IN ?", unique[start:end]).Find(&chunk).Error; err != nil {
			return nil, fmt.Errorf("failed to find categories: %w", err)
		}
		categories = append(categories, chunk...)
	}
	return categories, nil
}

// NewCategories builds unsaved title-only categories.
func (d *Database) NewCategories(titles []string) []Category {
	categories := make([]Category, 0, len(titles))
	for _, title := range titles {
		categories = append(categories, Category{Title: title})
	}
	return categories
}

// SaveCategories inserts categories in one write, filling in ids and timestamps.
func (d *Database) SaveCategories(ctx context.Context, categories []Category) error {
	if len(categories) == 0 {
		return nil
	}
	if err := d.batched(ctx).Create(&categories).Error; err != nil {
		return fmt.Errorf("failed to save categories: %w", err)
	}
	return nil
}

func (d *Database) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := d.db.WithContext(ctx).Order("title").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// CategoryTotals is the per-category breakdown reported by CategorySummary.
// Transactions without a category are grouped under an empty Title.
type CategoryTotals struct {
	Title   string
	Income  decimal.Decimal
	Outcome decimal.Decimal
}

func (c CategoryTotals) Balance() decimal.Decimal {
	return c.Income.Sub(c.Outcome)
}

// CategorySummary totals income and outcome per category, ordered by title.
func (d *Database) CategorySummary(ctx context.Context) ([]CategoryTotals, error) {
	var transactions []Transaction
	if err := d.db.WithContext(ctx).Preload("Category").Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	index := make(map[string]int)
	var totals []CategoryTotals
	for _, tx := range transactions {
		title := ""
		if tx.Category != nil {
			title = tx.Category.Title
		}
		i, ok := index[title]
		if !ok {
			i = len(totals)
			index[title] = i
			totals = append(totals, CategoryTotals{Title: title})
		}
		switch tx.Type {
		case Income:
			totals[i].Income = totals[i].Income.Add(tx.Value)
		case Outcome:
			totals[i].Outcome = totals[i].Outcome.Add(tx.Value)
		}
	}

	sort.Slice(totals, func(i, j int) bool { return totals[i].Title < totals[j].Title })
	return totals, nil
}
