// Package importer loads transactions from CSV files, creating any
// categories the file references that the store does not know yet.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/NgigiN/ledger/internal/csvrow"
	"github.com/NgigiN/ledger/internal/logger"
	"github.com/NgigiN/ledger/internal/storage"
	"github.com/shopspring/decimal"
)

// ErrUnresolvedCategory means a row's category title matched neither an
// existing nor a newly created category.
var ErrUnresolvedCategory = errors.New("unresolved category")

var (
	ErrInvalidType  = errors.New("type must be income or outcome")
	ErrInvalidValue = errors.New("value is not a number")
)

type CategoryStore interface {
	FindCategoriesByTitles(ctx context.Context, titles []string) ([]storage.Category, error)
	NewCategories(titles []string) []storage.Category
	SaveCategories(ctx context.Context, categories []storage.Category) error
}

type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []storage.Transaction) error
}

type Service struct {
	categories   CategoryStore
	transactions TransactionStore
}

func NewService(categories CategoryStore, transactions TransactionStore) *Service {
	return &Service{categories: categories, transactions: transactions}
}

// Report describes one completed import.
type Report struct {
	Transactions []storage.Transaction
	// Created holds the categories this import added to the store.
	Created []storage.Category
	// Skipped counts rows missing a title, type or value.
	Skipped int
}

// candidate is an accepted row waiting for its category to be resolved.
type candidate struct {
	title    string
	typ      storage.TransactionType
	value    decimal.Decimal
	category string
}

// batch is everything read from one file.
type batch struct {
	candidates []candidate
	// titles holds every non-empty category title in row order, duplicates included.
	titles  []string
	skipped int
}

// Import reads the CSV file at path, stores its transactions and removes the
// file. It returns the stored transactions.
func (s *Service) Import(ctx context.Context, path string) ([]storage.Transaction, error) {
	report, err := s.ImportReport(ctx, path)
	if err != nil {
		return nil, err
	}
	return report.Transactions, nil
}

// ImportReport is Import, also reporting created categories and skipped rows.
// Categories are created only for titles the store does not have.
// Concurrent imports with overlapping titles are not coordinated and may
// create duplicate categories.
func (s *Service) ImportReport(ctx context.Context, path string) (*Report, error) {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{"file": path})
	ctx = logger.WithContext(ctx, log)

	b, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	log.Info().Int("accepted", len(b.candidates)).Int("skipped", b.skipped).Msg("csv decoded")

	existing, err := s.categories.FindCategoriesByTitles(ctx, b.titles)
	if err != nil {
		return nil, fmt.Errorf("Import: find categories: %w", err)
	}

	created := s.categories.NewCategories(missingTitles(b.titles, existing))
	if err := s.categories.SaveCategories(ctx, created); err != nil {
		return nil, fmt.Errorf("Import: save categories: %w", err)
	}
	if len(created) > 0 {
		log.Info().Int("count", len(created)).Msg("categories created")
	}

	pool := make([]storage.Category, 0, len(created)+len(existing))
	pool = append(append(pool, created...), existing...)
	transactions, err := resolve(b.candidates, pool)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}
	if err := s.transactions.SaveTransactions(ctx, transactions); err != nil {
		return nil, fmt.Errorf("Import: save transactions: %w", err)
	}
	log.Info().Int("count", len(transactions)).Msg("transactions saved")

	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("Import: remove source file: %w", err)
	}
	log.Debug().Msg("source file removed")

	return &Report{Transactions: transactions, Created: created, Skipped: b.skipped}, nil
}

func readFile(ctx context.Context, path string) (batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return batch{}, fmt.Errorf("Import: open file: %w", err)
	}
	defer f.Close()

	return collect(ctx, csvrow.NewReader(f))
}

// collect drains r before anything touches the stores, so the full category
// vocabulary of the file is known up front. Incomplete rows are skipped; a
// complete row that cannot be stored fails the whole import.
func collect(ctx context.Context, r *csvrow.Reader) (batch, error) {
	log := logger.FromContext(ctx)
	var b batch
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return b, nil
		}
		if err != nil {
			return batch{}, fmt.Errorf("Import: %w", err)
		}

		if !row.Complete() {
			log.Debug().Int("line", row.Line).Msg("row skipped")
			b.skipped++
			continue
		}
		c, err := accept(row)
		if err != nil {
			return batch{}, fmt.Errorf("Import: %w", &csvrow.RowError{Line: row.Line, Err: err})
		}
		b.candidates = append(b.candidates, c)
		if c.category != "" {
			b.titles = append(b.titles, c.category)
		}
	}
}

// accept converts a complete row. Type is matched case-insensitively.
func accept(row csvrow.Row) (candidate, error) {
	typ := storage.TransactionType(strings.ToLower(row.Type))
	if !typ.Valid() {
		return candidate{}, fmt.Errorf("%w: %q", ErrInvalidType, row.Type)
	}
	value, err := decimal.NewFromString(row.Value)
	if err != nil {
		return candidate{}, fmt.Errorf("%w: %q", ErrInvalidValue, row.Value)
	}
	return candidate{title: row.Title, typ: typ, value: value, category: row.Category}, nil
}

// missingTitles returns the titles with no existing match, deduplicated and
// in order of first occurrence.
func missingTitles(titles []string, existing []storage.Category) []string {
	seen := make(map[string]bool, len(titles)+len(existing))
	for _, c := range existing {
		seen[c.Title] = true
	}
	var missing []string
	for _, t := range titles {
		if seen[t] {
			continue
		}
		seen[t] = true
		missing = append(missing, t)
	}
	return missing
}

// resolve links each candidate to the first category in pool with the same
// title. Candidates without a category title stay unlinked.
func resolve(candidates []candidate, pool []storage.Category) ([]storage.Transaction, error) {
	byTitle := make(map[string]*storage.Category, len(pool))
	for i := range pool {
		if _, ok := byTitle[pool[i].Title]; !ok {
			byTitle[pool[i].Title] = &pool[i]
		}
	}

	transactions := make([]storage.Transaction, 0, len(candidates))
	for _, c := range candidates {
		tx := storage.Transaction{Title: c.title, Type: c.typ, Value: c.value}
		if c.category != "" {
			category, ok := byTitle[c.category]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnresolvedCategory, c.category)
			}
			id := category.ID
			tx.CategoryID = &id
			tx.Category = category
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}
