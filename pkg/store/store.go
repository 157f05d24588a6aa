// Package store persists FAQ records. A store is the source of truth the
// semantic cache is rebuilt from; its record order is the cache's row order.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pario-ai/faqbot/pkg/config"
	"github.com/pario-ai/faqbot/pkg/models"
	"github.com/pario-ai/faqbot/pkg/sqldb"
)

var (
	// ErrMalformed is returned when a stored record lacks a question or answer.
	ErrMalformed = errors.New("malformed faq record")
	// ErrUnreadable is returned when the backing store cannot be read.
	ErrUnreadable = errors.New("faq store unreadable")
)

// Store is an ordered, append-mostly collection of FAQ records.
// Implementations serialize Append and Replace.
type Store interface {
	// Load returns every record in store order.
	Load(ctx context.Context) ([]models.FAQRecord, error)
	// Append adds rec after all existing records.
	Append(ctx context.Context, rec models.FAQRecord) error
	// Replace overwrites the answer of the last record whose question equals
	// question exactly. When no record matches it appends instead and reports
	// false.
	Replace(ctx context.Context, question, answer string) (bool, error)
	// Count returns the number of records.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open returns the store selected by cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverCSV:
		return NewCSV(cfg.Path), nil
	case config.DriverSQLite:
		return NewSQL(sqldb.SQLite, cfg.Path)
	case config.DriverPostgres:
		return NewSQL(sqldb.Postgres, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Copy appends every record of src to dst in order and returns how many were
// copied.
func Copy(ctx context.Context, dst, src Store) (int, error) {
	records, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("copy: %w", err)
	}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := dst.Append(ctx, rec); err != nil {
			return i, fmt.Errorf("copy record %d: %w", i+1, err)
		}
	}
	return len(records), nil
}

func validate(rec models.FAQRecord) error {
	if isBlank(rec.Question) {
		return fmt.Errorf("%w: empty question", ErrMalformed)
	}
	if isBlank(rec.Answer) {
		return fmt.Errorf("%w: empty answer", ErrMalformed)
	}
	return nil
}
