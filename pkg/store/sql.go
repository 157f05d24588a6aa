package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pario-ai/faqbot/pkg/models"
	"github.com/pario-ai/faqbot/pkg/sqldb"
)

var createFAQTable = map[string]string{
	sqldb.SQLite: `
CREATE TABLE IF NOT EXISTS faq_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_faq_records_question ON faq_records(question);
`,
	sqldb.Postgres: `
CREATE TABLE IF NOT EXISTS faq_records (
	id BIGSERIAL PRIMARY KEY,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_faq_records_question ON faq_records(question);
`,
}

// SQLStore keeps records in a faq_records table. Row order is insertion
// order (ascending id).
type SQLStore struct {
	db      *sql.DB
	dialect string
	mu      sync.Mutex
}

// NewSQL opens dsn with the given dialect and migrates the schema.
func NewSQL(dialect, dsn string) (*SQLStore, error) {
	db, err := sqldb.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open faq store: %w", err)
	}
	if _, err := db.Exec(createFAQTable[dialect]); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate faq store: %w", err)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

func (s *SQLStore) q(query string) string {
	return sqldb.Rebind(s.dialect, query)
}

// Load returns every record ordered by id.
func (s *SQLStore) Load(ctx context.Context) ([]models.FAQRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, question, answer FROM faq_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer rows.Close()

	var records []models.FAQRecord
	for rows.Next() {
		var id int64
		var rec models.FAQRecord
		if err := rows.Scan(&id, &rec.Question, &rec.Answer); err != nil {
			return nil, fmt.Errorf("%w: scan faq record: %w", ErrUnreadable, err)
		}
		if err := validate(rec); err != nil {
			return nil, fmt.Errorf("faq record %d: %w", id, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return records, nil
}

// Append inserts rec as the newest record.
func (s *SQLStore) Append(ctx context.Context, rec models.FAQRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) insert(ctx context.Context, e execer, rec models.FAQRecord) error {
	now := time.Now().UTC()
	_, err := e.ExecContext(ctx,
		s.q(`INSERT INTO faq_records (question, answer, created_at, updated_at) VALUES (?, ?, ?, ?)`),
		rec.Question, rec.Answer, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert faq record: %w", err)
	}
	return nil
}

// Replace updates the newest record with the given question inside a
// transaction, inserting a new record when none matches.
func (s *SQLStore) Replace(ctx context.Context, question, answer string) (bool, error) {
	rec := models.FAQRecord{Question: question, Answer: answer}
	if err := validate(rec); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	var id sql.NullInt64
	err = tx.QueryRowContext(ctx, s.q(`SELECT MAX(id) FROM faq_records WHERE question = ?`), question).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("find faq record: %w", err)
	}

	replaced := id.Valid
	if replaced {
		_, err = tx.ExecContext(ctx,
			s.q(`UPDATE faq_records SET answer = ?, updated_at = ? WHERE id = ?`),
			answer, time.Now().UTC(), id.Int64,
		)
		if err != nil {
			return false, fmt.Errorf("update faq record: %w", err)
		}
	} else if err := s.insert(ctx, tx, rec); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit replace: %w", err)
	}
	return replaced, nil
}

// Count returns the number of records.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faq_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count faq records: %w", err)
	}
	return n, nil
}

// Close releases the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
