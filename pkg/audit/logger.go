// Package audit keeps a log of routing decisions: which source answered
// each question, at what cache distance and how fast.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pario-ai/faqbot/pkg/models"
	"github.com/pario-ai/faqbot/pkg/sqldb"
)

// Logger writes and queries audit entries in a dedicated SQLite database.
// A nil *Logger discards entries.
type Logger struct {
	db     *sql.DB
	cfg    models.AuditConfig
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New opens the audit SQLite database, creates the schema and starts the
// hourly retention loop when RetentionDays is positive.
func New(cfg models.AuditConfig, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqldb.Open(sqldb.SQLite, cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:     db,
		cfg:    cfg,
		done:   make(chan struct{}),
		logger: logger,
	}

	if cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS decision_log (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL DEFAULT '',
		mode        TEXT NOT NULL DEFAULT '',
		question    TEXT NOT NULL,
		source      TEXT NOT NULL,
		distance    REAL,
		answer      TEXT NOT NULL DEFAULT '',
		outcome     TEXT NOT NULL DEFAULT '',
		latency_ms  INTEGER NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_decision_source ON decision_log(source, created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_decision_created ON decision_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_decision_session ON decision_log(session_id)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS generation_usage (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at  DATETIME NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_usage_created ON generation_usage(created_at)`)
	return err
}

// Log inserts an entry. Missing IDs and timestamps are filled in; answers
// are dropped or truncated according to the configuration.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	answer := entry.Answer
	if !l.cfg.IncludeAnswers {
		answer = ""
	}
	answer = truncate(answer, l.cfg.MaxBodySize)

	var distance sql.NullFloat64
	if entry.HasDistance {
		distance = sql.NullFloat64{Float64: entry.Distance, Valid: true}
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO decision_log
		(id, session_id, mode, question, source, distance, answer, outcome, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SessionID, string(entry.Mode), truncate(entry.Question, l.cfg.MaxBodySize),
		string(entry.Source), distance, answer, entry.Outcome, entry.LatencyMs, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

const defaultQueryLimit = 100

const selectDecisions = `SELECT id, session_id, mode, question, source, distance, answer, outcome, latency_ms, created_at FROM decision_log`

// where renders the filters in opts as a WHERE clause and its arguments.
func where(opts models.AuditQueryOpts) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if opts.ID != "" {
		add("id = ?", opts.ID)
	}
	if opts.SessionID != "" {
		add("session_id = ?", opts.SessionID)
	}
	if opts.Source != "" {
		add("source = ?", string(opts.Source))
	}
	if !opts.Since.IsZero() {
		add("created_at >= ?", opts.Since.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (models.AuditEntry, error) {
	var (
		e            models.AuditEntry
		mode, source string
		distance     sql.NullFloat64
	)
	err := sc.Scan(&e.ID, &e.SessionID, &mode, &e.Question, &source, &distance,
		&e.Answer, &e.Outcome, &e.LatencyMs, &e.CreatedAt)
	e.Mode = models.ChatMode(mode)
	e.Source = models.Source(source)
	e.Distance, e.HasDistance = distance.Float64, distance.Valid
	return e, err
}

// Query returns entries matching opts, newest first. A zero Limit returns at
// most 100 entries.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	clause, args := where(opts)
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, selectDecisions+clause+" ORDER BY created_at DESC LIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats counts decisions per source and UTC day, newest day first.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT source, COALESCE(date(created_at), '') AS day, COUNT(*)
		FROM decision_log
		GROUP BY source, day
		ORDER BY day DESC, source`)
	if err != nil {
		return nil, fmt.Errorf("decision stats: %w", err)
	}
	defer rows.Close()

	var out []models.AuditStat
	for rows.Next() {
		var (
			st     models.AuditStat
			source string
		)
		if err := rows.Scan(&source, &st.Day, &st.Count); err != nil {
			return nil, fmt.Errorf("scan decision stat: %w", err)
		}
		st.Source = models.Source(source)
		out = append(out, st)
	}
	return out, rows.Err()
}

// RecordGeneration adds one generator call at the given time to the usage
// ledger that budgets are counted from.
func (l *Logger) RecordGeneration(ctx context.Context, at time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO generation_usage (created_at) VALUES (?)`, at.UTC())
	if err != nil {
		return fmt.Errorf("record generation: %w", err)
	}
	return nil
}

// CountGenerations returns how many generator calls were recorded since the
// given time.
func (l *Logger) CountGenerations(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM generation_usage WHERE created_at >= ?`, since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count generations: %w", err)
	}
	return n, nil
}

// usageKeep is how long generation usage outlives decision retention, so a
// short retention never frees monthly budget early.
const usageKeep = 62 * 24 * time.Hour

// Cleanup deletes entries older than the configured retention period and
// returns how many decisions were removed.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM decision_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	usageCutoff := now.Add(-usageKeep)
	if cutoff.Before(usageCutoff) {
		usageCutoff = cutoff
	}
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM generation_usage WHERE created_at < ?`, usageCutoff); err != nil {
		return 0, fmt.Errorf("usage cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			n, err := l.Cleanup(context.Background())
			if err != nil {
				l.logger.Warn("audit retention failed", "error", err)
				continue
			}
			if n > 0 {
				l.logger.Info("audit entries expired", "count", n)
			}
		}
	}
}
