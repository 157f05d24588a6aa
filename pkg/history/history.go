// Package history persists chat sessions and their turns.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/faqbot/pkg/models"
	"github.com/pario-ai/faqbot/pkg/sqldb"
)

// History records conversation turns per session.
type History interface {
	// ResolveSession returns a session ID for client. A non-empty explicitID
	// is created if needed and returned as is. Otherwise the client's most
	// recent session is reused when its last activity is within gap, and a
	// new session is created when it is not. A gap of zero always creates a
	// new session.
	ResolveSession(ctx context.Context, client, explicitID string, gap time.Duration) (string, error)
	// AddTurn appends a turn and bumps the session's activity.
	AddTurn(ctx context.Context, sessionID string, role models.Role, content string) error
	// Recent returns up to n most recent turns, oldest first.
	Recent(ctx context.Context, sessionID string, n int) ([]models.Turn, error)
	// PopAssistant removes the latest turn if it was written by the assistant.
	PopAssistant(ctx context.Context, sessionID string) (bool, error)
	// SetLastQuestion remembers the question a regenerate request refers to.
	SetLastQuestion(ctx context.Context, sessionID, question string) error
	// LastQuestion returns the remembered question, or "" if there is none.
	LastQuestion(ctx context.Context, sessionID string) (string, error)
	// Reset drops every turn and the last question of a session.
	Reset(ctx context.Context, sessionID string) error
	// ListSessions returns sessions, newest first, optionally for one client.
	ListSessions(ctx context.Context, client string) ([]models.Session, error)
	// Close releases resources.
	Close() error
}

// SQLiteHistory implements History with a SQLite database.
type SQLiteHistory struct {
	db *sql.DB
}

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id TEXT PRIMARY KEY,
	client TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL,
	last_activity DATETIME NOT NULL,
	last_question TEXT NOT NULL DEFAULT '',
	turn_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_client ON chat_sessions(client, last_activity);
`

const createTurnsTable = `
CREATE TABLE IF NOT EXISTS chat_turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_turns_session ON chat_turns(session_id, id);
`

// New creates a SQLiteHistory and runs auto-migration.
func New(dbPath string) (*SQLiteHistory, error) {
	db, err := sqldb.Open(sqldb.SQLite, dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createSessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sessions table: %w", err)
	}
	if _, err := db.Exec(createTurnsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate turns table: %w", err)
	}

	return &SQLiteHistory{db: db}, nil
}

// ResolveSession implements History.
func (h *SQLiteHistory) ResolveSession(ctx context.Context, client, explicitID string, gap time.Duration) (string, error) {
	now := time.Now().UTC()

	if explicitID != "" {
		_, err := h.db.ExecContext(ctx,
			`INSERT INTO chat_sessions (id, client, started_at, last_activity) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			explicitID, client, now, now,
		)
		if err != nil {
			return "", fmt.Errorf("ensure session: %w", err)
		}
		return explicitID, nil
	}

	if gap > 0 {
		var lastID string
		var lastActivity time.Time
		err := h.db.QueryRowContext(ctx,
			`SELECT id, last_activity FROM chat_sessions WHERE client = ? ORDER BY last_activity DESC LIMIT 1`,
			client,
		).Scan(&lastID, &lastActivity)
		if err == nil && now.Sub(lastActivity) <= gap {
			return lastID, nil
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("find session: %w", err)
		}
	}

	id := uuid.NewString()
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, client, started_at, last_activity) VALUES (?, ?, ?, ?)`,
		id, client, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// AddTurn implements History.
func (h *SQLiteHistory) AddTurn(ctx context.Context, sessionID string, role models.Role, content string) error {
	now := time.Now().UTC()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add turn: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, string(role), content, now,
	); err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET last_activity = ?, turn_count = turn_count + 1 WHERE id = ?`,
		now, sessionID,
	); err != nil {
		return fmt.Errorf("update session activity: %w", err)
	}
	return tx.Commit()
}

// Recent implements History.
func (h *SQLiteHistory) Recent(ctx context.Context, sessionID string, n int) ([]models.Turn, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM chat_turns
		 WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var role string
		if err := rows.Scan(&role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = models.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// PopAssistant implements History.
func (h *SQLiteHistory) PopAssistant(ctx context.Context, sessionID string) (bool, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin pop: %w", err)
	}
	defer tx.Rollback()

	var id int64
	var role string
	err = tx.QueryRowContext(ctx,
		`SELECT id, role FROM chat_turns WHERE session_id = ? ORDER BY id DESC LIMIT 1`,
		sessionID,
	).Scan(&id, &role)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && models.Role(role) != models.RoleAssistant) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find last turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_turns WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete turn: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET turn_count = turn_count - 1 WHERE id = ? AND turn_count > 0`,
		sessionID,
	); err != nil {
		return false, fmt.Errorf("update turn count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit pop: %w", err)
	}
	return true, nil
}

// SetLastQuestion implements History.
func (h *SQLiteHistory) SetLastQuestion(ctx context.Context, sessionID, question string) error {
	_, err := h.db.ExecContext(ctx,
		`UPDATE chat_sessions SET last_question = ?, last_activity = ? WHERE id = ?`,
		question, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("set last question: %w", err)
	}
	return nil
}

// LastQuestion implements History.
func (h *SQLiteHistory) LastQuestion(ctx context.Context, sessionID string) (string, error) {
	var q string
	err := h.db.QueryRowContext(ctx,
		`SELECT last_question FROM chat_sessions WHERE id = ?`, sessionID,
	).Scan(&q)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last question: %w", err)
	}
	return q, nil
}

// Reset implements History.
func (h *SQLiteHistory) Reset(ctx context.Context, sessionID string) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET last_question = '', turn_count = 0 WHERE id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return tx.Commit()
}

// ListSessions implements History.
func (h *SQLiteHistory) ListSessions(ctx context.Context, client string) ([]models.Session, error) {
	query := `SELECT id, started_at, last_activity, last_question, turn_count FROM chat_sessions`
	var args []any
	if client != "" {
		query += ` WHERE client = ?`
		args = append(args, client)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.LastActivity, &s.LastQuestion, &s.TurnCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Close releases the database connection.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

// Transcript flattens the last n turns into "Usuario: ..." and
// "Asistente: ..." lines, each terminated by a newline.
func Transcript(turns []models.Turn, n int) string {
	if n <= 0 {
		return ""
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	var b strings.Builder
	for _, t := range turns {
		if t.Role == models.RoleUser {
			b.WriteString("Usuario: ")
		} else {
			b.WriteString("Asistente: ")
		}
		b.WriteString(t.Content)
		b.WriteByte('\n')
	}
	return b.String()
}
