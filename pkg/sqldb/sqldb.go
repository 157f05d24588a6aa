// Package sqldb opens database/sql handles through OpenTelemetry-instrumented
// driver wrappers.
package sqldb

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	_ "modernc.org/sqlite"
)

// Supported dialects.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

var drivers = map[string]func() (string, error){
	SQLite: sync.OnceValues(func() (string, error) {
		return otelsql.Register(SQLite,
			otelsql.TraceQueryWithoutArgs(),
			otelsql.TraceRowsClose(),
			otelsql.TraceRowsAffected(),
			otelsql.WithSystem(semconv.DBSystemSqlite),
		)
	}),
	Postgres: sync.OnceValues(func() (string, error) {
		return otelsql.Register(Postgres,
			otelsql.TraceQueryWithoutArgs(),
			otelsql.TraceRowsClose(),
			otelsql.TraceRowsAffected(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
		)
	}),
}

// Open opens and pings a database. For SQLite, dsn is a file path and the
// pool is limited to one connection so writers never see SQLITE_BUSY.
func Open(dialect, dsn string) (*sql.DB, error) {
	register, ok := drivers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	driver, err := register()
	if err != nil {
		return nil, fmt.Errorf("register %s driver: %w", dialect, err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}
	if err := otelsql.RecordStats(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("record %s db stats: %w", dialect, err)
	}
	return db, nil
}

// Rebind rewrites ? placeholders into the dialect's bind syntax.
func Rebind(dialect, query string) string {
	if dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
