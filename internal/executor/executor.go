// Package executor runs a single SQL statement against the relational store
// and returns its rows or the driver's error message as data.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kalambet/sqlrag/internal/config"
	"github.com/kalambet/sqlrag/internal/observability"
	"github.com/kalambet/sqlrag/internal/storage"
)

// ErrorPrefix starts every failure message in Result.Error.
const ErrorPrefix = "SQL Error: "

// Result is the outcome of one statement. Exactly one of (Columns, Rows) or
// Error is meaningful.
type Result struct {
	Columns  []string
	Rows     [][]any
	Error    string
	Duration time.Duration
}

// Failed reports whether the statement produced an error instead of rows.
func (r Result) Failed() bool { return r.Error != "" }

// OpenFunc opens a fresh connection handle for one statement.
type OpenFunc func() (*sql.DB, error)

// Executor runs statements, each on its own connection that is released
// before Execute returns.
type Executor struct {
	open     OpenFunc
	readOnly bool
}

// New builds an Executor for the configured driver. For SQLite the file is
// opened with mode=rw (or mode=ro when read-only) so a missing database is
// reported as an error rather than created empty. Read-only pgx sessions
// start with default_transaction_read_only=on.
func New(cfg config.DatabaseConfig) (*Executor, error) {
	var driver, dsn string
	switch cfg.Driver {
	case config.DriverSQLite:
		mode := storage.ModeReadWrite
		if cfg.ReadOnly {
			mode = storage.ModeReadOnly
		}
		var err error
		dsn, err = storage.SQLiteDSN(cfg.DSN, mode)
		if err != nil {
			return nil, err
		}
		driver = "sqlite"
	case config.DriverPgx:
		cc, err := pgxConnConfig(cfg.DSN, cfg.ReadOnly)
		if err != nil {
			return nil, err
		}
		driver, dsn = "pgx", stdlib.RegisterConnConfig(cc)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	return NewWithOpener(func() (*sql.DB, error) {
		return sql.Open(driver, dsn)
	}, cfg.ReadOnly), nil
}

func pgxConnConfig(dsn string, readOnly bool) (*pgx.ConnConfig, error) {
	cc, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if readOnly {
		cc.RuntimeParams["default_transaction_read_only"] = "on"
	}
	return cc, nil
}

// NewWithOpener builds an Executor around a custom opener.
func NewWithOpener(open OpenFunc, readOnly bool) *Executor {
	return &Executor{open: open, readOnly: readOnly}
}

// ReadOnly reports whether the statement-type guard is active.
func (e *Executor) ReadOnly() bool { return e.readOnly }

// Execute runs statement and returns its rows. Failures never surface as Go
// errors: they are captured in Result.Error with the "SQL Error: " prefix.
func (e *Executor) Execute(ctx context.Context, statement string) Result {
	start := time.Now()
	res := e.execute(ctx, statement)
	res.Duration = time.Since(start)
	observability.ObserveExecution(res.Duration)
	return res
}

func (e *Executor) execute(ctx context.Context, statement string) Result {
	if e.readOnly {
		if kw := leadingKeyword(statement); !readOnlyKeywords[kw] {
			if kw == "" {
				kw = "unrecognized"
			}
			return failure(fmt.Errorf("read-only mode rejects %s statements", kw))
		}
	}

	db, err := e.open()
	if err != nil {
		return failure(err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return failure(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return failure(err)
	}

	result := Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return failure(err)
		}
		result.Rows = append(result.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return failure(err)
	}
	return result
}

func failure(err error) Result {
	return Result{Error: ErrorPrefix + err.Error()}
}

var readOnlyKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"EXPLAIN": true,
	"PRAGMA":  true,
	"VALUES":  true,
}

// leadingKeyword returns the first word of statement in upper case,
// skipping whitespace, opening parentheses and SQL comments. A WITH clause
// may still wrap a data-modifying statement; the read-only connection
// rejects those.
func leadingKeyword(statement string) string {
	s := statement
	for {
		s = strings.TrimLeftFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = s[i+2:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return !unicode.IsLetter(r) && r != '_'
			})
			if end < 0 {
				end = len(s)
			}
			return strings.ToUpper(s[:end])
		}
	}
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
