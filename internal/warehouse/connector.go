// Package warehouse wraps a Snowflake session behind a small query surface.
// All statements run on a single pinned connection so session functions such
// as LAST_QUERY_ID() observe the statements this connector issued, not those
// of an arbitrary pooled peer.
package warehouse

import (
	"context"
	"database/sql"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/benchtools/pipebench/internal/config"
)

// Connector is a single logical warehouse session. It is not safe for
// concurrent use; the harness runs one phase at a time.
type Connector struct {
	creds       *config.Credentials
	db          *sql.DB
	conn        *sql.Conn
	stmtTimeout time.Duration
	log         *zap.Logger
}

// SessionInfo identifies the warehouse context a session resolved to.
type SessionInfo struct {
	Warehouse string
	Database  string
	Schema    string
}

// New prepares a connector. No network traffic happens until Connect.
func New(creds *config.Credentials, stmtTimeout time.Duration, log *zap.Logger) *Connector {
	return &Connector{creds: creds, stmtTimeout: stmtTimeout, log: log}
}

// NewWithDB wraps an existing database handle. Used by tests to substitute a
// mock driver for a live session.
func NewWithDB(db *sql.DB, stmtTimeout time.Duration, log *zap.Logger) *Connector {
	return &Connector{creds: &config.Credentials{}, db: db, stmtTimeout: stmtTimeout, log: log}
}

// Connect opens the session, pins a single connection and verifies it with a
// ping. Credentials are validated before any dial.
func (c *Connector) Connect(ctx context.Context) error {
	if c.db == nil {
		if err := c.creds.Validate(); err != nil {
			return err
		}
		dsn, err := sf.DSN(&sf.Config{
			Account:   c.creds.Account,
			User:      c.creds.User,
			Password:  c.creds.Password,
			Warehouse: c.creds.Warehouse,
			Database:  c.creds.Database,
			Schema:    c.creds.Schema,
			Role:      c.creds.Role,
		})
		if err != nil {
			return &ConnectionError{Account: c.creds.Account, Cause: err}
		}
		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return &ConnectionError{Account: c.creds.Account, Cause: err}
		}
		c.db = db
	}

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return &ConnectionError{Account: c.creds.Account, Cause: err}
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return &ConnectionError{Account: c.creds.Account, Cause: err}
	}
	c.conn = conn
	c.log.Debug("warehouse session established", zap.String("account", c.creds.Account))
	return nil
}

// Query runs one statement on the pinned connection and materializes the
// result set. Every statement carries the configured timeout.
func (c *Connector) Query(ctx context.Context, query string, args ...any) ([][]any, []string, error) {
	if c.conn == nil {
		return nil, nil, &QueryError{SQL: query, Cause: sql.ErrConnDone}
	}
	qctx, cancel := context.WithTimeout(ctx, c.stmtTimeout)
	defer cancel()

	rows, err := c.conn.QueryContext(qctx, query, args...)
	if err != nil {
		return nil, nil, &QueryError{SQL: query, Cause: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, &QueryError{SQL: query, Cause: err}
	}

	var out [][]any
	for rows.Next() {
		row := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, &QueryError{SQL: query, Cause: err}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &QueryError{SQL: query, Cause: err}
	}
	return out, cols, nil
}

// QueryRow runs a statement expected to return exactly one row.
func (c *Connector) QueryRow(ctx context.Context, query string, args ...any) ([]any, error) {
	rows, _, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &QueryError{SQL: query, Cause: sql.ErrNoRows}
	}
	return rows[0], nil
}

// LastQueryID returns the ID of the last statement executed on this session.
// Valid only because all statements share the pinned connection.
func (c *Connector) LastQueryID(ctx context.Context) (string, error) {
	row, err := c.QueryRow(ctx, "SELECT LAST_QUERY_ID()")
	if err != nil {
		return "", err
	}
	return ToString(row[0]), nil
}

// SessionInfo reports the warehouse context the session resolved to, for
// logging at connect time.
func (c *Connector) SessionInfo(ctx context.Context) (*SessionInfo, error) {
	row, err := c.QueryRow(ctx, "SELECT CURRENT_WAREHOUSE(), CURRENT_DATABASE(), CURRENT_SCHEMA()")
	if err != nil {
		return nil, err
	}
	return &SessionInfo{
		Warehouse: ToString(row[0]),
		Database:  ToString(row[1]),
		Schema:    ToString(row[2]),
	}, nil
}

// Close releases the pinned connection and the underlying handle.
func (c *Connector) Close() error {
	var firstErr error
	if c.conn != nil {
		firstErr = c.conn.Close()
		c.conn = nil
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.db = nil
	}
	return firstErr
}
