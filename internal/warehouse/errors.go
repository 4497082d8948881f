package warehouse

import "fmt"

// ConnectionError reports a failure to establish or verify a warehouse
// session.
type ConnectionError struct {
	Account string
	Cause   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("warehouse connection failed (account=%s): %v", e.Account, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// QueryError reports a failed statement. SQL is truncated for logging.
type QueryError struct {
	SQL   string
	Cause error
}

func (e *QueryError) Error() string {
	sql := e.SQL
	if len(sql) > 120 {
		sql = sql[:120] + "..."
	}
	return fmt.Sprintf("query failed: %v (sql: %s)", e.Cause, sql)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}
