package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// SQLDB is the production ExternalDB: a pooled connection to the
// analytical database the metric queries run against, grounded on the
// teacher's sqlx-based DBConnection/Connect pair.
type SQLDB struct {
	db *sqlx.DB
}

// Connect opens a pooled connection to dsn via driver ("postgres" is
// the only one wired today; lib/pq is registered by this file's blank
// import). The pool is tuned the way the teacher tunes its non-sqlite
// driver: a handful of long-lived connections rather than one-per-call.
func Connect(driver, dsn string) (*SQLDB, error) {
	dbHandle, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("loader: opening %s connection: %w", driver, err)
	}
	dbHandle.SetConnMaxLifetime(3 * time.Minute)
	dbHandle.SetMaxOpenConns(10)
	dbHandle.SetMaxIdleConns(10)
	return &SQLDB{db: dbHandle}, nil
}

// Close releases the underlying connection pool.
func (s *SQLDB) Close() error {
	return s.db.Close()
}

// ExecuteQuery runs query and returns every row as a Row, column names
// lower-cased by the driver. sqlx's MapScan gives exactly the
// map[string]interface{} shape Row is defined as.
func (s *SQLDB) ExecuteQuery(ctx context.Context, query string) ([]Row, error) {
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loader: executing query: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		raw := make(map[string]interface{})
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("loader: scanning row: %w", err)
		}
		out = append(out, Row(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loader: iterating rows: %w", err)
	}
	return out, nil
}
