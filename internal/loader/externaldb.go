package loader

import "context"

// Row is one result row from the external analytical database, keyed
// by column name. The loader only requires "timestamp" and "value" to
// be present; any other columns are ignored.
type Row map[string]interface{}

// ExternalDB is the minimum contract the external analytical database
// must satisfy: render-and-execute a SELECT, returning ordered rows.
// Writes are never used by this engine.
type ExternalDB interface {
	ExecuteQuery(ctx context.Context, query string) ([]Row, error)
}
