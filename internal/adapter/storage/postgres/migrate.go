package postgres

import (
	"context"
	_ "embed"
)

//go:embed migrations/schema.sql
var schema string

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return wrap("apply schema", err)
	}
	return nil
}
