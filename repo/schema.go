package repo

import (
	"context"
	"fmt"

	"github.com/Skryldev/product-catalog/db"
	"github.com/Skryldev/product-catalog/migrations"
)

// EnsureSchema creates the products table if it does not already exist,
// using the DDL of the pool's dialect. It is safe to call on every start.
// The error is returned to the caller; nothing here retries or exits.
func EnsureSchema(ctx context.Context, pool Pool) error {
	name := pool.Dialect().Name()
	stmt, err := migrations.CreateStatement(name)
	if err != nil {
		return fmt.Errorf("repo/schema: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("repo/schema: %w", err)
	}
	defer conn.Close()

	err = conn.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := tx.Exec(ctx, stmt)
		return err
	})
	if err != nil {
		return fmt.Errorf("repo/schema: create products (%s): %w", name, err)
	}
	return nil
}
