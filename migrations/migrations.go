// Package migrations embeds the versioned schema for every supported engine.
// The same files back the server's startup schema check and the migrate CLI.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed sqlite3/*.sql postgres/*.sql mysql/*.sql
var files embed.FS

// CreateProducts is the version-1 migration name shared by every dialect.
const CreateProducts = "000001_create_products"

// Source returns the migration directory for dialect, rooted so that
// golang-migrate's iofs source sees the files at the top level.
func Source(dialect string) (fs.FS, error) {
	sub, err := fs.Sub(files, dialect)
	if err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if _, err := fs.Stat(sub, CreateProducts+".up.sql"); err != nil {
		return nil, fmt.Errorf("migrations: no schema for dialect %q", dialect)
	}
	return sub, nil
}

// CreateStatement returns the idempotent CREATE TABLE statement for dialect.
func CreateStatement(dialect string) (string, error) {
	b, err := fs.ReadFile(files, dialect+"/"+CreateProducts+".up.sql")
	if err != nil {
		return "", fmt.Errorf("migrations: no schema for dialect %q", dialect)
	}
	return string(b), nil
}
