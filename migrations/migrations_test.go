package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStatement(t *testing.T) {
	cases := map[string]string{
		"sqlite3":  "AUTOINCREMENT",
		"postgres": "BIGSERIAL",
		"mysql":    "AUTO_INCREMENT",
	}
	for dialect, idType := range cases {
		t.Run(dialect, func(t *testing.T) {
			stmt, err := CreateStatement(dialect)
			require.NoError(t, err)
			assert.Contains(t, stmt, "CREATE TABLE IF NOT EXISTS products")
			assert.Contains(t, stmt, idType)
			assert.Contains(t, stmt, "CHECK (price > 0)")
			assert.Contains(t, stmt, "UNIQUE")
		})
	}
}

func TestCreateStatement_UnknownDialect(t *testing.T) {
	_, err := CreateStatement("oracle")
	assert.Error(t, err)
}

func TestSource(t *testing.T) {
	src, err := Source("postgres")
	require.NoError(t, err)

	entries, err := fs.ReadDir(src, ".")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		CreateProducts + ".down.sql",
		CreateProducts + ".up.sql",
	}, names)

	_, err = Source("oracle")
	assert.Error(t, err)
}
