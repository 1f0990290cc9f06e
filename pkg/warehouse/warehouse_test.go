package warehouse

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openvetdata/vetdw/pkg/database"
)

// newTestWarehouse opens a migrated throwaway warehouse for one test. The
// migrate instance closes the connection it runs over, so migrations get
// their own.
func newTestWarehouse(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vetdw.db")

	migDB, err := database.Open(path)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(migDB, "../../migrations", zap.NewNop()))

	db, err := database.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}
