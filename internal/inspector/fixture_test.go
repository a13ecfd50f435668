package inspector

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newStore creates a SQLite store in a temp dir, runs stmts against it and
// returns its path. The handle is closed before returning so the inspector
// only ever sees a static file.
func newStore(t testing.TB, stmts ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

// eventsStore is the small events(event_id, pid) store used across tests.
func eventsStore(t testing.TB) string {
	return newStore(t,
		`CREATE TABLE events (event_id INTEGER, pid TEXT)`,
		`INSERT INTO events VALUES (1, 'A'), (2, 'A'), (3, 'B')`,
	)
}

// kaggleStore mirrors the layout of the Kaggle dataset.
func kaggleStore(t testing.TB) string {
	return newStore(t,
		`CREATE TABLE meta_table (event_id INTEGER PRIMARY KEY, azimuth REAL, zenith REAL)`,
		`CREATE TABLE pulse_table (event_id INTEGER NOT NULL, sensor_id INTEGER, time REAL, charge REAL, auxiliary INTEGER)`,
		`CREATE INDEX event_no_pulse_table ON pulse_table (event_id)`,
		`INSERT INTO meta_table VALUES (24, 5.03, 2.27), (41, 0.41, 1.51), (59, 1.52, 2.91)`,
		`INSERT INTO pulse_table VALUES (24, 3918, 5928.0, 1.325, 1), (24, 4157, 6115.0, 1.175, 1), (41, 1722, 8106.0, 0.775, 0), (59, 2003, 9013.0, 0.925, 1)`,
	)
}
