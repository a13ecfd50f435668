package inspector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/graphnet-team/datainspect/internal/errors"
	"github.com/graphnet-team/datainspect/internal/observability"
	"github.com/graphnet-team/datainspect/pkg/types"
)

func TestListTables(t *testing.T) {
	path := newStore(t,
		`CREATE TABLE truth (event_no INTEGER PRIMARY KEY AUTOINCREMENT, pid INTEGER)`,
		`CREATE TABLE HVInIcePulses (event_no INTEGER, dom_x REAL)`,
		`INSERT INTO truth (pid) VALUES (12)`,
	)

	tables, err := New(path, nil).ListTables(context.Background())
	require.NoError(t, err)

	// AUTOINCREMENT creates sqlite_sequence, which must not be reported.
	assert.Equal(t, []string{"truth", "HVInIcePulses"}, tables)
}

func TestListTables_EmptyStore(t *testing.T) {
	path := newStore(t)

	tables, err := New(path, nil).ListTables(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tables)
	assert.Empty(t, tables)
}

func TestListIndexes(t *testing.T) {
	path := newStore(t,
		`CREATE TABLE truth (event_no INTEGER, run_id INTEGER, UNIQUE (event_no))`,
		`CREATE TABLE total (event_no INTEGER, sensor_id INTEGER)`,
		`CREATE INDEX event_no_total ON total (event_no)`,
	)

	indexes, err := New(path, nil).ListIndexes(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.IndexDescriptor{
		{Name: "sqlite_autoindex_truth_1", Table: "truth"},
		{Name: "event_no_total", Table: "total"},
	}, indexes)
}

func TestListColumns(t *testing.T) {
	path := kaggleStore(t)
	insp := New(path, nil)

	columns, err := insp.ListColumns(context.Background(), "pulse_table")
	require.NoError(t, err)
	assert.Equal(t, []string{"event_id", "sensor_id", "time", "charge", "auxiliary"}, columns)

	// Case-insensitive like SQLite itself.
	columns, err = insp.ListColumns(context.Background(), "META_TABLE")
	require.NoError(t, err)
	assert.Equal(t, []string{"event_id", "azimuth", "zenith"}, columns)
}

func TestListColumns_EmptyTable(t *testing.T) {
	path := newStore(t, `CREATE TABLE mc_truth (event_no INTEGER, injection_type INTEGER, injection_interaction_type INTEGER)`)

	columns, err := New(path, nil).ListColumns(context.Background(), "mc_truth")
	require.NoError(t, err)
	assert.Equal(t, []string{"event_no", "injection_type", "injection_interaction_type"}, columns)
}

func TestListColumns_UnknownTable(t *testing.T) {
	path := kaggleStore(t)

	columns, err := New(path, nil).ListColumns(context.Background(), "truth")
	require.Error(t, err)
	assert.Nil(t, columns)
	assert.True(t, errors.Is(err, ierrors.ErrUnknownTable), "got %v", err)
}

func TestCountEvents_Ungrouped(t *testing.T) {
	path := eventsStore(t)

	result, err := New(path, nil).CountEvents(context.Background(), "events", "event_id")
	require.NoError(t, err)

	assert.False(t, result.Grouped())
	assert.Equal(t, int64(3), result.Total)
	assert.Empty(t, result.Groups)
}

func TestCountEvents_Grouped(t *testing.T) {
	path := eventsStore(t)

	result, err := New(path, nil).CountEvents(context.Background(), "events", "event_id", "pid")
	require.NoError(t, err)

	assert.True(t, result.Grouped())
	assert.Equal(t, []string{"pid"}, result.GroupBy)
	assert.Equal(t, []types.GroupCount{
		{Key: []string{"A"}, Kinds: []string{"text"}, Count: 2},
		{Key: []string{"B"}, Kinds: []string{"text"}, Count: 1},
	}, result.Groups)
	assert.Equal(t, int64(3), result.Total)
	assert.Equal(t, result.Total, result.Sum())
}

func TestCountEvents_MultipleGroupColumns(t *testing.T) {
	path := newStore(t,
		`CREATE TABLE mc_truth (event_no INTEGER, injection_type INTEGER, injection_interaction_type INTEGER)`,
		`INSERT INTO mc_truth VALUES (1, 14, 1), (2, 14, 2), (3, 14, 1), (4, -12, 1), (5, NULL, 2)`,
	)

	result, err := New(path, nil).CountEvents(context.Background(),
		"mc_truth", "event_no", "injection_type", "injection_interaction_type")
	require.NoError(t, err)

	assert.Equal(t, []types.GroupCount{
		{Key: []string{"<NULL>", "2"}, Kinds: []string{"null", "integer"}, Count: 1},
		{Key: []string{"-12", "1"}, Kinds: []string{"integer", "integer"}, Count: 1},
		{Key: []string{"14", "1"}, Kinds: []string{"integer", "integer"}, Count: 2},
		{Key: []string{"14", "2"}, Kinds: []string{"integer", "integer"}, Count: 1},
	}, result.Groups)
	assert.Equal(t, int64(5), result.Total)
}

func TestCountEvents_KeysKeepStorageClass(t *testing.T) {
	path := newStore(t,
		`CREATE TABLE truth (event_no INTEGER, pid)`,
		`INSERT INTO truth VALUES (1, 1), (2, '1'), (3, NULL), (4, 'NULL'), (5, '1')`,
	)

	result, err := New(path, nil).CountEvents(context.Background(), "truth", "event_no", "pid")
	require.NoError(t, err)

	assert.Equal(t, []types.GroupCount{
		{Key: []string{"<NULL>"}, Kinds: []string{"null"}, Count: 1},
		{Key: []string{"1"}, Kinds: []string{"integer"}, Count: 1},
		{Key: []string{"1"}, Kinds: []string{"text"}, Count: 2},
		{Key: []string{"NULL"}, Kinds: []string{"text"}, Count: 1},
	}, result.Groups)
	assert.Equal(t, int64(5), result.Total)
}

func TestCountEvents_UnknownColumn(t *testing.T) {
	path := eventsStore(t)
	insp := New(path, nil)

	_, err := insp.CountEvents(context.Background(), "events", "event_no")
	assert.True(t, errors.Is(err, ierrors.ErrUnknownColumn), "index column: got %v", err)

	_, err = insp.CountEvents(context.Background(), "events", "event_id", "pid", "interaction_type")
	assert.True(t, errors.Is(err, ierrors.ErrUnknownColumn), "group column: got %v", err)
	assert.Equal(t, "interaction_type", err.(*ierrors.InspectError).Details["column"])
}

func TestCountEvents_UnknownTable(t *testing.T) {
	path := eventsStore(t)

	_, err := New(path, nil).CountEvents(context.Background(), "truth", "event_id")
	assert.True(t, errors.Is(err, ierrors.ErrUnknownTable), "got %v", err)
}

func TestCountEvents_ReservedWordIdentifiers(t *testing.T) {
	path := newStore(t,
		`CREATE TABLE "order" ("index" INTEGER, "group" TEXT, "we""ird" TEXT)`,
		`INSERT INTO "order" VALUES (1, 'x', 'a'), (2, 'y', 'a'), (3, 'y', 'b')`,
	)
	insp := New(path, nil)

	result, err := insp.CountEvents(context.Background(), "order", "index", "group")
	require.NoError(t, err)
	assert.Equal(t, []types.GroupCount{
		{Key: []string{"x"}, Kinds: []string{"text"}, Count: 1},
		{Key: []string{"y"}, Kinds: []string{"text"}, Count: 2},
	}, result.Groups)

	result, err = insp.CountEvents(context.Background(), "order", "index", `we"ird`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
}

func TestCountEvents_InvalidIdentifier(t *testing.T) {
	path := eventsStore(t)

	_, err := New(path, nil).CountEvents(context.Background(), "events", "")
	require.Error(t, err)
	assert.Equal(t, ierrors.CodeInvalidIdentifier, ierrors.GetCode(err))
}

func TestExplainPlan(t *testing.T) {
	path := kaggleStore(t)

	step, err := New(path, nil).ExplainPlan(context.Background(), "pulse_table", "event_id", DefaultLookupValue)
	require.NoError(t, err)
	assert.NotEmpty(t, step)
	assert.Contains(t, string(step), "INDEX")
}

func TestExplainPlan_UnknownColumn(t *testing.T) {
	path := kaggleStore(t)

	_, err := New(path, nil).ExplainPlan(context.Background(), "pulse_table", "event_no", 1)
	assert.True(t, errors.Is(err, ierrors.ErrUnknownColumn), "got %v", err)
}

func TestStoreUnavailable(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.db")
	require.NoError(t, os.WriteFile(garbage, []byte(strings.Repeat("not an sqlite database\n", 256)), 0644))

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.db")},
		{"directory", dir},
		{"not a database", garbage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insp := New(tt.path, nil)

			_, err := insp.ListTables(context.Background())
			assert.True(t, errors.Is(err, ierrors.ErrStoreUnavailable), "list tables: got %v", err)

			_, err = insp.ListIndexes(context.Background())
			assert.True(t, errors.Is(err, ierrors.ErrStoreUnavailable), "list indexes: got %v", err)
		})
	}
}

func TestStoreIsNotModified(t *testing.T) {
	path := kaggleStore(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = New(path, nil).Inspect(context.Background(), kaggleProfile(), nil)
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("noop", nil))

	err := classify("prepare", sqlite3.Error{Code: sqlite3.ErrError})
	assert.True(t, errors.Is(err, ierrors.ErrMalformedQuery), "got %v", err)

	err = classify("open", sqlite3.Error{Code: sqlite3.ErrNotADB})
	assert.True(t, errors.Is(err, ierrors.ErrStoreUnavailable), "got %v", err)

	assert.Equal(t, context.Canceled, classify("query", context.Canceled))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"truth"`, quoteIdent("truth"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
	assert.Equal(t, `"pid", "energy"`, quoteIdents([]string{"pid", "energy"}))
}

func kaggleProfile() types.Profile {
	return types.Profile{
		Name:        "Kaggle",
		Key:         "kaggle",
		IndexColumn: "event_id",
		TruthTable:  "meta_table",
		PulseTable:  "pulse_table",
	}
}

func TestInspect(t *testing.T) {
	path := kaggleStore(t)
	stats := observability.NewOpStats()

	report, err := New(path, stats).Inspect(context.Background(), kaggleProfile(), nil)
	require.NoError(t, err)
	require.False(t, report.Failed())

	assert.Equal(t, path, report.StorePath)
	assert.Equal(t, []string{"meta_table", "pulse_table"}, report.Tables)
	assert.Equal(t, []types.IndexDescriptor{{Name: "event_no_pulse_table", Table: "pulse_table"}}, report.Indexes)
	assert.Equal(t, []types.ColumnDescriptor{
		{Table: "meta_table", Columns: []string{"event_id", "azimuth", "zenith"}},
		{Table: "pulse_table", Columns: []string{"event_id", "sensor_id", "time", "charge", "auxiliary"}},
	}, report.Columns)
	assert.Equal(t, int64(3), report.Events.Total)
	assert.NotEmpty(t, report.Plan)

	// tables + indexes + 2x columns + count + plan
	calls := map[string]int64{}
	for _, s := range stats.Snapshot() {
		calls[s.Operation] = s.Calls
	}
	assert.Equal(t, map[string]int64{
		"list_tables":  1,
		"list_indexes": 1,
		"list_columns": 2,
		"count_events": 1,
		"explain_plan": 1,
	}, calls)
}

func TestInspect_StopsAtFirstFailure(t *testing.T) {
	path := kaggleStore(t)
	p := kaggleProfile()
	p.TruthTable = "truth"

	report, err := New(path, nil).Inspect(context.Background(), p, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ierrors.ErrUnknownTable))

	require.NotNil(t, report)
	assert.True(t, report.Failed())
	assert.Equal(t, []string{"meta_table", "pulse_table"}, report.Tables)
	assert.False(t, report.Counted)
	assert.Empty(t, report.Plan)
}

func TestInspect_Idempotent(t *testing.T) {
	path := kaggleStore(t)
	insp := New(path, nil)

	first, err := insp.Inspect(context.Background(), kaggleProfile(), nil)
	require.NoError(t, err)
	second, err := insp.Inspect(context.Background(), kaggleProfile(), nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStoreDSN_EscapesPath(t *testing.T) {
	dsn := storeDSN("/data/run?1#x/100%/store.db")
	assert.Equal(t, "file:/data/run%3F1%23x/100%25/store.db?mode=ro&_query_only=true", dsn)
}

func TestListTables_PathWithURIDelimiters(t *testing.T) {
	src := eventsStore(t)

	base := t.TempDir()
	dir := filepath.Join(base, "run?1#x", "50%")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, "store.db")
	require.NoError(t, os.Rename(src, path))

	tables, err := New(path, nil).ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"events"}, tables)

	// Nothing is created next to the real directory.
	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run?1#x", entries[0].Name())
}

func TestInspect_KeepsCountsWhenPlanFails(t *testing.T) {
	path := kaggleStore(t)
	p := kaggleProfile()
	p.PulseTable = "pulses"

	report, err := New(path, nil).Inspect(context.Background(), p, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ierrors.ErrUnknownTable))

	assert.True(t, report.Counted)
	assert.Equal(t, int64(3), report.Events.Total)
	assert.Empty(t, report.Plan)
}
