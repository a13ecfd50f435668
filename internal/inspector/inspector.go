// Package inspector implements read-only diagnostics over SQLite event stores:
// table and index enumeration, column discovery, event counts and query plans.
//
// Every operation opens its own read-only connection and closes it before
// returning, so operations are independent and may run in any order.
package inspector

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	ierrors "github.com/graphnet-team/datainspect/internal/errors"
	"github.com/graphnet-team/datainspect/internal/observability"
	"github.com/graphnet-team/datainspect/pkg/types"
)

// DefaultLookupValue is the index value used for query plan inspection.
const DefaultLookupValue = 1

// Inspector runs diagnostic queries against a single store file.
type Inspector struct {
	path  string
	stats *observability.OpStats
}

// New creates an inspector for the SQLite store at path.
// stats may be nil when operation statistics are not wanted.
func New(path string, stats *observability.OpStats) *Inspector {
	return &Inspector{
		path:  path,
		stats: stats,
	}
}

// storeDSN builds a read-only SQLite URI for the file at abs. The path is
// percent-escaped so '?', '#' and '%' in directory names stay part of it.
func storeDSN(abs string) string {
	u := url.URL{
		Scheme:   "file",
		OmitHost: true,
		Path:     filepath.ToSlash(abs),
		RawQuery: "mode=ro&_query_only=true",
	}
	return u.String()
}

// open opens a read-only connection to the store and verifies that the file
// is a readable SQLite database. Callers must close the returned handle.
func (i *Inspector) open(ctx context.Context) (*sql.DB, error) {
	info, err := os.Stat(i.path)
	if err != nil {
		return nil, ierrors.NewStoreError(ierrors.CodeStoreUnavailable,
			fmt.Sprintf("store %s cannot be opened", i.path), err)
	}
	if info.IsDir() {
		return nil, ierrors.NewStoreError(ierrors.CodeStoreUnavailable,
			fmt.Sprintf("store %s is a directory", i.path), nil)
	}

	abs, err := filepath.Abs(i.path)
	if err != nil {
		return nil, ierrors.NewStoreError(ierrors.CodeStoreUnavailable,
			fmt.Sprintf("store %s cannot be resolved", i.path), err)
	}

	db, err := sql.Open("sqlite3", storeDSN(abs))
	if err != nil {
		return nil, ierrors.NewStoreError(ierrors.CodeStoreUnavailable,
			fmt.Sprintf("store %s cannot be opened", i.path), err)
	}
	db.SetMaxOpenConns(1)

	// SQLite opens lazily; reading the catalog is what detects a file
	// that exists but is not a database.
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return nil, classify(fmt.Sprintf("open store %s", i.path), err)
	}

	return db, nil
}

// ListTables returns the user tables of the store in catalog order.
// SQLite's internal tables (sqlite_*) are excluded.
func (i *Inspector) ListTables(ctx context.Context) (tables []string, err error) {
	defer i.stats.Track("list_tables")(&err)

	db, err := i.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY rowid
	`)
	if err != nil {
		return nil, classify("list tables", err)
	}
	defer rows.Close()

	tables = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classify("list tables", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list tables", err)
	}
	return tables, nil
}

// ListIndexes returns every index in the store together with its owning
// table, including the automatic indexes SQLite creates for UNIQUE and
// PRIMARY KEY constraints.
func (i *Inspector) ListIndexes(ctx context.Context) (indexes []types.IndexDescriptor, err error) {
	defer i.stats.Track("list_indexes")(&err)

	db, err := i.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT name, tbl_name
		FROM sqlite_master
		WHERE type = 'index'
		ORDER BY rowid
	`)
	if err != nil {
		return nil, classify("list indexes", err)
	}
	defer rows.Close()

	indexes = []types.IndexDescriptor{}
	for rows.Next() {
		var idx types.IndexDescriptor
		if err := rows.Scan(&idx.Name, &idx.Table); err != nil {
			return nil, classify("list indexes", err)
		}
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list indexes", err)
	}
	return indexes, nil
}

// ListColumns returns the columns of table in store-native order, read from
// a one-row sample of the table. Works for empty tables.
func (i *Inspector) ListColumns(ctx context.Context, table string) (columns []string, err error) {
	defer i.stats.Track("list_columns")(&err)

	db, err := i.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	table, err = resolveTable(ctx, db, table)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table)+" LIMIT 1")
	if err != nil {
		return nil, classify("sample "+table, err)
	}
	defer rows.Close()

	columns, err = rows.Columns()
	if err != nil {
		return nil, classify("sample "+table, err)
	}
	return columns, nil
}

// CountEvents counts the events in table by indexColumn. Without groupBy the
// result is a single total; otherwise there is one group per distinct
// combination of groupBy values, ordered by those values.
func (i *Inspector) CountEvents(ctx context.Context, table, indexColumn string, groupBy ...string) (result types.CountResult, err error) {
	defer i.stats.Track("count_events")(&err)

	db, err := i.open(ctx)
	if err != nil {
		return types.CountResult{}, err
	}
	defer db.Close()

	table, err = resolveTable(ctx, db, table)
	if err != nil {
		return types.CountResult{}, err
	}
	if err := requireColumns(ctx, db, table, append([]string{indexColumn}, groupBy...)...); err != nil {
		return types.CountResult{}, err
	}

	countExpr := "COUNT(" + quoteIdent(indexColumn) + ")"
	if len(groupBy) == 0 {
		var total int64
		query := "SELECT " + countExpr + " FROM " + quoteIdent(table)
		if err := db.QueryRowContext(ctx, query).Scan(&total); err != nil {
			return types.CountResult{}, classify("count "+table, err)
		}
		return types.CountResult{Total: total}, nil
	}

	keys := quoteIdents(groupBy)
	typeofs := make([]string, len(groupBy))
	for n, g := range groupBy {
		typeofs[n] = "typeof(" + quoteIdent(g) + ")"
	}
	query := fmt.Sprintf("SELECT %s, %s, %s FROM %s GROUP BY %s ORDER BY %s",
		keys, strings.Join(typeofs, ", "), countExpr, quoteIdent(table), keys, keys)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return types.CountResult{}, classify("count "+table, err)
	}
	defer rows.Close()

	result = types.CountResult{
		GroupBy: append([]string(nil), groupBy...),
		Groups:  []types.GroupCount{},
	}

	width := len(groupBy)
	values := make([]interface{}, width)
	dest := make([]interface{}, 2*width+1)
	for n := range values {
		dest[n] = &values[n]
	}

	for rows.Next() {
		var count int64
		kinds := make([]string, width)
		for n := range kinds {
			dest[width+n] = &kinds[n]
		}
		dest[2*width] = &count
		if err := rows.Scan(dest...); err != nil {
			return types.CountResult{}, classify("count "+table, err)
		}

		key := make([]string, width)
		for n, v := range values {
			key[n] = formatValue(v)
		}
		result.Groups = append(result.Groups, types.GroupCount{Key: key, Kinds: kinds, Count: count})
		result.Total += count
	}
	if err := rows.Err(); err != nil {
		return types.CountResult{}, classify("count "+table, err)
	}
	return result, nil
}

// ExplainPlan asks the planner how it would execute an equality lookup of
// value on table.indexColumn and returns the first line of its answer.
// The text is planner-dependent and meant for a human checking whether an
// index is used.
func (i *Inspector) ExplainPlan(ctx context.Context, table, indexColumn string, value interface{}) (step types.QueryPlanStep, err error) {
	defer i.stats.Track("explain_plan")(&err)

	db, err := i.open(ctx)
	if err != nil {
		return "", err
	}
	defer db.Close()

	table, err = resolveTable(ctx, db, table)
	if err != nil {
		return "", err
	}
	if err := requireColumns(ctx, db, table, indexColumn); err != nil {
		return "", err
	}

	query := fmt.Sprintf("EXPLAIN QUERY PLAN SELECT * FROM %s WHERE %s = ?",
		quoteIdent(table), quoteIdent(indexColumn))
	rows, err := db.QueryContext(ctx, query, value)
	if err != nil {
		return "", classify("explain "+table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", classify("explain "+table, err)
	}
	detail := len(columns) - 1
	for n, c := range columns {
		if strings.EqualFold(c, "detail") {
			detail = n
		}
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", classify("explain "+table, err)
		}
		return "", ierrors.NewQueryError(ierrors.CodeEmptyPlan,
			fmt.Sprintf("planner returned no steps for %s.%s", table, indexColumn), nil)
	}

	values := make([]interface{}, len(columns))
	dest := make([]interface{}, len(columns))
	for n := range values {
		dest[n] = &values[n]
	}
	if err := rows.Scan(dest...); err != nil {
		return "", classify("explain "+table, err)
	}

	return types.QueryPlanStep(formatValue(values[detail])), nil
}

// Inspect runs all diagnostics for profile p in a fixed order: tables,
// indexes, columns per table, event counts on the truth table and the query
// plan on the pulse table. It stops at the first failure and returns the
// partially filled report together with the error.
func (i *Inspector) Inspect(ctx context.Context, p types.Profile, lookup interface{}) (*types.Report, error) {
	report := &types.Report{
		Profile:   p.Clone(),
		StorePath: i.path,
	}

	fail := func(err error) (*types.Report, error) {
		report.Err = err
		return report, err
	}

	tables, err := i.ListTables(ctx)
	if err != nil {
		return fail(err)
	}
	report.Tables = tables

	indexes, err := i.ListIndexes(ctx)
	if err != nil {
		return fail(err)
	}
	report.Indexes = indexes

	report.Columns = make([]types.ColumnDescriptor, 0, len(tables))
	for _, table := range tables {
		columns, err := i.ListColumns(ctx, table)
		if err != nil {
			return fail(err)
		}
		report.Columns = append(report.Columns, types.ColumnDescriptor{Table: table, Columns: columns})
	}

	events, err := i.CountEvents(ctx, p.TruthTable, p.IndexColumn, p.GroupBy...)
	if err != nil {
		return fail(err)
	}
	report.Events = events
	report.Counted = true

	if lookup == nil {
		lookup = DefaultLookupValue
	}
	plan, err := i.ExplainPlan(ctx, p.PulseTable, p.IndexColumn, lookup)
	if err != nil {
		return fail(err)
	}
	report.Plan = plan

	return report, nil
}
