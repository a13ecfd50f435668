package inspector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	ierrors "github.com/graphnet-team/datainspect/internal/errors"
)

// Identifiers from profiles are checked against the store's own catalog
// before they are spliced into query text, and always emitted quoted.

// validateIdent rejects identifiers SQLite cannot represent even when quoted.
func validateIdent(kind, name string) error {
	if name == "" || strings.ContainsRune(name, 0) {
		return ierrors.NewSchemaError(ierrors.CodeInvalidIdentifier,
			fmt.Sprintf("invalid %s identifier %q", kind, name))
	}
	return nil
}

// quoteIdent quotes name as an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteIdents quotes and joins names with ", ".
func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for n, name := range names {
		quoted[n] = quoteIdent(name)
	}
	return strings.Join(quoted, ", ")
}

// resolveTable looks table up in the catalog and returns its stored name.
// SQLite resolves identifiers case-insensitively, and so does the lookup.
func resolveTable(ctx context.Context, db *sql.DB, table string) (string, error) {
	if err := validateIdent("table", table); err != nil {
		return "", err
	}

	var name string
	err := db.QueryRowContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type IN ('table', 'view') AND name = ? COLLATE NOCASE
		LIMIT 1
	`, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ierrors.NewSchemaError(ierrors.CodeUnknownTable,
			fmt.Sprintf("unknown table %q", table)).
			WithDetails(map[string]interface{}{"table": table})
	}
	if err != nil {
		return "", classify("resolve table "+table, err)
	}
	return name, nil
}

// tableColumns returns the declared columns of table in cid order.
func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, classify("table info "+table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classify("table info "+table, err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("table info "+table, err)
	}
	return columns, nil
}

// requireColumns fails with UnknownColumn for the first name that is not a
// column of table.
func requireColumns(ctx context.Context, db *sql.DB, table string, names ...string) error {
	for _, name := range names {
		if err := validateIdent("column", name); err != nil {
			return err
		}
	}

	columns, err := tableColumns(ctx, db, table)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[strings.ToLower(c)] = struct{}{}
	}
	for _, name := range names {
		if _, ok := known[strings.ToLower(name)]; !ok {
			return ierrors.NewSchemaError(ierrors.CodeUnknownColumn,
				fmt.Sprintf("unknown column %q in table %q", name, table)).
				WithDetails(map[string]interface{}{"table": table, "column": name})
		}
	}
	return nil
}

// classify maps a driver error onto the inspector's error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrPerm,
			sqlite3.ErrAuth, sqlite3.ErrCorrupt, sqlite3.ErrIoErr, sqlite3.ErrReadonly:
			return ierrors.NewStoreError(ierrors.CodeStoreUnavailable, op, err)
		}
	}
	return ierrors.NewQueryError(ierrors.CodeMalformedQuery, op, err)
}

// formatValue renders a scanned SQLite value for display and grouping keys.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "<NULL>"
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
