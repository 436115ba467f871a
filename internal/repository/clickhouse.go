package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// chDB is the subset of *sql.DB the ClickHouse repositories use.
type chDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
}

// insertChunk bounds rows per multi-VALUES insert.
const insertChunk = 1000

func insertQuery(table string, cols []string, rows int) string {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	values := make([]string, rows)
	for i := range values {
		values[i] = placeholder
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), strings.Join(values, ","))
}

// insertRows writes rows in chunks; row(i) must return len(cols) args.
func insertRows(ctx context.Context, db chDB, table string, cols []string, n int, row func(i int) []any) error {
	for start := 0; start < n; start += insertChunk {
		end := start + insertChunk
		if end > n {
			end = n
		}
		args := make([]any, 0, (end-start)*len(cols))
		for i := start; i < end; i++ {
			args = append(args, row(i)...)
		}
		if _, err := db.ExecContext(ctx, insertQuery(table, cols, end-start), args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return nil
}
