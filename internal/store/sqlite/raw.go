package sqlite

import (
	"context"
	"fmt"

	"github.com/iudanet/possync/internal/store"
)

// Execute runs a statement and reports affected rows and the last inserted rowid
func (s *Storage) Execute(ctx context.Context, statement string, args ...any) (store.ExecResult, error) {
	if err := s.checkReady(); err != nil {
		return store.ExecResult{}, err
	}

	res, err := s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return store.ExecResult{}, store.Wrap("execute", err)
	}

	var out store.ExecResult
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return store.ExecResult{}, store.Wrap("execute", err)
	}
	if out.LastInsertID, err = res.LastInsertId(); err != nil {
		return store.ExecResult{}, store.Wrap("execute", err)
	}

	return out, nil
}

// Query runs a statement and returns all rows in result order
func (s *Storage) Query(ctx context.Context, statement string, args ...any) ([]store.Row, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, store.Wrap("query", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, store.Wrap("query", fmt.Errorf("failed to read columns: %w", err))
	}

	result := make([]store.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, store.Wrap("query", fmt.Errorf("failed to scan row: %w", err))
		}

		row := make(store.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, store.Wrap("query", err)
	}

	return result, nil
}
