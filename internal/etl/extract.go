package etl

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLExtractor emits one record per row of Query, keyed by column name.
type SQLExtractor struct {
	DB    *sql.DB
	Query string
	Args  []any
}

func (e *SQLExtractor) Extract(ctx context.Context, emit func(Record) error) error {
	rows, err := e.DB.QueryContext(ctx, e.Query, e.Args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SliceExtractor emits a fixed set of records.
type SliceExtractor []Record

func (s SliceExtractor) Extract(_ context.Context, emit func(Record) error) error {
	for _, rec := range s {
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}
