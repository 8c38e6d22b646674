package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vidmetrics/vidmetrics/internal/query"
)

// Engine runs statements against the Postgres store. Each call holds its own
// connection and read-only transaction for the lifetime of the statement.
type Engine struct {
	db *sql.DB
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if e.db == nil {
		return query.Result{}, fmt.Errorf("store db is required")
	}
	if request.SQL == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	start := time.Now()

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return query.Result{}, fmt.Errorf("acquire store connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return query.Result{}, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, request.SQL)
	if err != nil {
		return query.Result{}, fmt.Errorf("run statement: %w", err)
	}
	result, err := scanRows(rows)
	if err != nil {
		return query.Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return query.Result{}, fmt.Errorf("commit read-only transaction: %w", err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Engine) HealthCheck(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store db: %w", err)
	}
	return nil
}

func scanRows(rows *sql.Rows) (query.Result, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("read result columns: %w", err)
	}
	outRows := make([][]any, 0, 1)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return query.Result{}, fmt.Errorf("scan result row: %w", err)
		}
		for i, value := range values {
			if raw, ok := value.([]byte); ok {
				values[i] = string(raw)
			}
		}
		outRows = append(outRows, values)
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate result rows: %w", err)
	}
	return query.Result{Columns: columns, Rows: outRows}, nil
}
