package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/vidmetrics/vidmetrics/internal/query"
	"github.com/vidmetrics/vidmetrics/internal/storage"
)

const (
	TableVideos    = "videos"
	TableSnapshots = "video_snapshots"
)

// Exported timestamps are stored as unix milliseconds; the views turn them
// back into TIMESTAMP columns under the store's column names.
var tableProjections = map[string]string{
	TableVideos: `id, creator_id, epoch_ms(video_created_at_unix_ms) AS video_created_at,
views_count, likes_count, comments_count, reports_count,
epoch_ms(created_at_unix_ms) AS created_at, epoch_ms(updated_at_unix_ms) AS updated_at`,
	TableSnapshots: `id, video_id, views_count, likes_count, comments_count, reports_count,
delta_views_count, delta_likes_count, delta_comments_count, delta_reports_count,
epoch_ms(created_at_unix_ms) AS created_at, epoch_ms(updated_at_unix_ms) AS updated_at`,
}

// Engine runs statements in an embedded DuckDB over the Parquet exports of
// the store tables. Every call opens a fresh in-memory database.
type Engine struct {
	Store  storage.ObjectStore
	Tables []query.TableFile
}

// NewEngine returns an engine that reads tables from store. Requests that
// name no files fall back to tables.
func NewEngine(store storage.ObjectStore, tables []query.TableFile) *Engine {
	return &Engine{Store: store, Tables: tables}
}

// DefaultTables lists the export objects written under prefix.
func DefaultTables(prefix string) ([]query.TableFile, error) {
	tables := make([]query.TableFile, 0, 2)
	for _, name := range []string{TableVideos, TableSnapshots} {
		objectPath, err := storage.TablePath(prefix, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, query.TableFile{TableName: name, ObjectPath: objectPath})
	}
	return tables, nil
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	files := request.Files
	if len(files) == 0 {
		files = e.Tables
	}
	if len(files) == 0 {
		return query.Result{}, fmt.Errorf("no table files configured")
	}
	if e.Store == nil {
		return query.Result{}, fmt.Errorf("object store is required")
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "vidmetrics-duckdb-")
	if err != nil {
		return query.Result{}, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	groupedPaths := map[string][]string{}
	for index, file := range files {
		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(file.TableName), index))
		if err := e.download(ctx, file.ObjectPath, localPath); err != nil {
			return query.Result{}, err
		}
		groupedPaths[file.TableName] = append(groupedPaths[file.TableName], localPath)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	for tableName, localPaths := range groupedPaths {
		if _, err := db.ExecContext(ctx, viewStatement(tableName, localPaths)); err != nil {
			return query.Result{}, fmt.Errorf("create view for table %q: %w", tableName, err)
		}
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute statement: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0, 1)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

// HealthCheck reports an error when a table export is missing or empty.
func (e *Engine) HealthCheck(ctx context.Context) error {
	if e.Store == nil {
		return fmt.Errorf("object store is not configured")
	}
	for _, table := range e.Tables {
		info, err := e.Store.Stat(ctx, table.ObjectPath)
		if err != nil {
			return fmt.Errorf("table %s export %q: %w", table.TableName, table.ObjectPath, err)
		}
		if info.Size == 0 {
			return fmt.Errorf("table %s export %q is empty", table.TableName, table.ObjectPath)
		}
	}
	return nil
}

func (e *Engine) download(ctx context.Context, objectPath, localPath string) error {
	reader, err := e.Store.Get(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("get object %q: %w", objectPath, err)
	}
	defer func() { _ = reader.Close() }()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local parquet file %q: %w", localPath, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	return file.Close()
}

func viewStatement(tableName string, localPaths []string) string {
	projection, ok := tableProjections[tableName]
	if !ok {
		projection = "*"
	}
	return fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT %s FROM read_parquet(%s)`,
		quoteIdent(tableName), projection, quoteStringArray(localPaths))
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case goduckdb.Decimal:
			normalized[i] = decimalToRat(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func decimalToRat(value goduckdb.Decimal) *big.Rat {
	if value.Value == nil {
		return nil
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(value.Scale)), nil)
	return new(big.Rat).SetFrac(value.Value, scale)
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
