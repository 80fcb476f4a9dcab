// Package duckdb runs merge SQL over staged relations inside an in-memory
// DuckDB database. Each relation becomes a real table so joins, unions, and
// aggregations behave exactly like native SQL.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/fedquery/fedquery/internal/columnar"
	"github.com/fedquery/fedquery/internal/merge"
)

const insertChunkRows = 500

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Execute(ctx context.Context, request merge.Request) (merge.Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return merge.Result{}, fmt.Errorf("sql is required")
	}
	if len(request.Relations) == 0 {
		return merge.Result{}, fmt.Errorf("no relations to merge")
	}

	start := time.Now()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return merge.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	for _, relation := range request.Relations {
		if err := stageRelation(ctx, db, relation); err != nil {
			return merge.Result{}, err
		}
	}

	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return merge.Result{}, fmt.Errorf("sql is required")
	}
	if request.RowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, request.RowLimit)
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return merge.Result{}, fmt.Errorf("execute merge query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return merge.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return merge.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return merge.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return merge.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func stageRelation(ctx context.Context, db *sql.DB, relation merge.Relation) error {
	fields := relation.Batch.Fields()
	if len(fields) == 0 {
		// empty relation still needs a table so the merge SQL can reference it
		createSQL := fmt.Sprintf(`CREATE TABLE %s (placeholder VARCHAR)`, quoteIdent(relation.Name))
		if _, err := db.ExecContext(ctx, createSQL); err != nil {
			return fmt.Errorf("create relation %q: %w", relation.Name, err)
		}
		return nil
	}

	columnDefs := make([]string, len(fields))
	for i, field := range fields {
		columnDefs[i] = fmt.Sprintf("%s %s", quoteIdent(field.Name), duckdbType(field.Type))
	}
	createSQL := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(relation.Name), strings.Join(columnDefs, ", "))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create relation %q: %w", relation.Name, err)
	}

	rows := relation.Batch.Rows()
	for offset := 0; offset < len(rows); offset += insertChunkRows {
		end := offset + insertChunkRows
		if end > len(rows) {
			end = len(rows)
		}
		if err := insertChunk(ctx, db, relation.Name, fields, rows[offset:end]); err != nil {
			return err
		}
	}
	return nil
}

func insertChunk(ctx context.Context, db *sql.DB, name string, fields []columnar.Field, rows []map[string]any) error {
	rowPlaceholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(fields)), ",") + ")"
	placeholders := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(fields))
	for i, row := range rows {
		placeholders[i] = rowPlaceholders
		for _, field := range fields {
			args = append(args, row[field.Name])
		}
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %s VALUES %s`, quoteIdent(name), strings.Join(placeholders, ", "))
	if _, err := db.ExecContext(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("insert into relation %q: %w", name, err)
	}
	return nil
}

func duckdbType(fieldType columnar.FieldType) string {
	switch fieldType {
	case columnar.TypeInt64:
		return "BIGINT"
	case columnar.TypeFloat64:
		return "DOUBLE"
	case columnar.TypeBool:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
