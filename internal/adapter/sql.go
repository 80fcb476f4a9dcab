package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqlAdapter runs queries through a database/sql pool. Postgres, MySQL, and
// Doris all share this path and differ only in driver and DSN.
type sqlAdapter struct {
	engine string
	db     *sql.DB
}

func newSQLAdapter(engine string, db *sql.DB) *sqlAdapter {
	return &sqlAdapter{engine: engine, db: db}
}

func openPool(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", driver, err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

func (a *sqlAdapter) EngineType() string { return a.engine }

func (a *sqlAdapter) ExecuteQuery(ctx context.Context, sqlText string) (Result, error) {
	start := time.Now()
	rows, err := a.db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	records := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[column] = normalizeValue(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{Rows: records, RowCount: len(records), Elapsed: time.Since(start)}, nil
}

const postgresColumnsSQL = `SELECT table_schema, table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_schema, table_name, ordinal_position`

const mysqlColumnsSQL = `SELECT TABLE_SCHEMA AS table_schema, TABLE_NAME AS table_name,
COLUMN_NAME AS column_name, DATA_TYPE AS data_type, IS_NULLABLE AS is_nullable
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
ORDER BY TABLE_SCHEMA, TABLE_NAME, ORDINAL_POSITION`

// Metadata lists user tables and their columns from the source's
// information schema. System schemas are excluded per engine.
func (a *sqlAdapter) Metadata(ctx context.Context) ([]TableMetadata, error) {
	introspection := mysqlColumnsSQL
	if a.engine == EnginePostgres {
		introspection = postgresColumnsSQL
	}
	result, err := a.ExecuteQuery(ctx, introspection)
	if err != nil {
		return nil, fmt.Errorf("introspect %s schema: %w", a.engine, err)
	}
	return foldColumnRows(result.Rows), nil
}

func (a *sqlAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *sqlAdapter) Close() error {
	return a.db.Close()
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}
