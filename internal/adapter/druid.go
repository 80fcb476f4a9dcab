package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// druidAdapter talks to Druid's SQL endpoint over HTTP, requesting object
// result format so each row arrives as a column-name keyed record.
type druidAdapter struct {
	baseURL string
	client  *http.Client
}

func NewDruid(source Source) Adapter {
	scheme := "http"
	if source.Params["scheme"] != "" {
		scheme = source.Params["scheme"]
	}
	return &druidAdapter{
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, source.Host, source.Port),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

type druidSQLRequest struct {
	Query        string `json:"query"`
	ResultFormat string `json:"resultFormat"`
}

func (a *druidAdapter) EngineType() string { return EngineDruid }

func (a *druidAdapter) ExecuteQuery(ctx context.Context, sqlText string) (Result, error) {
	start := time.Now()
	payload, err := json.Marshal(druidSQLRequest{Query: sqlText, ResultFormat: "object"})
	if err != nil {
		return Result{}, fmt.Errorf("encode druid request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/druid/v2/sql/", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build druid request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := a.client.Do(request)
	if err != nil {
		return Result{}, fmt.Errorf("call druid: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return Result{}, fmt.Errorf("druid returned status %d: %s", response.StatusCode, string(body))
	}

	var rows []map[string]any
	if err := json.NewDecoder(response.Body).Decode(&rows); err != nil {
		return Result{}, fmt.Errorf("decode druid response: %w", err)
	}

	return Result{Rows: rows, RowCount: len(rows), Elapsed: time.Since(start)}, nil
}

const druidColumnsSQL = `SELECT TABLE_SCHEMA AS table_schema, TABLE_NAME AS table_name,
COLUMN_NAME AS column_name, DATA_TYPE AS data_type, IS_NULLABLE AS is_nullable
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = 'druid'
ORDER BY TABLE_NAME, ORDINAL_POSITION`

// Metadata lists datasources and their columns through Druid's SQL
// information schema.
func (a *druidAdapter) Metadata(ctx context.Context) ([]TableMetadata, error) {
	result, err := a.ExecuteQuery(ctx, druidColumnsSQL)
	if err != nil {
		return nil, fmt.Errorf("introspect druid schema: %w", err)
	}
	return foldColumnRows(result.Rows), nil
}

func (a *druidAdapter) Ping(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/status/health", nil)
	if err != nil {
		return fmt.Errorf("build druid health request: %w", err)
	}
	response, err := a.client.Do(request)
	if err != nil {
		return fmt.Errorf("call druid health: %w", err)
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("druid health returned status %d", response.StatusCode)
	}
	return nil
}

func (a *druidAdapter) Close() error { return nil }
