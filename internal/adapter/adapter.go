// Package adapter provides per-engine connectors that run a translated
// sub-query against one external database and return its rows.
package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	EnginePostgres = "postgresql"
	EngineMySQL    = "mysql"
	EngineDoris    = "doris"
	EngineDruid    = "druid"
)

// Source holds the connection parameters of one registered database.
type Source struct {
	ID       string
	Engine   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Params   map[string]string
}

type Result struct {
	Rows     []map[string]any
	RowCount int
	Elapsed  time.Duration
}

type ColumnMetadata struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// TableMetadata describes one table of a source database as seen through
// its information schema.
type TableMetadata struct {
	Schema  string           `json:"schema,omitempty"`
	Name    string           `json:"name"`
	Columns []ColumnMetadata `json:"columns"`
}

type Adapter interface {
	EngineType() string
	ExecuteQuery(ctx context.Context, sqlText string) (Result, error)
	Metadata(ctx context.Context) ([]TableMetadata, error)
	Ping(ctx context.Context) error
	Close() error
}

// New builds the adapter matching the source's engine type.
func New(ctx context.Context, source Source) (Adapter, error) {
	switch source.Engine {
	case EnginePostgres:
		return NewPostgres(ctx, source)
	case EngineMySQL, EngineDoris:
		return NewMySQLFamily(ctx, source)
	case EngineDruid:
		return NewDruid(source), nil
	default:
		return nil, fmt.Errorf("unsupported engine type %q", source.Engine)
	}
}

// foldColumnRows groups information-schema column rows into per-table
// metadata, preserving row order. Rows carry lowercase keys table_schema,
// table_name, column_name, data_type and is_nullable.
func foldColumnRows(rows []map[string]any) []TableMetadata {
	tables := make([]TableMetadata, 0)
	index := make(map[string]int)
	for _, row := range rows {
		schema := stringValue(row["table_schema"])
		table := stringValue(row["table_name"])
		if table == "" {
			continue
		}
		key := schema + "." + table
		position, seen := index[key]
		if !seen {
			position = len(tables)
			index[key] = position
			tables = append(tables, TableMetadata{Schema: schema, Name: table})
		}
		tables[position].Columns = append(tables[position].Columns, ColumnMetadata{
			Name:     stringValue(row["column_name"]),
			DataType: stringValue(row["data_type"]),
			Nullable: strings.EqualFold(stringValue(row["is_nullable"]), "YES"),
		})
	}
	return tables
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}
