package nl2sql

import "context"

type TableContext struct {
	TableName  string   `json:"table_name"`
	Columns    []string `json:"columns"`
	SampleRows [][]any  `json:"sample_rows,omitempty"`
}

// ConnectionContext describes one registered database the generated query
// may reference.
type ConnectionContext struct {
	ConnectionID string         `json:"connection_id"`
	Engine       string         `json:"engine"`
	Tables       []TableContext `json:"tables"`
}

type Request struct {
	NaturalLanguage string              `json:"natural_language"`
	Connections     []ConnectionContext `json:"connections"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
