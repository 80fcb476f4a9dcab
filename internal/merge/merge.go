package merge

import (
	"context"
	"time"

	"github.com/fedquery/fedquery/internal/columnar"
)

// Relation is one named row set staged into the merge engine. The name is
// the identifier the merge SQL refers to.
type Relation struct {
	Name  string
	Batch columnar.Batch
}

type Request struct {
	SQL       string
	RowLimit  int
	Relations []Relation
}

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Engine joins and combines staged relations with plain SQL.
type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
