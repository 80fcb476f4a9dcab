package federation

import "time"

// Request is one federated query as received from the caller, after the API
// layer has applied defaults. ConnectionIDs keeps the caller's order; the
// first entry is the fallback owner for unqualified table names.
type Request struct {
	Query           string
	ConnectionIDs   []string
	DatabaseAliases map[string]string
	Timeout         time.Duration
	ApplyLimit      bool
	LimitValue      int
}

type MergeKind string

const (
	MergeNone      MergeKind = "none"
	MergeInnerJoin MergeKind = "inner_join"
	MergeLeftJoin  MergeKind = "left_join"
	MergeUnion     MergeKind = "union"
)

// MergeStrategy describes how independently fetched sub-query results are
// recombined. Conditions is only meaningful for the join kinds, UnionAll
// only for MergeUnion.
type MergeStrategy struct {
	Kind       MergeKind
	Conditions []JoinCondition
	UnionAll   bool
}

// JoinCondition is one equality predicate extracted from an ON clause.
// Tables carry the resolved table names for diagnostics; Relations carry the
// result aliases the merge SQL joins on.
type JoinCondition struct {
	LeftTable     string
	LeftColumn    string
	RightTable    string
	RightColumn   string
	LeftRelation  string
	RightRelation string
}

// SubQuery is one engine-scoped fragment of the original query. SQL is
// dialect-neutral; the executor translates it per target engine. EngineType
// is empty until execution because the planner performs no I/O.
type SubQuery struct {
	ConnectionID string
	EngineType   string
	SQL          string
	Tables       []string
	ResultAlias  string
}

type ExecutionPlan struct {
	Query      string
	SubQueries []SubQuery
	Strategy   MergeStrategy
	Timeout    time.Duration
	ApplyLimit bool
	LimitValue int
}

// SubQueryReport describes one executed sub-query in the response.
type SubQueryReport struct {
	ConnectionID    string `json:"connection_id"`
	DatabaseType    string `json:"database_type"`
	Query           string `json:"query"`
	RowCount        int    `json:"row_count"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

type Response struct {
	OriginalQuery   string           `json:"original_query"`
	SubQueries      []SubQueryReport `json:"sub_queries"`
	MergedRows      []map[string]any `json:"merged_rows"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
	LimitApplied    bool             `json:"limit_applied"`
}
