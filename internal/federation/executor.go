package federation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fedquery/fedquery/internal/adapter"
	"github.com/fedquery/fedquery/internal/columnar"
	"github.com/fedquery/fedquery/internal/merge"
	"github.com/fedquery/fedquery/internal/observability"
)

// AdapterProvider resolves a connection ID into a live adapter.
type AdapterProvider interface {
	Get(ctx context.Context, connectionID string) (adapter.Adapter, error)
}

// Translator rewrites dialect-neutral SQL into the target engine's dialect.
type Translator interface {
	Translate(engine, sql string) (string, error)
}

// ResultCache stores complete responses keyed by request fingerprint.
type ResultCache interface {
	Get(key string) (Response, bool)
	Set(key string, value Response)
}

// Executor plans, dispatches, and merges federated queries. Sub-queries run
// concurrently, one goroutine per target connection, each bounded by the
// plan's timeout.
type Executor struct {
	Planner    *Planner
	Adapters   AdapterProvider
	Translator Translator
	Merger     merge.Engine
	Cache      ResultCache
	Logger     *slog.Logger
}

func (e *Executor) Execute(ctx context.Context, request Request) (Response, error) {
	start := time.Now()

	plan, err := e.Planner.Plan(request)
	if err != nil {
		observability.ObserveFederationRequest("plan", "error")
		return Response{}, err
	}

	cacheKey := ""
	if e.Cache != nil {
		cacheKey = requestFingerprint(request)
		if cached, ok := e.Cache.Get(cacheKey); ok {
			observability.IncrementResultCacheHit()
			return cached, nil
		}
	}

	results, err := e.dispatch(ctx, plan)
	if err != nil {
		observability.ObserveFederationRequest(string(plan.Strategy.Kind), "error")
		return Response{}, err
	}

	response := Response{
		OriginalQuery: request.Query,
		SubQueries:    make([]SubQueryReport, len(results)),
	}
	for i, result := range results {
		response.SubQueries[i] = result.report
	}

	if plan.Strategy.Kind == MergeNone {
		response.MergedRows = results[0].rows
		if response.MergedRows == nil {
			response.MergedRows = []map[string]any{}
		}
	} else {
		merged, err := e.merge(ctx, plan, results)
		if err != nil {
			observability.ObserveFederationRequest(string(plan.Strategy.Kind), "error")
			return Response{}, err
		}
		response.MergedRows = merged
		response.LimitApplied = plan.ApplyLimit
	}

	response.ExecutionTimeMs = time.Since(start).Milliseconds()
	observability.ObserveFederationRequest(string(plan.Strategy.Kind), "success")

	if e.Cache != nil {
		e.Cache.Set(cacheKey, response)
	}
	return response, nil
}

type subQueryResult struct {
	report SubQueryReport
	rows   []map[string]any
	err    error
}

func (e *Executor) dispatch(ctx context.Context, plan *ExecutionPlan) ([]subQueryResult, error) {
	results := make([]subQueryResult, len(plan.SubQueries))

	var wg sync.WaitGroup
	for i, subQuery := range plan.SubQueries {
		wg.Add(1)
		go func(index int, subQuery SubQuery) {
			defer wg.Done()
			results[index] = e.runSubQuery(ctx, subQuery, plan.Timeout)
		}(i, subQuery)
	}
	wg.Wait()

	for _, result := range results {
		if result.err != nil {
			return nil, result.err
		}
	}
	return results, nil
}

func (e *Executor) runSubQuery(ctx context.Context, subQuery SubQuery, timeout time.Duration) subQueryResult {
	connected, err := e.Adapters.Get(ctx, subQuery.ConnectionID)
	if err != nil {
		return subQueryResult{err: &ConnectionError{ConnectionID: subQuery.ConnectionID, Cause: err}}
	}
	engine := connected.EngineType()

	translated, err := e.Translator.Translate(engine, subQuery.SQL)
	if err != nil {
		return subQueryResult{err: &InvalidSQLError{SQL: subQuery.SQL, Reason: "dialect translation failed", Cause: err}}
	}

	subCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := connected.ExecuteQuery(subCtx, translated)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(subCtx.Err(), context.DeadlineExceeded) {
			observability.IncrementFederationTimeout()
			return subQueryResult{err: &TimeoutError{ConnectionID: subQuery.ConnectionID, Engine: engine, Timeout: timeout}}
		}
		return subQueryResult{err: &ExecutionError{ConnectionID: subQuery.ConnectionID, Engine: engine, SQL: translated, Cause: err}}
	}
	observability.ObserveSubQuery(engine, result.Elapsed)

	return subQueryResult{
		report: SubQueryReport{
			ConnectionID:    subQuery.ConnectionID,
			DatabaseType:    engine,
			Query:           translated,
			RowCount:        result.RowCount,
			ExecutionTimeMs: result.Elapsed.Milliseconds(),
		},
		rows: result.Rows,
	}
}

func (e *Executor) merge(ctx context.Context, plan *ExecutionPlan, results []subQueryResult) ([]map[string]any, error) {
	relations := make([]merge.Relation, len(results))
	for i, result := range results {
		batch, warnings := columnar.FromRows(result.rows)
		for _, warning := range warnings {
			e.warn("relation column degraded",
				"relation", plan.SubQueries[i].ResultAlias,
				"connection_id", plan.SubQueries[i].ConnectionID,
				"detail", warning)
		}
		relations[i] = merge.Relation{Name: plan.SubQueries[i].ResultAlias, Batch: batch}
	}

	mergeSQL := e.buildMergeSQL(plan)
	rowLimit := 0
	if plan.ApplyLimit {
		rowLimit = plan.LimitValue
	}

	result, err := e.Merger.Execute(ctx, merge.Request{
		SQL:       mergeSQL,
		RowLimit:  rowLimit,
		Relations: relations,
	})
	if err != nil {
		return nil, &ExecutionError{SQL: mergeSQL, Cause: fmt.Errorf("merge: %w", err)}
	}
	observability.ObserveMerge(result.Duration)

	rows := make([]map[string]any, len(result.Rows))
	for i, values := range result.Rows {
		row := make(map[string]any, len(result.Columns))
		for j, column := range result.Columns {
			row[column] = values[j]
		}
		rows[i] = row
	}
	return rows, nil
}

func (e *Executor) warn(msg string, args ...any) {
	if e.Logger != nil {
		e.Logger.Warn(msg, args...)
	}
}

// buildMergeSQL produces the SQL the merge engine runs over the staged
// relations. Joins chain every extracted condition; a relation no condition
// reaches degrades to a cross join with a warning.
func (e *Executor) buildMergeSQL(plan *ExecutionPlan) string {
	aliases := make([]string, len(plan.SubQueries))
	for i, subQuery := range plan.SubQueries {
		aliases[i] = subQuery.ResultAlias
	}

	if plan.Strategy.Kind == MergeUnion {
		arms := make([]string, len(aliases))
		for i, alias := range aliases {
			arms[i] = "SELECT * FROM " + alias
		}
		separator := " UNION "
		if plan.Strategy.UnionAll {
			separator = " UNION ALL "
		}
		return strings.Join(arms, separator)
	}

	joinWord := "JOIN"
	if plan.Strategy.Kind == MergeLeftJoin {
		joinWord = "LEFT JOIN"
	}

	var builder strings.Builder
	builder.WriteString("SELECT * FROM ")
	builder.WriteString(aliases[0])
	joined := map[string]bool{aliases[0]: true}

	for _, alias := range aliases[1:] {
		conditions := conditionsFor(plan.Strategy.Conditions, alias, joined)
		if len(conditions) == 0 {
			e.warn("no join condition for relation, falling back to cross join", "relation", alias)
			observability.IncrementCartesianFallback()
			builder.WriteString(" CROSS JOIN ")
			builder.WriteString(alias)
		} else {
			builder.WriteString(" ")
			builder.WriteString(joinWord)
			builder.WriteString(" ")
			builder.WriteString(alias)
			builder.WriteString(" ON ")
			builder.WriteString(strings.Join(conditions, " AND "))
		}
		joined[alias] = true
	}
	return builder.String()
}

// conditionsFor returns the rendered predicates connecting alias to any
// already joined relation.
func conditionsFor(conditions []JoinCondition, alias string, joined map[string]bool) []string {
	var rendered []string
	for _, condition := range conditions {
		left := condition.LeftRelation + "." + condition.LeftColumn
		right := condition.RightRelation + "." + condition.RightColumn
		if condition.LeftRelation == alias && joined[condition.RightRelation] {
			rendered = append(rendered, left+" = "+right)
		} else if condition.RightRelation == alias && joined[condition.LeftRelation] {
			rendered = append(rendered, left+" = "+right)
		}
	}
	return rendered
}

// requestFingerprint derives a stable cache key from everything that can
// change the response.
func requestFingerprint(request Request) string {
	hasher := sha256.New()
	fmt.Fprintf(hasher, "%s\x00%s\x00%t\x00%d\x00%s",
		request.Query,
		strings.Join(request.ConnectionIDs, ","),
		request.ApplyLimit,
		request.LimitValue,
		request.Timeout,
	)
	aliasKeys := make([]string, 0, len(request.DatabaseAliases))
	for key := range request.DatabaseAliases {
		aliasKeys = append(aliasKeys, key)
	}
	sort.Strings(aliasKeys)
	for _, key := range aliasKeys {
		fmt.Fprintf(hasher, "\x00%s=%s", key, request.DatabaseAliases[key])
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
