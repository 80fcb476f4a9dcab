package federation

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/fedquery/fedquery/internal/sqltext"
)

// Planner decomposes a unified SQL statement into per-connection sub-queries
// plus a merge strategy. Planning is synchronous and performs no I/O.
type Planner struct {
	Logger *slog.Logger
}

func (p *Planner) Plan(req Request) (*ExecutionPlan, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, validationf("query is required")
	}
	if len(req.ConnectionIDs) == 0 {
		return nil, validationf("at least one connection id is required")
	}

	stmt, err := sqlparser.Parse(sqltext.NormalizeQuotes(query))
	if err != nil {
		return nil, &InvalidSQLError{SQL: req.Query, Reason: "parse failed", Cause: err}
	}

	plan := &ExecutionPlan{
		Query:      req.Query,
		Timeout:    req.Timeout,
		ApplyLimit: req.ApplyLimit,
		LimitValue: req.LimitValue,
	}

	switch s := stmt.(type) {
	case *sqlparser.Union:
		return p.planUnion(req, plan, s)
	case *sqlparser.Select:
		return p.planSelect(req, plan, s)
	default:
		return nil, &InvalidSQLError{
			SQL:    req.Query,
			Reason: fmt.Sprintf("unsupported statement %T, only SELECT is allowed", stmt),
		}
	}
}

// tableRef is one table mentioned in a FROM clause, before and after
// qualifier resolution.
type tableRef struct {
	qualifier string
	name      string
	sqlAlias  string
	connID    string
}

type joinPart struct {
	joinType string
	on       sqlparser.Expr
}

func (p *Planner) planSelect(req Request, plan *ExecutionPlan, sel *sqlparser.Select) (*ExecutionPlan, error) {
	refs, joins, err := collectFromClause(sel.From)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, validationf("no tables referenced in query")
	}

	for i := range refs {
		connID, err := resolveQualifier(req, refs[i].qualifier)
		if err != nil {
			return nil, err
		}
		refs[i].connID = connID
	}

	groups, order := groupByConnection(refs)

	if len(order) == 1 {
		stripQualifiers(sel)
		plan.SubQueries = []SubQuery{{
			ConnectionID: order[0],
			SQL:          sqlparser.String(sel),
			Tables:       tableNames(groups[order[0]]),
			ResultAlias:  "relation_0",
		}}
		plan.Strategy = MergeStrategy{Kind: MergeNone}
		return plan, nil
	}

	relationByConn := make(map[string]string, len(order))
	for i, connID := range order {
		group := groups[connID]
		names := tableNames(group)
		alias := fmt.Sprintf("relation_%d", i)
		relationByConn[connID] = alias
		plan.SubQueries = append(plan.SubQueries, SubQuery{
			ConnectionID: connID,
			SQL:          "SELECT * FROM " + strings.Join(names, ", "),
			Tables:       names,
			ResultAlias:  alias,
		})
	}

	kind := MergeInnerJoin
	var conditions []JoinCondition
	for _, join := range joins {
		if strings.HasPrefix(join.joinType, "left") {
			kind = MergeLeftJoin
		}
		if join.on == nil {
			continue
		}
		conditions = append(conditions, p.extractJoinConditions(join.on, refs, relationByConn)...)
	}
	if len(conditions) == 0 && p.Logger != nil {
		p.Logger.Warn("no join conditions extracted, executor will fall back to a cartesian product",
			slog.String("query", truncateSQL(req.Query)))
	}
	plan.Strategy = MergeStrategy{Kind: kind, Conditions: conditions}
	return plan, nil
}

func (p *Planner) planUnion(req Request, plan *ExecutionPlan, union *sqlparser.Union) (*ExecutionPlan, error) {
	arms := make([]*sqlparser.Select, 0, 2)
	unionAll := true
	if err := flattenUnion(union, &arms, &unionAll); err != nil {
		return nil, err
	}

	for i, arm := range arms {
		refs, _, err := collectFromClause(arm.From)
		if err != nil {
			return nil, err
		}
		if len(refs) == 0 {
			return nil, validationf("union arm %d references no tables", i)
		}
		connID := ""
		for j := range refs {
			resolved, err := resolveQualifier(req, refs[j].qualifier)
			if err != nil {
				return nil, err
			}
			if connID == "" {
				connID = resolved
			} else if connID != resolved {
				return nil, validationf("union arm %d spans multiple connections (%s and %s)", i, connID, resolved)
			}
			refs[j].connID = resolved
		}
		stripQualifiers(arm)
		plan.SubQueries = append(plan.SubQueries, SubQuery{
			ConnectionID: connID,
			SQL:          sqlparser.String(arm),
			Tables:       tableNames(refs),
			ResultAlias:  fmt.Sprintf("relation_%d", i),
		})
	}

	plan.Strategy = MergeStrategy{Kind: MergeUnion, UnionAll: unionAll}
	return plan, nil
}

func flattenUnion(stmt sqlparser.SelectStatement, arms *[]*sqlparser.Select, unionAll *bool) error {
	switch s := stmt.(type) {
	case *sqlparser.Union:
		if s.Type != sqlparser.UnionAllStr {
			*unionAll = false
		}
		if err := flattenUnion(s.Left, arms, unionAll); err != nil {
			return err
		}
		return flattenUnion(s.Right, arms, unionAll)
	case *sqlparser.Select:
		*arms = append(*arms, s)
		return nil
	case *sqlparser.ParenSelect:
		return flattenUnion(s.Select, arms, unionAll)
	default:
		return &InvalidSQLError{Reason: fmt.Sprintf("unsupported set operation arm %T", stmt)}
	}
}

func collectFromClause(exprs sqlparser.TableExprs) ([]tableRef, []joinPart, error) {
	var refs []tableRef
	var joins []joinPart
	for _, expr := range exprs {
		if err := collectTableExpr(expr, &refs, &joins); err != nil {
			return nil, nil, err
		}
	}
	return refs, joins, nil
}

func collectTableExpr(expr sqlparser.TableExpr, refs *[]tableRef, joins *[]joinPart) error {
	switch e := expr.(type) {
	case *sqlparser.AliasedTableExpr:
		tn, ok := e.Expr.(sqlparser.TableName)
		if !ok {
			return &InvalidSQLError{Reason: fmt.Sprintf("unsupported table expression %T (derived tables are not federated)", e.Expr)}
		}
		*refs = append(*refs, tableRef{
			qualifier: tn.Qualifier.String(),
			name:      tn.Name.String(),
			sqlAlias:  e.As.String(),
		})
		return nil
	case *sqlparser.JoinTableExpr:
		if err := collectTableExpr(e.LeftExpr, refs, joins); err != nil {
			return err
		}
		if err := collectTableExpr(e.RightExpr, refs, joins); err != nil {
			return err
		}
		*joins = append(*joins, joinPart{joinType: strings.ToLower(e.Join), on: e.Condition.On})
		return nil
	case *sqlparser.ParenTableExpr:
		for _, inner := range e.Exprs {
			if err := collectTableExpr(inner, refs, joins); err != nil {
				return err
			}
		}
		return nil
	default:
		return &InvalidSQLError{Reason: fmt.Sprintf("unsupported FROM clause element %T", expr)}
	}
}

// resolveQualifier maps a table qualifier to a connection ID. Unqualified
// tables belong to the first connection, a lenient default that keeps
// single-engine queries free of prefixes.
func resolveQualifier(req Request, qualifier string) (string, error) {
	if qualifier == "" {
		return req.ConnectionIDs[0], nil
	}
	if id, ok := req.DatabaseAliases[qualifier]; ok {
		return id, nil
	}
	for _, id := range req.ConnectionIDs {
		if id == qualifier {
			return id, nil
		}
	}
	return "", validationf("unknown database qualifier %q", qualifier)
}

func groupByConnection(refs []tableRef) (map[string][]tableRef, []string) {
	groups := make(map[string][]tableRef)
	var order []string
	for _, ref := range refs {
		if _, seen := groups[ref.connID]; !seen {
			order = append(order, ref.connID)
		}
		groups[ref.connID] = append(groups[ref.connID], ref)
	}
	return groups, order
}

func tableNames(refs []tableRef) []string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.name)
	}
	return names
}

// extractJoinConditions walks an ON expression and collects every
// AND-chained equality between two qualified columns. Anything else (OR
// trees, non-equality predicates, unqualified columns) is dropped with a
// warning; the executor handles an empty condition list.
func (p *Planner) extractJoinConditions(expr sqlparser.Expr, refs []tableRef, relationByConn map[string]string) []JoinCondition {
	var out []JoinCondition
	p.walkEqualities(expr, refs, relationByConn, &out)
	return out
}

func (p *Planner) walkEqualities(expr sqlparser.Expr, refs []tableRef, relationByConn map[string]string, out *[]JoinCondition) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		p.walkEqualities(e.Left, refs, relationByConn, out)
		p.walkEqualities(e.Right, refs, relationByConn, out)
	case *sqlparser.ParenExpr:
		p.walkEqualities(e.Expr, refs, relationByConn, out)
	case *sqlparser.ComparisonExpr:
		if e.Operator != sqlparser.EqualStr {
			p.warnDroppedPredicate(sqlparser.String(e))
			return
		}
		left, lok := e.Left.(*sqlparser.ColName)
		right, rok := e.Right.(*sqlparser.ColName)
		if !lok || !rok {
			p.warnDroppedPredicate(sqlparser.String(e))
			return
		}
		leftRef, lfound := findRef(refs, left.Qualifier.Name.String())
		rightRef, rfound := findRef(refs, right.Qualifier.Name.String())
		if !lfound || !rfound {
			p.warnDroppedPredicate(sqlparser.String(e))
			return
		}
		*out = append(*out, JoinCondition{
			LeftTable:     leftRef.name,
			LeftColumn:    left.Name.String(),
			RightTable:    rightRef.name,
			RightColumn:   right.Name.String(),
			LeftRelation:  relationByConn[leftRef.connID],
			RightRelation: relationByConn[rightRef.connID],
		})
	default:
		p.warnDroppedPredicate(sqlparser.String(expr))
	}
}

func (p *Planner) warnDroppedPredicate(fragment string) {
	if p.Logger != nil {
		p.Logger.Warn("join predicate not representable as a cross-engine condition, dropping",
			slog.String("predicate", fragment))
	}
}

func findRef(refs []tableRef, key string) (tableRef, bool) {
	if key == "" {
		return tableRef{}, false
	}
	for _, ref := range refs {
		if ref.sqlAlias == key || (ref.sqlAlias == "" && ref.name == key) {
			return ref, true
		}
	}
	// allow the table name even when an alias exists
	for _, ref := range refs {
		if ref.name == key {
			return ref, true
		}
	}
	return tableRef{}, false
}

// stripQualifiers removes database-qualifier prefixes from table and column
// references in place, so the rendered SQL is valid against a single engine.
func stripQualifiers(node sqlparser.SQLNode) {
	_ = sqlparser.Walk(func(n sqlparser.SQLNode) (bool, error) {
		switch t := n.(type) {
		case *sqlparser.AliasedTableExpr:
			if tn, ok := t.Expr.(sqlparser.TableName); ok && !tn.Qualifier.IsEmpty() {
				t.Expr = sqlparser.TableName{Name: tn.Name}
			}
		case *sqlparser.ColName:
			if !t.Qualifier.Qualifier.IsEmpty() {
				t.Qualifier = sqlparser.TableName{Name: t.Qualifier.Name}
			}
		}
		return true, nil
	}, node)
}
