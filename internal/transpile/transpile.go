// Package transpile walks a parsed PostgreSQL SELECT and produces the
// Statement intermediate representation consumed by package render. It
// never inspects raw SQL text — its only input is the node tree
// github.com/pganalyze/pg_query_go/v6 produces, which is bit-compatible
// with the PostgreSQL 14+ RawStmt shape.
package transpile

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/atlekbai/sqlrest/internal/ir"
)

// Transpile converts a single parsed SELECT statement into a Statement IR.
// The first violation of the supported subset aborts translation and
// returns an *Error.
func Transpile(stmt *pg_query.SelectStmt) (*ir.Statement, error) {
	if stmt.Op != pg_query.SetOperation_SETOP_NONE {
		return nil, errf(UnsupportedExpression, stmt, "set operations (UNION/INTERSECT/EXCEPT) are not supported")
	}

	relTable, err := buildRelationTable(stmt)
	if err != nil {
		return nil, err
	}

	targets, err := processTargets(relTable, stmt.TargetList)
	if err != nil {
		return nil, err
	}

	filter, err := compileFilter(stmt.WhereClause)
	if err != nil {
		return nil, err
	}

	if stmt.HavingClause != nil {
		return nil, errf(HavingUnsupported, stmt.HavingClause, "HAVING is not supported")
	}

	if err := validateGroupBy(stmt.GroupClause, targets); err != nil {
		return nil, err
	}

	sorts, err := compileSorts(relTable, stmt.SortClause)
	if err != nil {
		return nil, err
	}

	limit, offset, err := compileLimitOffset(stmt)
	if err != nil {
		return nil, err
	}

	return &ir.Statement{
		Type:    "select",
		From:    relTable.primary,
		Targets: targets,
		Filter:  filter,
		Sorts:   sorts,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// validateGroupBy enforces §3's rule: a non-empty GROUP BY is only legal
// when every grouping column is also a non-aggregate Column target and at
// least one AggregateTarget is present. GROUP BY itself is never rendered;
// PostgREST infers grouping from the target shape alone.
func validateGroupBy(groupClause []*pg_query.Node, targets []ir.Target) error {
	if len(groupClause) == 0 {
		return nil
	}

	hasAgg := false
	nonAggCols := map[string]bool{}
	for _, t := range targets {
		switch v := t.(type) {
		case *ir.AggregateTarget:
			hasAgg = true
		case *ir.Column:
			nonAggCols[v.Column] = true
		}
	}
	if !hasAgg {
		return errf(GroupByWithoutAggregate, nil, "GROUP BY requires at least one aggregate target")
	}

	for _, g := range groupClause {
		cr := g.GetColumnRef()
		if cr == nil {
			return errf(GroupByMissingTarget, g, "GROUP BY item must be a plain column")
		}
		parts, isStar := chainFromColumnRef(cr)
		if isStar || len(parts) != 1 {
			return errf(GroupByMissingTarget, g, "GROUP BY item must reference an unqualified column")
		}
		if !nonAggCols[parts[0]] {
			return errf(GroupByMissingTarget, g, "GROUP BY column %q is not a selected target", parts[0])
		}
	}
	return nil
}
