package transpile

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/atlekbai/sqlrest/internal/ir"
)

// compileFilter translates a WHERE clause into a LogicalExpression tree.
// Negation is pushed down by toggling a running `negate` flag as NOT nodes
// are unwrapped, which gives double-negation cancellation for free and
// leaves every other tree shape untouched, per the normalization rule.
func compileFilter(where *pg_query.Node) (ir.LogicalExpression, error) {
	if where == nil {
		return nil, nil
	}
	return compileBoolNode(where, false)
}

func compileBoolNode(node *pg_query.Node, negate bool) (ir.LogicalExpression, error) {
	if be := node.GetBoolExpr(); be != nil {
		switch be.Boolop {
		case pg_query.BoolExprType_AND_EXPR, pg_query.BoolExprType_OR_EXPR:
			op := ir.And
			if be.Boolop == pg_query.BoolExprType_OR_EXPR {
				op = ir.Or
			}
			values := make([]ir.LogicalExpression, 0, len(be.Args))
			for _, arg := range be.Args {
				v, err := compileBoolNode(arg, false)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			return &ir.Logical{Operator: op, Negate: negate, Values: values}, nil
		case pg_query.BoolExprType_NOT_EXPR:
			if len(be.Args) != 1 {
				return nil, errf(UnsupportedExpression, be, "NOT requires exactly one operand")
			}
			return compileBoolNode(be.Args[0], !negate)
		default:
			return nil, errf(UnsupportedExpression, be, "unsupported boolean expression")
		}
	}

	if nt := node.GetNullTest(); nt != nil {
		return compileNullTest(nt, negate)
	}

	if ae := node.GetAExpr(); ae != nil {
		return compileComparison(ae, negate)
	}

	return nil, errf(UnsupportedExpression, node, "unsupported WHERE expression")
}

// resolveFilterColumn resolves the left-hand side of a WHERE leaf: an
// unqualified column of the primary relation, optionally with a JSON path.
func resolveFilterColumn(node *pg_query.Node) (*ir.Column, error) {
	if tc := node.GetTypeCast(); tc != nil {
		return nil, errf(CastOutsideTarget, tc, "cast is not allowed inside WHERE")
	}

	var parts []string
	var steps []ir.JSONPathStep
	switch {
	case isJSONArrowExpr(node):
		p, s, err := parseJSONPath(node)
		if err != nil {
			return nil, err
		}
		parts, steps = p, s
	case node.GetColumnRef() != nil:
		p, isStar := chainFromColumnRef(node.GetColumnRef())
		if isStar {
			return nil, errf(UnsupportedExpression, node, "star is not allowed in WHERE")
		}
		parts = p
	default:
		return nil, errf(UnsupportedExpression, node, "WHERE leaf must reference a column")
	}

	if len(parts) == 0 || len(parts) > 2 {
		return nil, errf(UnsupportedExpression, node, "unsupported column reference")
	}
	if len(parts) == 2 {
		return nil, errf(ForeignColumnWithoutJoin, node, "WHERE cannot filter on joined relation %q", parts[0])
	}
	return &ir.Column{Column: parts[0], JSONPath: steps}, nil
}

func compileNullTest(nt *pg_query.NullTest, negate bool) (ir.LogicalExpression, error) {
	col, err := resolveFilterColumn(nt.Arg)
	if err != nil {
		return nil, err
	}
	if nt.Nulltesttype == pg_query.NullTestType_IS_NOT_NULL {
		negate = !negate
	}
	return &ir.ColumnExpression{Column: *col, Operator: ir.OpIs, Value: "null", Negate: negate}, nil
}

func compileComparison(ae *pg_query.A_Expr, negate bool) (ir.LogicalExpression, error) {
	col, err := resolveFilterColumn(ae.Lexpr)
	if err != nil {
		return nil, err
	}

	switch ae.Kind {
	case pg_query.A_Expr_Kind_AEXPR_IN:
		list := ae.Rexpr.GetList()
		if list == nil {
			return nil, errf(UnsupportedExpression, ae, "IN requires a value list")
		}
		vals := make([]string, 0, len(list.Items))
		for _, it := range list.Items {
			c := it.GetAConst()
			if c == nil {
				return nil, errf(UnsupportedExpression, ae, "IN values must be literals")
			}
			vals = append(vals, literalText(c))
		}
		isNotIn := len(ae.Name) > 0 && nameOf(ae.Name[0]) == "<>"
		if isNotIn {
			negate = !negate
		}
		return &ir.ColumnExpression{
			Column:   *col,
			Operator: ir.OpIn,
			Value:    "(" + strings.Join(vals, ",") + ")",
			Negate:   negate,
		}, nil

	case pg_query.A_Expr_Kind_AEXPR_BETWEEN, pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN:
		return nil, errf(UnsupportedOperator, ae, "BETWEEN is not supported")

	case pg_query.A_Expr_Kind_AEXPR_DISTINCT, pg_query.A_Expr_Kind_AEXPR_NOT_DISTINCT:
		return nil, errf(UnsupportedOperator, ae, "IS DISTINCT FROM is not supported")

	case pg_query.A_Expr_Kind_AEXPR_LIKE, pg_query.A_Expr_Kind_AEXPR_ILIKE:
		opName := nameOf(ae.Name[0])
		var operator ir.ColumnOperator
		var isNot bool
		switch opName {
		case "~~":
			operator = ir.OpLike
		case "!~~":
			operator, isNot = ir.OpLike, true
		case "~~*":
			operator = ir.OpIlike
		case "!~~*":
			operator, isNot = ir.OpIlike, true
		default:
			return nil, errf(UnsupportedOperator, ae, "unsupported pattern operator %q", opName)
		}
		c := ae.Rexpr.GetAConst()
		if c == nil {
			return nil, errf(UnsupportedExpression, ae, "LIKE pattern must be a string literal")
		}
		val := strings.ReplaceAll(literalText(c), "%", "*")
		if isNot {
			negate = !negate
		}
		return &ir.ColumnExpression{Column: *col, Operator: operator, Value: val, Negate: negate}, nil

	default: // AEXPR_OP: =, !=, <>, >, >=, <, <=
		if len(ae.Name) == 0 {
			return nil, errf(UnsupportedExpression, ae, "missing operator")
		}
		opName := nameOf(ae.Name[0])
		operator, ok := comparisonOps[opName]
		if !ok {
			return nil, errf(UnsupportedOperator, ae, "unsupported operator %q", opName)
		}
		if tc := ae.Rexpr.GetTypeCast(); tc != nil {
			return nil, errf(CastOutsideTarget, tc, "cast is not allowed inside WHERE")
		}
		c := ae.Rexpr.GetAConst()
		if c == nil {
			return nil, errf(UnsupportedExpression, ae, "comparison value must be a literal")
		}
		return &ir.ColumnExpression{Column: *col, Operator: operator, Value: literalText(c), Negate: negate}, nil
	}
}
