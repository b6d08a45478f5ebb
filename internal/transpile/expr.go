package transpile

import (
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/atlekbai/sqlrest/internal/ir"
)

// chainFromColumnRef flattens a ColumnRef's Fields into a dotted-path chain
// and reports whether the trailing field is a star.
func chainFromColumnRef(cr *pg_query.ColumnRef) (parts []string, isStar bool) {
	for _, f := range cr.Fields {
		if s := f.GetString_(); s != nil {
			parts = append(parts, s.Sval)
			continue
		}
		if f.GetAStar() != nil {
			isStar = true
		}
	}
	return parts, isStar
}

func splitQualified(parts []string, node any) (rel, col string, err *Error) {
	switch len(parts) {
	case 1:
		return "", parts[0], nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", errf(UnsupportedExpression, node, "unsupported column reference with %d parts", len(parts))
	}
}

func nameOf(n *pg_query.Node) string {
	if n == nil {
		return ""
	}
	if s := n.GetString_(); s != nil {
		return s.Sval
	}
	return ""
}

func isJSONArrowExpr(node *pg_query.Node) bool {
	ae := node.GetAExpr()
	if ae == nil || ae.Kind != pg_query.A_Expr_Kind_AEXPR_OP || len(ae.Name) == 0 {
		return false
	}
	op := nameOf(ae.Name[0])
	return op == "->" || op == "->>"
}

// parseJSONPath unwraps a chain of -> / ->> operators rooted at a column
// reference, returning the root column's chain and the ordered steps.
func parseJSONPath(node *pg_query.Node) (chainParts []string, steps []ir.JSONPathStep, err *Error) {
	ae := node.GetAExpr()
	if ae == nil {
		return nil, nil, errf(InvalidJsonPath, node, "expected a json path expression")
	}
	arrow := ir.ArrowJSON
	if nameOf(ae.Name[0]) == "->>" {
		arrow = ir.ArrowText
	}

	switch {
	case isJSONArrowExpr(ae.Lexpr):
		chainParts, steps, err = parseJSONPath(ae.Lexpr)
		if err != nil {
			return nil, nil, err
		}
	case ae.Lexpr.GetColumnRef() != nil:
		parts, isStar := chainFromColumnRef(ae.Lexpr.GetColumnRef())
		if isStar {
			return nil, nil, errf(InvalidJsonPath, node, "json path root cannot be a star")
		}
		chainParts = parts
	default:
		return nil, nil, errf(InvalidJsonPath, node, "json path root must be a column")
	}

	key, kerr := jsonKeyFromConst(ae.Rexpr, node)
	if kerr != nil {
		return nil, nil, kerr
	}
	steps = append(steps, ir.JSONPathStep{Arrow: arrow, Key: key})
	return chainParts, steps, nil
}

func jsonKeyFromConst(node *pg_query.Node, ctx any) (string, *Error) {
	c := node.GetAConst()
	if c == nil {
		return "", errf(InvalidJsonPath, ctx, "json path key must be a literal")
	}
	if s := c.GetSval(); s != nil {
		return s.Sval, nil
	}
	if i := c.GetIval(); i != nil {
		return strconv.Itoa(int(i.Ival)), nil
	}
	return "", errf(InvalidJsonPath, ctx, "json path key must be a string or integer literal")
}

func literalText(c *pg_query.A_Const) string {
	switch {
	case c.GetSval() != nil:
		return c.GetSval().Sval
	case c.GetIval() != nil:
		return strconv.Itoa(int(c.GetIval().Ival))
	case c.GetFval() != nil:
		return c.GetFval().Fval
	case c.GetBoolval() != nil:
		if c.GetBoolval().Boolval {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// pgCatalogShortNames reverses the system catalog spellings the parser
// assigns to a handful of SQL-standard short type names, so `::float`
// round-trips as `float` instead of surfacing `pg_catalog.float8`.
var pgCatalogShortNames = map[string]string{
	"float8":  "float",
	"float4":  "real",
	"int4":    "int",
	"int8":    "bigint",
	"int2":    "smallint",
	"bool":    "boolean",
	"bpchar":  "char",
	"varchar": "varchar",
	"numeric": "numeric",
	"text":    "text",
}

func typeNameToString(tn *pg_query.TypeName, node any) (string, *Error) {
	if tn == nil {
		return "", errf(UnsupportedExpression, node, "missing type name")
	}
	var names []string
	for _, n := range tn.Names {
		if s := n.GetString_(); s != nil {
			names = append(names, s.Sval)
		}
	}
	if len(names) == 0 {
		return "", errf(UnsupportedExpression, node, "empty type name")
	}
	if len(names) >= 2 && names[0] == "pg_catalog" {
		last := names[len(names)-1]
		if short, ok := pgCatalogShortNames[last]; ok {
			return short, nil
		}
		return last, nil
	}
	return strings.Join(names, "."), nil
}

func aliasOf(rv *pg_query.RangeVar) string {
	if rv.Alias != nil {
		return rv.Alias.Aliasname
	}
	return ""
}

var comparisonOps = map[string]ir.ColumnOperator{
	"=":  ir.OpEq,
	"!=": ir.OpNeq,
	"<>": ir.OpNeq,
	">":  ir.OpGt,
	">=": ir.OpGte,
	"<":  ir.OpLt,
	"<=": ir.OpLte,
}

var aggFuncByName = map[string]ir.AggregateFunc{
	"avg":   ir.AggAvg,
	"count": ir.AggCount,
	"max":   ir.AggMax,
	"min":   ir.AggMin,
	"sum":   ir.AggSum,
}

func lastFuncName(names []*pg_query.Node) string {
	if len(names) == 0 {
		return ""
	}
	return strings.ToLower(nameOf(names[len(names)-1]))
}

func fmtErr(kind ErrorKind, node any, err error) *Error {
	return &Error{Kind: kind, Msg: err.Error(), Node: node}
}
