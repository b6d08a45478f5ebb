// Package render serializes a transpile Statement into the PostgREST HTTP
// request shape: method, path, an ordered parameter list, and the combined
// fullPath. The renderer is pure and never errors — any Statement
// violating an IR invariant reaching it is a translator bug, not a
// rejection, and is left to panic on a nil dereference or bad type switch
// rather than being silently tolerated.
package render

import (
	"strconv"
	"strings"

	"github.com/atlekbai/sqlrest/internal/ir"
)

// Param is one key/value pair in the rendered query string. Duplicate keys
// are legal — PostgREST allows multiple filters on the same column.
type Param struct {
	Key   string
	Value string
}

// Request is the rendered HTTP request for a translated SELECT.
type Request struct {
	Method   string
	Path     string
	Params   []Param
	FullPath string
}

// Render serializes stmt into a Request. Every SELECT in the supported
// subset renders to a GET.
func Render(stmt *ir.Statement) *Request {
	path := "/" + stmt.From.Name

	var params []Param
	if !isBareStar(stmt.Targets) {
		params = append(params, Param{Key: "select", Value: renderSelectList(stmt.Targets)})
	}
	params = append(params, renderFilterParams(stmt.Filter)...)
	if len(stmt.Sorts) > 0 {
		params = append(params, Param{Key: "order", Value: renderOrder(stmt.Sorts)})
	}
	if stmt.Limit != nil {
		params = append(params, Param{Key: "limit", Value: strconv.Itoa(*stmt.Limit)})
	}
	if stmt.Offset != nil {
		params = append(params, Param{Key: "offset", Value: strconv.Itoa(*stmt.Offset)})
	}

	fullPath := path
	if len(params) > 0 {
		fullPath += "?" + encodeParams(params)
	}

	return &Request{
		Method:   "GET",
		Path:     path,
		Params:   params,
		FullPath: fullPath,
	}
}

func encodeParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Key + "=" + p.Value
	}
	return strings.Join(parts, "&")
}

// isBareStar reports whether targets is exactly the implicit `select *`
// shape, the one case PostgREST treats as its own default and that omits
// the select param entirely rather than spelling out `select=*`.
func isBareStar(targets []ir.Target) bool {
	if len(targets) != 1 {
		return false
	}
	_, ok := targets[0].(*ir.Star)
	return ok
}

// renderSelectList is the post-order walk of §4.6: every Target renders
// itself, and EmbeddedTarget recurses into its own child select.
func renderSelectList(targets []ir.Target) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = renderTarget(t)
	}
	return strings.Join(parts, ",")
}

func renderTarget(t ir.Target) string {
	switch v := t.(type) {
	case *ir.Star:
		return "*"
	case *ir.Column:
		return renderColumn(v)
	case *ir.AggregateTarget:
		return renderAggregate(v)
	case *ir.EmbeddedTarget:
		return renderEmbedded(v)
	default:
		panic("render: unknown target type")
	}
}

func renderJSONPath(steps []ir.JSONPathStep) string {
	var b strings.Builder
	for _, step := range steps {
		b.WriteString(string(step.Arrow))
		b.WriteString(step.Key)
	}
	return b.String()
}

func renderColumn(c *ir.Column) string {
	var b strings.Builder
	if c.Alias != "" {
		b.WriteString(c.Alias)
		b.WriteString(":")
	}
	b.WriteString(c.Column)
	b.WriteString(renderJSONPath(c.JSONPath))
	if c.Cast != "" {
		b.WriteString("::")
		b.WriteString(c.Cast)
	}
	return b.String()
}

func renderAggregate(a *ir.AggregateTarget) string {
	var b strings.Builder
	if a.Alias != "" {
		b.WriteString(a.Alias)
		b.WriteString(":")
	}
	b.WriteString(a.Input.Column)
	b.WriteString(renderJSONPath(a.Input.JSONPath))
	if a.InputCast != "" {
		b.WriteString("::")
		b.WriteString(a.InputCast)
	}
	b.WriteString(".")
	b.WriteString(string(a.Function))
	b.WriteString("()")
	if a.OutputCast != "" {
		b.WriteString("::")
		b.WriteString(a.OutputCast)
	}
	return b.String()
}

func renderEmbedded(e *ir.EmbeddedTarget) string {
	var b strings.Builder
	b.WriteString("...")
	if e.Alias != "" {
		b.WriteString(e.Alias)
		b.WriteString(":")
	}
	b.WriteString(e.Relation)
	if e.JoinType == ir.JoinInner {
		b.WriteString("!inner")
	}
	b.WriteString("(")
	b.WriteString(renderSelectList(e.Targets))
	b.WriteString(")")
	return b.String()
}

func filterKey(c ir.Column) string {
	return c.Column + renderJSONPath(c.JSONPath)
}

// renderFilterParams flattens the filter tree into the renderer's ordered
// parameter list: a non-negated top-level AND splits into one parameter
// per leaf (PostgREST ANDs distinct query params implicitly); everything
// else — a top-level OR, or any negated combinator — collapses into a
// single parameter.
func renderFilterParams(filter ir.LogicalExpression) []Param {
	if filter == nil {
		return nil
	}
	if l, ok := filter.(*ir.Logical); ok && l.Operator == ir.And && !l.Negate {
		var params []Param
		for _, child := range l.Values {
			params = append(params, renderFilterParams(child)...)
		}
		return params
	}
	return []Param{renderTopLevelParam(filter)}
}

func renderTopLevelParam(expr ir.LogicalExpression) Param {
	switch v := expr.(type) {
	case *ir.ColumnExpression:
		return Param{Key: filterKey(v.Column), Value: renderLeafValue(v)}
	case *ir.Logical:
		key := string(v.Operator)
		if v.Negate {
			key = "not." + key
		}
		return Param{Key: key, Value: "(" + renderCombinatorChildren(v.Values) + ")"}
	default:
		panic("render: unknown logical expression type")
	}
}

func renderLeafValue(c *ir.ColumnExpression) string {
	if c.Negate {
		return "not." + string(c.Operator) + "." + c.Value
	}
	return string(c.Operator) + "." + c.Value
}

func renderCombinatorChildren(values []ir.LogicalExpression) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = renderNestedExpr(v)
	}
	return strings.Join(parts, ",")
}

func renderNestedExpr(expr ir.LogicalExpression) string {
	switch v := expr.(type) {
	case *ir.ColumnExpression:
		key := filterKey(v.Column)
		if v.Negate {
			return key + ".not." + string(v.Operator) + "." + v.Value
		}
		return key + "." + string(v.Operator) + "." + v.Value
	case *ir.Logical:
		op := string(v.Operator)
		if v.Negate {
			op = "not." + op
		}
		return op + "(" + renderCombinatorChildren(v.Values) + ")"
	default:
		panic("render: unknown logical expression type")
	}
}

func renderOrder(sorts []ir.Sort) string {
	parts := make([]string, len(sorts))
	for i, s := range sorts {
		var b strings.Builder
		if s.Relation != "" {
			b.WriteString(s.Relation)
			b.WriteString(".")
		}
		b.WriteString(s.Column)
		if s.HasDir {
			b.WriteString(".")
			b.WriteString(string(s.Direction))
		}
		if s.HasNulls {
			b.WriteString(".nulls")
			if s.Nulls == ir.NullsFirst {
				b.WriteString("first")
			} else {
				b.WriteString("last")
			}
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, ",")
}
