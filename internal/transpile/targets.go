package transpile

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/atlekbai/sqlrest/internal/ir"
)

// targetBuilder accumulates the ordered top-level Target list while lifting
// qualified references into the EmbeddedTarget for their relation.
type targetBuilder struct {
	relTable *relationTable
	topLevel []ir.Target
	embeds   map[string]*ir.EmbeddedTarget
}

func processTargets(relTable *relationTable, targetList []*pg_query.Node) ([]ir.Target, error) {
	b := &targetBuilder{relTable: relTable, embeds: map[string]*ir.EmbeddedTarget{}}

	for _, item := range targetList {
		rt := item.GetResTarget()
		if rt == nil {
			return nil, errf(UnsupportedExpression, item, "unsupported target list entry")
		}
		if err := b.add(rt); err != nil {
			return nil, err
		}
	}
	return b.topLevel, nil
}

func (b *targetBuilder) add(rt *pg_query.ResTarget) error {
	val := rt.Val
	alias := rt.Name

	if cr := val.GetColumnRef(); cr != nil {
		parts, isStar := chainFromColumnRef(cr)
		if isStar {
			return b.addStar(parts, val)
		}
	}

	target, err := convertTargetExpr(val)
	if err != nil {
		return err
	}

	if alias != "" {
		if col, ok := target.(*ir.Column); ok && col.Column == alias {
			// alias matches the column name exactly: elided, not set.
		} else {
			setAlias(target, alias)
		}
	}

	return b.lift(target, relationOf(target))
}

func (b *targetBuilder) addStar(parts []string, node *pg_query.Node) error {
	if len(parts) == 0 {
		b.topLevel = append(b.topLevel, &ir.Star{})
		return nil
	}
	if len(parts) != 1 {
		return errf(UnsupportedExpression, node, "unsupported star expression")
	}
	isPrimary, relNode, err := b.relTable.resolve(parts[0])
	if err != nil {
		return err
	}
	if isPrimary {
		b.topLevel = append(b.topLevel, &ir.Star{})
		return nil
	}
	embed := b.embedFor(relNode)
	embed.Targets = append(embed.Targets, &ir.Star{})
	return nil
}

func (b *targetBuilder) lift(target ir.Target, relKey string) error {
	if relKey == "" {
		b.topLevel = append(b.topLevel, target)
		return nil
	}
	isPrimary, node, err := b.relTable.resolve(relKey)
	if err != nil {
		return err
	}
	clearRelation(target)
	if isPrimary {
		b.topLevel = append(b.topLevel, target)
		return nil
	}
	embed := b.embedFor(node)
	embed.Targets = append(embed.Targets, target)
	return nil
}

func (b *targetBuilder) embedFor(node *relNode) *ir.EmbeddedTarget {
	if et, ok := b.embeds[node.key()]; ok {
		return et
	}
	et := &ir.EmbeddedTarget{
		Relation:      node.name,
		Alias:         node.alias,
		JoinType:      node.joinType,
		JoinQualifier: node.qualifier,
	}
	b.embeds[node.key()] = et
	if node.parent == nil {
		b.topLevel = append(b.topLevel, et)
	} else {
		parentEmbed := b.embedFor(node.parent)
		parentEmbed.Targets = append(parentEmbed.Targets, et)
	}
	return et
}

func relationOf(t ir.Target) string {
	switch v := t.(type) {
	case *ir.Column:
		return v.Relation
	case *ir.AggregateTarget:
		return v.Input.Relation
	default:
		return ""
	}
}

func setAlias(t ir.Target, alias string) {
	switch v := t.(type) {
	case *ir.Column:
		v.Alias = alias
	case *ir.AggregateTarget:
		v.Alias = alias
	}
}

func clearRelation(t ir.Target) {
	switch v := t.(type) {
	case *ir.Column:
		v.Relation = ""
	case *ir.AggregateTarget:
		v.Input.Relation = ""
	}
}

// convertTargetExpr classifies a single SELECT expression into a Column or
// AggregateTarget. Star handling happens in addStar before this is called.
func convertTargetExpr(node *pg_query.Node) (ir.Target, error) {
	if tc := node.GetTypeCast(); tc != nil {
		castStr, cerr := typeNameToString(tc.TypeName, node)
		if cerr != nil {
			return nil, cerr
		}
		if fc := tc.Arg.GetFuncCall(); fc != nil {
			agg, err := convertAggregate(fc)
			if err != nil {
				return nil, err
			}
			agg.OutputCast = castStr
			return agg, nil
		}
		col, err := convertColumnLikeExpr(tc.Arg)
		if err != nil {
			return nil, err
		}
		col.Cast = castStr
		return col, nil
	}

	if fc := node.GetFuncCall(); fc != nil {
		return convertAggregate(fc)
	}

	return convertColumnLikeExpr(node)
}

func convertColumnLikeExpr(node *pg_query.Node) (*ir.Column, error) {
	if tc := node.GetTypeCast(); tc != nil {
		return nil, errf(UnsupportedExpression, tc, "nested cast is not supported")
	}
	if isJSONArrowExpr(node) {
		parts, steps, err := parseJSONPath(node)
		if err != nil {
			return nil, err
		}
		rel, col, serr := splitQualified(parts, node)
		if serr != nil {
			return nil, serr
		}
		return &ir.Column{Relation: rel, Column: col, JSONPath: steps}, nil
	}
	if cr := node.GetColumnRef(); cr != nil {
		parts, isStar := chainFromColumnRef(cr)
		if isStar {
			return nil, errf(UnsupportedExpression, node, "star is not allowed in this position")
		}
		rel, col, serr := splitQualified(parts, node)
		if serr != nil {
			return nil, serr
		}
		return &ir.Column{Relation: rel, Column: col}, nil
	}
	return nil, errf(UnsupportedExpression, node, "expected a column reference")
}

func convertAggregate(fc *pg_query.FuncCall) (*ir.AggregateTarget, error) {
	name := lastFuncName(fc.Funcname)
	fn, ok := aggFuncByName[name]
	if !ok {
		return nil, errf(UnsupportedAggregate, fc, "unsupported aggregate function %q", name)
	}
	if fc.AggStar || len(fc.Args) != 1 {
		return nil, errf(AggregateArgumentShape, fc, "%s() requires exactly one column argument", name)
	}

	arg := fc.Args[0]
	var inputCast string
	if tc := arg.GetTypeCast(); tc != nil {
		castStr, err := typeNameToString(tc.TypeName, arg)
		if err != nil {
			return nil, err
		}
		inputCast = castStr
		arg = tc.Arg
	}

	col, err := convertColumnLikeExpr(arg)
	if err != nil {
		return nil, errf(AggregateArgumentShape, fc, "aggregate argument must be a plain column")
	}
	return &ir.AggregateTarget{Function: fn, Input: *col, InputCast: inputCast}, nil
}
