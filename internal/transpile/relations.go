package transpile

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/atlekbai/sqlrest/internal/ir"
)

// relNode is one joined relation in the embed tree the join resolver
// builds. parent is nil when the relation is tied directly to the primary
// relation.
type relNode struct {
	name      string
	alias     string
	joinType  ir.JoinType
	qualifier ir.JoinQualifier
	parent    *relNode
}

func (n *relNode) key() string {
	if n.alias != "" {
		return n.alias
	}
	return n.name
}

// relationTable is the join resolver's output: the primary relation plus
// every joined relation, reachable by the alias-or-name a qualified column
// reference would use.
type relationTable struct {
	primary ir.Relation
	byKey   map[string]*relNode
}

func (t *relationTable) primaryKey() string {
	if t.primary.Alias != "" {
		return t.primary.Alias
	}
	return t.primary.Name
}

// resolve looks up a relation qualifier as it would appear in a column
// reference. An empty key always means the primary relation.
func (t *relationTable) resolve(key string) (isPrimary bool, node *relNode, err *Error) {
	if key == "" || key == t.primaryKey() {
		return true, nil, nil
	}
	if n, ok := t.byKey[key]; ok {
		return false, n, nil
	}
	return false, nil, errf(UnknownRelation, nil, "unknown relation %q", key)
}

type flatJoin struct {
	joinType ir.JoinType
	rangeVar *pg_query.RangeVar
	joinExpr *pg_query.JoinExpr
}

func buildRelationTable(stmt *pg_query.SelectStmt) (*relationTable, error) {
	if len(stmt.FromClause) == 0 {
		return nil, errf(MissingFromClause, stmt, "SELECT has no FROM clause")
	}
	if len(stmt.FromClause) > 1 {
		return nil, errf(MultipleFromRelations, stmt, "FROM must reference exactly one relation")
	}

	primaryRV, joins, err := flattenJoins(stmt.FromClause[0])
	if err != nil {
		return nil, err
	}

	table := &relationTable{
		byKey:   map[string]*relNode{},
		primary: ir.Relation{Name: primaryRV.Relname, Alias: aliasOf(primaryRV)},
	}

	for _, j := range joins {
		node, err := resolveJoin(table, j)
		if err != nil {
			return nil, err
		}
		table.byKey[node.key()] = node
	}
	return table, nil
}

// flattenJoins walks a left-deep JoinExpr tree (as produced for `a JOIN b
// ON ... JOIN c ON ...`) into the primary table and an ordered list of
// joins.
func flattenJoins(node *pg_query.Node) (*pg_query.RangeVar, []*flatJoin, error) {
	if rv := node.GetRangeVar(); rv != nil {
		return rv, nil, nil
	}
	je := node.GetJoinExpr()
	if je == nil {
		return nil, nil, errf(UnsupportedExpression, node, "unsupported FROM clause shape")
	}
	primary, joins, err := flattenJoins(je.Larg)
	if err != nil {
		return nil, nil, err
	}
	rarg := je.Rarg.GetRangeVar()
	if rarg == nil {
		return nil, nil, errf(UnsupportedJoinType, je, "joined relation must be a simple table reference")
	}
	var jt ir.JoinType
	switch je.Jointype {
	case pg_query.JoinType_JOIN_INNER:
		jt = ir.JoinInner
	case pg_query.JoinType_JOIN_LEFT:
		jt = ir.JoinLeft
	default:
		return nil, nil, errf(UnsupportedJoinType, je, "unsupported join type %v", je.Jointype)
	}
	joins = append(joins, &flatJoin{joinType: jt, rangeVar: rarg, joinExpr: je})
	return primary, joins, nil
}

func resolveJoin(table *relationTable, j *flatJoin) (*relNode, error) {
	name := j.rangeVar.Relname
	alias := aliasOf(j.rangeVar)
	key := alias
	if key == "" {
		key = name
	}

	if j.joinExpr.Quals == nil {
		return nil, errf(NonEquiJoin, j.joinExpr, "join %q is missing an ON clause", key)
	}
	ae := j.joinExpr.Quals.GetAExpr()
	if ae == nil || ae.Kind != pg_query.A_Expr_Kind_AEXPR_OP || len(ae.Name) != 1 || nameOf(ae.Name[0]) != "=" {
		return nil, errf(NonEquiJoin, j.joinExpr.Quals, "join %q qualifier must be a single equality", key)
	}

	leftRel, leftCol, lok := joinSideColumn(ae.Lexpr)
	rightRel, rightCol, rok := joinSideColumn(ae.Rexpr)
	if !lok || !rok {
		return nil, errf(ConstantInJoin, j.joinExpr.Quals, "join %q qualifier sides must both be column references", key)
	}

	isNewSide := func(rel string) bool {
		if rel == "" {
			return false
		}
		if alias != "" {
			return rel == alias
		}
		return rel == name
	}

	leftIsNew := isNewSide(leftRel)
	rightIsNew := isNewSide(rightRel)

	if leftIsNew && rightIsNew {
		return nil, errf(SelfJoinUnsupported, j.joinExpr.Quals, "join %q cannot reference itself on both sides", key)
	}
	if !leftIsNew && !rightIsNew {
		return nil, errf(UnknownRelation, j.joinExpr.Quals, "join %q qualifier does not reference the joined relation", key)
	}

	var childCol, otherRel, otherCol string
	if leftIsNew {
		childCol, otherRel, otherCol = leftCol, rightRel, rightCol
	} else {
		childCol, otherRel, otherCol = rightCol, leftRel, leftCol
	}

	var parent *relNode
	parentKey := ""
	if otherRel != "" && otherRel != table.primaryKey() {
		n, ok := table.byKey[otherRel]
		if !ok {
			return nil, errf(UnknownRelation, j.joinExpr.Quals, "join %q references unknown relation %q", key, otherRel)
		}
		parent = n
		parentKey = n.key()
	}

	return &relNode{
		name:     name,
		alias:    alias,
		joinType: j.joinType,
		parent:   parent,
		qualifier: ir.JoinQualifier{
			ChildColumn:    childCol,
			ParentRelation: parentKey,
			ParentColumn:   otherCol,
		},
	}, nil
}

// joinSideColumn extracts the relation qualifier (possibly empty) and
// column name of one side of a join equality; ok is false for anything
// that isn't a plain column reference (including constants).
func joinSideColumn(node *pg_query.Node) (rel, col string, ok bool) {
	cr := node.GetColumnRef()
	if cr == nil {
		return "", "", false
	}
	parts, isStar := chainFromColumnRef(cr)
	if isStar || len(parts) == 0 || len(parts) > 2 {
		return "", "", false
	}
	if len(parts) == 1 {
		return "", parts[0], true
	}
	return parts[0], parts[1], true
}
