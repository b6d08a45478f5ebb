package transpile_test

import (
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/sqlrest/internal/ir"
	"github.com/atlekbai/sqlrest/internal/transpile"
)

func parseSelect(t *testing.T, sql string) *pg_query.SelectStmt {
	t.Helper()
	tree, err := pg_query.Parse(sql)
	require.NoError(t, err)
	require.Len(t, tree.Stmts, 1)
	sel := tree.Stmts[0].Stmt.GetSelectStmt()
	require.NotNil(t, sel, "fixture %q did not parse as a SELECT", sql)
	return sel
}

func transpileErr(t *testing.T, sql string) *transpile.Error {
	t.Helper()
	_, err := transpile.Transpile(parseSelect(t, sql))
	require.Error(t, err)
	var terr *transpile.Error
	require.ErrorAs(t, err, &terr)
	return terr
}

func TestRejectionKinds(t *testing.T) {
	cases := []struct {
		name string
		sql  string
		kind transpile.ErrorKind
	}{
		{"bare literal target", `select 1 from books`, transpile.UnsupportedExpression},
		{"no from clause", `select 1`, transpile.MissingFromClause},
		{"multiple from relations", `select * from books, authors`, transpile.MultipleFromRelations},
		{"right join unsupported", `select * from books right join authors on author_id = authors.id`, transpile.UnsupportedJoinType},
		{"non equi join", `select * from books join authors on author_id > authors.id`, transpile.NonEquiJoin},
		{"constant in join", `select * from books join authors on author_id = 1`, transpile.ConstantInJoin},
		{"self join", `select * from books join authors on authors.id = authors.id`, transpile.SelfJoinUnsupported},
		{"unknown relation in target", `select missing.name from books`, transpile.UnknownRelation},
		{"cast outside target in where", `select * from books where title::text = 'x'`, transpile.CastOutsideTarget},
		{"cast outside target in order by", `select * from books order by title::text`, transpile.CastOutsideTarget},
		{"unsupported aggregate", `select total(amount) from orders`, transpile.UnsupportedAggregate},
		{"aggregate argument shape", `select count(*) from orders`, transpile.AggregateArgumentShape},
		{"group by without aggregate", `select title from books group by title`, transpile.GroupByWithoutAggregate},
		{"group by missing target", `select sum(amount) from orders group by customer_id`, transpile.GroupByMissingTarget},
		{"having unsupported", `select sum(amount) from orders group by customer_id having sum(amount) > 0`, transpile.HavingUnsupported},
		{"invalid limit", `select * from books limit -1`, transpile.InvalidLimit},
		{"invalid offset", `select * from books offset -1`, transpile.InvalidOffset},
		{"unsupported operator (between)", `select * from books where id between 1 and 5`, transpile.UnsupportedOperator},
		{"unsupported operator (is distinct from)", `select * from books where title is distinct from 'Cheese'`, transpile.UnsupportedOperator},
		{"invalid json path key", `select address->(1+1) from books`, transpile.InvalidJsonPath},
		{"foreign column in where", `select * from books join authors on author_id = authors.id where authors.name = 'x'`, transpile.ForeignColumnWithoutJoin},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := transpileErr(t, tc.sql)
			require.Equal(t, tc.kind, err.Kind, "sql: %s", tc.sql)
		})
	}
}

func TestTargetListLiftsQualifiedColumnsIntoEmbed(t *testing.T) {
	stmt, err := transpile.Transpile(parseSelect(t, `select *, authors.name, authors.bio from books join authors on author_id = authors.id`))
	require.NoError(t, err)
	require.Len(t, stmt.Targets, 2)

	embed, ok := stmt.Targets[1].(*ir.EmbeddedTarget)
	require.True(t, ok)
	require.Equal(t, "authors", embed.Relation)
	require.Equal(t, ir.JoinInner, embed.JoinType)
	require.Equal(t, "id", embed.JoinQualifier.ChildColumn)
	require.Equal(t, "author_id", embed.JoinQualifier.ParentColumn)
	require.Len(t, embed.Targets, 2)
}

func TestJoinNestingAttachesToAncestor(t *testing.T) {
	stmt, err := transpile.Transpile(parseSelect(t, `
		select *, authors.name, countries.code
		from books
		join authors on author_id = authors.id
		join countries on authors.country_id = countries.id
	`))
	require.NoError(t, err)

	embed, ok := stmt.Targets[1].(*ir.EmbeddedTarget)
	require.True(t, ok)
	require.Equal(t, "authors", embed.Relation)
	require.Len(t, embed.Targets, 2)

	nested, ok := embed.Targets[1].(*ir.EmbeddedTarget)
	require.True(t, ok)
	require.Equal(t, "countries", nested.Relation)
	require.Equal(t, "authors", nested.JoinQualifier.ParentRelation)
}

func TestFilterNegationNormalization(t *testing.T) {
	stmt, err := transpile.Transpile(parseSelect(t, `select * from books where not (title = 'Cheese' or title = 'Salsa')`))
	require.NoError(t, err)

	logical, ok := stmt.Filter.(*ir.Logical)
	require.True(t, ok)
	require.Equal(t, ir.Or, logical.Operator)
	require.True(t, logical.Negate)
	require.Len(t, logical.Values, 2)
}

func TestFilterDoubleNegationCancels(t *testing.T) {
	stmt, err := transpile.Transpile(parseSelect(t, `select * from books where not (not (title = 'Cheese'))`))
	require.NoError(t, err)

	leaf, ok := stmt.Filter.(*ir.ColumnExpression)
	require.True(t, ok)
	require.False(t, leaf.Negate)
	require.Equal(t, ir.OpEq, leaf.Operator)
}

func TestFilterLikeWildcardTranslation(t *testing.T) {
	stmt, err := transpile.Transpile(parseSelect(t, `select * from books where description ilike '%salsa%'`))
	require.NoError(t, err)

	leaf, ok := stmt.Filter.(*ir.ColumnExpression)
	require.True(t, ok)
	require.Equal(t, ir.OpIlike, leaf.Operator)
	require.Equal(t, "*salsa*", leaf.Value)
}

func TestFilterInOperator(t *testing.T) {
	stmt, err := transpile.Transpile(parseSelect(t, `select * from books where id not in (1, 2, 3)`))
	require.NoError(t, err)

	leaf, ok := stmt.Filter.(*ir.ColumnExpression)
	require.True(t, ok)
	require.Equal(t, ir.OpIn, leaf.Operator)
	require.True(t, leaf.Negate)
	require.Equal(t, "(1,2,3)", leaf.Value)
}

func TestAliasElisionDropsRedundantAlias(t *testing.T) {
	stmt, err := transpile.Transpile(parseSelect(t, `select title as title, description as descr from books`))
	require.NoError(t, err)

	col0 := stmt.Targets[0].(*ir.Column)
	require.Empty(t, col0.Alias)

	col1 := stmt.Targets[1].(*ir.Column)
	require.Equal(t, "descr", col1.Alias)
}

func TestAggregateCastsSplitIntoInputAndOutput(t *testing.T) {
	stmt, err := transpile.Transpile(parseSelect(t, `select sum(amount::int)::float from orders`))
	require.NoError(t, err)

	agg := stmt.Targets[0].(*ir.AggregateTarget)
	require.Equal(t, ir.AggSum, agg.Function)
	require.Equal(t, "amount", agg.Input.Column)
	require.Equal(t, "int", agg.InputCast)
	require.Equal(t, "float", agg.OutputCast)
}

func TestGroupByWithMatchingAggregateSucceeds(t *testing.T) {
	stmt, err := transpile.Transpile(parseSelect(t, `select customer_id, sum(amount) from orders group by customer_id`))
	require.NoError(t, err)
	require.Len(t, stmt.Targets, 2)
}
