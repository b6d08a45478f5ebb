package render_test

import (
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/sqlrest/internal/render"
	"github.com/atlekbai/sqlrest/internal/transpile"
)

func mustRender(t *testing.T, sql string) string {
	t.Helper()
	tree, err := pg_query.Parse(sql)
	require.NoError(t, err)
	require.Len(t, tree.Stmts, 1)

	sel := tree.Stmts[0].Stmt.GetSelectStmt()
	require.NotNil(t, sel, "not a SELECT statement")

	stmt, err := transpile.Transpile(sel)
	require.NoError(t, err)

	return render.Render(stmt).FullPath
}

// end-to-end scenarios, one golden fixture each.
func TestRenderEndToEnd(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata"))

	cases := []struct {
		name string
		sql  string
	}{
		{"plain_target_list", `select title, description from books`},
		{"and_filter", `select * from books where title = 'Cheese' and description ilike '%salsa%'`},
		{"negated_or", `select * from books where not (title = 'Cheese' or title = 'Salsa')`},
		{"inner_embed", `select *, authors.name from books join authors on author_id = authors.id`},
		{"aggregate_output_cast", `select sum(amount)::float from orders`},
		{"sort_limit_offset", `select * from books order by title desc nulls last limit 5 offset 10`},
		{"json_path", `select address->'city'->>'name' from books`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mustRender(t, tc.sql)
			g.Assert(t, tc.name, []byte(got))
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	sql := `select *, authors.name from books join authors on author_id = authors.id where title = 'Cheese' order by title desc limit 5`
	first := mustRender(t, sql)
	second := mustRender(t, sql)
	require.Equal(t, first, second)
}

func TestRenderPathIgnoresAlias(t *testing.T) {
	got := mustRender(t, `select b.title from books b`)
	require.Equal(t, "/books?select=title", got)
}

func TestRenderAliasElision(t *testing.T) {
	got := mustRender(t, `select title as title from books`)
	require.Equal(t, "/books?select=title", got)
}

func TestRenderDoubleNegationIdempotent(t *testing.T) {
	plain := mustRender(t, `select * from books where title = 'Cheese'`)
	doubled := mustRender(t, `select * from books where not (not (title = 'Cheese'))`)
	require.Equal(t, plain, doubled)
}

func TestRenderMethodIsAlwaysGet(t *testing.T) {
	got := mustRender(t, `select * from books`)
	require.Equal(t, "/books", got)

	tree, err := pg_query.Parse(`select * from books`)
	require.NoError(t, err)
	stmt, err := transpile.Transpile(tree.Stmts[0].Stmt.GetSelectStmt())
	require.NoError(t, err)
	require.Equal(t, "GET", render.Render(stmt).Method)
}
