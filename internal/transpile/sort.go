package transpile

import (
	"errors"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/atlekbai/sqlrest/internal/ir"
)

func compileSorts(table *relationTable, sortClause []*pg_query.Node) ([]ir.Sort, error) {
	sorts := make([]ir.Sort, 0, len(sortClause))
	for _, n := range sortClause {
		sb := n.GetSortBy()
		if sb == nil {
			return nil, errf(UnsupportedExpression, n, "unsupported ORDER BY item")
		}
		if tc := sb.Node.GetTypeCast(); tc != nil {
			return nil, errf(CastOutsideTarget, tc, "cast is not allowed in ORDER BY")
		}
		cr := sb.Node.GetColumnRef()
		if cr == nil {
			return nil, errf(UnsupportedExpression, sb, "ORDER BY item must be a plain column reference")
		}
		parts, isStar := chainFromColumnRef(cr)
		if isStar || len(parts) == 0 || len(parts) > 2 {
			return nil, errf(UnsupportedExpression, sb, "unsupported ORDER BY column")
		}

		var rel, col string
		if len(parts) == 1 {
			col = parts[0]
		} else {
			rel, col = parts[0], parts[1]
		}
		if rel != "" {
			isPrimary, node, err := table.resolve(rel)
			if err != nil {
				return nil, err
			}
			if isPrimary {
				rel = ""
			} else {
				rel = node.key()
			}
		}

		s := ir.Sort{Column: col, Relation: rel}
		switch sb.SortbyDir {
		case pg_query.SortByDir_SORTBY_DEFAULT:
		case pg_query.SortByDir_SORTBY_ASC:
			s.Direction, s.HasDir = ir.Asc, true
		case pg_query.SortByDir_SORTBY_DESC:
			s.Direction, s.HasDir = ir.Desc, true
		default:
			return nil, errf(UnsupportedExpression, sb, "unsupported sort direction")
		}
		switch sb.SortbyNulls {
		case pg_query.SortByNulls_SORTBY_NULLS_DEFAULT:
		case pg_query.SortByNulls_SORTBY_NULLS_FIRST:
			s.Nulls, s.HasNulls = ir.NullsFirst, true
		case pg_query.SortByNulls_SORTBY_NULLS_LAST:
			s.Nulls, s.HasNulls = ir.NullsLast, true
		default:
			return nil, errf(UnsupportedExpression, sb, "unsupported nulls order")
		}

		sorts = append(sorts, s)
	}
	return sorts, nil
}

func compileLimitOffset(stmt *pg_query.SelectStmt) (*int, *int, error) {
	var limit, offset *int
	if stmt.LimitCount != nil {
		v, err := nonNegativeIntLiteral(stmt.LimitCount)
		if err != nil {
			return nil, nil, fmtErr(InvalidLimit, stmt.LimitCount, err)
		}
		limit = &v
	}
	if stmt.LimitOffset != nil {
		v, err := nonNegativeIntLiteral(stmt.LimitOffset)
		if err != nil {
			return nil, nil, fmtErr(InvalidOffset, stmt.LimitOffset, err)
		}
		offset = &v
	}
	return limit, offset, nil
}

func nonNegativeIntLiteral(node *pg_query.Node) (int, error) {
	c := node.GetAConst()
	if c == nil {
		return 0, errors.New("expected an integer literal")
	}
	iv := c.GetIval()
	if iv == nil {
		return 0, errors.New("expected an integer literal")
	}
	if iv.Ival < 0 {
		return 0, errors.New("must be non-negative")
	}
	return int(iv.Ival), nil
}
