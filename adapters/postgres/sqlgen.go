package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"expeval/domain/query"
)

// sqlBuilder renders a query plan tree into a single parameterized
// PostgreSQL statement. Rendering is deterministic: the same tree always
// produces the same SQL and argument list.
type sqlBuilder struct {
	sb   strings.Builder
	args []interface{}
}

// RenderSQL converts the plan into SQL text plus positional arguments.
func RenderSQL(q *query.SelectQuery) (string, []interface{}, error) {
	b := &sqlBuilder{}
	if err := b.writeSelect(q); err != nil {
		return "", nil, err
	}
	return b.sb.String(), b.args, nil
}

func (b *sqlBuilder) param(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) writeSelect(q *query.SelectQuery) error {
	b.sb.WriteString("SELECT ")
	for i, e := range q.Select {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		if err := b.writeExpr(e); err != nil {
			return err
		}
	}

	b.sb.WriteString(" FROM ")
	if err := b.writeSource(q.From, q.Alias); err != nil {
		return err
	}

	for _, j := range q.Joins {
		b.sb.WriteString(" ")
		b.sb.WriteString(string(j.Type))
		b.sb.WriteString(" ")
		if err := b.writeSource(j.Source, j.Alias); err != nil {
			return err
		}
		b.sb.WriteString(" ON ")
		if err := b.writeExpr(j.Constraint); err != nil {
			return err
		}
	}

	if q.Where != nil {
		b.sb.WriteString(" WHERE ")
		if err := b.writeExpr(q.Where); err != nil {
			return err
		}
	}

	if len(q.GroupBy) > 0 {
		b.sb.WriteString(" GROUP BY ")
		for i, e := range q.GroupBy {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			// Grouping by a select alias renders the bare alias name.
			if a, ok := e.(query.Alias); ok {
				b.sb.WriteString(quoteIdent(a.Name))
				continue
			}
			if err := b.writeExpr(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *sqlBuilder) writeSource(src query.Source, alias string) error {
	switch s := src.(type) {
	case query.Table:
		b.sb.WriteString(quoteIdent(s.Name))
		if alias != "" {
			b.sb.WriteString(" AS ")
			b.sb.WriteString(quoteIdent(alias))
		}
		return nil
	case *query.SelectQuery:
		if alias == "" {
			return fmt.Errorf("subquery source requires an alias")
		}
		b.sb.WriteString("(")
		if err := b.writeSelect(s); err != nil {
			return err
		}
		b.sb.WriteString(") AS ")
		b.sb.WriteString(quoteIdent(alias))
		return nil
	default:
		return fmt.Errorf("unsupported source node %T", src)
	}
}

func (b *sqlBuilder) writeExpr(e query.Expr) error {
	switch n := e.(type) {
	case query.Field:
		parts := make([]string, len(n.Chain))
		for i, p := range n.Chain {
			parts[i] = quoteIdent(p)
		}
		b.sb.WriteString(strings.Join(parts, "."))
		return nil

	case query.Constant:
		if vs, ok := n.Value.([]string); ok {
			// Membership constants render against ANY of a parameter array.
			b.sb.WriteString(b.param(pq.Array(vs)))
			return nil
		}
		b.sb.WriteString(b.param(n.Value))
		return nil

	case query.Alias:
		if err := b.writeExpr(n.Expr); err != nil {
			return err
		}
		b.sb.WriteString(" AS ")
		b.sb.WriteString(quoteIdent(n.Name))
		return nil

	case query.Call:
		b.sb.WriteString(n.Name)
		b.sb.WriteString("(")
		for i, arg := range n.Args {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			if err := b.writeExpr(arg); err != nil {
				return err
			}
		}
		b.sb.WriteString(")")
		return nil

	case query.Property:
		b.sb.WriteString("(")
		b.sb.WriteString(quoteIdent(n.Column))
		b.sb.WriteString(" ->> ")
		b.sb.WriteString(b.param(n.Key))
		b.sb.WriteString(")")
		return nil

	case query.NumericCast:
		b.sb.WriteString("(")
		if err := b.writeExpr(n.Expr); err != nil {
			return err
		}
		b.sb.WriteString(")::double precision")
		return nil

	case query.Compare:
		switch n.Op {
		case query.OpIsNull, query.OpNotNull:
			if err := b.writeExpr(n.Left); err != nil {
				return err
			}
			b.sb.WriteString(" ")
			b.sb.WriteString(strings.ToUpper(string(n.Op)))
			return nil
		case query.OpIn:
			if err := b.writeExpr(n.Left); err != nil {
				return err
			}
			b.sb.WriteString(" = ANY(")
			if err := b.writeExpr(n.Right); err != nil {
				return err
			}
			b.sb.WriteString(")")
			return nil
		case query.OpILike:
			if err := b.writeExpr(n.Left); err != nil {
				return err
			}
			b.sb.WriteString(" ILIKE ")
			return b.writeExpr(n.Right)
		default:
			if err := b.writeExpr(n.Left); err != nil {
				return err
			}
			b.sb.WriteString(" ")
			b.sb.WriteString(string(n.Op))
			b.sb.WriteString(" ")
			return b.writeExpr(n.Right)
		}

	case query.And:
		return b.writeBool("AND", n.Exprs)
	case query.Or:
		return b.writeBool("OR", n.Exprs)

	default:
		return fmt.Errorf("unsupported expression node %T", e)
	}
}

func (b *sqlBuilder) writeBool(op string, exprs []query.Expr) error {
	b.sb.WriteString("(")
	for i, e := range exprs {
		if i > 0 {
			b.sb.WriteString(" ")
			b.sb.WriteString(op)
			b.sb.WriteString(" ")
		}
		if err := b.writeExpr(e); err != nil {
			return err
		}
	}
	b.sb.WriteString(")")
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
