// Package query defines an immutable expression tree for layered
// aggregation plans. Nodes compose into select/join/filter/group-by
// structures that a rendering backend turns into a concrete query
// language; the tree itself is engine-agnostic.
package query

// Expr is a node in the expression tree.
type Expr interface {
	exprNode()
}

// Field references a column, optionally qualified by table or alias,
// e.g. Field{Chain: ["exposure", "variant"]}.
type Field struct {
	Chain []string
}

// Constant is a literal value: string, number, bool, time, or a slice
// for membership tests.
type Constant struct {
	Value interface{}
}

// Alias names the result of an expression in a select list.
type Alias struct {
	Name string
	Expr Expr
}

// Call applies a named function: min, sum, count, coalesce, power.
type Call struct {
	Name string
	Args []Expr
}

// Property extracts a named key from a semi-structured property blob
// column. Rendering decides the concrete extraction syntax.
type Property struct {
	Column string
	Key    string
}

// NumericCast coerces an expression to a float value.
type NumericCast struct {
	Expr Expr
}

// CompareOp enumerates comparison operators.
type CompareOp string

const (
	OpEq      CompareOp = "="
	OpNotEq   CompareOp = "!="
	OpGt      CompareOp = ">"
	OpGtEq    CompareOp = ">="
	OpLt      CompareOp = "<"
	OpLtEq    CompareOp = "<="
	OpIn      CompareOp = "in"
	OpILike   CompareOp = "ilike"
	OpIsNull  CompareOp = "is null"
	OpNotNull CompareOp = "is not null"
)

// Compare is a binary comparison. Right is ignored for the null checks.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

// And is the conjunction of its operands.
type And struct {
	Exprs []Expr
}

// Or is the disjunction of its operands.
type Or struct {
	Exprs []Expr
}

func (Field) exprNode()       {}
func (Constant) exprNode()    {}
func (Alias) exprNode()       {}
func (Call) exprNode()        {}
func (Property) exprNode()    {}
func (NumericCast) exprNode() {}
func (Compare) exprNode()     {}
func (And) exprNode()         {}
func (Or) exprNode()          {}

// Source is something a select can read from: a named table or a subquery.
type Source interface {
	sourceNode()
}

// Table is a named relation in the backing store.
type Table struct {
	Name string
}

func (Table) sourceNode()        {}
func (*SelectQuery) sourceNode() {}

// JoinType enumerates the supported join kinds.
type JoinType string

const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
)

// Join attaches an additional source to a select with an ON constraint.
type Join struct {
	Type       JoinType
	Source     Source
	Alias      string
	Constraint Expr
}

// SelectQuery is a single layer of the plan: projection, source, optional
// joins, filter and grouping. Values are never mutated after construction;
// stacking layers means wrapping a query as another query's Source.
type SelectQuery struct {
	Select  []Expr
	From    Source
	Alias   string
	Joins   []Join
	Where   Expr
	GroupBy []Expr
}

// FalseExpr returns a predicate that matches no rows. Used when a
// referenced action cannot be resolved: the metric evaluates to zero
// outcomes instead of failing.
func FalseExpr() Expr {
	return Compare{Op: OpEq, Left: Constant{Value: 1}, Right: Constant{Value: 2}}
}

// AndAll conjoins the given predicates, flattening the degenerate cases:
// no predicates means no filter (nil), one predicate stands alone.
func AndAll(exprs ...Expr) Expr {
	filtered := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return And{Exprs: filtered}
	}
}
