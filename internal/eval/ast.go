package eval

type exprType int

const (
	comparisonExprType exprType = iota
	inExprType
	notExprType
	logicalExprType
)

// expr is a tagged AST node for the predicate grammar. There is no node type
// that can carry anything beyond comparison, membership, negation, and
// conjunction/disjunction — the grammar is the entire accepted surface.
type expr interface {
	Type() exprType
}

type atom struct {
	kind  atomKind
	str   string
	num   float64
	boolv bool
	isVar bool
	name  string
}

type atomKind int

const (
	atomString atomKind = iota
	atomNumber
	atomBool
	atomNull
)

type comparisonOp string

const (
	eqOp  comparisonOp = "=="
	neqOp comparisonOp = "!="
	ltOp  comparisonOp = "<"
	lteOp comparisonOp = "<="
	gtOp  comparisonOp = ">"
	gteOp comparisonOp = ">="
)

type comparisonExpr struct {
	left  atom
	op    comparisonOp
	right atom
}

func (e *comparisonExpr) Type() exprType { return comparisonExprType }

type inExpr struct {
	left    atom
	list    []atom
	negated bool // "not in"
}

func (e *inExpr) Type() exprType { return inExprType }

type notExpr struct {
	inner expr
}

func (e *notExpr) Type() exprType { return notExprType }

type logicalOp string

const (
	andOp logicalOp = "and"
	orOp  logicalOp = "or"
)

type logicalExpr struct {
	left  expr
	op    logicalOp
	right expr
}

func (e *logicalExpr) Type() exprType { return logicalExprType }
