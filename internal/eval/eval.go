// Package eval implements the predicate grammar that guards branch
// conditions in a recipe: a hand-written recursive-descent parser and
// switch-based evaluator, never a host-language eval facility.
package eval

import (
	"strconv"

	"golang.org/x/exp/constraints"
)

// Context resolves `{name}` variable references during evaluation.
// Resolution happens during evaluation, not during parsing: an
// absent key resolves to the nil value rather than raising.
type Context interface {
	Lookup(name string) (value any, found bool)
}

// Eval parses and evaluates predicate against ctx, returning the boolean
// result or an *Error wrapping one of the sentinels in errors.go. It never
// loads code, invokes functions, or performs attribute access — the
// recursive-descent parser below is the entire accepted surface.
func Eval(predicate string, ctx Context) (bool, error) {
	root, err := parse(predicate)
	if err != nil {
		return false, err
	}
	return evalExpr(root, ctx)
}

func evalExpr(e expr, ctx Context) (bool, error) {
	switch n := e.(type) {
	case *logicalExpr:
		left, err := evalExpr(n.left, ctx)
		if err != nil {
			return false, err
		}
		// short-circuit, same as any ordinary boolean evaluator
		switch n.op {
		case andOp:
			if !left {
				return false, nil
			}
			return evalExpr(n.right, ctx)
		case orOp:
			if left {
				return true, nil
			}
			return evalExpr(n.right, ctx)
		}
		return false, newError(ErrUnexpectedToken, "unknown logical operator %q", n.op)

	case *notExpr:
		inner, err := evalExpr(n.inner, ctx)
		if err != nil {
			return false, err
		}
		return !inner, nil

	case *comparisonExpr:
		return evalComparison(n, ctx)

	case *inExpr:
		return evalIn(n, ctx)

	default:
		return false, newError(ErrUnexpectedToken, "unrecognized expression node")
	}
}

func evalComparison(e *comparisonExpr, ctx Context) (bool, error) {
	l := resolve(e.left, ctx)
	r := resolve(e.right, ctx)

	switch e.op {
	case eqOp:
		return valuesEqual(l, r), nil
	case neqOp:
		return !valuesEqual(l, r), nil
	case ltOp, lteOp, gtOp, gteOp:
		return compareOrdered(l, r, e.op)
	default:
		return false, newError(ErrInvalidComparisonOp, "unknown comparison operator %q", e.op)
	}
}

func evalIn(e *inExpr, ctx Context) (bool, error) {
	l := resolve(e.left, ctx)
	member := false
	for _, a := range e.list {
		if valuesEqual(l, resolve(a, ctx)) {
			member = true
			break
		}
	}
	if e.negated {
		return !member, nil
	}
	return member, nil
}

// resolvedValue is the dynamic, typed value of an atom after variable
// resolution: one of nil, bool, float64, or string — the only scalar kinds
// the context's values and literals can take.
type resolvedValue struct {
	isNil bool
	b     bool
	n     float64
	s     string
	kind  atomKind
}

func resolve(a atom, ctx Context) resolvedValue {
	if !a.isVar {
		switch a.kind {
		case atomNull:
			return resolvedValue{isNil: true, kind: atomNull}
		case atomBool:
			return resolvedValue{b: a.boolv, kind: atomBool}
		case atomNumber:
			return resolvedValue{n: a.num, kind: atomNumber}
		default:
			return resolvedValue{s: a.str, kind: atomString}
		}
	}

	v, found := ctx.Lookup(a.name)
	if !found || v == nil {
		return resolvedValue{isNil: true, kind: atomNull}
	}
	switch t := v.(type) {
	case bool:
		return resolvedValue{b: t, kind: atomBool}
	case string:
		return resolvedValue{s: t, kind: atomString}
	case float64:
		return resolvedValue{n: t, kind: atomNumber}
	case float32:
		return resolvedValue{n: float64(t), kind: atomNumber}
	case int:
		return resolvedValue{n: float64(t), kind: atomNumber}
	case int32:
		return resolvedValue{n: float64(t), kind: atomNumber}
	case int64:
		return resolvedValue{n: float64(t), kind: atomNumber}
	default:
		// anything else the context hands back renders to its string form;
		// this only affects equality/ordering, never execution.
		return resolvedValue{s: toString(v), kind: atomString}
	}
}

func valuesEqual(l, r resolvedValue) bool {
	if l.isNil || r.isNil {
		return l.isNil && r.isNil
	}
	if l.kind != r.kind {
		return false // cross-type equality is false
	}
	switch l.kind {
	case atomBool:
		return l.b == r.b
	case atomNumber:
		return l.n == r.n
	default:
		return l.s == r.s
	}
}

func compareOrdered(l, r resolvedValue, op comparisonOp) (bool, error) {
	if l.isNil || r.isNil {
		return false, nil // all comparisons against null other than equality are false
	}
	if l.kind != r.kind || l.kind == atomBool {
		return false, newError(ErrCrossTypeOrdering, "cannot order values of different types")
	}
	switch l.kind {
	case atomNumber:
		return orderedCompare(l.n, r.n, op), nil
	case atomString:
		return orderedCompare(l.s, r.s, op), nil
	default:
		return false, newError(ErrCrossTypeOrdering, "cannot order values of type %v", l.kind)
	}
}

func orderedCompare[T constraints.Ordered](l, r T, op comparisonOp) bool {
	switch op {
	case ltOp:
		return l < r
	case lteOp:
		return l <= r
	case gtOp:
		return l > r
	case gteOp:
		return l >= r
	default:
		return false
	}
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
