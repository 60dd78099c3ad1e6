// Package formula implements a closed arithmetic expression tree over named
// references. Expressions are parsed once from configuration and evaluated
// against an Env; nothing is executed dynamically.
package formula

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrUnknownRef     = errors.New("unknown reference")
)

// Env resolves a reference. lag is 0 for the evaluated period and 1 for the
// period immediately before it.
type Env interface {
	Lookup(name string, lag int) (float64, bool)
}

// EnvFunc adapts a function to Env.
type EnvFunc func(name string, lag int) (float64, bool)

func (f EnvFunc) Lookup(name string, lag int) (float64, bool) { return f(name, lag) }

// Expr is a node of the expression tree.
type Expr interface {
	Eval(env Env) (float64, error)
	String() string
}

// Op is a binary operator.
type Op byte

const (
	OpAdd Op = '+'
	OpSub Op = '-'
	OpMul Op = '*'
	OpDiv Op = '/'
)

// Num is a numeric literal.
type Num float64

func (n Num) Eval(Env) (float64, error) { return float64(n), nil }

func (n Num) String() string { return strconv.FormatFloat(float64(n), 'g', -1, 64) }

// Ref references a named value, optionally from the previous period.
type Ref struct {
	Name string
	Lag  int
}

func (r Ref) Eval(env Env) (float64, error) {
	v, ok := env.Lookup(r.Name, r.Lag)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRef, r)
	}
	return v, nil
}

func (r Ref) String() string {
	if r.Lag > 0 {
		return "prev(" + r.Name + ")"
	}
	return r.Name
}

// Neg is unary minus.
type Neg struct {
	X Expr
}

func (n Neg) Eval(env Env) (float64, error) {
	v, err := n.X.Eval(env)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

func (n Neg) String() string { return "-" + n.X.String() }

// Binary applies Op to two operands.
type Binary struct {
	Op   Op
	L, R Expr
}

func (b Binary) Eval(env Env) (float64, error) {
	l, err := b.L.Eval(env)
	if err != nil {
		return 0, err
	}
	r, err := b.R.Eval(env)
	if err != nil {
		return 0, err
	}
	switch b.Op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpDiv:
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unsupported operator %q", b.Op)
}

func (b Binary) String() string {
	return "(" + b.L.String() + " " + string(b.Op) + " " + b.R.String() + ")"
}

// Refs returns every reference in e, in first-seen order.
func Refs(e Expr) []Ref {
	var out []Ref
	seen := make(map[Ref]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case Ref:
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		case Neg:
			walk(n.X)
		case Binary:
			walk(n.L)
			walk(n.R)
		}
	}
	walk(e)
	return out
}

// UsesLag reports whether e references any previous-period value.
func UsesLag(e Expr) bool {
	for _, r := range Refs(e) {
		if r.Lag > 0 {
			return true
		}
	}
	return false
}
