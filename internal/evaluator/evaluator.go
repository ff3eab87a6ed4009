// Package evaluator walks PPS syntax trees and computes their values.
//
// Binary operators dispatch on the runtime kind of the left operand:
// ints get arithmetic, bitwise and comparison operators; bools get the
// logical operators and equality; strings get concatenation, search,
// repetition, slicing, indexing and equality.
//
// Variables resolve against declared locals first and the caller's
// Defines second. An unknown variable evaluates to Int(0) and is recorded
// as a warning; type errors and division by zero abort the expression.
package evaluator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/HugoDaniel/pps/internal/ast"
)

var (
	// ErrType is returned for an operator applied to unsupported kinds.
	ErrType = errors.New("type error")
	// ErrDivisionByZero is returned for integer / or % by zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrRange is returned for a negative shift, slice length or index, or an
	// index past the end of a string.
	ErrRange = errors.New("out of range")
)

// maxRepeat bounds the length of a string produced by repetition.
const maxRepeat = 1 << 20

// WarningKind classifies non-fatal evaluation problems.
type WarningKind uint8

const (
	// UnknownVariable is a variable found in neither tier; it evaluates to 0.
	UnknownVariable WarningKind = iota
	// UndeclaredAssignment assigns to a variable that was never declared.
	UndeclaredAssignment
)

// Warning is a non-fatal evaluation problem.
type Warning struct {
	Kind WarningKind
	Name string
}

func (w Warning) String() string {
	switch w.Kind {
	case UnknownVariable:
		return fmt.Sprintf("unknown variable %s, using 0", w.Name)
	case UndeclaredAssignment:
		return fmt.Sprintf("assignment to undeclared variable %s is ignored", w.Name)
	}
	return w.Name
}

// Evaluator evaluates syntax trees against a set of defines.
type Evaluator struct {
	defines  Defines
	locals   *scope
	warnings []Warning
}

// New creates an evaluator over the given defines.
func New(defines Defines) *Evaluator {
	return &Evaluator{defines: defines, locals: newScope()}
}

// Evaluate evaluates node with a fresh local scope, so declarations made by
// one call are never visible to the next. A nil node evaluates to Null.
func (e *Evaluator) Evaluate(node ast.Node) (Value, error) {
	e.locals = newScope()
	return e.eval(node)
}

// Warnings returns the warnings recorded so far.
func (e *Evaluator) Warnings() []Warning {
	return e.warnings
}

// ResetWarnings discards recorded warnings.
func (e *Evaluator) ResetWarnings() {
	e.warnings = nil
}

// Evaluate is a convenience wrapper around New(defines).Evaluate(node).
func Evaluate(node ast.Node, defines Defines) (Value, []Warning, error) {
	e := New(defines)
	v, err := e.Evaluate(node)
	return v, e.warnings, err
}

func (e *Evaluator) warn(kind WarningKind, name string) {
	e.warnings = append(e.warnings, Warning{Kind: kind, Name: name})
}

// ----------------------------------------------------------------------------
// Nodes
// ----------------------------------------------------------------------------

func (e *Evaluator) eval(node ast.Node) (Value, error) {
	switch n := node.(type) {
	case nil:
		return Null(), nil

	case *ast.IntLiteral:
		return IntValue(n.Value), nil

	case *ast.BoolLiteral:
		return BoolValue(n.Value), nil

	case *ast.StringLiteral:
		return StringValue(n.Value), nil

	case *ast.VariableExpr:
		return e.lookup(n.Name), nil

	case *ast.UnaryExpr:
		operand, err := e.eval(n.Operand)
		if err != nil {
			return Null(), err
		}
		return unary(n.Op, operand)

	case *ast.BinaryExpr:
		left, err := e.eval(n.Left)
		if err != nil {
			return Null(), err
		}
		right, err := e.eval(n.Right)
		if err != nil {
			return Null(), err
		}
		return binary(n.Op, left, right)

	case *ast.DeclStmt:
		return e.declare(n)

	case *ast.AssignStmt:
		return e.assign(n)

	case *ast.IfStmt:
		for _, clause := range n.Clauses {
			cond, err := e.eval(clause.Cond)
			if err != nil {
				return Null(), err
			}
			if cond.Truthy() {
				return e.eval(clause.Body)
			}
		}
		if n.Else != nil {
			return e.eval(n.Else)
		}
		return IntValue(0), nil

	case *ast.CompoundStmt:
		last := BoolValue(false)
		for _, stmt := range n.Stmts {
			v, err := e.eval(stmt)
			if err != nil {
				return Null(), err
			}
			last = v
		}
		return last, nil
	}

	return Null(), fmt.Errorf("%w: unsupported node %T", ErrType, node)
}

func (e *Evaluator) lookup(name string) Value {
	if v, ok := e.locals.lookup(name); ok {
		return v
	}
	if v, ok := e.defines.Lookup(name); ok {
		return v
	}
	e.warn(UnknownVariable, name)
	return IntValue(0)
}

func (e *Evaluator) declare(n *ast.DeclStmt) (Value, error) {
	v, err := e.eval(n.Init)
	if err != nil {
		return Null(), err
	}
	if v.Kind != kindOf(n.Type) {
		return Null(), fmt.Errorf("%w: cannot initialize %s %s with %s", ErrType, n.Type, n.Name, v.Kind)
	}
	e.locals.declare(n.Name, v)
	return v, nil
}

func (e *Evaluator) assign(n *ast.AssignStmt) (Value, error) {
	v, err := e.eval(n.Value)
	if err != nil {
		return Null(), err
	}
	old, ok := e.locals.lookup(n.Name)
	if !ok {
		e.warn(UndeclaredAssignment, n.Name)
		return v, nil
	}
	if old.Kind != v.Kind {
		return Null(), fmt.Errorf("%w: cannot assign %s to %s %s", ErrType, v.Kind, old.Kind, n.Name)
	}
	e.locals.declare(n.Name, v)
	return v, nil
}

func kindOf(t ast.DeclType) Kind {
	switch t {
	case ast.TypeBool:
		return KindBool
	case ast.TypeInt:
		return KindInt
	}
	return KindString
}

// ----------------------------------------------------------------------------
// Operators
// ----------------------------------------------------------------------------

func unsupported(op fmt.Stringer, left, right Value) error {
	return fmt.Errorf("%w: operator %s is not defined for %s and %s", ErrType, op, left.Kind, right.Kind)
}

func unary(op ast.UnaryOp, operand Value) (Value, error) {
	switch {
	case op == ast.UnaryOpNot && operand.Kind == KindBool:
		return BoolValue(!operand.Bool), nil
	case op == ast.UnaryOpBitNot && operand.Kind == KindInt:
		return IntValue(^operand.Int), nil
	}
	return Null(), fmt.Errorf("%w: operator %s is not defined for %s", ErrType, op, operand.Kind)
}

func binary(op ast.BinaryOp, left, right Value) (Value, error) {
	switch left.Kind {
	case KindInt:
		return intBinary(op, left, right)
	case KindBool:
		return boolBinary(op, left, right)
	case KindString:
		return stringBinary(op, left, right)
	}
	return Null(), unsupported(op, left, right)
}

func intBinary(op ast.BinaryOp, left, right Value) (Value, error) {
	if right.Kind != KindInt {
		return Null(), unsupported(op, left, right)
	}
	l, r := left.Int, right.Int

	switch op {
	case ast.BinOpAdd:
		return IntValue(l + r), nil
	case ast.BinOpSub:
		return IntValue(l - r), nil
	case ast.BinOpMul:
		return IntValue(l * r), nil
	case ast.BinOpDiv:
		if r == 0 {
			return Null(), fmt.Errorf("%w: %d / 0", ErrDivisionByZero, l)
		}
		return IntValue(l / r), nil
	case ast.BinOpMod:
		if r == 0 {
			return Null(), fmt.Errorf("%w: %d %% 0", ErrDivisionByZero, l)
		}
		return IntValue(l % r), nil
	case ast.BinOpShl, ast.BinOpShr:
		if r < 0 {
			return Null(), fmt.Errorf("%w: negative shift count %d", ErrRange, r)
		}
		if op == ast.BinOpShl {
			return IntValue(l << uint64(r)), nil
		}
		return IntValue(l >> uint64(r)), nil
	case ast.BinOpAnd:
		return IntValue(l & r), nil
	case ast.BinOpOr:
		return IntValue(l | r), nil
	case ast.BinOpXor:
		return IntValue(l ^ r), nil
	case ast.BinOpEq:
		return BoolValue(l == r), nil
	case ast.BinOpNe:
		return BoolValue(l != r), nil
	case ast.BinOpLt:
		return BoolValue(l < r), nil
	case ast.BinOpLe:
		return BoolValue(l <= r), nil
	case ast.BinOpGt:
		return BoolValue(l > r), nil
	case ast.BinOpGe:
		return BoolValue(l >= r), nil
	}
	return Null(), unsupported(op, left, right)
}

func boolBinary(op ast.BinaryOp, left, right Value) (Value, error) {
	if right.Kind != KindBool {
		return Null(), unsupported(op, left, right)
	}
	l, r := left.Bool, right.Bool

	switch op {
	case ast.BinOpLogicalAnd:
		return BoolValue(l && r), nil
	case ast.BinOpLogicalOr:
		return BoolValue(l || r), nil
	case ast.BinOpEq:
		return BoolValue(l == r), nil
	case ast.BinOpNe:
		return BoolValue(l != r), nil
	}
	return Null(), unsupported(op, left, right)
}

func stringBinary(op ast.BinaryOp, left, right Value) (Value, error) {
	s := left.Str

	if right.Kind == KindString {
		switch op {
		case ast.BinOpAdd:
			return StringValue(s + right.Str), nil
		case ast.BinOpSub:
			if i := strings.Index(s, right.Str); i >= 0 {
				return StringValue(s[i:]), nil
			}
			return StringValue(s), nil
		case ast.BinOpEq:
			return BoolValue(s == right.Str), nil
		case ast.BinOpNe:
			return BoolValue(s != right.Str), nil
		}
		return Null(), unsupported(op, left, right)
	}

	if right.Kind != KindInt {
		return Null(), unsupported(op, left, right)
	}
	n := right.Int

	switch op {
	case ast.BinOpAdd:
		return StringValue(s + strconv.FormatInt(n, 10)), nil
	case ast.BinOpMul:
		if n <= 0 || len(s) == 0 {
			return StringValue(""), nil
		}
		if n > maxRepeat/int64(len(s)) {
			return Null(), fmt.Errorf("%w: repeating %d bytes %d times", ErrRange, len(s), n)
		}
		return StringValue(strings.Repeat(s, int(n))), nil
	case ast.BinOpShl:
		if n < 0 {
			return Null(), fmt.Errorf("%w: negative prefix length %d", ErrRange, n)
		}
		return StringValue(s[:min(n, int64(len(s)))]), nil
	case ast.BinOpShr:
		if n < 0 {
			return Null(), fmt.Errorf("%w: negative suffix length %d", ErrRange, n)
		}
		return StringValue(s[int64(len(s))-min(n, int64(len(s))):]), nil
	case ast.BinOpIndex:
		if n < 0 || n >= int64(len(s)) {
			return Null(), fmt.Errorf("%w: index %d of string of length %d", ErrRange, n, len(s))
		}
		return StringValue(s[n : n+1]), nil
	}
	return Null(), unsupported(op, left, right)
}
