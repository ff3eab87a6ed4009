// Package ast defines the syntax tree for PPS directive expressions.
//
// Every node owns its children exclusively; there is no sharing and no
// cycles. A nil Node is a valid value meaning "no node", which the
// simplifier uses for an eliminated (statically false) expression.
package ast

import (
	"strconv"
	"strings"
)

// Node is implemented by every syntax tree node.
type Node interface {
	isNode()
}

// ----------------------------------------------------------------------------
// Operators
// ----------------------------------------------------------------------------

// BinaryOp represents binary operators.
type BinaryOp uint8

const (
	BinOpAdd        BinaryOp = iota // +
	BinOpSub                        // -
	BinOpMul                        // *
	BinOpDiv                        // /
	BinOpMod                        // %
	BinOpAnd                        // &
	BinOpOr                         // |
	BinOpXor                        // ^
	BinOpShl                        // <<
	BinOpShr                        // >>
	BinOpLogicalAnd                 // &&
	BinOpLogicalOr                  // ||
	BinOpEq                         // ==
	BinOpNe                         // !=
	BinOpLt                         // <
	BinOpLe                         // <=
	BinOpGt                         // >
	BinOpGe                         // >=
	BinOpIndex                      // []
)

var binaryOpNames = [...]string{
	BinOpAdd:        "+",
	BinOpSub:        "-",
	BinOpMul:        "*",
	BinOpDiv:        "/",
	BinOpMod:        "%",
	BinOpAnd:        "&",
	BinOpOr:         "|",
	BinOpXor:        "^",
	BinOpShl:        "<<",
	BinOpShr:        ">>",
	BinOpLogicalAnd: "&&",
	BinOpLogicalOr:  "||",
	BinOpEq:         "==",
	BinOpNe:         "!=",
	BinOpLt:         "<",
	BinOpLe:         "<=",
	BinOpGt:         ">",
	BinOpGe:         ">=",
	BinOpIndex:      "[]",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "?"
}

// IsBoolean reports whether op belongs to the logical/comparison family
// the simplifier is allowed to collapse.
func (op BinaryOp) IsBoolean() bool {
	switch op {
	case BinOpLogicalAnd, BinOpLogicalOr, BinOpEq, BinOpNe,
		BinOpLt, BinOpLe, BinOpGt, BinOpGe:
		return true
	}
	return false
}

// UnaryOp represents unary operators.
type UnaryOp uint8

const (
	UnaryOpNot    UnaryOp = iota // !
	UnaryOpBitNot                // ~
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryOpNot:
		return "!"
	case UnaryOpBitNot:
		return "~"
	}
	return "?"
}

// DeclType is the declared type of a local variable.
type DeclType uint8

const (
	TypeBool DeclType = iota
	TypeInt
	TypeString
)

func (t DeclType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	}
	return "?"
}

// ----------------------------------------------------------------------------
// Expressions
// ----------------------------------------------------------------------------

// VariableExpr references a variable. Name keeps its leading '@'.
type VariableExpr struct {
	Name string
}

// BinaryExpr represents a binary operation.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

// UnaryExpr represents a unary operation.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Node
}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	Value int64
}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	Value bool
}

// StringLiteral represents a string literal.
type StringLiteral struct {
	Value string
}

// ----------------------------------------------------------------------------
// Statements
// ----------------------------------------------------------------------------

// DeclStmt declares a local variable: int @x = expr
type DeclStmt struct {
	Type DeclType
	Name string
	Init Node
}

// AssignStmt assigns to an existing local variable: @x = expr
type AssignStmt struct {
	Name  string
	Value Node
}

// IfClause is one condition/body pair of an if statement.
type IfClause struct {
	Cond Node
	Body Node
}

// IfStmt represents if/elif/else/endif. Else is nil when absent.
type IfStmt struct {
	Clauses []IfClause
	Else    Node
}

// CompoundStmt is a sequence of statements.
type CompoundStmt struct {
	Stmts []Node
}

func (*VariableExpr) isNode()  {}
func (*BinaryExpr) isNode()    {}
func (*UnaryExpr) isNode()     {}
func (*IntLiteral) isNode()    {}
func (*BoolLiteral) isNode()   {}
func (*StringLiteral) isNode() {}
func (*DeclStmt) isNode()      {}
func (*AssignStmt) isNode()    {}
func (*IfStmt) isNode()        {}
func (*CompoundStmt) isNode()  {}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// Clone returns a deep copy of n.
func Clone(n Node) Node {
	switch n := n.(type) {
	case nil:
		return nil
	case *VariableExpr:
		c := *n
		return &c
	case *BinaryExpr:
		return &BinaryExpr{Op: n.Op, Left: Clone(n.Left), Right: Clone(n.Right)}
	case *UnaryExpr:
		return &UnaryExpr{Op: n.Op, Operand: Clone(n.Operand)}
	case *IntLiteral:
		c := *n
		return &c
	case *BoolLiteral:
		c := *n
		return &c
	case *StringLiteral:
		c := *n
		return &c
	case *DeclStmt:
		return &DeclStmt{Type: n.Type, Name: n.Name, Init: Clone(n.Init)}
	case *AssignStmt:
		return &AssignStmt{Name: n.Name, Value: Clone(n.Value)}
	case *IfStmt:
		clauses := make([]IfClause, len(n.Clauses))
		for i, c := range n.Clauses {
			clauses[i] = IfClause{Cond: Clone(c.Cond), Body: Clone(c.Body)}
		}
		return &IfStmt{Clauses: clauses, Else: Clone(n.Else)}
	case *CompoundStmt:
		stmts := make([]Node, len(n.Stmts))
		for i, s := range n.Stmts {
			stmts[i] = Clone(s)
		}
		return &CompoundStmt{Stmts: stmts}
	}
	return nil
}

// Variables returns the distinct variable names referenced by n, in
// first-use order.
func Variables(n Node) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(n, func(n Node) {
		if v, ok := n.(*VariableExpr); ok && !seen[v.Name] {
			seen[v.Name] = true
			names = append(names, v.Name)
		}
	})
	return names
}

// Walk calls fn for n and every node below it, parents first.
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	switch n := n.(type) {
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *UnaryExpr:
		Walk(n.Operand, fn)
	case *DeclStmt:
		Walk(n.Init, fn)
	case *AssignStmt:
		Walk(n.Value, fn)
	case *IfStmt:
		for _, c := range n.Clauses {
			Walk(c.Cond, fn)
			Walk(c.Body, fn)
		}
		Walk(n.Else, fn)
	case *CompoundStmt:
		for _, s := range n.Stmts {
			Walk(s, fn)
		}
	}
}

// Dump renders n as an S-expression, for tests and the -codegen debug flag.
func Dump(n Node) string {
	var sb strings.Builder
	dump(&sb, n)
	return sb.String()
}

func dump(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *VariableExpr:
		sb.WriteString(n.Name)
	case *IntLiteral:
		sb.WriteString(strconv.FormatInt(n.Value, 10))
	case *BoolLiteral:
		sb.WriteString(strconv.FormatBool(n.Value))
	case *StringLiteral:
		sb.WriteString(strconv.Quote(n.Value))
	case *BinaryExpr:
		sb.WriteString("(" + n.Op.String() + " ")
		dump(sb, n.Left)
		sb.WriteByte(' ')
		dump(sb, n.Right)
		sb.WriteByte(')')
	case *UnaryExpr:
		sb.WriteString("(" + n.Op.String() + " ")
		dump(sb, n.Operand)
		sb.WriteByte(')')
	case *DeclStmt:
		sb.WriteString("(decl " + n.Type.String() + " " + n.Name + " ")
		dump(sb, n.Init)
		sb.WriteByte(')')
	case *AssignStmt:
		sb.WriteString("(set " + n.Name + " ")
		dump(sb, n.Value)
		sb.WriteByte(')')
	case *IfStmt:
		sb.WriteString("(if")
		for _, c := range n.Clauses {
			sb.WriteString(" [")
			dump(sb, c.Cond)
			sb.WriteByte(' ')
			dump(sb, c.Body)
			sb.WriteByte(']')
		}
		if n.Else != nil {
			sb.WriteString(" [else ")
			dump(sb, n.Else)
			sb.WriteByte(']')
		}
		sb.WriteByte(')')
	case *CompoundStmt:
		sb.WriteString("(do")
		for _, s := range n.Stmts {
			sb.WriteByte(' ')
			dump(sb, s)
		}
		sb.WriteByte(')')
	}
}
