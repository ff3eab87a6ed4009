// Package simplifier partially evaluates boolean directive expressions.
//
// Given the variables known to be false, Simplify removes every subtree
// that is provably false and keeps the rest symbolically:
// 1. A variable known to be false vanishes (nil result)
// 2. An && node vanishes when either side vanishes
// 3. An || or comparison node with one vanished side becomes the
//    surviving side; with both sides vanished it vanishes too
// 4. A unary node over a vanished operand vanishes
//
// Variables that are true or unknown are always kept, so the residual
// expression can still be tested at run time.
package simplifier

import (
	"github.com/HugoDaniel/pps/internal/ast"
)

// Simplify returns the residual form of node given known variable values.
// Only entries mapped to false take part; a nil result means the
// expression is statically false. The input tree is never modified.
func Simplify(node ast.Node, known map[string]bool) ast.Node {
	switch n := node.(type) {
	case nil:
		return nil

	case *ast.VariableExpr:
		if value, ok := known[n.Name]; ok && !value {
			return nil
		}
		return &ast.VariableExpr{Name: n.Name}

	case *ast.BinaryExpr:
		left := Simplify(n.Left, known)
		right := Simplify(n.Right, known)
		if !n.Op.IsBoolean() {
			return &ast.BinaryExpr{Op: n.Op, Left: left, Right: right}
		}
		switch {
		case n.Op == ast.BinOpLogicalAnd && (left == nil || right == nil):
			return nil
		case left == nil && right == nil:
			return nil
		case left == nil:
			return right
		case right == nil:
			return left
		}
		return &ast.BinaryExpr{Op: n.Op, Left: left, Right: right}

	case *ast.UnaryExpr:
		operand := Simplify(n.Operand, known)
		if operand == nil {
			return nil
		}
		return &ast.UnaryExpr{Op: n.Op, Operand: operand}
	}

	return ast.Clone(node)
}
