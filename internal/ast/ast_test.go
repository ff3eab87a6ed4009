package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleTree() Node {
	return &CompoundStmt{Stmts: []Node{
		&DeclStmt{Type: TypeInt, Name: "@n", Init: &IntLiteral{Value: 3}},
		&IfStmt{
			Clauses: []IfClause{{
				Cond: &BinaryExpr{Op: BinOpLogicalAnd, Left: &VariableExpr{Name: "@a"}, Right: &UnaryExpr{Op: UnaryOpNot, Operand: &VariableExpr{Name: "@b"}}},
				Body: &AssignStmt{Name: "@n", Value: &StringLiteral{Value: "x"}},
			}},
			Else: &BoolLiteral{Value: true},
		},
	}}
}

func TestDump(t *testing.T) {
	got := Dump(sampleTree())
	want := `(do (decl int @n 3) (if [(&& @a (! @b)) (set @n "x")] [else true]))`
	if got != want {
		t.Errorf("Dump:\nwant %s\ngot  %s", want, got)
	}
	if Dump(nil) != "<nil>" {
		t.Errorf("Dump(nil) = %q", Dump(nil))
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleTree()
	clone := Clone(orig)

	if diff := cmp.Diff(orig, clone); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}

	// Mutating the clone must not touch the original.
	clone.(*CompoundStmt).Stmts[0].(*DeclStmt).Init.(*IntLiteral).Value = 99
	if orig.(*CompoundStmt).Stmts[0].(*DeclStmt).Init.(*IntLiteral).Value != 3 {
		t.Error("Clone shared a child with the original")
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}
}

func TestVariables(t *testing.T) {
	got := Variables(sampleTree())
	// @n is only a declaration and assignment target, never a VariableExpr.
	want := []string{"@a", "@b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Variables mismatch (-want +got):\n%s", diff)
	}
}

func TestBinaryOpIsBoolean(t *testing.T) {
	boolean := map[BinaryOp]bool{
		BinOpLogicalAnd: true, BinOpLogicalOr: true, BinOpEq: true, BinOpNe: true,
		BinOpLt: true, BinOpLe: true, BinOpGt: true, BinOpGe: true,
	}
	for op := BinOpAdd; op <= BinOpIndex; op++ {
		if op.IsBoolean() != boolean[op] {
			t.Errorf("%s.IsBoolean() = %v", op, op.IsBoolean())
		}
	}
}
