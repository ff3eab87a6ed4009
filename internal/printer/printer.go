// Package printer renders simplified directive expressions back to text.
//
// Only the residual boolean forms produced by the simplifier are
// supported: variables, && and || (fully parenthesized) and !. A nil
// node prints as "false". Anything else is reported as an error and
// prints as nothing.
package printer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HugoDaniel/pps/internal/ast"
)

// ErrUnsupported is reported for a construct the printer cannot render.
var ErrUnsupported = errors.New("not supported by the code generator")

// Options controls printer output.
type Options struct {
	// Renamer maps variable names to output text (nil prints names as-is)
	Renamer Renamer
}

// Renamer provides output text for variables.
type Renamer interface {
	NameForVariable(name string) string
}

// MapRenamer renames variables through a map, leaving unmapped names alone.
type MapRenamer map[string]string

// NameForVariable implements Renamer.
func (m MapRenamer) NameForVariable(name string) string {
	if text, ok := m[name]; ok {
		return text
	}
	return name
}

// Printer renders expressions.
type Printer struct {
	options Options
	buf     strings.Builder
	errors  []error
}

// New creates a new printer.
func New(options Options) *Printer {
	return &Printer{options: options}
}

// Print renders node. Errors from previous calls are discarded.
func (p *Printer) Print(node ast.Node) string {
	p.buf.Reset()
	p.errors = nil
	p.printExpr(node)
	return p.buf.String()
}

// Errors returns the errors from the last Print call.
func (p *Printer) Errors() []error {
	return p.errors
}

// Print is a convenience wrapper around New(options).Print(node).
func Print(node ast.Node, options Options) (string, []error) {
	p := New(options)
	out := p.Print(node)
	return out, p.errors
}

func (p *Printer) print(s string) {
	p.buf.WriteString(s)
}

func (p *Printer) printExpr(node ast.Node) {
	switch n := node.(type) {
	case nil:
		p.print("false")

	case *ast.VariableExpr:
		p.printName(n.Name)

	case *ast.BinaryExpr:
		if n.Op != ast.BinOpLogicalAnd && n.Op != ast.BinOpLogicalOr {
			p.unsupported(fmt.Sprintf("operator %s", n.Op))
			return
		}
		p.print("(")
		p.printExpr(n.Left)
		p.print(" " + n.Op.String() + " ")
		p.printExpr(n.Right)
		p.print(")")

	case *ast.UnaryExpr:
		if n.Op != ast.UnaryOpNot {
			p.unsupported(fmt.Sprintf("operator %s", n.Op))
			return
		}
		p.print("(!")
		p.printExpr(n.Operand)
		p.print(")")

	default:
		p.unsupported(fmt.Sprintf("node %s", ast.Dump(node)))
	}
}

func (p *Printer) printName(name string) {
	if p.options.Renamer != nil {
		name = p.options.Renamer.NameForVariable(name)
	}
	p.print(name)
}

func (p *Printer) unsupported(what string) {
	p.errors = append(p.errors, fmt.Errorf("%w: %s", ErrUnsupported, what))
}
