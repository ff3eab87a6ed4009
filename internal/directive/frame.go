package directive

import (
	"github.com/HugoDaniel/pps/internal/diagnostic"
)

// frame is one open if/elif/else group on the branch stack.
type frame interface {
	isCurrent() bool
	kind() Kind
	openedAt() diagnostic.Position
}

// macroFrame is a fully resolved branch.
type macroFrame struct {
	chosenIf bool // An earlier clause of the chain matched
	current  bool // This clause's body is kept
	pos      diagnostic.Position
}

func (f *macroFrame) isCurrent() bool               { return f.current }
func (f *macroFrame) kind() Kind                    { return KindMacro }
func (f *macroFrame) openedAt() diagnostic.Position { return f.pos }

// instanceFrame is a partially resolved branch whose residual condition
// is re-emitted for the shader compiler.
type instanceFrame struct {
	enableElse    bool // Some clause of the chain was emitted
	current       bool // This clause is reachable
	conditionText string
	pos           diagnostic.Position
}

func (f *instanceFrame) isCurrent() bool               { return f.current }
func (f *instanceFrame) kind() Kind                    { return KindInstance }
func (f *instanceFrame) openedAt() diagnostic.Position { return f.pos }

// stack is the branch stack shared by a document and its includes.
type stack []frame

func (s *stack) push(f frame) { *s = append(*s, f) }

func (s *stack) top() frame {
	if len(*s) == 0 {
		return nil
	}
	return (*s)[len(*s)-1]
}

func (s *stack) pop() frame {
	f := s.top()
	if f != nil {
		*s = (*s)[:len(*s)-1]
	}
	return f
}

// inMissedBranch reports whether the innermost open clause is not kept.
func (s stack) inMissedBranch() bool {
	f := s.top()
	return f != nil && !f.isCurrent()
}
