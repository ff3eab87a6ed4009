package directive

import (
	"github.com/HugoDaniel/pps/internal/evaluator"
)

// Context is the caller's configuration for one document. The engine
// never mutates it. Variable names keep their leading '@'.
type Context struct {
	// Defined constants
	Bools   map[string]bool
	Ints    map[string]int64
	Strings map[string]string

	// Instances maps a variable to the text that replaces it in residual
	// instance conditions and override directives.
	Instances map[string]string

	// Prefixes are include search roots, tried in order.
	Prefixes []string

	// IsStatic resolves instance branches fully, like macro branches.
	IsStatic bool
}

// Defines returns the constants as the evaluator's external tier.
func (c *Context) Defines() evaluator.Defines {
	return evaluator.Defines{Bools: c.Bools, Ints: c.Ints, Strings: c.Strings}
}

// Loader supplies shader text that is not found on the search path.
// A nil slice or a non-nil error both mean "no content".
type Loader interface {
	GetShader(path, key string) ([]byte, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path, key string) ([]byte, error)

// GetShader implements Loader.
func (f LoaderFunc) GetShader(path, key string) ([]byte, error) {
	return f(path, key)
}
