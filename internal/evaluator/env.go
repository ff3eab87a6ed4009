package evaluator

// Defines is the externally supplied, read-only tier of the environment:
// the caller's defined constants. Names keep their leading '@'.
type Defines struct {
	Bools   map[string]bool
	Ints    map[string]int64
	Strings map[string]string
}

// Lookup finds name among the defines. Bools are consulted first, then
// ints, then strings.
func (d Defines) Lookup(name string) (Value, bool) {
	if b, ok := d.Bools[name]; ok {
		return BoolValue(b), true
	}
	if i, ok := d.Ints[name]; ok {
		return IntValue(i), true
	}
	if s, ok := d.Strings[name]; ok {
		return StringValue(s), true
	}
	return Value{}, false
}

// scope is the local tier, holding variables declared during one
// top-level evaluation.
type scope struct {
	vars map[string]Value
}

func newScope() *scope {
	return &scope{vars: make(map[string]Value)}
}

func (s *scope) lookup(name string) (Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *scope) declare(name string, v Value) {
	s.vars[name] = v
}
