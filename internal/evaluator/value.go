package evaluator

import (
	"strconv"
)

// Kind identifies the type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	}
	return "unknown"
}

// Value is a dynamically typed scalar produced by evaluation.
type Value struct {
	Kind Kind
	Bool bool
	Int  int64
	Str  string
}

// Null returns the null value.
func Null() Value { return Value{} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntValue wraps i.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IsBool reports whether v holds a bool.
func (v Value) IsBool() bool { return v.Kind == KindBool }

// Truthy reports whether v selects an if clause: true, a non-zero int or a
// non-empty string.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	case KindString:
		return v.Str != ""
	}
	return false
}

// String renders v the way the CLI prints evaluation results.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindString:
		return v.Str
	}
	return "null"
}
