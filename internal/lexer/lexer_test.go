package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// ----------------------------------------------------------------------------
// Test Helpers (esbuild-style)
// ----------------------------------------------------------------------------

func expectToken(t *testing.T, input string, expected TokenKind) {
	t.Helper()
	l := New(input)
	tok := l.Next()
	if tok.Kind != expected {
		t.Errorf("input %q: expected %v, got %v", input, expected, tok.Kind)
	}
}

func expectTokenValue(t *testing.T, input string, expectedKind TokenKind, expectedValue string) {
	t.Helper()
	l := New(input)
	tok := l.Next()
	if tok.Kind != expectedKind {
		t.Errorf("input %q: expected kind %v, got %v", input, expectedKind, tok.Kind)
	}
	if tok.Value != expectedValue {
		t.Errorf("input %q: expected value %q, got %q", input, expectedValue, tok.Value)
	}
}

func expectTokens(t *testing.T, input string, expected []TokenKind) {
	t.Helper()
	tokens := New(input).Tokenize()
	got := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		got[i] = tok.Kind
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("input %q: token mismatch (-want +got):\n%s", input, diff)
	}
}

func expectError(t *testing.T, input string) {
	t.Helper()
	l := New(input)
	tok := l.Next()
	if tok.Kind != TokError {
		t.Errorf("input %q: expected error, got %v", input, tok.Kind)
	}
	if len(l.Errors()) == 0 {
		t.Errorf("input %q: expected a recorded lex error", input)
	}
}

// ----------------------------------------------------------------------------
// Keyword Tests
// ----------------------------------------------------------------------------

func TestKeywords(t *testing.T) {
	cases := []struct {
		input string
		kind  TokenKind
	}{
		{"bool @a", TokBool},
		{"int @a", TokInt},
		{"string @a", TokString},
		{"if @a", TokIf},
		{"elif @a", TokElif},
		{"else", TokElse},
		{"endif", TokEndif},
		{"true", TokTrue},
		{"false", TokFalse},
	}

	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			expectToken(t, c.input, c.kind)
		})
	}
}

func TestKeywordsRequireTrailingSpace(t *testing.T) {
	expectError(t, "if")
	expectError(t, "int")
	expectError(t, "bool")
	expectError(t, "string")
	expectError(t, "elif")
}

// ----------------------------------------------------------------------------
// Literal Tests
// ----------------------------------------------------------------------------

func TestLiterals(t *testing.T) {
	expectTokenValue(t, "42", TokIntLiteral, "42")
	expectTokenValue(t, "0", TokIntLiteral, "0")
	expectTokenValue(t, "1.5", TokIntLiteral, "1.5")
	expectTokenValue(t, `"s2t"`, TokStringLiteral, "s2t")
	expectTokenValue(t, `""`, TokStringLiteral, "")
	expectTokenValue(t, `"a \n b"`, TokStringLiteral, `a \n b`)
}

func TestLiteralErrors(t *testing.T) {
	expectError(t, "1.2.3")
	expectError(t, `"unterminated`)
}

func TestVariables(t *testing.T) {
	expectTokenValue(t, "@useShadow", TokVariable, "@useShadow")
	expectTokenValue(t, "@a_1", TokVariable, "@a_1")
	expectTokenValue(t, "@", TokVariable, "@")
	expectTokenValue(t, "@x+", TokVariable, "@x")
}

// ----------------------------------------------------------------------------
// Operator Tests
// ----------------------------------------------------------------------------

func TestOperatorDisambiguation(t *testing.T) {
	cases := []struct {
		input    string
		expected []TokenKind
	}{
		{"> @x", []TokenKind{TokGt, TokVariable}},
		{">>@x", []TokenKind{TokGtGt, TokVariable}},
		{">=@x", []TokenKind{TokGtEq, TokVariable}},
		{"< @x", []TokenKind{TokLt, TokVariable}},
		{"<<@x", []TokenKind{TokLtLt, TokVariable}},
		{"<=@x", []TokenKind{TokLtEq, TokVariable}},
		{"& @x", []TokenKind{TokAmp, TokVariable}},
		{"&&@x", []TokenKind{TokAmpAmp, TokVariable}},
		{"| @x", []TokenKind{TokPipe, TokVariable}},
		{"||@x", []TokenKind{TokPipePipe, TokVariable}},
		{"!@x", []TokenKind{TokBang, TokVariable}},
		{"!= @x", []TokenKind{TokBangEq, TokVariable}},
		{"= @x", []TokenKind{TokEq, TokVariable}},
		{"== @x", []TokenKind{TokEqEq, TokVariable}},
	}

	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			expectTokens(t, c.input, c.expected)
		})
	}
}

func TestOperatorsWithoutTrailingSpace(t *testing.T) {
	expectError(t, ">@x")
	expectError(t, "<@x")
	expectError(t, "&@x")
	expectError(t, "|@x")
	expectError(t, "=@x")
	expectError(t, "==@x")
	expectError(t, "!=@x")
	expectError(t, "!(@x)")
	expectError(t, "!")
}

func TestSingleCharOperators(t *testing.T) {
	expectTokens(t, "( ) + - * / % ^ ~ [ ]", []TokenKind{
		TokLParen, TokRParen, TokPlus, TokMinus, TokStar, TokSlash,
		TokPercent, TokCaret, TokTilde, TokLBracket, TokRBracket,
	})
}

// ----------------------------------------------------------------------------
// Stream Tests
// ----------------------------------------------------------------------------

func TestLineBreaks(t *testing.T) {
	expectTokens(t, "int @a = 1\n@a + 2", []TokenKind{
		TokInt, TokVariable, TokEq, TokIntLiteral, TokLineBreak,
		TokVariable, TokPlus, TokIntLiteral,
	})
}

func TestErrorsDoNotHaltTokenization(t *testing.T) {
	l := New("@a $ @b")
	tokens := l.Tokenize()
	expected := []TokenKind{TokVariable, TokError, TokVariable}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, tok := range tokens {
		if tok.Kind != expected[i] {
			t.Errorf("token %d: expected %v, got %v", i, expected[i], tok.Kind)
		}
	}
	if !HasErrors(tokens) {
		t.Error("HasErrors: expected true")
	}
	if len(l.Errors()) != 1 {
		t.Errorf("expected 1 lex error, got %d", len(l.Errors()))
	}
}

func TestEmptyInput(t *testing.T) {
	if tokens := New("").Tokenize(); len(tokens) != 0 {
		t.Errorf("expected no tokens, got %v", tokens)
	}
	if tokens := New("  \t ").Tokenize(); len(tokens) != 0 {
		t.Errorf("expected no tokens, got %v", tokens)
	}
}

func TestTokenText(t *testing.T) {
	src := "@a && @bc"
	tokens := New(src).Tokenize()
	want := []string{"@a", "&&", "@bc"}
	for i, tok := range tokens {
		if got := tok.Text(src); got != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], got)
		}
	}
}

// Every token that can stand alone survives a render/lex round trip.
func TestRenderRoundTrip(t *testing.T) {
	tokens := []Token{
		{Kind: TokLineBreak},
		{Kind: TokIntLiteral, Value: "17"},
		{Kind: TokStringLiteral, Value: "abc"},
		{Kind: TokTrue},
		{Kind: TokFalse},
		{Kind: TokVariable, Value: "@v"},
		{Kind: TokBool},
		{Kind: TokInt},
		{Kind: TokString},
		{Kind: TokIf},
		{Kind: TokElif},
		{Kind: TokElse},
		{Kind: TokEndif},
		{Kind: TokPlus},
		{Kind: TokMinus},
		{Kind: TokStar},
		{Kind: TokSlash},
		{Kind: TokPercent},
		{Kind: TokCaret},
		{Kind: TokTilde},
		{Kind: TokAmp},
		{Kind: TokPipe},
		{Kind: TokLt},
		{Kind: TokGt},
		{Kind: TokEq},
		{Kind: TokAmpAmp},
		{Kind: TokPipePipe},
		{Kind: TokLtLt},
		{Kind: TokGtGt},
		{Kind: TokLtEq},
		{Kind: TokGtEq},
		{Kind: TokEqEq},
		{Kind: TokBangEq},
		{Kind: TokLParen},
		{Kind: TokRParen},
		{Kind: TokLBracket},
		{Kind: TokRBracket},
	}

	for _, want := range tokens {
		t.Run(want.Kind.String(), func(t *testing.T) {
			got := New(Render(want)).Tokenize()
			if len(got) != 1 {
				t.Fatalf("expected 1 token, got %d: %v", len(got), got)
			}
			if got[0].Kind != want.Kind || got[0].Value != want.Value {
				t.Errorf("expected %v %q, got %v %q", want.Kind, want.Value, got[0].Kind, got[0].Value)
			}
		})
	}
}

func TestRenderBangBeforeVariable(t *testing.T) {
	src := Render(Token{Kind: TokBang}) + Render(Token{Kind: TokVariable, Value: "@a"})
	expectTokens(t, src, []TokenKind{TokBang, TokVariable})
}
