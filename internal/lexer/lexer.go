// Package lexer provides tokenization for PPS directive expressions.
//
// The lexer converts the payload of a directive (one line, or a whole
// multi-line statement buffer) into a sequence of tokens, handling:
// - Type and condition keywords (bool, int, string, if, elif, else, endif)
// - Variables (@name)
// - Integer, bool and string literals
// - Operators, where a trailing space or a second glyph selects the
//   bitwise or logical form of &, |, <, >, ! and =
//
// Lexing never stops at a bad character. The offending input is returned
// as a TokError token and scanning resumes after it, so callers decide
// whether a directive with errors is usable.
package lexer

import "fmt"

// ----------------------------------------------------------------------------
// Token Types
// ----------------------------------------------------------------------------

// TokenKind represents the type of a token.
type TokenKind uint8

const (
	TokError TokenKind = iota
	TokEOF
	TokLineBreak

	// Literals
	TokIntLiteral
	TokStringLiteral
	TokTrue
	TokFalse

	// Variables
	TokVariable

	// Type keywords
	TokBool
	TokInt
	TokString

	// Condition keywords
	TokIf
	TokElif
	TokElse
	TokEndif

	// Operators
	TokPlus    // +
	TokMinus   // -
	TokStar    // *
	TokSlash   // /
	TokPercent // %
	TokCaret   // ^
	TokTilde   // ~
	TokAmp     // "& "
	TokPipe    // "| "
	TokBang    // ! (only before a variable)
	TokLt      // "< "
	TokGt      // "> "
	TokEq      // "= "

	// Multi-char operators
	TokAmpAmp   // &&
	TokPipePipe // ||
	TokLtLt     // <<
	TokGtGt     // >>
	TokLtEq     // <=
	TokGtEq     // >=
	TokEqEq     // "== "
	TokBangEq   // "!= "

	// Delimiters
	TokLParen   // (
	TokRParen   // )
	TokLBracket // [
	TokRBracket // ]
)

// String returns the string representation of a token kind.
func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return "unknown"
}

var tokenNames = [...]string{
	TokError:         "error",
	TokEOF:           "EOF",
	TokLineBreak:     "line break",
	TokIntLiteral:    "int literal",
	TokStringLiteral: "string literal",
	TokTrue:          "true",
	TokFalse:         "false",
	TokVariable:      "variable",
	TokBool:          "bool",
	TokInt:           "int",
	TokString:        "string",
	TokIf:            "if",
	TokElif:          "elif",
	TokElse:          "else",
	TokEndif:         "endif",
	TokPlus:          "+",
	TokMinus:         "-",
	TokStar:          "*",
	TokSlash:         "/",
	TokPercent:       "%",
	TokCaret:         "^",
	TokTilde:         "~",
	TokAmp:           "&",
	TokPipe:          "|",
	TokBang:          "!",
	TokLt:            "<",
	TokGt:            ">",
	TokEq:            "=",
	TokAmpAmp:        "&&",
	TokPipePipe:      "||",
	TokLtLt:          "<<",
	TokGtGt:          ">>",
	TokLtEq:          "<=",
	TokGtEq:          ">=",
	TokEqEq:          "==",
	TokBangEq:        "!=",
	TokLParen:        "(",
	TokRParen:        ")",
	TokLBracket:      "[",
	TokRBracket:      "]",
}

// ----------------------------------------------------------------------------
// Token
// ----------------------------------------------------------------------------

// Token represents a lexical token.
type Token struct {
	Kind  TokenKind
	Start int    // Byte offset in source
	End   int    // Byte offset of end (exclusive)
	Value string // For variables, literals and errors
}

// Text returns the source text of the token.
func (t Token) Text(source string) string {
	if t.Start >= 0 && t.End <= len(source) && t.Start <= t.End {
		return source[t.Start:t.End]
	}
	return ""
}

// LexError describes a TokError token.
type LexError struct {
	Message string
	Pos     int
}

func (e LexError) Error() string {
	return fmt.Sprintf("%d: %s", e.Pos, e.Message)
}

// ----------------------------------------------------------------------------
// Keywords
// ----------------------------------------------------------------------------

// keyword is a whole-word prefix matched at the current position. Keywords
// with a trailing space in their spelling only match when the space is present.
type keyword struct {
	text string
	kind TokenKind
}

// keywordsByFirst is checked in order, so longer spellings that share a
// prefix with a shorter one come first.
var keywordsByFirst = map[byte][]keyword{
	'b': {{"bool ", TokBool}},
	'e': {{"elif ", TokElif}, {"else", TokElse}, {"endif", TokEndif}},
	'f': {{"false", TokFalse}},
	'i': {{"if ", TokIf}, {"int ", TokInt}},
	's': {{"string ", TokString}},
	't': {{"true", TokTrue}},
}

// ----------------------------------------------------------------------------
// Lexer
// ----------------------------------------------------------------------------

// Lexer tokenizes directive source text.
type Lexer struct {
	source string
	pos    int
	start  int
	errors []LexError
}

// New creates a new lexer for the given source.
func New(source string) *Lexer {
	return &Lexer{source: source}
}

// Tokenize returns all tokens in the source. The trailing EOF token is not
// included; error tokens are included in place.
func (l *Lexer) Tokenize() []Token {
	tokens := make([]Token, 0, len(l.source)/3+1)
	for {
		tok := l.Next()
		if tok.Kind == TokEOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// Errors returns the errors reported so far.
func (l *Lexer) Errors() []LexError {
	return l.errors
}

// Next returns the next token.
func (l *Lexer) Next() Token {
	l.skipWhitespace()

	if l.pos >= len(l.source) {
		return Token{Kind: TokEOF, Start: l.pos, End: l.pos}
	}

	l.start = l.pos
	ch := l.source[l.pos]

	switch {
	case ch == '\n':
		l.pos++
		return l.token(TokLineBreak)
	case ch == '@':
		return l.scanVariable()
	case ch == '"':
		return l.scanString()
	case isDigit(ch):
		return l.scanNumber()
	}

	if candidates, ok := keywordsByFirst[ch]; ok {
		for _, kw := range candidates {
			if l.hasPrefix(kw.text) {
				l.pos += len(kw.text)
				return l.token(kw.kind)
			}
		}
	}

	return l.scanOperator()
}

// ----------------------------------------------------------------------------
// Scanning Helpers
// ----------------------------------------------------------------------------

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.source) && isWhitespace(l.source[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) token(kind TokenKind) Token {
	return Token{Kind: kind, Start: l.start, End: l.pos}
}

func (l *Lexer) errorToken(msg string) Token {
	l.errors = append(l.errors, LexError{Message: msg, Pos: l.start})
	return Token{Kind: TokError, Start: l.start, End: l.pos, Value: msg}
}

func (l *Lexer) hasPrefix(s string) bool {
	return len(l.source)-l.pos >= len(s) && l.source[l.pos:l.pos+len(s)] == s
}

func (l *Lexer) scanVariable() Token {
	l.pos++ // @
	for l.pos < len(l.source) && isVariableChar(l.source[l.pos]) {
		l.pos++
	}
	tok := l.token(TokVariable)
	tok.Value = l.source[l.start:l.pos]
	return tok
}

func (l *Lexer) scanString() Token {
	l.pos++ // opening quote
	for l.pos < len(l.source) && l.source[l.pos] != '"' {
		l.pos++
	}
	if l.pos >= len(l.source) {
		return l.errorToken("unterminated string literal")
	}
	l.pos++ // closing quote
	tok := l.token(TokStringLiteral)
	tok.Value = l.source[l.start+1 : l.pos-1]
	return tok
}

func (l *Lexer) scanNumber() Token {
	dots := 0
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if ch == '.' {
			dots++
		} else if !isDigit(ch) {
			break
		}
		l.pos++
	}
	if dots > 1 {
		return l.errorToken(fmt.Sprintf("numeric literal %q has more than one decimal point", l.source[l.start:l.pos]))
	}
	tok := l.token(TokIntLiteral)
	tok.Value = l.source[l.start:l.pos]
	return tok
}

func (l *Lexer) scanOperator() Token {
	ch := l.source[l.pos]

	switch ch {
	case '(':
		return l.single(TokLParen)
	case ')':
		return l.single(TokRParen)
	case '[':
		return l.single(TokLBracket)
	case ']':
		return l.single(TokRBracket)
	case '+':
		return l.single(TokPlus)
	case '-':
		return l.single(TokMinus)
	case '*':
		return l.single(TokStar)
	case '/':
		return l.single(TokSlash)
	case '%':
		return l.single(TokPercent)
	case '^':
		return l.single(TokCaret)
	case '~':
		return l.single(TokTilde)

	case '>':
		switch {
		case l.hasPrefix("> "):
			return l.fixed(TokGt, 1)
		case l.hasPrefix(">="):
			return l.fixed(TokGtEq, 2)
		case l.hasPrefix(">>"):
			return l.fixed(TokGtGt, 2)
		}
	case '<':
		switch {
		case l.hasPrefix("< "):
			return l.fixed(TokLt, 1)
		case l.hasPrefix("<="):
			return l.fixed(TokLtEq, 2)
		case l.hasPrefix("<<"):
			return l.fixed(TokLtLt, 2)
		}
	case '&':
		switch {
		case l.hasPrefix("& "):
			return l.fixed(TokAmp, 1)
		case l.hasPrefix("&&"):
			return l.fixed(TokAmpAmp, 2)
		}
	case '|':
		switch {
		case l.hasPrefix("| "):
			return l.fixed(TokPipe, 1)
		case l.hasPrefix("||"):
			return l.fixed(TokPipePipe, 2)
		}
	case '!':
		switch {
		case l.hasPrefix("!@"):
			return l.fixed(TokBang, 1)
		case l.hasPrefix("!= "):
			return l.fixed(TokBangEq, 3)
		}
	case '=':
		switch {
		case l.hasPrefix("== "):
			return l.fixed(TokEqEq, 3)
		case l.hasPrefix("= "):
			return l.fixed(TokEq, 1)
		}
	}

	l.pos++
	return l.errorToken(fmt.Sprintf("unexpected character %q", ch))
}

func (l *Lexer) single(kind TokenKind) Token {
	return l.fixed(kind, 1)
}

func (l *Lexer) fixed(kind TokenKind, n int) Token {
	l.pos += n
	return l.token(kind)
}

// ----------------------------------------------------------------------------
// Utilities
// ----------------------------------------------------------------------------

// HasErrors reports whether any token in the stream is a TokError.
func HasErrors(tokens []Token) bool {
	for _, tok := range tokens {
		if tok.Kind == TokError {
			return true
		}
	}
	return false
}

// Render returns the canonical source spelling of a token, including the
// trailing space that some operators and keywords require. Lexing the
// rendered text yields the same token.
func Render(tok Token) string {
	switch tok.Kind {
	case TokVariable, TokIntLiteral:
		return tok.Value
	case TokStringLiteral:
		return `"` + tok.Value + `"`
	case TokLineBreak:
		return "\n"
	case TokBool, TokInt, TokString, TokIf, TokElif,
		TokAmp, TokPipe, TokLt, TokGt, TokEq, TokEqEq, TokBangEq:
		return tok.Kind.String() + " "
	case TokError, TokEOF:
		return ""
	}
	return tok.Kind.String()
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\v' || ch == '\f'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isVariableChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || isDigit(ch) || ch == '_'
}
