// Package parser builds PPS syntax trees from directive tokens.
//
// Expressions use one function per precedence level, lowest first:
//
//	||  &&  |  ^  &  == !=  < >  << >>  + -  * / %  ! ~  postfix []  primary
//
// Statements are declarations (int @x = expr), assignments (@x = expr),
// if/elif/else/endif conditions and bare expressions. A program with one
// statement parses to that statement; more become a CompoundStmt.
//
// The parser never panics on bad input. Problems are collected as
// ParseErrors and parsing continues on a best-effort basis; callers treat
// any error as "this directive did not parse".
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/HugoDaniel/pps/internal/ast"
	"github.com/HugoDaniel/pps/internal/lexer"
)

// Parser parses a token stream into an AST.
type Parser struct {
	source string
	tokens []lexer.Token
	pos    int

	// Errors
	errors []ParseError
}

// ParseError represents a parsing error.
type ParseError struct {
	Message string
	Pos     int
	Line    int
	Column  int
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// New creates a new parser for the given source.
func New(source string) *Parser {
	return &Parser{
		source: source,
		tokens: lexer.New(source).Tokenize(),
	}
}

// NewFromTokens creates a parser over an already lexed stream. Error
// positions are byte offsets only since no source text is available.
func NewFromTokens(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses the whole token stream. The returned node is nil when no
// statement could be parsed.
func (p *Parser) Parse() (ast.Node, []ParseError) {
	node := p.parseProgram()
	return node, p.errors
}

// ParseString lexes and parses source in one step.
func ParseString(source string) (ast.Node, []ParseError) {
	return New(source).Parse()
}

// ----------------------------------------------------------------------------
// Token Helpers
// ----------------------------------------------------------------------------

func (p *Parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.eof()
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek(offset int) lexer.Token {
	pos := p.pos + offset
	if pos >= len(p.tokens) {
		return p.eof()
	}
	return p.tokens[pos]
}

func (p *Parser) eof() lexer.Token {
	end := 0
	if n := len(p.tokens); n > 0 {
		end = p.tokens[n-1].End
	}
	return lexer.Token{Kind: lexer.TokEOF, Start: end, End: end}
}

func (p *Parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(kind lexer.TokenKind) (lexer.Token, bool) {
	tok := p.current()
	if tok.Kind != kind {
		p.error(fmt.Sprintf("expected %s, got %s", kind, describe(tok)))
		// Don't advance; the caller decides how to recover.
		return tok, false
	}
	p.advance()
	return tok, true
}

func (p *Parser) match(kind lexer.TokenKind) bool {
	if p.current().Kind == kind {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) skipLineBreaks() {
	for p.current().Kind == lexer.TokLineBreak {
		p.advance()
	}
}

func (p *Parser) error(msg string) {
	tok := p.current()
	line, col := lineColumn(p.source, tok.Start)
	p.errors = append(p.errors, ParseError{
		Message: msg,
		Pos:     tok.Start,
		Line:    line,
		Column:  col,
	})
}

// lineColumn converts a byte offset to a 1-based line and column. Without
// source text both are zero.
func lineColumn(source string, offset int) (int, int) {
	if source == "" || offset < 0 || offset > len(source) {
		return 0, 0
	}
	before := source[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndexByte(before, '\n')
	return line, col
}

func describe(tok lexer.Token) string {
	if tok.Kind == lexer.TokError {
		return tok.Value
	}
	return tok.Kind.String()
}

// ----------------------------------------------------------------------------
// Statements
// ----------------------------------------------------------------------------

func (p *Parser) parseProgram() ast.Node {
	var stmts []ast.Node

	for {
		p.skipLineBreaks()
		if p.current().Kind == lexer.TokEOF {
			break
		}
		s := p.parseStatement()
		if s == nil {
			break
		}
		stmts = append(stmts, s)
	}

	switch len(stmts) {
	case 0:
		if len(p.errors) == 0 {
			p.error("empty statement")
		}
		return nil
	case 1:
		return stmts[0]
	}
	return &ast.CompoundStmt{Stmts: stmts}
}

func (p *Parser) parseStatement() ast.Node {
	tok := p.current()

	switch tok.Kind {
	case lexer.TokBool, lexer.TokInt, lexer.TokString:
		return p.parseDeclaration()

	case lexer.TokIf:
		return p.parseIfStmt()

	case lexer.TokVariable:
		if p.peek(1).Kind == lexer.TokEq {
			return p.parseAssignment()
		}
		return p.parseExpression()

	case lexer.TokEOF:
		p.error("empty statement")
		return nil
	}

	if isExpressionStart(tok.Kind) {
		return p.parseExpression()
	}

	if tok.Kind == lexer.TokError {
		p.error(tok.Value)
	} else {
		p.error(fmt.Sprintf("unexpected %s", tok.Kind))
	}
	return nil
}

func (p *Parser) parseDeclaration() ast.Node {
	var typ ast.DeclType
	switch p.advance().Kind {
	case lexer.TokBool:
		typ = ast.TypeBool
	case lexer.TokInt:
		typ = ast.TypeInt
	default:
		typ = ast.TypeString
	}

	name, ok := p.expect(lexer.TokVariable)
	if !ok {
		return nil
	}
	if _, ok := p.expect(lexer.TokEq); !ok {
		return nil
	}
	init := p.parseExpression()
	if init == nil {
		return nil
	}
	return &ast.DeclStmt{Type: typ, Name: name.Value, Init: init}
}

func (p *Parser) parseAssignment() ast.Node {
	name := p.advance()
	p.advance() // =
	value := p.parseExpression()
	if value == nil {
		return nil
	}
	return &ast.AssignStmt{Name: name.Value, Value: value}
}

func (p *Parser) parseIfStmt() ast.Node {
	stmt := &ast.IfStmt{}

	for {
		p.advance() // if / elif
		cond := p.parseExpression()
		if cond == nil {
			return nil
		}
		body := p.parseBlock()
		stmt.Clauses = append(stmt.Clauses, ast.IfClause{Cond: cond, Body: body})

		p.skipLineBreaks()
		if p.current().Kind != lexer.TokElif {
			break
		}
	}

	if p.match(lexer.TokElse) {
		stmt.Else = p.parseBlock()
		p.skipLineBreaks()
	}

	if _, ok := p.expect(lexer.TokEndif); !ok {
		return nil
	}
	return stmt
}

// parseBlock parses the statements of one clause body, up to the next
// elif, else or endif.
func (p *Parser) parseBlock() ast.Node {
	var stmts []ast.Node

loop:
	for {
		p.skipLineBreaks()
		switch p.current().Kind {
		case lexer.TokElif, lexer.TokElse, lexer.TokEndif, lexer.TokEOF:
			break loop
		}
		s := p.parseStatement()
		if s == nil {
			break
		}
		stmts = append(stmts, s)
	}

	if len(stmts) == 1 {
		return stmts[0]
	}
	return &ast.CompoundStmt{Stmts: stmts}
}

func isExpressionStart(kind lexer.TokenKind) bool {
	switch kind {
	case lexer.TokVariable, lexer.TokIntLiteral, lexer.TokStringLiteral,
		lexer.TokTrue, lexer.TokFalse, lexer.TokLParen,
		lexer.TokBang, lexer.TokTilde:
		return true
	}
	return false
}

// ----------------------------------------------------------------------------
// Expressions
// ----------------------------------------------------------------------------

func (p *Parser) parseExpression() ast.Node {
	return p.parseLogicalOrExpr()
}

func (p *Parser) parseLogicalOrExpr() ast.Node {
	left := p.parseLogicalAndExpr()

	for p.current().Kind == lexer.TokPipePipe {
		p.advance()
		right := p.parseLogicalAndExpr()
		left = &ast.BinaryExpr{Op: ast.BinOpLogicalOr, Left: left, Right: right}
	}

	return left
}

func (p *Parser) parseLogicalAndExpr() ast.Node {
	left := p.parseBitwiseOrExpr()

	for p.current().Kind == lexer.TokAmpAmp {
		p.advance()
		right := p.parseBitwiseOrExpr()
		left = &ast.BinaryExpr{Op: ast.BinOpLogicalAnd, Left: left, Right: right}
	}

	return left
}

func (p *Parser) parseBitwiseOrExpr() ast.Node {
	left := p.parseBitwiseXorExpr()

	for p.current().Kind == lexer.TokPipe {
		p.advance()
		right := p.parseBitwiseXorExpr()
		left = &ast.BinaryExpr{Op: ast.BinOpOr, Left: left, Right: right}
	}

	return left
}

func (p *Parser) parseBitwiseXorExpr() ast.Node {
	left := p.parseBitwiseAndExpr()

	for p.current().Kind == lexer.TokCaret {
		p.advance()
		right := p.parseBitwiseAndExpr()
		left = &ast.BinaryExpr{Op: ast.BinOpXor, Left: left, Right: right}
	}

	return left
}

func (p *Parser) parseBitwiseAndExpr() ast.Node {
	left := p.parseEqualityExpr()

	for p.current().Kind == lexer.TokAmp {
		p.advance()
		right := p.parseEqualityExpr()
		left = &ast.BinaryExpr{Op: ast.BinOpAnd, Left: left, Right: right}
	}

	return left
}

func (p *Parser) parseEqualityExpr() ast.Node {
	left := p.parseRelationalExpr()

	for {
		var op ast.BinaryOp
		switch p.current().Kind {
		case lexer.TokEqEq:
			op = ast.BinOpEq
		case lexer.TokBangEq:
			op = ast.BinOpNe
		default:
			return left
		}
		p.advance()
		right := p.parseRelationalExpr()
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseRelationalExpr() ast.Node {
	left := p.parseShiftExpr()

	for {
		var op ast.BinaryOp
		switch p.current().Kind {
		case lexer.TokLt:
			op = ast.BinOpLt
		case lexer.TokLtEq:
			op = ast.BinOpLe
		case lexer.TokGt:
			op = ast.BinOpGt
		case lexer.TokGtEq:
			op = ast.BinOpGe
		default:
			return left
		}
		p.advance()
		right := p.parseShiftExpr()
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseShiftExpr() ast.Node {
	left := p.parseAdditiveExpr()

	for {
		var op ast.BinaryOp
		switch p.current().Kind {
		case lexer.TokLtLt:
			op = ast.BinOpShl
		case lexer.TokGtGt:
			op = ast.BinOpShr
		default:
			return left
		}
		p.advance()
		right := p.parseAdditiveExpr()
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditiveExpr() ast.Node {
	left := p.parseMultiplicativeExpr()

	for {
		var op ast.BinaryOp
		switch p.current().Kind {
		case lexer.TokPlus:
			op = ast.BinOpAdd
		case lexer.TokMinus:
			op = ast.BinOpSub
		default:
			return left
		}
		p.advance()
		right := p.parseMultiplicativeExpr()
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicativeExpr() ast.Node {
	left := p.parseUnaryExpr()

	for {
		var op ast.BinaryOp
		switch p.current().Kind {
		case lexer.TokStar:
			op = ast.BinOpMul
		case lexer.TokSlash:
			op = ast.BinOpDiv
		case lexer.TokPercent:
			op = ast.BinOpMod
		default:
			return left
		}
		p.advance()
		right := p.parseUnaryExpr()
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnaryExpr() ast.Node {
	var op ast.UnaryOp

	switch p.current().Kind {
	case lexer.TokBang:
		op = ast.UnaryOpNot
	case lexer.TokTilde:
		op = ast.UnaryOpBitNot
	default:
		return p.parsePostfixExpr()
	}

	p.advance()
	operand := p.parseUnaryExpr()
	return &ast.UnaryExpr{Op: op, Operand: operand}
}

func (p *Parser) parsePostfixExpr() ast.Node {
	left := p.parsePrimaryExpr()

	for p.current().Kind == lexer.TokLBracket {
		p.advance()
		index := p.parseExpression()
		p.expect(lexer.TokRBracket)
		left = &ast.BinaryExpr{Op: ast.BinOpIndex, Left: left, Right: index}
	}

	return left
}

func (p *Parser) parsePrimaryExpr() ast.Node {
	tok := p.current()

	switch tok.Kind {
	case lexer.TokIntLiteral:
		p.advance()
		return p.parseIntLiteral(tok)

	case lexer.TokTrue, lexer.TokFalse:
		p.advance()
		return &ast.BoolLiteral{Value: tok.Kind == lexer.TokTrue}

	case lexer.TokStringLiteral:
		p.advance()
		return &ast.StringLiteral{Value: tok.Value}

	case lexer.TokVariable:
		p.advance()
		return &ast.VariableExpr{Name: tok.Value}

	case lexer.TokLParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(lexer.TokRParen)
		return expr
	}

	if tok.Kind == lexer.TokError {
		p.error(tok.Value)
	} else {
		p.error(fmt.Sprintf("expected expression, got %s", tok.Kind))
	}
	if tok.Kind != lexer.TokEOF {
		p.advance()
	}
	return nil
}

func (p *Parser) parseIntLiteral(tok lexer.Token) ast.Node {
	if strings.Contains(tok.Value, ".") {
		p.errorAt(tok, fmt.Sprintf("fractional literal %s is not supported", tok.Value))
		return nil
	}
	v, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil {
		p.errorAt(tok, fmt.Sprintf("integer literal %s out of range", tok.Value))
		return nil
	}
	return &ast.IntLiteral{Value: v}
}

func (p *Parser) errorAt(tok lexer.Token, msg string) {
	line, col := lineColumn(p.source, tok.Start)
	p.errors = append(p.errors, ParseError{Message: msg, Pos: tok.Start, Line: line, Column: col})
}
