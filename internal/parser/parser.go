// Package parser implements a recursive-descent parser over a Lotus token
// stream, producing an ordered statement sequence.
//
// Grounded on pkgs/parser/parser.go's token-cursor shape (current/previous/
// advance/match/consume) and original_source/lib/parser.c's exact grammar
// and synchronize rule.
package parser

import (
	"github.com/aledsdavies/lotus/internal/ast"
	"github.com/aledsdavies/lotus/internal/diagnostics"
	"github.com/aledsdavies/lotus/internal/token"
)

// Parser turns a token slice into a statement sequence, recovering locally
// from syntax errors via panic-mode synchronization.
type Parser struct {
	tokens []token.Token
	pos    int

	diag *diagnostics.Reporter
}

// New creates a Parser over tokens (normally the output of lexer.ScanTokens,
// always End-terminated), reporting syntax errors to diag.
func New(tokens []token.Token, diag *diagnostics.Reporter) *Parser {
	return &Parser{tokens: tokens, diag: diag}
}

// Parse parses the entire token stream into a statement sequence. Any
// statement that fails to parse is dropped; the result never contains an
// ast.PanicSentinel.
func (p *Parser) Parse() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.isAtEnd() {
		if s, ok := p.declaration(); ok {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// declaration parses one top-level statement, recovering via synchronize on
// failure. The bool result is false when the statement was dropped.
func (p *Parser) declaration() (stmt ast.Stmt, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, isParseErr := r.(parseError); isParseErr {
				p.synchronize()
				stmt, ok = nil, false
				return
			}
			panic(r)
		}
	}()
	return p.statement(), true
}

// parseError is recovered by declaration to unwind the current statement's
// partial construction, mirroring the source's setjmp/longjmp per
// statement.
type parseError struct{}

func (p *Parser) statement() ast.Stmt {
	switch p.peek().Type {
	case token.Let:
		return p.letStatement()
	case token.Fun:
		return p.funStatement()
	case token.LeftBrace:
		return p.blockStatement()
	case token.If:
		return p.ifStatement()
	case token.Print:
		return p.printStatement()
	case token.Return:
		return p.returnStatement()
	case token.Identifier:
		if p.checkNext(token.Equal) {
			return p.assignmentStatement()
		}
		return p.exprStatement()
	default:
		return p.exprStatement()
	}
}

func (p *Parser) letStatement() ast.Stmt {
	line := p.peek().Line
	p.advance() // 'let'
	name := p.consume(token.Identifier, "expected variable name").Lexeme
	p.consume(token.Equal, "expected '=' after variable name")
	value := p.expression()
	p.consume(token.Semicolon, "expected ';' after variable declaration")
	return ast.NewDeclaration(line, name, value)
}

func (p *Parser) funStatement() ast.Stmt {
	line := p.peek().Line
	p.advance() // 'fun'
	name := p.consume(token.Identifier, "expected function name").Lexeme
	p.consume(token.LeftParen, "expected '(' after function name")
	var formals []string
	if !p.check(token.RightParen) {
		for {
			formals = append(formals, p.consume(token.Identifier, "expected parameter name").Lexeme)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightParen, "expected ')' after parameters")
	body := p.statement()
	return ast.NewFunction(line, name, formals, body)
}

func (p *Parser) blockStatement() ast.Stmt {
	line := p.peek().Line
	p.advance() // '{'
	var stmts []ast.Stmt
	for !p.check(token.RightBrace) && !p.isAtEnd() {
		if s, ok := p.declaration(); ok {
			stmts = append(stmts, s)
		}
	}
	p.consume(token.RightBrace, "expected '}' after block")
	return ast.NewBlock(line, stmts)
}

func (p *Parser) ifStatement() ast.Stmt {
	line := p.peek().Line
	p.advance() // 'if'
	p.consume(token.LeftParen, "expected '(' after 'if'")
	cond := p.expression()
	p.consume(token.RightParen, "expected ')' after condition")
	then := p.statement()
	var els ast.Stmt
	if p.match(token.Else) {
		els = p.statement()
	}
	return ast.NewIf(line, cond, then, els)
}

func (p *Parser) printStatement() ast.Stmt {
	line := p.peek().Line
	p.advance() // 'print'
	value := p.expression()
	p.consume(token.Semicolon, "expected ';' after value")
	return ast.NewPrint(line, value)
}

func (p *Parser) returnStatement() ast.Stmt {
	line := p.peek().Line
	p.advance() // 'return'
	value := p.expression()
	p.consume(token.Semicolon, "expected ';' after return value")
	return ast.NewReturn(line, value)
}

func (p *Parser) assignmentStatement() ast.Stmt {
	line := p.peek().Line
	name := p.advance().Lexeme
	p.consume(token.Equal, "expected '=' in assignment")
	value := p.expression()
	p.consume(token.Semicolon, "expected ';' after assignment")
	return ast.NewAssignment(line, name, value)
}

func (p *Parser) exprStatement() ast.Stmt {
	line := p.peek().Line
	e := p.expression()
	p.consume(token.Semicolon, "expected ';' after expression")
	return ast.NewExprStmt(line, e)
}

// Expression grammar, precedence low to high, mirroring §4.2 exactly:
// expression -> forwarding -> equality -> bool_alg -> comparison -> term ->
// factor -> unary -> call -> primary.

func (p *Parser) expression() ast.Expr {
	return p.forwarding()
}

func (p *Parser) forwarding() ast.Expr {
	e := p.equality()
	for p.match(token.PipeGt) {
		line := p.previous().Line
		right := p.equality()
		e = ast.NewBinary(line, e, ast.Forward, right)
	}
	return e
}

func (p *Parser) equality() ast.Expr {
	e := p.boolAlg()
	for p.match(token.EqualEqual, token.BangEqual) {
		op := ast.OperatorFromToken(p.previous().Type)
		line := p.previous().Line
		right := p.boolAlg()
		e = ast.NewBinary(line, e, op, right)
	}
	return e
}

func (p *Parser) boolAlg() ast.Expr {
	e := p.comparison()
	for p.match(token.And, token.Or) {
		op := ast.OperatorFromToken(p.previous().Type)
		line := p.previous().Line
		right := p.comparison()
		e = ast.NewBinary(line, e, op, right)
	}
	return e
}

func (p *Parser) comparison() ast.Expr {
	e := p.term()
	for p.match(token.Greater, token.GreaterEqual, token.Less, token.LessEqual) {
		op := ast.OperatorFromToken(p.previous().Type)
		line := p.previous().Line
		right := p.term()
		e = ast.NewBinary(line, e, op, right)
	}
	return e
}

func (p *Parser) term() ast.Expr {
	e := p.factor()
	for p.match(token.Plus, token.Minus) {
		op := ast.OperatorFromToken(p.previous().Type)
		line := p.previous().Line
		right := p.factor()
		e = ast.NewBinary(line, e, op, right)
	}
	return e
}

func (p *Parser) factor() ast.Expr {
	e := p.unary()
	for p.match(token.Slash, token.Star, token.Percent) {
		op := ast.OperatorFromToken(p.previous().Type)
		line := p.previous().Line
		right := p.unary()
		e = ast.NewBinary(line, e, op, right)
	}
	return e
}

func (p *Parser) unary() ast.Expr {
	if p.match(token.Bang, token.Minus) {
		op := ast.OperatorFromToken(p.previous().Type)
		line := p.previous().Line
		right := p.unary()
		return ast.NewUnary(line, op, right)
	}
	return p.call()
}

// call recognizes IDENT '(' actuals? ')' as a Call; any other identifier or
// primary falls through unchanged.
func (p *Parser) call() ast.Expr {
	if p.check(token.Identifier) && p.checkNext(token.LeftParen) {
		line := p.peek().Line
		name := p.advance().Lexeme
		p.advance() // '('
		var actuals []ast.Expr
		if !p.check(token.RightParen) {
			for {
				actuals = append(actuals, p.expression())
				if !p.match(token.Comma) {
					break
				}
			}
		}
		p.consume(token.RightParen, "expected ')' after arguments")
		return ast.NewCall(line, name, actuals)
	}
	return p.primary()
}

func (p *Parser) primary() ast.Expr {
	tok := p.peek()
	switch tok.Type {
	case token.False:
		p.advance()
		return ast.NewLiteral(tok.Line, ast.BooleanLit, "false")
	case token.True:
		p.advance()
		return ast.NewLiteral(tok.Line, ast.BooleanLit, "true")
	case token.Nil:
		p.advance()
		return ast.NewLiteral(tok.Line, ast.NilLit, "nil")
	case token.Number:
		p.advance()
		return ast.NewLiteral(tok.Line, ast.NumberLit, tok.Lexeme)
	case token.String:
		p.advance()
		return ast.NewLiteral(tok.Line, ast.StringLit, tok.Literal)
	case token.Identifier:
		p.advance()
		return ast.NewIdentifier(tok.Line, tok.Lexeme)
	case token.LeftParen:
		p.advance()
		inner := p.expression()
		p.consume(token.RightParen, "expected ')' after expression")
		return ast.NewGrouping(tok.Line, inner)
	default:
		p.error("expected expression")
		return ast.NewPanicSentinel(tok.Line)
	}
}

// --- token cursor ---

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == token.End
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) peekNext() token.Token {
	if p.pos+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) previous() token.Token {
	return p.tokens[p.pos-1]
}

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.pos++
	}
	return p.previous()
}

func (p *Parser) check(t token.Type) bool {
	return p.peek().Type == t
}

func (p *Parser) checkNext(t token.Type) bool {
	return p.peekNext().Type == t
}

func (p *Parser) match(types ...token.Type) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(t token.Type, message string) token.Token {
	if p.check(t) {
		return p.advance()
	}
	p.error(message)
	return p.peek()
}

// error reports a one-line diagnostic naming the current line and lexeme
// ("at end" at EOF) and aborts the current statement via panic/recover,
// matching throw_error's Log + longjmp pair.
func (p *Parser) error(message string) {
	tok := p.peek()
	if tok.Type == token.End {
		p.diag.Report(diagnostics.Error, "%d at end: %s", tok.Line, message)
	} else {
		p.diag.Report(diagnostics.Error, "%d at '%s': %s", tok.Line, tok.Lexeme, message)
	}
	panic(parseError{})
}

// synchronize advances past the offending token, then skips tokens until
// the previous one was ';' or the lookahead starts a new statement.
func (p *Parser) synchronize() {
	p.advance()
	for !p.isAtEnd() {
		if p.previous().Type == token.Semicolon {
			return
		}
		switch p.peek().Type {
		case token.Fun, token.Let, token.If, token.Print, token.Return:
			return
		}
		p.advance()
	}
}
