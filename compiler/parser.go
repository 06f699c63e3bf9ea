package compiler

import (
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for Lox
// ---------------------------------------------------------------------------

const maxArguments = 255

// Parser parses Lox source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	prevToken Token
	report    *Reporter

	// panicking is set by the first error in a declaration. Later errors
	// in the same declaration are not reported.
	panicking bool
}

// bailout unwinds the parser to the enclosing declaration after an error.
type bailout struct{}

// NewParser creates a new parser for the given input. Diagnostics are
// recorded in report.
func NewParser(input string, report *Reporter) *Parser {
	if report == nil {
		report = &Reporter{}
	}
	p := &Parser{
		lexer:  NewLexer(input),
		report: report,
	}
	p.nextToken()
	return p
}

// nextToken advances to the next non-error token. Error tokens from the
// lexer are reported as they are skipped.
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	for {
		p.curToken = p.lexer.NextToken()
		if p.curToken.Type != TokenError {
			return
		}
		p.errorAt(p.curToken, p.curToken.Lexeme)
	}
}

// errorAt reports message unless the declaration already has an error.
func (p *Parser) errorAt(tok Token, message string) {
	if p.panicking {
		return
	}
	p.panicking = true
	p.report.ErrorAt(tok, message)
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// match consumes the current token if it has one of the given types.
func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.curTokenIs(t) {
			p.nextToken()
			return true
		}
	}
	return false
}

// expect consumes a token of type t or reports message and bails out.
func (p *Parser) expect(t TokenType, message string) Token {
	if p.curTokenIs(t) {
		p.nextToken()
		return p.prevToken
	}
	p.fail(p.curToken, message)
	return Token{}
}

// fail reports an error at tok and unwinds to the current declaration.
func (p *Parser) fail(tok Token, message string) {
	p.errorAt(tok, message)
	panic(bailout{})
}

// synchronize skips tokens until a statement boundary. It always consumes
// at least one token so recovery makes progress.
func (p *Parser) synchronize() {
	p.nextToken()
	for !p.curTokenIs(TokenEOF) {
		if p.prevToken.Type == TokenSemicolon {
			return
		}
		if p.curToken.Type.StartsStatement() {
			return
		}
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses declarations until end of input. Declarations that
// failed to parse are left out of the result.
func (p *Parser) ParseProgram() []Stmt {
	var stmts []Stmt
	for !p.curTokenIs(TokenEOF) {
		if stmt := p.declaration(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// ParseExpression parses a single expression followed by end of input.
func (p *Parser) ParseExpression() (expr Expr) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			expr = nil
		}
	}()
	expr = p.expression()
	p.expect(TokenEOF, "Expect end of expression.")
	return expr
}

// Parse is a convenience that parses source into statements, returning a
// *CompileError when it has syntax errors.
func Parse(input string) ([]Stmt, error) {
	report := &Reporter{}
	stmts := NewParser(input, report).ParseProgram()
	return stmts, report.Err()
}

// declaration parses one declaration, recovering at the next statement
// boundary on error.
func (p *Parser) declaration() (stmt Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.synchronize()
			stmt = nil
		}
	}()

	p.panicking = false
	switch {
	case p.match(TokenClass):
		return p.classDeclaration()
	case p.match(TokenFun):
		return p.function("function")
	case p.match(TokenLet):
		return p.letDeclaration()
	}
	return p.statement()
}

func (p *Parser) classDeclaration() Stmt {
	start := p.prevToken
	name := p.expect(TokenIdentifier, "Expect class name.")

	var superclass *Variable
	if p.match(TokenLess) {
		tok := p.expect(TokenIdentifier, "Expect superclass name.")
		superclass = &Variable{SpanVal: tokenSpan(tok), Name: tok, Depth: Unresolved}
	}

	p.expect(TokenLeftBrace, "Expect '{' before class body.")

	var methods []*Function
	for !p.curTokenIs(TokenRightBrace) && !p.curTokenIs(TokenEOF) {
		methods = append(methods, p.function("method"))
	}

	end := p.expect(TokenRightBrace, "Expect '}' after class body.")
	return &Class{
		SpanVal:    joinSpans(tokenSpan(start), tokenSpan(end)),
		Name:       name,
		Superclass: superclass,
		Methods:    methods,
	}
}

// function parses a function or method after its introducing keyword.
// kind names the construct in error messages.
func (p *Parser) function(kind string) *Function {
	start := p.curToken
	name := p.expect(TokenIdentifier, "Expect "+kind+" name.")
	p.expect(TokenLeftParen, "Expect '(' after "+kind+" name.")

	var params []Token
	if !p.curTokenIs(TokenRightParen) {
		for {
			if len(params) >= maxArguments {
				p.errorAt(p.curToken, "Can't have more than 255 parameters.")
			}
			params = append(params, p.expect(TokenIdentifier, "Expect parameter name."))
			if !p.match(TokenComma) {
				break
			}
		}
	}
	p.expect(TokenRightParen, "Expect ')' after parameters.")

	p.expect(TokenLeftBrace, "Expect '{' before "+kind+" body.")
	body := p.block()
	return &Function{
		SpanVal: joinSpans(tokenSpan(start), tokenSpan(p.prevToken)),
		Name:    name,
		Params:  params,
		Body:    body,
	}
}

func (p *Parser) letDeclaration() Stmt {
	start := p.prevToken
	name := p.expect(TokenIdentifier, "Expect variable name.")

	var initializer Expr
	if p.match(TokenEqual) {
		initializer = p.expression()
	}

	end := p.expect(TokenSemicolon, "Expect ';' after variable declaration.")
	return &Let{
		SpanVal:     joinSpans(tokenSpan(start), tokenSpan(end)),
		Name:        name,
		Initializer: initializer,
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) statement() Stmt {
	switch {
	case p.match(TokenFor):
		return p.forStatement()
	case p.match(TokenIf):
		return p.ifStatement()
	case p.match(TokenPrint):
		return p.printStatement()
	case p.match(TokenReturn):
		return p.returnStatement()
	case p.match(TokenWhile):
		return p.whileStatement()
	case p.match(TokenLeftBrace):
		start := p.prevToken
		stmts := p.block()
		return &Block{SpanVal: joinSpans(tokenSpan(start), tokenSpan(p.prevToken)), Statements: stmts}
	}
	return p.expressionStatement()
}

// forStatement desugars `for (init; cond; incr) body` into a block holding
// the initializer and a while loop.
func (p *Parser) forStatement() Stmt {
	start := p.prevToken
	p.expect(TokenLeftParen, "Expect '(' after 'for'.")

	var initializer Stmt
	switch {
	case p.match(TokenSemicolon):
	case p.match(TokenLet):
		initializer = p.letDeclaration()
	default:
		initializer = p.expressionStatement()
	}

	var condition Expr
	if !p.curTokenIs(TokenSemicolon) {
		condition = p.expression()
	}
	condTok := p.expect(TokenSemicolon, "Expect ';' after loop condition.")

	var increment Expr
	if !p.curTokenIs(TokenRightParen) {
		increment = p.expression()
	}
	p.expect(TokenRightParen, "Expect ')' after for clauses.")

	body := p.statement()
	span := joinSpans(tokenSpan(start), body.Span())

	if increment != nil {
		body = &Block{
			SpanVal: body.Span(),
			Statements: []Stmt{
				body,
				&Expression{SpanVal: increment.Span(), Expression: increment},
			},
		}
	}
	if condition == nil {
		condition = &Literal{SpanVal: tokenSpan(condTok), Value: true}
	}
	var loop Stmt = &While{SpanVal: span, Condition: condition, Body: body}

	if initializer != nil {
		loop = &Block{SpanVal: span, Statements: []Stmt{initializer, loop}}
	}
	return loop
}

func (p *Parser) ifStatement() Stmt {
	start := p.prevToken
	p.expect(TokenLeftParen, "Expect '(' after 'if'.")
	condition := p.expression()
	p.expect(TokenRightParen, "Expect ')' after if condition.")

	then := p.statement()
	end := then.Span()
	var otherwise Stmt
	if p.match(TokenElse) {
		otherwise = p.statement()
		end = otherwise.Span()
	}
	return &If{
		SpanVal:   joinSpans(tokenSpan(start), end),
		Condition: condition,
		Then:      then,
		Else:      otherwise,
	}
}

func (p *Parser) printStatement() Stmt {
	start := p.prevToken
	value := p.expression()
	end := p.expect(TokenSemicolon, "Expect ';' after value.")
	return &Print{SpanVal: joinSpans(tokenSpan(start), tokenSpan(end)), Expression: value}
}

func (p *Parser) returnStatement() Stmt {
	keyword := p.prevToken
	var value Expr
	if !p.curTokenIs(TokenSemicolon) {
		value = p.expression()
	}
	end := p.expect(TokenSemicolon, "Expect ';' after return value.")
	return &Return{SpanVal: joinSpans(tokenSpan(keyword), tokenSpan(end)), Keyword: keyword, Value: value}
}

func (p *Parser) whileStatement() Stmt {
	start := p.prevToken
	p.expect(TokenLeftParen, "Expect '(' after 'while'.")
	condition := p.expression()
	p.expect(TokenRightParen, "Expect ')' after condition.")
	body := p.statement()
	return &While{SpanVal: joinSpans(tokenSpan(start), body.Span()), Condition: condition, Body: body}
}

// block parses statements up to and including the closing brace.
func (p *Parser) block() []Stmt {
	var stmts []Stmt
	for !p.curTokenIs(TokenRightBrace) && !p.curTokenIs(TokenEOF) {
		if stmt := p.declaration(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	p.expect(TokenRightBrace, "Expect '}' after block.")
	return stmts
}

func (p *Parser) expressionStatement() Stmt {
	expr := p.expression()
	end := p.expect(TokenSemicolon, "Expect ';' after expression.")
	return &Expression{SpanVal: joinSpans(expr.Span(), tokenSpan(end)), Expression: expr}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) expression() Expr {
	return p.assignment()
}

func (p *Parser) assignment() Expr {
	expr := p.ternary()

	if p.match(TokenEqual) {
		equals := p.prevToken
		value := p.assignment()
		span := joinSpans(expr.Span(), value.Span())

		switch target := expr.(type) {
		case *Variable:
			return &Assign{SpanVal: span, Name: target.Name, Value: value, Depth: Unresolved}
		case *Get:
			return &Set{SpanVal: span, Object: target.Object, Name: target.Name, Value: value}
		}
		// Reported without unwinding; the expression parsed fine.
		p.errorAt(equals, "Invalid assignment target.")
	}
	return expr
}

func (p *Parser) ternary() Expr {
	expr := p.or()

	if p.match(TokenQuestionMark) {
		question := p.prevToken
		then := p.expression()
		p.expect(TokenColon, "Expect ':' after then branch of conditional expression.")
		otherwise := p.ternary()
		return &Ternary{
			SpanVal:   joinSpans(expr.Span(), otherwise.Span()),
			Condition: expr,
			Question:  question,
			Then:      then,
			Else:      otherwise,
		}
	}
	return expr
}

func (p *Parser) or() Expr {
	expr := p.and()
	for p.match(TokenOr) {
		op := p.prevToken
		right := p.and()
		expr = &Logical{SpanVal: joinSpans(expr.Span(), right.Span()), Left: expr, Operator: op, Right: right}
	}
	return expr
}

func (p *Parser) and() Expr {
	expr := p.equality()
	for p.match(TokenAnd) {
		op := p.prevToken
		right := p.equality()
		expr = &Logical{SpanVal: joinSpans(expr.Span(), right.Span()), Left: expr, Operator: op, Right: right}
	}
	return expr
}

// binary parses a left-associative chain of operators drawn from types,
// with operands parsed by next.
func (p *Parser) binary(next func() Expr, types ...TokenType) Expr {
	expr := next()
	for p.match(types...) {
		op := p.prevToken
		right := next()
		expr = &Binary{SpanVal: joinSpans(expr.Span(), right.Span()), Left: expr, Operator: op, Right: right}
	}
	return expr
}

func (p *Parser) equality() Expr {
	return p.binary(p.comparison, TokenBangEqual, TokenEqualEqual)
}

func (p *Parser) comparison() Expr {
	return p.binary(p.term, TokenGreater, TokenGreaterEqual, TokenLess, TokenLessEqual)
}

func (p *Parser) term() Expr {
	return p.binary(p.factor, TokenMinus, TokenPlus)
}

func (p *Parser) factor() Expr {
	return p.binary(p.unary, TokenSlash, TokenStar)
}

func (p *Parser) unary() Expr {
	if p.match(TokenBang, TokenMinus) {
		op := p.prevToken
		right := p.unary()
		return &Unary{SpanVal: joinSpans(tokenSpan(op), right.Span()), Operator: op, Right: right}
	}
	return p.call()
}

func (p *Parser) call() Expr {
	expr := p.primary()
	for {
		switch {
		case p.match(TokenLeftParen):
			expr = p.finishCall(expr)
		case p.match(TokenDot):
			name := p.expect(TokenIdentifier, "Expect property name after '.'.")
			expr = &Get{SpanVal: joinSpans(expr.Span(), tokenSpan(name)), Object: expr, Name: name}
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee Expr) Expr {
	var args []Expr
	if !p.curTokenIs(TokenRightParen) {
		for {
			if len(args) >= maxArguments {
				p.errorAt(p.curToken, "Can't have more than 255 arguments.")
			}
			args = append(args, p.expression())
			if !p.match(TokenComma) {
				break
			}
		}
	}
	paren := p.expect(TokenRightParen, "Expect ')' after arguments.")
	return &Call{SpanVal: joinSpans(callee.Span(), tokenSpan(paren)), Callee: callee, Paren: paren, Arguments: args}
}

func (p *Parser) primary() Expr {
	tok := p.curToken
	span := tokenSpan(tok)

	switch {
	case p.match(TokenFalse):
		return &Literal{SpanVal: span, Value: false}
	case p.match(TokenTrue):
		return &Literal{SpanVal: span, Value: true}
	case p.match(TokenNil):
		return &Literal{SpanVal: span, Value: nil}
	case p.match(TokenNumber):
		n, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.fail(tok, "Invalid number literal.")
		}
		return &Literal{SpanVal: span, Value: n}
	case p.match(TokenString):
		return &Literal{SpanVal: span, Value: tok.Lexeme}
	case p.match(TokenThis):
		return &This{SpanVal: span, Keyword: tok, Depth: Unresolved}
	case p.match(TokenSuper):
		p.expect(TokenDot, "Expect '.' after 'super'.")
		method := p.expect(TokenIdentifier, "Expect superclass method name.")
		return &Super{SpanVal: joinSpans(span, tokenSpan(method)), Keyword: tok, Method: method, Depth: Unresolved}
	case p.match(TokenIdentifier):
		return &Variable{SpanVal: span, Name: tok, Depth: Unresolved}
	case p.match(TokenLeftParen):
		expr := p.expression()
		end := p.expect(TokenRightParen, "Expect ')' after expression.")
		return &Grouping{SpanVal: joinSpans(span, tokenSpan(end)), Expression: expr}
	}

	p.fail(tok, "Expect expression.")
	return nil
}
