package bytecode

import (
	"fmt"
	"strconv"

	"github.com/chazu/lox/compiler"
)

// ---------------------------------------------------------------------------
// Compiler: single-pass Pratt compiler from Lox source to a Chunk
// ---------------------------------------------------------------------------

// Precedence orders binding strength, loosest first.
type Precedence int

const (
	PrecNone        Precedence = iota
	PrecAssignment             // =
	PrecConditional            // ?:
	PrecOr                     // or
	PrecAnd                    // and
	PrecEquality               // == !=
	PrecComparison             // < > <= >=
	PrecTerm                   // + -
	PrecFactor                 // * /
	PrecUnary                  // ! -
	PrecCall                   // . ()
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

// parseRule is one row of the Pratt table.
type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[compiler.TokenType]parseRule

func init() {
	rules = map[compiler.TokenType]parseRule{
		compiler.TokenLeftParen:    {(*Compiler).grouping, nil, PrecNone},
		compiler.TokenMinus:        {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		compiler.TokenPlus:         {nil, (*Compiler).binary, PrecTerm},
		compiler.TokenSlash:        {nil, (*Compiler).binary, PrecFactor},
		compiler.TokenStar:         {nil, (*Compiler).binary, PrecFactor},
		compiler.TokenQuestionMark: {nil, (*Compiler).conditional, PrecConditional},
		compiler.TokenBang:         {(*Compiler).unary, nil, PrecNone},
		compiler.TokenBangEqual:    {nil, (*Compiler).binary, PrecEquality},
		compiler.TokenEqualEqual:   {nil, (*Compiler).binary, PrecEquality},
		compiler.TokenGreater:      {nil, (*Compiler).binary, PrecComparison},
		compiler.TokenGreaterEqual: {nil, (*Compiler).binary, PrecComparison},
		compiler.TokenLess:         {nil, (*Compiler).binary, PrecComparison},
		compiler.TokenLessEqual:    {nil, (*Compiler).binary, PrecComparison},
		compiler.TokenIdentifier:   {(*Compiler).variable, nil, PrecNone},
		compiler.TokenString:       {(*Compiler).stringLiteral, nil, PrecNone},
		compiler.TokenNumber:       {(*Compiler).number, nil, PrecNone},
		compiler.TokenAnd:          {nil, (*Compiler).and, PrecAnd},
		compiler.TokenOr:           {nil, (*Compiler).or, PrecOr},
		compiler.TokenFalse:        {(*Compiler).literal, nil, PrecNone},
		compiler.TokenTrue:         {(*Compiler).literal, nil, PrecNone},
		compiler.TokenNil:          {(*Compiler).literal, nil, PrecNone},
	}
}

// getRule returns the table row for t. Tokens without a row have no
// handlers and PrecNone.
func getRule(t compiler.TokenType) parseRule {
	return rules[t]
}

// parseMode is the panic-mode recovery state.
type parseMode int

const (
	modeNormal parseMode = iota
	modePanicking
)

// Compiler turns source into bytecode in one pass, without an AST.
type Compiler struct {
	lexer    *compiler.Lexer
	current  compiler.Token
	previous compiler.Token
	mode     parseMode
	report   *compiler.Reporter

	chunk   *Chunk
	strings *InternTable
	locals  LocalTable
}

func newCompiler(source string, strings *InternTable) *Compiler {
	if strings == nil {
		strings = NewInternTable()
	}
	return &Compiler{
		lexer:   compiler.NewLexer(source),
		report:  &compiler.Reporter{},
		chunk:   NewChunk(),
		strings: strings,
	}
}

// Compile compiles a program. String literals and global names are
// interned into strings, which must be handed to the VM that runs the
// chunk. When the source has errors the result is a *compiler.CompileError
// listing all of them and no chunk.
func Compile(source string, strings *InternTable) (*Chunk, error) {
	c := newCompiler(source, strings)
	c.advance()
	for !c.match(compiler.TokenEOF) {
		c.declaration()
	}
	c.emitOp(OpRet)
	return c.finish()
}

// CompileExpression compiles a single expression whose value is returned
// by OpRet.
func CompileExpression(source string, strings *InternTable) (*Chunk, error) {
	c := newCompiler(source, strings)
	c.advance()
	c.expression()
	c.consume(compiler.TokenEOF, "Expect end of expression.")
	c.emitOp(OpRet)
	return c.finish()
}

func (c *Compiler) finish() (*Chunk, error) {
	if err := c.report.Err(); err != nil {
		return nil, err
	}
	return c.chunk, nil
}

// ---------------------------------------------------------------------------
// Token handling and errors
// ---------------------------------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lexer.NextToken()
		if c.current.Type != compiler.TokenError {
			return
		}
		c.errorAt(c.current, c.current.Lexeme)
	}
}

func (c *Compiler) check(t compiler.TokenType) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t compiler.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t compiler.TokenType, message string) {
	if c.check(t) {
		c.advance()
		return
	}
	c.errorAt(c.current, message)
}

// errorAt reports one diagnostic and enters panic mode. Further errors are
// dropped until synchronize.
func (c *Compiler) errorAt(tok compiler.Token, message string) {
	if c.mode == modePanicking {
		return
	}
	c.mode = modePanicking
	c.report.ErrorAt(tok, message)
}

func (c *Compiler) error(message string) {
	c.errorAt(c.previous, message)
}

// synchronize leaves panic mode at the next statement boundary.
func (c *Compiler) synchronize() {
	c.mode = modeNormal
	for !c.check(compiler.TokenEOF) {
		if c.previous.Type == compiler.TokenSemicolon {
			return
		}
		if c.current.Type.StartsStatement() {
			return
		}
		c.advance()
	}
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

func (c *Compiler) line() int {
	return c.previous.Line()
}

func (c *Compiler) emitOp(op Opcode) {
	c.chunk.WriteOp(op, c.line())
}

func (c *Compiler) emitOps(ops ...Opcode) {
	for _, op := range ops {
		c.emitOp(op)
	}
}

func (c *Compiler) emitOpWithOperand(op Opcode, operand byte) {
	c.chunk.WriteOpWithOperand(op, operand, c.line())
}

func (c *Compiler) makeConstant(v Value) byte {
	idx, err := c.chunk.AddConstant(v)
	if err != nil {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return idx
}

func (c *Compiler) emitConstant(v Value) {
	c.emitOpWithOperand(OpPush, c.makeConstant(v))
}

func (c *Compiler) emitJump(op Opcode) int {
	return c.chunk.EmitJump(op, c.line())
}

func (c *Compiler) patchJump(offset int) {
	if err := c.chunk.PatchJump(offset); err != nil {
		c.error("Too much code to jump over.")
	}
}

func (c *Compiler) emitLoop(loopStart int) {
	if err := c.chunk.EmitLoop(loopStart, c.line()); err != nil {
		c.error("Loop body too large.")
	}
}

func (c *Compiler) identifierConstant(name compiler.Token) byte {
	return c.makeConstant(Object(c.strings.Intern(name.Lexeme)))
}

// ---------------------------------------------------------------------------
// Declarations and statements
// ---------------------------------------------------------------------------

func (c *Compiler) declaration() {
	switch {
	case c.match(compiler.TokenLet):
		c.letDeclaration()
	case c.match(compiler.TokenFun), c.match(compiler.TokenClass):
		c.unsupported()
	default:
		c.statement()
	}

	if c.mode == modePanicking {
		c.synchronize()
	}
}

// unsupported rejects constructs that only the tree-walk engine runs.
func (c *Compiler) unsupported() {
	c.error(fmt.Sprintf("'%s' is not supported by the bytecode engine.", c.previous.Lexeme))
}

func (c *Compiler) letDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(compiler.TokenEqual) {
		c.expression()
	} else {
		c.emitOp(OpNil)
	}
	c.consume(compiler.TokenSemicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

// parseVariable consumes a variable name. Globals return the constant
// index of their name; locals are declared and return 0.
func (c *Compiler) parseVariable(message string) byte {
	c.consume(compiler.TokenIdentifier, message)
	if c.locals.Depth() > 0 {
		if err := c.locals.Declare(c.previous); err != nil {
			c.error(err.Error())
		}
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) defineVariable(global byte) {
	if c.locals.Depth() > 0 {
		c.locals.MarkInitialized()
		if n := c.locals.Len(); n > 0 {
			c.chunk.SetVarName(n-1, c.locals.At(n-1).Name.Lexeme)
		}
		return
	}
	c.emitOpWithOperand(OpDefineGlobal, global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(compiler.TokenPrint):
		c.printStatement()
	case c.match(compiler.TokenIf):
		c.ifStatement()
	case c.match(compiler.TokenWhile):
		c.whileStatement()
	case c.match(compiler.TokenFor):
		c.forStatement()
	case c.match(compiler.TokenReturn):
		c.unsupported()
	case c.match(compiler.TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) beginScope() {
	c.locals.BeginScope()
}

// endScope pops the block's locals off the VM stack.
func (c *Compiler) endScope() {
	for n := c.locals.EndScope(); n > 0; n-- {
		c.emitOp(OpPop)
	}
}

func (c *Compiler) block() {
	for !c.check(compiler.TokenRightBrace) && !c.check(compiler.TokenEOF) {
		c.declaration()
	}
	c.consume(compiler.TokenRightBrace, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(compiler.TokenSemicolon, "Expect ';' after value.")
	c.emitOp(OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(compiler.TokenSemicolon, "Expect ';' after expression.")
	c.emitOp(OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(compiler.TokenLeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(compiler.TokenRightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(OpJZ)
	c.emitOp(OpPop)
	c.statement()

	elseJump := c.emitJump(OpJMP)
	c.patchJump(thenJump)
	c.emitOp(OpPop)

	if c.match(compiler.TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.chunk.CurrentOffset()
	c.consume(compiler.TokenLeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(compiler.TokenRightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(OpJZ)
	c.emitOp(OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(compiler.TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(compiler.TokenSemicolon):
	case c.match(compiler.TokenLet):
		c.letDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.chunk.CurrentOffset()
	exitJump := -1
	if !c.match(compiler.TokenSemicolon) {
		c.expression()
		c.consume(compiler.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(OpJZ)
		c.emitOp(OpPop)
	}

	if !c.match(compiler.TokenRightParen) {
		// The increment runs after the body, so jump over it now and loop
		// back to it from the end of the body.
		bodyJump := c.emitJump(OpJMP)
		incrementStart := c.chunk.CurrentOffset()
		c.expression()
		c.emitOp(OpPop)
		c.consume(compiler.TokenRightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(OpPop)
	}
	c.endScope()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

// parsePrecedence parses anything binding at least as tightly as prec.
func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.current.Type).precedence {
		c.advance()
		getRule(c.previous.Type).infix(c, canAssign)
	}

	if canAssign && c.match(compiler.TokenEqual) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(Number(n))
}

func (c *Compiler) stringLiteral(bool) {
	c.emitConstant(Object(c.strings.Intern(c.previous.Lexeme)))
}

func (c *Compiler) literal(bool) {
	switch c.previous.Type {
	case compiler.TokenFalse:
		c.emitOp(OpFalse)
	case compiler.TokenTrue:
		c.emitOp(OpTrue)
	case compiler.TokenNil:
		c.emitOp(OpNil)
	}
}

func (c *Compiler) grouping(bool) {
	c.expression()
	c.consume(compiler.TokenRightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(bool) {
	op := c.previous.Type
	c.parsePrecedence(PrecUnary)

	switch op {
	case compiler.TokenMinus:
		c.emitOp(OpNeg)
	case compiler.TokenBang:
		c.emitOp(OpNot)
	}
}

func (c *Compiler) binary(bool) {
	op := c.previous.Type
	c.parsePrecedence(getRule(op).precedence + 1)

	switch op {
	case compiler.TokenPlus:
		c.emitOp(OpAdd)
	case compiler.TokenMinus:
		c.emitOp(OpSub)
	case compiler.TokenStar:
		c.emitOp(OpMul)
	case compiler.TokenSlash:
		c.emitOp(OpDiv)
	case compiler.TokenEqualEqual:
		c.emitOp(OpEq)
	case compiler.TokenBangEqual:
		c.emitOps(OpEq, OpNot)
	case compiler.TokenGreater:
		c.emitOp(OpGt)
	case compiler.TokenGreaterEqual:
		c.emitOps(OpLt, OpNot)
	case compiler.TokenLess:
		c.emitOp(OpLt)
	case compiler.TokenLessEqual:
		c.emitOps(OpGt, OpNot)
	}
}

// and leaves the left operand when it is falsey, else evaluates the right.
func (c *Compiler) and(bool) {
	endJump := c.emitJump(OpJZ)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

// or leaves the left operand when it is truthy, else evaluates the right.
func (c *Compiler) or(bool) {
	elseJump := c.emitJump(OpJZ)
	endJump := c.emitJump(OpJMP)

	c.patchJump(elseJump)
	c.emitOp(OpPop)

	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

// conditional compiles `cond ? then : else`. The else branch parses at
// the same precedence so nested conditionals associate to the right.
func (c *Compiler) conditional(bool) {
	thenJump := c.emitJump(OpJZ)
	c.emitOp(OpPop)
	c.expression()
	c.consume(compiler.TokenColon, "Expect ':' after then branch of conditional expression.")

	elseJump := c.emitJump(OpJMP)
	c.patchJump(thenJump)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecConditional)
	c.patchJump(elseJump)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) namedVariable(name compiler.Token, canAssign bool) {
	var getOp, setOp Opcode
	var arg byte

	slot, found, err := c.locals.Resolve(name.Lexeme)
	if err != nil {
		c.error(err.Error())
	}
	if found {
		getOp, setOp, arg = OpGetLocal, OpSetLocal, byte(slot)
	} else {
		getOp, setOp, arg = OpGetGlobal, OpSetGlobal, c.identifierConstant(name)
	}

	if canAssign && c.match(compiler.TokenEqual) {
		c.expression()
		c.emitOpWithOperand(setOp, arg)
		return
	}
	c.emitOpWithOperand(getOp, arg)
}
