package compiler

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for Lox source
// ---------------------------------------------------------------------------

// Lexer tokenizes Lox source code. It is pull-based: callers ask for one
// token at a time with NextToken and stop at TokenEOF.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	lineStart int  // offset of current line start
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart + 1,
	}
}

// atEnd reports whether the whole input has been consumed.
func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	if l.atEnd() {
		pos.End = pos.Offset
		return Token{Type: TokenEOF, Lexeme: "", Pos: pos}
	}

	switch ch := l.ch; {
	case ch == '"':
		return l.readString(pos)

	case isDigit(ch):
		return l.readNumber(pos)

	case isLetter(ch) || ch == '_':
		return l.readIdentifierOrKeyword(pos)
	}

	ch := l.ch
	l.readChar()

	switch ch {
	case '(':
		return l.makeToken(TokenLeftParen, pos)
	case ')':
		return l.makeToken(TokenRightParen, pos)
	case '{':
		return l.makeToken(TokenLeftBrace, pos)
	case '}':
		return l.makeToken(TokenRightBrace, pos)
	case ',':
		return l.makeToken(TokenComma, pos)
	case '.':
		return l.makeToken(TokenDot, pos)
	case '-':
		return l.makeToken(TokenMinus, pos)
	case '+':
		return l.makeToken(TokenPlus, pos)
	case ';':
		return l.makeToken(TokenSemicolon, pos)
	case '/':
		return l.makeToken(TokenSlash, pos)
	case '*':
		return l.makeToken(TokenStar, pos)
	case '?':
		return l.makeToken(TokenQuestionMark, pos)
	case ':':
		return l.makeToken(TokenColon, pos)
	case '!':
		return l.makeToken(l.either('=', TokenBangEqual, TokenBang), pos)
	case '=':
		return l.makeToken(l.either('=', TokenEqualEqual, TokenEqual), pos)
	case '<':
		return l.makeToken(l.either('=', TokenLessEqual, TokenLess), pos)
	case '>':
		return l.makeToken(l.either('=', TokenGreaterEqual, TokenGreater), pos)
	}

	return l.errorToken(pos, fmt.Sprintf("Unexpected character '%c'.", ch))
}

// either consumes next if it is the current character and returns matched,
// otherwise it returns single.
func (l *Lexer) either(next rune, matched, single TokenType) TokenType {
	if l.ch == next {
		l.readChar()
		return matched
	}
	return single
}

// makeToken finishes a token whose text runs from pos to the current offset.
func (l *Lexer) makeToken(t TokenType, pos Position) Token {
	pos.End = l.pos
	return Token{Type: t, Lexeme: l.input[pos.Offset:l.pos], Pos: pos}
}

func (l *Lexer) errorToken(pos Position, message string) Token {
	pos.End = l.pos
	return Token{Type: TokenError, Lexeme: message, Pos: pos}
}

// skipWhitespaceAndComments skips whitespace and // line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.ch {
		case ' ', '\t', '\r', '\n':
			l.readChar()
		case '/':
			if l.peekChar() != '/' {
				return
			}
			for l.ch != '\n' && !l.atEnd() {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readString reads a double-quoted string literal. Strings may span lines
// and have no escape sequences. The token lexeme is the string contents.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "

	start := l.pos
	for l.ch != '"' && !l.atEnd() {
		l.readChar()
	}

	if l.atEnd() {
		return l.errorToken(pos, "Unterminated string.")
	}

	contents := l.input[start:l.pos]
	l.readChar() // consume closing "

	pos.End = l.pos
	return Token{Type: TokenString, Lexeme: contents, Pos: pos}
}

// readNumber reads an integer or decimal literal.
func (l *Lexer) readNumber(pos Position) Token {
	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.makeToken(TokenNumber, pos)
}

// readIdentifierOrKeyword reads an identifier or keyword.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	tok := l.makeToken(TokenIdentifier, pos)
	if tokType, ok := reservedWords[tok.Lexeme]; ok {
		tok.Type = tokType
	}
	return tok
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input, including the final EOF.
// Error tokens do not stop tokenization.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens
}
