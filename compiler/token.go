package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types for the Lox lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Single-character tokens
	TokenLeftParen    // (
	TokenRightParen   // )
	TokenLeftBrace    // {
	TokenRightBrace   // }
	TokenComma        // ,
	TokenDot          // .
	TokenMinus        // -
	TokenPlus         // +
	TokenSemicolon    // ;
	TokenSlash        // /
	TokenStar         // *
	TokenQuestionMark // ?
	TokenColon        // :

	// One or two character tokens
	TokenBang         // !
	TokenBangEqual    // !=
	TokenEqual        // =
	TokenEqualEqual   // ==
	TokenGreater      // >
	TokenGreaterEqual // >=
	TokenLess         // <
	TokenLessEqual    // <=

	// Literals
	TokenIdentifier
	TokenString
	TokenNumber

	// Keywords
	TokenAnd
	TokenClass
	TokenElse
	TokenFalse
	TokenFun
	TokenFor
	TokenIf
	TokenNil
	TokenOr
	TokenPrint
	TokenReturn
	TokenSuper
	TokenThis
	TokenTrue
	TokenLet
	TokenWhile

	tokenTypeCount
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenLeftParen:    "(",
	TokenRightParen:   ")",
	TokenLeftBrace:    "{",
	TokenRightBrace:   "}",
	TokenComma:        ",",
	TokenDot:          ".",
	TokenMinus:        "-",
	TokenPlus:         "+",
	TokenSemicolon:    ";",
	TokenSlash:        "/",
	TokenStar:         "*",
	TokenQuestionMark: "?",
	TokenColon:        ":",
	TokenBang:         "!",
	TokenBangEqual:    "!=",
	TokenEqual:        "=",
	TokenEqualEqual:   "==",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenIdentifier:   "IDENTIFIER",
	TokenString:       "STRING",
	TokenNumber:       "NUMBER",
	TokenAnd:          "and",
	TokenClass:        "class",
	TokenElse:         "else",
	TokenFalse:        "false",
	TokenFun:          "fun",
	TokenFor:          "for",
	TokenIf:           "if",
	TokenNil:          "nil",
	TokenOr:           "or",
	TokenPrint:        "print",
	TokenReturn:       "return",
	TokenSuper:        "super",
	TokenThis:         "this",
	TokenTrue:         "true",
	TokenLet:          "let",
	TokenWhile:        "while",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether t is a reserved word.
func (t TokenType) IsKeyword() bool {
	return t >= TokenAnd && t <= TokenWhile
}

// StartsStatement reports whether a statement may begin with t.
// Error recovery resynchronizes on these.
func (t TokenType) StartsStatement() bool {
	switch t {
	case TokenClass, TokenFun, TokenLet, TokenFor, TokenIf, TokenWhile, TokenPrint, TokenReturn:
		return true
	}
	return false
}

// Position is a location in source text.
type Position struct {
	Offset int // byte offset of the first character
	End    int // byte offset one past the last character
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Token represents a lexical token. For TokenError the lexeme holds the
// error message instead of source text.
type Token struct {
	Type   TokenType
	Lexeme string
	Pos    Position
}

// Line returns the 1-based source line of the token.
func (t Token) Line() int { return t.Pos.Line }

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Lexeme)
	}
	if len(t.Lexeme) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Lexeme[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Lexeme)
}

// SyntheticToken builds an identifier token that does not come from source,
// such as the implicit "this" and "super" bindings.
func SyntheticToken(name string, line int) Token {
	return Token{Type: TokenIdentifier, Lexeme: name, Pos: Position{Line: line}}
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"and":    TokenAnd,
	"class":  TokenClass,
	"else":   TokenElse,
	"false":  TokenFalse,
	"fun":    TokenFun,
	"for":    TokenFor,
	"if":     TokenIf,
	"nil":    TokenNil,
	"or":     TokenOr,
	"print":  TokenPrint,
	"return": TokenReturn,
	"super":  TokenSuper,
	"this":   TokenThis,
	"true":   TokenTrue,
	"let":    TokenLet,
	"while":  TokenWhile,
}

// Keywords returns the reserved words of the language.
func Keywords() []string {
	words := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
