package kwql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenString
	TokenAnd // +
	TokenOr  // /
	TokenLParen
	TokenRParen
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenString:
		return "STRING"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
// Pos is the byte offset of the token's first character in the input.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Lexer tokenizes keyword expressions.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, pos: 0}
}

// Tokenize returns every token of input, terminated by a TokenEOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// NextToken returns the next token from the input.
// Once the input is exhausted it keeps returning TokenEOF.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: len(l.input)}
	}

	start := l.pos
	switch l.input[l.pos] {
	case '+':
		l.pos++
		return Token{Type: TokenAnd, Value: "+", Pos: start}
	case '/':
		l.pos++
		return Token{Type: TokenOr, Value: "/", Pos: start}
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: start}
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: start}
	}

	return l.readString()
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

// readString reads an operand up to whitespace, punctuation or end of input.
// A backslash copies the following character verbatim; a trailing one is kept.
func (l *Lexer) readString() Token {
	start := l.pos
	var sb strings.Builder

	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])

		if r == '\\' {
			l.pos += size
			if l.pos >= len(l.input) {
				sb.WriteByte('\\')
				break
			}
			_, next := utf8.DecodeRuneInString(l.input[l.pos:])
			sb.WriteString(l.input[l.pos : l.pos+next])
			l.pos += next
			continue
		}

		if isPunct(r) || unicode.IsSpace(r) {
			break
		}

		sb.WriteString(l.input[l.pos : l.pos+size])
		l.pos += size
	}

	return Token{Type: TokenString, Value: sb.String(), Pos: start}
}

func isPunct(r rune) bool {
	return r == '+' || r == '/' || r == '(' || r == ')'
}
