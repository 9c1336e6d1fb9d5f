package kwql

import (
	"fmt"

	"github.com/coffersTech/kwrule/internal/config"
)

// SyntaxError reports a token sequence that does not match the grammar.
type SyntaxError struct {
	Msg string
	Pos int // byte offset of the offending token
	Got Token
}

func (e *SyntaxError) Error() string {
	if e.Got.Type == TokenEOF {
		return fmt.Sprintf("syntax error at %d: %s, got end of input", e.Pos, e.Msg)
	}
	return fmt.Sprintf("syntax error at %d: %s, got %v %q", e.Pos, e.Msg, e.Got.Type, e.Got.Value)
}

// Parser parses a token sequence into an AST.
//
//	expression := term ( loose term )*
//	term       := factor ( tight factor )*
//	factor     := '(' expression ')' | STRING
//
// With config.AndTighter loose is '/' and tight is '+'; config.AndOuter swaps them.
type Parser struct {
	tokens []Token
	pos    int
	loose  TokenType
	tight  TokenType
}

// NewParser creates a parser over tokens using the given precedence policy.
// DefaultPrecedence means AndTighter.
func NewParser(tokens []Token, prec config.Precedence) *Parser {
	p := &Parser{tokens: tokens, loose: TokenOr, tight: TokenAnd}
	if prec.Or(config.AndTighter) == config.AndOuter {
		p.loose, p.tight = TokenAnd, TokenOr
	}
	return p
}

// Parse tokenizes and parses the input string and returns the AST root node.
func Parse(input string, prec config.Precedence) (Node, error) {
	return ParseTokens(Tokenize(input), prec)
}

// ParseTokens parses a complete expression; trailing tokens are an error.
func ParseTokens(tokens []Token, prec config.Precedence) (Node, error) {
	return NewParser(tokens, prec).Parse()
}

// Parse consumes the whole token sequence.
func (p *Parser) Parse() (Node, error) {
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type != TokenEOF {
		return nil, p.errorf(tok, "unexpected token after expression")
	}
	return node, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		end := 0
		if n := len(p.tokens); n > 0 {
			end = p.tokens[n-1].Pos + len(p.tokens[n-1].Value)
		}
		return Token{Type: TokenEOF, Pos: end}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) match(t TokenType) bool {
	if p.current().Type == t {
		p.advance()
		return true
	}
	return false
}

// parseExpression handles the loosest operator.
func (p *Parser) parseExpression() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for p.match(p.loose) {
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: opName(p.loose), Left: left, Right: right}
	}

	return left, nil
}

// parseTerm handles the tighter operator.
func (p *Parser) parseTerm() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for p.match(p.tight) {
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: opName(p.tight), Left: left, Right: right}
	}

	return left, nil
}

// parseFactor handles primary expressions: (expr) and literals.
func (p *Parser) parseFactor() (Node, error) {
	tok := p.current()

	switch tok.Type {
	case TokenLParen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenRParen) {
			return nil, p.errorf(p.current(), "expected ')' after expression")
		}
		return GroupExpr{Inner: inner}, nil

	case TokenString:
		p.advance()
		return LiteralExpr{Value: tok.Value}, nil

	default:
		return nil, p.errorf(tok, "expected expression")
	}
}

func (p *Parser) errorf(tok Token, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Pos: tok.Pos, Got: tok}
}

func opName(t TokenType) string {
	if t == TokenAnd {
		return OpAnd
	}
	return OpOr
}
