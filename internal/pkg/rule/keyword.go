package rule

import (
	"strings"

	"github.com/coffersTech/kwrule/internal/config"
)

// KeywordRuleParser compiles keyword expressions such as "(网红 / 创作者) + 抖音"
// straight from the source string into a tuple rule.
//
// '+' is AND, '/' is OR, parentheses group and '\' escapes + / ( ) \.
// Under config.AndOuter '+' binds loosest, so "A + B / C" is A AND (B OR C);
// config.AndTighter gives the conventional (A AND B) OR C. DefaultPrecedence
// means AndOuter.
// A parser holds only configuration and is safe for concurrent use.
type KeywordRuleParser struct {
	fields []string
	outer  byte
	inner  byte
}

// NewKeywordRuleParser creates a parser that emits keyword leaves over cfg.KeywordFields.
func NewKeywordRuleParser(cfg config.Config) *KeywordRuleParser {
	p := &KeywordRuleParser{fields: cfg.Fields(), outer: '+', inner: '/'}
	if cfg.Precedence.Or(config.AndOuter) == config.AndTighter {
		p.outer, p.inner = '/', '+'
	}
	return p
}

// Validate checks expr without compiling it.
func (p *KeywordRuleParser) Validate(expr string) error {
	return Validate(expr)
}

// Parse validates expr and compiles it into {"rule": ["and", <compiled>]}.
func (p *KeywordRuleParser) Parse(expr string) (Rule, error) {
	n, err := p.Compile(expr)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Root: And(n)}, nil
}

// Compile validates expr and returns its compiled tree without the top-level wrapper.
func (p *KeywordRuleParser) Compile(expr string) (Node, error) {
	if err := Validate(expr); err != nil {
		return nil, err
	}
	return p.parseOuter(newSpan(expr).trim()), nil
}

func (p *KeywordRuleParser) parseOuter(s span) Node {
	return p.parseLevel(s, p.outer, p.parseInner)
}

func (p *KeywordRuleParser) parseInner(s span) Node {
	return p.parseLevel(s, p.inner, p.parsePrimary)
}

// parseLevel splits s on op; a single part is handed down unchanged.
func (p *KeywordRuleParser) parseLevel(s span, op byte, next func(span) Node) Node {
	parts := s.split(op)
	if len(parts) == 1 {
		return next(parts[0])
	}

	operands := make([]Node, len(parts))
	for i, part := range parts {
		operands[i] = next(part)
	}
	if op == '+' {
		return And(operands...)
	}
	return Or(operands...)
}

// parsePrimary reparses a fully parenthesized segment as an independent
// expression; anything else is a keyword.
func (p *KeywordRuleParser) parsePrimary(s span) Node {
	s = s.trim()
	if s.wrapped() {
		return p.parseOuter(s.sub(s.lo+1, s.hi-1).trim())
	}
	return p.parseKeyword(s)
}

func (p *KeywordRuleParser) parseKeyword(s span) Node {
	fields := make([]string, len(p.fields))
	copy(fields, p.fields)
	return Keyword{
		Keyword: strings.TrimSpace(Unescape(s.String())),
		Fields:  fields,
	}
}
