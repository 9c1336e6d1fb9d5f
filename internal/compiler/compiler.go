// Package compiler puts both keyword expression pipelines behind one interface.
//
// FormatRule runs the validating single-pass scanner and yields a tuple rule;
// FormatQuery runs the lexer and token parser and yields a bool/multi_match
// query. Each honors an explicitly configured precedence. Left at
// config.DefaultPrecedence, tuple rules use AndOuter and token queries use
// AndTighter.
package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/coffersTech/kwrule/internal/config"
	"github.com/coffersTech/kwrule/internal/pkg/kwql"
	"github.com/coffersTech/kwrule/internal/pkg/rule"
)

// Format selects the output vocabulary.
type Format int

const (
	FormatRule  Format = iota // {"rule": ["and", ...]}
	FormatQuery               // {"bool": {...}} / {"multi_match": {...}}
)

func (f Format) String() string {
	switch f {
	case FormatRule:
		return "rule"
	case FormatQuery:
		return "query"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat accepts "rule" (the default for "") or "query".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rule", "":
		return FormatRule, nil
	case "query":
		return FormatQuery, nil
	default:
		return 0, fmt.Errorf("unknown format %q", s)
	}
}

// Result holds the output of one compilation; exactly one field is set.
type Result struct {
	Rule  *rule.Rule
	Query kwql.Query
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Rule != nil {
		return json.Marshal(r.Rule)
	}
	return json.Marshal(r.Query)
}

// ExpressionCompiler compiles a keyword expression into a backend predicate.
type ExpressionCompiler interface {
	Compile(expr string) (Result, error)
	Precedence() config.Precedence
	Format() Format
}

// New returns the compiler for format configured by cfg.
func New(cfg config.Config, format Format) (ExpressionCompiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch format {
	case FormatRule:
		return NewTupleCompiler(cfg), nil
	case FormatQuery:
		return NewQueryCompiler(cfg), nil
	default:
		return nil, fmt.Errorf("compiler: unsupported format %v", format)
	}
}

// TupleCompiler validates and compiles with rule.KeywordRuleParser.
type TupleCompiler struct {
	prec   config.Precedence
	parser *rule.KeywordRuleParser
}

func NewTupleCompiler(cfg config.Config) *TupleCompiler {
	cfg.Precedence = cfg.Precedence.Or(config.AndOuter)
	return &TupleCompiler{prec: cfg.Precedence, parser: rule.NewKeywordRuleParser(cfg)}
}

func (c *TupleCompiler) Compile(expr string) (Result, error) {
	r, err := c.parser.Parse(expr)
	if err != nil {
		return Result{}, err
	}
	return Result{Rule: &r}, nil
}

func (c *TupleCompiler) Precedence() config.Precedence { return c.prec }
func (c *TupleCompiler) Format() Format                { return FormatRule }

// QueryCompiler runs the token pipeline: Tokenize, Parse, BuildQuery.
type QueryCompiler struct {
	prec   config.Precedence
	fields []string
}

func NewQueryCompiler(cfg config.Config) *QueryCompiler {
	return &QueryCompiler{prec: cfg.Precedence.Or(config.AndTighter), fields: cfg.Fields()}
}

func (c *QueryCompiler) Compile(expr string) (Result, error) {
	node, err := kwql.ParseTokens(kwql.Tokenize(expr), c.prec)
	if err != nil {
		return Result{}, err
	}
	q, err := kwql.BuildQuery(node, c.fields)
	if err != nil {
		return Result{}, err
	}
	return Result{Query: q}, nil
}

func (c *QueryCompiler) Precedence() config.Precedence { return c.prec }
func (c *QueryCompiler) Format() Format                { return FormatQuery }

// Position returns the offset carried by a syntax or validation error.
func Position(err error) (int, bool) {
	var se *kwql.SyntaxError
	if errors.As(err, &se) {
		return se.Pos, true
	}
	var ve *rule.ValidationError
	if errors.As(err, &ve) {
		return ve.Pos, true
	}
	return 0, false
}
