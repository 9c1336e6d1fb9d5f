package config

import (
	"errors"
	"fmt"
	"strings"
)

// Precedence selects which boolean operator binds loosest.
type Precedence int

const (
	// DefaultPrecedence leaves the choice to each pipeline: AndOuter for
	// tuple rules, AndTighter for token queries.
	DefaultPrecedence Precedence = iota
	// AndOuter makes '+' the loosest operator: "A + B / C" is A AND (B OR C).
	AndOuter
	// AndTighter is conventional boolean precedence: "A + B / C" is (A AND B) OR C.
	AndTighter
)

func (p Precedence) String() string {
	switch p {
	case DefaultPrecedence:
		return "default"
	case AndOuter:
		return "and_outer"
	case AndTighter:
		return "and_tighter"
	default:
		return fmt.Sprintf("Precedence(%d)", int(p))
	}
}

// Or returns def when p is DefaultPrecedence.
func (p Precedence) Or(def Precedence) Precedence {
	if p == DefaultPrecedence {
		return def
	}
	return p
}

// ParsePrecedence accepts "and_outer" or "and_tighter" in any case, with '-'
// or '_'. An empty string or "default" yields DefaultPrecedence.
func ParsePrecedence(s string) (Precedence, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", "default":
		return DefaultPrecedence, nil
	case "and_outer":
		return AndOuter, nil
	case "and_tighter":
		return AndTighter, nil
	default:
		return 0, fmt.Errorf("unknown precedence %q", s)
	}
}

// Config holds the field names shared by every rule and query builder.
type Config struct {
	KeywordFields []string   // fields a keyword leaf is matched against
	LocationField string     // target of the based-location filter
	TagsField     string     // target of the tag intersection filter
	Precedence    Precedence // operator precedence of keyword expressions
}

// Default returns the field set expected by the rule subscription API.
func Default() Config {
	return Config{
		KeywordFields: []string{"title", "ocr", "asr", "poi_name", "poi_city_name"},
		LocationField: "based_location",
		TagsField:     "tags",
	}
}

// Validate reports a config that would produce rules the backend rejects.
func (c Config) Validate() error {
	if len(c.KeywordFields) == 0 {
		return errors.New("config: keyword field list is empty")
	}
	for i, f := range c.KeywordFields {
		if f == "" {
			return fmt.Errorf("config: keyword field %d is empty", i)
		}
	}
	if c.LocationField == "" {
		return errors.New("config: location field is empty")
	}
	if c.TagsField == "" {
		return errors.New("config: tags field is empty")
	}
	if c.Precedence < DefaultPrecedence || c.Precedence > AndTighter {
		return fmt.Errorf("config: invalid precedence %v", c.Precedence)
	}
	return nil
}

// Fields returns a copy of the keyword field list.
func (c Config) Fields() []string {
	return append([]string(nil), c.KeywordFields...)
}
