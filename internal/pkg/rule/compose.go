package rule

import "errors"

// ErrEmptyRule is returned when a composed rule would have no operands.
var ErrEmptyRule = errors.New("rule has no conditions")

// Compose appends filter predicates to the top-level "and" of a keyword rule,
// producing {"rule": ["and", <keywords>, <location>, <tags>]}. text may be nil
// when only filters are set; nil predicates are skipped.
func Compose(text *Rule, predicates ...Node) (Rule, error) {
	var operands []Node
	if text != nil {
		operands = append(operands, text.Root.Operands...)
	}
	for _, p := range predicates {
		if p != nil {
			operands = append(operands, p)
		}
	}
	if len(operands) == 0 {
		return Rule{}, ErrEmptyRule
	}
	return Rule{Root: And(operands...)}, nil
}
