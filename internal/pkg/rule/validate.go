package rule

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Classes of validation failure, matched with errors.Is.
var (
	ErrEmptyExpression  = errors.New("expression is empty")
	ErrUnbalancedParens = errors.New("unbalanced parentheses")
	ErrEmptyGroup       = errors.New("empty group")
	ErrOperatorPosition = errors.New("misplaced operator")
	ErrEmptyOperand     = errors.New("missing operand")
)

// ValidationError describes the first problem found in a keyword expression.
type ValidationError struct {
	Err error  // one of the Err* classes above
	Msg string // detail
	Pos int    // byte offset in the input expression
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid keyword expression at %d: %s", e.Pos, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(class error, pos int, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Err: class, Msg: fmt.Sprintf(format, args...), Pos: pos}
}

// Validate checks expr without compiling it. It returns nil or a *ValidationError.
func Validate(expr string) error {
	s := newSpan(expr)
	t := s.trim()
	if t.empty() {
		return invalid(ErrEmptyExpression, 0, "expression is empty")
	}
	if err := checkBrackets(s); err != nil {
		return err
	}
	if err := checkOperators(t); err != nil {
		return err
	}
	return checkExpr(t)
}

// checkBrackets verifies escape-aware balance and rejects groups with blank interiors.
func checkBrackets(s span) error {
	var open []int
	for i := s.lo; i < s.hi; i++ {
		switch {
		case s.isOpen(i):
			open = append(open, i)
		case s.isClose(i):
			if len(open) == 0 {
				return invalid(ErrUnbalancedParens, i, "unmatched ')'")
			}
			o := open[len(open)-1]
			open = open[:len(open)-1]
			if s.sub(o+1, i).trim().empty() {
				return invalid(ErrEmptyGroup, o, "empty group")
			}
		}
	}
	if len(open) > 0 {
		return invalid(ErrUnbalancedParens, open[len(open)-1], "unclosed '('")
	}
	return nil
}

// checkOperators rejects a leading or trailing operator and operators separated
// only by whitespace. Parentheses count as operands here.
func checkOperators(t span) error {
	if err := checkEnds(t, "expression"); err != nil {
		return err
	}

	prev := -1
	for i := t.lo; i < t.hi; {
		r, size := utf8.DecodeRuneInString(t.src[i:t.hi])
		switch {
		case t.isOp(i):
			if prev >= 0 {
				return invalid(ErrOperatorPosition, i, "consecutive operators %q and %q", t.src[prev], t.src[i])
			}
			prev = i
		case !unicode.IsSpace(r):
			prev = -1
		}
		i += size
	}
	return nil
}

func checkEnds(t span, what string) error {
	if t.empty() {
		return nil
	}
	if t.isOp(t.lo) {
		return invalid(ErrOperatorPosition, t.lo, "%s starts with operator %q", what, t.src[t.lo])
	}
	_, size := utf8.DecodeLastRuneInString(t.src[t.lo:t.hi])
	if last := t.hi - size; size == 1 && t.isOp(last) {
		return invalid(ErrOperatorPosition, last, "%s ends with operator %q", what, t.src[last])
	}
	return nil
}

// checkExpr validates the operands around every depth-0 operator of t and
// recurses into the groups they contain.
func checkExpr(t span) error {
	if err := checkEnds(t, "sub-expression"); err != nil {
		return err
	}

	start := t.lo
	for _, op := range append(t.ops(), t.hi) {
		part := t.sub(start, op).trim()
		if part.empty() {
			if op == t.hi {
				return invalid(ErrEmptyOperand, start-1, "missing operand after %q", t.src[start-1])
			}
			return invalid(ErrEmptyOperand, op, "missing operand before %q", t.src[op])
		}
		if err := checkEnds(part, "operand"); err != nil {
			return err
		}
		if err := checkGroups(part); err != nil {
			return err
		}
		start = op + 1
	}
	return nil
}

// checkGroups validates each top-level parenthesized group inside an operand.
func checkGroups(part span) error {
	for i := part.lo; i < part.hi; i++ {
		if !part.isOpen(i) {
			continue
		}
		end := part.closing(i)
		if end < 0 {
			return invalid(ErrUnbalancedParens, i, "unclosed '('")
		}
		inner := part.sub(i+1, end).trim()
		if inner.empty() {
			return invalid(ErrEmptyGroup, i, "empty group")
		}
		if err := checkExpr(inner); err != nil {
			return err
		}
		i = end
	}
	return nil
}
