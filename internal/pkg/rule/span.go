package rule

import (
	"unicode"
	"unicode/utf8"
)

// span is the half-open byte range [lo, hi) of src.
// It is passed by value so nested scans never share position state.
type span struct {
	src    string
	lo, hi int
}

func newSpan(s string) span { return span{src: s, lo: 0, hi: len(s)} }

func (s span) String() string { return s.src[s.lo:s.hi] }

func (s span) empty() bool { return s.lo >= s.hi }

func (s span) trim() span {
	for s.lo < s.hi {
		r, size := utf8.DecodeRuneInString(s.src[s.lo:s.hi])
		if !unicode.IsSpace(r) {
			break
		}
		s.lo += size
	}
	for s.hi > s.lo {
		r, size := utf8.DecodeLastRuneInString(s.src[s.lo:s.hi])
		if !unicode.IsSpace(r) {
			break
		}
		s.hi -= size
	}
	return s
}

// sub returns the range [lo, hi) of the same source.
func (s span) sub(lo, hi int) span { return span{src: s.src, lo: lo, hi: hi} }

// isOp reports an unescaped '+' or '/' at i.
func (s span) isOp(i int) bool {
	c := s.src[i]
	return (c == '+' || c == '/') && !IsEscaped(s.src, i)
}

// isOpen and isClose report unescaped parentheses at i.
func (s span) isOpen(i int) bool  { return s.src[i] == '(' && !IsEscaped(s.src, i) }
func (s span) isClose(i int) bool { return s.src[i] == ')' && !IsEscaped(s.src, i) }

// split cuts s at every depth-0 unescaped op.
func (s span) split(op byte) []span {
	var parts []span
	depth, start := 0, s.lo
	for i := s.lo; i < s.hi; i++ {
		switch {
		case s.isOpen(i):
			depth++
		case s.isClose(i):
			depth--
		case depth == 0 && s.src[i] == op && !IsEscaped(s.src, i):
			parts = append(parts, s.sub(start, i))
			start = i + 1
		}
	}
	return append(parts, s.sub(start, s.hi))
}

// ops returns the positions of depth-0 operators of either kind.
func (s span) ops() []int {
	var pos []int
	depth := 0
	for i := s.lo; i < s.hi; i++ {
		switch {
		case s.isOpen(i):
			depth++
		case s.isClose(i):
			depth--
		case depth == 0 && s.isOp(i):
			pos = append(pos, i)
		}
	}
	return pos
}

// closing returns the index of the ')' matching the '(' at open, or -1.
func (s span) closing(open int) int {
	depth := 0
	for i := open; i < s.hi; i++ {
		switch {
		case s.isOpen(i):
			depth++
		case s.isClose(i):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// wrapped reports whether the trimmed span is one parenthesized group.
func (s span) wrapped() bool {
	return !s.empty() && s.isOpen(s.lo) && s.closing(s.lo) == s.hi-1
}
