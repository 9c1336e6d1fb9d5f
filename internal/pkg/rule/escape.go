package rule

import "strings"

// IsEscaped reports whether s[i] is preceded by an odd run of backslashes.
func IsEscaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// Unescape resolves \+ \/ \( \) and \\. Any other backslash is kept.
func Unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && isSyntax(s[i+1]) {
			sb.WriteByte(s[i+1])
			i++
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func isSyntax(c byte) bool {
	switch c {
	case '+', '/', '(', ')', '\\':
		return true
	}
	return false
}
