package content

import "strings"

// NormalizeEscapes undoes escaping left behind when HTML was stringified more
// than once on its way through storage: doubled backslashes collapse and
// escaped quotes, slashes and newlines become literal. It stops once no
// escape sequences remain, after at most a few passes.
func NormalizeEscapes(s string) string {
	for i := 0; i < 4 && looksEscaped(s); i++ {
		next := unescapeOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func looksEscaped(s string) bool {
	return strings.Contains(s, `\"`) ||
		strings.Contains(s, `\\`) ||
		strings.Contains(s, `\n`) ||
		strings.Contains(s, `\/`) ||
		strings.Contains(s, `\'`)
}

func unescapeOnce(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case '\'':
			b.WriteByte('\'')
		case '/':
			b.WriteByte('/')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			// dropped
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(c)
			continue
		}
		i++
	}
	return b.String()
}
