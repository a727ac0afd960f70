package structured

import "strings"

// pythonLiteralToJSON rewrites a Python literal (dict/list syntax with
// single-quoted strings, True/False/None, trailing commas) into JSON so the
// standard decoder can take a second pass. It is deliberately conservative:
// anything it cannot safely rewrite is reported as a miss, which the caller
// treats as "not structured data".
func pythonLiteralToJSON(src string) (string, bool) {
	var b strings.Builder
	b.Grow(len(src))

	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '\'' || r == '"':
			quoted, next, ok := rewriteString(runes, i)
			if !ok {
				return "", false
			}
			b.WriteString(quoted)
			i = next
		case r == ',':
			// Drop trailing commas before a closing brace/bracket.
			j := i + 1
			for j < len(runes) && isSpace(runes[j]) {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']') {
				i++
				continue
			}
			b.WriteRune(r)
			i++
		case isIdentStart(r):
			word, next := readWord(runes, i)
			switch word {
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			case "None":
				b.WriteString("null")
			case "true", "false", "null":
				b.WriteString(word)
			default:
				// Bare identifiers have no JSON equivalent.
				return "", false
			}
			i = next
		default:
			b.WriteRune(r)
			i++
		}
	}

	return b.String(), true
}

// rewriteString consumes a quoted string starting at runes[start] and emits
// its JSON (double-quoted) form. Returns the index just past the closing
// quote.
func rewriteString(runes []rune, start int) (string, int, bool) {
	quote := runes[start]
	var b strings.Builder
	b.WriteByte('"')

	i := start + 1
	for i < len(runes) {
		r := runes[i]
		switch r {
		case '\\':
			if i+1 >= len(runes) {
				return "", 0, false
			}
			b.WriteRune('\\')
			b.WriteRune(runes[i+1])
			i += 2
		case quote:
			b.WriteByte('"')
			return b.String(), i + 1, true
		case '"':
			b.WriteString(`\"`)
			i++
		case '\n':
			b.WriteString(`\n`)
			i++
		case '\t':
			b.WriteString(`\t`)
			i++
		default:
			b.WriteRune(r)
			i++
		}
	}
	return "", 0, false // unterminated string
}

func readWord(runes []rune, start int) (string, int) {
	i := start
	for i < len(runes) && isIdentPart(runes[i]) {
		i++
	}
	return string(runes[start:i]), i
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
