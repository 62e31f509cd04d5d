package main

import "strings"

// reorderArgs moves flags before positional arguments so Go's flag
// parser sees them regardless of order. boolFlags names flags that take
// no value (e.g. "d" for observe's drop toggle). All other flags are
// assumed to consume the next argument as their value.
//
// Grounded on the teacher's cmd/shurli/flag_helpers.go reorderArgs.
func reorderArgs(args []string, boolFlags map[string]bool) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)

			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") {
				continue
			}
			if boolFlags[name] {
				continue
			}
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

// tokenizeLine splits an operator-typed REPL line into words on spaces,
// keeping a double-quoted segment inside one word and dropping the quotes,
// so `-q "a + b"` yields the two tokens "-q" and "a + b".
func tokenizeLine(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

// splitN splits line into at most n whitespace-delimited fields, with the
// final field containing the remainder verbatim (e.g. a chat message).
func splitN(line string, n int) []string {
	var out []string
	line = strings.TrimSpace(line)
	for i := 0; i < n-1 && line != ""; i++ {
		idx := strings.IndexByte(line, ' ')
		if idx < 0 {
			out = append(out, line)
			line = ""
			break
		}
		out = append(out, line[:idx])
		line = strings.TrimLeft(line[idx+1:], " ")
	}
	if line != "" {
		out = append(out, line)
	}
	return out
}
