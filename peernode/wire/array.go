package wire

import "strings"

// CreateArray concatenates items with '|', matching the original
// peers_arr() accumulate-join (original_source/MQ2DanNet/Node.cpp). A
// trailing delimiter is always appended so the empty element convention
// in ParseArray round-trips cleanly; frontDelimiter instead leads with
// the delimiter, per spec.md §6's front_delimiter flag.
func CreateArray(items []string, frontDelimiter bool) string {
	if len(items) == 0 {
		return ""
	}
	joined := strings.Join(items, "|")
	if frontDelimiter {
		return "|" + joined
	}
	return joined + "|"
}

// ParseArray splits s on '|' and strips the empty element produced by a
// leading or trailing delimiter, so CreateArray(ParseArray(s)) round-trips
// (spec.md §8 "Serialize-then-parse").
func ParseArray(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
