package translator

import (
	"strconv"
	"strings"
)

// MismatchWarning marks the first missing translation when the backend
// keeps returning fewer items than it was given.
const MismatchWarning = "[TRANSLATION WARNING: Paragraph count mismatch detected]"

// ParseNumberedList extracts the items of a "1." "2." ... numbered list.
// Markers must appear in sequence; a line that does not start with the next
// expected marker continues the current item. Text before the first marker
// and blank lines are dropped.
func ParseNumberedList(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var items []string
	var current strings.Builder
	open := false
	next := 1

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		marker := strconv.Itoa(next) + "."
		if strings.HasPrefix(line, marker) {
			if open {
				items = append(items, strings.TrimSpace(current.String()))
				current.Reset()
			}
			_, rest, _ := strings.Cut(line, ".")
			current.WriteString(strings.TrimSpace(rest))
			open = true
			next++
			continue
		}
		if !open {
			continue
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(line)
	}
	if open {
		items = append(items, strings.TrimSpace(current.String()))
	}
	return items
}

// RecoverCount pads a short result to expected items: the first missing
// slot carries MismatchWarning, the rest are empty. Results that are
// already long enough are returned unchanged.
func RecoverCount(items []string, expected int) []string {
	if len(items) >= expected {
		return items
	}
	out := make([]string, 0, expected)
	out = append(out, items...)
	out = append(out, MismatchWarning)
	for len(out) < expected {
		out = append(out, "")
	}
	return out
}
