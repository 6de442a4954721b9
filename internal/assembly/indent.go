package assembly

import "strings"

// Dedent strips the common leading whitespace shared by all non-blank lines,
// leaving at least one line flush against column 0. Blank lines pass through
// unchanged. Surrounding blank lines are trimmed first so the fragment splices
// cleanly.
func Dedent(text string) string {
	text = trimBlankEdges(text)
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")

	width := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if w := leadingWhitespace(line); width < 0 || w < width {
			width = w
		}
	}
	if width <= 0 {
		return text
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = line
			continue
		}
		out[i] = line[width:]
	}
	return strings.Join(out, "\n")
}

// Reindent prefixes every non-blank line of text with indent and returns the
// result as lines. Blank lines stay blank. Reindenting dedented text at a
// fixed indent is idempotent: Reindent(Dedent(x), s) applied twice yields the
// same lines.
func Reindent(text, indent string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, indent+line)
	}
	return out
}

func leadingWhitespace(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
