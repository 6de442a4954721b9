package assembly

import "strings"

// Fragment is the intermediate representation of one round's new content,
// separated from the sentinel encoding used on the wire with the generation
// service.
type Fragment struct {
	// Content is the new text contributed by this round, trimmed of
	// surrounding blank lines. Indentation is left as generated; the
	// assembler normalizes it.
	Content string

	// IsNewSection reports whether the generator followed the marker
	// protocol and emitted the sentinel. When false the whole fragment is
	// treated as new content anyway.
	IsNewSection bool
}

// ExtractFragment applies the marker protocol to a sanitized fragment: text
// before the first sentinel occurrence (typically restated prior code) is
// discarded, text after it is the new content. Without a sentinel the entire
// input is new content.
func ExtractFragment(text string) Fragment {
	if idx := strings.Index(text, SectionMarker); idx >= 0 {
		return Fragment{
			Content:      trimBlankEdges(text[idx+len(SectionMarker):]),
			IsNewSection: true,
		}
	}
	return Fragment{Content: trimBlankEdges(text)}
}

// StripFences removes a surrounding markdown code fence, if present. Text
// without a fence is returned unchanged, so stripping is idempotent.
func StripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return raw
	}
	lines := strings.Split(trimmed, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// Sanitize strips fences and applies round-specific cleanup to a generated
// fragment. With no previous script (initial mode) the result is a standalone
// script candidate: the manim import is prepended when missing. With a
// previous script (continuation mode) leading import lines are dropped, since
// the prelude already exists in the previous text. Malformed input degrades to
// best-effort trimmed text; Sanitize never fails.
func Sanitize(raw, previous string) string {
	cleaned := strings.TrimSpace(StripFences(raw))

	if strings.TrimSpace(previous) != "" {
		lines := strings.Split(cleaned, "\n")
		for len(lines) > 0 && isImportLine(lines[0]) {
			lines = lines[1:]
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}

	if !strings.Contains(cleaned, "from manim import") {
		cleaned = manimImport + "\n\n" + cleaned
	}
	return cleaned + "\n"
}

func isImportLine(line string) bool {
	return strings.HasPrefix(line, "from ") || strings.HasPrefix(line, "import ")
}

// trimBlankEdges removes leading and trailing blank lines while leaving
// interior lines, including their indentation, untouched.
func trimBlankEdges(text string) string {
	lines := strings.Split(text, "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
