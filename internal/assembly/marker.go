package assembly

import "strings"

// FinalizeMarkers rewrites the first sentinel line to the renderer-native
// section-break directive, preserving that line's indentation, and deletes any
// stray sentinel lines outright. After finalization the text contains no
// sentinel occurrences.
func FinalizeMarkers(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	converted := false
	for _, line := range lines {
		if !strings.Contains(line, SectionMarker) {
			out = append(out, line)
			continue
		}
		if converted {
			continue
		}
		indent := line[:leadingWhitespace(line)]
		out = append(out, indent+SectionDirective)
		converted = true
	}
	return strings.Join(out, "\n")
}

// StripSectionArtifacts removes sentinel lines and explicit next-section calls
// the generator may have echoed back. Used on the first round, which must not
// contain a section break.
func StripSectionArtifacts(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.Contains(line, SectionMarker) {
			continue
		}
		if strings.Contains(line, SectionDirective) {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n")) + "\n"
}
