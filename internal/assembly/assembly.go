// Package assembly contains the pure text manipulation that grows a single
// Manim scene script across rounds: stripping LLM output down to a mergeable
// fragment, splicing it into the construct method of the previous script, and
// mapping render output back to the round that produced it. Nothing in this
// package performs I/O.
package assembly

import (
	"errors"
	"regexp"
	"strings"
)

// SectionMarker is the sentinel the generation service is instructed to emit
// before new content. It exists only transiently during assembly and never
// appears in a finished script.
const SectionMarker = "# <<SECTION_BREAK>>"

// SectionDirective is the renderer-native section break. With --save_sections,
// Manim emits one output file per directive.
const SectionDirective = "self.next_section()"

// constructSignature is the method whose body every round extends.
const constructSignature = "def construct(self):"

// bodyIndent is the indentation of statements inside construct (class body +
// method body, four spaces each).
const bodyIndent = "        "

// manimImport is the prelude every standalone script needs.
const manimImport = "from manim import *"

// ErrNoScene is returned when an assembled script contains no Scene subclass
// and therefore cannot be rendered.
var ErrNoScene = errors.New("no Scene subclass found in script")

var sceneClassRe = regexp.MustCompile(`class\s+(\w+)\s*\(\s*Scene\s*\)`)

// SceneClass returns the name of the first Scene subclass declared in text.
func SceneClass(text string) (string, error) {
	m := sceneClassRe.FindStringSubmatch(text)
	if m == nil {
		return "", ErrNoScene
	}
	return m[1], nil
}

// Assemble merges raw generated text into the previous full script and returns
// the new full script. On the first round the sanitized text becomes the
// script directly, with any marker or next-section artifacts removed (there is
// nothing to break from). Otherwise the new content is spliced into the
// construct body behind a single section break.
//
// Assemble never modifies previous; the returned text is a new snapshot.
func Assemble(previous, raw string, firstRound bool) (string, error) {
	sanitized := Sanitize(raw, previous)

	if firstRound {
		text := StripSectionArtifacts(sanitized)
		if _, err := SceneClass(text); err != nil {
			return "", err
		}
		return text, nil
	}

	frag := ExtractFragment(sanitized)

	lines := strings.Split(previous, "\n")
	offset := InsertOffset(lines)

	block := []string{
		"",
		bodyIndent + "# new section",
		bodyIndent + SectionMarker,
		"",
	}
	block = append(block, Reindent(Dedent(frag.Content), bodyIndent)...)

	spliced := make([]string, 0, len(lines)+len(block))
	spliced = append(spliced, lines[:offset]...)
	spliced = append(spliced, block...)
	spliced = append(spliced, lines[offset:]...)

	text := FinalizeMarkers(strings.Join(spliced, "\n"))
	if _, err := SceneClass(text); err != nil {
		return "", err
	}
	return text, nil
}

// InsertOffset returns the line index at which a new fragment should be
// spliced into the construct method body of the given script lines.
//
// The scan tracks the last non-blank line at body indentation after the
// construct signature; the offset is the line after it. If the method has no
// body lines the offset is the line after the signature, and if the signature
// is missing entirely the offset falls back to end-of-text. The result is
// deterministic for fixed input.
func InsertOffset(lines []string) int {
	foundConstruct := false
	lastBodyLine := -1

	for i, line := range lines {
		if strings.Contains(line, constructSignature) {
			foundConstruct = true
		}
		if foundConstruct && strings.TrimSpace(line) != "" && isIndented(line) {
			lastBodyLine = i
		}
	}

	if lastBodyLine >= 0 {
		return lastBodyLine + 1
	}
	for i, line := range lines {
		if strings.Contains(line, constructSignature) {
			return i + 1
		}
	}
	return len(lines)
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")
}
