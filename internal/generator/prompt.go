package generator

import (
	"fmt"
	"strings"

	"scene-orchestrator/internal/assembly"
)

// SystemPrompt pins down the output contract: bare runnable Manim code, one
// Scene subclass, and the sentinel protocol for continuation rounds.
var SystemPrompt = strings.TrimSpace(fmt.Sprintf(`
You are a professional Manim animation engineer producing one continuous scene.
Output runnable Python code that renders a Manim Scene.
Rules:
1) The code must include: from manim import *
2) Define exactly one Scene subclass.
3) Output only code, no explanations.
4) The code must run as-is with no syntax errors.
5) When continuing an existing scene, put the line %s before the new
   animation code. Do not write %s yourself.
5.1) When continuing, output only the new fragment; never repeat existing code
   or the class definition.
6) Keep each animation between 1 and 3 seconds.
7) Keep the scene continuous; do not FadeOut everything to clear the frame.
8) Leave the scene visible and centered when the animation ends.
`, assembly.SectionMarker, assembly.SectionDirective))

// BuildPrompt renders the user message for one round. Continuation rounds
// restate the full current script so the model can keep variable names and
// scene state coherent.
func BuildPrompt(request, previous string) string {
	if strings.TrimSpace(previous) == "" {
		return fmt.Sprintf(
			"Create a new Manim scene that does the following: %s (do not include %s or %s)",
			request, assembly.SectionMarker, assembly.SectionDirective,
		)
	}

	return fmt.Sprintf(`Here is the complete code of the current scene:

`+"```python\n%s\n```"+`

Request: %s

Append code at the end of the construct method to satisfy the request.
Follow these rules strictly:
1. Return only the new fragment; do not repeat existing code.
2. The new fragment must start with the line %s.
3. Do not include a class definition or def construct.
4. Keep variable names and scene state consistent with the existing code.
5. Do not write %s; the marker replaces it.`,
		strings.TrimSpace(previous), request, assembly.SectionMarker, assembly.SectionDirective)
}
