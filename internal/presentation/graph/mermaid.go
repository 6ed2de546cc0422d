package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/rewind/pkg/domain"
)

// maxLabel bounds the payload excerpt shown inside a node.
const maxLabel = 40

// GenerateMermaid produces a Mermaid flowchart of a session transcript.
// Each applied unit is a node chained after the checkpoint it was taken from:
// - Session root: ((Circle))
// - Failed unit: {{Hexagon}}
// - Default: [Rectangle]
// The last unit is styled as current, since that is where the Worker stands.
func GenerateMermaid(session string, entries []domain.Entry) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	root := "s0"
	sb.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", root, escapeLabel(session)))

	prev := root
	var failed []string
	for _, e := range entries {
		id := fmt.Sprintf("s%d", e.Seq)

		opener, closer := "[", "]"
		if e.Failed() {
			opener, closer = "{{", "}}"
			failed = append(failed, id)
		}

		label := fmt.Sprintf("#%d %s", e.Seq, excerpt(e.Payload))
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", id, opener, escapeLabel(label), closer))

		// Edge label: the snapshot that can restore the state before this unit
		sb.WriteString(fmt.Sprintf("    %s -- \"pid %d\" --> %s\n", prev, e.Snapshot, id))
		prev = id
	}

	sb.WriteString("\n    %% Overlay Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
	sb.WriteString("    classDef failed fill:#ffebee,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	for _, id := range failed {
		sb.WriteString(fmt.Sprintf("    class %s failed;\n", id))
	}
	sb.WriteString(fmt.Sprintf("    class %s current;\n", prev))

	return sb.String()
}

func excerpt(payload string) string {
	line, _, multi := strings.Cut(strings.TrimSpace(payload), "\n")
	if len([]rune(line)) > maxLabel {
		line = string([]rune(line)[:maxLabel]) + "…"
		multi = false
	}
	if multi {
		line += " …"
	}
	return line
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
