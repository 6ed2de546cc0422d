package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

// ContentRenderer is a function that transforms markdown before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// writeReply renders a reply as plain text.
func writeReply(w io.Writer, reply Reply, renderer ContentRenderer) error {
	var err error
	switch reply.Kind {
	case ReplyResult:
		if reply.Output != "" {
			_, err = io.WriteString(w, reply.Output)
		}
		if err == nil && reply.Failure != "" {
			_, err = fmt.Fprintf(w, "error: %s\n", reply.Failure)
		}

	case ReplyUndo:
		_, err = fmt.Fprintf(w, "undone (depth %d)\n", reply.Depth)

	case ReplyEnv:
		if len(reply.Bindings) == 0 {
			_, err = fmt.Fprintln(w, "(empty)")
			break
		}
		names := make([]string, 0, len(reply.Bindings))
		for name := range reply.Bindings {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			if _, err = fmt.Fprintf(w, "%s = %s\n", name, formatValue(reply.Bindings[name])); err != nil {
				break
			}
		}

	case ReplyHistory:
		if len(reply.Entries) == 0 {
			_, err = fmt.Fprintln(w, "(nothing to undo)")
			break
		}
		for _, e := range reply.Entries {
			line := fmt.Sprintf("%3d  %s", e.Seq, strings.ReplaceAll(e.Payload, "\n", " "))
			if e.Failed() {
				line += "  [failed]"
			}
			if _, err = fmt.Fprintln(w, line); err != nil {
				break
			}
		}

	case ReplyHelp:
		text := reply.Message
		if renderer != nil {
			if rendered, rerr := renderer(text); rerr == nil {
				text = rendered
			}
		}
		_, err = fmt.Fprintln(w, strings.TrimSpace(text))

	case ReplyError:
		_, err = fmt.Fprintf(w, "error: %s\n", reply.Message)

	default:
		_, err = fmt.Fprintln(w, reply.Message)
	}
	return err
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
