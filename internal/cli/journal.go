package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/rewind/internal/config"
	"github.com/aretw0/rewind/internal/presentation/graph"
	"github.com/aretw0/rewind/pkg/ports"
)

// Transcript output formats for InspectJournal.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatMermaid = "mermaid"
)

// OpenJournal loads the configuration at path and opens its journal.
// The caller must close the returned journal with CloseJournal.
func OpenJournal(ctx context.Context, path string) (ports.Journal, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewJournal(ctx, cfg.Journal)
}

// CloseJournal releases the connection held by a journal, if any.
func CloseJournal(journal ports.Journal) {
	closeJournal(journal)
}

// ListJournal writes the sessions that have a transcript.
func ListJournal(ctx context.Context, journal ports.Journal, w io.Writer) error {
	sessions, err := journal.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("error listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(w, "No recorded sessions found.")
		return nil
	}

	fmt.Fprintln(w, "Recorded Sessions:")
	for _, s := range sessions {
		fmt.Fprintln(w, "- "+s)
	}
	return nil
}

// InspectJournal writes the transcript of a session in the given format.
func InspectJournal(ctx context.Context, journal ports.Journal, sessionID, format string, w io.Writer) error {
	entries, err := journal.List(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("error loading session '%s': %w", sessionID, err)
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling transcript: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case FormatMermaid:
		fmt.Fprint(w, graph.GenerateMermaid(sessionID, entries))
	case FormatText, "":
		for _, e := range entries {
			status := ""
			if e.Failed() {
				status = "  [failed: " + e.Failure + "]"
			}
			fmt.Fprintf(w, "%3d  %s  pid %d%s\n", e.Seq, e.At.Format("15:04:05"), e.Snapshot, status)
			for _, line := range strings.Split(strings.TrimRight(e.Payload, "\n"), "\n") {
				fmt.Fprintf(w, "       %s\n", line)
			}
		}
	default:
		return fmt.Errorf("unknown format %q (text, json, mermaid)", format)
	}
	return nil
}

// RemoveJournal deletes the transcripts of the given sessions. It keeps going
// after a failure and returns false if any removal failed.
func RemoveJournal(ctx context.Context, journal ports.Journal, sessionIDs []string, w io.Writer) bool {
	hasError := false
	for _, sessionID := range sessionIDs {
		if err := journal.Delete(ctx, sessionID); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", sessionID, err)
			hasError = true
		} else {
			fmt.Fprintf(w, "Removed session '%s'\n", sessionID)
		}
	}
	return !hasError
}
