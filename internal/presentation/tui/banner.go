package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`                         _           _ `, "#38bdf8"},
	{`  _ __ _____      _(_)_ __   __| |`, "#22d3ee"},
	{` | '__/ _ \ \ /\ / / | '_ \ / _` + "`" + ` |`, "#2dd4bf"},
	{` | | |  __/\ V  V /| | | | | (_| |`, "#34d399"},
	{` |_|  \___| \_/\_/ |_|_| |_|\__,_|`, "#4ade80"},
}

// Banner returns the startup banner for the REPL, colored for the
// terminal's profile. Plain terminals get the uncolored art.
func Banner(version, session string) string {
	return banner(termenv.ColorProfile(), version, session)
}

func banner(p termenv.Profile, version, session string) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, l := range bannerLines {
		b.WriteString(p.String(l.text).Foreground(p.Color(l.color)).String())
		b.WriteString("\n")
	}
	info := fmt.Sprintf("\n  %s  session %s  (:help for commands)\n", strings.TrimSpace(version), session)
	b.WriteString(p.String(info).Faint().String())
	return b.String()
}
