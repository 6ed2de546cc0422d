package runner

import "strings"

// CommandKind classifies an input line.
type CommandKind int

const (
	CmdSubmit CommandKind = iota
	CmdEmpty
	CmdUndo
	CmdEnv
	CmdHistory
	CmdHelp
	CmdQuit
	CmdUnknown
)

// Command is a parsed input line.
type Command struct {
	Kind    CommandKind
	Payload string
}

// ParseCommand tells REPL commands apart from units of work.
func ParseCommand(line string) Command {
	trimmed := strings.TrimSpace(line)
	switch trimmed {
	case "":
		return Command{Kind: CmdEmpty}
	case "!!", ":undo", ":u":
		return Command{Kind: CmdUndo}
	case ":env", ":e":
		return Command{Kind: CmdEnv}
	case ":history", ":h":
		return Command{Kind: CmdHistory}
	case ":help", ":?":
		return Command{Kind: CmdHelp}
	case ":quit", ":q", "exit", "quit":
		return Command{Kind: CmdQuit}
	}
	if strings.HasPrefix(trimmed, ":") {
		return Command{Kind: CmdUnknown, Payload: trimmed}
	}
	return Command{Kind: CmdSubmit, Payload: line}
}

// HelpText is the command reference shown by :help.
const HelpText = `# rewind

Every unit you enter runs against a live environment. Before it runs, the
session takes a checkpoint, so any unit can be taken back.

| Command | Effect |
|---|---|
| ` + "`!!`" + ` or ` + "`:undo`" + ` | Discard the most recent unit |
| ` + "`:env`" + ` | Show the current bindings |
| ` + "`:history`" + ` | List the units that can still be undone |
| ` + "`:help`" + ` | Show this help |
| ` + "`:quit`" + ` | End the session |

Input that is not complete yet (an open ` + "`function`" + ` or table) continues
on the next line. An empty line submits it as is.
`
