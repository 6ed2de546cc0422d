/*
Package rewind runs an interpreter session whose every step can be undone.

Each submitted unit of code is preceded by a checkpoint: the running Worker
process hands its state to a suspended copy of itself before applying the
unit. Undo kills the current Worker and resumes the most recent copy, so the
session continues exactly where it stood before the unit ran, without
replaying anything.

# Processes

A session is made of one Driver (the calling process) and a chain of child
processes running the same executable:

  - the Running Worker, which applies units with an execution engine (Lua by
    default, see pkg/adapters/lua);
  - zero or more Suspended snapshots, one per undoable unit, parked until
    the Driver resumes them or kills them.

They talk over a pair of pipes using newline delimited JSON (pkg/protocol).
Because children re-execute the program, main must dispatch them before
doing anything else:

	func main() {
		if rewind.IsChild() {
			os.Exit(rewind.RunChild())
		}
		// ...
	}

# Usage

	sess, err := rewind.Start(ctx, driver.WithMaxHistory(100))
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Shutdown(ctx)

	sess.Submit(ctx, "x = 1")
	sess.Submit(ctx, "x = x + 1")
	sess.Undo(ctx) // x is 1 again

Front ends built on the same Session contract live in pkg/runner (REPL),
pkg/adapters/http and pkg/adapters/mcp. Multiple sessions in one process are
managed by pkg/session.

Checkpoints and undo are Linux only: the Driver relies on child subreaping
to collect snapshots whose parent Worker is gone.
*/
package rewind
