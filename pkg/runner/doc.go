/*
Package runner implements the interactive front end of a rewind session.

It reads units of work line by line, submits them to a ports.Session and
prints what they produced. A small command language rides on the same input:

	!!, :undo   discard the most recent unit
	:env        print the current bindings
	:history    print the units that can still be undone
	:help       show the command reference
	:quit       end the session

Input and output go through an IOHandler, so the same loop drives a terminal
(LinerHandler), a plain pipe (TextHandler) or a JSON-Lines client (JSONHandler).

# Usage

	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithIncompleteChecker(lua.New()),
	)

	if err := r.Run(ctx, session); err != nil {
		log.Fatal(err)
	}
*/
package runner
