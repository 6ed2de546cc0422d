// Package driver implements the Driver: the orchestrating process that owns the
// undo stack of one session and is the sole client of its channel.
//
// Every Submit is preceded by a checkpoint, so the stack always holds one
// suspended snapshot per applied unit. Undo shuts the current Worker down and
// resumes the most recent snapshot, which then becomes the current Worker.
//
//	d, err := driver.Start(ctx, driver.WithEngine("lua"))
//	if err != nil {
//		return err
//	}
//	defer d.Shutdown(ctx)
//
//	d.Submit(ctx, "x = 1")
//	d.Undo(ctx)
//
// Executables that start a Driver must hand control to the kernel package when
// they were spawned as a child:
//
//	if kernel.IsChild() {
//		os.Exit(kernel.Main(reg))
//	}
package driver
