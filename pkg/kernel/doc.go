// Package kernel implements the Worker: the process that owns the mutable
// execution environment, dispatches requests from the channel, and creates
// and resumes checkpoints.
//
// A checkpoint is a suspended copy of the Worker. The Go runtime cannot fork
// safely, so the Worker spawns a fresh instance of its own executable in the
// snapshot role, streams it the encoded environment and hands it the same
// channel descriptors it holds. The snapshot parks on the resume signal and,
// once resumed, becomes the Running Worker:
//
//	k := kernel.New(engine, endpoint, kernel.WithSnapshotter(snap))
//	err := k.Boot(ctx) // Ready, then dispatch until Shutdown
//
// Only the Running Worker ever reads the channel. A parked snapshot never
// touches it until the Driver delivers the resume signal.
package kernel
