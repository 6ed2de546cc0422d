/*
Package domain contains the core models of the rewind checkpoint engine.

It defines the execution environment owned by a Worker, the lifecycle states of
Worker processes, the transcript entries recorded for each unit of work and the
error taxonomy shared by the Driver and the Worker. This package is kept free of
I/O and process handling so every other layer can depend on it.

# Key Entities

  - Environment: the mutable bindings a unit of work is applied against.
  - WorkerState: Running, Suspended or Terminated.
  - Entry: one applied unit of work as recorded by a Journal.
  - Result: what the front end receives after a Submit.
*/
package domain
