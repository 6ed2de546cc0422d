/*
Package ports defines the driven and driving ports (interfaces) of rewind.

These interfaces decouple the checkpoint engine from the execution engine that
interprets units of work, from the transcript storage, and from the front ends
that operate a session.

# Key Interfaces

  - Engine: applies a unit of work to an Environment (e.g. the Lua adapter).
  - Journal: persists the transcript of applied units (memory, file, Redis).
  - Session: the front-end contract of a Driver (Submit, Undo, Shutdown).
*/
package ports
