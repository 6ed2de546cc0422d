/*
Package session manages many independent sessions in one process.

Each session is a Driver with its own Worker, channel and undo stack. The
Manager serializes operations per session ID, since a Driver allows a single
outstanding request, while operations on different sessions run concurrently.
*/
package session
