/*
Package observability provides tools for monitoring rewind sessions.

It combines lifecycle hooks so several observers can watch the same Driver,
and streams lifecycle events to live subscribers for real-time monitoring.
*/
package observability
