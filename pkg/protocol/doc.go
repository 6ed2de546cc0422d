// Package protocol defines the messages exchanged between the Driver and the
// Worker over the channel.
//
// Requests flow Driver to Worker, responses Worker to Driver. Every request
// carries a static ExpectsResponse property; the Driver never issues a second
// response-expecting request before the first one is answered, so a response
// always correlates to the most recent such request.
//
// On the wire each message is one JSON envelope per line:
//
//	{"type":"checkpoint_created","body":{"pid":4242}}
package protocol
