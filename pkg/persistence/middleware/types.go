// Package middleware wraps a ports.Journal to transform transcripts on their
// way to and from storage.
package middleware

import "github.com/aretw0/rewind/pkg/ports"

// Middleware allows wrapping a Journal to add behavior.
type Middleware func(ports.Journal) ports.Journal

// Chain applies mws to j. The first middleware is the outermost one and sees
// entries before the others do on Append.
func Chain(j ports.Journal, mws ...Middleware) ports.Journal {
	for i := len(mws) - 1; i >= 0; i-- {
		j = mws[i](j)
	}
	return j
}
