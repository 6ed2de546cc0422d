package ports

import (
	"context"

	"github.com/aretw0/rewind/pkg/domain"
)

// Engine is the execution collaborator that interprets units of work.
// Apply must confine its effects to env: anything outside of it is not carried
// into snapshots. A failure is returned as an error and does not leave the
// Worker unusable.
type Engine interface {
	// Name identifies the engine in the registry.
	Name() string

	// Apply runs payload against env, mutating it in place, and returns what
	// the unit printed or evaluated to.
	Apply(ctx context.Context, env *domain.Environment, payload string) (string, error)
}

// IncompleteChecker is implemented by engines that can tell whether a source
// fragment needs more lines before it can be submitted (REPL continuation).
type IncompleteChecker interface {
	Incomplete(src string) bool
}
