package observability

import (
	"context"

	"github.com/aretw0/rewind/pkg/domain"
)

// Combine returns hooks that call every non-nil callback of hooks, in order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		out.OnCheckpoint = chain(out.OnCheckpoint, h.OnCheckpoint)
		out.OnApply = chain(out.OnApply, h.OnApply)
		out.OnRestore = chain(out.OnRestore, h.OnRestore)
		out.OnPrune = chain(out.OnPrune, h.OnPrune)
		out.OnAbort = chain(out.OnAbort, h.OnAbort)
	}
	return out
}

func chain[E any](first, next func(context.Context, E)) func(context.Context, E) {
	switch {
	case first == nil:
		return next
	case next == nil:
		return first
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		next(ctx, e)
	}
}
