package runner

import (
	"log/slog"

	"github.com/aretw0/rewind/pkg/ports"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithInterceptor configures the submission policy.
func WithInterceptor(interceptor UnitInterceptor) Option {
	return func(r *Runner) {
		r.Interceptor = interceptor
	}
}

// WithIncompleteChecker enables multi-line units: input the checker reports
// as incomplete continues on the next line.
func WithIncompleteChecker(checker ports.IncompleteChecker) Option {
	return func(r *Runner) {
		r.Checker = checker
	}
}

// WithBanner sets the text shown before the first prompt.
func WithBanner(banner string) Option {
	return func(r *Runner) {
		r.Banner = banner
	}
}

// WithPrompts sets the primary and continuation prompts.
func WithPrompts(prompt, continuation string) Option {
	return func(r *Runner) {
		r.Prompt = prompt
		r.ContinuationPrompt = continuation
	}
}
