package runner

import (
	"context"
	"fmt"
	"regexp"
)

// UnitInterceptor is a policy that can block a unit before it is submitted.
// It returns true if the unit may run, or false and the reason for the denial.
type UnitInterceptor func(ctx context.Context, payload string) (bool, string, error)

// MultiInterceptor chains multiple interceptors. The first denial wins.
func MultiInterceptor(interceptors ...UnitInterceptor) UnitInterceptor {
	return func(ctx context.Context, payload string) (bool, string, error) {
		for _, interceptor := range interceptors {
			allowed, reason, err := interceptor(ctx, payload)
			if err != nil {
				return false, "", err // System Error
			}
			if !allowed {
				return false, reason, nil // Blocked by policy
			}
		}
		return true, "", nil
	}
}

// AutoApproveMiddleware allows every unit.
func AutoApproveMiddleware() UnitInterceptor {
	return func(ctx context.Context, payload string) (bool, string, error) {
		return true, "", nil
	}
}

// DenyPatternsMiddleware blocks units matching any of the regular expressions,
// e.g. `os\.execute` to keep remote clients away from the host shell.
func DenyPatternsMiddleware(patterns ...string) (UnitInterceptor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid deny pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	return func(ctx context.Context, payload string) (bool, string, error) {
		for _, re := range compiled {
			if re.MatchString(payload) {
				return false, fmt.Sprintf("unit matches denied pattern %q", re.String()), nil
			}
		}
		return true, "", nil
	}, nil
}
