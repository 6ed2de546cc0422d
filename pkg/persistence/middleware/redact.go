package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type redactMiddleware struct {
	next     ports.Journal
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks every match of the
// patterns in the payload, output and failure of appended entries. Only the
// transcript is masked; the session itself ran the original unit.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.Journal) ports.Journal {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Append(ctx context.Context, sessionID string, entry domain.Entry) error {
	entry.Payload = m.mask(entry.Payload)
	entry.Output = m.mask(entry.Output)
	entry.Failure = m.mask(entry.Failure)
	return m.next.Append(ctx, sessionID, entry)
}

func (m *redactMiddleware) Pop(ctx context.Context, sessionID string) (domain.Entry, error) {
	return m.next.Pop(ctx, sessionID)
}

func (m *redactMiddleware) Shift(ctx context.Context, sessionID string) (domain.Entry, error) {
	return m.next.Shift(ctx, sessionID)
}

func (m *redactMiddleware) List(ctx context.Context, sessionID string) ([]domain.Entry, error) {
	return m.next.List(ctx, sessionID)
}

func (m *redactMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactMiddleware) Sessions(ctx context.Context) ([]string, error) {
	return m.next.Sessions(ctx)
}

func (m *redactMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}
