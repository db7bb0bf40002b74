package retrieval

import (
	"context"
	"fmt"
)

// attempt is one step of a fallback chain.
type attempt[T any] struct {
	name string
	run  func(ctx context.Context) ([]T, error)
}

// firstNonEmpty runs the attempts in order and returns the first non-empty
// result. A failed attempt falls through to the next one. Context
// cancellation stops the chain and returns the context error. When every
// attempt failed, the result is a single ErrFeedUnavailable; when at least one
// attempt completed, exhaustion is an empty success.
func firstNonEmpty[T any](ctx context.Context, attempts []attempt[T]) ([]T, error) {
	var (
		lastErr   error
		completed int
	)

	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := a.run(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = fmt.Errorf("%s: %w", a.name, err)
			continue
		}
		completed++

		if len(out) > 0 {
			return out, nil
		}
	}

	if completed == 0 && lastErr != nil {
		return nil, fmt.Errorf("%w: all %d plans failed, last: %w", ErrFeedUnavailable, len(attempts), lastErr)
	}
	return nil, nil
}
