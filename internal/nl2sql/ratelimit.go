package nl2sql

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

// RateLimited blocks each completion until limiter admits it. A nil limiter
// returns next unchanged.
func RateLimited(next Completer, limiter *rate.Limiter) Completer {
	if limiter == nil {
		return next
	}
	return &rateLimited{next: next, limiter: limiter}
}

func (r *rateLimited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit: %w", ErrCompletion, err)
	}
	return r.next.Complete(ctx, prompt)
}

// Close closes the wrapped completer when it holds a client.
func (r *rateLimited) Close() error {
	if closer, ok := r.next.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
