package nl2sql

import (
	"context"
	"errors"
)

var (
	ErrCompletion = errors.New("completion service failed")
	ErrExtraction = errors.New("no executable statement in completion")
)

// Completer sends one prompt to a language model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
