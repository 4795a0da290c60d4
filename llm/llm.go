package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransient marks model failures that are worth retrying, such as overload or rate limiting.
var ErrTransient = errors.New("transient model error")

type Request struct {
	// System is the instruction the model should follow.
	System string

	Prompt string

	Temperature float64
}

// Model turns a prompt into text.
type Model interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, req *Request) (string, error)

func (f ModelFunc) Generate(ctx context.Context, req *Request) (string, error) {
	return f(ctx, req)
}

// Transient wraps err so that IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
