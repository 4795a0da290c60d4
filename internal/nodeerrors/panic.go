package nodeerrors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// PanicError is the error a recovered panic inside a workflow node is converted to.
type PanicError struct {
	Node  string
	Value any

	stacktrace string
}

func (pe *PanicError) Error() string {
	return fmt.Sprintf("panic in node %v: %v", pe.Node, pe.Value)
}

func (pe *PanicError) Stack() string {
	return pe.stacktrace
}

// NewPanicError captures the current stack. Call it from the deferred function that recovered, so
// the stack still contains the panicking frames.
func NewPanicError(node string, r any) *PanicError {
	goerr := goerrors.Wrap(r, 1)

	return &PanicError{
		Node:       node,
		Value:      r,
		stacktrace: string(goerr.Stack()),
	}
}
