package nodeerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func panickingNode() {
	panic("boom")
}

func Test_NewPanicError(t *testing.T) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = NewPanicError("execute", r)
			}
		}()

		panickingNode()

		return nil
	}()

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "execute", pe.Node)
	require.Equal(t, "panic in node execute: boom", pe.Error())
	require.Contains(t, pe.Stack(), "panickingNode")
}
