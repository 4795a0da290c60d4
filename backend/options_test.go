package backend

import (
	"log/slog"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestWithClock(t *testing.T) {
	c := clock.NewMock()

	opts := ApplyOptions(WithClock(c))

	assert.Equal(t, c, opts.Clock)
}

func TestDefaultValues(t *testing.T) {
	opts := ApplyOptions()

	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.Metrics)
	assert.NotNil(t, opts.TracerProvider)
	assert.NotNil(t, opts.Clock)
	assert.NotNil(t, opts.Converter)
}

func TestNilLoggerFallsBackToDefault(t *testing.T) {
	opts := ApplyOptions(WithLogger(nil))

	assert.Equal(t, slog.Default(), opts.Logger)
}
