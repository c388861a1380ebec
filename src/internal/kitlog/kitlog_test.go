package kitlog

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWithThenFromRoundTripsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(zerolog.InfoLevel, &buf)
	ctx := With(context.Background(), logger)

	got := From(ctx)
	got.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestFromWithoutLoggerReturnsUsableLogger(t *testing.T) {
	got := From(context.Background())
	assert.NotPanics(t, func() { got.Info().Msg("discarded") })
}
