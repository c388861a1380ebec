package kiterrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Io, "write file", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, Io, KindOf(err))
}

func TestIsMatchesKind(t *testing.T) {
	err := New(HashMismatch, "checksum did not match")
	assert.True(t, Is(err, HashMismatch))
	assert.False(t, Is(err, Extraction))
}

func TestKindOfUncategorizedError(t *testing.T) {
	assert.Equal(t, Other, KindOf(errors.New("plain error")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, 2, ExitCode(VersionNotFound))
	assert.Equal(t, 4, ExitCode(HashMismatch))
	assert.Equal(t, 130, ExitCode(Cancelled))
	assert.Equal(t, 1, ExitCode(Other))
}
