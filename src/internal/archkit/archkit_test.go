package archkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	assert.True(t, X64.Valid())
	assert.True(t, ARM.Valid())
	assert.False(t, Architecture("mips").Valid())
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "X64", X64.Title())
	assert.Equal(t, "ARM64", ARM64.Title())
}

func TestNewPairDefaultsHostToNative(t *testing.T) {
	pair, err := NewPair("", X86)
	require.NoError(t, err)
	assert.Equal(t, X86, pair.Target)
	assert.Equal(t, Native(), pair.Host)
}

func TestNewPairRejectsARMHost(t *testing.T) {
	_, err := NewPair(ARM, X64)
	assert.Error(t, err)
}

func TestNewPairRejectsInvalidArch(t *testing.T) {
	_, err := NewPair(X64, Architecture("sparc"))
	assert.Error(t, err)
}

func TestNewPairAcceptsCrossArch(t *testing.T) {
	pair, err := NewPair(X64, ARM64)
	require.NoError(t, err)
	assert.Equal(t, X64, pair.Host)
	assert.Equal(t, ARM64, pair.Target)
}
