package hashutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamHasherMatchesComputeSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	content := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	hasher := NewStreamHasher()
	_, err := hasher.Write(content)
	require.NoError(t, err)

	direct, err := ComputeSHA256(path)
	require.NoError(t, err)
	assert.Equal(t, direct, hasher.Finish())
}

func TestFingerprintDistinguishesKnownFromUnknownHash(t *testing.T) {
	withHash := Fingerprint("https://example.invalid/a.zip", 100, "deadbeef")
	withoutHash := Fingerprint("https://example.invalid/a.zip", 100, "")
	assert.NotEqual(t, withHash, withoutHash)
}

func TestFingerprintStableForSameInputs(t *testing.T) {
	a := Fingerprint("https://example.invalid/a.zip", 100, "deadbeef")
	b := Fingerprint("https://example.invalid/a.zip", 100, "deadbeef")
	assert.Equal(t, a, b)
}

func TestSizeMatch(t *testing.T) {
	assert.True(t, SizeMatch(1024, 1024))
	assert.False(t, SizeMatch(1024, 2048))
	assert.False(t, SizeMatch(-1, 0))
}
