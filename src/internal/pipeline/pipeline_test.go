package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstallInfoIsValid(t *testing.T) {
	assert.True(t, InstallInfo{Component: "msvc", Version: "14.44", Root: "/opt/msvc", Payloads: 3}.IsValid())
}

func TestInstallInfoIsInvalidWhenIncomplete(t *testing.T) {
	assert.False(t, InstallInfo{Version: "14.44", Root: "/opt/msvc", Payloads: 3}.IsValid())
	assert.False(t, InstallInfo{Component: "msvc", Root: "/opt/msvc", Payloads: 3}.IsValid())
	assert.False(t, InstallInfo{Component: "msvc", Version: "14.44", Payloads: 3}.IsValid())
	assert.False(t, InstallInfo{Component: "msvc", Version: "14.44", Root: "/opt/msvc"}.IsValid())
}
