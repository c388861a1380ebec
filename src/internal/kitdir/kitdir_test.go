package kitdir

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func filepathToSlash(p string) string {
	return filepath.ToSlash(p)
}

func TestDownloadsDirNestsUnderInstallRoot(t *testing.T) {
	got := DownloadsDir("/opt/msvc-kit", "sdk")
	assert.Equal(t, "/opt/msvc-kit/downloads/sdk", filepathToSlash(got))
}

func TestIndexDBPathNestsUnderDownloadsDir(t *testing.T) {
	got := IndexDBPath("/opt/msvc-kit", "msvc")
	assert.Equal(t, "/opt/msvc-kit/downloads/msvc/index.db", filepathToSlash(got))
}

func TestMSVCRootIncludesBuild(t *testing.T) {
	got := MSVCRoot("/opt/msvc-kit", "14.44.35207")
	assert.Equal(t, "/opt/msvc-kit/VC/Tools/MSVC/14.44.35207", filepathToSlash(got))
}

func TestSDKRootIsWindowsKits10(t *testing.T) {
	got := SDKRoot("/opt/msvc-kit")
	assert.Equal(t, "/opt/msvc-kit/Windows Kits/10", filepathToSlash(got))
}

func TestMustHomeNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, MustHome())
}
