package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loonghao/msvc-kit/src/internal/dlindex"
	"github.com/loonghao/msvc-kit/src/internal/hashutil"
	"github.com/loonghao/msvc-kit/src/internal/httpclient"
	"github.com/loonghao/msvc-kit/src/internal/resolver"
)

func newTestDownloader(t *testing.T, destDir string, client *http.Client) *Downloader {
	t.Helper()
	idx, err := dlindex.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return New(Options{
		HTTP:    httpclient.NewWithClient(client),
		Index:   idx,
		DestDir: destDir,
	})
}

func TestDownloadFetchesAndVerifiesHash(t *testing.T) {
	const body = "toolchain payload bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	sum := sha256Hex(body)
	destDir := t.TempDir()
	d := newTestDownloader(t, destDir, srv.Client())

	p := resolver.Payload{URL: srv.URL + "/a.bin", SHA256: sum, Size: int64(len(body)), FileName: "a.bin"}
	res := d.Download(context.Background(), p)
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeDownloaded, res.Outcome)

	data, err := os.ReadFile(res.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestDownloadFailsOnHashMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("unexpected content"))
	}))
	defer srv.Close()

	destDir := t.TempDir()
	d := newTestDownloader(t, destDir, srv.Client())

	p := resolver.Payload{URL: srv.URL + "/a.bin", SHA256: "0000000000000000000000000000000000000000000000000000000000000000", Size: 18, FileName: "a.bin"}
	res := d.Download(context.Background(), p)
	require.Error(t, res.Err)
}

func TestDownloadReusesCachedOnSecondCall(t *testing.T) {
	const body = "cached content"
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(body))
	}))
	defer srv.Close()

	destDir := t.TempDir()
	idx, err := dlindex.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer idx.Close()

	d := New(Options{HTTP: httpclient.NewWithClient(srv.Client()), Index: idx, DestDir: destDir})
	p := resolver.Payload{URL: srv.URL + "/a.bin", SHA256: sha256Hex(body), Size: int64(len(body)), FileName: "a.bin"}

	first := d.Download(context.Background(), p)
	require.NoError(t, first.Err)
	assert.Equal(t, OutcomeDownloaded, first.Outcome)

	second := d.Download(context.Background(), p)
	require.NoError(t, second.Err)
	assert.Equal(t, OutcomeReusedCached, second.Outcome)
	assert.Equal(t, 1, hits)
}

func sha256Hex(s string) string {
	hasher := hashutil.NewStreamHasher()
	_, _ = hasher.Write([]byte(s))
	return hasher.Finish()
}
