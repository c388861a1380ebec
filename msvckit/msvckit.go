// Package msvckit is the public library surface over msvc-kit's
// acquisition pipeline (src/internal/pipeline), for callers embedding
// msvc-kit rather than invoking its CLI.
package msvckit

import (
	"context"

	"github.com/loonghao/msvc-kit/src/internal/archkit"
	"github.com/loonghao/msvc-kit/src/internal/downloader"
	"github.com/loonghao/msvc-kit/src/internal/httpclient"
	"github.com/loonghao/msvc-kit/src/internal/pipeline"
	"github.com/loonghao/msvc-kit/src/internal/resolver"
	"github.com/loonghao/msvc-kit/src/internal/selector"
)

// Re-exported types so callers never need to import an internal package.
type (
	Architecture    = archkit.Architecture
	Pair            = archkit.Pair
	Extras          = selector.Extras
	VersionRef      = resolver.VersionRef
	InstallInfo     = pipeline.InstallInfo
	Options         = pipeline.Options
	ProgressHandler = downloader.ProgressHandler
)

const (
	X64   = archkit.X64
	X86   = archkit.X86
	ARM64 = archkit.ARM64
	ARM   = archkit.ARM
)

// NewPair builds a validated host/target architecture pair.
func NewPair(host, target Architecture) (Pair, error) {
	return archkit.NewPair(host, target)
}

// ParseVersion parses a user-supplied version selector.
func ParseVersion(raw string) VersionRef {
	return resolver.ParseVersionRef(raw)
}

// NewHTTPClient builds the default pooled, retrying HTTP facade.
func NewHTTPClient() *httpclient.Facade {
	return httpclient.New()
}

// Kit is a configured acquisition pipeline, the entry point for
// programmatic MSVC/SDK acquisition.
type Kit struct {
	pl *pipeline.Pipeline
}

// Open wires a Kit from opts.
func Open(opts Options) (*Kit, error) {
	pl, err := pipeline.New(opts)
	if err != nil {
		return nil, err
	}
	return &Kit{pl: pl}, nil
}

// Close releases the Kit's resources.
func (k *Kit) Close() error {
	return k.pl.Close()
}

// DownloadMSVC resolves, downloads, and extracts the MSVC toolchain.
func (k *Kit) DownloadMSVC(ctx context.Context) (InstallInfo, error) {
	return k.pl.DownloadMSVC(ctx)
}

// DownloadSDK resolves, downloads, and extracts the Windows SDK.
func (k *Kit) DownloadSDK(ctx context.Context) (InstallInfo, error) {
	return k.pl.DownloadSDK(ctx)
}

// DownloadAll fetches both components concurrently.
func (k *Kit) DownloadAll(ctx context.Context) (msvc InstallInfo, sdk InstallInfo, err error) {
	return k.pl.DownloadAll(ctx)
}

// ListAvailableVersions returns every MSVC and SDK build the configured
// channel currently advertises.
func (k *Kit) ListAvailableVersions(ctx context.Context) (msvc []string, sdk []string, err error) {
	return k.pl.ListAvailableVersions(ctx)
}
