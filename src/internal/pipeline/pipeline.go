// Package pipeline implements C9: the orchestrator wiring the resolver,
// selector, downloader, and extractor into the single acquisition
// operation a caller actually wants ("give me MSVC x64 and the matching
// SDK, staged and ready"). The overall shape — a top-level span wrapping
// parallel sub-stages guarded by a shared error, idempotency markers
// checked before re-doing work — is grounded on the teacher's
// src/internal/engine.Installer.Install, generalized from a
// solve-then-install-wheels flow to a resolve-then-download-then-extract
// one. Running MSVC and SDK acquisition concurrently (rather than the
// teacher's sequential per-requirement resolve loop) is grounded on
// ManuGH-xg2g's internal/daemon.App, which fans independent subsystem
// startups out through golang.org/x/sync/errgroup.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/loonghao/msvc-kit/src/internal/archkit"
	"github.com/loonghao/msvc-kit/src/internal/dlindex"
	"github.com/loonghao/msvc-kit/src/internal/downloader"
	"github.com/loonghao/msvc-kit/src/internal/extractor"
	"github.com/loonghao/msvc-kit/src/internal/hashutil"
	"github.com/loonghao/msvc-kit/src/internal/httpclient"
	"github.com/loonghao/msvc-kit/src/internal/kitdir"
	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
	"github.com/loonghao/msvc-kit/src/internal/kitlog"
	"github.com/loonghao/msvc-kit/src/internal/manifestcache"
	"github.com/loonghao/msvc-kit/src/internal/resolver"
	"github.com/loonghao/msvc-kit/src/internal/selector"
	"github.com/loonghao/msvc-kit/src/internal/telemetry"
)

// Options is the full set of knobs a single acquisition run accepts,
// spec.md §6's public surface.
type Options struct {
	ChannelURL  string
	InstallRoot string
	Pair        archkit.Pair
	Extras      selector.Extras
	MSVCVersion resolver.VersionRef
	SDKVersion  resolver.VersionRef
	DryRun      bool
	Concurrency int
	Progress    downloader.ProgressHandler
	HTTPClient  *httpclient.Facade
}

// InstallInfo describes one staged component (MSVC toolchain or SDK)
// after DownloadMSVC/DownloadSDK completes.
type InstallInfo struct {
	Component string
	Version   string
	Root      string
	Payloads  int
}

// IsValid reports whether the staged install looks structurally sound:
// a component name, a resolved version, a root directory, and at least one
// payload staged. It checks only these recorded fields; it does not look
// at the files on disk.
func (i InstallInfo) IsValid() bool {
	return i.Component != "" && i.Version != "" && i.Root != "" && i.Payloads > 0
}

// Pipeline is the C9 component tying C2-C8 together.
type Pipeline struct {
	opts     Options
	resolver *resolver.Resolver
	index    *dlindex.Index
}

// New wires a Pipeline from opts, opening the manifest cache and download
// index under opts.InstallRoot.
func New(opts Options) (*Pipeline, error) {
	if opts.ChannelURL == "" {
		opts.ChannelURL = "https://aka.ms/vs/17/release/channel"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.New()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}

	cacheDir := kitdir.ManifestCacheDir(opts.InstallRoot)
	cache, err := manifestcache.New(cacheDir)
	if err != nil {
		return nil, kiterrors.Wrap(kiterrors.Io, "create manifest cache", err)
	}

	idx, err := dlindex.Open(kitdir.IndexDBPath(opts.InstallRoot, "shared"))
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		opts:     opts,
		resolver: resolver.New(opts.ChannelURL, cache, opts.HTTPClient),
		index:    idx,
	}, nil
}

// Close releases the download index's database handle.
func (p *Pipeline) Close() error {
	return p.index.Close()
}

// ListAvailableVersions returns every MSVC and SDK build the current
// channel/catalog advertises, newest first.
func (p *Pipeline) ListAvailableVersions(ctx context.Context) (msvc []string, sdk []string, err error) {
	catalog, err := p.fetchCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	return resolver.AvailableVersions(catalog, resolver.VCToolsRootPrefix),
		resolver.AvailableVersions(catalog, resolver.SDKRootPrefix), nil
}

func (p *Pipeline) fetchCatalog(ctx context.Context) (resolver.Catalog, error) {
	channel, err := p.resolver.FetchChannel(ctx)
	if err != nil {
		return resolver.Catalog{}, err
	}
	return p.resolver.FetchCatalog(ctx, channel)
}

// DownloadMSVC resolves, downloads, and extracts the MSVC toolchain
// matching opts.MSVCVersion and opts.Pair.
func (p *Pipeline) DownloadMSVC(ctx context.Context) (InstallInfo, error) {
	done := telemetry.StartSpan("pipeline.download_msvc", "target", string(p.opts.Pair.Target))
	info, err := p.downloadComponent(ctx, "msvc")
	if err != nil {
		done("status", "error", "error", err.Error())
		return InstallInfo{}, err
	}
	done("status", "ok", "payloads", info.Payloads)
	return info, nil
}

// DownloadSDK resolves, downloads, and extracts the Windows SDK matching
// opts.SDKVersion and opts.Pair.Target.
func (p *Pipeline) DownloadSDK(ctx context.Context) (InstallInfo, error) {
	done := telemetry.StartSpan("pipeline.download_sdk", "target", string(p.opts.Pair.Target))
	info, err := p.downloadComponent(ctx, "sdk")
	if err != nil {
		done("status", "error", "error", err.Error())
		return InstallInfo{}, err
	}
	done("status", "ok", "payloads", info.Payloads)
	return info, nil
}

// DownloadAll runs DownloadMSVC and DownloadSDK concurrently and returns
// both results, failing the whole run if either stage fails.
func (p *Pipeline) DownloadAll(ctx context.Context) (msvc InstallInfo, sdk InstallInfo, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		msvc, err = p.DownloadMSVC(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sdk, err = p.DownloadSDK(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return InstallInfo{}, InstallInfo{}, err
	}
	return msvc, sdk, nil
}

func (p *Pipeline) downloadComponent(ctx context.Context, component string) (InstallInfo, error) {
	log := kitlog.From(ctx)
	catalog, err := p.fetchCatalog(ctx)
	if err != nil {
		return InstallInfo{}, err
	}

	var root resolver.Package
	var version resolver.VersionRef
	switch component {
	case "msvc":
		version = p.opts.MSVCVersion
		root, err = resolver.ResolveMSVC(catalog, version, p.opts.Pair)
	case "sdk":
		version = p.opts.SDKVersion
		root, err = resolver.ResolveSDK(catalog, version)
	default:
		return InstallInfo{}, kiterrors.New(kiterrors.Other, "unknown component "+component)
	}
	if err != nil {
		return InstallInfo{}, err
	}

	packages, err := resolver.PackagesFor(catalog, root)
	if err != nil {
		return InstallInfo{}, err
	}

	extras := p.opts.Extras
	extras.Component = component
	payloads := selector.Select(packages, p.opts.Pair, extras)
	if len(payloads) == 0 {
		return InstallInfo{}, kiterrors.New(kiterrors.Other, "selector produced zero payloads for "+component)
	}

	destDir := kitdir.DownloadsDir(p.opts.InstallRoot, component)
	dl := downloader.New(downloader.Options{
		HTTP:            p.opts.HTTPClient,
		Index:           p.index,
		DestDir:         destDir,
		Progress:        p.opts.Progress,
		DryRun:          p.opts.DryRun,
		InitialParallel: p.opts.Concurrency,
	})
	results := dl.DownloadAll(ctx, payloads)

	var extractRoot string
	switch component {
	case "msvc":
		extractRoot = kitdir.MSVCRoot(p.opts.InstallRoot, root.Version)
	case "sdk":
		extractRoot = kitdir.SDKRoot(p.opts.InstallRoot)
	}

	var tasks []extractor.Task
	for _, r := range results {
		if r.Err != nil {
			return InstallInfo{}, kiterrors.Wrap(kiterrors.Io, fmt.Sprintf("download %s", r.Payload.URL), r.Err)
		}
		dest := filepath.Join(extractRoot, hashutil.Fingerprint(r.Payload.URL, r.Payload.Size, r.Payload.SHA256)[:12])
		tasks = append(tasks, extractor.Task{ArchivePath: r.LocalPath, DestDir: dest})
	}

	if !p.opts.DryRun {
		ex := extractor.New(extractor.Options{})
		extractResults := ex.ExtractAll(ctx, tasks)
		for _, r := range extractResults {
			if r.Err != nil {
				return InstallInfo{}, kiterrors.Wrap(kiterrors.Extraction, "extract "+r.Task.ArchivePath, r.Err)
			}
		}
	}

	log.Info().Str("component", component).Str("version", root.Version).Int("payloads", len(payloads)).Msg("component staged")

	return InstallInfo{
		Component: component,
		Version:   root.Version,
		Root:      extractRoot,
		Payloads:  len(payloads),
	}, nil
}
