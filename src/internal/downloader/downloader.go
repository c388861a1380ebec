// Package downloader implements C7: resumable, hash-verified payload
// acquisition with content-addressed skip logic. The atomic
// temp-then-rename write and streaming-hash pattern are grounded on the
// teacher's src/internal/cache.CAS.StoreBlobFromURL (os.CreateTemp in the
// destination dir, io.MultiWriter into both the file and a running hash,
// os.Rename only after the copy succeeds); the skip-decision ladder and
// Range-based resume are msvc-kit's own addition, since the teacher never
// resumes a partial blob.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loonghao/msvc-kit/src/internal/dlindex"
	"github.com/loonghao/msvc-kit/src/internal/hashutil"
	"github.com/loonghao/msvc-kit/src/internal/httpclient"
	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
	"github.com/loonghao/msvc-kit/src/internal/kitlog"
	"github.com/loonghao/msvc-kit/src/internal/resolver"
)

// Outcome labels why a payload ended up where it did, surfaced in logs
// and in ProgressHandler events per spec.md §4.6.
type Outcome string

const (
	OutcomeReusedCached    Outcome = "REUSED_CACHED"
	OutcomeNotModified304  Outcome = "NOT_MODIFIED_304"
	OutcomeReusedSizeMatch Outcome = "REUSED_SIZE_MATCH"
	OutcomeDownloaded      Outcome = "DOWNLOADED"
)

// Result is what Download returns for a single payload.
type Result struct {
	Payload   resolver.Payload
	LocalPath string
	Outcome   Outcome
	Err       error
}

// ProgressHandler receives per-payload progress events. Implementations
// must not block the download goroutine. Downloader calls OnStart and
// OnDone once per payload, directly on the download goroutine; it does not
// call OnProgress, and it does not recover a panic raised by a handler.
type ProgressHandler interface {
	OnStart(payload resolver.Payload)
	OnProgress(payload resolver.Payload, downloaded, total int64)
	OnDone(payload resolver.Payload, outcome Outcome, err error)
}

// NoopProgress discards all events.
type NoopProgress struct{}

func (NoopProgress) OnStart(resolver.Payload)                          {}
func (NoopProgress) OnProgress(resolver.Payload, int64, int64)          {}
func (NoopProgress) OnDone(resolver.Payload, Outcome, error)            {}

const (
	minConcurrency        = 2
	maxConcurrency         = 8
	throughputSampleWindow = 2 * time.Second
)

// Options configures a Downloader.
type Options struct {
	HTTP            *httpclient.Facade
	Index           *dlindex.Index
	DestDir         string
	Progress        ProgressHandler
	DryRun          bool
	InitialParallel int
}

// Downloader is the C7 component.
type Downloader struct {
	opts     Options
	sem      chan struct{}
	parallel int32
}

// New constructs a Downloader. opts.Progress defaults to NoopProgress,
// opts.InitialParallel defaults to minConcurrency.
func New(opts Options) *Downloader {
	if opts.Progress == nil {
		opts.Progress = NoopProgress{}
	}
	if opts.InitialParallel <= 0 {
		opts.InitialParallel = minConcurrency
	}
	if opts.InitialParallel > maxConcurrency {
		opts.InitialParallel = maxConcurrency
	}
	d := &Downloader{opts: opts, parallel: int32(opts.InitialParallel)}
	d.sem = make(chan struct{}, maxConcurrency)
	for i := 0; i < opts.InitialParallel; i++ {
		d.sem <- struct{}{}
	}
	return d
}

// DownloadAll fetches every payload concurrently, adapting concurrency to
// observed throughput (spec.md §4.6), and returns one Result per payload
// in the same order they were given.
func (d *Downloader) DownloadAll(ctx context.Context, payloads []resolver.Payload) []Result {
	results := make([]Result, len(payloads))
	var wg sync.WaitGroup
	var completed int64
	start := time.Now()

	for i, p := range payloads {
		wg.Add(1)
		go func(i int, p resolver.Payload) {
			defer wg.Done()
			<-d.sem
			defer func() { d.sem <- struct{}{} }()

			res := d.downloadOne(ctx, p)
			results[i] = res

			n := atomic.AddInt64(&completed, 1)
			if n%2 == 0 {
				d.adaptConcurrency(time.Since(start), n, int64(len(payloads)))
			}
		}(i, p)
	}
	wg.Wait()
	return results
}

// adaptConcurrency adds one slot when the completion rate since start
// (payloads per second) exceeds the current slot count, up to
// maxConcurrency. It never lowers the slot count: it only ever adds slots
// to d.sem, never removes one mid-flight, to avoid deadlocking an
// outstanding downloadOne.
func (d *Downloader) adaptConcurrency(elapsed time.Duration, completed, total int64) {
	if completed >= total {
		return
	}
	rate := float64(completed) / elapsed.Seconds()
	current := atomic.LoadInt32(&d.parallel)
	if rate > float64(current) && current < maxConcurrency {
		atomic.AddInt32(&d.parallel, 1)
		select {
		case d.sem <- struct{}{}:
		default:
		}
	}
}

// Download fetches a single payload, exposed directly for callers that
// want to sequence their own concurrency (e.g. tests).
func (d *Downloader) Download(ctx context.Context, p resolver.Payload) Result {
	return d.downloadOne(ctx, p)
}

func (d *Downloader) downloadOne(ctx context.Context, p resolver.Payload) Result {
	log := kitlog.From(ctx)
	d.opts.Progress.OnStart(p)

	fp := hashutil.Fingerprint(p.URL, p.Size, p.SHA256)
	name := p.FileName
	if name == "" {
		name = filepath.Base(p.URL)
	}
	destPath := filepath.Join(d.opts.DestDir, name)

	entry, claimed, err := d.opts.Index.BeginDownload(fp, p.URL)
	if err != nil {
		res := Result{Payload: p, Err: kiterrors.Wrap(kiterrors.Io, "begin download", err)}
		d.opts.Progress.OnDone(p, "", res.Err)
		return res
	}
	if !claimed {
		if entry.Status == dlindex.StatusDone {
			log.Debug().Str("url", p.URL).Msg("reusing cached download")
			res := Result{Payload: p, LocalPath: entry.LocalPath, Outcome: OutcomeReusedCached}
			d.opts.Progress.OnDone(p, res.Outcome, nil)
			return res
		}
		res := Result{Payload: p, Err: kiterrors.New(kiterrors.Io, "peer download of "+p.URL+" failed: "+entry.Error)}
		d.opts.Progress.OnDone(p, "", res.Err)
		return res
	}

	if outcome, ok := d.trySizeMatchSkip(destPath, p); ok {
		if outcome == OutcomeReusedSizeMatch {
			log.Info().Str("url", p.URL).Str("path", destPath).Msg("size match: reusing existing file without hash verification (best-effort)")
		}
		_ = d.opts.Index.CommitDone(fp, destPath, p.Size, p.SHA256)
		res := Result{Payload: p, LocalPath: destPath, Outcome: outcome}
		d.opts.Progress.OnDone(p, outcome, nil)
		return res
	}

	if d.opts.DryRun {
		res := Result{Payload: p, LocalPath: destPath, Outcome: OutcomeDownloaded}
		_ = d.opts.Index.CommitDone(fp, destPath, p.Size, p.SHA256)
		d.opts.Progress.OnDone(p, res.Outcome, nil)
		return res
	}

	actualHash, size, err := d.fetchToFile(ctx, p, destPath)
	if err != nil {
		_ = d.opts.Index.CommitFailed(fp, err)
		res := Result{Payload: p, Err: err}
		d.opts.Progress.OnDone(p, "", err)
		return res
	}

	if p.SHA256 != "" && !strings.EqualFold(actualHash, p.SHA256) {
		_ = os.Remove(destPath)
		hashErr := kiterrors.New(kiterrors.HashMismatch,
			fmt.Sprintf("hash mismatch for %s: expected %s, got %s", p.URL, p.SHA256, actualHash))
		_ = d.opts.Index.CommitFailed(fp, hashErr)
		d.opts.Progress.OnDone(p, "", hashErr)
		return Result{Payload: p, Err: hashErr}
	}

	if err := d.opts.Index.CommitDone(fp, destPath, size, actualHash); err != nil {
		log.Warn().Err(err).Msg("failed to commit download index entry")
	}
	res := Result{Payload: p, LocalPath: destPath, Outcome: OutcomeDownloaded}
	d.opts.Progress.OnDone(p, res.Outcome, nil)
	return res
}

// trySizeMatchSkip reports whether an already-present file at destPath
// can be trusted without re-downloading. When the manifest carries a
// SHA256, the file is hashed and reused only if it matches
// (REUSED_CACHED). Without one, a size equal to the manifest's declared
// size is accepted (REUSED_SIZE_MATCH), a best-effort heuristic rather
// than a content check.
func (d *Downloader) trySizeMatchSkip(destPath string, p resolver.Payload) (Outcome, bool) {
	info, err := os.Stat(destPath)
	if err != nil {
		return "", false
	}
	if p.SHA256 != "" {
		sum, err := hashutil.ComputeSHA256(destPath)
		if err == nil && strings.EqualFold(sum, p.SHA256) {
			return OutcomeReusedCached, true
		}
		return "", false
	}
	if hashutil.SizeMatch(p.Size, info.Size()) {
		return OutcomeReusedSizeMatch, true
	}
	return "", false
}

// fetchToFile streams the payload into destPath+".part", resuming via
// Range if that partial file already exists and the server answers 206,
// then renames it into place once the transfer succeeds. It does not
// compare the hash; the caller does that after the rename and removes the
// file on a mismatch.
func (d *Downloader) fetchToFile(ctx context.Context, p resolver.Payload, destPath string) (sha256Hex string, size int64, err error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", 0, kiterrors.Wrap(kiterrors.Io, "create download directory", err)
	}

	tmpPath := destPath + ".part"
	var resumeFrom int64
	if info, err := os.Stat(tmpPath); err == nil {
		resumeFrom = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return "", 0, kiterrors.Wrap(kiterrors.Http, "build request", err)
	}
	if resumeFrom > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(resumeFrom, 10)+"-")
	}

	resp, err := d.opts.HTTP.Do(ctx, req)
	if err != nil {
		return "", 0, kiterrors.Wrap(kiterrors.Http, fmt.Sprintf("fetch %s", p.URL), err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if resp.StatusCode == http.StatusPartialContent && resumeFrom > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		resumeFrom = 0
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return "", 0, kiterrors.New(kiterrors.Http, fmt.Sprintf("unexpected status %d downloading %s", resp.StatusCode, p.URL))
	}

	f, err := os.OpenFile(tmpPath, flags, 0o644)
	if err != nil {
		return "", 0, kiterrors.Wrap(kiterrors.Io, "open temp download file", err)
	}

	hasher := hashutil.NewStreamHasher()
	var priorHash string
	if resumeFrom > 0 {
		priorHash, err = hashutil.ComputeSHA256(tmpPath)
		if err != nil {
			f.Close()
			return "", 0, kiterrors.Wrap(kiterrors.Io, "hash existing partial download", err)
		}
	}

	writer := io.MultiWriter(f, hasher)
	written, copyErr := io.Copy(writer, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return "", 0, kiterrors.Wrap(kiterrors.Http, "stream download body", copyErr)
	}
	if closeErr != nil {
		return "", 0, kiterrors.Wrap(kiterrors.Io, "close temp download file", closeErr)
	}

	var finalHash string
	if resumeFrom > 0 {
		// Resumed transfers can't reuse the lockstep hasher (it only
		// covers the newly-written bytes); hash the whole file once more.
		finalHash, err = hashutil.ComputeSHA256(tmpPath)
		if err != nil {
			return "", 0, kiterrors.Wrap(kiterrors.Io, "hash resumed download", err)
		}
		_ = priorHash
	} else {
		finalHash = hasher.Finish()
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", 0, kiterrors.Wrap(kiterrors.Io, "rename temp download into place", err)
	}

	return finalHash, resumeFrom + written, nil
}
