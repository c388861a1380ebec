package extractor

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
)

// msiMu serializes every MSI extraction in the process: the Windows
// Installer service itself single-threads administrative installs per
// machine, and a second concurrent /a invocation reliably fails with
// ERROR_INSTALL_ALREADY_RUNNING rather than queuing.
var msiMu sync.Mutex

const (
	msiRetryAttempts = 3
	msiRetryDelay    = 2 * time.Second

	// errInstallAlreadyRunning is msiexec's documented exit code when
	// another installer transaction holds the lock.
	errInstallAlreadyRunning = 1618
)

// extractMSI performs an administrative install (msiexec /a) into
// destDir, which lays the MSI's contents out as plain files without
// registering anything with the target machine (spec.md §4.7: msvc-kit
// never touches the Windows Installer database or registry).
func extractMSI(ctx context.Context, archivePath, destDir string) error {
	msiMu.Lock()
	defer msiMu.Unlock()

	var lastErr error
	for attempt := 0; attempt < msiRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(msiRetryDelay):
			case <-ctx.Done():
				return kiterrors.Wrap(kiterrors.Cancelled, "msiexec retry wait", ctx.Err())
			}
		}

		cmd := exec.CommandContext(ctx, "msiexec.exe",
			"/a", archivePath,
			"/qn",
			"TARGETDIR="+destDir,
		)
		out, err := cmd.CombinedOutput()
		if err == nil {
			return nil
		}

		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == errInstallAlreadyRunning {
			lastErr = fmt.Errorf("msiexec busy (attempt %d/%d): %s", attempt+1, msiRetryAttempts, string(out))
			continue
		}
		return kiterrors.Wrap(kiterrors.Extraction, fmt.Sprintf("msiexec administrative install failed: %s", string(out)), err)
	}
	return kiterrors.Wrap(kiterrors.Extraction, "msiexec stayed busy after retries", lastErr)
}
