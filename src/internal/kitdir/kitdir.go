// Package kitdir computes the OS-appropriate base directory for msvc-kit's
// own state (global config, not staged toolchain output) plus the
// well-known subpaths of a staged install_root described in spec.md §6.
// Adapted from the teacher's src/internal/xedir package.
package kitdir

import (
	"os"
	"path/filepath"
	"runtime"
)

// Home returns the directory msvc-kit's own global config lives under,
// distinct from any caller-supplied install_root.
func Home() (string, error) {
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "msvc-kit"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "AppData", "Local", "msvc-kit"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "msvc-kit"), nil
}

// MustHome returns Home, falling back to a relative directory name if the
// user's home directory cannot be determined.
func MustHome() string {
	home, err := Home()
	if err != nil {
		return "msvc-kit"
	}
	return home
}

// ConfigFile is the global config file path, the file the CLI's viper
// setup (src/cmd/root.go) reads when no --config flag is given.
func ConfigFile() string {
	return filepath.Join(MustHome(), "config.toml")
}

// EnsureHome creates the global state directory if it doesn't exist.
func EnsureHome() error {
	return os.MkdirAll(MustHome(), 0o755)
}

// ManifestCacheDir is cache/manifests under install_root (spec.md §6).
func ManifestCacheDir(installRoot string) string {
	return filepath.Join(installRoot, "cache", "manifests")
}

// DownloadsDir is downloads/<component> under install_root (spec.md §6).
func DownloadsDir(installRoot, component string) string {
	return filepath.Join(installRoot, "downloads", component)
}

// IndexDBPath is the embedded KV file backing the download index for one
// component's download directory.
func IndexDBPath(installRoot, component string) string {
	return filepath.Join(DownloadsDir(installRoot, component), "index.db")
}

// ExtractedMarkerDir is .msvc-kit-extracted under an extraction root
// (spec.md §4.8 / §6).
func ExtractedMarkerDir(extractRoot string) string {
	return filepath.Join(extractRoot, ".msvc-kit-extracted")
}

// MSVCRoot is VC/Tools/MSVC/<build> under install_root.
func MSVCRoot(installRoot, build string) string {
	return filepath.Join(installRoot, "VC", "Tools", "MSVC", build)
}

// SDKRoot is "Windows Kits/10" under install_root.
func SDKRoot(installRoot string) string {
	return filepath.Join(installRoot, "Windows Kits", "10")
}
