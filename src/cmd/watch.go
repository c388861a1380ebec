package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/loonghao/msvc-kit/src/internal/kitdir"
	"github.com/loonghao/msvc-kit/src/internal/manifestcache"
)

var watchInstallRoot string

// watchCmd is the supplemented watch feature: it follows the manifest
// cache directory with fsnotify and, whenever a cached channel/catalog
// file is written or removed, invalidates (deletes) that cache entry,
// grounded on ManuGH-xg2g's internal/config.ConfigHolder watcher loop
// (fsnotify.NewWatcher and a select over Events/Errors). Each event is
// handled as it arrives; rapid successive writes are not debounced.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the manifest cache directory and invalidate entries on external changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		installRoot := watchInstallRoot
		if installRoot == "" {
			var err error
			installRoot, err = kitdir.Home()
			if err != nil {
				return err
			}
		}

		cacheDir := kitdir.ManifestCacheDir(installRoot)
		cache, err := manifestcache.New(cacheDir)
		if err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()

		if err := watcher.Add(cacheDir); err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		fmt.Println("watching", cacheDir, "(Ctrl+C to stop)")
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if ev.Op&(fsnotify.Write|fsnotify.Remove) == 0 {
					continue
				}
				key := cacheKeyFromPath(ev.Name)
				if key == "" {
					continue
				}
				if err := cache.Invalidate(key); err != nil {
					fmt.Fprintln(os.Stderr, "invalidate", key, ":", err)
					continue
				}
				fmt.Println("invalidated cache entry:", key)
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintln(os.Stderr, "watch error:", err)
			case <-sigCh:
				return nil
			}
		}
	},
}

// cacheKeyFromPath recovers the manifestcache key ("channel", "catalog")
// from a changed file's basename, stripping the .bin/.json suffix.
func cacheKeyFromPath(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			base = path[i+1:]
			break
		}
	}
	for _, suffix := range []string{".bin", ".json"} {
		if len(base) > len(suffix) && base[len(base)-len(suffix):] == suffix {
			return base[:len(base)-len(suffix)]
		}
	}
	return ""
}

func init() {
	watchCmd.Flags().StringVar(&watchInstallRoot, "install-root", "", "install root whose manifest cache should be watched")
	rootCmd.AddCommand(watchCmd)
}
