package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loonghao/msvc-kit/src/internal/dlindex"
	"github.com/loonghao/msvc-kit/src/internal/kitdir"
)

var doctorInstallRoot string

// doctorCmd is a read-only inspection command, grounded on the teacher's
// cmd.whyCmd/treeCmd pair (a dependency-path explainer over resolved
// state), generalized from package provenance to download-index health:
// it reports exactly what's recorded for every fingerprint msvc-kit has
// ever touched under installRoot, with no mutation.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Inspect the download index and manifest cache for an install root",
	RunE: func(cmd *cobra.Command, args []string) error {
		installRoot := doctorInstallRoot
		if installRoot == "" {
			var err error
			installRoot, err = kitdir.Home()
			if err != nil {
				return err
			}
		}

		cacheDir := kitdir.ManifestCacheDir(installRoot)
		if _, err := os.Stat(cacheDir); err == nil {
			fmt.Println("[OK] manifest cache present:", cacheDir)
		} else {
			fmt.Println("[--] manifest cache not yet populated:", cacheDir)
		}

		dbPath := kitdir.IndexDBPath(installRoot, "shared")
		if _, err := os.Stat(dbPath); err != nil {
			fmt.Println("[--] download index not yet populated:", dbPath)
			return nil
		}

		idx, err := dlindex.Open(dbPath)
		if err != nil {
			return err
		}
		defer idx.Close()

		entries, err := idx.List()
		if err != nil {
			return err
		}
		fmt.Println("[OK] download index:", dbPath)
		counts := map[dlindex.Status]int{}
		for _, e := range entries {
			counts[e.Status]++
		}
		fmt.Printf("     %d entries: %d done, %d pending, %d in-flight, %d failed\n",
			len(entries), counts[dlindex.StatusDone], counts[dlindex.StatusPending],
			counts[dlindex.StatusInFlight], counts[dlindex.StatusFailed])
		for _, e := range entries {
			if e.Status == dlindex.StatusFailed {
				fmt.Printf("     [FAILED] %s: %s\n", e.URL, e.Error)
			}
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().StringVar(&doctorInstallRoot, "install-root", "", "install root to inspect")
	rootCmd.AddCommand(doctorCmd)
}
