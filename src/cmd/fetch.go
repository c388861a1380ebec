package cmd

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loonghao/msvc-kit/src/internal/archkit"
	"github.com/loonghao/msvc-kit/src/internal/downloader"
	"github.com/loonghao/msvc-kit/src/internal/kitdir"
	"github.com/loonghao/msvc-kit/src/internal/pipeline"
	"github.com/loonghao/msvc-kit/src/internal/resolver"
	"github.com/loonghao/msvc-kit/src/internal/selector"
)

var (
	fetchInstallRoot string
	fetchHost        string
	fetchTarget      string
	fetchComponent   string
	fetchMSVCVersion string
	fetchSDKVersion  string
	fetchChannelURL  string
	fetchDryRun      bool
	fetchConcurrency int
	fetchSpectre     bool
	fetchATL         bool
	fetchMFC         bool
	fetchCrossTools  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Resolve, download, verify, and stage an MSVC toolchain and/or Windows SDK",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext()

		installRoot := fetchInstallRoot
		if installRoot == "" {
			installRoot = viper.GetString("install.root")
		}
		if installRoot == "" {
			home, err := kitdir.Home()
			if err != nil {
				return err
			}
			installRoot = home
		}

		pair, err := archkit.NewPair(archkit.Architecture(fetchHost), archkit.Architecture(fetchTarget))
		if err != nil {
			return err
		}

		channelURL := fetchChannelURL
		if channelURL == "" {
			channelURL = viper.GetString("channel.url")
		}

		progress := newSpinnerProgress()

		opts := pipeline.Options{
			ChannelURL:  channelURL,
			InstallRoot: installRoot,
			Pair:        pair,
			Extras: selector.Extras{
				IncludeSpectre:    fetchSpectre,
				IncludeATL:        fetchATL,
				IncludeMFC:        fetchMFC,
				IncludeCrossTools: fetchCrossTools,
			},
			MSVCVersion: resolver.ParseVersionRef(fetchMSVCVersion),
			SDKVersion:  resolver.ParseVersionRef(fetchSDKVersion),
			DryRun:      fetchDryRun,
			Concurrency: fetchConcurrency,
			Progress:    progress,
		}

		pl, err := pipeline.New(opts)
		if err != nil {
			return err
		}
		defer pl.Close()

		switch fetchComponent {
		case "msvc":
			info, err := pl.DownloadMSVC(ctx)
			if err != nil {
				return err
			}
			printInstallInfo(info)
		case "sdk":
			info, err := pl.DownloadSDK(ctx)
			if err != nil {
				return err
			}
			printInstallInfo(info)
		default:
			msvc, sdk, err := pl.DownloadAll(ctx)
			if err != nil {
				return err
			}
			printInstallInfo(msvc)
			printInstallInfo(sdk)
		}
		return nil
	},
}

func printInstallInfo(info pipeline.InstallInfo) {
	status := pterm.Green("ok")
	if !info.IsValid() {
		status = pterm.Red("incomplete")
	}
	fmt.Printf("%s %-6s %-16s %s (%d payloads)\n", status, info.Component, info.Version, info.Root, info.Payloads)
}

// spinnerProgress gives each in-flight payload its own line in a
// pterm.DefaultMultiPrinter, the same one-spinner-per-item pattern the
// teacher uses for concurrent package installs.
type spinnerProgress struct {
	multi pterm.MultiPrinter

	mu       sync.Mutex
	spinners map[string]*pterm.SpinnerPrinter
}

func newSpinnerProgress() *spinnerProgress {
	multi := pterm.DefaultMultiPrinter
	multi.Start()
	return &spinnerProgress{multi: multi, spinners: make(map[string]*pterm.SpinnerPrinter)}
}

func (s *spinnerProgress) OnStart(p resolver.Payload) {
	name := filepath.Base(p.URL)
	sp, _ := pterm.DefaultSpinner.WithWriter(s.multi.NewWriter()).Start("fetching " + name)
	s.mu.Lock()
	s.spinners[p.URL] = sp
	s.mu.Unlock()
}

func (s *spinnerProgress) OnProgress(p resolver.Payload, downloaded, total int64) {}

func (s *spinnerProgress) OnDone(p resolver.Payload, outcome downloader.Outcome, err error) {
	s.mu.Lock()
	sp := s.spinners[p.URL]
	delete(s.spinners, p.URL)
	s.mu.Unlock()
	if sp == nil {
		return
	}
	name := filepath.Base(p.URL)
	if err != nil {
		sp.Fail(fmt.Sprintf("%s: %v", name, err))
		return
	}
	sp.Success(fmt.Sprintf("%s (%s)", name, outcome))
}

func init() {
	fetchCmd.Flags().StringVar(&fetchInstallRoot, "install-root", "", "destination root for the staged toolchain/SDK")
	fetchCmd.Flags().StringVar(&fetchHost, "host", string(archkit.Native()), "host architecture: x64, x86, arm64")
	fetchCmd.Flags().StringVar(&fetchTarget, "target", string(archkit.Native()), "target architecture: x64, x86, arm64, arm")
	fetchCmd.Flags().StringVar(&fetchComponent, "component", "", "limit to a single component: msvc, sdk (default: both)")
	fetchCmd.Flags().StringVar(&fetchMSVCVersion, "msvc-version", "latest", "MSVC build to resolve (version, prefix, or \"latest\")")
	fetchCmd.Flags().StringVar(&fetchSDKVersion, "sdk-version", "latest", "Windows SDK build to resolve")
	fetchCmd.Flags().StringVar(&fetchChannelURL, "channel-url", "", "override the VS channel document URL")
	fetchCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "resolve and select payloads without downloading or extracting")
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", 2, "initial parallel download count")
	fetchCmd.Flags().BoolVar(&fetchSpectre, "include-spectre", false, "include Spectre-mitigated CRT/MFC/ATL variants")
	fetchCmd.Flags().BoolVar(&fetchATL, "include-atl", false, "include ATL libraries")
	fetchCmd.Flags().BoolVar(&fetchMFC, "include-mfc", false, "include MFC libraries")
	fetchCmd.Flags().BoolVar(&fetchCrossTools, "include-cross-tools", false, "also keep the reverse host/target tools pair")
	rootCmd.AddCommand(fetchCmd)
}
