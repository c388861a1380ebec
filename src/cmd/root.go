package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
	"github.com/loonghao/msvc-kit/src/internal/kitdir"
	"github.com/loonghao/msvc-kit/src/internal/kitlog"
	"github.com/loonghao/msvc-kit/src/internal/telemetry"
)

var (
	cfgFile        string
	logLevel       string
	profileEnabled bool
	profileDir     string

	rootCtx context.Context
)

var rootCmd = &cobra.Command{
	Use:   "msvc-kit",
	Short: "msvc-kit fetches and stages an MSVC toolchain and Windows SDK",
	Long: `msvc-kit resolves Microsoft's Visual Studio channel and catalog
manifests, downloads the MSVC compiler toolchain and Windows SDK
components for a chosen host/target architecture pair, verifies every
payload's hash, and extracts them into a canonical on-disk layout that
cc, cmake, and msbuild can drive directly.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
		if err != nil {
			level = zerolog.InfoLevel
		}
		logger := kitlog.New(level, os.Stderr)
		rootCtx = kitlog.With(context.Background(), logger)

		if !profileEnabled {
			return nil
		}
		dir := strings.TrimSpace(profileDir)
		if dir == "" {
			dir = filepath.Join(kitdir.MustHome(), "profiles")
		}
		info, err := telemetry.Start(dir)
		if err != nil {
			return err
		}
		telemetry.Event(
			"command.start",
			"command", cmd.CommandPath(),
			"args_count", len(args),
			"config", viper.ConfigFileUsed(),
		)
		logger.Info().Str("log_path", info.LogPath).Str("cpu_path", info.CPUPath).Msg("profiling enabled")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if !profileEnabled {
			return
		}
		telemetry.Event("command.stop", "command", cmd.CommandPath())
		if _, err := telemetry.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush profiling artifacts: %v\n", err)
		}
	},
}

// Execute runs the CLI, translating a returned error's kiterrors.Kind
// into the matching process exit code (spec.md §7).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(kiterrors.ExitCode(kiterrors.KindOf(err)))
	}
}

func cmdContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is msvc-kit's global config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&profileEnabled, "profile", false, "collect CPU/heap profiles and structured timing logs")
	rootCmd.PersistentFlags().StringVar(&profileDir, "profile-dir", "", "directory for profiling artifacts (default: <msvc-kit-home>/profiles)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigFile(kitdir.ConfigFile())
	}

	viper.SetEnvPrefix("MSVCKIT")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}
