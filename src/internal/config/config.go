// Package config loads and merges msvc-kit's settings, grounded on the
// teacher's src/internal/project package (BurntSushi/toml-encoded file
// alongside a NewDefault/Load/Save trio), generalized to the three-tier
// precedence spec.md §6 calls for: explicit API option overrides an
// environment variable, which overrides the config file, which overrides
// the built-in default.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/loonghao/msvc-kit/src/internal/archkit"
	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
)

// FileName is the config file name expected in the tool's home directory.
const FileName = "config.toml"

// Config is msvc-kit's on-disk settings document.
type Config struct {
	Channel   ChannelConfig   `toml:"channel"`
	Cache     CacheConfig     `toml:"cache"`
	Install   InstallConfig   `toml:"install"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ChannelConfig struct {
	URL string `toml:"url"`
}

type CacheConfig struct {
	ManifestDir string `toml:"manifest_dir"`
}

type InstallConfig struct {
	Root              string `toml:"root"`
	HostArch          string `toml:"host_arch"`
	TargetArch        string `toml:"target_arch"`
	IncludeSpectre    bool   `toml:"include_spectre"`
	IncludeATL        bool   `toml:"include_atl"`
	IncludeMFC        bool   `toml:"include_mfc"`
	IncludeCrossTools bool   `toml:"include_cross_tools"`
	Concurrency       int    `toml:"concurrency"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

const DefaultChannelURL = "https://aka.ms/vs/17/release/channel"

// NewDefault returns msvc-kit's built-in defaults, the lowest-priority
// tier of the merge order.
func NewDefault() Config {
	return Config{
		Channel: ChannelConfig{URL: DefaultChannelURL},
		Install: InstallConfig{
			HostArch:    string(archkit.Native()),
			TargetArch:  string(archkit.Native()),
			Concurrency: 2,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (if present) over NewDefault's baseline, then applies
// environment overrides. A missing file is not an error: defaults plus
// environment still produce a usable Config.
func Load(path string) (Config, error) {
	cfg := NewDefault()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, kiterrors.Wrap(kiterrors.Config, "parse config file "+path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, kiterrors.Wrap(kiterrors.Io, "stat config file "+path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kiterrors.Wrap(kiterrors.Io, "create config directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return kiterrors.Wrap(kiterrors.Io, "create config file", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return kiterrors.Wrap(kiterrors.Config, "encode config file", err)
	}
	return nil
}

// envPrefix namespaces every msvc-kit environment override.
const envPrefix = "MSVCKIT_"

// applyEnv overlays MSVCKIT_* environment variables onto cfg, the middle
// tier of the precedence order (spec.md §6: env > file, API option > env).
func applyEnv(cfg *Config) {
	if v := os.Getenv(envPrefix + "CHANNEL_URL"); v != "" {
		cfg.Channel.URL = v
	}
	if v := os.Getenv(envPrefix + "CACHE_DIR"); v != "" {
		cfg.Cache.ManifestDir = v
	}
	if v := os.Getenv(envPrefix + "INSTALL_ROOT"); v != "" {
		cfg.Install.Root = v
	}
	if v := os.Getenv(envPrefix + "HOST_ARCH"); v != "" {
		cfg.Install.HostArch = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "TARGET_ARCH"); v != "" {
		cfg.Install.TargetArch = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Install.Concurrency = n
		}
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	for env, flag := range map[string]*bool{
		envPrefix + "INCLUDE_SPECTRE":     &cfg.Install.IncludeSpectre,
		envPrefix + "INCLUDE_ATL":         &cfg.Install.IncludeATL,
		envPrefix + "INCLUDE_MFC":         &cfg.Install.IncludeMFC,
		envPrefix + "INCLUDE_CROSS_TOOLS": &cfg.Install.IncludeCrossTools,
	} {
		if v := os.Getenv(env); v != "" {
			*flag = v == "1" || strings.EqualFold(v, "true")
		}
	}
}
