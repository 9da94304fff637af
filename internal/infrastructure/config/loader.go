package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/doeshing/notegen/assets"
	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/pkg/filesystem"
	"github.com/doeshing/notegen/internal/ports"
)

// EnvPrefix prefixes every environment override, e.g. NOTEGEN_LOG_LEVEL.
const EnvPrefix = "NOTEGEN"

// FileLoader loads YAML configuration from ~/.notegen/config.yaml
// (overridable via NOTEGEN_CONFIG) with environment overrides.
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader. An empty path uses the default location.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Path returns the file Load reads.
func (l *FileLoader) Path() string {
	return l.resolvePath()
}

// Load implements ports.ConfigProvider. A missing file is created with
// defaults first.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := writeDefault(path); err != nil {
			return domain.Config{}, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		return domain.Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg domain.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return hydrateDefaults(cfg), nil
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvPrefix + "_CONFIG"); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".notegen", "config.yaml")
}

func ensureConfigDir(path string) error {
	return filesystem.EnsureDir(filepath.Dir(path), domain.DirectoryPermissions)
}

func writeDefault(path string) error {
	return os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions)
}

// DefaultConfig mirrors the embedded config template.
func DefaultConfig() domain.Config {
	providers := make(map[string]domain.ProviderEndpoint, len(domain.KnownProviders))
	for _, id := range domain.KnownProviders {
		providers[string(id)] = domain.ProviderEndpoint{}
	}
	return domain.Config{
		ConfigFormatVersion: "1",
		DataDir:             "~/.notegen",
		Log:                 domain.LogSettings{Level: "info", Format: "console"},
		Providers:           providers,
		RequestTimeout:      domain.DefaultRequestTimeout,
		TestTimeout:         domain.DefaultModelTestTimeout,
		TokenEstimation:     true,
		History:             domain.HistorySettings{FallbackFile: true},
	}
}

// ResolvedDefaults is DefaultConfig as Load would return it, with paths
// expanded.
func ResolvedDefaults() domain.Config {
	return hydrateDefaults(DefaultConfig())
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg domain.Config) {
	v.SetDefault("config_format_version", cfg.ConfigFormatVersion)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	for id, endpoint := range cfg.Providers {
		v.SetDefault("providers."+id+".base_url", endpoint.BaseURL)
	}
	v.SetDefault("request_timeout", cfg.RequestTimeout.String())
	v.SetDefault("test_timeout", cfg.TestTimeout.String())
	v.SetDefault("token_estimation", cfg.TokenEstimation)
	v.SetDefault("history.fallback_file", cfg.History.FallbackFile)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "~/.notegen"
	}
	cfg.DataDir = filesystem.ExpandPath(cfg.DataDir)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = domain.DefaultRequestTimeout
	}
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = domain.DefaultModelTestTimeout
	}
	return cfg
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
