package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	configapp "github.com/doeshing/notegen/internal/application/config"
	"github.com/doeshing/notegen/internal/application/credentials"
	"github.com/doeshing/notegen/internal/application/doctor"
	"github.com/doeshing/notegen/internal/application/generation"
	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/infrastructure/ai"
	"github.com/doeshing/notegen/internal/infrastructure/config"
	"github.com/doeshing/notegen/internal/infrastructure/history"
	"github.com/doeshing/notegen/internal/infrastructure/security"
	"github.com/doeshing/notegen/internal/infrastructure/settings"
	"github.com/doeshing/notegen/internal/infrastructure/tokens"
	"github.com/doeshing/notegen/internal/pkg/filesystem"
	"github.com/doeshing/notegen/internal/pkg/logger"
	"github.com/doeshing/notegen/internal/ports"
)

// File names under the data directory.
const (
	SettingsFileName  = "settings.db"
	HistoryFileName   = "history.db"
	MasterKeyFileName = "master.key"
)

// Options configures BuildContainer.
type Options struct {
	// ConfigPath overrides the config file location.
	ConfigPath string
	Verbose    bool
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config            domain.Config
	ConfigLoader      *config.FileLoader
	Logger            ports.Logger
	Registry          *ai.Registry
	SettingsStore     *settings.SQLiteStore
	HistoryStore      ports.HistoryStore
	Credentials       *credentials.Manager
	GenerationService *generation.Service
	DoctorService     *doctor.Service
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := configapp.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", cfgLoader.Path(), err)
	}
	if err := filesystem.EnsureDir(cfg.DataDir, domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	log := logger.New(logger.Options{Level: level, Format: cfg.Log.Format})

	registry := ai.NewRegistry(ai.DefaultSpecs(cfg, newHTTPClient(cfg)), log)

	settingsStore, err := settings.NewSQLiteStore(filepath.Join(cfg.DataDir, SettingsFileName))
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}

	historyStore, err := history.Open(filepath.Join(cfg.DataDir, HistoryFileName), cfg.History.FallbackFile, log)
	if err != nil {
		_ = settingsStore.Close()
		return nil, fmt.Errorf("open history store: %w", err)
	}

	cipher, cipherErr := buildCipher(filepath.Join(cfg.DataDir, MasterKeyFileName))
	if cipherErr != nil {
		log.Error("credential cipher unavailable", cipherErr, nil)
	}
	creds := credentials.NewManager(settingsStore, cipher, registry, log)

	genService, err := generation.NewService(generation.Deps{
		Config:      cfg,
		Registry:    registry,
		Credentials: creds,
		Settings:    settingsStore,
		History:     historyStore,
		Tokens:      tokens.NewCounter(),
		Logger:      log,
	})
	if err != nil {
		_ = closeStores(historyStore, settingsStore)
		return nil, err
	}
	if err := genService.Load(ctx); err != nil {
		log.Warn("failed to load ai settings, using defaults", map[string]interface{}{"error": err.Error()})
	}

	doctorService := &doctor.Service{
		ConfigProvider: cfgLoader,
		Registry:       registry,
		Credentials:    creds,
		Settings:       settingsStore,
		History:        historyStore,
		Active:         genService,
		CipherErr:      cipherErr,
	}

	return &Container{
		Config:            cfg,
		ConfigLoader:      cfgLoader,
		Logger:            log,
		Registry:          registry,
		SettingsStore:     settingsStore,
		HistoryStore:      historyStore,
		Credentials:       creds,
		GenerationService: genService,
		DoctorService:     doctorService,
	}, nil
}

// Close releases the databases.
func (c *Container) Close() error {
	var settingsStore interface{}
	if c.SettingsStore != nil {
		settingsStore = c.SettingsStore
	}
	return closeStores(c.HistoryStore, settingsStore)
}

// closeStores closes every store that supports it; nil entries are skipped.
func closeStores(stores ...interface{}) error {
	var errs []error
	for _, store := range stores {
		if closer, ok := store.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

func newHTTPClient(cfg domain.Config) *http.Client {
	return &http.Client{Timeout: cfg.GetRequestTimeout()}
}

func buildCipher(keyPath string) (ports.Cipher, error) {
	key, err := security.LoadOrCreateKey(keyPath)
	if err != nil {
		return security.UnavailableCipher{Cause: err}, err
	}
	cipher, err := security.NewSealedCipher(key)
	if err != nil {
		return security.UnavailableCipher{Cause: err}, err
	}
	return cipher, nil
}
