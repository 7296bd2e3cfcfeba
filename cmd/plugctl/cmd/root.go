// Package cmd implements the plugctl command line tool: lifecycle
// operations against a file-backed version store, driven by a TOML
// configuration file.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/plughost/plughost"
	"github.com/plughost/plughost/store"
)

// Config is the plugctl configuration, read from a TOML file.
type Config struct {
	// StorePath is the YAML version store file.
	StorePath string `toml:"store_path"`

	// ManifestDir optionally holds plugin manifests; Lua plugins declared
	// there are loaded and registered before lifecycle events dispatch.
	ManifestDir string `toml:"manifest_dir"`

	// LogLevel is one of debug, info, warn, error. Default info.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		StorePath: "plugins.yaml",
		LogLevel:  "info",
	}
}

// LoadConfig reads a TOML config file, falling back to defaults when path
// is empty or the file does not exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// NewRootCommand creates the root command for plugctl.
func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "plugctl",
		Short: "Plugctl - plugin lifecycle operations for plughost",
		Long: `Plugctl drives plugin install, update, and remove transitions against a
file-backed version store, dispatching the canonical lifecycle events to
any plugins registered from the configured manifest directory.`,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "plugctl.toml", "Path to the plugctl TOML config file")

	cmd.AddCommand(NewInstallCommand(&configPath))
	cmd.AddCommand(NewUpdateCommand(&configPath))
	cmd.AddCommand(NewRemoveCommand(&configPath))
	cmd.AddCommand(NewListCommand(&configPath))
	cmd.AddCommand(NewEventsCommand())

	return cmd
}

// newLogger builds an slog-backed plughost.Logger at the configured level.
func newLogger(cfg Config) plughost.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return &slogLogger{logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// kernel wires the registry, dispatcher, lifecycle manager, and file
// store for one command invocation.
type kernel struct {
	config   Config
	logger   plughost.Logger
	registry *plughost.Registry
	manager  *plughost.LifecycleManager
	store    *store.File
}

func newKernel(configPath string) (*kernel, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)
	registry := plughost.NewRegistry(logger)
	dispatcher := plughost.NewDispatcher(registry, logger)
	fileStore := store.NewFile(cfg.StorePath)

	manager, err := plughost.NewLifecycleManager(dispatcher, fileStore, logger)
	if err != nil {
		return nil, err
	}

	k := &kernel{
		config:   cfg,
		logger:   logger,
		registry: registry,
		manager:  manager,
		store:    fileStore,
	}

	if cfg.ManifestDir != "" {
		if err := k.registerManifestPlugins(); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func reportSummary(report *plughost.DispatchReport) string {
	if report == nil {
		return "no dispatch"
	}
	return fmt.Sprintf("%d handler(s) invoked, %d succeeded, %d failed", report.Invoked, report.Succeeded, len(report.Failures))
}
