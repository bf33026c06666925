package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prasenjit/go-mockenv/internal/config"
	"github.com/prasenjit/go-mockenv/internal/storage"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "go-mockenv",
		Short: "go-mockenv - configurable HTTP mock server",
		Long: `go-mockenv serves mock HTTP responses from configured environments.
Each route holds a set of candidate responses; header, query and body rules
decide which one answers a request, with default and first-response fallbacks.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(resolveCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Get current working directory
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}

		// Search config in current directory
		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match, e.g. GOMOCKENV_SERVER_PORT
	viper.SetEnvPrefix("GOMOCKENV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults sets the default configuration values
func setDefaults() {
	d := config.Default()

	// Server defaults
	viper.SetDefault("server.port", d.Server.Port)
	viper.SetDefault("server.host", d.Server.Host)
	viper.SetDefault("server.tls.enabled", false)
	viper.SetDefault("server.tls.certFile", "")
	viper.SetDefault("server.tls.keyFile", "")
	viper.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	viper.SetDefault("server.writeTimeout", d.Server.WriteTimeout)
	viper.SetDefault("server.maxDelay", d.Server.MaxDelay)
	viper.SetDefault("server.rateLimit.requestsPerSecond", 0)
	viper.SetDefault("server.rateLimit.burst", 0)
	viper.SetDefault("server.trustedProxies", []string{})

	// Storage defaults
	viper.SetDefault("storage.type", d.Storage.Type)
	viper.SetDefault("storage.path", d.Storage.Path)

	// Catalog defaults
	viper.SetDefault("catalog.files", []string{})
	viper.SetDefault("catalog.watch", false)

	// Tracing defaults
	viper.SetDefault("tracing.maxTraces", d.Tracing.MaxTraces)
	viper.SetDefault("tracing.retention", d.Tracing.Retention)

	// Logging defaults
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", d.Metrics.Enabled)
	viper.SetDefault("metrics.path", d.Metrics.Path)
}

// loadConfig decodes the merged viper settings and validates them
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Resolve relative storage path to absolute
	if cfg.Storage.Path != "" && !filepath.IsAbs(cfg.Storage.Path) {
		if abs, err := filepath.Abs(cfg.Storage.Path); err == nil {
			cfg.Storage.Path = abs
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore initializes the configured storage backend
func openStore(cfg config.StorageConfig) (storage.Storage, error) {
	if cfg.Type == "file" {
		store, err := storage.NewFileStorage(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
		return store, nil
	}
	return storage.NewMemoryStorage(), nil
}

// openPersistentStore opens file storage for commands whose effect must
// outlive the process
func openPersistentStore(cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.Type != "file" {
		return nil, fmt.Errorf("storage.type is %q; this command needs file storage (run 'go-mockenv init')", cfg.Storage.Type)
	}
	return openStore(cfg.Storage)
}
