package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize go-mockenv with default configuration and directory structure",
	Long: `Creates the default configuration file (config.yaml) and data directory.

This command will:
  - Create config.yaml with default settings and file storage
  - Create data/ directory for file storage

If config.yaml already exists, it will not be overwritten unless --force is used.`,
	RunE: runInit,
}

var (
	initForce bool
	initPath  string
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
	initCmd.Flags().StringVarP(&initPath, "path", "p", ".", "Path where to initialize (default: current directory)")
}

// defaultConfigFile is the document written by init. Durations are kept as
// strings so the file stays readable.
func defaultConfigFile() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"port":         8080,
			"host":         "0.0.0.0",
			"readTimeout":  "30s",
			"writeTimeout": "60s",
			"maxDelay":     "0s",
			"tls": map[string]interface{}{
				"enabled":  false,
				"certFile": "",
				"keyFile":  "",
			},
			"rateLimit": map[string]interface{}{
				"requestsPerSecond": 0,
				"burst":             0,
			},
			"trustedProxies": []string{},
		},
		"storage": map[string]interface{}{
			"type": "file",
			"path": "./data",
		},
		"catalog": map[string]interface{}{
			"files": []string{},
			"watch": false,
		},
		"tracing": map[string]interface{}{
			"maxTraces": 1000,
			"retention": "24h",
		},
		"logging": map[string]interface{}{
			"level":  "info",
			"format": "json",
		},
		"metrics": map[string]interface{}{
			"enabled": true,
			"path":    "/_api/metrics",
		},
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	// Resolve path to absolute
	absPath, err := filepath.Abs(initPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	configFile := filepath.Join(absPath, "config.yaml")
	dataDir := filepath.Join(absPath, "data")

	// Check if config already exists
	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config.yaml already exists. Use --force to overwrite")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dataDir, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created directory: %s\n", dataDir)

	// Marshal to YAML
	data, err := yaml.Marshal(defaultConfigFile())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	header := "# go-mockenv configuration\n\n"
	if err := os.WriteFile(configFile, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", configFile)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Initialization complete! You can now start the server with:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  cd %s\n", absPath)
	fmt.Fprintln(out, "  go-mockenv serve")
	fmt.Fprintln(out)

	return nil
}
