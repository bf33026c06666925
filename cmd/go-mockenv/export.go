package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prasenjit/go-mockenv/internal/catalog"
	"github.com/prasenjit/go-mockenv/internal/openapi"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an environment from file storage",
	Long: `Writes an environment as a catalog document (json or yaml) or as an
OpenAPI 3 document (openapi, openapi-yaml).`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportEnv    string
	exportFormat string
	exportOutput string
)

func init() {
	exportCmd.Flags().StringVarP(&exportEnv, "env", "e", "", "Environment name")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "Output format: json, yaml, openapi or openapi-yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	exportCmd.MarkFlagRequired("env")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openPersistentStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	env, err := store.GetEnvironmentByName(exportEnv)
	if err != nil {
		return err
	}

	doc, err := catalog.Export(store, env.ID)
	if err != nil {
		return err
	}

	var data []byte
	switch exportFormat {
	case "json", "yaml":
		data, err = catalog.Encode(doc, exportFormat)
	case "openapi":
		data, err = openapi.Encode(openapi.Export(doc), "json")
	case "openapi-yaml":
		data, err = openapi.Encode(openapi.Export(doc), "yaml")
	default:
		return fmt.Errorf("unsupported format %q", exportFormat)
	}
	if err != nil {
		return err
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(exportOutput, data, 0644)
}
