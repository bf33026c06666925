package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prasenjit/go-mockenv/internal/catalog"
	"github.com/prasenjit/go-mockenv/internal/openapi"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a catalog or OpenAPI document into file storage",
	Long: `Imports an environment from a catalog document (JSON or YAML) or from an
OpenAPI 3 document. An environment with the same name is updated and its
routes are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var importFormat string

func init() {
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "catalog", "Document format: catalog or openapi")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var doc *catalog.Document
	switch importFormat {
	case "catalog":
		doc, err = catalog.Parse(data)
	case "openapi":
		doc, err = openapi.Import(data)
	default:
		return fmt.Errorf("unsupported format %q", importFormat)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	store, err := openPersistentStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := catalog.Import(store, doc)
	if result != nil {
		verb := "Updated"
		if result.Created {
			verb = "Created"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s environment %q (id %d): %d routes, %d responses, %d rules\n",
			verb, doc.Environment.Name, result.EnvironmentID,
			result.Imported.Routes, result.Imported.Responses, result.Imported.Rules)
	}
	return err
}
