package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prasenjit/go-mockenv/internal/catalog"
	"github.com/prasenjit/go-mockenv/internal/resolver"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve PATH",
	Short: "Show which mock response a request would receive",
	Long: `Resolves a request against the configured environments without starting the
server and prints the chosen response together with the explanation of how it
was chosen. Response delays are not applied.

Example:
  go-mockenv resolve -X POST -H 'X-Role: admin' -d '{"id":1}' '/users/1?verbose=true'`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var (
	resolveMethod  string
	resolveHeaders []string
	resolveBody    string
)

func init() {
	resolveCmd.Flags().StringVarP(&resolveMethod, "request", "X", "GET", "HTTP method")
	resolveCmd.Flags().StringArrayVarP(&resolveHeaders, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	resolveCmd.Flags().StringVarP(&resolveBody, "data", "d", "", "Request body")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	req, err := buildRequest(resolveMethod, args[0], resolveHeaders, resolveBody)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(cfg.Catalog.Files) > 0 {
		if err := catalog.NewWatcher(store, cfg.Catalog.Files, zap.NewNop()).LoadAll(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", err)
		}
	}

	engine := resolver.NewEngine(resolver.StorageSource(store), resolver.WithMaxDelay(cfg.Server.MaxDelay))
	result, err := engine.Explain(req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// buildRequest splits an optional query string off target and parses
// curl-style header flags
func buildRequest(method, target string, headers []string, body string) (resolver.Request, error) {
	req := resolver.Request{
		Method:  method,
		Path:    target,
		Headers: make(map[string][]string),
		Query:   make(map[string][]string),
		Body:    body,
	}

	if path, rawQuery, found := strings.Cut(target, "?"); found {
		values, err := url.ParseQuery(rawQuery)
		if err != nil {
			return req, fmt.Errorf("invalid query string: %w", err)
		}
		req.Path = path
		req.Query = values
	}

	for _, h := range headers {
		name, value, found := strings.Cut(h, ":")
		if !found || strings.TrimSpace(name) == "" {
			return req, fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		name = strings.TrimSpace(name)
		req.Headers[name] = append(req.Headers[name], strings.TrimSpace(value))
	}

	return req, nil
}
