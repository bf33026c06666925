package catalog

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/storage"
)

// Counts tallies the entities written by an import
type Counts struct {
	Routes    int `json:"routes"`
	Responses int `json:"responses"`
	Rules     int `json:"rules"`
}

// ImportResult describes what an import did
type ImportResult struct {
	EnvironmentID int64  `json:"environment_id"`
	Created       bool   `json:"created"`
	Imported      Counts `json:"imported"`
}

// Import writes doc into store. An environment with the same name is updated
// and its routes replaced; otherwise a new one is created. Routes that fail
// to import are skipped and reported together in the returned error.
func Import(store storage.Storage, doc *Document) (*ImportResult, error) {
	if doc == nil || doc.Environment.Name == "" {
		return nil, errors.New("catalog document has no environment name")
	}

	envID, created, err := upsertEnvironment(store, &doc.Environment)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{EnvironmentID: envID, Created: created}

	if !created {
		if err := store.DeleteRoutesByEnvironment(envID); err != nil {
			return result, fmt.Errorf("replace routes of environment %d: %w", envID, err)
		}
	}

	var errs error
	for i := range doc.Routes {
		if err := importRoute(store, envID, &doc.Routes[i], &result.Imported); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("route %d (%s %s): %w", i, doc.Routes[i].Method, doc.Routes[i].Path, err))
		}
	}

	return result, errs
}

func upsertEnvironment(store storage.Storage, in *Environment) (int64, bool, error) {
	existing, err := store.GetEnvironmentByName(in.Name)
	switch {
	case err == nil:
		existing.Description = in.Description
		existing.BaseURL = in.BaseURL
		existing.IsActive = isActive(in.IsActive)
		if err := store.UpdateEnvironment(existing); err != nil {
			return 0, false, fmt.Errorf("update environment %q: %w", in.Name, err)
		}
		return existing.ID, false, nil

	case errors.Is(err, storage.ErrNotFound):
		env := &models.Environment{
			Name:        in.Name,
			Description: in.Description,
			BaseURL:     in.BaseURL,
			IsActive:    isActive(in.IsActive),
		}
		if err := store.CreateEnvironment(env); err != nil {
			return 0, false, fmt.Errorf("create environment %q: %w", in.Name, err)
		}
		return env.ID, true, nil

	default:
		return 0, false, fmt.Errorf("look up environment %q: %w", in.Name, err)
	}
}

func importRoute(store storage.Storage, envID int64, in *Route, counts *Counts) error {
	route := &models.Route{
		EnvironmentID: envID,
		Path:          in.Path,
		Method:        in.Method,
		Description:   in.Description,
		IsActive:      isActive(in.IsActive),
	}
	if err := store.CreateRoute(route); err != nil {
		return err
	}
	counts.Routes++

	for i := range in.Responses {
		r := &in.Responses[i]
		resp := &models.Response{
			RouteID:    route.ID,
			Name:       r.Name,
			StatusCode: r.StatusCode,
			Headers:    string(r.Headers),
			Body:       string(r.Body),
			DelayMs:    r.DelayMs,
			IsDefault:  r.IsDefault,
			Priority:   r.Priority,
		}
		if err := store.CreateResponse(resp); err != nil {
			return fmt.Errorf("response %q: %w", r.Name, err)
		}
		counts.Responses++

		for j := range r.Rules {
			rl := &r.Rules[j]
			if err := store.CreateRule(&models.Rule{
				ResponseID: resp.ID,
				Name:       rl.Name,
				RuleType:   rl.RuleType,
				FieldName:  rl.FieldName,
				Operator:   rl.Operator,
				Value:      rl.Value,
				Priority:   rl.Priority,
			}); err != nil {
				return fmt.Errorf("response %q rule %d: %w", r.Name, j, err)
			}
			counts.Rules++
		}
	}
	return nil
}
