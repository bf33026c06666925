package catalog

import (
	"fmt"
	"time"

	"github.com/prasenjit/go-mockenv/internal/storage"
)

// Export builds the catalog document for one environment
func Export(store storage.Storage, envID int64) (*Document, error) {
	env, err := store.GetEnvironment(envID)
	if err != nil {
		return nil, fmt.Errorf("environment %d: %w", envID, err)
	}

	routes, err := store.GetRoutesByEnvironment(envID)
	if err != nil {
		return nil, fmt.Errorf("routes of environment %d: %w", envID, err)
	}

	doc := &Document{
		Environment: Environment{
			ID:          env.ID,
			Name:        env.Name,
			Description: env.Description,
			BaseURL:     env.BaseURL,
			IsActive:    boolPtr(env.IsActive),
		},
		Routes: make([]Route, 0, len(routes)),
		Metadata: &Metadata{
			ExportedAt:  time.Now().UTC(),
			Version:     FormatVersion,
			TotalRoutes: len(routes),
		},
	}

	for _, route := range routes {
		responses, err := store.GetResponsesByRoute(route.ID)
		if err != nil {
			return nil, fmt.Errorf("responses of route %d: %w", route.ID, err)
		}

		r := Route{
			ID:          route.ID,
			Path:        route.Path,
			Method:      route.Method,
			Description: route.Description,
			IsActive:    boolPtr(route.IsActive),
			Responses:   make([]Response, 0, len(responses)),
		}

		for _, resp := range responses {
			rules, err := store.GetRulesByResponse(resp.ID)
			if err != nil {
				return nil, fmt.Errorf("rules of response %d: %w", resp.ID, err)
			}

			out := Response{
				ID:         resp.ID,
				Name:       resp.Name,
				StatusCode: resp.StatusCode,
				Headers:    Text(resp.Headers),
				Body:       Text(resp.Body),
				DelayMs:    resp.DelayMs,
				IsDefault:  resp.IsDefault,
				Priority:   resp.Priority,
				Rules:      make([]Rule, 0, len(rules)),
			}
			for _, rl := range rules {
				out.Rules = append(out.Rules, Rule{
					ID:        rl.ID,
					Name:      rl.Name,
					RuleType:  rl.RuleType,
					FieldName: rl.FieldName,
					Operator:  rl.Operator,
					Value:     rl.Value,
					Priority:  rl.Priority,
				})
			}
			r.Responses = append(r.Responses, out)
		}

		doc.Routes = append(doc.Routes, r)
	}

	return doc, nil
}
