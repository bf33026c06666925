package storage

import (
	"fmt"
	"sort"

	"github.com/prasenjit/go-mockenv/internal/models"
)

// Snapshot is an immutable view of the configuration taken at one point in time.
// Everything it returns is shared between readers and must not be modified.
type Snapshot struct {
	version          uint64
	environments     map[int64]*models.Environment
	routesByMethod   map[string][]*models.Route // active routes of active environments, ID order
	responsesByRoute map[int64][]*models.Response
	rulesByResponse  map[int64][]*models.Rule
}

// buildSnapshot copies the current maps. Callers hold at least a read lock.
func (m *MemoryStorage) buildSnapshot() *Snapshot {
	s := &Snapshot{
		version:          m.version,
		environments:     make(map[int64]*models.Environment, len(m.environments)),
		routesByMethod:   make(map[string][]*models.Route),
		responsesByRoute: make(map[int64][]*models.Response),
		rulesByResponse:  make(map[int64][]*models.Rule),
	}

	for id, env := range m.environments {
		cp := *env
		s.environments[id] = &cp
	}

	for _, route := range m.routes {
		env, ok := s.environments[route.EnvironmentID]
		if !ok || !env.IsActive || !route.IsActive {
			continue
		}
		cp := *route
		cp.Method = models.NormalizeMethod(cp.Method)
		s.routesByMethod[cp.Method] = append(s.routesByMethod[cp.Method], &cp)
	}
	for method := range s.routesByMethod {
		routes := s.routesByMethod[method]
		sort.Slice(routes, func(i, j int) bool { return routes[i].ID < routes[j].ID })
	}

	for _, resp := range m.responses {
		cp := *resp
		s.responsesByRoute[cp.RouteID] = append(s.responsesByRoute[cp.RouteID], &cp)
	}
	for routeID := range s.responsesByRoute {
		resps := s.responsesByRoute[routeID]
		sort.Slice(resps, func(i, j int) bool { return resps[i].ID < resps[j].ID })
	}

	for _, rule := range m.rules {
		cp := *rule
		s.rulesByResponse[cp.ResponseID] = append(s.rulesByResponse[cp.ResponseID], &cp)
	}
	for respID := range s.rulesByResponse {
		sortRules(s.rulesByResponse[respID])
	}

	return s
}

// Version identifies the configuration revision the snapshot was taken from
func (s *Snapshot) Version() uint64 {
	return s.version
}

// FindRoute returns the active route whose stored path equals path exactly.
// The lowest route ID wins when several environments define the same route.
func (s *Snapshot) FindRoute(path, method string) (*models.Route, error) {
	for _, route := range s.routesByMethod[models.NormalizeMethod(method)] {
		if route.Path == path {
			return route, nil
		}
	}
	return nil, fmt.Errorf("route %s %s: %w", method, path, ErrNotFound)
}

// ActiveRoutes returns every active route of an active environment for method, in ID order
func (s *Snapshot) ActiveRoutes(method string) ([]*models.Route, error) {
	return s.routesByMethod[models.NormalizeMethod(method)], nil
}

// Responses returns the responses configured for a route, in ID order
func (s *Snapshot) Responses(routeID int64) ([]*models.Response, error) {
	return s.responsesByRoute[routeID], nil
}

// Rules returns the rules of a response, highest priority first
func (s *Snapshot) Rules(responseID int64) ([]*models.Rule, error) {
	return s.rulesByResponse[responseID], nil
}

// Environment returns an environment by ID
func (s *Snapshot) Environment(id int64) (*models.Environment, bool) {
	env, ok := s.environments[id]
	return env, ok
}

// RouteCount returns the number of routes that can currently be resolved
func (s *Snapshot) RouteCount() int {
	n := 0
	for _, routes := range s.routesByMethod {
		n += len(routes)
	}
	return n
}

// Routes returns all resolvable routes grouped by method
func (s *Snapshot) Routes() map[string][]*models.Route {
	return s.routesByMethod
}

// sortRules orders rules by priority (descending), then ID
func sortRules(rules []*models.Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}
