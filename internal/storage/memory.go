package storage

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prasenjit/go-mockenv/internal/models"
)

// MemoryStorage implements Storage interface with in-memory storage
type MemoryStorage struct {
	mu           sync.RWMutex
	environments map[int64]*models.Environment
	routes       map[int64]*models.Route
	responses    map[int64]*models.Response
	rules        map[int64]*models.Rule
	lastID       int64
	version      uint64
	snapshot     atomic.Pointer[Snapshot]
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		environments: make(map[int64]*models.Environment),
		routes:       make(map[int64]*models.Route),
		responses:    make(map[int64]*models.Response),
		rules:        make(map[int64]*models.Rule),
	}
}

// Snapshot returns a consistent read-only view, rebuilding it after writes
func (m *MemoryStorage) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s := m.snapshot.Load(); s != nil && s.version == m.version {
		return s
	}

	s := m.buildSnapshot()
	m.snapshot.Store(s)
	return s
}

// changed bumps the configuration version. Callers hold the write lock.
func (m *MemoryStorage) changed() {
	m.version++
}

// assignID gives an entity a store ID when it has none. Callers hold the write lock.
func (m *MemoryStorage) assignID(id *int64) {
	if *id == 0 {
		m.lastID++
		*id = m.lastID
		return
	}
	if *id > m.lastID {
		m.lastID = *id
	}
}

// CreateEnvironment creates a new environment
func (m *MemoryStorage) CreateEnvironment(env *models.Environment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.environments[env.ID]; exists && env.ID != 0 {
		return fmt.Errorf("environment with ID %d already exists", env.ID)
	}
	for _, existing := range m.environments {
		if existing.Name == env.Name {
			return fmt.Errorf("environment with name %q already exists", env.Name)
		}
	}

	m.assignID(&env.ID)
	now := time.Now()
	if env.CreatedAt.IsZero() {
		env.CreatedAt = now
	}
	env.UpdatedAt = now

	cp := *env
	m.environments[env.ID] = &cp
	m.changed()
	return nil
}

// GetEnvironment retrieves an environment by ID
func (m *MemoryStorage) GetEnvironment(id int64) (*models.Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	env, exists := m.environments[id]
	if !exists {
		return nil, fmt.Errorf("environment %d: %w", id, ErrNotFound)
	}

	cp := *env
	return &cp, nil
}

// GetEnvironmentByName retrieves an environment by its unique name
func (m *MemoryStorage) GetEnvironmentByName(name string) (*models.Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, env := range m.environments {
		if env.Name == name {
			cp := *env
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("environment %q: %w", name, ErrNotFound)
}

// GetAllEnvironments retrieves all environments
func (m *MemoryStorage) GetAllEnvironments() ([]*models.Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	envs := make([]*models.Environment, 0, len(m.environments))
	for _, env := range m.environments {
		cp := *env
		envs = append(envs, &cp)
	}

	// Sort by name
	sort.Slice(envs, func(i, j int) bool {
		return envs[i].Name < envs[j].Name
	})

	return envs, nil
}

// UpdateEnvironment updates an environment
func (m *MemoryStorage) UpdateEnvironment(env *models.Environment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.environments[env.ID]
	if !exists {
		return fmt.Errorf("environment %d: %w", env.ID, ErrNotFound)
	}

	env.CreatedAt = existing.CreatedAt
	env.UpdatedAt = time.Now()

	cp := *env
	m.environments[env.ID] = &cp
	m.changed()
	return nil
}

// DeleteEnvironment deletes an environment together with its routes, responses and rules
func (m *MemoryStorage) DeleteEnvironment(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.environments[id]; !exists {
		return fmt.Errorf("environment %d: %w", id, ErrNotFound)
	}

	for routeID, route := range m.routes {
		if route.EnvironmentID == id {
			m.deleteRouteLocked(routeID)
		}
	}
	delete(m.environments, id)
	m.changed()
	return nil
}

// CreateRoute creates a new route
func (m *MemoryStorage) CreateRoute(route *models.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.routes[route.ID]; exists && route.ID != 0 {
		return fmt.Errorf("route with ID %d already exists", route.ID)
	}
	if _, exists := m.environments[route.EnvironmentID]; !exists {
		return fmt.Errorf("environment %d: %w", route.EnvironmentID, ErrNotFound)
	}

	m.assignID(&route.ID)
	route.Method = models.NormalizeMethod(route.Method)

	cp := *route
	m.routes[route.ID] = &cp
	m.changed()
	return nil
}

// GetRoute retrieves a route by ID
func (m *MemoryStorage) GetRoute(id int64) (*models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	route, exists := m.routes[id]
	if !exists {
		return nil, fmt.Errorf("route %d: %w", id, ErrNotFound)
	}

	cp := *route
	return &cp, nil
}

// GetRoutesByEnvironment retrieves all routes for an environment
func (m *MemoryStorage) GetRoutesByEnvironment(envID int64) ([]*models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routes := make([]*models.Route, 0)
	for _, route := range m.routes {
		if route.EnvironmentID == envID {
			cp := *route
			routes = append(routes, &cp)
		}
	}

	sortRoutes(routes)
	return routes, nil
}

// GetAllRoutes retrieves all routes
func (m *MemoryStorage) GetAllRoutes() ([]*models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routes := make([]*models.Route, 0, len(m.routes))
	for _, route := range m.routes {
		cp := *route
		routes = append(routes, &cp)
	}

	// Sort by environment, then path and method
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].EnvironmentID != routes[j].EnvironmentID {
			return routes[i].EnvironmentID < routes[j].EnvironmentID
		}
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes, nil
}

// UpdateRoute updates a route
func (m *MemoryStorage) UpdateRoute(route *models.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.routes[route.ID]; !exists {
		return fmt.Errorf("route %d: %w", route.ID, ErrNotFound)
	}

	route.Method = models.NormalizeMethod(route.Method)
	cp := *route
	m.routes[route.ID] = &cp
	m.changed()
	return nil
}

// DeleteRoute deletes a route together with its responses and rules
func (m *MemoryStorage) DeleteRoute(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.routes[id]; !exists {
		return fmt.Errorf("route %d: %w", id, ErrNotFound)
	}

	m.deleteRouteLocked(id)
	m.changed()
	return nil
}

// DeleteRoutesByEnvironment deletes all routes for an environment
func (m *MemoryStorage) DeleteRoutesByEnvironment(envID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, route := range m.routes {
		if route.EnvironmentID == envID {
			m.deleteRouteLocked(id)
		}
	}

	m.changed()
	return nil
}

func (m *MemoryStorage) deleteRouteLocked(id int64) {
	for respID, resp := range m.responses {
		if resp.RouteID == id {
			m.deleteResponseLocked(respID)
		}
	}
	delete(m.routes, id)
}

// CreateResponse creates a new response
func (m *MemoryStorage) CreateResponse(resp *models.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.responses[resp.ID]; exists && resp.ID != 0 {
		return fmt.Errorf("response with ID %d already exists", resp.ID)
	}
	if _, exists := m.routes[resp.RouteID]; !exists {
		return fmt.Errorf("route %d: %w", resp.RouteID, ErrNotFound)
	}

	m.assignID(&resp.ID)

	cp := *resp
	m.responses[resp.ID] = &cp
	m.changed()
	return nil
}

// GetResponse retrieves a response by ID
func (m *MemoryStorage) GetResponse(id int64) (*models.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resp, exists := m.responses[id]
	if !exists {
		return nil, fmt.Errorf("response %d: %w", id, ErrNotFound)
	}

	cp := *resp
	return &cp, nil
}

// GetResponsesByRoute retrieves all responses for a route, defaults first, then priority and name
func (m *MemoryStorage) GetResponsesByRoute(routeID int64) ([]*models.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resps := make([]*models.Response, 0)
	for _, resp := range m.responses {
		if resp.RouteID == routeID {
			cp := *resp
			resps = append(resps, &cp)
		}
	}

	sort.Slice(resps, func(i, j int) bool {
		if resps[i].IsDefault != resps[j].IsDefault {
			return resps[i].IsDefault
		}
		if resps[i].Priority != resps[j].Priority {
			return resps[i].Priority > resps[j].Priority
		}
		if resps[i].Name != resps[j].Name {
			return resps[i].Name < resps[j].Name
		}
		return resps[i].ID < resps[j].ID
	})

	return resps, nil
}

// UpdateResponse updates a response
func (m *MemoryStorage) UpdateResponse(resp *models.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.responses[resp.ID]; !exists {
		return fmt.Errorf("response %d: %w", resp.ID, ErrNotFound)
	}

	cp := *resp
	m.responses[resp.ID] = &cp
	m.changed()
	return nil
}

// DeleteResponse deletes a response and its rules
func (m *MemoryStorage) DeleteResponse(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.responses[id]; !exists {
		return fmt.Errorf("response %d: %w", id, ErrNotFound)
	}

	m.deleteResponseLocked(id)
	m.changed()
	return nil
}

func (m *MemoryStorage) deleteResponseLocked(id int64) {
	for ruleID, rule := range m.rules {
		if rule.ResponseID == id {
			delete(m.rules, ruleID)
		}
	}
	delete(m.responses, id)
}

// CreateRule creates a new rule
func (m *MemoryStorage) CreateRule(rule *models.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[rule.ID]; exists && rule.ID != 0 {
		return fmt.Errorf("rule with ID %d already exists", rule.ID)
	}
	if _, exists := m.responses[rule.ResponseID]; !exists {
		return fmt.Errorf("response %d: %w", rule.ResponseID, ErrNotFound)
	}

	m.assignID(&rule.ID)

	cp := *rule
	m.rules[rule.ID] = &cp
	m.changed()
	return nil
}

// GetRule retrieves a rule by ID
func (m *MemoryStorage) GetRule(id int64) (*models.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule, exists := m.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule %d: %w", id, ErrNotFound)
	}

	cp := *rule
	return &cp, nil
}

// GetRulesByResponse retrieves all rules for a response, highest priority first
func (m *MemoryStorage) GetRulesByResponse(responseID int64) ([]*models.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := make([]*models.Rule, 0)
	for _, rule := range m.rules {
		if rule.ResponseID == responseID {
			cp := *rule
			rules = append(rules, &cp)
		}
	}

	sortRules(rules)
	return rules, nil
}

// UpdateRule updates a rule
func (m *MemoryStorage) UpdateRule(rule *models.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[rule.ID]; !exists {
		return fmt.Errorf("rule %d: %w", rule.ID, ErrNotFound)
	}

	cp := *rule
	m.rules[rule.ID] = &cp
	m.changed()
	return nil
}

// DeleteRule deletes a rule
func (m *MemoryStorage) DeleteRule(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[id]; !exists {
		return fmt.Errorf("rule %d: %w", id, ErrNotFound)
	}

	delete(m.rules, id)
	m.changed()
	return nil
}

// Close closes the storage (no-op for memory storage)
func (m *MemoryStorage) Close() error {
	return nil
}

// sortRoutes sorts routes by path, then method
func sortRoutes(routes []*models.Route) {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
}
