package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/prasenjit/go-mockenv/internal/models"
)

const (
	environmentsDir = "environments"
	routesDir       = "routes"
	responsesDir    = "responses"
	rulesDir        = "rules"
)

// FileStorage implements Storage interface with file-based persistence.
// Every entity is kept as one JSON document; reads are served from memory.
type FileStorage struct {
	mu       sync.Mutex
	basePath string
	memory   *MemoryStorage
}

// NewFileStorage creates a new file-based storage
func NewFileStorage(basePath string) (*FileStorage, error) {
	// Create directories if they don't exist
	dirs := []string{
		basePath,
		filepath.Join(basePath, environmentsDir),
		filepath.Join(basePath, routesDir),
		filepath.Join(basePath, responsesDir),
		filepath.Join(basePath, rulesDir),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fs := &FileStorage{
		basePath: basePath,
		memory:   NewMemoryStorage(),
	}

	// Load existing data
	if err := fs.loadAll(); err != nil {
		return nil, err
	}

	return fs, nil
}

// loadDir decodes every JSON document in dir and hands it to add
func loadDir[T any](dir string, add func(*T)) error {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}

		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			continue
		}

		add(&v)
	}

	return nil
}

// loadAll loads all data from disk
func (f *FileStorage) loadAll() error {
	m := f.memory
	m.mu.Lock()
	defer m.mu.Unlock()

	track := func(id int64) {
		if id > m.lastID {
			m.lastID = id
		}
	}

	if err := loadDir(filepath.Join(f.basePath, environmentsDir), func(env *models.Environment) {
		m.environments[env.ID] = env
		track(env.ID)
	}); err != nil {
		return err
	}

	if err := loadDir(filepath.Join(f.basePath, routesDir), func(route *models.Route) {
		route.Method = models.NormalizeMethod(route.Method)
		m.routes[route.ID] = route
		track(route.ID)
	}); err != nil {
		return err
	}

	if err := loadDir(filepath.Join(f.basePath, responsesDir), func(resp *models.Response) {
		m.responses[resp.ID] = resp
		track(resp.ID)
	}); err != nil {
		return err
	}

	if err := loadDir(filepath.Join(f.basePath, rulesDir), func(rule *models.Rule) {
		m.rules[rule.ID] = rule
		track(rule.ID)
	}); err != nil {
		return err
	}

	m.changed()
	return nil
}

func (f *FileStorage) path(kind string, id int64) string {
	return filepath.Join(f.basePath, kind, strconv.FormatInt(id, 10)+".json")
}

// save writes an entity to disk
func (f *FileStorage) save(kind string, id int64, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(f.path(kind, id), data, 0644)
}

// remove deletes an entity file from disk
func (f *FileStorage) remove(kind string, id int64) error {
	err := os.Remove(f.path(kind, id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// CreateEnvironment creates a new environment
func (f *FileStorage) CreateEnvironment(env *models.Environment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.CreateEnvironment(env); err != nil {
		return err
	}

	return f.save(environmentsDir, env.ID, env)
}

// GetEnvironment retrieves an environment by ID
func (f *FileStorage) GetEnvironment(id int64) (*models.Environment, error) {
	return f.memory.GetEnvironment(id)
}

// GetEnvironmentByName retrieves an environment by name
func (f *FileStorage) GetEnvironmentByName(name string) (*models.Environment, error) {
	return f.memory.GetEnvironmentByName(name)
}

// GetAllEnvironments retrieves all environments
func (f *FileStorage) GetAllEnvironments() ([]*models.Environment, error) {
	return f.memory.GetAllEnvironments()
}

// UpdateEnvironment updates an environment
func (f *FileStorage) UpdateEnvironment(env *models.Environment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.UpdateEnvironment(env); err != nil {
		return err
	}

	return f.save(environmentsDir, env.ID, env)
}

// DeleteEnvironment deletes an environment and everything below it
func (f *FileStorage) DeleteEnvironment(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	routes, _ := f.memory.GetRoutesByEnvironment(id)
	files := f.routeFiles(routes)

	if err := f.memory.DeleteEnvironment(id); err != nil {
		return err
	}

	f.removeAll(files)
	return f.remove(environmentsDir, id)
}

// CreateRoute creates a new route
func (f *FileStorage) CreateRoute(route *models.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.CreateRoute(route); err != nil {
		return err
	}

	return f.save(routesDir, route.ID, route)
}

// GetRoute retrieves a route by ID
func (f *FileStorage) GetRoute(id int64) (*models.Route, error) {
	return f.memory.GetRoute(id)
}

// GetRoutesByEnvironment retrieves all routes for an environment
func (f *FileStorage) GetRoutesByEnvironment(envID int64) ([]*models.Route, error) {
	return f.memory.GetRoutesByEnvironment(envID)
}

// GetAllRoutes retrieves all routes
func (f *FileStorage) GetAllRoutes() ([]*models.Route, error) {
	return f.memory.GetAllRoutes()
}

// UpdateRoute updates a route
func (f *FileStorage) UpdateRoute(route *models.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.UpdateRoute(route); err != nil {
		return err
	}

	return f.save(routesDir, route.ID, route)
}

// DeleteRoute deletes a route and its responses
func (f *FileStorage) DeleteRoute(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	route, err := f.memory.GetRoute(id)
	if err != nil {
		return err
	}
	files := f.routeFiles([]*models.Route{route})

	if err := f.memory.DeleteRoute(id); err != nil {
		return err
	}

	f.removeAll(files)
	return nil
}

// DeleteRoutesByEnvironment deletes all routes for an environment
func (f *FileStorage) DeleteRoutesByEnvironment(envID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Get routes to delete
	routes, _ := f.memory.GetRoutesByEnvironment(envID)
	files := f.routeFiles(routes)

	// Delete from memory
	if err := f.memory.DeleteRoutesByEnvironment(envID); err != nil {
		return err
	}

	// Delete files
	f.removeAll(files)
	return nil
}

// CreateResponse creates a new response
func (f *FileStorage) CreateResponse(resp *models.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.CreateResponse(resp); err != nil {
		return err
	}

	return f.save(responsesDir, resp.ID, resp)
}

// GetResponse retrieves a response by ID
func (f *FileStorage) GetResponse(id int64) (*models.Response, error) {
	return f.memory.GetResponse(id)
}

// GetResponsesByRoute retrieves all responses for a route
func (f *FileStorage) GetResponsesByRoute(routeID int64) ([]*models.Response, error) {
	return f.memory.GetResponsesByRoute(routeID)
}

// UpdateResponse updates a response
func (f *FileStorage) UpdateResponse(resp *models.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.UpdateResponse(resp); err != nil {
		return err
	}

	return f.save(responsesDir, resp.ID, resp)
}

// DeleteResponse deletes a response and its rules
func (f *FileStorage) DeleteResponse(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var files []entityFile
	f.appendResponseFiles(&files, id)

	if err := f.memory.DeleteResponse(id); err != nil {
		return err
	}

	f.removeAll(files)
	return nil
}

// CreateRule creates a new rule
func (f *FileStorage) CreateRule(rule *models.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.CreateRule(rule); err != nil {
		return err
	}

	return f.save(rulesDir, rule.ID, rule)
}

// GetRule retrieves a rule by ID
func (f *FileStorage) GetRule(id int64) (*models.Rule, error) {
	return f.memory.GetRule(id)
}

// GetRulesByResponse retrieves all rules for a response
func (f *FileStorage) GetRulesByResponse(responseID int64) ([]*models.Rule, error) {
	return f.memory.GetRulesByResponse(responseID)
}

// UpdateRule updates a rule
func (f *FileStorage) UpdateRule(rule *models.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.UpdateRule(rule); err != nil {
		return err
	}

	return f.save(rulesDir, rule.ID, rule)
}

// DeleteRule deletes a rule
func (f *FileStorage) DeleteRule(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.memory.DeleteRule(id); err != nil {
		return err
	}

	return f.remove(rulesDir, id)
}

// Snapshot returns a read-only view of the loaded configuration
func (f *FileStorage) Snapshot() *Snapshot {
	return f.memory.Snapshot()
}

// Close closes the storage
func (f *FileStorage) Close() error {
	return nil
}

type entityFile struct {
	kind string
	id   int64
}

// routeFiles lists the files owned by routes and their descendants
func (f *FileStorage) routeFiles(routes []*models.Route) []entityFile {
	var files []entityFile
	for _, route := range routes {
		files = append(files, entityFile{routesDir, route.ID})
		resps, _ := f.memory.GetResponsesByRoute(route.ID)
		for _, resp := range resps {
			f.appendResponseFiles(&files, resp.ID)
		}
	}
	return files
}

func (f *FileStorage) appendResponseFiles(files *[]entityFile, responseID int64) {
	*files = append(*files, entityFile{responsesDir, responseID})
	rules, _ := f.memory.GetRulesByResponse(responseID)
	for _, rule := range rules {
		*files = append(*files, entityFile{rulesDir, rule.ID})
	}
}

func (f *FileStorage) removeAll(files []entityFile) {
	for _, file := range files {
		_ = f.remove(file.kind, file.id)
	}
}
