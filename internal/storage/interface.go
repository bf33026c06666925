package storage

import (
	"errors"

	"github.com/prasenjit/go-mockenv/internal/models"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Storage defines the interface for data persistence
type Storage interface {
	// Environment operations
	CreateEnvironment(env *models.Environment) error
	GetEnvironment(id int64) (*models.Environment, error)
	GetEnvironmentByName(name string) (*models.Environment, error)
	GetAllEnvironments() ([]*models.Environment, error)
	UpdateEnvironment(env *models.Environment) error
	DeleteEnvironment(id int64) error

	// Route operations
	CreateRoute(route *models.Route) error
	GetRoute(id int64) (*models.Route, error)
	GetRoutesByEnvironment(envID int64) ([]*models.Route, error)
	GetAllRoutes() ([]*models.Route, error)
	UpdateRoute(route *models.Route) error
	DeleteRoute(id int64) error
	DeleteRoutesByEnvironment(envID int64) error

	// Response operations
	CreateResponse(resp *models.Response) error
	GetResponse(id int64) (*models.Response, error)
	GetResponsesByRoute(routeID int64) ([]*models.Response, error)
	UpdateResponse(resp *models.Response) error
	DeleteResponse(id int64) error

	// Rule operations
	CreateRule(rule *models.Rule) error
	GetRule(id int64) (*models.Rule, error)
	GetRulesByResponse(responseID int64) ([]*models.Rule, error)
	UpdateRule(rule *models.Rule) error
	DeleteRule(id int64) error

	// Snapshot returns a point-in-time, read-only view for request resolution
	Snapshot() *Snapshot

	// Utility
	Close() error
}
