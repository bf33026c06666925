package resolver

import (
	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/storage"
)

// Repository is the read-only configuration view a single resolution works against.
// FindRoute reports a missing route with an error wrapping storage.ErrNotFound.
type Repository interface {
	FindRoute(path, method string) (*models.Route, error)
	ActiveRoutes(method string) ([]*models.Route, error)
	Responses(routeID int64) ([]*models.Response, error)
	Rules(responseID int64) ([]*models.Rule, error)
}

// Source hands out a consistent Repository for each resolution
type Source interface {
	Repository() (Repository, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func() (Repository, error)

// Repository implements Source
func (f SourceFunc) Repository() (Repository, error) {
	return f()
}

// StorageSource resolves against point-in-time snapshots of store
func StorageSource(store storage.Storage) Source {
	return SourceFunc(func() (Repository, error) {
		return store.Snapshot(), nil
	})
}

// StaticSource always returns repo
func StaticSource(repo Repository) Source {
	return SourceFunc(func() (Repository, error) {
		return repo, nil
	})
}
