package models

import (
	"strings"
)

// Route is a path pattern and HTTP method inside an environment
type Route struct {
	ID            int64  `json:"id" yaml:"id"`
	EnvironmentID int64  `json:"environment_id" yaml:"environment_id"`
	Path          string `json:"path" yaml:"path"`     // May contain {param} segments
	Method        string `json:"method" yaml:"method"` // Stored uppercase
	Description   string `json:"description" yaml:"description"`
	IsActive      bool   `json:"is_active" yaml:"is_active"`
}

// RouteInput represents input for creating a route
type RouteInput struct {
	Path        string `json:"path" binding:"required"`
	Method      string `json:"method" binding:"required"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// RouteUpdate represents input for updating a route
type RouteUpdate struct {
	Path        *string `json:"path,omitempty"`
	Method      *string `json:"method,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// IsTemplated reports whether the path contains placeholder segments
func (r *Route) IsTemplated() bool {
	return strings.Contains(r.Path, "{") && strings.Contains(r.Path, "}")
}

// NormalizeMethod uppercases and trims an HTTP method
func NormalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}
