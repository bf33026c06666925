package models

import (
	"time"
)

// Environment groups mock routes under a shared base URL
type Environment struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	BaseURL     string    `json:"base_url" yaml:"base_url"`
	IsActive    bool      `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// EnvironmentInput represents input for creating an environment
type EnvironmentInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	BaseURL     string `json:"base_url"`
	IsActive    *bool  `json:"is_active"`
}

// EnvironmentUpdate represents input for updating an environment
type EnvironmentUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	BaseURL     *string `json:"base_url,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}
