package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/resolver"
	"github.com/prasenjit/go-mockenv/internal/stats"
	"github.com/prasenjit/go-mockenv/internal/storage"
	"github.com/prasenjit/go-mockenv/internal/tracing"
)

// Handler handles API requests
type Handler struct {
	store          storage.Storage
	statsCollector *stats.Collector
	tracingService *tracing.Service
	engine         *resolver.Engine
}

// NewHandler creates a new API handler
func NewHandler(store storage.Storage, statsCollector *stats.Collector, tracingService *tracing.Service, engine *resolver.Engine) *Handler {
	return &Handler{
		store:          store,
		statsCollector: statsCollector,
		tracingService: tracingService,
		engine:         engine,
	}
}

// paramID parses the :id path parameter, answering 400 when it is not a number
func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// storeError answers 404 for missing entities and 500 otherwise
func storeError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

type environmentSummary struct {
	*models.Environment
	RouteCount int `json:"route_count"`
}

// ListEnvironments returns all environments
func (h *Handler) ListEnvironments(c *gin.Context) {
	envs, err := h.store.GetAllEnvironments()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := make([]environmentSummary, len(envs))
	for i, env := range envs {
		routes, _ := h.store.GetRoutesByEnvironment(env.ID)
		result[i] = environmentSummary{Environment: env, RouteCount: len(routes)}
	}

	c.JSON(http.StatusOK, result)
}

// CreateEnvironment creates a new environment
func (h *Handler) CreateEnvironment(c *gin.Context) {
	var input models.EnvironmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	env := &models.Environment{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		BaseURL:     input.BaseURL,
		IsActive:    input.IsActive == nil || *input.IsActive,
	}
	if env.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	if _, err := h.store.GetEnvironmentByName(env.Name); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Environment name already in use"})
		return
	}

	if err := h.store.CreateEnvironment(env); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, env)
}

// GetEnvironment returns a single environment
func (h *Handler) GetEnvironment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	env, err := h.store.GetEnvironment(id)
	if err != nil {
		storeError(c, err, "Environment not found")
		return
	}

	c.JSON(http.StatusOK, env)
}

// UpdateEnvironment updates an environment
func (h *Handler) UpdateEnvironment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	env, err := h.store.GetEnvironment(id)
	if err != nil {
		storeError(c, err, "Environment not found")
		return
	}

	var update models.EnvironmentUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Apply updates
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
			return
		}
		if other, err := h.store.GetEnvironmentByName(name); err == nil && other.ID != env.ID {
			c.JSON(http.StatusConflict, gin.H{"error": "Environment name already in use"})
			return
		}
		env.Name = name
	}
	if update.Description != nil {
		env.Description = *update.Description
	}
	if update.BaseURL != nil {
		env.BaseURL = *update.BaseURL
	}
	if update.IsActive != nil {
		env.IsActive = *update.IsActive
	}

	if err := h.store.UpdateEnvironment(env); err != nil {
		storeError(c, err, "Environment not found")
		return
	}

	c.JSON(http.StatusOK, env)
}

// DeleteEnvironment deletes an environment with its routes, responses and rules
func (h *Handler) DeleteEnvironment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteEnvironment(id); err != nil {
		storeError(c, err, "Environment not found")
		return
	}
	if h.tracingService != nil {
		h.tracingService.ClearTracesByEnvironment(id)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Environment deleted"})
}

// ListRoutes returns the routes of an environment
func (h *Handler) ListRoutes(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if _, err := h.store.GetEnvironment(id); err != nil {
		storeError(c, err, "Environment not found")
		return
	}

	routes, err := h.store.GetRoutesByEnvironment(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, routes)
}

// ListAllRoutes returns every route across environments
func (h *Handler) ListAllRoutes(c *gin.Context) {
	routes, err := h.store.GetAllRoutes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, routes)
}

// CreateRoute creates a route in an environment
func (h *Handler) CreateRoute(c *gin.Context) {
	envID, ok := paramID(c)
	if !ok {
		return
	}

	var input models.RouteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route := &models.Route{
		EnvironmentID: envID,
		Path:          strings.TrimSpace(input.Path),
		Method:        models.NormalizeMethod(input.Method),
		Description:   input.Description,
		IsActive:      input.IsActive == nil || *input.IsActive,
	}
	if msg := validateRoute(route); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.store.CreateRoute(route); err != nil {
		storeError(c, err, "Environment not found")
		return
	}

	c.JSON(http.StatusCreated, route)
}

// GetRoute returns a single route
func (h *Handler) GetRoute(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	route, err := h.store.GetRoute(id)
	if err != nil {
		storeError(c, err, "Route not found")
		return
	}

	c.JSON(http.StatusOK, route)
}

// UpdateRoute updates a route
func (h *Handler) UpdateRoute(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	route, err := h.store.GetRoute(id)
	if err != nil {
		storeError(c, err, "Route not found")
		return
	}

	var update models.RouteUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if update.Path != nil {
		route.Path = strings.TrimSpace(*update.Path)
	}
	if update.Method != nil {
		route.Method = models.NormalizeMethod(*update.Method)
	}
	if update.Description != nil {
		route.Description = *update.Description
	}
	if update.IsActive != nil {
		route.IsActive = *update.IsActive
	}
	if msg := validateRoute(route); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.store.UpdateRoute(route); err != nil {
		storeError(c, err, "Route not found")
		return
	}

	c.JSON(http.StatusOK, route)
}

// DeleteRoute deletes a route with its responses and rules
func (h *Handler) DeleteRoute(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteRoute(id); err != nil {
		storeError(c, err, "Route not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Route deleted"})
}

func validateRoute(route *models.Route) string {
	if !strings.HasPrefix(route.Path, "/") {
		return "Path must start with '/'"
	}
	if route.Method == "" || strings.ContainsAny(route.Method, " \t/") {
		return "Invalid method"
	}
	return ""
}

// HealthCheck returns health status
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
