package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"github.com/prasenjit/go-mockenv/internal/catalog"
	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/openapi"
	"github.com/prasenjit/go-mockenv/internal/resolver"
)

// maxImportBytes bounds the size of an uploaded catalog or OpenAPI document
const maxImportBytes = 10 << 20

// GetGlobalStats returns global statistics
func (h *Handler) GetGlobalStats(c *gin.Context) {
	envs, _ := h.store.GetAllEnvironments()
	routes, _ := h.store.GetAllRoutes()

	active := 0
	for _, env := range envs {
		if env.IsActive {
			active++
		}
	}

	c.JSON(http.StatusOK, h.statsCollector.GetGlobalStats(active, len(routes)))
}

// GetEnvironmentStats returns statistics for an environment
func (h *Handler) GetEnvironmentStats(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	env, err := h.store.GetEnvironment(id)
	if err != nil {
		storeError(c, err, "Environment not found")
		return
	}

	c.JSON(http.StatusOK, h.statsCollector.GetEnvironmentStats(id, env.Name))
}

// GetRouteStats returns statistics for a route
func (h *Handler) GetRouteStats(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	stats := h.statsCollector.GetRouteStats(id)
	if stats == nil {
		c.JSON(http.StatusOK, gin.H{"message": "No statistics available"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ResetStats resets all statistics
func (h *Handler) ResetStats(c *gin.Context) {
	h.statsCollector.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Statistics reset"})
}

// ListTraces returns traces, newest first
func (h *Handler) ListTraces(c *gin.Context) {
	filter := &models.TraceFilter{
		Limit:   100, // Default limit
		Method:  strings.ToUpper(c.Query("method")),
		Outcome: c.Query("outcome"),
	}

	// Parse numeric and time query params

	var errs error
	queryInt64 := func(key string, dst *int64) {
		if v := c.Query(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			errs = multierr.Append(errs, wrapQuery(key, err))
			*dst = n
		}
	}
	queryInt := func(key string, dst *int) {
		if v := c.Query(key); v != "" {
			n, err := strconv.Atoi(v)
			errs = multierr.Append(errs, wrapQuery(key, err))
			*dst = n
		}
	}
	queryTime := func(key string, dst *time.Time) {
		if v := c.Query(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			errs = multierr.Append(errs, wrapQuery(key, err))
			*dst = t
		}
	}

	queryInt64("environmentId", &filter.EnvironmentID)
	queryInt64("routeId", &filter.RouteID)
	queryInt("statusCode", &filter.StatusCode)
	queryInt("limit", &filter.Limit)
	queryInt("offset", &filter.Offset)
	queryTime("start", &filter.StartTime)
	queryTime("end", &filter.EndTime)

	if errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.Error()})
		return
	}

	c.JSON(http.StatusOK, h.tracingService.GetTraces(filter))
}

func wrapQuery(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", key, err)
}

// GetTrace returns a single trace
func (h *Handler) GetTrace(c *gin.Context) {
	id := c.Param("id")

	trace := h.tracingService.GetTrace(id)
	if trace == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Trace not found"})
		return
	}

	c.JSON(http.StatusOK, trace)
}

// ClearTraces clears all traces, or only those of one environment
func (h *Handler) ClearTraces(c *gin.Context) {
	if v := c.Query("environmentId"); v != "" {
		envID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid environmentId"})
			return
		}
		h.tracingService.ClearTracesByEnvironment(envID)
	} else {
		h.tracingService.ClearTraces()
	}
	c.JSON(http.StatusOK, gin.H{"message": "Traces cleared"})
}

// GetTracingStats returns trace buffer statistics
func (h *Handler) GetTracingStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracingService.GetStats())
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Export writes an environment as a catalog document (json or yaml) or as
// an OpenAPI 3 document
func (h *Handler) Export(c *gin.Context) {
	envID, err := strconv.ParseInt(c.Query("environment_id"), 10, 64)
	if err != nil || envID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "environment_id is required"})
		return
	}

	doc, err := catalog.Export(h.store, envID)
	if err != nil {
		storeError(c, err, "Environment not found")
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "json"))

	var (
		data        []byte
		contentType = "application/json"
		ext         = "json"
	)
	switch format {
	case "json":
		data, err = catalog.Encode(doc, "json")
	case "yaml":
		data, err = catalog.Encode(doc, "yaml")
		contentType, ext = "application/yaml", "yaml"
	case "openapi":
		data, err = openapi.Encode(openapi.Export(doc), "json")
		ext = "openapi.json"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format: " + format})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	name := unsafeFileChars.ReplaceAllString(doc.Environment.Name, "_")
	filename := fmt.Sprintf("environment_%s_%s.%s", name, time.Now().Format("2006-01-02_15-04-05"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

// Import reads a catalog document (json or yaml) or an OpenAPI 3 document
// from the request body and writes it to storage
func (h *Handler) Import(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body: " + err.Error()})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty document"})
		return
	}

	var doc *catalog.Document
	switch format := strings.ToLower(c.DefaultQuery("format", "catalog")); format {
	case "catalog", "json", "yaml":
		doc, err = catalog.Parse(body)
	case "openapi":
		doc, err = openapi.Import(body)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format: " + format})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid document",
			"details": errorDetails(err),
		})
		return
	}

	result, err := catalog.Import(h.store, doc)
	if err != nil {
		status := http.StatusInternalServerError
		if result != nil {
			// The environment was written but some routes were skipped
			status = http.StatusMultiStatus
		}
		c.JSON(status, gin.H{
			"error":   "Import incomplete",
			"details": errorDetails(err),
			"result":  result,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Import successful",
		"result":  result,
	})
}

func errorDetails(err error) []string {
	errs := multierr.Errors(err)
	details := make([]string, len(errs))
	for i, e := range errs {
		details[i] = e.Error()
	}
	return details
}

type resolveInput struct {
	Method  string            `json:"method" binding:"required"`
	Path    string            `json:"path" binding:"required"`
	Headers map[string]string `json:"headers"`
	Query   map[string]string `json:"query"`
	Body    string            `json:"body"`
}

// Resolve explains which response a request would receive, without waiting
// for its delay and without recording statistics or traces
func (h *Handler) Resolve(c *gin.Context) {
	var input resolveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := resolver.Request{
		Method:  input.Method,
		Path:    input.Path,
		Headers: make(map[string][]string, len(input.Headers)),
		Query:   make(map[string][]string, len(input.Query)),
		Body:    input.Body,
	}

	// A query string in the path is split off, explicit query values win
	if path, rawQuery, found := strings.Cut(input.Path, "?"); found {
		req.Path = path
		values, err := url.ParseQuery(rawQuery)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query string: " + err.Error()})
			return
		}
		for k, v := range values {
			req.Query[k] = v
		}
	}
	for k, v := range input.Query {
		req.Query[k] = []string{v}
	}
	for k, v := range input.Headers {
		req.Headers[k] = []string{v}
	}

	result, err := h.engine.Explain(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
