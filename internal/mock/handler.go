package mock

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/resolver"
	"github.com/prasenjit/go-mockenv/internal/stats"
	"github.com/prasenjit/go-mockenv/internal/tracing"
)

// DefaultMaxBodyBytes caps the request body read for rule evaluation
const DefaultMaxBodyBytes = 10 << 20

// Handler serves mock traffic: every request not handled by the admin API
// is resolved to a configured response
type Handler struct {
	engine       *resolver.Engine
	stats        *stats.Collector
	traces       *tracing.Service
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewHandler creates a mock handler. statsCollector and tracingService may be nil.
func NewHandler(engine *resolver.Engine, statsCollector *stats.Collector, tracingService *tracing.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:       engine,
		stats:        statsCollector,
		traces:       tracingService,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// ServeHTTP handles incoming requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	setCORSHeaders(w.Header())
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	req := resolver.Request{
		Method:  models.NormalizeMethod(r.Method),
		Path:    r.URL.Path,
		Headers: r.Header,
		Query:   r.URL.Query(),
		Body:    h.readBody(r),
	}

	result, err := h.engine.Resolve(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The client is gone; there is nobody to answer
			h.logger.Debug("Request abandoned during delay",
				zap.String("method", req.Method),
				zap.String("path", req.Path))
			return
		}
		h.writeError(w, r, req, err, startTime)
		return
	}

	status := result.StatusCode
	if status < 100 || status > 999 {
		status = http.StatusOK
	}

	for name, value := range result.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(status)
	if _, err := io.WriteString(w, result.Body); err != nil {
		h.logger.Debug("Failed to write mock response", zap.String("path", req.Path), zap.Error(err))
	}

	h.record(r, req, result, status, time.Since(startTime), startTime)
}

// readBody returns the request body for methods that carry one
func (h *Handler) readBody(r *http.Request) string {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ""
	}
	if r.Body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes))
	if err != nil {
		h.logger.Warn("Failed to read request body", zap.String("path", r.URL.Path), zap.Error(err))
	}
	return string(data)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, req resolver.Request, err error, startTime time.Time) {
	h.logger.Error("Mock resolution failed",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Error(err))

	body, _ := json.Marshal(map[string]string{
		"error":   "Error interno del servidor",
		"message": err.Error(),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write(body)

	if h.stats != nil {
		h.stats.RecordRequest(stats.Request{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: http.StatusInternalServerError,
			Duration:   time.Since(startTime),
		})
		h.stats.RecordError(0, req.Path, req.Method, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) record(r *http.Request, req resolver.Request, result *resolver.Result, status int, duration time.Duration, startTime time.Time) {
	exp := result.Explanation

	if h.stats != nil {
		path := exp.RoutePath
		if path == "" {
			path = req.Path
		}
		h.stats.RecordRequest(stats.Request{
			EnvironmentID: exp.EnvironmentID,
			RouteID:       exp.RouteID,
			Method:        req.Method,
			Path:          path,
			Outcome:       string(exp.Outcome),
			StatusCode:    status,
			Duration:      duration,
		})

		switch exp.Outcome {
		case resolver.OutcomeRouteNotFound:
			h.stats.RecordError(0, req.Path, req.Method, status, "route not found")
		case resolver.OutcomeNoResponses:
			h.stats.RecordError(exp.RouteID, req.Path, req.Method, status, "route has no responses")
		}
	}

	if h.traces != nil {
		h.traces.RecordTrace(&models.Trace{
			EnvironmentID: exp.EnvironmentID,
			RouteID:       exp.RouteID,
			RoutePath:     exp.RoutePath,
			ResponseID:    exp.ResponseID,
			ResponseName:  exp.ResponseName,
			Outcome:       string(exp.Outcome),
			Timestamp:     startTime,
			Duration:      duration.Nanoseconds(),
			Request: models.TraceRequest{
				Method:  req.Method,
				URL:     r.URL.String(),
				Path:    req.Path,
				Query:   req.Query,
				Headers: req.Headers,
				Body:    req.Body,
			},
			Response: models.TraceResponse{
				StatusCode: status,
				Headers:    result.Headers,
				Body:       result.Body,
			},
		})
	}
}

// setCORSHeaders lets browsers call mocks from any origin
func setCORSHeaders(h http.Header) {
	if h.Get("Access-Control-Allow-Origin") == "" {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS, HEAD")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
}
