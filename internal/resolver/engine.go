package resolver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/prasenjit/go-mockenv/internal/metrics"
	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/rule"
)

// Outcome names how a resolution ended
type Outcome = models.Outcome

const (
	OutcomeMatchedRules  = models.OutcomeMatchedRules
	OutcomeDefault       = models.OutcomeDefault
	OutcomeFirst         = models.OutcomeFirst
	OutcomeRouteNotFound = models.OutcomeRouteNotFound
	OutcomeNoResponses   = models.OutcomeNoResponses
)

// Bodies of the responses synthesized when configuration cannot answer
const (
	RouteNotFoundBody = `{"error":"Ruta no encontrada"}`
	NoResponsesBody   = `{"error":"Error interno del servidor"}`
)

// Request is the part of an inbound HTTP request resolution looks at
type Request struct {
	Method  string
	Path    string
	Headers map[string][]string
	Query   map[string][]string
	Body    string
}

// Result is the response to send back, plus how it was chosen
type Result struct {
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
	Explanation Explanation       `json:"explanation"`
}

// Explanation describes the decisions taken during a resolution
type Explanation struct {
	Outcome       Outcome           `json:"outcome"`
	EnvironmentID int64             `json:"environment_id,omitempty"`
	RouteID       int64             `json:"route_id,omitempty"`
	RoutePath     string            `json:"route_path,omitempty"`
	Templated     bool              `json:"templated"`
	PathParams    map[string]string `json:"path_params,omitempty"`
	ResponseID    int64             `json:"response_id,omitempty"`
	ResponseName  string            `json:"response_name,omitempty"`
	Candidates    int               `json:"candidates"`
	Delay         time.Duration     `json:"delay"`
	DelayClamped  bool              `json:"delay_clamped,omitempty"`
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used for resolution diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxDelay clamps configured response delays. Zero disables the clamp.
func WithMaxDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.maxDelay = d
	}
}

// WithEvaluator replaces the rule evaluator
func WithEvaluator(evaluator *rule.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = evaluator
	}
}

// WithTemplateCacheSize bounds the compiled route template cache
func WithTemplateCacheSize(size int) Option {
	return func(e *Engine) {
		e.routes = newRouteResolver(size)
	}
}

// Engine resolves requests to configured mock responses
type Engine struct {
	source    Source
	routes    *routeResolver
	evaluator *rule.Evaluator
	logger    *zap.Logger
	maxDelay  time.Duration
}

// NewEngine creates a resolution engine reading configuration from source
func NewEngine(source Source, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		routes: newRouteResolver(DefaultTemplateCacheSize),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		e.evaluator = rule.NewEvaluator(rule.WithObserver(metrics.RecordRuleEvaluation))
	}
	return e
}

// Resolve picks the response for req and waits out its configured delay.
// Missing routes and responses produce synthesized 404 and 500 results; an
// error is returned only when configuration cannot be read or ctx ends
// during the delay.
func (e *Engine) Resolve(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	result, err := e.resolve(req)
	if err != nil {
		e.logger.Error("Resolution failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err))
		return nil, err
	}

	if delay := result.Explanation.Delay; delay > 0 {
		metrics.RecordResponseDelay(delay)
		if err := wait(ctx, delay); err != nil {
			e.logger.Debug("Delay interrupted",
				zap.String("path", req.Path),
				zap.Duration("delay", delay),
				zap.Error(err))
			return nil, err
		}
	}

	metrics.RecordResolution(string(result.Explanation.Outcome), models.NormalizeMethod(req.Method), time.Since(start))
	return result, nil
}

// Explain resolves req without waiting for the response delay
func (e *Engine) Explain(req Request) (*Result, error) {
	return e.resolve(req)
}

func (e *Engine) resolve(req Request) (*Result, error) {
	repo, err := e.source.Repository()
	if err != nil {
		return nil, fmt.Errorf("configuration view: %w", err)
	}

	match, err := e.routes.resolve(repo, req.Path, req.Method)
	if err != nil {
		return nil, err
	}
	if match == nil {
		e.logger.Debug("No route matched",
			zap.String("method", req.Method),
			zap.String("path", req.Path))
		return errorResult(404, RouteNotFoundBody, Explanation{Outcome: OutcomeRouteNotFound}), nil
	}

	explanation := Explanation{
		EnvironmentID: match.Route.EnvironmentID,
		RouteID:       match.Route.ID,
		RoutePath:     match.Route.Path,
		Templated:     match.Templated,
		PathParams:    match.PathParams,
	}

	responses, err := repo.Responses(match.Route.ID)
	if err != nil {
		return nil, fmt.Errorf("responses for route %d: %w", match.Route.ID, err)
	}
	candidates := orderCandidates(responses)
	explanation.Candidates = len(candidates)

	if len(candidates) == 0 {
		e.logger.Warn("Route has no responses",
			zap.Int64("route_id", match.Route.ID),
			zap.String("path", match.Route.Path))
		explanation.Outcome = OutcomeNoResponses
		return errorResult(500, NoResponsesBody, explanation), nil
	}

	data := &rule.RequestData{
		Headers: req.Headers,
		Query:   req.Query,
		Body:    req.Body,
	}
	selected, err := selectResponse(repo, e.evaluator, candidates, data)
	if err != nil {
		return nil, err
	}

	resp := selected.response
	explanation.Outcome = selected.outcome
	explanation.ResponseID = resp.ID
	explanation.ResponseName = resp.Name
	explanation.Delay, explanation.DelayClamped = e.delayFor(resp)

	e.logger.Debug("Response selected",
		zap.Int64("route_id", match.Route.ID),
		zap.Int64("response_id", resp.ID),
		zap.String("outcome", string(selected.outcome)))

	return &Result{
		StatusCode:  resp.StatusCode,
		Headers:     resp.DecodeHeaders(),
		Body:        resp.Body,
		Explanation: explanation,
	}, nil
}

// delayFor returns the wait for resp and whether the configured clamp shortened it
func (e *Engine) delayFor(resp *models.Response) (time.Duration, bool) {
	if resp.DelayMs <= 0 {
		return 0, false
	}
	delay := time.Duration(resp.DelayMs) * time.Millisecond
	if e.maxDelay > 0 && delay > e.maxDelay {
		e.logger.Warn("Response delay clamped",
			zap.Int64("response_id", resp.ID),
			zap.Duration("configured", delay),
			zap.Duration("max_delay", e.maxDelay))
		return e.maxDelay, true
	}
	return delay, false
}

func errorResult(status int, body string, explanation Explanation) *Result {
	return &Result{
		StatusCode:  status,
		Headers:     map[string]string{"Content-Type": "application/json"},
		Body:        body,
		Explanation: explanation,
	}
}

// wait blocks for d or until ctx is done
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
