package rule

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/prasenjit/go-mockenv/internal/models"
)

// Evaluator evaluates response rules against request data
type Evaluator struct {
	patterns *patternCache
	observe  func(ruleType string, matched bool)
}

// Option configures an Evaluator
type Option func(*evaluatorConfig)

type evaluatorConfig struct {
	cacheSize int
	observe   func(ruleType string, matched bool)
}

// WithCacheSize bounds the compiled pattern cache
func WithCacheSize(size int) Option {
	return func(c *evaluatorConfig) {
		c.cacheSize = size
	}
}

// WithObserver registers a callback invoked after every rule evaluation
func WithObserver(fn func(ruleType string, matched bool)) Option {
	return func(c *evaluatorConfig) {
		c.observe = fn
	}
}

// NewEvaluator creates a new rule evaluator
func NewEvaluator(opts ...Option) *Evaluator {
	cfg := evaluatorConfig{cacheSize: DefaultPatternCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Evaluator{
		patterns: newPatternCache(cfg.cacheSize),
		observe:  cfg.observe,
	}
}

// RequestData contains all request data for rule evaluation
type RequestData struct {
	Headers map[string][]string
	Query   map[string][]string
	Body    string
}

// EvaluateAll evaluates all rules against request data.
// All rules must match (AND logic); an empty rule set never matches.
func (e *Evaluator) EvaluateAll(rules []*models.Rule, data *RequestData) bool {
	if len(rules) == 0 {
		return false
	}

	for _, r := range rules {
		if !e.Evaluate(r, data) {
			return false
		}
	}

	return true
}

// Evaluate evaluates a single rule against request data
func (e *Evaluator) Evaluate(r *models.Rule, data *RequestData) bool {
	if r == nil {
		return false
	}
	if data == nil {
		data = &RequestData{}
	}

	matched := e.evaluate(r, data)
	if e.observe != nil {
		e.observe(r.RuleType, matched)
	}
	return matched
}

func (e *Evaluator) evaluate(r *models.Rule, data *RequestData) bool {
	switch r.RuleType {
	case models.RuleTypeHeader:
		value, ok := headerValue(data.Headers, r.FieldName)
		return e.compare(value, ok, r.Operator, r.Value)
	case models.RuleTypeQuery:
		value, ok := queryValue(data.Query, r.FieldName)
		return e.compare(value, ok, r.Operator, r.Value)
	case models.RuleTypeBody:
		if data.Body == "" {
			return r.Operator == models.OpNotExists
		}
		value, ok := bodyValue(data.Body, r.FieldName)
		return e.compare(value, ok, r.Operator, r.Value)
	case models.RuleTypeCustom:
		// Reserved for scripted rules, never matches
		return false
	default:
		return false
	}
}

// headerValue looks up a header by name, ignoring case
func headerValue(headers map[string][]string, name string) (string, bool) {
	for k, vals := range headers {
		if strings.EqualFold(k, name) && len(vals) > 0 {
			return vals[0], true
		}
	}
	return "", false
}

func queryValue(query map[string][]string, key string) (string, bool) {
	if vals, ok := query[key]; ok && len(vals) > 0 {
		return vals[0], true
	}
	return "", false
}

// bodyValue resolves the value a body rule compares against. Structured
// bodies are searched for field when one is named; anything else is matched
// as the raw body text. A top-level key spelled exactly like field wins over
// path syntax.
func bodyValue(body, field string) (string, bool) {
	if field == "" || !isStructured(body) {
		return body, true
	}

	result := gjson.Get(body, gjson.Escape(field))
	if !result.Exists() {
		result = gjson.Get(body, field)
	}
	if !result.Exists() || result.Type == gjson.Null {
		return "", false
	}
	if result.Type == gjson.String {
		return result.Str, true
	}
	return result.Raw, true
}

// isStructured reports whether body is a JSON object or array
func isStructured(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return gjson.Valid(trimmed)
}

// compare applies operator to the resolved value. Absent values never
// satisfy equals, contains or regex.
func (e *Evaluator) compare(actual string, present bool, operator, expected string) bool {
	switch operator {
	case models.OpExists:
		return present
	case models.OpNotExists:
		return !present
	case models.OpEquals:
		return present && actual == expected
	case models.OpContains:
		return present && strings.Contains(actual, expected)
	case models.OpRegex:
		if !present {
			return false
		}
		re, err := e.patterns.get(expected)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	default:
		return false
	}
}
