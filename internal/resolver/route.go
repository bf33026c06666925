package resolver

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/storage"
)

// DefaultTemplateCacheSize bounds the number of compiled route templates kept in memory
const DefaultTemplateCacheSize = 1024

// RouteMatch is the route a request resolved to
type RouteMatch struct {
	Route      *models.Route
	Templated  bool
	PathParams map[string]string
}

// pathTemplate is a compiled route path with {param} placeholders
type pathTemplate struct {
	pattern   *regexp.Regexp
	paramKeys []string
}

// routeResolver finds the single route serving a request path and method
type routeResolver struct {
	templates *lru.Cache[string, *pathTemplate]
}

func newRouteResolver(cacheSize int) *routeResolver {
	if cacheSize <= 0 {
		cacheSize = DefaultTemplateCacheSize
	}
	c, _ := lru.New[string, *pathTemplate](cacheSize)
	return &routeResolver{templates: c}
}

// resolve tries an exact match first, then templated routes.
// A nil match with a nil error means no route serves the request.
func (r *routeResolver) resolve(repo Repository, path, method string) (*RouteMatch, error) {
	method = models.NormalizeMethod(method)

	route, err := repo.FindRoute(path, method)
	if err == nil {
		return &RouteMatch{Route: route}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("exact route lookup: %w", err)
	}

	routes, err := repo.ActiveRoutes(method)
	if err != nil {
		return nil, fmt.Errorf("active routes for %s: %w", method, err)
	}

	var (
		best       *models.Route
		bestTmpl   *pathTemplate
		bestParams []string
	)
	for _, candidate := range routes {
		if !candidate.IsTemplated() {
			continue
		}

		tmpl := r.template(candidate.Path)
		matches := tmpl.pattern.FindStringSubmatch(path)
		if matches == nil {
			continue
		}

		if best == nil || moreSpecific(candidate, tmpl, best, bestTmpl) {
			best, bestTmpl, bestParams = candidate, tmpl, matches[1:]
		}
	}

	if best == nil {
		return nil, nil
	}

	// Extract path parameters
	params := make(map[string]string, len(bestTmpl.paramKeys))
	for i, key := range bestTmpl.paramKeys {
		if i < len(bestParams) {
			params[key] = bestParams[i]
		}
	}

	return &RouteMatch{Route: best, Templated: true, PathParams: params}, nil
}

// moreSpecific orders overlapping templated routes: fewer placeholders win,
// then the longer stored path, then the lower route ID.
func moreSpecific(a *models.Route, at *pathTemplate, b *models.Route, bt *pathTemplate) bool {
	if len(at.paramKeys) != len(bt.paramKeys) {
		return len(at.paramKeys) < len(bt.paramKeys)
	}
	if len(a.Path) != len(b.Path) {
		return len(a.Path) > len(b.Path)
	}
	return a.ID < b.ID
}

func (r *routeResolver) template(path string) *pathTemplate {
	if tmpl, ok := r.templates.Get(path); ok {
		return tmpl
	}

	tmpl := compileTemplate(path)
	r.templates.Add(path, tmpl)
	return tmpl
}

// compileTemplate turns each {name} into a single-segment capture group and
// anchors the pattern. Everything else matches literally.
func compileTemplate(path string) *pathTemplate {
	var (
		b    strings.Builder
		keys []string
		rest = path
	)

	b.WriteString("^")
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		end += open

		name := rest[open+1 : end]
		if name == "" {
			b.WriteString(regexp.QuoteMeta(rest[:end+1]))
			rest = rest[end+1:]
			continue
		}

		b.WriteString(regexp.QuoteMeta(rest[:open]))
		b.WriteString(`([^/]+)`)
		keys = append(keys, name)
		rest = rest[end+1:]
	}
	b.WriteString(regexp.QuoteMeta(rest))
	b.WriteString("$")

	// Literal text is quoted, so the expression always compiles
	return &pathTemplate{
		pattern:   regexp.MustCompile(b.String()),
		paramKeys: keys,
	}
}
