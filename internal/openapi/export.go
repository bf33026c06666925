// Package openapi converts catalog documents to and from OpenAPI 3 documents.
package openapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/prasenjit/go-mockenv/internal/catalog"
	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/resolver"
)

// Export builds an OpenAPI 3.0 document describing an environment. Each
// response becomes a status entry, and query and header rules become
// optional parameters. When two responses share a status code the first one
// in candidate order is kept.
func Export(doc *catalog.Document) *openapi3.T {
	env := doc.Environment

	description := env.Description
	if description == "" {
		description = "Mock API served by go-mockenv"
	}

	t := &openapi3.T{
		OpenAPI: "3.0.0",
		Info: &openapi3.Info{
			Title:       env.Name + " API",
			Description: description,
			Version:     "1.0.0",
		},
		Paths: openapi3.NewPaths(),
	}
	if env.BaseURL != "" {
		t.Servers = openapi3.Servers{{URL: env.BaseURL, Description: env.Name + " Server"}}
	}

	for i := range doc.Routes {
		route := &doc.Routes[i]

		item := t.Paths.Value(route.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			t.Paths.Set(route.Path, item)
		}
		item.SetOperation(models.NormalizeMethod(route.Method), exportOperation(route))
	}

	return t
}

func exportOperation(route *catalog.Route) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.Summary = route.Description
	if op.Summary == "" {
		op.Summary = route.Path
	}
	op.Description = route.Description
	op.Parameters = exportParameters(route)
	op.Responses = openapi3.NewResponsesWithCapacity(len(route.Responses))

	if len(route.Responses) == 0 {
		op.Responses.Set("500", &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription("No responses configured").
			WithContent(openapi3.Content{"application/json": &openapi3.MediaType{Example: exampleValue(resolver.NoResponsesBody)}})})
		return op
	}

	for i := range route.Responses {
		resp := &route.Responses[i]
		code := strconv.Itoa(statusCode(resp.StatusCode))
		if op.Responses.Value(code) != nil {
			continue
		}
		op.Responses.Set(code, &openapi3.ResponseRef{Value: exportResponse(resp)})
	}
	return op
}

func exportResponse(resp *catalog.Response) *openapi3.Response {
	description := resp.Name
	if description == "" {
		description = "Status " + strconv.Itoa(statusCode(resp.StatusCode))
	}
	out := openapi3.NewResponse().WithDescription(description)

	if resp.Body != "" {
		out.Content = openapi3.Content{"application/json": &openapi3.MediaType{Example: exampleValue(string(resp.Body))}}
	}

	stored := models.Response{Headers: string(resp.Headers)}
	headers := stored.DecodeHeaders()
	if len(headers) > 0 {
		out.Headers = make(openapi3.Headers, len(headers))
		for name, value := range headers {
			out.Headers[name] = &openapi3.HeaderRef{Value: &openapi3.Header{Parameter: openapi3.Parameter{
				Description: "Header " + name,
				Example:     value,
				Schema:      openapi3.NewStringSchema().NewRef(),
			}}}
		}
	}
	return out
}

// exportParameters declares path placeholders and turns query and header
// rules into optional parameters
func exportParameters(route *catalog.Route) openapi3.Parameters {
	var params openapi3.Parameters

	for _, name := range placeholders(route.Path) {
		params = append(params, &openapi3.ParameterRef{
			Value: openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()),
		})
	}

	seen := make(map[string]bool)
	for i := range route.Responses {
		for _, rule := range route.Responses[i].Rules {
			var p *openapi3.Parameter
			switch rule.RuleType {
			case models.RuleTypeQuery:
				p = openapi3.NewQueryParameter(rule.FieldName)
			case models.RuleTypeHeader:
				p = openapi3.NewHeaderParameter(rule.FieldName)
			default:
				continue
			}
			key := p.In + ":" + strings.ToLower(rule.FieldName)
			if rule.FieldName == "" || seen[key] {
				continue
			}
			seen[key] = true

			p.Description = "Rule: " + rule.Name
			p.Schema = openapi3.NewStringSchema().NewRef()
			if rule.Value != "" {
				p.Example = rule.Value
			}
			params = append(params, &openapi3.ParameterRef{Value: p})
		}
	}
	return params
}

// placeholders lists the {name} segments of a route path in order
func placeholders(path string) []string {
	var names []string
	for {
		open := strings.IndexByte(path, '{')
		if open < 0 {
			return names
		}
		end := strings.IndexByte(path[open:], '}')
		if end < 0 {
			return names
		}
		if name := path[open+1 : open+end]; name != "" {
			names = append(names, name)
		}
		path = path[open+end+1:]
	}
}

func statusCode(code int) int {
	if code == 0 {
		return 200
	}
	return code
}

// exampleValue embeds JSON bodies as structured examples and anything else as a string
func exampleValue(body string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(body), &v); err == nil {
		return v
	}
	return body
}

// Encode renders an OpenAPI document as indented JSON or YAML
func Encode(t *openapi3.T, format string) ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal OpenAPI document: %w", err)
	}

	switch strings.ToLower(format) {
	case "", "json":
		return data, nil
	case "yaml", "yml":
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return yaml.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown OpenAPI format %q", format)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
