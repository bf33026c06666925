package openapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/prasenjit/go-mockenv/internal/catalog"
	"github.com/prasenjit/go-mockenv/internal/models"
)

// Import turns an OpenAPI 3 document (JSON or YAML) into a catalog document.
// Each operation becomes a route and each documented status a response;
// 200 and 201 responses are marked default. Query and header parameters
// become exists rules on every response of the operation.
func Import(content []byte) (*catalog.Document, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	t, err := loader.LoadFromData(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}
	if err := t.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	doc := &catalog.Document{
		Environment: catalog.Environment{
			Name:    "Imported API",
			BaseURL: "http://localhost",
		},
	}
	if t.Info != nil {
		if t.Info.Title != "" {
			doc.Environment.Name = t.Info.Title
		}
		doc.Environment.Description = t.Info.Description
	}
	if len(t.Servers) > 0 && t.Servers[0] != nil && t.Servers[0].URL != "" {
		doc.Environment.BaseURL = t.Servers[0].URL
	}

	if t.Paths == nil {
		return doc, nil
	}

	paths := t.Paths.Map()
	for _, path := range sortedKeys(paths) {
		item := paths[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		for _, method := range sortedKeys(ops) {
			doc.Routes = append(doc.Routes, importOperation(path, method, item, ops[method]))
		}
	}

	return doc, nil
}

func importOperation(path, method string, item *openapi3.PathItem, op *openapi3.Operation) catalog.Route {
	route := catalog.Route{
		Path:        path,
		Method:      models.NormalizeMethod(method),
		Description: op.Summary,
	}
	if route.Description == "" {
		route.Description = op.Description
	}
	if route.Description == "" {
		route.Description = path
	}

	rules := importRules(append(append(openapi3.Parameters{}, item.Parameters...), op.Parameters...))

	if op.Responses == nil {
		return route
	}
	responses := op.Responses.Map()
	for _, key := range sortedKeys(responses) {
		ref := responses[key]
		if ref == nil || ref.Value == nil {
			continue
		}

		code, err := strconv.Atoi(key)
		if err != nil || code < 100 || code > 599 {
			code = 200
		}

		resp := importResponse(key, code, ref.Value)
		resp.Rules = append([]catalog.Rule(nil), rules...)
		route.Responses = append(route.Responses, resp)
	}
	return route
}

func importResponse(key string, code int, r *openapi3.Response) catalog.Response {
	resp := catalog.Response{
		Name:       "Status " + key,
		StatusCode: code,
		IsDefault:  code == 200 || code == 201,
	}
	if r.Description != nil && *r.Description != "" {
		resp.Name = *r.Description
	}

	headers := make(map[string]string)
	for _, name := range sortedKeys(r.Headers) {
		h := r.Headers[name]
		if h == nil || h.Value == nil {
			headers[name] = ""
			continue
		}
		if h.Value.Example != nil {
			headers[name] = formatExample(h.Value.Example)
		} else {
			headers[name] = ""
		}
	}

	for _, mediaType := range sortedKeys(r.Content) {
		if !strings.Contains(mediaType, "json") {
			continue
		}
		if body, ok := mediaExample(r.Content[mediaType]); ok {
			resp.Body = catalog.Text(body)
			if _, set := headers["Content-Type"]; !set {
				headers["Content-Type"] = mediaType
			}
			break
		}
	}

	if len(headers) > 0 {
		resp.Headers = catalog.Text(models.EncodeHeaders(headers))
	}
	return resp
}

// mediaExample returns the first example found on a media type: the direct
// example, then named examples, then the schema example
func mediaExample(mt *openapi3.MediaType) (string, bool) {
	if mt == nil {
		return "", false
	}
	if mt.Example != nil {
		return formatExample(mt.Example), true
	}
	for _, name := range sortedKeys(mt.Examples) {
		ex := mt.Examples[name]
		if ex != nil && ex.Value != nil && ex.Value.Value != nil {
			return formatExample(ex.Value.Value), true
		}
	}
	if mt.Schema != nil && mt.Schema.Value != nil && mt.Schema.Value.Example != nil {
		return formatExample(mt.Schema.Value.Example), true
	}
	return "", false
}

func importRules(params openapi3.Parameters) []catalog.Rule {
	var rules []catalog.Rule
	seen := make(map[string]bool)
	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			continue
		}
		p := ref.Value

		var ruleType string
		switch p.In {
		case openapi3.ParameterInQuery:
			ruleType = models.RuleTypeQuery
		case openapi3.ParameterInHeader:
			ruleType = models.RuleTypeHeader
		default:
			continue
		}
		key := ruleType + ":" + strings.ToLower(p.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		rule := catalog.Rule{
			Name:      "Param: " + p.Name,
			RuleType:  ruleType,
			FieldName: p.Name,
			Operator:  models.OpExists,
		}
		if p.Example != nil {
			rule.Value = formatExample(p.Example)
		}
		rules = append(rules, rule)
	}
	return rules
}

// formatExample converts an example value to text; strings are kept as is
func formatExample(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		if data, err := json.Marshal(val); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", val)
	}
}
