package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/resolver"
	"github.com/prasenjit/go-mockenv/internal/stats"
	"github.com/prasenjit/go-mockenv/internal/storage"
	"github.com/prasenjit/go-mockenv/internal/tracing"
)

func setupTestHandler(t *testing.T) (*Handler, storage.Storage, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStorage()
	collector := stats.NewCollector()
	tracingSvc := tracing.NewService(100, 0)
	engine := resolver.NewEngine(resolver.StorageSource(store))

	handler := NewHandler(store, collector, tracingSvc, engine)

	r := gin.New()
	return handler, store, r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			json.NewEncoder(&buf).Encode(b)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// seedRoute creates an environment with one route and returns both
func seedRoute(t *testing.T, store storage.Storage, path, method string) (*models.Environment, *models.Route) {
	t.Helper()

	env := &models.Environment{Name: "env-" + strings.Trim(strings.ReplaceAll(path, "/", "-"), "-"), IsActive: true}
	if err := store.CreateEnvironment(env); err != nil {
		t.Fatalf("Failed to create environment: %v", err)
	}
	route := &models.Route{EnvironmentID: env.ID, Path: path, Method: method, IsActive: true}
	if err := store.CreateRoute(route); err != nil {
		t.Fatalf("Failed to create route: %v", err)
	}
	return env, route
}

func TestNewHandler(t *testing.T) {
	handler, _, _ := setupTestHandler(t)

	if handler == nil {
		t.Fatal("Expected handler to be created")
	}
	if handler.engine == nil {
		t.Error("Expected resolver engine to be set")
	}
}

func TestListEnvironments_Empty(t *testing.T) {
	handler, _, r := setupTestHandler(t)

	r.GET("/environments", handler.ListEnvironments)

	w := doJSON(r, "GET", "/environments", nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var result []interface{}
	json.Unmarshal(w.Body.Bytes(), &result)

	if len(result) != 0 {
		t.Errorf("Expected empty array, got %d items", len(result))
	}
}

func TestListEnvironments_RouteCount(t *testing.T) {
	handler, store, r := setupTestHandler(t)

	env, _ := seedRoute(t, store, "/users", "GET")
	store.CreateRoute(&models.Route{EnvironmentID: env.ID, Path: "/orders", Method: "GET", IsActive: true})

	r.GET("/environments", handler.ListEnvironments)

	w := doJSON(r, "GET", "/environments", nil)

	var result []map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)

	if len(result) != 1 {
		t.Fatalf("Expected 1 environment, got %d", len(result))
	}
	if result[0]["route_count"] != float64(2) {
		t.Errorf("Expected route_count 2, got %v", result[0]["route_count"])
	}
	if result[0]["name"] != env.Name {
		t.Errorf("Expected name %s, got %v", env.Name, result[0]["name"])
	}
}

func TestCreateEnvironment(t *testing.T) {
	handler, store, r := setupTestHandler(t)

	r.POST("/environments", handler.CreateEnvironment)

	w := doJSON(r, "POST", "/environments", map[string]interface{}{
		"name":     "staging",
		"base_url": "http://staging.local",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var env models.Environment
	json.Unmarshal(w.Body.Bytes(), &env)

	if env.ID == 0 {
		t.Error("Expected ID to be assigned")
	}
	if !env.IsActive {
		t.Error("Expected environment to be active by default")
	}

	stored, err := store.GetEnvironmentByName("staging")
	if err != nil {
		t.Fatalf("Expected environment to be stored: %v", err)
	}
	if stored.BaseURL != "http://staging.local" {
		t.Errorf("Expected base URL to be stored, got %s", stored.BaseURL)
	}
}

func TestCreateEnvironment_Invalid(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	store.CreateEnvironment(&models.Environment{Name: "taken"})

	r.POST("/environments", handler.CreateEnvironment)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", "{not json", http.StatusBadRequest},
		{"missing name", `{"description":"x"}`, http.StatusBadRequest},
		{"blank name", `{"name":"   "}`, http.StatusBadRequest},
		{"duplicate name", `{"name":"taken"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, "POST", "/environments", tt.body)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestGetEnvironment(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	env, _ := seedRoute(t, store, "/users", "GET")

	r.GET("/environments/:id", handler.GetEnvironment)

	tests := []struct {
		path   string
		status int
	}{
		{fmt.Sprintf("/environments/%d", env.ID), http.StatusOK},
		{"/environments/999", http.StatusNotFound},
		{"/environments/abc", http.StatusBadRequest},
		{"/environments/0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		w := doJSON(r, "GET", tt.path, nil)
		if w.Code != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.status, w.Code)
		}
	}
}

func TestUpdateEnvironment(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	env, _ := seedRoute(t, store, "/users", "GET")
	store.CreateEnvironment(&models.Environment{Name: "other"})

	r.PUT("/environments/:id", handler.UpdateEnvironment)

	path := fmt.Sprintf("/environments/%d", env.ID)

	w := doJSON(r, "PUT", path, map[string]interface{}{"name": "renamed", "is_active": false})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	updated, _ := store.GetEnvironment(env.ID)
	if updated.Name != "renamed" {
		t.Errorf("Expected name renamed, got %s", updated.Name)
	}
	if updated.IsActive {
		t.Error("Expected environment to be inactive")
	}

	// Renaming onto another environment's name is rejected
	w = doJSON(r, "PUT", path, map[string]interface{}{"name": "other"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}

	// Keeping its own name is fine
	w = doJSON(r, "PUT", path, map[string]interface{}{"name": "renamed"})
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	w = doJSON(r, "PUT", "/environments/999", map[string]interface{}{"name": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestDeleteEnvironment(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	env, route := seedRoute(t, store, "/users", "GET")

	handler.tracingService.RecordTrace(&models.Trace{EnvironmentID: env.ID, RouteID: route.ID})
	handler.tracingService.RecordTrace(&models.Trace{EnvironmentID: env.ID + 1})

	r.DELETE("/environments/:id", handler.DeleteEnvironment)

	w := doJSON(r, "DELETE", fmt.Sprintf("/environments/%d", env.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	if _, err := store.GetRoute(route.ID); err == nil {
		t.Error("Expected routes to be deleted with the environment")
	}
	if traces := handler.tracingService.GetTraces(&models.TraceFilter{}); len(traces) != 1 {
		t.Errorf("Expected only the other environment's trace to remain, got %d", len(traces))
	}

	w = doJSON(r, "DELETE", fmt.Sprintf("/environments/%d", env.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCreateRoute(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	env, _ := seedRoute(t, store, "/users", "GET")

	r.POST("/environments/:id/routes", handler.CreateRoute)

	path := fmt.Sprintf("/environments/%d/routes", env.ID)

	w := doJSON(r, "POST", path, map[string]interface{}{"path": "/users/{id}", "method": " post "})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var route models.Route
	json.Unmarshal(w.Body.Bytes(), &route)

	if route.Method != "POST" {
		t.Errorf("Expected method normalized to POST, got %q", route.Method)
	}
	if !route.IsActive {
		t.Error("Expected route to be active by default")
	}
	if route.EnvironmentID != env.ID {
		t.Errorf("Expected environment %d, got %d", env.ID, route.EnvironmentID)
	}

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"relative path", path, `{"path":"users","method":"GET"}`, http.StatusBadRequest},
		{"missing method", path, `{"path":"/users"}`, http.StatusBadRequest},
		{"bad method", path, `{"path":"/users","method":"GE T"}`, http.StatusBadRequest},
		{"unknown environment", "/environments/999/routes", `{"path":"/users","method":"GET"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, "POST", tt.path, tt.body)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestUpdateRoute(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	_, route := seedRoute(t, store, "/users", "GET")

	r.PUT("/routes/:id", handler.UpdateRoute)

	path := fmt.Sprintf("/routes/%d", route.ID)

	w := doJSON(r, "PUT", path, map[string]interface{}{"method": "delete", "is_active": false})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	updated, _ := store.GetRoute(route.ID)
	if updated.Method != "DELETE" {
		t.Errorf("Expected method DELETE, got %s", updated.Method)
	}
	if updated.IsActive {
		t.Error("Expected route to be inactive")
	}
	if updated.Path != "/users" {
		t.Errorf("Expected path to be unchanged, got %s", updated.Path)
	}

	w = doJSON(r, "PUT", path, map[string]interface{}{"path": "nope"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestListRoutes_UnknownEnvironment(t *testing.T) {
	handler, _, r := setupTestHandler(t)

	r.GET("/environments/:id/routes", handler.ListRoutes)

	w := doJSON(r, "GET", "/environments/42/routes", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCreateResponse(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	_, route := seedRoute(t, store, "/users", "GET")

	r.POST("/routes/:id/responses", handler.CreateResponse)

	path := fmt.Sprintf("/routes/%d/responses", route.ID)

	w := doJSON(r, "POST", path, map[string]interface{}{
		"name":    "ok",
		"headers": `{"Content-Type":"application/json"}`,
		"body":    `{"users":[]}`,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp models.Response
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code to default to 200, got %d", resp.StatusCode)
	}

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"status_code":200}`},
		{"status too low", `{"name":"x","status_code":99}`},
		{"status too high", `{"name":"x","status_code":600}`},
		{"negative delay", `{"name":"x","delay_ms":-1}`},
		{"headers not an object", `{"name":"x","headers":"[1,2]"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, "POST", path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestResponse_SingleDefault(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	_, route := seedRoute(t, store, "/users", "GET")

	r.POST("/routes/:id/responses", handler.CreateResponse)
	r.PUT("/responses/:id", handler.UpdateResponse)

	path := fmt.Sprintf("/routes/%d/responses", route.ID)

	var first, second models.Response
	w := doJSON(r, "POST", path, map[string]interface{}{"name": "first", "is_default": true})
	json.Unmarshal(w.Body.Bytes(), &first)
	w = doJSON(r, "POST", path, map[string]interface{}{"name": "second", "is_default": true})
	json.Unmarshal(w.Body.Bytes(), &second)

	got, _ := store.GetResponse(first.ID)
	if got.IsDefault {
		t.Error("Expected first response to lose its default flag")
	}

	w = doJSON(r, "PUT", fmt.Sprintf("/responses/%d", first.ID), map[string]interface{}{"is_default": true})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	got, _ = store.GetResponse(second.ID)
	if got.IsDefault {
		t.Error("Expected second response to lose its default flag")
	}
	got, _ = store.GetResponse(first.ID)
	if !got.IsDefault {
		t.Error("Expected first response to be the default")
	}
}

func TestGetResponse_IncludesRules(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	_, route := seedRoute(t, store, "/users", "GET")

	resp := &models.Response{RouteID: route.ID, Name: "ok", StatusCode: 200}
	store.CreateResponse(resp)
	store.CreateRule(&models.Rule{ResponseID: resp.ID, RuleType: "header", FieldName: "X-Env", Operator: "exists"})

	r.GET("/responses/:id", handler.GetResponse)

	w := doJSON(r, "GET", fmt.Sprintf("/responses/%d", resp.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var result struct {
		Response models.Response `json:"response"`
		Rules    []models.Rule   `json:"rules"`
	}
	json.Unmarshal(w.Body.Bytes(), &result)

	if result.Response.Name != "ok" {
		t.Errorf("Expected response ok, got %s", result.Response.Name)
	}
	if len(result.Rules) != 1 {
		t.Errorf("Expected 1 rule, got %d", len(result.Rules))
	}
}

func TestCreateRule(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	_, route := seedRoute(t, store, "/users", "GET")
	resp := &models.Response{RouteID: route.ID, Name: "ok", StatusCode: 200}
	store.CreateResponse(resp)

	r.POST("/responses/:id/rules", handler.CreateRule)

	path := fmt.Sprintf("/responses/%d/rules", resp.ID)

	w := doJSON(r, "POST", path, map[string]interface{}{
		"rule_type":  "Header",
		"field_name": "X-Env",
		"operator":   "EQUALS",
		"value":      "qa",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var created models.Rule
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.RuleType != models.RuleTypeHeader || created.Operator != models.OpEquals {
		t.Errorf("Expected normalized type and operator, got %s/%s", created.RuleType, created.Operator)
	}

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown type", path, `{"rule_type":"cookie","field_name":"a","operator":"equals"}`, http.StatusBadRequest},
		{"unknown operator", path, `{"rule_type":"query","field_name":"a","operator":"gt"}`, http.StatusBadRequest},
		{"missing field", path, `{"rule_type":"query","operator":"exists"}`, http.StatusBadRequest},
		{"missing operator", path, `{"rule_type":"query","field_name":"a"}`, http.StatusBadRequest},
		{"custom without field", path, `{"rule_type":"custom","operator":"equals"}`, http.StatusCreated},
		{"unknown response", "/responses/999/rules", `{"rule_type":"query","field_name":"a","operator":"exists"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, "POST", tt.path, tt.body)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestUpdateAndDeleteRule(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	_, route := seedRoute(t, store, "/users", "GET")
	resp := &models.Response{RouteID: route.ID, Name: "ok", StatusCode: 200}
	store.CreateResponse(resp)
	rule := &models.Rule{ResponseID: resp.ID, RuleType: "query", FieldName: "q", Operator: "exists"}
	store.CreateRule(rule)

	r.PUT("/rules/:id", handler.UpdateRule)
	r.DELETE("/rules/:id", handler.DeleteRule)

	path := fmt.Sprintf("/rules/%d", rule.ID)

	w := doJSON(r, "PUT", path, map[string]interface{}{"operator": "regex", "value": "^a"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	got, _ := store.GetRule(rule.ID)
	if got.Operator != models.OpRegex || got.Value != "^a" {
		t.Errorf("Expected regex ^a, got %s %s", got.Operator, got.Value)
	}

	w = doJSON(r, "PUT", path, map[string]interface{}{"operator": "between"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	w = doJSON(r, "DELETE", path, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	w = doJSON(r, "DELETE", path, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestResolve(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	_, route := seedRoute(t, store, "/users/{id}", "GET")

	fallback := &models.Response{RouteID: route.ID, Name: "fallback", StatusCode: 200, Body: "plain", IsDefault: true}
	store.CreateResponse(fallback)
	special := &models.Response{RouteID: route.ID, Name: "special", StatusCode: 418, Body: "teapot", DelayMs: 5000, Priority: 5}
	store.CreateResponse(special)
	store.CreateRule(&models.Rule{ResponseID: special.ID, RuleType: "query", FieldName: "mode", Operator: "equals", Value: "tea"})

	r.POST("/resolve", handler.Resolve)

	tests := []struct {
		name     string
		body     map[string]interface{}
		status   int
		outcome  resolver.Outcome
		response string
	}{
		{
			name:     "query in path",
			body:     map[string]interface{}{"method": "get", "path": "/users/7?mode=tea"},
			status:   418,
			outcome:  resolver.OutcomeMatchedRules,
			response: "special",
		},
		{
			name:     "explicit query",
			body:     map[string]interface{}{"method": "GET", "path": "/users/7", "query": map[string]string{"mode": "tea"}},
			status:   418,
			outcome:  resolver.OutcomeMatchedRules,
			response: "special",
		},
		{
			name:     "default",
			body:     map[string]interface{}{"method": "GET", "path": "/users/7"},
			status:   200,
			outcome:  resolver.OutcomeDefault,
			response: "fallback",
		},
		{
			name:    "no route",
			body:    map[string]interface{}{"method": "GET", "path": "/orders"},
			status:  404,
			outcome: resolver.OutcomeRouteNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, "POST", "/resolve", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
			}

			var result resolver.Result
			json.Unmarshal(w.Body.Bytes(), &result)

			if result.StatusCode != tt.status {
				t.Errorf("Expected resolved status %d, got %d", tt.status, result.StatusCode)
			}
			if result.Explanation.Outcome != tt.outcome {
				t.Errorf("Expected outcome %s, got %s", tt.outcome, result.Explanation.Outcome)
			}
			if result.Explanation.ResponseName != tt.response {
				t.Errorf("Expected response %q, got %q", tt.response, result.Explanation.ResponseName)
			}
		})
	}

	// Explanation carries the path parameters of templated routes
	w := doJSON(r, "POST", "/resolve", map[string]interface{}{"method": "GET", "path": "/users/42"})
	var result resolver.Result
	json.Unmarshal(w.Body.Bytes(), &result)
	if result.Explanation.PathParams["id"] != "42" {
		t.Errorf("Expected path param id=42, got %v", result.Explanation.PathParams)
	}

	w = doJSON(r, "POST", "/resolve", `{"path":"/users/1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without method, got %d", w.Code)
	}
}

func TestListTraces_Filters(t *testing.T) {
	handler, _, r := setupTestHandler(t)

	handler.tracingService.RecordTrace(&models.Trace{EnvironmentID: 1, RouteID: 10, Outcome: "default",
		Request: models.TraceRequest{Method: "GET"}, Response: models.TraceResponse{StatusCode: 200}})
	handler.tracingService.RecordTrace(&models.Trace{EnvironmentID: 1, RouteID: 11, Outcome: "matched_rules",
		Request: models.TraceRequest{Method: "POST"}, Response: models.TraceResponse{StatusCode: 201}})
	handler.tracingService.RecordTrace(&models.Trace{Outcome: "route_not_found",
		Request: models.TraceRequest{Method: "GET"}, Response: models.TraceResponse{StatusCode: 404}})

	r.GET("/traces", handler.ListTraces)

	tests := []struct {
		query string
		count int
	}{
		{"", 3},
		{"?environmentId=1", 2},
		{"?routeId=11", 1},
		{"?method=get", 2},
		{"?outcome=route_not_found", 1},
		{"?statusCode=201", 1},
		{"?limit=1", 1},
		{"?offset=2", 1},
	}

	for _, tt := range tests {
		w := doJSON(r, "GET", "/traces"+tt.query, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%q: expected status 200, got %d", tt.query, w.Code)
			continue
		}

		var traces []models.Trace
		json.Unmarshal(w.Body.Bytes(), &traces)
		if len(traces) != tt.count {
			t.Errorf("%q: expected %d traces, got %d", tt.query, tt.count, len(traces))
		}
	}

	for _, q := range []string{"?routeId=x", "?limit=many", "?start=yesterday"} {
		w := doJSON(r, "GET", "/traces"+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected status 400, got %d", q, w.Code)
		}
	}
}

func TestGetAndClearTraces(t *testing.T) {
	handler, _, r := setupTestHandler(t)

	trace := &models.Trace{EnvironmentID: 1}
	handler.tracingService.RecordTrace(trace)
	handler.tracingService.RecordTrace(&models.Trace{EnvironmentID: 2})

	r.GET("/traces/:id", handler.GetTrace)
	r.DELETE("/traces", handler.ClearTraces)

	w := doJSON(r, "GET", "/traces/"+trace.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	w = doJSON(r, "GET", "/traces/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	doJSON(r, "DELETE", "/traces?environmentId=1", nil)
	if n := len(handler.tracingService.GetTraces(&models.TraceFilter{})); n != 1 {
		t.Errorf("Expected 1 trace after clearing environment 1, got %d", n)
	}

	doJSON(r, "DELETE", "/traces", nil)
	if n := len(handler.tracingService.GetTraces(&models.TraceFilter{})); n != 0 {
		t.Errorf("Expected no traces, got %d", n)
	}
}

func TestStats(t *testing.T) {
	handler, store, r := setupTestHandler(t)
	env, route := seedRoute(t, store, "/users", "GET")
	store.CreateEnvironment(&models.Environment{Name: "inactive", IsActive: false})

	handler.statsCollector.RecordRequest(stats.Request{EnvironmentID: env.ID, RouteID: route.ID, Method: "GET", Path: "/users", Outcome: "first", StatusCode: 200})
	handler.statsCollector.RecordRequest(stats.Request{Method: "GET", Path: "/nope", Outcome: "route_not_found", StatusCode: 404})

	r.GET("/stats", handler.GetGlobalStats)
	r.GET("/stats/environments/:id", handler.GetEnvironmentStats)
	r.GET("/stats/routes/:id", handler.GetRouteStats)
	r.POST("/stats/reset", handler.ResetStats)

	w := doJSON(r, "GET", "/stats", nil)
	var global models.GlobalStats
	json.Unmarshal(w.Body.Bytes(), &global)

	if global.TotalRequests != 2 {
		t.Errorf("Expected 2 requests, got %d", global.TotalRequests)
	}
	if global.ActiveEnvironments != 1 {
		t.Errorf("Expected 1 active environment, got %d", global.ActiveEnvironments)
	}
	if global.TotalRoutes != 1 {
		t.Errorf("Expected 1 route, got %d", global.TotalRoutes)
	}

	w = doJSON(r, "GET", fmt.Sprintf("/stats/environments/%d", env.ID), nil)
	var envStats models.EnvironmentStats
	json.Unmarshal(w.Body.Bytes(), &envStats)
	if envStats.TotalRequests != 1 || envStats.EnvironmentName != env.Name {
		t.Errorf("Unexpected environment stats: %+v", envStats)
	}

	w = doJSON(r, "GET", "/stats/environments/999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	w = doJSON(r, "GET", fmt.Sprintf("/stats/routes/%d", route.ID), nil)
	var routeStats models.RouteStat
	json.Unmarshal(w.Body.Bytes(), &routeStats)
	if routeStats.Outcomes["first"] != 1 {
		t.Errorf("Expected 1 first hit, got %v", routeStats.Outcomes)
	}

	doJSON(r, "POST", "/stats/reset", nil)
	if got := handler.statsCollector.GetGlobalStats(0, 0).TotalRequests; got != 0 {
		t.Errorf("Expected stats to be reset, got %d requests", got)
	}
}

func TestHealthCheck(t *testing.T) {
	handler, _, r := setupTestHandler(t)

	r.GET("/health", handler.HealthCheck)

	w := doJSON(r, "GET", "/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)

	if result["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", result["status"])
	}
	if result["timestamp"] == nil {
		t.Error("Expected timestamp in response")
	}
}
