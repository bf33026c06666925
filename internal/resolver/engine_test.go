package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/storage"
)

// fixture builds configuration in an in-memory store
type fixture struct {
	t     *testing.T
	store *storage.MemoryStorage
	env   *models.Environment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStorage()
	env := &models.Environment{Name: "test", IsActive: true}
	require.NoError(t, store.CreateEnvironment(env))
	return &fixture{t: t, store: store, env: env}
}

func (f *fixture) route(method, path string) *models.Route {
	f.t.Helper()
	r := &models.Route{EnvironmentID: f.env.ID, Method: method, Path: path, IsActive: true}
	require.NoError(f.t, f.store.CreateRoute(r))
	return r
}

func (f *fixture) response(route *models.Route, resp models.Response) *models.Response {
	f.t.Helper()
	resp.RouteID = route.ID
	if resp.StatusCode == 0 {
		resp.StatusCode = 200
	}
	require.NoError(f.t, f.store.CreateResponse(&resp))
	return &resp
}

func (f *fixture) rule(resp *models.Response, r models.Rule) {
	f.t.Helper()
	r.ResponseID = resp.ID
	require.NoError(f.t, f.store.CreateRule(&r))
}

func (f *fixture) engine(opts ...Option) *Engine {
	return NewEngine(StorageSource(f.store), opts...)
}

func get(path string) Request {
	return Request{Method: "GET", Path: path}
}

func TestResolve_ExactMatchWinsOverTemplate(t *testing.T) {
	f := newFixture(t)
	templated := f.route("GET", "/users/{id}")
	exact := f.route("GET", "/users/1")
	f.response(templated, models.Response{Name: "templated", Body: "templated"})
	f.response(exact, models.Response{Name: "exact", Body: "exact"})

	result, err := f.engine().Resolve(context.Background(), get("/users/1"))
	require.NoError(t, err)
	assert.Equal(t, "exact", result.Body)
	assert.Equal(t, exact.ID, result.Explanation.RouteID)
	assert.False(t, result.Explanation.Templated)

	result, err = f.engine().Resolve(context.Background(), get("/users/2"))
	require.NoError(t, err)
	assert.Equal(t, "templated", result.Body)
	assert.True(t, result.Explanation.Templated)
	assert.Equal(t, map[string]string{"id": "2"}, result.Explanation.PathParams)
}

func TestResolve_TemplateIsSegmentBound(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/users/{id}")
	f.response(r, models.Response{Name: "user"})
	e := f.engine()

	tests := []struct {
		path   string
		status int
	}{
		{"/users/42", 200},
		{"/users/42/profile", 404},
		{"/users/", 404},
		{"/users", 404},
		{"/prefix/users/42", 404},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			result, err := e.Resolve(context.Background(), get(tt.path))
			require.NoError(t, err)
			assert.Equal(t, tt.status, result.StatusCode)
		})
	}
}

func TestResolve_TemplateLiteralText(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/files/{name}.json")
	f.response(r, models.Response{Name: "file"})
	e := f.engine()

	result, err := e.Resolve(context.Background(), get("/files/report.json"))
	require.NoError(t, err)
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, "report", result.Explanation.PathParams["name"])

	// The dot is literal, not a wildcard
	result, err = e.Resolve(context.Background(), get("/files/reportxjson"))
	require.NoError(t, err)
	assert.Equal(t, 404, result.StatusCode)
}

func TestResolve_TemplateTieBreak(t *testing.T) {
	f := newFixture(t)
	both := f.route("GET", "/{kind}/{id}")
	one := f.route("GET", "/orders/{id}")
	f.response(both, models.Response{Name: "generic", Body: "generic"})
	f.response(one, models.Response{Name: "orders", Body: "orders"})

	result, err := f.engine().Resolve(context.Background(), get("/orders/7"))
	require.NoError(t, err)
	assert.Equal(t, "orders", result.Body, "fewer placeholders should win")

	// Same placeholder count and length: lowest ID
	g := newFixture(t)
	first := g.route("GET", "/a/{x}")
	second := g.route("GET", "/{y}/b")
	g.response(first, models.Response{Name: "first", Body: "first"})
	g.response(second, models.Response{Name: "second", Body: "second"})

	result, err = g.engine().Resolve(context.Background(), get("/a/b"))
	require.NoError(t, err)
	assert.Equal(t, "first", result.Body)
}

func TestResolve_MethodIsNormalized(t *testing.T) {
	f := newFixture(t)
	r := f.route("post", "/orders")
	f.response(r, models.Response{Name: "created", StatusCode: 201})

	result, err := f.engine().Resolve(context.Background(), Request{Method: "Post", Path: "/orders"})
	require.NoError(t, err)
	assert.Equal(t, 201, result.StatusCode)

	result, err = f.engine().Resolve(context.Background(), get("/orders"))
	require.NoError(t, err)
	assert.Equal(t, 404, result.StatusCode)
}

func TestResolve_InactiveConfigurationIsIgnored(t *testing.T) {
	f := newFixture(t)
	r := &models.Route{EnvironmentID: f.env.ID, Method: "GET", Path: "/off", IsActive: false}
	require.NoError(t, f.store.CreateRoute(r))
	f.response(r, models.Response{Name: "off"})

	idle := &models.Environment{Name: "idle", IsActive: false}
	require.NoError(t, f.store.CreateEnvironment(idle))
	idleRoute := &models.Route{EnvironmentID: idle.ID, Method: "GET", Path: "/idle/{id}", IsActive: true}
	require.NoError(t, f.store.CreateRoute(idleRoute))
	f.response(idleRoute, models.Response{Name: "idle"})

	e := f.engine()
	for _, path := range []string{"/off", "/idle/1"} {
		result, err := e.Resolve(context.Background(), get(path))
		require.NoError(t, err)
		assert.Equal(t, 404, result.StatusCode, path)
	}
}

func TestResolve_RouteNotFound(t *testing.T) {
	f := newFixture(t)

	result, err := f.engine().Resolve(context.Background(), get("/missing"))
	require.NoError(t, err)
	assert.Equal(t, 404, result.StatusCode)
	assert.Equal(t, "application/json", result.Headers["Content-Type"])
	assert.JSONEq(t, `{"error":"Ruta no encontrada"}`, result.Body)
	assert.Equal(t, OutcomeRouteNotFound, result.Explanation.Outcome)
}

func TestResolve_NoResponses(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/empty")

	result, err := f.engine().Resolve(context.Background(), get("/empty"))
	require.NoError(t, err)
	assert.Equal(t, 500, result.StatusCode)
	assert.Equal(t, "application/json", result.Headers["Content-Type"])
	assert.Contains(t, result.Body, `"error"`)
	assert.Equal(t, OutcomeNoResponses, result.Explanation.Outcome)
	assert.Equal(t, r.ID, result.Explanation.RouteID)
}

func TestOrderCandidates(t *testing.T) {
	responses := []*models.Response{
		{ID: 1, Name: "p1", Priority: 1},
		{ID: 2, Name: "p5", Priority: 5},
		{ID: 3, Name: "default", Priority: 0, IsDefault: true},
		{ID: 4, Name: "a-p5", Priority: 5},
	}

	ordered := orderCandidates(responses)

	var names []string
	for _, r := range ordered {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"default", "a-p5", "p5", "p1"}, names)
	assert.Equal(t, "p1", responses[0].Name, "input slice must not be reordered")
}

func TestResolve_RulesUseAndSemantics(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/items")
	both := f.response(r, models.Response{Name: "both", Priority: 10, Body: "both"})
	f.rule(both, models.Rule{RuleType: models.RuleTypeHeader, FieldName: "X-A", Operator: models.OpEquals, Value: "1"})
	f.rule(both, models.Rule{RuleType: models.RuleTypeHeader, FieldName: "X-B", Operator: models.OpEquals, Value: "2"})
	f.response(r, models.Response{Name: "fallback", IsDefault: true, Body: "fallback"})

	e := f.engine()

	req := get("/items")
	req.Headers = map[string][]string{"X-A": {"1"}}
	result, err := e.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Body)
	assert.Equal(t, OutcomeDefault, result.Explanation.Outcome)

	req.Headers = map[string][]string{"x-a": {"1"}, "x-b": {"2"}}
	result, err = e.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "both", result.Body)
	assert.Equal(t, OutcomeMatchedRules, result.Explanation.Outcome)
}

func TestResolve_AbsentHeaderContainsIsFalse(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/search")
	guarded := f.response(r, models.Response{Name: "guarded", Body: "guarded"})
	f.rule(guarded, models.Rule{RuleType: models.RuleTypeHeader, FieldName: "Authorization", Operator: models.OpContains, Value: "Bearer"})
	f.response(r, models.Response{Name: "open", Priority: 5, Body: "open"})

	result, err := f.engine().Resolve(context.Background(), get("/search"))
	require.NoError(t, err)
	assert.Equal(t, "open", result.Body)
	assert.Equal(t, OutcomeFirst, result.Explanation.Outcome)
}

func TestResolve_FallbackChain(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/chain")
	ruled := f.response(r, models.Response{Name: "ruled", Priority: 100, Body: "ruled"})
	f.rule(ruled, models.Rule{RuleType: models.RuleTypeQuery, FieldName: "mode", Operator: models.OpEquals, Value: "x"})
	f.response(r, models.Response{Name: "default", IsDefault: true, Body: "default"})

	result, err := f.engine().Resolve(context.Background(), get("/chain"))
	require.NoError(t, err)
	assert.Equal(t, "default", result.Body)
	assert.Equal(t, OutcomeDefault, result.Explanation.Outcome)
}

func TestResolve_RulelessResponsesOnlyWinByFallback(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/ruleless")
	f.response(r, models.Response{Name: "b", Priority: 1, Body: "b"})
	f.response(r, models.Response{Name: "a", Priority: 9, Body: "a"})

	result, err := f.engine().Resolve(context.Background(), get("/ruleless"))
	require.NoError(t, err)
	assert.Equal(t, "a", result.Body, "first candidate by priority")
	assert.Equal(t, OutcomeFirst, result.Explanation.Outcome)
}

func TestResolve_FirstDefaultWins(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/defaults")
	f.response(r, models.Response{Name: "zeta", IsDefault: true, Priority: 1, Body: "zeta"})
	f.response(r, models.Response{Name: "alpha", IsDefault: true, Priority: 1, Body: "alpha"})

	result, err := f.engine().Resolve(context.Background(), get("/defaults"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", result.Body)
}

func TestResolve_HeadersAndBodyPassThrough(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/raw")
	f.response(r, models.Response{
		Name:       "raw",
		StatusCode: 418,
		Headers:    `{"Content-Type":"text/plain","X-Retry":3}`,
		Body:       `{ "looks": "like json" ,}`,
	})
	broken := f.route("GET", "/broken")
	f.response(broken, models.Response{Name: "broken", Headers: `not json`, Body: ""})

	e := f.engine()

	result, err := e.Resolve(context.Background(), get("/raw"))
	require.NoError(t, err)
	assert.Equal(t, 418, result.StatusCode)
	assert.Equal(t, map[string]string{"Content-Type": "text/plain", "X-Retry": "3"}, result.Headers)
	assert.Equal(t, `{ "looks": "like json" ,}`, result.Body)

	result, err = e.Resolve(context.Background(), get("/broken"))
	require.NoError(t, err)
	assert.Empty(t, result.Headers)
	assert.NotNil(t, result.Headers)
}

func TestResolve_BodyRules(t *testing.T) {
	f := newFixture(t)
	r := f.route("POST", "/login")
	admin := f.response(r, models.Response{Name: "admin", Priority: 2, Body: "admin"})
	f.rule(admin, models.Rule{RuleType: models.RuleTypeBody, FieldName: "user", Operator: models.OpEquals, Value: "root"})
	f.response(r, models.Response{Name: "user", IsDefault: true, Body: "user"})

	e := f.engine()

	result, err := e.Resolve(context.Background(), Request{Method: "POST", Path: "/login", Body: `{"user":"root"}`})
	require.NoError(t, err)
	assert.Equal(t, "admin", result.Body)

	result, err = e.Resolve(context.Background(), Request{Method: "POST", Path: "/login"})
	require.NoError(t, err)
	assert.Equal(t, "user", result.Body)
}

func TestResolve_DelayIsHonored(t *testing.T) {
	f := newFixture(t)
	slow := f.route("GET", "/slow")
	f.response(slow, models.Response{Name: "slow", DelayMs: 50})
	fast := f.route("GET", "/fast")
	f.response(fast, models.Response{Name: "fast"})

	e := f.engine()

	start := time.Now()
	result, err := e.Resolve(context.Background(), get("/slow"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, result.Explanation.Delay)

	// A slow resolution must not hold up unrelated ones
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = e.Resolve(context.Background(), get("/slow"))
	}()

	time.Sleep(5 * time.Millisecond)
	start = time.Now()
	_, err = e.Resolve(context.Background(), get("/fast"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 40*time.Millisecond)
	wg.Wait()
}

func TestResolve_DelayIsCancellable(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/slow")
	f.response(r, models.Response{Name: "slow", DelayMs: 5000})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := f.engine().Resolve(ctx, get("/slow"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, result)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolve_MaxDelayClamp(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/slow")
	f.response(r, models.Response{Name: "slow", DelayMs: 5000})

	start := time.Now()
	core, logs := observer.New(zap.WarnLevel)
	e := f.engine(WithMaxDelay(10*time.Millisecond), WithLogger(zap.New(core)))
	result, err := e.Resolve(context.Background(), get("/slow"))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, result.Explanation.Delay)
	assert.True(t, result.Explanation.DelayClamped)
	assert.Less(t, time.Since(start), time.Second)

	entries := logs.FilterMessage("Response delay clamped").All()
	require.Len(t, entries, 1)
	assert.Equal(t, 5*time.Second, entries[0].ContextMap()["configured"])
}

func TestResolve_DelayUnclampedByDefault(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/slow")
	f.response(r, models.Response{Name: "slow", DelayMs: 45000})

	result, err := f.engine().Explain(get("/slow"))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, result.Explanation.Delay)
	assert.False(t, result.Explanation.DelayClamped)
}

func TestExplain_SkipsDelay(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/slow")
	f.response(r, models.Response{Name: "slow", DelayMs: 5000})

	start := time.Now()
	result, err := f.engine().Explain(get("/slow"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, result.Explanation.Delay)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolve_UsesOneConsistentView(t *testing.T) {
	f := newFixture(t)
	r := f.route("GET", "/view")
	f.response(r, models.Response{Name: "v1", Body: "v1"})

	e := f.engine()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			result, err := e.Resolve(context.Background(), get("/view"))
			if assert.NoError(t, err) {
				assert.Equal(t, 200, result.StatusCode)
			}
		}()
		go func() {
			defer wg.Done()
			_ = f.store.CreateResponse(&models.Response{RouteID: r.ID, Name: "extra", StatusCode: 200})
		}()
	}
	wg.Wait()
}

// failingRepository fails every lookup
type failingRepository struct{ err error }

func (f failingRepository) FindRoute(string, string) (*models.Route, error) { return nil, f.err }
func (f failingRepository) ActiveRoutes(string) ([]*models.Route, error)    { return nil, f.err }
func (f failingRepository) Responses(int64) ([]*models.Response, error)     { return nil, f.err }
func (f failingRepository) Rules(int64) ([]*models.Rule, error)             { return nil, f.err }

func TestResolve_RepositoryErrors(t *testing.T) {
	boom := errors.New("boom")

	e := NewEngine(StaticSource(failingRepository{err: boom}))
	_, err := e.Resolve(context.Background(), get("/any"))
	assert.ErrorIs(t, err, boom)

	e = NewEngine(SourceFunc(func() (Repository, error) { return nil, boom }))
	_, err = e.Resolve(context.Background(), get("/any"))
	assert.ErrorIs(t, err, boom)
}

func TestCompileTemplate(t *testing.T) {
	tests := []struct {
		path    string
		keys    []string
		matches []string
		misses  []string
	}{
		{
			path:    "/users/{id}/orders/{orderId}",
			keys:    []string{"id", "orderId"},
			matches: []string{"/users/1/orders/2"},
			misses:  []string{"/users/1/orders", "/users/1/orders/2/3"},
		},
		{
			path:    "/v1.0/{name}",
			keys:    []string{"name"},
			matches: []string{"/v1.0/x"},
			misses:  []string{"/v1x0/x"},
		},
		{
			path:    "/empty/{}",
			keys:    nil,
			matches: []string{"/empty/{}"},
			misses:  []string{"/empty/x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			tmpl := compileTemplate(tt.path)
			assert.Equal(t, tt.keys, tmpl.paramKeys)
			for _, m := range tt.matches {
				assert.True(t, tmpl.pattern.MatchString(m), m)
			}
			for _, m := range tt.misses {
				assert.False(t, tmpl.pattern.MatchString(m), m)
			}
		})
	}
}
