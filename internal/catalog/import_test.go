package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/storage"
)

func TestImport_CreatesEnvironment(t *testing.T) {
	store := storage.NewMemoryStorage()
	doc, err := Parse([]byte(yamlCatalog))
	require.NoError(t, err)

	result, err := Import(store, doc)
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, Counts{Routes: 1, Responses: 2, Rules: 1}, result.Imported)

	env, err := store.GetEnvironment(result.EnvironmentID)
	require.NoError(t, err)
	assert.Equal(t, "dev", env.Name)
	assert.True(t, env.IsActive, "absent is_active means active")

	routes, err := store.GetRoutesByEnvironment(env.ID)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "GET", routes[0].Method)

	responses, err := store.GetResponsesByRoute(routes[0].ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "fallback", responses[0].Name, "default response sorts first")
	assert.Equal(t, map[string]string{"Content-Type": "application/json"}, responses[1].DecodeHeaders())
}

func TestImport_ReplacesRoutesOfExistingEnvironment(t *testing.T) {
	store := storage.NewMemoryStorage()
	first, err := Parse([]byte(yamlCatalog))
	require.NoError(t, err)
	created, err := Import(store, first)
	require.NoError(t, err)

	second := &Document{
		Environment: Environment{Name: "dev", Description: "replaced", IsActive: boolPtr(false)},
		Routes: []Route{{
			Path:      "/orders",
			Method:    "POST",
			Responses: []Response{{Name: "created", StatusCode: 201}},
		}},
	}
	result, err := Import(store, second)
	require.NoError(t, err)

	assert.False(t, result.Created)
	assert.Equal(t, created.EnvironmentID, result.EnvironmentID)

	env, err := store.GetEnvironment(result.EnvironmentID)
	require.NoError(t, err)
	assert.Equal(t, "replaced", env.Description)
	assert.False(t, env.IsActive)

	routes, err := store.GetRoutesByEnvironment(env.ID)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "/orders", routes[0].Path)

	all, err := store.GetAllRoutes()
	require.NoError(t, err)
	assert.Len(t, all, 1, "old routes are removed")
}

func TestImport_NoName(t *testing.T) {
	_, err := Import(storage.NewMemoryStorage(), &Document{})
	assert.Error(t, err)

	_, err = Import(storage.NewMemoryStorage(), nil)
	assert.Error(t, err)
}

func TestExport_RoundTrip(t *testing.T) {
	store := storage.NewMemoryStorage()
	doc, err := Parse([]byte(yamlCatalog))
	require.NoError(t, err)
	result, err := Import(store, doc)
	require.NoError(t, err)

	exported, err := Export(store, result.EnvironmentID)
	require.NoError(t, err)

	require.NotNil(t, exported.Metadata)
	assert.Equal(t, FormatVersion, exported.Metadata.Version)
	assert.Equal(t, 1, exported.Metadata.TotalRoutes)
	assert.False(t, exported.Metadata.ExportedAt.IsZero())

	// Re-importing the export into a fresh store reproduces the same configuration
	fresh := storage.NewMemoryStorage()
	_, err = Import(fresh, exported)
	require.NoError(t, err)

	again, err := Export(fresh, result.EnvironmentID)
	require.NoError(t, err)

	ignore := cmp.Options{
		cmpopts.IgnoreFields(Document{}, "Metadata"),
		cmpopts.IgnoreFields(Environment{}, "ID"),
		cmpopts.IgnoreFields(Route{}, "ID"),
		cmpopts.IgnoreFields(Response{}, "ID"),
		cmpopts.IgnoreFields(Rule{}, "ID"),
	}
	if diff := cmp.Diff(exported, again, ignore); diff != "" {
		t.Errorf("export mismatch after re-import (-want +got):\n%s", diff)
	}
}

func TestExport_UnknownEnvironment(t *testing.T) {
	_, err := Export(storage.NewMemoryStorage(), 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExport_KeepsStoredText(t *testing.T) {
	store := storage.NewMemoryStorage()
	env := &models.Environment{Name: "raw", IsActive: true}
	require.NoError(t, store.CreateEnvironment(env))
	route := &models.Route{EnvironmentID: env.ID, Path: "/raw", Method: "GET", IsActive: true}
	require.NoError(t, store.CreateRoute(route))
	require.NoError(t, store.CreateResponse(&models.Response{
		RouteID: route.ID, Name: "r", StatusCode: 200, Headers: "not json", Body: "<xml/>",
	}))

	doc, err := Export(store, env.ID)
	require.NoError(t, err)

	resp := doc.Routes[0].Responses[0]
	assert.Equal(t, Text("not json"), resp.Headers)
	assert.Equal(t, Text("<xml/>"), resp.Body)
}
