package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	req, err := buildRequest("post", "/users/1?verbose=true&tag=a&tag=b", []string{"X-Role: admin", "X-Role:  ops "}, `{"id":1}`)
	require.NoError(t, err)

	assert.Equal(t, "post", req.Method)
	assert.Equal(t, "/users/1", req.Path)
	assert.Equal(t, []string{"true"}, req.Query["verbose"])
	assert.Equal(t, []string{"a", "b"}, req.Query["tag"])
	assert.Equal(t, []string{"admin", "ops"}, req.Headers["X-Role"])
	assert.Equal(t, `{"id":1}`, req.Body)
}

func TestBuildRequest_NoQuery(t *testing.T) {
	req, err := buildRequest("GET", "/health", nil, "")
	require.NoError(t, err)

	assert.Equal(t, "/health", req.Path)
	assert.Empty(t, req.Query)
	assert.Empty(t, req.Headers)
}

func TestBuildRequest_Invalid(t *testing.T) {
	_, err := buildRequest("GET", "/a?%zz", nil, "")
	assert.Error(t, err)

	_, err = buildRequest("GET", "/a", []string{"no-colon"}, "")
	assert.Error(t, err)

	_, err = buildRequest("GET", "/a", []string{": value"}, "")
	assert.Error(t, err)
}
