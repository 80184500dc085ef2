package graph

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	entities []string
	graph    models.RawGraph
	err      error
}

func (f *fakeBackend) GetGraph(ctx context.Context, entity string) (models.RawGraph, error) {
	f.entities = append(f.entities, entity)
	return f.graph, f.err
}

func setupTestService(backend *fakeBackend) *Service {
	return New(logger.New(), backend, cache.New(logger.New(), cache.DefaultMaxSize), nil)
}

func TestSamsungNotFound(t *testing.T) {
	assert := require.New(t)
	backend := &fakeBackend{err: models.NewNotFoundError("Entity not found")}
	service := setupTestService(backend)

	data, err := service.Fetch(context.Background(), "Samsung")
	assert.Error(err)
	assert.Nil(data)

	view := service.View()
	assert.Equal(`No graph data found for entity "Samsung"`, view.Error)
	assert.True(view.IsError)
	assert.False(view.CanRetry)
	assert.Nil(view.Graph)
	assert.False(view.IsLoading)
	assert.Equal("Samsung", view.LastFetchedEntity)

	_, err = service.Refetch(context.Background())
	assert.True(errors.Is(err, models.ErrNotFound))
	assert.Equal([]string{"Samsung"}, backend.entities, "a missing entity is not asked for again")
}

func TestFetchCachesAndRefetchRetries(t *testing.T) {
	assert := require.New(t)
	backend := &fakeBackend{graph: models.RawGraph{
		Nodes: []models.RawGraphNode{
			{ID: "Samsung", Label: "Samsung", Type: "entity"},
			{ID: "/docs/contract.pdf", Label: "contract.pdf", Type: "file"},
		},
		Edges: []models.RawGraphEdge{{From: "Samsung", To: "/docs/contract.pdf", Label: "mentioned_in"}},
	}}
	service := setupTestService(backend)
	ctx := context.Background()

	data, err := service.Fetch(ctx, "Samsung")
	assert.NoError(err)
	assert.Len(data.Nodes, 2)

	_, err = service.Fetch(ctx, "Samsung")
	assert.NoError(err)
	assert.Equal([]string{"Samsung"}, backend.entities, "second fetch is served from the cache")

	view := service.View()
	assert.Equal("contract.pdf", view.EdgeLabels[0].ToLabel)

	backend.err = models.NewServerError("", http.StatusBadGateway)
	for i := 1; i <= 3; i++ {
		_, err = service.Refetch(ctx)
		assert.Error(err)
		view = service.View()
		assert.Equal(i, view.RetryCount)
		assert.Nil(view.Graph, "data is cleared on error")
	}
	assert.False(view.CanRetry)
	assert.Len(backend.entities, 4)

	backend.err = nil
	_, err = service.Refetch(ctx)
	assert.True(errors.Is(err, models.ErrServer), "no retry once the limit is reached")
	assert.Len(backend.entities, 4)
	assert.Equal(3, service.View().RetryCount)

	_, err = service.Fetch(ctx, "Samsung")
	assert.NoError(err)
	assert.Zero(service.View().RetryCount)
}

func TestErrorMessages(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		entity   string
		expected string
	}{
		{name: "NotFoundFullGraph", err: models.NewNotFoundError(""), expected: "No graph data available"},
		{name: "TooManyRequests", err: models.NewAPIError("Too many requests", http.StatusTooManyRequests), entity: "Q3", expected: "Too many requests. Please wait a moment and try again."},
		{name: "Network", err: models.NewNetworkError("", nil), expected: "Network connection failed"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.expected, ErrorMessage(testCase.err, testCase.entity))
		})
	}
}

func TestFirstFailureCanRetry(t *testing.T) {
	assert := require.New(t)
	backend := &fakeBackend{err: models.NewAPIError("Too many requests", http.StatusTooManyRequests)}
	service := setupTestService(backend)

	_, err := service.Fetch(context.Background(), "")
	assert.Error(err)

	view := service.View()
	assert.True(view.CanRetry)
	assert.Zero(view.RetryCount)
	assert.Empty(view.LastFetchedEntity)
}
