// Package graph is the knowledge-graph hook. The graph is fetched for one entity, or whole when no entity is given,
// and replaced wholesale on every fetch.
package graph

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/normalize"
	"github.com/meghashyamc/contextview/services/fetch"
)

const (
	hookName      = "graph"
	maxRetryCount = 3
)

type Backend interface {
	GetGraph(ctx context.Context, entity string) (models.RawGraph, error)
}

type Observer interface {
	HookError(hook string)
}

type Service struct {
	logger   logger.Logger
	backend  Backend
	cache    *cache.Cache
	observer Observer
	store    *fetch.Store[*models.GraphData]

	mu                sync.Mutex
	lastFetchedEntity string
}

type View struct {
	Graph             *models.GraphData      `json:"graph"`
	EdgeLabels        []models.EdgeEndpoints `json:"edgeLabels"`
	IsLoading         bool                   `json:"isLoading"`
	Error             string                 `json:"error,omitempty"`
	IsError           bool                   `json:"isError"`
	CanRetry          bool                   `json:"canRetry"`
	RetryCount        int                    `json:"retryCount"`
	LastFetchedEntity string                 `json:"lastFetchedEntity"`
}

func New(logger logger.Logger, backend Backend, c *cache.Cache, observer Observer) *Service {
	return &Service{
		logger:   logger,
		backend:  backend,
		cache:    c,
		observer: observer,
		store:    fetch.NewStore[*models.GraphData](),
	}
}

func (s *Service) Fetch(ctx context.Context, entity string) (*models.GraphData, error) {
	return s.fetch(ctx, strings.TrimSpace(entity), false)
}

// Refetch repeats the last fetch as a retry. It skips the cache and counts toward the retry limit. Once retrying
// is no longer allowed it returns the current error without a request.
func (s *Service) Refetch(ctx context.Context) (*models.GraphData, error) {
	if snapshot := s.store.Snapshot(); snapshot.Status == fetch.StatusError && !canRetry(snapshot) {
		return nil, snapshot.Err
	}
	return s.fetch(ctx, s.LastFetchedEntity(), true)
}

func (s *Service) fetch(ctx context.Context, entity string, retry bool) (*models.GraphData, error) {
	s.mu.Lock()
	s.lastFetchedEntity = entity
	s.mu.Unlock()

	key := cache.GraphKey(entity)
	if !retry {
		if cached, ok := cache.GetTyped[*models.GraphData](s.cache, key); ok {
			s.store.Dispatch(fetch.Start[*models.GraphData](false))
			s.store.Dispatch(fetch.Succeed(cached))
			return cached, nil
		}
	}

	s.store.Dispatch(fetch.Start[*models.GraphData](retry))

	raw, err := s.backend.GetGraph(ctx, entity)
	if err != nil {
		s.logger.Error("error fetching graph data", "entity", entity, "err", err.Error())
		if s.observer != nil {
			s.observer.HookError(hookName)
		}
		s.store.Dispatch(fetch.Fail[*models.GraphData](err, false))
		return nil, err
	}

	data := normalize.Graph(raw)
	s.cache.Set(key, &data, cache.GraphTTL)
	s.store.Dispatch(fetch.Succeed(&data))
	return &data, nil
}

func (s *Service) LastFetchedEntity() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastFetchedEntity
}

func (s *Service) View() View {
	return s.view(s.store.Snapshot())
}

func (s *Service) view(snapshot fetch.Snapshot[*models.GraphData]) View {
	entity := s.LastFetchedEntity()
	view := View{
		Graph:             snapshot.Data,
		EdgeLabels:        []models.EdgeEndpoints{},
		IsLoading:         snapshot.IsLoading(),
		RetryCount:        snapshot.RetryCount,
		LastFetchedEntity: entity,
	}
	if snapshot.Data != nil {
		view.EdgeLabels = normalize.GraphEdgeLabels(*snapshot.Data)
	}
	if snapshot.Status == fetch.StatusError && snapshot.Err != nil {
		view.Error = ErrorMessage(snapshot.Err, entity)
		view.IsError = true
		view.CanRetry = canRetry(snapshot)
	}
	return view
}

func canRetry(snapshot fetch.Snapshot[*models.GraphData]) bool {
	return snapshot.RetryCount < maxRetryCount && !models.IsNotFound(snapshot.Err)
}

func (s *Service) Subscribe(fn func(View)) func() {
	return s.store.Subscribe(func(snapshot fetch.Snapshot[*models.GraphData]) {
		fn(s.view(snapshot))
	})
}

// ErrorMessage is the text shown for a failed graph fetch of entity.
func ErrorMessage(err error, entity string) string {
	switch {
	case models.IsNotFound(err):
		if entity != "" {
			return fmt.Sprintf(`No graph data found for entity "%s"`, entity)
		}
		return "No graph data available"
	case models.StatusCode(err) == http.StatusTooManyRequests:
		return "Too many requests. Please wait a moment and try again."
	default:
		if message := models.ErrorMessage(err); message != "" {
			return message
		}
		return "Failed to load graph data"
	}
}
