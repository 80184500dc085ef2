// Package search is the search hook: cached, retried and ordered backend searches plus a keystroke debouncer.
package search

import (
	"context"
	"strings"
	"sync"

	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/db/searchdb"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/normalize"
	"github.com/meghashyamc/contextview/services/fetch"
)

const (
	hookName     = "search"
	DefaultLimit = 20
)

type Backend interface {
	Search(ctx context.Context, query string, limit int) ([]models.RawSearchResult, error)
}

// History receives every successful non-empty search. kvdb.BoltDB implements it.
type History interface {
	RecordSearch(query string, resultCount int) error
}

// Catalog remembers returned results for suggestions and answers searches while the backend is unreachable.
// searchdb.BleveDB implements it.
type Catalog interface {
	IndexResults(results []models.SearchResult) error
	Search(queryString string, limit int, offset int) (*searchdb.Response, error)
}

type Observer interface {
	Retry(hook string)
	HookError(hook string)
}

type Options struct {
	Limit    int
	Policy   fetch.RetryPolicy
	History  History
	Catalog  Catalog
	Observer Observer
}

type Service struct {
	logger  logger.Logger
	backend Backend
	cache   *cache.Cache
	opts    Options
	store   *fetch.Store[[]models.SearchResult]

	mu         sync.Mutex
	generation uint64
	query      string
}

// View is what a search box renders.
type View struct {
	Query        string                `json:"query"`
	Results      []models.SearchResult `json:"results"`
	IsLoading    bool                  `json:"isLoading"`
	Error        string                `json:"error,omitempty"`
	FailureCount int                   `json:"failureCount"`
	CanRetry     bool                  `json:"canRetry"`
	Attempt      string                `json:"attempt,omitempty"`
}

func New(logger logger.Logger, backend Backend, c *cache.Cache, opts Options) *Service {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Policy.MaxRetries == 0 && opts.Policy.BaseDelay == 0 {
		opts.Policy = fetch.DefaultRetryPolicy()
	}

	return &Service{
		logger:  logger,
		backend: backend,
		cache:   c,
		opts:    opts,
		store:   fetch.NewStore[[]models.SearchResult](),
	}
}

// Search runs query through the cache and the backend. An empty query resolves to no results without a request.
// When a newer search starts before this one finishes, the result is still returned and cached but not published.
func (s *Service) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	return s.run(ctx, query, false)
}

// Refetch repeats the current query against the backend, skipping the cache.
func (s *Service) Refetch(ctx context.Context) ([]models.SearchResult, error) {
	return s.run(ctx, s.Query(), true)
}

func (s *Service) run(ctx context.Context, query string, bypassCache bool) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	generation := s.begin(query)

	if query == "" {
		results := []models.SearchResult{}
		s.publish(generation, fetch.Succeed(results))
		return results, nil
	}

	key := cache.SearchKey(query, s.opts.Limit)
	if !bypassCache {
		if cached, ok := cache.GetTyped[[]models.SearchResult](s.cache, key); ok {
			s.logger.Debug("search served from cache", "query", query)
			s.publish(generation, fetch.Succeed(cached))
			return cached, nil
		}
	}

	s.publish(generation, fetch.Start[[]models.SearchResult](false))

	load := func(ctx context.Context) ([]models.SearchResult, error) {
		return fetch.Do(ctx, s.opts.Policy, func(ctx context.Context) ([]models.SearchResult, error) {
			raw, err := s.backend.Search(ctx, query, s.opts.Limit)
			if err != nil {
				return nil, err
			}
			return normalize.SearchResults(raw), nil
		}, func(attempt int, err error) {
			s.logger.Warn("search attempt failed, retrying", "query", query,
				"attempt", fetch.AttemptLabel(attempt+1, s.opts.Policy.MaxAttempts()), "err", err.Error())
			if s.opts.Observer != nil {
				s.opts.Observer.Retry(hookName)
			}
			s.publish(generation, fetch.AttemptFailed[[]models.SearchResult](err))
		})
	}

	var results []models.SearchResult
	var err error
	if bypassCache {
		results, err = load(ctx)
		if err == nil {
			s.cache.Set(key, results, cache.SearchTTL)
		}
	} else {
		results, err = cache.GetOrLoad(ctx, s.cache, key, cache.SearchTTL, load)
	}

	if err != nil {
		s.logger.Error("search failed", "query", query, "err", err.Error())
		if s.opts.Observer != nil {
			s.opts.Observer.HookError(hookName)
		}
		if models.IsNetworkError(err) {
			if offline, ok := s.searchCatalog(query); ok {
				s.publish(generation, fetch.Succeed(offline))
				return offline, nil
			}
		}
		s.publish(generation, fetch.Fail[[]models.SearchResult](err, false))
		return nil, err
	}

	s.remember(query, results)
	s.publish(generation, fetch.Succeed(results))
	return results, nil
}

func (s *Service) begin(query string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.query = query
	return s.generation
}

// publish drops events from superseded searches. The generation is read under the store lock, so an older
// search's event can never land after a newer one's.
func (s *Service) publish(generation uint64, event fetch.Event[[]models.SearchResult]) bool {
	_, published := s.store.DispatchIf(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return generation == s.generation
	}, event)

	if !published {
		s.logger.Debug("discarding superseded search event", "generation", generation)
	}
	return published
}

// searchCatalog answers query from results seen earlier. Offline results are neither cached nor recorded.
func (s *Service) searchCatalog(query string) ([]models.SearchResult, bool) {
	if s.opts.Catalog == nil {
		return nil, false
	}

	response, err := s.opts.Catalog.Search(query, s.opts.Limit, 0)
	if err != nil {
		s.logger.Warn("could not search catalog", "query", query, "err", err.Error())
		return nil, false
	}
	if len(response.Results) == 0 {
		return nil, false
	}

	results := make([]models.SearchResult, 0, len(response.Results))
	for _, hit := range response.Results {
		kind := models.ResultKind(hit.Kind)
		results = append(results, models.SearchResult{
			ID:       hit.ID,
			FilePath: hit.Path,
			FileName: hit.Name,
			Kind:     kind,
			MimeType: normalize.MimeType(kind),
			Tags:     hit.Tags,
			Offline:  true,
		})
	}
	s.logger.Warn("backend unreachable, serving catalog results", "query", query, "count", len(results))
	return results, true
}

func (s *Service) remember(query string, results []models.SearchResult) {
	if s.opts.History != nil {
		if err := s.opts.History.RecordSearch(query, len(results)); err != nil {
			s.logger.Warn("could not record search history", "query", query, "err", err.Error())
		}
	}
	if s.opts.Catalog != nil && len(results) > 0 {
		if err := s.opts.Catalog.IndexResults(results); err != nil {
			s.logger.Warn("could not catalog search results", "query", query, "err", err.Error())
		}
	}
}

func (s *Service) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.query
}

func (s *Service) Snapshot() fetch.Snapshot[[]models.SearchResult] {
	return s.store.Snapshot()
}

func (s *Service) View() View {
	return s.view(s.store.Snapshot())
}

func (s *Service) view(snapshot fetch.Snapshot[[]models.SearchResult]) View {
	view := View{
		Query:        s.Query(),
		Results:      snapshot.Data,
		IsLoading:    snapshot.IsLoading(),
		FailureCount: snapshot.FailureCount,
	}
	if view.Results == nil {
		view.Results = []models.SearchResult{}
	}
	if snapshot.IsLoading() && snapshot.FailureCount > 0 {
		view.Attempt = fetch.AttemptLabel(snapshot.FailureCount+1, s.opts.Policy.MaxAttempts())
	}
	if snapshot.Status == fetch.StatusError && snapshot.Err != nil {
		view.Error = models.ErrorMessage(snapshot.Err)
		view.CanRetry = s.opts.Policy.ShouldRetry(snapshot.FailureCount, snapshot.Err)
	}
	return view
}

// Subscribe calls fn with every published state until the returned func is called.
func (s *Service) Subscribe(fn func(View)) func() {
	return s.store.Subscribe(func(snapshot fetch.Snapshot[[]models.SearchResult]) {
		fn(s.view(snapshot))
	})
}
