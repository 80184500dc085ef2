package search

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/db/searchdb"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/services/fetch"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu      sync.Mutex
	queries []string
	respond func(query string) ([]models.RawSearchResult, error)
}

func (f *fakeBackend) Search(ctx context.Context, query string, limit int) ([]models.RawSearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	respond := f.respond
	f.mu.Unlock()
	return respond(query)
}

func (f *fakeBackend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeHistory struct {
	mu      sync.Mutex
	entries map[string]int
}

func (f *fakeHistory) RecordSearch(query string, resultCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = make(map[string]int)
	}
	f.entries[query] = resultCount
	return nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	indexed []models.SearchResult
}

func (f *fakeCatalog) IndexResults(results []models.SearchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, results...)
	return nil
}

func (f *fakeCatalog) Search(queryString string, limit int, offset int) (*searchdb.Response, error) {
	return &searchdb.Response{Results: []searchdb.Result{}}, nil
}

type countingObserver struct {
	mu      sync.Mutex
	retries int
	errors  int
}

func (o *countingObserver) Retry(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func (o *countingObserver) HookError(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors++
}

func instantPolicy() fetch.RetryPolicy {
	policy := fetch.DefaultRetryPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return policy
}

func setupTestService(backend *fakeBackend, opts Options) *Service {
	if opts.Policy.Sleep == nil {
		opts.Policy = instantPolicy()
	}
	return New(logger.New(), backend, cache.New(logger.New(), cache.DefaultMaxSize), opts)
}

func invoiceResults(string) ([]models.RawSearchResult, error) {
	caption := "March invoice"
	return []models.RawSearchResult{
		{FilePath: "/docs/invoices/march.pdf", Type: "pdf", Tags: []string{"invoice", "samsung"}, Similarity: 0.934, UserCaption: &caption},
		{FilePath: `C:\scans\receipt.png`, Type: "image", Tags: []string{"invoice"}, Similarity: 0.41},
	}, nil
}

func TestInvoiceSearch(t *testing.T) {
	assert := require.New(t)
	backend := &fakeBackend{respond: invoiceResults}
	history := &fakeHistory{}
	catalog := &fakeCatalog{}
	service := setupTestService(backend, Options{History: history, Catalog: catalog})

	var views []View
	unsubscribe := service.Subscribe(func(v View) { views = append(views, v) })
	defer unsubscribe()

	results, err := service.Search(context.Background(), "  invoice ")
	assert.NoError(err)
	assert.Len(results, 2)

	assert.Equal("march.pdf", results[0].FileName)
	assert.Equal("application/pdf", results[0].MimeType)
	assert.Equal(93, results[0].SimilarityScore)
	assert.Equal("March invoice", results[0].UserCaption)
	assert.Equal("receipt.png", results[1].FileName)
	assert.Equal("image/jpeg", results[1].MimeType)

	view := service.View()
	assert.Equal("invoice", view.Query)
	assert.False(view.IsLoading)
	assert.Empty(view.Error)
	assert.Equal(results, view.Results)

	assert.Len(views, 2)
	assert.True(views[0].IsLoading)
	assert.False(views[1].IsLoading)

	again, err := service.Search(context.Background(), "invoice")
	assert.NoError(err)
	assert.Equal(results, again)
	assert.Equal([]string{"invoice"}, backend.calls(), "second search is served from the cache")

	assert.Equal(2, history.entries["invoice"])
	assert.Len(catalog.indexed, 2)

	_, err = service.Refetch(context.Background())
	assert.NoError(err)
	assert.Len(backend.calls(), 2, "refetch bypasses the cache")
}

func TestEmptyQueryMakesNoRequest(t *testing.T) {
	assert := require.New(t)
	backend := &fakeBackend{respond: invoiceResults}
	service := setupTestService(backend, Options{})

	results, err := service.Search(context.Background(), "   ")
	assert.NoError(err)
	assert.Empty(results)
	assert.NotNil(results)
	assert.Empty(backend.calls())
	assert.Equal(fetch.StatusSuccess, service.Snapshot().Status)
}

func TestRetryCeiling(t *testing.T) {
	assert := require.New(t)
	backend := &fakeBackend{respond: func(string) ([]models.RawSearchResult, error) {
		return nil, models.NewServerError("Search failed", http.StatusInternalServerError)
	}}
	observer := &countingObserver{}
	service := setupTestService(backend, Options{Observer: observer})

	var attempts []string
	unsubscribe := service.Subscribe(func(v View) {
		if v.Attempt != "" {
			attempts = append(attempts, v.Attempt)
		}
	})
	defer unsubscribe()

	_, err := service.Search(context.Background(), "invoice")
	assert.True(errors.Is(err, models.ErrServer))
	assert.Len(backend.calls(), 4, "one attempt plus three retries, never a fifth")

	view := service.View()
	assert.Equal("Search failed", view.Error)
	assert.Equal(4, view.FailureCount)
	assert.False(view.CanRetry)
	assert.Empty(view.Results)
	assert.Equal([]string{"Attempt 2/4", "Attempt 3/4", "Attempt 4/4"}, attempts)
	assert.Equal(3, observer.retries)
	assert.Equal(1, observer.errors)

	_, err = service.Search(context.Background(), "invoice")
	assert.Error(err)
	assert.Len(backend.calls(), 8, "errors are not cached")
}

func TestBadRequestIsNotRetried(t *testing.T) {
	assert := require.New(t)
	backend := &fakeBackend{respond: func(string) ([]models.RawSearchResult, error) {
		return nil, models.NewAPIError("query too long", http.StatusBadRequest)
	}}
	service := setupTestService(backend, Options{})

	_, err := service.Search(context.Background(), "invoice")
	assert.Error(err)
	assert.Len(backend.calls(), 1)

	view := service.View()
	assert.Equal("query too long", view.Error)
	assert.Equal(1, view.FailureCount)
	assert.False(view.CanRetry)
}

func TestOutOfOrderResponsesAreDiscarded(t *testing.T) {
	assert := require.New(t)

	releaseSlow := make(chan struct{})
	slowStarted := make(chan struct{})
	backend := &fakeBackend{respond: func(query string) ([]models.RawSearchResult, error) {
		if query == "inv" {
			close(slowStarted)
			<-releaseSlow
		}
		return []models.RawSearchResult{{FilePath: "/docs/" + query + ".pdf", Type: "pdf"}}, nil
	}}
	service := setupTestService(backend, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		results, err := service.Search(context.Background(), "inv")
		assert.NoError(err)
		assert.Equal("/docs/inv.pdf", results[0].FilePath, "the caller still gets its own answer")
	}()
	<-slowStarted

	_, err := service.Search(context.Background(), "invoice")
	assert.NoError(err)

	close(releaseSlow)
	<-done

	view := service.View()
	assert.Equal("invoice", view.Query)
	assert.Len(view.Results, 1)
	assert.Equal("/docs/invoice.pdf", view.Results[0].FilePath)
}

func TestDebounceCoalescesChanges(t *testing.T) {
	assert := require.New(t)
	backend := &fakeBackend{respond: invoiceResults}
	service := setupTestService(backend, Options{})

	searched := make(chan string, 5)
	debouncer := NewDebouncer(50*time.Millisecond, func(query string) {
		_, _ = service.Search(context.Background(), query)
		searched <- query
	})
	defer debouncer.Stop()

	for _, value := range []string{"i", "in", "inv", "invo", "invoice"} {
		debouncer.Change(value)
	}
	assert.True(debouncer.Pending())

	select {
	case query := <-searched:
		assert.Equal("invoice", query)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced search never ran")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Len(searched, 0)
	assert.Equal([]string{"invoice"}, backend.calls())
	assert.False(debouncer.Pending())
}

func TestDebouncerFlushAndStop(t *testing.T) {
	assert := require.New(t)

	var mu sync.Mutex
	var delivered []string
	debouncer := NewDebouncer(time.Hour, func(value string) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, value)
	})

	debouncer.Change("a")
	debouncer.Change("ab")
	debouncer.Flush()
	debouncer.Flush()

	debouncer.Change("abc")
	debouncer.Stop()
	debouncer.Change("abcd")
	debouncer.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal([]string{"ab"}, delivered)
}

func TestUnreachableBackendFallsBackToCatalog(t *testing.T) {
	assert := require.New(t)
	catalog, err := searchdb.NewMemOnly(logger.New())
	assert.NoError(err)
	defer catalog.Close()

	backend := &fakeBackend{respond: invoiceResults}
	history := &fakeHistory{}
	service := setupTestService(backend, Options{History: history, Catalog: catalog})

	_, err = service.Search(context.Background(), "invoice")
	assert.NoError(err)

	backend.respond = func(string) ([]models.RawSearchResult, error) {
		return nil, models.NewNetworkError("", errors.New("connection refused"))
	}
	results, err := service.Refetch(context.Background())
	assert.NoError(err)
	assert.NotEmpty(results)
	for _, result := range results {
		assert.True(result.Offline)
	}
	assert.Empty(service.View().Error)
	assert.Equal(1, history.entries["invoice"], "offline answers are not recorded")

	_, err = service.Search(context.Background(), "samsung")
	assert.NoError(err, "the catalog also knows tags")

	_, err = service.Search(context.Background(), "unseen")
	assert.True(models.IsNetworkError(err), "nothing in the catalog leaves the network error")

	backend.respond = func(string) ([]models.RawSearchResult, error) {
		return nil, models.NewServerError("", http.StatusInternalServerError)
	}
	_, err = service.Refetch(context.Background())
	assert.True(errors.Is(err, models.ErrServer), "only unreachable backends fall back")
}
