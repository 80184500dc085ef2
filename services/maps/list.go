// Package maps holds the mind-map hooks: the list of maps and one editor per open map.
package maps

import (
	"context"
	"net/http"
	"strings"

	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/normalize"
	"github.com/meghashyamc/contextview/services/fetch"
)

const (
	listHookName  = "maps"
	maxRetryCount = 3
)

type ListBackend interface {
	ListMaps(ctx context.Context) ([]models.RawMindMap, error)
	CreateMap(ctx context.Context, name string) (models.RawMindMap, error)
	DeleteMap(ctx context.Context, mapID int) error
}

type Observer interface {
	HookError(hook string)
}

// List is the maps overview. The local list only changes after the backend confirms a create or delete.
type List struct {
	logger   logger.Logger
	backend  ListBackend
	cache    *cache.Cache
	observer Observer
	store    *fetch.Store[[]models.MindMap]
}

type ListView struct {
	Maps       []models.MindMap `json:"maps"`
	IsLoading  bool             `json:"isLoading"`
	Error      string           `json:"error,omitempty"`
	CanRetry   bool             `json:"canRetry"`
	RetryCount int              `json:"retryCount"`
}

func NewList(logger logger.Logger, backend ListBackend, c *cache.Cache, observer Observer) *List {
	return &List{
		logger:   logger,
		backend:  backend,
		cache:    c,
		observer: observer,
		store:    fetch.NewStore[[]models.MindMap](),
	}
}

func (l *List) Load(ctx context.Context) ([]models.MindMap, error) {
	return l.load(ctx, false)
}

// Refetch reloads the list as a retry, skipping the cache. Once retrying is no longer allowed it returns the current
// error without a request.
func (l *List) Refetch(ctx context.Context) ([]models.MindMap, error) {
	if snapshot := l.store.Snapshot(); snapshot.Status == fetch.StatusError && !canRetry(snapshot) {
		return nil, snapshot.Err
	}
	return l.load(ctx, true)
}

func (l *List) load(ctx context.Context, retry bool) ([]models.MindMap, error) {
	if !retry {
		if cached, ok := cache.GetTyped[[]models.MindMap](l.cache, cache.MapsKey()); ok {
			l.store.Dispatch(fetch.Start[[]models.MindMap](false))
			l.store.Dispatch(fetch.Succeed(cached))
			return cached, nil
		}
	}

	l.store.Dispatch(fetch.Start[[]models.MindMap](retry))

	raws, err := l.backend.ListMaps(ctx)
	if err != nil {
		l.fail("error loading maps", err)
		return nil, err
	}

	maps := normalize.MindMaps(raws)
	l.cache.Set(cache.MapsKey(), maps, cache.MapsTTL)
	l.store.Dispatch(fetch.Succeed(maps))
	return maps, nil
}

// CreateMap creates name on the backend and prepends the confirmed map. A duplicate name comes back as a 409
// APIError with the backend's message.
func (l *List) CreateMap(ctx context.Context, name string) (models.MindMap, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.MindMap{}, models.NewAPIError("Map name is required", http.StatusUnprocessableEntity)
	}

	raw, err := l.backend.CreateMap(ctx, name)
	if err != nil {
		l.fail("error creating map", err, "name", name)
		return models.MindMap{}, err
	}

	created := normalize.MindMap(raw)
	l.mutate(func(maps []models.MindMap) []models.MindMap {
		return append([]models.MindMap{created}, maps...)
	})
	l.logger.Info("created map", "id", created.ID, "name", created.Name)
	return created, nil
}

func (l *List) DeleteMap(ctx context.Context, mapID int) error {
	if err := l.backend.DeleteMap(ctx, mapID); err != nil {
		l.fail("error deleting map", err, "id", mapID)
		return err
	}

	l.mutate(func(maps []models.MindMap) []models.MindMap {
		kept := make([]models.MindMap, 0, len(maps))
		for _, m := range maps {
			if m.ID != mapID {
				kept = append(kept, m)
			}
		}
		return kept
	})
	l.cache.Delete(cache.MapKey(mapID))
	l.logger.Info("deleted map", "id", mapID)
	return nil
}

// mutate applies a confirmed change to the published list and the cached copy. A list that was never loaded is
// left alone and the cached copy dropped, so the next Load asks the backend for the whole list.
func (l *List) mutate(change func([]models.MindMap) []models.MindMap) {
	var updated []models.MindMap
	l.store.Update(func(current fetch.Snapshot[[]models.MindMap]) fetch.Snapshot[[]models.MindMap] {
		if current.Data == nil {
			return current
		}
		updated = change(current.Data)
		return fetch.Transition(current, fetch.Succeed(updated))
	})

	if updated == nil {
		l.cache.Delete(cache.MapsKey())
		return
	}
	l.cache.Set(cache.MapsKey(), updated, cache.MapsTTL)
}

func (l *List) fail(msg string, err error, keyvals ...any) {
	l.logger.Error(msg, append(keyvals, "err", err.Error())...)
	if l.observer != nil {
		l.observer.HookError(listHookName)
	}
	l.store.Dispatch(fetch.Fail[[]models.MindMap](err, true))
}

// Name returns the name of a map from the last list, if it is known.
func (l *List) Name(mapID int) (string, bool) {
	for _, m := range l.store.Snapshot().Data {
		if m.ID == mapID {
			return m.Name, true
		}
	}
	return "", false
}

func (l *List) View() ListView {
	return listView(l.store.Snapshot())
}

func (l *List) Subscribe(fn func(ListView)) func() {
	return l.store.Subscribe(func(snapshot fetch.Snapshot[[]models.MindMap]) {
		fn(listView(snapshot))
	})
}

func listView(snapshot fetch.Snapshot[[]models.MindMap]) ListView {
	view := ListView{
		Maps:       snapshot.Data,
		IsLoading:  snapshot.IsLoading(),
		RetryCount: snapshot.RetryCount,
	}
	if view.Maps == nil {
		view.Maps = []models.MindMap{}
	}
	if snapshot.Status == fetch.StatusError && snapshot.Err != nil {
		view.Error = models.ErrorMessage(snapshot.Err)
		view.CanRetry = canRetry(snapshot)
	}
	return view
}

func canRetry(snapshot fetch.Snapshot[[]models.MindMap]) bool {
	return snapshot.RetryCount < maxRetryCount && !models.IsNotFound(snapshot.Err)
}
