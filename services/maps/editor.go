package maps

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/normalize"
	"github.com/meghashyamc/contextview/services/fetch"
)

const (
	editorHookName     = "map"
	mapNotFoundMessage = "Map not found. It may have been deleted."
)

type EditorBackend interface {
	GetMap(ctx context.Context, mapID int) (models.RawMapData, error)
	AddMapNode(ctx context.Context, mapID int, request models.AddNodeRequest) (models.StatusResponse, error)
	UpdateMapNode(ctx context.Context, mapID, nodeID int, request models.UpdateNodeRequest) (models.StatusResponse, error)
	DeleteMapNode(ctx context.Context, mapID, nodeID int) (models.StatusResponse, error)
	AddMapEdge(ctx context.Context, mapID int, request models.AddEdgeRequest) (models.StatusResponse, error)
	UpdateMapEdge(ctx context.Context, mapID, edgeID int, request models.UpdateEdgeRequest) (models.StatusResponse, error)
	DeleteMapEdge(ctx context.Context, mapID, edgeID int) (models.StatusResponse, error)
}

type Backend interface {
	ListBackend
	EditorBackend
}

// Editor is the hook for one open map. The backend does not echo created nodes or edges, so every mutation is
// followed by a full reload.
type Editor struct {
	logger   logger.Logger
	backend  EditorBackend
	cache    *cache.Cache
	observer Observer
	mapID    int
	names    func(mapID int) (string, bool)
	store    *fetch.Store[*models.MapData]
}

type EditorView struct {
	MapData    *models.MapData        `json:"mapData"`
	EdgeLabels []models.EdgeEndpoints `json:"edgeLabels"`
	IsLoading  bool                   `json:"isLoading"`
	Error      string                 `json:"error,omitempty"`
	CanRetry   bool                   `json:"canRetry"`
	RetryCount int                    `json:"retryCount"`
}

func NewEditor(logger logger.Logger, backend EditorBackend, c *cache.Cache, observer Observer, mapID int) *Editor {
	return &Editor{
		logger:   logger,
		backend:  backend,
		cache:    c,
		observer: observer,
		mapID:    mapID,
		store:    fetch.NewStore[*models.MapData](),
	}
}

func (e *Editor) MapID() int {
	return e.mapID
}

func (e *Editor) Load(ctx context.Context) (*models.MapData, error) {
	return e.load(ctx, false, true)
}

// Refetch reloads the map as a retry, skipping the cache.
func (e *Editor) Refetch(ctx context.Context) (*models.MapData, error) {
	return e.load(ctx, true, false)
}

func (e *Editor) load(ctx context.Context, retry, useCache bool) (*models.MapData, error) {
	key := cache.MapKey(e.mapID)
	if useCache {
		if cached, ok := cache.GetTyped[*models.MapData](e.cache, key); ok {
			e.store.Dispatch(fetch.Start[*models.MapData](false))
			e.store.Dispatch(fetch.Succeed(cached))
			return cached, nil
		}
	}

	e.store.Dispatch(fetch.Start[*models.MapData](retry))

	raw, err := e.backend.GetMap(ctx, e.mapID)
	if err != nil {
		e.fail("error loading map", err, false)
		return nil, err
	}

	data := normalize.MapData(e.mindMap(), raw)
	e.cache.Set(key, &data, cache.MapsTTL)
	e.store.Dispatch(fetch.Succeed(&data))
	return &data, nil
}

func (e *Editor) mindMap() models.MindMap {
	mindMap := models.MindMap{ID: e.mapID}
	if e.names != nil {
		if name, ok := e.names(e.mapID); ok {
			mindMap.Name = name
		}
	}
	return mindMap
}

func (e *Editor) AddNode(ctx context.Context, filePath string, x, y int) (models.StatusResponse, error) {
	return e.mutate(ctx, "add node", func(ctx context.Context) (models.StatusResponse, error) {
		return e.backend.AddMapNode(ctx, e.mapID, models.AddNodeRequest{FilePath: filePath, X: x, Y: y})
	})
}

func (e *Editor) UpdateNode(ctx context.Context, nodeID string, request models.UpdateNodeRequest) (models.StatusResponse, error) {
	id, err := rowID(nodeID, "node")
	if err != nil {
		return models.StatusResponse{}, err
	}
	return e.mutate(ctx, "update node", func(ctx context.Context) (models.StatusResponse, error) {
		return e.backend.UpdateMapNode(ctx, e.mapID, id, request)
	})
}

func (e *Editor) DeleteNode(ctx context.Context, nodeID string) (models.StatusResponse, error) {
	id, err := rowID(nodeID, "node")
	if err != nil {
		return models.StatusResponse{}, err
	}
	return e.mutate(ctx, "delete node", func(ctx context.Context) (models.StatusResponse, error) {
		return e.backend.DeleteMapNode(ctx, e.mapID, id)
	})
}

// AddEdge connects two loaded nodes. An endpoint that is not in the loaded node set is rejected without a request.
func (e *Editor) AddEdge(ctx context.Context, fromNodeID, toNodeID, label string) (models.StatusResponse, error) {
	var nodes []models.MapNode
	if data := e.store.Snapshot().Data; data != nil {
		nodes = data.Nodes
	}
	index := normalize.NodeIndex(nodes)

	ids := make([]int, 0, 2)
	for _, nodeID := range []string{fromNodeID, toNodeID} {
		if _, ok := index[nodeID]; !ok {
			return models.StatusResponse{}, models.NewAPIError(
				fmt.Sprintf("Node %s is not part of this map", nodeID), http.StatusUnprocessableEntity)
		}
		id, err := rowID(nodeID, "node")
		if err != nil {
			return models.StatusResponse{}, err
		}
		ids = append(ids, id)
	}

	return e.mutate(ctx, "add edge", func(ctx context.Context) (models.StatusResponse, error) {
		return e.backend.AddMapEdge(ctx, e.mapID, models.AddEdgeRequest{SourceID: ids[0], TargetID: ids[1], Label: label})
	})
}

func (e *Editor) UpdateEdge(ctx context.Context, edgeID, label string) (models.StatusResponse, error) {
	id, err := rowID(edgeID, "edge")
	if err != nil {
		return models.StatusResponse{}, err
	}
	return e.mutate(ctx, "update edge", func(ctx context.Context) (models.StatusResponse, error) {
		return e.backend.UpdateMapEdge(ctx, e.mapID, id, models.UpdateEdgeRequest{Label: label})
	})
}

func (e *Editor) DeleteEdge(ctx context.Context, edgeID string) (models.StatusResponse, error) {
	id, err := rowID(edgeID, "edge")
	if err != nil {
		return models.StatusResponse{}, err
	}
	return e.mutate(ctx, "delete edge", func(ctx context.Context) (models.StatusResponse, error) {
		return e.backend.DeleteMapEdge(ctx, e.mapID, id)
	})
}

func (e *Editor) mutate(ctx context.Context, action string, call func(ctx context.Context) (models.StatusResponse, error)) (models.StatusResponse, error) {
	response, err := call(ctx)
	if err != nil {
		e.fail("could not "+action, err, true)
		return models.StatusResponse{}, err
	}

	e.cache.Delete(cache.MapKey(e.mapID))
	if _, err := e.load(ctx, false, false); err != nil {
		return response, err
	}
	return response, nil
}

func (e *Editor) fail(msg string, err error, keepData bool) {
	e.logger.Error(msg, "map_id", e.mapID, "err", err.Error())
	if e.observer != nil {
		e.observer.HookError(editorHookName)
	}
	e.store.Dispatch(fetch.Fail[*models.MapData](err, keepData))
}

func (e *Editor) View() EditorView {
	return editorView(e.store.Snapshot())
}

func (e *Editor) Subscribe(fn func(EditorView)) func() {
	return e.store.Subscribe(func(snapshot fetch.Snapshot[*models.MapData]) {
		fn(editorView(snapshot))
	})
}

func editorView(snapshot fetch.Snapshot[*models.MapData]) EditorView {
	view := EditorView{
		MapData:    snapshot.Data,
		EdgeLabels: []models.EdgeEndpoints{},
		IsLoading:  snapshot.IsLoading(),
		RetryCount: snapshot.RetryCount,
	}
	if snapshot.Data != nil {
		view.EdgeLabels = normalize.ResolveEdges(*snapshot.Data)
	}
	if snapshot.Status == fetch.StatusError && snapshot.Err != nil {
		view.Error = EditorErrorMessage(snapshot.Err)
		view.CanRetry = snapshot.RetryCount < maxRetryCount && !models.IsNotFound(snapshot.Err)
	}
	return view
}

func EditorErrorMessage(err error) string {
	if models.IsNotFound(err) {
		return mapNotFoundMessage
	}
	if message := models.ErrorMessage(err); message != "" {
		return message
	}
	return "Failed to load map"
}

func rowID(id, kind string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, models.NewAPIError(fmt.Sprintf("Invalid %s id %q", kind, id), http.StatusUnprocessableEntity)
	}
	return n, nil
}

// Registry hands out one Editor per map id so every view of a map shares its state.
type Registry struct {
	logger   logger.Logger
	backend  EditorBackend
	cache    *cache.Cache
	observer Observer
	list     *List

	mu      sync.Mutex
	editors map[int]*Editor
}

// NewRegistry builds editors that take map names from list when it is non-nil.
func NewRegistry(logger logger.Logger, backend EditorBackend, c *cache.Cache, observer Observer, list *List) *Registry {
	return &Registry{
		logger:   logger,
		backend:  backend,
		cache:    c,
		observer: observer,
		list:     list,
		editors:  make(map[int]*Editor),
	}
}

func (r *Registry) Editor(mapID int) *Editor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if editor, ok := r.editors[mapID]; ok {
		return editor
	}
	editor := NewEditor(r.logger, r.backend, r.cache, r.observer, mapID)
	if r.list != nil {
		editor.names = r.list.Name
	}
	r.editors[mapID] = editor
	return editor
}

// Forget drops the editor for a deleted map.
func (r *Registry) Forget(mapID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.editors, mapID)
}
