// Common test helpers
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/client"
	"github.com/meghashyamc/contextview/config"
	"github.com/meghashyamc/contextview/db/kvdb"
	"github.com/meghashyamc/contextview/db/searchdb"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/services/fetch"
	"github.com/meghashyamc/contextview/services/files"
	"github.com/meghashyamc/contextview/services/graph"
	"github.com/meghashyamc/contextview/services/health"
	"github.com/meghashyamc/contextview/services/maps"
	"github.com/meghashyamc/contextview/services/search"
	"github.com/meghashyamc/contextview/validation"
	"github.com/stretchr/testify/require"
)

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

type testCase struct {
	name           string
	requestHeaders map[string]string
	requestBody    map[string]any
	queryParams    map[string]string
	expectedStatus int
	expectedErrors []string
}

type testServer struct {
	router  *gin.Engine
	backend *fakeContextBackend
	cache   *cache.Cache
	history kvdb.DB
	catalog searchdb.DB
}

// fakeContextBackend serves the subset of the Context backend API the gateway calls, from memory.
type fakeContextBackend struct {
	mu       sync.Mutex
	mux      *http.ServeMux
	requests map[string]int
	results  []models.RawSearchResult
	graph    models.RawGraph
	maps     []models.RawMindMap
	nodes    map[int][]models.RawMapNode
	edges    map[int][]models.RawMapEdge
	indexed  map[string]bool
	healthy  bool
	nextID   int
}

func newFakeContextBackend() *fakeContextBackend {
	caption := "March invoice"
	b := &fakeContextBackend{
		mux:      http.NewServeMux(),
		requests: make(map[string]int),
		results: []models.RawSearchResult{
			{FilePath: "/docs/invoices/march.pdf", Type: "pdf", Tags: []string{"invoice", "samsung"}, Similarity: 0.93, UserCaption: &caption},
			{FilePath: "/docs/scans/receipt.png", Type: "image", Tags: []string{"receipt"}, Similarity: 0.41},
		},
		graph: models.RawGraph{
			Nodes: []models.RawGraphNode{{ID: "Acme", Label: "Acme", Type: "entity"}, {ID: "/docs/invoices/march.pdf", Label: "march.pdf", Type: "file"}},
			Edges: []models.RawGraphEdge{{From: "Acme", To: "/docs/invoices/march.pdf", Label: "mentioned_in"}},
		},
		maps:    []models.RawMindMap{{ID: 1, Name: "Inbox"}},
		nodes:   map[int][]models.RawMapNode{1: {{ID: "1", PositionX: 1, PositionY: 2}, {ID: "2", PositionX: 3, PositionY: 4}}},
		edges:   map[int][]models.RawMapEdge{1: {}},
		indexed: make(map[string]bool),
		healthy: true,
		nextID:  10,
	}

	b.mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		b.writeJSON(w, http.StatusOK, b.results)
	})
	b.mux.HandleFunc("POST /index-file", func(w http.ResponseWriter, r *http.Request) {
		var request models.IndexFileRequest
		_ = json.NewDecoder(r.Body).Decode(&request)
		b.indexed[request.FilePath] = true
		b.writeJSON(w, http.StatusOK, models.StatusResponse{Status: "success", Message: "File indexed"})
	})
	b.mux.HandleFunc("DELETE /indexed-file", func(w http.ResponseWriter, r *http.Request) {
		var request models.DeleteFileRequest
		_ = json.NewDecoder(r.Body).Decode(&request)
		if !b.indexed[request.FilePath] {
			b.writeJSON(w, http.StatusNotFound, map[string]string{"detail": "File not indexed"})
			return
		}
		delete(b.indexed, request.FilePath)
		b.writeJSON(w, http.StatusOK, models.StatusResponse{Status: "success"})
	})
	b.mux.HandleFunc("GET /graph/entity", func(w http.ResponseWriter, r *http.Request) {
		if name := r.URL.Query().Get("name"); name != "" && name != "Acme" {
			b.writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Entity not found"})
			return
		}
		b.writeJSON(w, http.StatusOK, b.graph)
	})
	b.mux.HandleFunc("GET /maps", func(w http.ResponseWriter, r *http.Request) {
		b.writeJSON(w, http.StatusOK, b.maps)
	})
	b.mux.HandleFunc("POST /maps", func(w http.ResponseWriter, r *http.Request) {
		var request models.CreateMapRequest
		_ = json.NewDecoder(r.Body).Decode(&request)
		for _, m := range b.maps {
			if m.Name == request.Name {
				b.writeJSON(w, http.StatusConflict, map[string]string{"detail": fmt.Sprintf("Map with name '%s' already exists", request.Name)})
				return
			}
		}
		created := models.RawMindMap{ID: len(b.maps) + 1, Name: request.Name}
		b.maps = append(b.maps, created)
		b.nodes[created.ID] = []models.RawMapNode{}
		b.edges[created.ID] = []models.RawMapEdge{}
		b.writeJSON(w, http.StatusOK, created)
	})
	b.mux.HandleFunc("GET /maps/{id}", func(w http.ResponseWriter, r *http.Request) {
		mapID, ok := b.mapID(w, r)
		if !ok {
			return
		}
		b.writeJSON(w, http.StatusOK, models.RawMapData{Nodes: b.nodes[mapID], Edges: b.edges[mapID]})
	})
	b.mux.HandleFunc("DELETE /maps/{id}", func(w http.ResponseWriter, r *http.Request) {
		mapID, ok := b.mapID(w, r)
		if !ok {
			return
		}
		for i, m := range b.maps {
			if m.ID == mapID {
				b.maps = append(b.maps[:i], b.maps[i+1:]...)
				break
			}
		}
		delete(b.nodes, mapID)
		delete(b.edges, mapID)
		w.WriteHeader(http.StatusNoContent)
	})
	b.mux.HandleFunc("POST /maps/{id}/nodes", func(w http.ResponseWriter, r *http.Request) {
		mapID, ok := b.mapID(w, r)
		if !ok {
			return
		}
		var request models.AddNodeRequest
		_ = json.NewDecoder(r.Body).Decode(&request)
		b.nextID++
		filePath := request.FilePath
		b.nodes[mapID] = append(b.nodes[mapID], models.RawMapNode{ID: models.FlexibleID(strconv.Itoa(b.nextID)), FilePath: &filePath, PositionX: float64(request.X), PositionY: float64(request.Y)})
		b.writeJSON(w, http.StatusOK, models.StatusResponse{Status: "success"})
	})
	b.mux.HandleFunc("DELETE /maps/{id}/nodes/{nodeId}", func(w http.ResponseWriter, r *http.Request) {
		mapID, ok := b.mapID(w, r)
		if !ok {
			return
		}
		kept := []models.RawMapNode{}
		for _, node := range b.nodes[mapID] {
			if node.ID.String() != r.PathValue("nodeId") {
				kept = append(kept, node)
			}
		}
		b.nodes[mapID] = kept
		b.writeJSON(w, http.StatusOK, models.StatusResponse{Status: "success"})
	})
	b.mux.HandleFunc("POST /maps/{id}/edges", func(w http.ResponseWriter, r *http.Request) {
		mapID, ok := b.mapID(w, r)
		if !ok {
			return
		}
		var request models.AddEdgeRequest
		_ = json.NewDecoder(r.Body).Decode(&request)
		b.nextID++
		label := request.Label
		b.edges[mapID] = append(b.edges[mapID], models.RawMapEdge{
			ID:           models.FlexibleID(strconv.Itoa(b.nextID)),
			SourceNodeID: models.FlexibleID(strconv.Itoa(request.SourceID)),
			TargetNodeID: models.FlexibleID(strconv.Itoa(request.TargetID)),
			Label:        &label,
		})
		b.writeJSON(w, http.StatusOK, models.StatusResponse{Status: "success"})
	})
	b.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if !b.healthy {
			b.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "database unavailable"})
			return
		}
		b.writeJSON(w, http.StatusOK, models.RawHealth{Status: "healthy", Service: "context", Mode: "local"})
	})

	return b
}

func (b *fakeContextBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests[r.Method+" "+r.URL.Path]++
	b.mux.ServeHTTP(w, r)
}

func (b *fakeContextBackend) requestCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[key]
}

func (b *fakeContextBackend) setHealthy(healthy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = healthy
}

func (b *fakeContextBackend) mapID(w http.ResponseWriter, r *http.Request) (int, bool) {
	mapID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		b.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid map id"})
		return 0, false
	}
	if _, ok := b.nodes[mapID]; !ok {
		b.writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Map not found"})
		return 0, false
	}
	return mapID, true
}

func (b *fakeContextBackend) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func setupTestServer(t *testing.T, assert *require.Assertions) (*testServer, func()) {

	backend := newFakeContextBackend()
	backendServer := httptest.NewServer(backend)

	t.Setenv("ENV", "test")
	t.Setenv("NEXT_PUBLIC_API_BASE_URL", backendServer.URL)
	t.Setenv("KVDB_PATH", filepath.Join(t.TempDir(), "history.db"))

	cfg, err := config.Load("test")
	assert.NoError(err, "could not load config")

	testLogger := newTestLogger()

	history, err := kvdb.New(testLogger, cfg)
	assert.NoError(err, "could not create kv database")
	catalog, err := searchdb.New(testLogger, cfg)
	assert.NoError(err, "could not create search database")
	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	c := cache.New(testLogger, cfg.GetCacheMaxSize())
	backendClient := client.NewFromConfig(testLogger, cfg, nil)

	policy := fetch.DefaultRetryPolicy()
	policy.BaseDelay = cfg.GetRetryBaseDelay()
	policy.MaxDelay = cfg.GetRetryMaxDelay()
	filesPolicy := fetch.NetworkOnlyPolicy()
	filesPolicy.BaseDelay = cfg.GetRetryBaseDelay()

	searchService := search.New(testLogger, backendClient, c, search.Options{Policy: policy, History: history, Catalog: catalog})
	mapList := maps.NewList(testLogger, backendClient, c, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupStatus(router, testLogger, health.New(testLogger, backendClient, c, nil, cfg.GetHealthInterval()), c)
	SetupSearch(router, testLogger, searchService, catalog, history, validator)
	SetupLiveSearch(router, testLogger, searchService, validator, cfg.GetSearchDebounce())
	SetupFiles(router, testLogger, files.New(testLogger, backendClient, c, validator, files.Options{Policy: filesPolicy, Catalog: catalog}), validator)
	SetupGraph(router, testLogger, graph.New(testLogger, backendClient, c, nil), validator)
	SetupMaps(router, testLogger, mapList, maps.NewRegistry(testLogger, backendClient, c, nil, mapList), validator)

	cleanup := func() {
		backendServer.Close()
		err := catalog.Close()
		assert.NoError(err, "could not close search database")
		err = history.Close()
		assert.NoError(err, "could not close kv database")
	}

	return &testServer{router: router, backend: backend, cache: c, history: history, catalog: catalog}, cleanup
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		values := url.Values{}
		for key, value := range queryParams {
			values.Set(key, value)
		}
		endpoint = endpoint + "?" + values.Encode()
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(jsonBody))

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

// runTestCases runs cases against one endpoint and checks status and error messages.
func runTestCases(t *testing.T, server *testServer, method, endpoint string, testCases []testCase) {
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, method, endpoint, testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			responseBytes := w.Body.Bytes()
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", string(responseBytes)))

			if testCase.expectedErrors != nil {
				actual := decodeResponse(assert, w)
				assert.Equal(testCase.expectedErrors, actual.Errors)
			}
		})
	}
}

func decodeResponse(assert *require.Assertions, w *httptest.ResponseRecorder) response {
	var actual response
	err := json.Unmarshal(w.Body.Bytes(), &actual)
	assert.NoError(err, "could not unmarshal gotten response")
	return actual
}
