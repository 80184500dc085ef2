package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/services/maps"
	"github.com/stretchr/testify/require"
)

type mapListResponse struct {
	Data   maps.ListView `json:"data"`
	Errors []string      `json:"errors"`
}

type editorResponse struct {
	Data   maps.EditorView `json:"data"`
	Errors []string        `json:"errors"`
}

var createMapHandlerTestCases = []testCase{
	{
		name:           "NoRequestBody",
		requestHeaders: defaultTestRequestHeaders,
		expectedStatus: http.StatusUnprocessableEntity,
	},
	{
		name:           "BlankName",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"name": "   "},
		expectedStatus: http.StatusNotAcceptable,
		expectedErrors: []string{"invalid map name"},
	},
	{
		name:           "Success",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"name": "Research"},
		expectedStatus: http.StatusCreated,
	},
	{
		name:           "Duplicate",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"name": "Research"},
		expectedStatus: http.StatusConflict,
		expectedErrors: []string{"Map with name 'Research' already exists"},
	},
}

func TestHandleMaps(t *testing.T) {
	assert := require.New(t)
	server, cleanup := setupTestServer(t, assert)
	defer cleanup()

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/maps", nil, nil, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())

	runTestCases(t, server, http.MethodPost, "/maps", createMapHandlerTestCases)

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/maps", nil, nil, nil)
	assert.Equal(http.StatusOK, w.Code)
	list := mapListResponse{}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(list.Data.Maps, 2)
	assert.Equal("Research", list.Data.Maps[0].Name)
	assert.Equal(1, server.backend.requestCount("GET /maps"), "the list cache follows confirmed creates")

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, "/maps/2", nil, nil, nil)
	assert.Equal(http.StatusNoContent, w.Code, w.Body.String())

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, "/maps/abc", nil, nil, nil)
	assert.Equal(http.StatusUnprocessableEntity, w.Code)
}

func TestHandleMapEditor(t *testing.T) {
	assert := require.New(t)
	server, cleanup := setupTestServer(t, assert)
	defer cleanup()

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/maps/1", nil, nil, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	editor := editorResponse{}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &editor))
	assert.Len(editor.Data.MapData.Nodes, 2)
	assert.Equal(models.MapNodeConcept, editor.Data.MapData.Nodes[0].Type)

	w = makeTestHTTPRequest(server.router, assert, http.MethodPost, "/maps/1/nodes", defaultTestRequestHeaders,
		map[string]any{"file_path": "/docs/invoices/march.pdf", "x": 10, "y": 20}, nil)
	assert.Equal(http.StatusCreated, w.Code, w.Body.String())
	editor = editorResponse{}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &editor))
	assert.Len(editor.Data.MapData.Nodes, 3)
	assert.Equal("march.pdf", editor.Data.MapData.Nodes[2].Label)

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, "/maps/1/nodes/2", nil, nil, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())

	w = makeTestHTTPRequest(server.router, assert, http.MethodPost, "/maps/1/edges", defaultTestRequestHeaders,
		map[string]any{"from_node_id": "1", "to_node_id": "2", "label": "related"}, nil)
	assert.Equal(http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Zero(server.backend.requestCount("POST /maps/1/edges"), "edges to deleted nodes never reach the backend")

	w = makeTestHTTPRequest(server.router, assert, http.MethodPost, "/maps/1/edges", defaultTestRequestHeaders,
		map[string]any{"from_node_id": "1", "to_node_id": "11", "label": "related"}, nil)
	assert.Equal(http.StatusCreated, w.Code, w.Body.String())
	editor = editorResponse{}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &editor))
	assert.Equal([]models.EdgeEndpoints{{EdgeID: "12", FromLabel: "Node 1", ToLabel: "march.pdf", Label: "related"}}, editor.Data.EdgeLabels)

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/maps/42", nil, nil, nil)
	assert.Equal(http.StatusNotFound, w.Code)
	editor = editorResponse{}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &editor))
	assert.Equal([]string{"Map not found. It may have been deleted."}, editor.Errors)
	assert.False(editor.Data.CanRetry)
}
