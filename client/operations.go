package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/meghashyamc/contextview/models"
)

const (
	endpointSearch      = "/search"
	endpointIndexFile   = "/index-file"
	endpointIndexedFile = "/indexed-file"
	endpointGraphEntity = "/graph/entity"
	endpointMaps        = "/maps"
	endpointHealth      = "/health"
)

func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.RawSearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var results []models.RawSearchResult
	if err := c.do(ctx, "search", http.MethodGet, endpointSearch+"?"+params.Encode(), nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) IndexFile(ctx context.Context, filePath, userCaption string) (models.StatusResponse, error) {
	request := models.IndexFileRequest{FilePath: filePath}
	if userCaption != "" {
		request.UserCaption = &userCaption
	}

	var response models.StatusResponse
	err := c.do(ctx, "index_file", http.MethodPost, endpointIndexFile, request, &response)
	return response, err
}

func (c *Client) DeleteIndexedFile(ctx context.Context, filePath string) (models.StatusResponse, error) {
	var response models.StatusResponse
	err := c.do(ctx, "delete_indexed_file", http.MethodDelete, endpointIndexedFile, models.DeleteFileRequest{FilePath: filePath}, &response)
	return response, err
}

// GetGraph returns the graph around entity, or the full graph when entity is empty.
func (c *Client) GetGraph(ctx context.Context, entity string) (models.RawGraph, error) {
	endpoint := endpointGraphEntity
	if entity != "" {
		endpoint += "?" + url.Values{"name": []string{entity}}.Encode()
	}

	var graph models.RawGraph
	err := c.do(ctx, "get_graph", http.MethodGet, endpoint, nil, &graph)
	return graph, err
}

func (c *Client) ListMaps(ctx context.Context) ([]models.RawMindMap, error) {
	var maps []models.RawMindMap
	if err := c.do(ctx, "list_maps", http.MethodGet, endpointMaps, nil, &maps); err != nil {
		return nil, err
	}
	return maps, nil
}

func (c *Client) CreateMap(ctx context.Context, name string) (models.RawMindMap, error) {
	var mindMap models.RawMindMap
	err := c.do(ctx, "create_map", http.MethodPost, endpointMaps, models.CreateMapRequest{Name: name}, &mindMap)
	return mindMap, err
}

func (c *Client) GetMap(ctx context.Context, mapID int) (models.RawMapData, error) {
	var data models.RawMapData
	err := c.do(ctx, "get_map", http.MethodGet, mapEndpoint(mapID), nil, &data)
	return data, err
}

func (c *Client) DeleteMap(ctx context.Context, mapID int) error {
	return c.do(ctx, "delete_map", http.MethodDelete, mapEndpoint(mapID), nil, nil)
}

func (c *Client) AddMapNode(ctx context.Context, mapID int, request models.AddNodeRequest) (models.StatusResponse, error) {
	var response models.StatusResponse
	err := c.do(ctx, "add_map_node", http.MethodPost, mapEndpoint(mapID)+"/nodes", request, &response)
	return response, err
}

func (c *Client) UpdateMapNode(ctx context.Context, mapID, nodeID int, request models.UpdateNodeRequest) (models.StatusResponse, error) {
	var response models.StatusResponse
	err := c.do(ctx, "update_map_node", http.MethodPut, fmt.Sprintf("%s/nodes/%d", mapEndpoint(mapID), nodeID), request, &response)
	return response, err
}

func (c *Client) DeleteMapNode(ctx context.Context, mapID, nodeID int) (models.StatusResponse, error) {
	var response models.StatusResponse
	err := c.do(ctx, "delete_map_node", http.MethodDelete, fmt.Sprintf("%s/nodes/%d", mapEndpoint(mapID), nodeID), nil, &response)
	return response, err
}

func (c *Client) AddMapEdge(ctx context.Context, mapID int, request models.AddEdgeRequest) (models.StatusResponse, error) {
	var response models.StatusResponse
	err := c.do(ctx, "add_map_edge", http.MethodPost, mapEndpoint(mapID)+"/edges", request, &response)
	return response, err
}

func (c *Client) UpdateMapEdge(ctx context.Context, mapID, edgeID int, request models.UpdateEdgeRequest) (models.StatusResponse, error) {
	var response models.StatusResponse
	err := c.do(ctx, "update_map_edge", http.MethodPut, fmt.Sprintf("%s/edges/%d", mapEndpoint(mapID), edgeID), request, &response)
	return response, err
}

func (c *Client) DeleteMapEdge(ctx context.Context, mapID, edgeID int) (models.StatusResponse, error) {
	var response models.StatusResponse
	err := c.do(ctx, "delete_map_edge", http.MethodDelete, fmt.Sprintf("%s/edges/%d", mapEndpoint(mapID), edgeID), nil, &response)
	return response, err
}

func (c *Client) Health(ctx context.Context) (models.RawHealth, error) {
	var health models.RawHealth
	err := c.do(ctx, "health", http.MethodGet, endpointHealth, nil, &health)
	return health, err
}

func mapEndpoint(mapID int) string {
	return fmt.Sprintf("%s/%d", endpointMaps, mapID)
}
