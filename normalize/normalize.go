// Package normalize maps raw backend records onto the view-models the UI renders. Every function is pure: the
// same input always produces a structurally equal output and no input is mutated.
package normalize

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/meghashyamc/contextview/models"
)

const unknownLabel = "Unknown"

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tiff": true, ".webp": true,
}

// FileName returns the last segment of a slash or backslash separated path.
func FileName(path string) string {
	trimmed := strings.TrimRight(path, `/\`)
	if trimmed == "" {
		return path
	}
	if i := strings.LastIndexAny(trimmed, `/\`); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func MimeType(kind models.ResultKind) string {
	switch kind {
	case models.KindImage:
		return "image/jpeg"
	case models.KindPDF, models.KindPDFPage:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func resultKind(raw models.RawSearchResult) models.ResultKind {
	switch models.ResultKind(raw.Type) {
	case models.KindPDF, models.KindPDFPage, models.KindImage:
		return models.ResultKind(raw.Type)
	}

	ext := strings.ToLower(filepath.Ext(raw.FilePath))
	switch {
	case ext == ".pdf":
		return models.KindPDF
	case imageExtensions[ext]:
		return models.KindImage
	default:
		return models.KindUnknown
	}
}

func clampSimilarity(similarity float64) float64 {
	if math.IsNaN(similarity) || similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}

func SearchResult(raw models.RawSearchResult) models.SearchResult {
	kind := resultKind(raw)
	similarity := clampSimilarity(raw.Similarity)

	result := models.SearchResult{
		ID:              raw.ID.String(),
		FilePath:        raw.FilePath,
		FileName:        FileName(raw.FilePath),
		Kind:            kind,
		MimeType:        MimeType(kind),
		Tags:            copyTags(raw.Tags),
		Similarity:      similarity,
		SimilarityScore: int(math.Round(similarity * 100)),
		Thumbnail:       raw.Thumbnail,
	}
	if result.ID == "" {
		result.ID = raw.FilePath
	}
	if raw.UserCaption != nil {
		result.UserCaption = strings.TrimSpace(*raw.UserCaption)
	}
	if kind == models.KindPDFPage {
		if raw.OriginalPDFPath != nil {
			result.OriginalPDFPath = *raw.OriginalPDFPath
		}
		if raw.PageNum != nil {
			result.PageNumber = *raw.PageNum
		}
	}
	if result.FileName == "" {
		result.FileName = "Untitled"
	}

	return result
}

func SearchResults(raws []models.RawSearchResult) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(raws))
	for _, raw := range raws {
		results = append(results, SearchResult(raw))
	}
	return results
}

func copyTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func graphNodeType(raw string) models.GraphNodeType {
	if models.GraphNodeType(raw) == models.GraphNodeFile {
		return models.GraphNodeFile
	}
	return models.GraphNodeEntity
}

func Graph(raw models.RawGraph) models.GraphData {
	data := models.GraphData{
		Nodes: make([]models.GraphNode, 0, len(raw.Nodes)),
		Edges: make([]models.GraphEdge, 0, len(raw.Edges)),
	}

	for _, rawNode := range raw.Nodes {
		node := models.GraphNode{
			ID:        rawNode.ID.String(),
			Label:     rawNode.Label,
			Type:      graphNodeType(rawNode.Type),
			Thumbnail: rawNode.Thumbnail,
		}
		if node.Label == "" {
			node.Label = node.ID
		}
		if len(rawNode.Metadata) > 0 {
			node.Metadata = make(map[string]any, len(rawNode.Metadata))
			for k, v := range rawNode.Metadata {
				node.Metadata[k] = v
			}
		}
		data.Nodes = append(data.Nodes, node)
	}

	for i, rawEdge := range raw.Edges {
		edge := models.GraphEdge{
			ID:    rawEdge.ID.String(),
			From:  rawEdge.From.String(),
			To:    rawEdge.To.String(),
			Label: rawEdge.Label,
		}
		if edge.ID == "" {
			edge.ID = fmt.Sprintf("%s->%s#%d", edge.From, edge.To, i)
		}
		data.Edges = append(data.Edges, edge)
	}

	return data
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func MindMap(raw models.RawMindMap) models.MindMap {
	mindMap := models.MindMap{
		ID:        raw.ID,
		Name:      raw.Name,
		CreatedAt: parseTimestamp(raw.CreatedAt),
		UpdatedAt: parseTimestamp(raw.UpdatedAt),
	}
	if raw.Description != nil {
		mindMap.Description = *raw.Description
	}
	return mindMap
}

func MindMaps(raws []models.RawMindMap) []models.MindMap {
	maps := make([]models.MindMap, 0, len(raws))
	for _, raw := range raws {
		maps = append(maps, MindMap(raw))
	}
	return maps
}

// MapNode derives the node type from the presence of a file path and falls back to the file name, then to
// "Node <id>", for the label.
func MapNode(raw models.RawMapNode) models.MapNode {
	node := models.MapNode{
		ID:       raw.ID.String(),
		Type:     models.MapNodeConcept,
		Position: models.Position{X: raw.PositionX, Y: raw.PositionY},
	}
	if raw.FilePath != nil && strings.TrimSpace(*raw.FilePath) != "" {
		node.FilePath = *raw.FilePath
		node.Type = models.MapNodeFile
	}

	switch {
	case raw.Label != nil && strings.TrimSpace(*raw.Label) != "":
		node.Label = strings.TrimSpace(*raw.Label)
	case node.FilePath != "":
		node.Label = FileName(node.FilePath)
	default:
		node.Label = "Node " + node.ID
	}

	return node
}

func MapEdge(raw models.RawMapEdge) models.MapEdge {
	edge := models.MapEdge{
		ID:         raw.ID.String(),
		FromNodeID: raw.SourceNodeID.String(),
		ToNodeID:   raw.TargetNodeID.String(),
	}
	if edge.FromNodeID == "" {
		edge.FromNodeID = raw.SourceID.String()
	}
	if edge.ToNodeID == "" {
		edge.ToNodeID = raw.TargetID.String()
	}
	if raw.Label != nil {
		edge.Label = *raw.Label
	}
	return edge
}

func MapData(mindMap models.MindMap, raw models.RawMapData) models.MapData {
	data := models.MapData{
		Map:   mindMap,
		Nodes: make([]models.MapNode, 0, len(raw.Nodes)),
		Edges: make([]models.MapEdge, 0, len(raw.Edges)),
	}
	for _, rawNode := range raw.Nodes {
		data.Nodes = append(data.Nodes, MapNode(rawNode))
	}
	for _, rawEdge := range raw.Edges {
		data.Edges = append(data.Edges, MapEdge(rawEdge))
	}
	return data
}

func Health(raw models.RawHealth) models.HealthStatus {
	return models.HealthStatus{
		Status:  raw.Status,
		Service: raw.Service,
		Mode:    raw.Mode,
	}
}

func HealthState(status models.HealthStatus) models.HealthState {
	if strings.EqualFold(status.Status, string(models.HealthHealthy)) {
		return models.HealthHealthy
	}
	return models.HealthDegraded
}

func NodeIndex(nodes []models.MapNode) map[string]models.MapNode {
	index := make(map[string]models.MapNode, len(nodes))
	for _, node := range nodes {
		index[node.ID] = node
	}
	return index
}

// ResolveEdge labels both endpoints of edge. Endpoints missing from index (for example after a node delete that
// the edge list has not caught up with) are shown as "Unknown".
func ResolveEdge(index map[string]models.MapNode, edge models.MapEdge) models.EdgeEndpoints {
	return models.EdgeEndpoints{
		EdgeID:    edge.ID,
		FromLabel: endpointLabel(index, edge.FromNodeID),
		ToLabel:   endpointLabel(index, edge.ToNodeID),
		Label:     edge.Label,
	}
}

func endpointLabel(index map[string]models.MapNode, id string) string {
	node, ok := index[id]
	if !ok {
		return unknownLabel
	}
	if node.Label != "" {
		return node.Label
	}
	if node.FilePath != "" {
		return node.FilePath
	}
	return unknownLabel
}

func ResolveEdges(data models.MapData) []models.EdgeEndpoints {
	index := NodeIndex(data.Nodes)
	resolved := make([]models.EdgeEndpoints, 0, len(data.Edges))
	for _, edge := range data.Edges {
		resolved = append(resolved, ResolveEdge(index, edge))
	}
	return resolved
}

// GraphEdgeLabels resolves knowledge-graph edge endpoints the same way ResolveEdge does for mind maps.
func GraphEdgeLabels(data models.GraphData) []models.EdgeEndpoints {
	labels := make(map[string]string, len(data.Nodes))
	for _, node := range data.Nodes {
		labels[node.ID] = node.Label
	}

	lookup := func(id string) string {
		if label, ok := labels[id]; ok && label != "" {
			return label
		}
		return unknownLabel
	}

	resolved := make([]models.EdgeEndpoints, 0, len(data.Edges))
	for _, edge := range data.Edges {
		resolved = append(resolved, models.EdgeEndpoints{
			EdgeID:    edge.ID,
			FromLabel: lookup(edge.From),
			ToLabel:   lookup(edge.To),
			Label:     edge.Label,
		})
	}
	return resolved
}
