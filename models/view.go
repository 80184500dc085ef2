package models

import "time"

type ResultKind string

const (
	KindPDF     ResultKind = "pdf"
	KindPDFPage ResultKind = "pdf_page"
	KindImage   ResultKind = "image"
	KindUnknown ResultKind = "unknown"
)

type SearchResult struct {
	ID              string     `json:"id"`
	FilePath        string     `json:"filePath"`
	FileName        string     `json:"fileName"`
	Kind            ResultKind `json:"kind"`
	MimeType        string     `json:"mimeType"`
	Tags            []string   `json:"tags"`
	Similarity      float64    `json:"similarity"`
	SimilarityScore int        `json:"similarityScore"`
	UserCaption     string     `json:"userCaption,omitempty"`
	OriginalPDFPath string     `json:"originalPdfPath,omitempty"`
	PageNumber      int        `json:"pageNumber,omitempty"`
	Thumbnail       string     `json:"thumbnail,omitempty"`
	// Offline marks a result served from the local catalog while the backend was unreachable.
	Offline bool `json:"offline,omitempty"`
}

type GraphNodeType string

const (
	GraphNodeEntity GraphNodeType = "entity"
	GraphNodeFile   GraphNodeType = "file"
)

type GraphNode struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Type      GraphNodeType  `json:"type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Thumbnail string         `json:"thumbnail,omitempty"`
}

type GraphEdge struct {
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

type MindMap struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type MapNodeType string

const (
	MapNodeFile    MapNodeType = "file"
	MapNodeConcept MapNodeType = "concept"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type MapNode struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Type     MapNodeType `json:"type"`
	Position Position    `json:"position"`
	FilePath string      `json:"filePath,omitempty"`
}

type MapEdge struct {
	ID         string `json:"id"`
	FromNodeID string `json:"fromNodeId"`
	ToNodeID   string `json:"toNodeId"`
	Label      string `json:"label,omitempty"`
}

type MapData struct {
	Map   MindMap   `json:"map"`
	Nodes []MapNode `json:"nodes"`
	Edges []MapEdge `json:"edges"`
}

// EdgeEndpoints is an edge with its endpoint labels resolved for display.
type EdgeEndpoints struct {
	EdgeID    string `json:"edgeId"`
	FromLabel string `json:"fromLabel"`
	ToLabel   string `json:"toLabel"`
	Label     string `json:"label,omitempty"`
}

type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Mode    string `json:"mode"`
}

type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthDown     HealthState = "down"
	HealthChecking HealthState = "checking"
)
