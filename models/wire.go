package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexibleID accepts both JSON numbers and strings. The backend uses integer row ids for maps but string ids for
// graph entities.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id %s: %w", string(data), err)
		}
		*id = FlexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// Int parses the id as a backend row id.
func (id FlexibleID) Int() (int, error) {
	return strconv.Atoi(string(id))
}

type RawSearchResult struct {
	ID              FlexibleID `json:"id,omitempty"`
	FilePath        string     `json:"file_path"`
	Type            string     `json:"type"`
	Tags            []string   `json:"tags"`
	UserCaption     *string    `json:"user_caption,omitempty"`
	Similarity      float64    `json:"similarity"`
	OriginalPDFPath *string    `json:"original_pdf_path,omitempty"`
	PageNum         *int       `json:"page_num,omitempty"`
	Thumbnail       string     `json:"thumbnail,omitempty"`
}

type RawGraphNode struct {
	ID        FlexibleID     `json:"id"`
	Label     string         `json:"label"`
	Type      string         `json:"type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Thumbnail string         `json:"thumbnail,omitempty"`
}

type RawGraphEdge struct {
	ID    FlexibleID `json:"id,omitempty"`
	From  FlexibleID `json:"from"`
	To    FlexibleID `json:"to"`
	Label string     `json:"label"`
}

type RawGraph struct {
	Nodes []RawGraphNode `json:"nodes"`
	Edges []RawGraphEdge `json:"edges"`
}

type RawMindMap struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

type RawMapNode struct {
	ID        FlexibleID `json:"id"`
	FilePath  *string    `json:"file_path,omitempty"`
	Label     *string    `json:"label,omitempty"`
	PositionX float64    `json:"position_x"`
	PositionY float64    `json:"position_y"`
}

type RawMapEdge struct {
	ID           FlexibleID `json:"id"`
	SourceNodeID FlexibleID `json:"source_node_id"`
	TargetNodeID FlexibleID `json:"target_node_id"`
	// Older backends echo the request field names instead.
	SourceID FlexibleID `json:"source_id,omitempty"`
	TargetID FlexibleID `json:"target_id,omitempty"`
	Label    *string    `json:"label,omitempty"`
}

type RawMapData struct {
	Nodes []RawMapNode `json:"nodes"`
	Edges []RawMapEdge `json:"edges"`
}

type RawHealth struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Mode    string `json:"mode"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type IndexFileRequest struct {
	FilePath    string  `json:"file_path"`
	UserCaption *string `json:"user_caption,omitempty"`
}

type DeleteFileRequest struct {
	FilePath string `json:"file_path"`
}

type CreateMapRequest struct {
	Name string `json:"name"`
}

type AddNodeRequest struct {
	FilePath string `json:"file_path"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

type UpdateNodeRequest struct {
	Label    *string `json:"label,omitempty"`
	FilePath *string `json:"file_path,omitempty"`
	X        *int    `json:"x,omitempty"`
	Y        *int    `json:"y,omitempty"`
}

type AddEdgeRequest struct {
	SourceID int    `json:"source_id"`
	TargetID int    `json:"target_id"`
	Label    string `json:"label"`
}

type UpdateEdgeRequest struct {
	Label string `json:"label"`
}
