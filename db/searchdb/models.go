package searchdb

import "time"

// Document is one search result remembered by the local catalog. The file path is its id.
type Document struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Tags     []string  `json:"tags"`
	Caption  string    `json:"caption"`
	LastSeen time.Time `json:"last_seen"`
}

type Result struct {
	ID    string   `json:"id"`
	Path  string   `json:"path"`
	Name  string   `json:"name"`
	Kind  string   `json:"kind"`
	Tags  []string `json:"tags"`
	Score float64  `json:"score"`
}

type Response struct {
	Results    []Result `json:"results"`
	Total      uint64   `json:"total"`
	MaxScore   float64  `json:"max_score"`
	SearchTime string   `json:"search_time"`
}
