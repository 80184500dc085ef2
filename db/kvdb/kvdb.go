package kvdb

import "time"

// SearchRecord is one entry of the recent-search history, keyed by the normalized query.
type SearchRecord struct {
	Query        string    `json:"query"`
	Count        int       `json:"count"`
	ResultCount  int       `json:"result_count"`
	LastSearched time.Time `json:"last_searched"`
}

type DB interface {
	RecordSearch(query string, resultCount int) error
	GetSearch(query string) (SearchRecord, error)
	RecentSearches(limit int) ([]SearchRecord, error)
	DeleteSearch(query string) error
	Close() error
}
