package searchdb

import "github.com/meghashyamc/contextview/models"

type DB interface {
	IndexResults(results []models.SearchResult) error
	DeleteDocuments(documentIDs []string) error
	Search(queryString string, limit int, offset int) (*Response, error)
	Suggest(prefix string, limit int) ([]Result, error)
	GetDocCount() (uint64, error)
	Close() error
}
