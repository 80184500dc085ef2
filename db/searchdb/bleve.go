package searchdb

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/contextview/config"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
)

const indexingBatchSize = 100

const (
	indexFieldPath     = "path"
	indexFieldName     = "name"
	indexFieldKind     = "kind"
	indexFieldTags     = "tags"
	indexFieldCaption  = "caption"
	indexFieldLastSeen = "last_seen"
)

// BleveDB is a local catalog of every result the backend has returned. It answers prefix suggestions and offline
// lookups; the backend stays the source of truth for semantic search.
type BleveDB struct {
	indexPath string
	logger    logger.Logger
	index     bleve.Index
	now       func() time.Time
}

// New opens the on-disk catalog, or an in-memory one when no index path is configured.
func New(logger logger.Logger, cfg *config.Config) (*BleveDB, error) {
	if cfg.GetIndexPath() == "" {
		return NewMemOnly(logger)
	}

	mapping := createIndexMapping()
	indexPath := filepath.Join(cfg.GetStoragePath(), cfg.GetIndexPath())
	index, err := bleve.New(indexPath, mapping)
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Error("could not open index", "err", err.Error(), "path", indexPath)
			return nil, err
		}
	}
	return &BleveDB{indexPath: indexPath, logger: logger, index: index, now: time.Now}, nil
}

func NewMemOnly(logger logger.Logger) (*BleveDB, error) {
	index, err := bleve.NewMemOnly(createIndexMapping())
	if err != nil {
		logger.Error("could not create in-memory index", "err", err.Error())
		return nil, err
	}
	return &BleveDB{logger: logger, index: index, now: time.Now}, nil
}

func createIndexMapping() mapping.IndexMapping {

	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Path and kind are matched exactly
	pathFieldMapping := bleve.NewTextFieldMapping()
	pathFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(indexFieldPath, pathFieldMapping)

	kindFieldMapping := bleve.NewTextFieldMapping()
	kindFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(indexFieldKind, kindFieldMapping)

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(indexFieldName, nameFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(indexFieldTags, tagsFieldMapping)

	captionFieldMapping := bleve.NewTextFieldMapping()
	captionFieldMapping.Analyzer = standard.Name
	captionFieldMapping.Store = false
	docMapping.AddFieldMappingsAt(indexFieldCaption, captionFieldMapping)

	docMapping.AddFieldMappingsAt(indexFieldLastSeen, bleve.NewDateTimeFieldMapping())

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// IndexResults upserts results keyed by file path.
func (b *BleveDB) IndexResults(results []models.SearchResult) error {
	seenAt := b.now().UTC()
	batch := b.index.NewBatch()

	for i, result := range results {
		if result.FilePath == "" {
			continue
		}
		doc := Document{
			ID:       result.FilePath,
			Path:     result.FilePath,
			Name:     result.FileName,
			Kind:     string(result.Kind),
			Tags:     result.Tags,
			Caption:  result.UserCaption,
			LastSeen: seenAt,
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			b.logger.Error("could not index document", "err", err.Error(), "path", doc.Path)
			return err
		}

		if (i+1)%indexingBatchSize == 0 {
			if err := b.index.Batch(batch); err != nil {
				return err
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not index document", "err", err.Error())
			return err
		}
	}

	return nil
}

func (b *BleveDB) Search(queryString string, limit int, offset int) (*Response, error) {
	start := time.Now()

	searchRequest := bleve.NewSearchRequestOptions(b.buildSearchQuery(queryString), limit, offset, false)
	searchRequest.Fields = []string{indexFieldPath, indexFieldName, indexFieldKind, indexFieldTags}

	searchResult, err := b.index.Search(searchRequest)
	if err != nil {
		b.logger.Error("search failed", "err", err.Error())
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, len(searchResult.Hits))
	for i, hit := range searchResult.Hits {
		results[i] = resultFromFields(hit.ID, hit.Score, hit.Fields)
	}

	return &Response{
		Results:    results,
		Total:      searchResult.Total,
		MaxScore:   searchResult.MaxScore,
		SearchTime: time.Since(start).String(),
	}, nil
}

// Suggest completes the last word of prefix against file names, tags and captions. Earlier words must match too.
func (b *BleveDB) Suggest(prefix string, limit int) ([]Result, error) {
	terms := strings.Fields(strings.ToLower(prefix))
	if len(terms) == 0 {
		return []Result{}, nil
	}

	last := terms[len(terms)-1]
	completion := bleve.NewDisjunctionQuery()
	for _, field := range []string{indexFieldName, indexFieldTags, indexFieldCaption} {
		prefixQuery := bleve.NewPrefixQuery(last)
		prefixQuery.SetField(field)
		completion.AddQuery(prefixQuery)
	}

	var suggestQuery query.Query = completion
	if len(terms) > 1 {
		suggestQuery = bleve.NewConjunctionQuery(b.matchAnyField(strings.Join(terms[:len(terms)-1], " ")), completion)
	}

	searchRequest := bleve.NewSearchRequestOptions(suggestQuery, limit, 0, false)
	searchRequest.Fields = []string{indexFieldPath, indexFieldName, indexFieldKind, indexFieldTags}

	searchResult, err := b.index.Search(searchRequest)
	if err != nil {
		b.logger.Error("suggest failed", "err", err.Error(), "prefix", prefix)
		return nil, fmt.Errorf("suggest failed: %w", err)
	}

	results := make([]Result, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		results = append(results, resultFromFields(hit.ID, hit.Score, hit.Fields))
	}
	return results, nil
}

func (b *BleveDB) buildSearchQuery(queryString string) query.Query {

	const (
		boostForFileName     = 3.0
		boostForTags         = 2.0
		boostForCaption      = 2.0
		boostForPhraseMatch  = 5.0
		boostForPartialMatch = 1.5
	)

	queryString = strings.ToLower(strings.TrimSpace(queryString))

	if queryString == "" {
		return bleve.NewMatchAllQuery()
	}

	quoted, remaining := parseQuotedQuery(queryString)
	if len(quoted) == 0 && remaining == "" {
		return bleve.NewMatchNoneQuery()
	}

	conjunctQuery := bleve.NewConjunctionQuery()
	for _, phrase := range quoted {
		phraseQuery := bleve.NewDisjunctionQuery()
		for _, field := range []string{indexFieldName, indexFieldTags, indexFieldCaption} {
			fieldPhrase := bleve.NewMatchPhraseQuery(phrase)
			fieldPhrase.SetField(field)
			fieldPhrase.SetBoost(boostForPhraseMatch)
			phraseQuery.AddQuery(fieldPhrase)
		}
		conjunctQuery.AddQuery(phraseQuery)
	}

	if remaining != "" {
		disjunctQuery := bleve.NewDisjunctionQuery()

		nameQuery := bleve.NewMatchQuery(remaining)
		nameQuery.SetField(indexFieldName)
		nameQuery.SetBoost(boostForFileName)
		disjunctQuery.AddQuery(nameQuery)

		tagsQuery := bleve.NewMatchQuery(remaining)
		tagsQuery.SetField(indexFieldTags)
		tagsQuery.SetBoost(boostForTags)
		disjunctQuery.AddQuery(tagsQuery)

		captionQuery := bleve.NewMatchQuery(remaining)
		captionQuery.SetField(indexFieldCaption)
		captionQuery.SetBoost(boostForCaption)
		disjunctQuery.AddQuery(captionQuery)

		pathQuery := bleve.NewTermQuery(remaining)
		pathQuery.SetField(indexFieldPath)
		disjunctQuery.AddQuery(pathQuery)

		if len(remaining) > 2 {
			prefixQuery := bleve.NewPrefixQuery(remaining)
			prefixQuery.SetField(indexFieldName)
			prefixQuery.SetBoost(boostForPartialMatch)
			disjunctQuery.AddQuery(prefixQuery)
		}

		conjunctQuery.AddQuery(disjunctQuery)
	}

	return conjunctQuery
}

func (b *BleveDB) matchAnyField(text string) query.Query {
	disjunctQuery := bleve.NewDisjunctionQuery()
	for _, field := range []string{indexFieldName, indexFieldTags, indexFieldCaption} {
		matchQuery := bleve.NewMatchQuery(text)
		matchQuery.SetField(field)
		disjunctQuery.AddQuery(matchQuery)
	}
	return disjunctQuery
}

// parseQuotedQuery splits "quoted phrases" from the loose terms around them. An unterminated quote is treated as
// loose text.
func parseQuotedQuery(input string) ([]string, string) {
	var quoted []string
	var remaining strings.Builder

	for {
		start := strings.IndexByte(input, '"')
		if start < 0 {
			remaining.WriteString(input)
			break
		}
		end := strings.IndexByte(input[start+1:], '"')
		if end < 0 {
			remaining.WriteString(input[:start])
			remaining.WriteString(" ")
			remaining.WriteString(input[start+1:])
			break
		}

		remaining.WriteString(input[:start])
		remaining.WriteString(" ")
		if phrase := strings.Join(strings.Fields(input[start+1:start+1+end]), " "); phrase != "" {
			quoted = append(quoted, phrase)
		}
		input = input[start+1+end+1:]
	}

	return quoted, strings.Join(strings.Fields(remaining.String()), " ")
}

func resultFromFields(id string, score float64, fields map[string]any) Result {
	result := Result{ID: id, Score: score, Tags: []string{}}

	if path, ok := fields[indexFieldPath].(string); ok {
		result.Path = path
	}
	if name, ok := fields[indexFieldName].(string); ok {
		result.Name = name
	}
	if kind, ok := fields[indexFieldKind].(string); ok {
		result.Kind = kind
	}
	// A single stored value comes back as a string, several as a slice.
	switch tags := fields[indexFieldTags].(type) {
	case string:
		result.Tags = append(result.Tags, tags)
	case []any:
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				result.Tags = append(result.Tags, s)
			}
		}
	}

	return result
}

func (b *BleveDB) DeleteDocuments(documentIDs []string) error {
	batch := b.index.NewBatch()

	for i, docID := range documentIDs {
		batch.Delete(docID)

		if (i+1)%indexingBatchSize == 0 {
			err := b.index.Batch(batch)
			if err != nil {
				return err
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not delete documents", "err", err.Error())
			return err
		}
	}

	return nil
}

func (b *BleveDB) GetDocCount() (uint64, error) {
	return b.index.DocCount()
}

func (b *BleveDB) Close() error {

	if b.index != nil {
		if err := b.index.Close(); err != nil {
			b.logger.Error("could not close search index", "err", err.Error())
			return err
		}
	}
	return nil
}
