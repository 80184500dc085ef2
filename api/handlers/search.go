package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/contextview/db/kvdb"
	"github.com/meghashyamc/contextview/db/searchdb"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/services/search"
	"github.com/meghashyamc/contextview/validation"
)

const (
	defaultSuggestLimit = 10
	defaultRecentLimit  = 10
)

type SearchRequest struct {
	Query string `form:"query" validate:"required,valid_query"`
	Limit int    `form:"limit" validate:"min=0,max=100"`
}

type SearchResponse struct {
	Query   string                `json:"query"`
	Results []models.SearchResult `json:"results"`
	Total   int                   `json:"total"`
}

type SuggestRequest struct {
	Prefix string `form:"prefix" validate:"required,valid_query"`
	Limit  int    `form:"limit" validate:"min=0,max=50"`
}

type RecentSearchesRequest struct {
	Limit int `form:"limit" validate:"min=0,max=200"`
}

type CatalogStats struct {
	Documents uint64 `json:"documents"`
}

type ForgetSearchRequest struct {
	Query string `form:"query" validate:"required,valid_query"`
}

func SetupSearch(router *gin.Engine, logger logger.Logger, service *search.Service, catalog searchdb.DB, history kvdb.DB, validator *validation.Validator) {
	router.GET("/search", handleSearch(service, logger, validator))
	router.GET("/suggest", handleSuggest(catalog, logger, validator))
	router.GET("/catalog/stats", handleCatalogStats(catalog, logger))
	router.GET("/recent-searches", handleRecentSearches(history, logger, validator))
	router.DELETE("/recent-searches", handleForgetSearch(history, logger, validator))
}

func handleSearch(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			badRequestBody(c, logger, err)
			return
		}

		if err := validator.Validate(request); err != nil {
			notAcceptable(c, logger, err)
			return
		}

		results, err := service.Search(c.Request.Context(), request.Query)
		if err != nil {
			writeError(c, logger, "search failed", err)
			return
		}

		if request.Limit > 0 && len(results) > request.Limit {
			results = results[:request.Limit]
		}

		writeResponse(c, SearchResponse{Query: strings.TrimSpace(request.Query), Results: results, Total: len(results)}, http.StatusOK, nil)
	}
}

func handleSuggest(catalog searchdb.DB, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SuggestRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			badRequestBody(c, logger, err)
			return
		}

		if err := validator.Validate(request); err != nil {
			notAcceptable(c, logger, err)
			return
		}
		if request.Limit == 0 {
			request.Limit = defaultSuggestLimit
		}

		suggestions, err := catalog.Suggest(request.Prefix, request.Limit)
		if err != nil {
			logger.Error("suggest failed", "prefix", request.Prefix, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, suggestions, http.StatusOK, nil)
	}
}

func handleCatalogStats(catalog searchdb.DB, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := catalog.GetDocCount()
		if err != nil {
			logger.Error("could not count catalog documents", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, CatalogStats{Documents: count}, http.StatusOK, nil)
	}
}

func handleRecentSearches(history kvdb.DB, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := RecentSearchesRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			badRequestBody(c, logger, err)
			return
		}

		if err := validator.Validate(request); err != nil {
			notAcceptable(c, logger, err)
			return
		}
		if request.Limit == 0 {
			request.Limit = defaultRecentLimit
		}

		records, err := history.RecentSearches(request.Limit)
		if err != nil {
			logger.Error("could not read recent searches", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, records, http.StatusOK, nil)
	}
}

func handleForgetSearch(history kvdb.DB, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := ForgetSearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			badRequestBody(c, logger, err)
			return
		}

		if err := validator.Validate(request); err != nil {
			notAcceptable(c, logger, err)
			return
		}

		if err := history.DeleteSearch(strings.TrimSpace(request.Query)); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, kvdb.ErrNotFound) {
				status = http.StatusNotFound
			}
			logger.Warn("could not forget search", "query", request.Query, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, status, []string{err.Error()})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}
