// Package files indexes files into and removes them from the backend search index.
package files

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/services/fetch"
	"github.com/meghashyamc/contextview/validation"
)

const hookName = "files"

type Backend interface {
	IndexFile(ctx context.Context, filePath, userCaption string) (models.StatusResponse, error)
	DeleteIndexedFile(ctx context.Context, filePath string) (models.StatusResponse, error)
}

// Catalog forgets removed files. searchdb.BleveDB implements it.
type Catalog interface {
	DeleteDocuments(documentIDs []string) error
}

type Observer interface {
	Retry(hook string)
	HookError(hook string)
}

type Options struct {
	Policy   fetch.RetryPolicy
	Catalog  Catalog
	Observer Observer
}

type Service struct {
	logger    logger.Logger
	backend   Backend
	cache     *cache.Cache
	validator *validation.Validator
	opts      Options
}

type fileRequest struct {
	FilePath string `json:"file_path" validate:"valid_path"`
}

func New(logger logger.Logger, backend Backend, c *cache.Cache, validator *validation.Validator, opts Options) *Service {
	if opts.Policy.MaxRetries == 0 && opts.Policy.BaseDelay == 0 {
		opts.Policy = fetch.NetworkOnlyPolicy()
	}
	return &Service{
		logger:    logger,
		backend:   backend,
		cache:     c,
		validator: validator,
		opts:      opts,
	}
}

// Index asks the backend to index filePath with an optional caption. Cached searches are dropped on success.
func (s *Service) Index(ctx context.Context, filePath, caption string) (models.StatusResponse, error) {
	if err := s.validate(filePath); err != nil {
		return models.StatusResponse{}, err
	}

	response, err := s.run(ctx, "index", filePath, func(ctx context.Context) (models.StatusResponse, error) {
		return s.backend.IndexFile(ctx, filePath, strings.TrimSpace(caption))
	})
	if err != nil {
		return models.StatusResponse{}, err
	}

	s.cache.Set(cache.FileKey(filePath), response, cache.FilesTTL)
	s.invalidateSearches()
	s.logger.Info("indexed file", "path", filePath, "status", response.Status)
	return response, nil
}

// Remove deletes filePath from the backend index and from the local catalog.
func (s *Service) Remove(ctx context.Context, filePath string) (models.StatusResponse, error) {
	if err := s.validate(filePath); err != nil {
		return models.StatusResponse{}, err
	}

	response, err := s.run(ctx, "remove", filePath, func(ctx context.Context) (models.StatusResponse, error) {
		return s.backend.DeleteIndexedFile(ctx, filePath)
	})
	if err != nil {
		return models.StatusResponse{}, err
	}

	s.cache.Delete(cache.FileKey(filePath))
	s.invalidateSearches()
	if s.opts.Catalog != nil {
		if err := s.opts.Catalog.DeleteDocuments([]string{filePath}); err != nil {
			s.logger.Warn("could not remove file from catalog", "path", filePath, "err", err.Error())
		}
	}
	s.logger.Info("removed file", "path", filePath)
	return response, nil
}

func (s *Service) validate(filePath string) error {
	if err := s.validator.Validate(fileRequest{FilePath: filePath}); err != nil {
		return models.NewAPIError(err.Error(), http.StatusUnprocessableEntity)
	}
	return nil
}

func (s *Service) run(ctx context.Context, action, filePath string, call func(ctx context.Context) (models.StatusResponse, error)) (models.StatusResponse, error) {
	response, err := fetch.Do(ctx, s.opts.Policy, call, func(attempt int, err error) {
		s.logger.Warn(fmt.Sprintf("%s attempt failed, retrying", action), "path", filePath, "err", err.Error())
		if s.opts.Observer != nil {
			s.opts.Observer.Retry(hookName)
		}
	})
	if err != nil {
		s.logger.Error(fmt.Sprintf("could not %s file", action), "path", filePath, "err", err.Error())
		if s.opts.Observer != nil {
			s.opts.Observer.HookError(hookName)
		}
		return models.StatusResponse{}, err
	}
	return response, nil
}

func (s *Service) invalidateSearches() {
	if removed := s.cache.DeletePrefix(cache.SearchPrefix); removed > 0 {
		s.logger.Debug("invalidated cached searches", "count", removed)
	}
}
