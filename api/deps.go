package api

import (
	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/client"
	"github.com/meghashyamc/contextview/config"
	"github.com/meghashyamc/contextview/db/kvdb"
	"github.com/meghashyamc/contextview/db/searchdb"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/metrics"
	"github.com/meghashyamc/contextview/services/fetch"
	"github.com/meghashyamc/contextview/services/files"
	"github.com/meghashyamc/contextview/services/graph"
	healthsvc "github.com/meghashyamc/contextview/services/health"
	"github.com/meghashyamc/contextview/services/maps"
	"github.com/meghashyamc/contextview/services/search"
	"github.com/meghashyamc/contextview/validation"
)

// Hooks are the data hooks over one client and one cache.
type Hooks struct {
	Search  *search.Service
	Graph   *graph.Service
	MapList *maps.List
	Maps    *maps.Registry
	Health  *healthsvc.Monitor
	Files   *files.Service
}

// Dependencies is everything the gateway and the CLI share. History and Catalog are nil when stores are not opened.
type Dependencies struct {
	Config    *config.Config
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Cache     *cache.Cache
	Client    *client.Client
	Validator *validation.Validator
	History   kvdb.DB
	Catalog   searchdb.DB
	Hooks
}

// NewDependencies builds the shared stack. withStores opens the bbolt history and the bleve catalog; one-shot CLI
// commands leave them closed so they never contend with a running gateway for the history file lock.
func NewDependencies(logger logger.Logger, cfg *config.Config, withStores bool) (*Dependencies, error) {
	d := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}
	d.Cache = cache.New(logger, cfg.GetCacheMaxSize(), cache.WithObserver(d.Metrics))
	d.Client = client.NewFromConfig(logger, cfg, d.Metrics)

	var err error
	d.Validator, err = validation.New(logger)
	if err != nil {
		logger.Error("error creating validator", "err", err.Error())
		return nil, err
	}

	if withStores {
		history, err := kvdb.New(logger, cfg)
		if err != nil {
			logger.Error("error creating kvDB", "err", err.Error())
			return nil, err
		}
		d.History = history

		catalog, err := searchdb.New(logger, cfg)
		if err != nil {
			logger.Error("error creating searchDB", "err", err.Error())
			history.Close()
			return nil, err
		}
		d.Catalog = catalog
	}

	d.Hooks = d.newHooks()
	return d, nil
}

func (d *Dependencies) newHooks() Hooks {
	policy := retryPolicy(d.Config)

	searchOpts := search.Options{
		Limit:    d.Config.GetSearchLimit(),
		Policy:   policy,
		Observer: d.Metrics,
	}
	filesOpts := files.Options{Observer: d.Metrics}
	if d.History != nil {
		searchOpts.History = d.History
	}
	if d.Catalog != nil {
		searchOpts.Catalog = d.Catalog
		filesOpts.Catalog = d.Catalog
	}

	mapList := maps.NewList(d.Logger, d.Client, d.Cache, d.Metrics)
	return Hooks{
		Search:  search.New(d.Logger, d.Client, d.Cache, searchOpts),
		Graph:   graph.New(d.Logger, d.Client, d.Cache, d.Metrics),
		MapList: mapList,
		Maps:    maps.NewRegistry(d.Logger, d.Client, d.Cache, d.Metrics, mapList),
		Health:  healthsvc.New(d.Logger, d.Client, d.Cache, d.Metrics, d.Config.GetHealthInterval()),
		Files:   files.New(d.Logger, d.Client, d.Cache, d.Validator, filesOpts),
	}
}

func retryPolicy(cfg *config.Config) fetch.RetryPolicy {
	policy := fetch.DefaultRetryPolicy()
	policy.MaxRetries = cfg.GetMaxRetries()
	policy.BaseDelay = cfg.GetRetryBaseDelay()
	policy.MaxDelay = cfg.GetRetryMaxDelay()
	return policy
}

func (d *Dependencies) Close() {
	d.Health.Stop()
	if d.History != nil {
		if err := d.History.Close(); err != nil {
			d.Logger.Error("error closing kvDB", "err", err.Error())
		}
	}
	if d.Catalog != nil {
		if err := d.Catalog.Close(); err != nil {
			d.Logger.Error("error closing searchDB", "err", err.Error())
		}
	}
}
