package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/contextview/api/handlers"
)

func setupRoutes(router *gin.Engine, deps *Dependencies) {
	router.GET("/health", health())
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	handlers.SetupStatus(router, deps.Logger, deps.Health, deps.Cache)
	handlers.SetupSearch(router, deps.Logger, deps.Search, deps.Catalog, deps.History, deps.Validator)
	handlers.SetupLiveSearch(router, deps.Logger, deps.Search, deps.Validator, deps.Config.GetSearchDebounce())
	handlers.SetupFiles(router, deps.Logger, deps.Files, deps.Validator)
	handlers.SetupGraph(router, deps.Logger, deps.Graph, deps.Validator)
	handlers.SetupMaps(router, deps.Logger, deps.MapList, deps.Maps, deps.Validator)
}

// health is the gateway's own liveness. Backend health is served under /status.
func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter(deps *Dependencies) *gin.Engine {
	if !deps.Config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(deps.Logger))

	setupRoutes(router, deps)
	return router
}
