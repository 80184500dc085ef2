package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/services/graph"
	"github.com/meghashyamc/contextview/validation"
)

type GraphRequest struct {
	Entity string `form:"entity" validate:"max=200"`
}

func SetupGraph(router *gin.Engine, logger logger.Logger, service *graph.Service, validator *validation.Validator) {
	router.GET("/graph", handleGraph(service, logger, validator))
	router.POST("/graph/refetch", handleGraphRefetch(service, logger))
}

func handleGraph(service *graph.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := GraphRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			badRequestBody(c, logger, err)
			return
		}

		if err := validator.Validate(request); err != nil {
			notAcceptable(c, logger, err)
			return
		}

		_, err := service.Fetch(c.Request.Context(), request.Entity)
		writeGraphView(c, logger, service, err)
	}
}

func handleGraphRefetch(service *graph.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := service.Refetch(c.Request.Context())
		writeGraphView(c, logger, service, err)
	}
}

// writeGraphView sends the view even on failure so the UI can offer a retry.
func writeGraphView(c *gin.Context, logger logger.Logger, service *graph.Service, err error) {
	view := service.View()
	if err != nil {
		status := statusForError(err)
		logger.Warn("graph fetch failed", "entity", view.LastFetchedEntity, "err", err.Error(), "status", status)
		c.Abort()
		writeResponse(c, view, status, []string{view.Error})
		return
	}

	writeResponse(c, view, http.StatusOK, nil)
}
