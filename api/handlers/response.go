package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
)

type response struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors"`
}

func writeResponse(c *gin.Context, data interface{}, statusCode int, errors []string) {

	if statusCode == http.StatusNoContent {
		c.JSON(statusCode, nil)
		return

	}

	response := response{
		Data:   data,
		Errors: errors,
	}

	c.JSON(statusCode, response)
}

// writeError logs err and writes it with the status its type maps to.
func writeError(c *gin.Context, logger logger.Logger, msg string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, "err", err.Error(), "status", status)
	} else {
		logger.Warn(msg, "err", err.Error(), "status", status)
	}
	c.Abort()
	writeResponse(c, nil, status, []string{models.ErrorMessage(err)})
}

// statusForError maps the client error taxonomy onto gateway statuses. Failures that happened between the gateway
// and the backend, including undecodable backend bodies, are reported as 502.
func statusForError(err error) int {
	switch {
	case models.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNetwork), errors.Is(err, models.ErrServer):
		return http.StatusBadGateway
	case models.IsClientError(err):
		return models.StatusCode(err)
	case errors.Is(err, models.ErrAPI):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badRequestBody(c *gin.Context, logger logger.Logger, err error) {
	logger.Warn("could not extract expected params from request", "path", c.FullPath(), "err", err.Error())
	c.Abort()
	writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
}

func notAcceptable(c *gin.Context, logger logger.Logger, err error) {
	logger.Warn("could not validate request", "path", c.FullPath(), "err", err.Error())
	c.Abort()
	writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
}
