package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/services/files"
	"github.com/meghashyamc/contextview/validation"
)

type IndexFileRequest struct {
	FilePath    string `json:"file_path" validate:"valid_path"`
	UserCaption string `json:"user_caption" validate:"max=1000"`
}

type RemoveFileRequest struct {
	FilePath string `json:"file_path" validate:"valid_path"`
}

func SetupFiles(router *gin.Engine, logger logger.Logger, service *files.Service, validator *validation.Validator) {
	router.POST("/files", handleIndexFile(service, logger, validator))
	router.DELETE("/files", handleRemoveFile(service, logger, validator))
}

func handleIndexFile(service *files.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := IndexFileRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			badRequestBody(c, logger, err)
			return
		}

		if err := validator.Validate(request); err != nil {
			notAcceptable(c, logger, err)
			return
		}

		status, err := service.Index(c.Request.Context(), request.FilePath, request.UserCaption)
		if err != nil {
			writeError(c, logger, "could not index file", err)
			return
		}

		writeResponse(c, status, http.StatusCreated, nil)
	}
}

func handleRemoveFile(service *files.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := RemoveFileRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			badRequestBody(c, logger, err)
			return
		}

		if err := validator.Validate(request); err != nil {
			notAcceptable(c, logger, err)
			return
		}

		if _, err := service.Remove(c.Request.Context(), request.FilePath); err != nil {
			writeError(c, logger, "could not remove file", err)
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}
