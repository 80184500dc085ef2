package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/services/maps"
	"github.com/meghashyamc/contextview/validation"
)

type CreateMapRequest struct {
	Name string `json:"name" validate:"valid_map_name"`
}

type AddNodeRequest struct {
	FilePath string `json:"file_path" validate:"valid_path"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

type UpdateNodeRequest struct {
	Label    *string `json:"label" validate:"omitempty,max=200"`
	FilePath *string `json:"file_path" validate:"omitempty,valid_path"`
	X        *int    `json:"x"`
	Y        *int    `json:"y"`
}

type AddEdgeRequest struct {
	FromNodeID string `json:"from_node_id" validate:"required"`
	ToNodeID   string `json:"to_node_id" validate:"required"`
	Label      string `json:"label" validate:"max=200"`
}

type UpdateEdgeRequest struct {
	Label string `json:"label" validate:"max=200"`
}

var errInvalidMapID = errors.New("invalid map id")

func SetupMaps(router *gin.Engine, logger logger.Logger, list *maps.List, registry *maps.Registry, validator *validation.Validator) {
	router.GET("/maps", handleListMaps(list, logger))
	router.POST("/maps", handleCreateMap(list, logger, validator))
	router.GET("/maps/:id", handleGetMap(registry, logger))
	router.DELETE("/maps/:id", handleDeleteMap(list, registry, logger))

	router.POST("/maps/:id/nodes", handleAddNode(registry, logger, validator))
	router.PUT("/maps/:id/nodes/:nodeId", handleUpdateNode(registry, logger, validator))
	router.DELETE("/maps/:id/nodes/:nodeId", handleDeleteNode(registry, logger))

	router.POST("/maps/:id/edges", handleAddEdge(registry, logger, validator))
	router.PUT("/maps/:id/edges/:edgeId", handleUpdateEdge(registry, logger, validator))
	router.DELETE("/maps/:id/edges/:edgeId", handleDeleteEdge(registry, logger))
}

func handleListMaps(list *maps.List, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := list.Load(c.Request.Context()); err != nil {
			view := list.View()
			logger.Warn("could not load maps", "err", err.Error())
			c.Abort()
			writeResponse(c, view, statusForError(err), []string{view.Error})
			return
		}

		writeResponse(c, list.View(), http.StatusOK, nil)
	}
}

func handleCreateMap(list *maps.List, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := CreateMapRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			badRequestBody(c, logger, err)
			return
		}

		if err := validator.Validate(request); err != nil {
			notAcceptable(c, logger, err)
			return
		}

		created, err := list.CreateMap(c.Request.Context(), request.Name)
		if err != nil {
			writeError(c, logger, "could not create map", err)
			return
		}

		writeResponse(c, created, http.StatusCreated, nil)
	}
}

func handleDeleteMap(list *maps.List, registry *maps.Registry, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapID, ok := mapIDParam(c, logger)
		if !ok {
			return
		}

		if err := list.DeleteMap(c.Request.Context(), mapID); err != nil {
			writeError(c, logger, "could not delete map", err)
			return
		}
		registry.Forget(mapID)

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func handleGetMap(registry *maps.Registry, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapID, ok := mapIDParam(c, logger)
		if !ok {
			return
		}

		editor := registry.Editor(mapID)
		_, err := editor.Load(c.Request.Context())
		writeEditorView(c, logger, editor, http.StatusOK, err)
	}
}

func handleAddNode(registry *maps.Registry, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := AddNodeRequest{}
		editor, ok := bindEditorRequest(c, logger, validator, registry, &request)
		if !ok {
			return
		}

		_, err := editor.AddNode(c.Request.Context(), request.FilePath, request.X, request.Y)
		writeEditorView(c, logger, editor, http.StatusCreated, err)
	}
}

func handleUpdateNode(registry *maps.Registry, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := UpdateNodeRequest{}
		editor, ok := bindEditorRequest(c, logger, validator, registry, &request)
		if !ok {
			return
		}

		_, err := editor.UpdateNode(c.Request.Context(), c.Param("nodeId"), models.UpdateNodeRequest{
			Label:    request.Label,
			FilePath: request.FilePath,
			X:        request.X,
			Y:        request.Y,
		})
		writeEditorView(c, logger, editor, http.StatusOK, err)
	}
}

func handleDeleteNode(registry *maps.Registry, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapID, ok := mapIDParam(c, logger)
		if !ok {
			return
		}

		editor := registry.Editor(mapID)
		_, err := editor.DeleteNode(c.Request.Context(), c.Param("nodeId"))
		writeEditorView(c, logger, editor, http.StatusOK, err)
	}
}

func handleAddEdge(registry *maps.Registry, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := AddEdgeRequest{}
		editor, ok := bindEditorRequest(c, logger, validator, registry, &request)
		if !ok {
			return
		}

		// Endpoints are checked against the loaded node set.
		if editor.View().MapData == nil {
			if _, err := editor.Load(c.Request.Context()); err != nil {
				writeEditorView(c, logger, editor, http.StatusOK, err)
				return
			}
		}

		_, err := editor.AddEdge(c.Request.Context(), request.FromNodeID, request.ToNodeID, request.Label)
		writeEditorView(c, logger, editor, http.StatusCreated, err)
	}
}

func handleUpdateEdge(registry *maps.Registry, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := UpdateEdgeRequest{}
		editor, ok := bindEditorRequest(c, logger, validator, registry, &request)
		if !ok {
			return
		}

		_, err := editor.UpdateEdge(c.Request.Context(), c.Param("edgeId"), request.Label)
		writeEditorView(c, logger, editor, http.StatusOK, err)
	}
}

func handleDeleteEdge(registry *maps.Registry, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapID, ok := mapIDParam(c, logger)
		if !ok {
			return
		}

		editor := registry.Editor(mapID)
		_, err := editor.DeleteEdge(c.Request.Context(), c.Param("edgeId"))
		writeEditorView(c, logger, editor, http.StatusOK, err)
	}
}

// bindEditorRequest parses the map id and the JSON body into request and validates it.
func bindEditorRequest(c *gin.Context, logger logger.Logger, validator *validation.Validator, registry *maps.Registry, request any) (*maps.Editor, bool) {
	mapID, ok := mapIDParam(c, logger)
	if !ok {
		return nil, false
	}

	if err := c.ShouldBindJSON(request); err != nil {
		badRequestBody(c, logger, err)
		return nil, false
	}

	if err := validator.Validate(request); err != nil {
		notAcceptable(c, logger, err)
		return nil, false
	}

	return registry.Editor(mapID), true
}

func mapIDParam(c *gin.Context, logger logger.Logger) (int, bool) {
	mapID, err := strconv.Atoi(c.Param("id"))
	if err != nil || mapID <= 0 {
		logger.Warn("invalid map id", "id", c.Param("id"))
		c.Abort()
		writeResponse(c, nil, http.StatusUnprocessableEntity, []string{errInvalidMapID.Error()})
		return 0, false
	}
	return mapID, true
}

func writeEditorView(c *gin.Context, logger logger.Logger, editor *maps.Editor, status int, err error) {
	view := editor.View()
	if err != nil {
		status = statusForError(err)
		message := maps.EditorErrorMessage(err)
		logger.Warn("map request failed", "map_id", editor.MapID(), "err", err.Error(), "status", status)
		c.Abort()
		writeResponse(c, view, status, []string{message})
		return
	}

	writeResponse(c, view, status, nil)
}
