package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/services/health"
)

const (
	statusWriteWait  = 10 * time.Second
	statusPingPeriod = 30 * time.Second
	statusBuffer     = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// statusCommand is what a status stream client may send.
type statusCommand struct {
	Action  string `json:"action"` // "check" or "visibility"
	Visible bool   `json:"visible"`
}

type statusMessage struct {
	Action    string       `json:"action"`
	SessionID string       `json:"sessionId,omitempty"`
	Status    *health.View `json:"status,omitempty"`
}

func SetupStatus(router *gin.Engine, logger logger.Logger, monitor *health.Monitor, c *cache.Cache) {
	router.GET("/status", handleStatus(monitor))
	router.POST("/status/check", handleStatusCheck(monitor))
	router.GET("/ws/status", handleStatusStream(monitor, logger))
	router.GET("/cache/stats", handleCacheStats(c))
}

func handleStatus(monitor *health.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeResponse(c, monitor.View(), http.StatusOK, nil)
	}
}

func handleStatusCheck(monitor *health.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeResponse(c, monitor.CheckNow(c.Request.Context()), http.StatusOK, nil)
	}
}

func handleCacheStats(c *cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		writeResponse(ctx, c.Stats(), http.StatusOK, nil)
	}
}

// handleStatusStream pushes every health view to the socket until the client goes away.
func handleStatusStream(monitor *health.Monitor, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("failed to upgrade the websocket", "err", err.Error())
			return
		}
		defer ws.Close()

		sessionID := uuid.New().String()
		logger.Info("status stream connected", "session_id", sessionID)

		views := make(chan health.View, statusBuffer)
		unsubscribe := monitor.Subscribe(func(view health.View) {
			select {
			case views <- view:
			default:
				logger.Debug("status stream is slow, dropping update", "session_id", sessionID)
			}
		})
		defer unsubscribe()

		current := monitor.View()
		if err := writeStatus(ws, statusMessage{Action: "session_created", SessionID: sessionID, Status: &current}); err != nil {
			logger.Warn("could not write to status stream", "session_id", sessionID, "err", err.Error())
			return
		}

		ctx := c.Request.Context()
		commands := make(chan statusCommand)
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				var command statusCommand
				if err := ws.ReadJSON(&command); err != nil {
					logger.Info("status stream disconnected", "session_id", sessionID, "err", err.Error())
					return
				}
				select {
				case commands <- command:
				case <-ctx.Done():
					return
				}
			}
		}()

		ticker := time.NewTicker(statusPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-closed:
				return
			case <-ctx.Done():
				return
			case command := <-commands:
				// Checks outlive the socket; the client timeout bounds them.
				checkCtx := context.WithoutCancel(ctx)
				switch command.Action {
				case "check":
					go monitor.CheckNow(checkCtx)
				case "visibility":
					go monitor.VisibilityChanged(checkCtx, command.Visible)
				default:
					logger.Warn("unknown status stream action", "session_id", sessionID, "action", command.Action)
				}
			case view := <-views:
				if err := writeStatus(ws, statusMessage{Action: "status", Status: &view}); err != nil {
					logger.Warn("could not write to status stream", "session_id", sessionID, "err", err.Error())
					return
				}
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(statusWriteWait)); err != nil {
					return
				}
			}
		}
	}
}

func writeStatus(ws *websocket.Conn, message statusMessage) error {
	if err := ws.SetWriteDeadline(time.Now().Add(statusWriteWait)); err != nil {
		return err
	}
	return ws.WriteJSON(message)
}
