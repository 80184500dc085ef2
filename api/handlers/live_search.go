package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/services/search"
	"github.com/meghashyamc/contextview/validation"
)

type liveSearchCommand struct {
	Query string `json:"query"`
}

type liveSearchMessage struct {
	Action    string                `json:"action"` // "session_created", "results" or "error"
	SessionID string                `json:"sessionId,omitempty"`
	Query     string                `json:"query"`
	Results   []models.SearchResult `json:"results,omitempty"`
	Error     string                `json:"error,omitempty"`
}

type liveSearchOutcome struct {
	query   string
	results []models.SearchResult
	err     error
}

// SetupLiveSearch serves search-as-you-type: keystrokes are debounced and only the latest query's results are sent.
func SetupLiveSearch(router *gin.Engine, logger logger.Logger, service *search.Service, validator *validation.Validator, debounce time.Duration) {
	router.GET("/ws/search", handleLiveSearch(service, logger, validator, debounce))
}

func handleLiveSearch(service *search.Service, logger logger.Logger, validator *validation.Validator, debounce time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("failed to upgrade the websocket", "err", err.Error())
			return
		}
		defer ws.Close()

		sessionID := uuid.New().String()
		if err := writeLiveSearch(ws, liveSearchMessage{Action: "session_created", SessionID: sessionID}); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		queries := make(chan string, 1)
		debouncer := search.NewDebouncer(debounce, func(query string) {
			for {
				select {
				case queries <- query:
					return
				default:
				}
				// Replace a query the loop has not picked up yet.
				select {
				case <-queries:
				default:
				}
			}
		})
		defer debouncer.Stop()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				var command liveSearchCommand
				if err := ws.ReadJSON(&command); err != nil {
					logger.Info("live search disconnected", "session_id", sessionID, "err", err.Error())
					return
				}
				debouncer.Change(command.Query)
			}
		}()

		outcomes := make(chan liveSearchOutcome, 1)
		latest := ""
		ticker := time.NewTicker(statusPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-closed:
				return
			case query := <-queries:
				latest = strings.TrimSpace(query)
				if latest != "" {
					if err := validator.Validate(SearchRequest{Query: latest}); err != nil {
						if err := writeLiveSearch(ws, liveSearchMessage{Action: "error", Query: latest, Error: err.Error()}); err != nil {
							return
						}
						continue
					}
				}
				go func(query string) {
					results, err := service.Search(ctx, query)
					select {
					case outcomes <- liveSearchOutcome{query: query, results: results, err: err}:
					case <-ctx.Done():
					}
				}(latest)
			case outcome := <-outcomes:
				if outcome.query != latest {
					continue
				}
				message := liveSearchMessage{Action: "results", Query: outcome.query, Results: outcome.results}
				if outcome.err != nil {
					message = liveSearchMessage{Action: "error", Query: outcome.query, Error: models.ErrorMessage(outcome.err)}
				}
				if err := writeLiveSearch(ws, message); err != nil {
					logger.Warn("could not write to live search", "session_id", sessionID, "err", err.Error())
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

func writeLiveSearch(ws *websocket.Conn, message liveSearchMessage) error {
	if err := ws.SetWriteDeadline(time.Now().Add(statusWriteWait)); err != nil {
		return err
	}
	return ws.WriteJSON(message)
}
