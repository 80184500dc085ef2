package client

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/meghashyamc/contextview/models"
)

const fallbackErrorMessage = "An error occurred"

func classifyStatus(status int, body []byte) error {
	message := errorMessage(status, body)

	switch {
	case status == http.StatusNotFound:
		return models.NewNotFoundError(message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return models.NewAPIError(message, status)
	case status == http.StatusUnauthorized:
		return models.NewAPIError("Unauthorized access", status)
	case status == http.StatusForbidden:
		return models.NewAPIError("Access forbidden", status)
	case status == http.StatusTooManyRequests:
		return models.NewAPIError("Too many requests", status)
	case status >= http.StatusInternalServerError:
		return models.NewServerError(message, status)
	default:
		return models.NewAPIError(message, status)
	}
}

// errorMessage reads message, error or detail from a JSON error body, falling back to the status text.
func errorMessage(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, field := range []string{"message", "error", "detail"} {
			if message := messageFrom(payload[field]); message != "" {
				return message
			}
		}
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return fallbackErrorMessage
}

// messageFrom accepts a plain string or a list of validation errors carrying msg fields.
func messageFrom(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		messages := make([]string, 0, len(v))
		for _, item := range v {
			switch entry := item.(type) {
			case string:
				messages = append(messages, entry)
			case map[string]any:
				if msg, ok := entry["msg"].(string); ok && msg != "" {
					messages = append(messages, msg)
				}
			}
		}
		return strings.Join(messages, "; ")
	default:
		return ""
	}
}
