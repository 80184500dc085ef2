package cache

import (
	"fmt"
	"strings"
	"time"
)

const (
	SearchTTL = 5 * time.Minute
	GraphTTL  = 10 * time.Minute
	MapsTTL   = 5 * time.Minute
	HealthTTL = 30 * time.Second
	FilesTTL  = 15 * time.Minute
)

const SearchPrefix = "search:"

// Key builders. Two logically identical requests must produce the same key.

func SearchKey(query string, limit int) string {
	return fmt.Sprintf("%s%s:%d", SearchPrefix, strings.TrimSpace(query), limit)
}

func GraphKey(entityName string) string {
	entityName = strings.TrimSpace(entityName)
	if entityName == "" {
		entityName = "all"
	}
	return "graph:" + entityName
}

func MapKey(mapID int) string {
	return fmt.Sprintf("map:%d", mapID)
}

func MapsKey() string {
	return "maps:list"
}

func HealthKey() string {
	return "health:status"
}

func FileKey(fileID string) string {
	return "file:" + fileID
}
