package kvdb

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("search history entry not found")
	ErrInvalidKey = errors.New("invalid search history key")
)

// InvalidKeyError reports a normalized query that cannot be stored as a history key.
type InvalidKeyError struct {
	Key    string
	Reason string
}

// NotFoundError reports a query with no history entry.
type NotFoundError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid search history key %q: %s", e.Key, e.Reason)
}

func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no search history for %q", e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
