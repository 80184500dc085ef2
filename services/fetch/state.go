// Package fetch holds the state machine shared by every data hook: idle, loading, success and error, with retries
// moving a hook from error back to loading.
package fetch

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Snapshot is the observable state of one hook.
//
// RetryCount counts failed retries requested by the caller (Refetch after an error). FailureCount counts failed
// attempts inside one load, including automatic retries, and is what search displays.
type Snapshot[T any] struct {
	Status       Status `json:"status"`
	Data         T      `json:"data"`
	Err          error  `json:"-"`
	RetryCount   int    `json:"retryCount"`
	FailureCount int    `json:"failureCount"`
	Retrying     bool   `json:"retrying"`
}

func (s Snapshot[T]) IsLoading() bool {
	return s.Status == StatusLoading
}

type EventKind int

const (
	EventStart EventKind = iota
	EventAttemptFailed
	EventSuccess
	EventFailure
	EventReset
)

type Event[T any] struct {
	Kind     EventKind
	Retry    bool
	Data     T
	Err      error
	KeepData bool
}

func Start[T any](retry bool) Event[T] {
	return Event[T]{Kind: EventStart, Retry: retry}
}

// AttemptFailed records a failed attempt that will be retried automatically. The status stays loading.
func AttemptFailed[T any](err error) Event[T] {
	return Event[T]{Kind: EventAttemptFailed, Err: err}
}

func Succeed[T any](data T) Event[T] {
	return Event[T]{Kind: EventSuccess, Data: data}
}

func Fail[T any](err error, keepData bool) Event[T] {
	return Event[T]{Kind: EventFailure, Err: err, KeepData: keepData}
}

func Reset[T any]() Event[T] {
	return Event[T]{Kind: EventReset}
}

// Transition is the pure state function. It never mutates current.
func Transition[T any](current Snapshot[T], event Event[T]) Snapshot[T] {
	next := current

	switch event.Kind {
	case EventStart:
		next.Status = StatusLoading
		next.Err = nil
		next.Retrying = event.Retry
		next.FailureCount = 0
		if !event.Retry {
			next.RetryCount = 0
		}

	case EventAttemptFailed:
		next.Status = StatusLoading
		next.FailureCount++

	case EventSuccess:
		next.Status = StatusSuccess
		next.Data = event.Data
		next.Err = nil
		next.RetryCount = 0
		next.FailureCount = 0
		next.Retrying = false

	case EventFailure:
		next.Status = StatusError
		next.Err = event.Err
		next.FailureCount++
		if !event.KeepData {
			var zero T
			next.Data = zero
		}
		if current.Retrying {
			next.RetryCount++
		}
		next.Retrying = false

	case EventReset:
		return Snapshot[T]{Status: StatusIdle}
	}

	return next
}
