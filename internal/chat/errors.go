// Package chat implements the channel messaging core: channel and agent
// registries, the append-only per-channel message log with monotonic
// sequencing, @mention resolution, and per-(agent, message) read tracking.
package chat

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure. Callers branch on the kind, never
// on the message text.
type Kind int

const (
	// KindValidation marks malformed or out-of-range input. Not retryable.
	KindValidation Kind = iota + 1
	// KindNotFound marks a missing channel, agent, or message.
	KindNotFound
	// KindConflict marks a duplicate channel name or username.
	KindConflict
	// KindCapacity marks a channel at max_agents.
	KindCapacity
	// KindConcurrency marks a transient write-write race on sequencing or
	// read-marking. Safe to retry a bounded number of times.
	KindConcurrency
)

// Error is a tagged operation failure.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a KindConflict error.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Capacityf builds a KindCapacity error.
func Capacityf(format string, args ...any) error {
	return &Error{Kind: KindCapacity, Msg: fmt.Sprintf(format, args...)}
}

// Concurrencyf builds a KindConcurrency error.
func Concurrencyf(format string, args ...any) error {
	return &Error{Kind: KindConcurrency, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or 0 if err is not a chat error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// IsRetryable reports whether err is a transient concurrency conflict that
// the caller-facing layer may retry.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConcurrency
}
