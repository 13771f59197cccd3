package domain

import (
	"errors"
	"fmt"
)

var (
	// Pipeline errors
	ErrToken         = errors.New("access token request failed")
	ErrSubmission    = errors.New("quick command submission failed")
	ErrPoll          = errors.New("quick command status query failed")
	ErrPollExhausted = errors.New("quick command did not complete in time")

	// Command parsing
	ErrNotCommand    = errors.New("not a quick command")
	ErrEmptyArgument = errors.New("quick command argument is empty")
	ErrInvalidJobID  = errors.New("invalid execution id")

	// Dispatch / concurrency
	ErrQueueFull = errors.New("worker queue full")
	ErrBusy      = errors.New("a quick command is already running for this user")
)

// Op names the remote call that failed.
type Op string

const (
	OpToken  Op = "token"
	OpSubmit Op = "submit"
	OpStatus Op = "status"
)

// RemoteError carries HTTP context for a failed call against the remote API.
// It unwraps to one of ErrToken, ErrSubmission or ErrPoll.
type RemoteError struct {
	Op         Op
	StatusCode int // 0 for transport failures
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// SentinelFor maps an operation to its pipeline sentinel.
func SentinelFor(op Op) error {
	switch op {
	case OpToken:
		return ErrToken
	case OpSubmit:
		return ErrSubmission
	default:
		return ErrPoll
	}
}
