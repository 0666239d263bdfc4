package core

import (
	"errors"
	"fmt"
)

var (
	ErrTokenMalformed  = errors.New("composite token malformed")
	ErrNoChallenge     = errors.New("no challenge")
	ErrNoImage         = errors.New("challenge returned no media")
	ErrSessionConsumed = errors.New("session already submitted")
)

// RemoteStatusError is a non-2xx answer from a vendor endpoint.
type RemoteStatusError struct {
	Endpoint string
	Status   int
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("[%s] status code: %d", e.Endpoint, e.Status)
}

// TransportError wraps connection, TLS, read and decode failures.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type SubmitError struct {
	Message string
}

func (e *SubmitError) Error() string {
	return "funcaptcha submit error " + e.Message
}

type IncorrectGuessError struct {
	Hint string
}

func (e *IncorrectGuessError) Error() string {
	return "incorrect guess " + e.Hint
}
